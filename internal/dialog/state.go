package dialog

import "go.uber.org/zap"

// State tracks where dialog resolution currently stands.
type State int

const (
	StateIdle State = iota
	StateWatching
	StateDismissing
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateWatching:
		return "WATCHING"
	case StateDismissing:
		return "DISMISSING"
	case StateResolved:
		return "RESOLVED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// machine holds the resolution state and logs every transition. Terminal
// states do not transition further.
type machine struct {
	state State
}

func newMachine() *machine {
	return &machine{state: StateIdle}
}

func (m *machine) to(next State) {
	if m.state == next || m.terminal() {
		return
	}
	zap.L().Debug("dialog state transition",
		zap.String("from", m.state.String()),
		zap.String("to", next.String()))
	m.state = next
}

func (m *machine) terminal() bool {
	return m.state == StateResolved || m.state == StateFailed
}
