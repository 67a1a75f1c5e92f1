package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// NavigationError means a page failed to load or never reached ready state.
// Safe to retry with a fresh attempt.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation failed for %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ElementNotFoundError means an expected form or result control never
// appeared. Safe to retry; the selector identifies what was missing.
type ElementNotFoundError struct {
	Selector string
	Err      error
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element not found: %s: %v", e.Selector, e.Err)
}

func (e *ElementNotFoundError) Unwrap() error { return e.Err }

// DialogTimeoutError means an interstitial dialog was detected but never
// resolved within its window. State records where the resolver stopped.
type DialogTimeoutError struct {
	State string
	Err   error
}

func (e *DialogTimeoutError) Error() string {
	return fmt.Sprintf("dialog unresolved in state %s: %v", e.State, e.Err)
}

func (e *DialogTimeoutError) Unwrap() error { return e.Err }

// ExtractionError means a results surface was present but no strategy could
// parse it. Never retried: the same page would fail the same way.
type ExtractionError struct {
	Strategies []string
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed after %s: %v", strings.Join(e.Strategies, ", "), e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// SessionCrashError means the browser session became unusable. Not
// retryable within the session; the batch layer replaces the session and
// requeues the unfinished work.
type SessionCrashError struct {
	Err error
}

func (e *SessionCrashError) Error() string {
	return fmt.Sprintf("browser session crashed: %v", e.Err)
}

func (e *SessionCrashError) Unwrap() error { return e.Err }

// ResourceExhaustionError means memory stayed above the threshold even at
// the minimum chunk size. Fatal for the whole batch.
type ResourceExhaustionError struct {
	UsedFraction float64
}

func (e *ResourceExhaustionError) Error() string {
	return fmt.Sprintf("resource exhaustion: memory at %.0f%%", e.UsedFraction*100)
}

// Retryable reports whether the error is worth another attempt of the same
// query. Extraction failures, session crashes, and resource exhaustion are
// excluded; those need a different response than repeating the workflow.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var (
		nav     *NavigationError
		element *ElementNotFoundError
		dialog  *DialogTimeoutError
	)
	if errors.As(err, &nav) || errors.As(err, &element) || errors.As(err, &dialog) {
		return true
	}
	if IsExtractionFailure(err) || IsSessionCrash(err) || IsResourceExhaustion(err) {
		return false
	}

	// Transport-level hiccups between us and the browser devtools socket.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{"connection reset by peer", "broken pipe", "websocket: close"} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsSessionCrash reports whether the chain contains a SessionCrashError.
func IsSessionCrash(err error) bool {
	var sc *SessionCrashError
	return errors.As(err, &sc)
}

// IsResourceExhaustion reports whether the chain contains a
// ResourceExhaustionError.
func IsResourceExhaustion(err error) bool {
	var re *ResourceExhaustionError
	return errors.As(err, &re)
}

// IsExtractionFailure reports whether the chain contains an ExtractionError.
func IsExtractionFailure(err error) bool {
	var ex *ExtractionError
	return errors.As(err, &ex)
}
