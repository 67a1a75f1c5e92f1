package browser

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Factory creates a fresh session. The pool calls it lazily and again
// whenever a crashed session has to be replaced.
type Factory func(ctx context.Context) (Session, error)

// Pool hands out up to size concurrent sessions. Sessions are created on
// first demand, reused across queries, and replaced transparently when they
// come back crashed.
type Pool struct {
	factory Factory
	size    int
	free    chan Session

	mu      sync.Mutex
	created int
	closed  bool
}

// NewPool builds a pool of at most size sessions.
func NewPool(size int, factory Factory) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		factory: factory,
		size:    size,
		free:    make(chan Session, size),
	}
}

// Size returns the maximum number of concurrent sessions.
func (p *Pool) Size() int {
	return p.size
}

// Acquire returns a healthy session, creating one if the pool is not yet at
// capacity, otherwise waiting for a release. Crashed sessions pulled from
// the free list are closed and replaced.
func (p *Pool) Acquire(ctx context.Context) (Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, eris.New("browser: pool closed")
	}
	p.mu.Unlock()

	select {
	case s := <-p.free:
		return p.vet(ctx, s)
	default:
	}

	p.mu.Lock()
	if p.created < p.size {
		p.created++
		p.mu.Unlock()
		s, err := p.factory(ctx)
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return nil, eris.Wrap(err, "browser: create session")
		}
		zap.L().Debug("session created", zap.Int("pool_size", p.size))
		return s, nil
	}
	p.mu.Unlock()

	select {
	case s := <-p.free:
		return p.vet(ctx, s)
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "browser: acquire session")
	}
}

// vet replaces a crashed session with a fresh one.
func (p *Pool) vet(ctx context.Context, s Session) (Session, error) {
	if !s.Crashed() {
		return s, nil
	}
	_ = s.Close()
	zap.L().Warn("replacing crashed session")
	fresh, err := p.factory(ctx)
	if err != nil {
		p.mu.Lock()
		p.created--
		p.mu.Unlock()
		return nil, eris.Wrap(err, "browser: replace crashed session")
	}
	return fresh, nil
}

// Release returns a session to the pool. Crashed sessions are closed and
// their slot surrendered so a later Acquire can create a replacement.
func (p *Pool) Release(s Session) {
	if s == nil {
		return
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed || s.Crashed() {
		_ = s.Close()
		if !closed {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
		}
		return
	}
	select {
	case p.free <- s:
	default:
		_ = s.Close()
		p.mu.Lock()
		p.created--
		p.mu.Unlock()
	}
}

// Close shuts down every idle session and rejects further acquires.
// Sessions still checked out are closed by their Release.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	for {
		select {
		case s := <-p.free:
			_ = s.Close()
		default:
			return
		}
	}
}
