package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

var ErrPoolClosed = errors.New("session pool is closed")

type PoolOptions struct {
	// Capacity bounds the idle set, not the number of checked-out
	// sessions.
	Capacity int
	// Identities are rotated across created sessions.
	Identities []string
}

// Pool hands out sessions backed by a lazily created shared engine.
type Pool struct {
	mu           sync.Mutex
	idle         []*Session
	capacity     int
	identities   []string
	nextIdentity int

	engineMu sync.Mutex
	engine   Engine
	factory  EngineFactory

	closed atomic.Bool
	logger *slog.Logger
}

func NewPool(factory EngineFactory, opts PoolOptions) *Pool {
	capacity := opts.Capacity
	if capacity < 1 {
		capacity = 1
	}

	return &Pool{
		capacity:   capacity,
		identities: opts.Identities,
		factory:    factory,
		logger:     slog.Default().With("component", "session-pool"),
	}
}

// Acquire returns an idle session that passes a liveness probe, or
// creates a fresh one. Dead idle sessions found along the way are
// destroyed.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for {
		p.mu.Lock()
		if len(p.idle) == 0 {
			p.mu.Unlock()
			break
		}
		s := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		p.mu.Unlock()

		if s.Alive() {
			return s, nil
		}

		p.logger.Debug("discarding dead idle session", "session", s.ID)
		p.destroy(s)
	}

	engine, err := p.ensureEngine()
	if err != nil {
		return nil, err
	}

	page, err := engine.NewPage(p.rotateIdentity())
	if err != nil {
		return nil, err
	}

	s := newSession(page)
	p.logger.Debug("created session", "session", s.ID)
	return s, nil
}

// Release returns a session to the idle set, or destroys it when the
// set is at capacity or the session is no longer usable.
func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}

	if p.closed.Load() || !s.Alive() {
		p.destroy(s)
		return
	}

	p.mu.Lock()
	if len(p.idle) < p.capacity {
		p.idle = append(p.idle, s)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.destroy(s)
}

// Invalidate destroys a session a fetch attempt found unusable. It is
// never returned to the idle set.
func (p *Pool) Invalidate(s *Session) {
	if s == nil {
		return
	}
	p.logger.Debug("invalidating session", "session", s.ID)
	p.destroy(s)
}

// Shutdown closes the engine and every idle session. Close errors are
// logged and swallowed; teardown never blocks on them.
func (p *Pool) Shutdown() {
	if p.closed.Swap(true) {
		return
	}

	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, s := range idle {
		p.destroy(s)
	}

	p.engineMu.Lock()
	engine := p.engine
	p.engine = nil
	p.engineMu.Unlock()

	if engine != nil {
		if err := engine.Close(); err != nil {
			p.logger.Warn("engine close failed", "error", err)
		}
	}

	p.logger.Info("session pool shut down")
}

// IdleCount reports the current idle set size.
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// EngineRunning reports whether the shared engine is currently up.
func (p *Pool) EngineRunning() bool {
	p.engineMu.Lock()
	defer p.engineMu.Unlock()
	return p.engine != nil
}

// ensureEngine creates the shared engine at most once; concurrent
// callers block on the mutex and observe the engine the first one
// created.
func (p *Pool) ensureEngine() (Engine, error) {
	p.engineMu.Lock()
	defer p.engineMu.Unlock()

	if p.engine != nil {
		return p.engine, nil
	}

	engine, err := p.factory()
	if err != nil {
		return nil, err
	}

	engine.OnDisconnect(func() {
		p.dropEngine(engine)
	})

	p.engine = engine
	p.logger.Info("engine started")
	return engine, nil
}

// dropEngine clears the shared reference after a disconnect so the
// next Acquire reinitializes. Idle sessions bound to the dead engine
// fail their liveness probe and are discarded lazily.
func (p *Pool) dropEngine(engine Engine) {
	p.engineMu.Lock()
	defer p.engineMu.Unlock()

	if p.engine == engine {
		p.engine = nil
		p.logger.Warn("engine disconnected, will reinitialize on next acquire")
	}
}

func (p *Pool) rotateIdentity() string {
	if len(p.identities) == 0 {
		return ""
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	identity := p.identities[p.nextIdentity%len(p.identities)]
	p.nextIdentity++
	return identity
}

func (p *Pool) destroy(s *Session) {
	if s == nil || s.Page == nil {
		return
	}
	if err := s.Page.Close(); err != nil {
		p.logger.Debug("session close failed", "session", s.ID, "error", err)
	}
}
