package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter paces outbound fetches. Wait blocks until enough time has
// passed since the previous action, or the context is done; Touch
// restarts the window; RecordSuccess and RecordError feed fetch
// outcomes back so an implementation may adjust its window.
type Limiter interface {
	Wait(ctx context.Context) error
	Touch()
	RecordSuccess()
	RecordError()
}

var (
	_ Limiter = (*PacingLimiter)(nil)
	_ Limiter = (*AdaptiveLimiter)(nil)
)

// PacingLimiter enforces a minimum delay between actions, with
// uniform jitter up to the max delay so requests do not land on a
// fixed interval.
type PacingLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
}

func NewPacingLimiter(minDelay, maxDelay time.Duration) *PacingLimiter {
	return &PacingLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

func (l *PacingLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := time.Since(l.lastAction)
	delay := l.nextDelay()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	l.lastAction = time.Now()
	return nil
}

// Touch restarts the pacing window from now. The scheduler calls it
// when a fetch completes so the delay runs completion-to-start.
func (l *PacingLimiter) Touch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastAction = time.Now()
}

// RecordSuccess and RecordError are no-ops: the fixed window ignores
// fetch outcomes.
func (l *PacingLimiter) RecordSuccess() {}

func (l *PacingLimiter) RecordError() {}

func (l *PacingLimiter) nextDelay() time.Duration {
	if l.maxDelay <= l.minDelay {
		return l.minDelay
	}

	jitter := time.Duration(rand.Int63n(int64(l.maxDelay - l.minDelay)))
	return l.minDelay + jitter
}

// AdaptiveLimiter widens the pacing window after repeated failures
// and slowly narrows it again while fetches succeed.
type AdaptiveLimiter struct {
	*PacingLimiter
	errorCount    int
	successCount  int
	maxErrorCount int
	backoffFactor float64
}

func NewAdaptiveLimiter(minDelay, maxDelay time.Duration) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		PacingLimiter: NewPacingLimiter(minDelay, maxDelay),
		maxErrorCount: 3,
		backoffFactor: 1.5,
	}
}

func (a *AdaptiveLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.errorCount = 0

	if a.successCount > 5 {
		newMin := time.Duration(float64(a.minDelay) * 0.9)
		if newMin < time.Second {
			newMin = time.Second
		}
		a.minDelay = newMin
		a.successCount = 0
	}
}

func (a *AdaptiveLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	a.successCount = 0

	if a.errorCount >= a.maxErrorCount {
		newMin := time.Duration(float64(a.minDelay) * a.backoffFactor)
		newMax := time.Duration(float64(a.maxDelay) * a.backoffFactor)

		if newMin > 60*time.Second {
			newMin = 60 * time.Second
		}
		if newMax > 120*time.Second {
			newMax = 120 * time.Second
		}

		a.minDelay = newMin
		a.maxDelay = newMax
		a.errorCount = 0
	}
}
