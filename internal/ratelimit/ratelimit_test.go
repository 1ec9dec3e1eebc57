package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacingLimiterFirstWaitIsImmediate(t *testing.T) {
	l := NewPacingLimiter(time.Second, 2*time.Second)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPacingLimiterEnforcesDelay(t *testing.T) {
	l := NewPacingLimiter(50*time.Millisecond, 50*time.Millisecond)

	require.NoError(t, l.Wait(context.Background()))

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestPacingLimiterTouchRestartsWindow(t *testing.T) {
	l := NewPacingLimiter(50*time.Millisecond, 50*time.Millisecond)

	require.NoError(t, l.Wait(context.Background()))
	time.Sleep(60 * time.Millisecond)
	l.Touch()

	// The sleep before Touch must not count against the window.
	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestPacingLimiterHonorsContext(t *testing.T) {
	l := NewPacingLimiter(time.Minute, time.Minute)

	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAdaptiveLimiterBacksOffAfterErrors(t *testing.T) {
	a := NewAdaptiveLimiter(2*time.Second, 4*time.Second)

	for i := 0; i < 3; i++ {
		a.RecordError()
	}

	assert.Equal(t, 3*time.Second, a.minDelay)
	assert.Equal(t, 6*time.Second, a.maxDelay)
}

func TestAdaptiveLimiterNarrowsAfterSuccesses(t *testing.T) {
	a := NewAdaptiveLimiter(2*time.Second, 4*time.Second)

	for i := 0; i < 6; i++ {
		a.RecordSuccess()
	}

	assert.Equal(t, time.Duration(float64(2*time.Second)*0.9), a.minDelay)
}

func TestAdaptiveLimiterSuccessResetsErrorStreak(t *testing.T) {
	a := NewAdaptiveLimiter(2*time.Second, 4*time.Second)

	a.RecordError()
	a.RecordError()
	a.RecordSuccess()
	a.RecordError()

	assert.Equal(t, 2*time.Second, a.minDelay, "broken error streak should not back off")
}
