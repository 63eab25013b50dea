package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestBreaker(t *testing.T) (*Breaker, func(time.Duration)) {
	t.Helper()
	b := New(Options{FailureThreshold: 5, ResetTimeout: 30 * time.Second, Logger: zap.NewNop()})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.SetClock(func() time.Time { return now })
	return b, func(d time.Duration) { now = now.Add(d) }
}

func TestBreaker_StartsClosed(t *testing.T) {
	b, _ := newTestBreaker(t)

	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.CanAttempt())
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(t)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
		assert.Equal(t, StateClosed, b.State(), "failure %d should not open yet", i+1)
		assert.True(t, b.CanAttempt())
	}

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.CanAttempt())
	assert.Equal(t, 5, b.Failures())
}

func TestBreaker_ResetTimeoutIsStrict(t *testing.T) {
	b, advance := newTestBreaker(t)

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}

	advance(30 * time.Second)
	assert.False(t, b.CanAttempt(), "exactly the reset timeout is not enough")
	assert.Equal(t, StateOpen, b.State())

	advance(time.Second)
	assert.True(t, b.CanAttempt(), "past the reset timeout a probe is allowed")
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	t.Run("success closes", func(t *testing.T) {
		b, advance := newTestBreaker(t)
		for i := 0; i < 5; i++ {
			b.RecordFailure()
		}
		advance(31 * time.Second)
		assert.True(t, b.CanAttempt())

		b.RecordSuccess()
		assert.Equal(t, StateClosed, b.State())
		assert.Zero(t, b.Failures())
		assert.True(t, b.CanAttempt())
	})

	t.Run("failure reopens", func(t *testing.T) {
		b, advance := newTestBreaker(t)
		for i := 0; i < 5; i++ {
			b.RecordFailure()
		}
		advance(31 * time.Second)
		assert.True(t, b.CanAttempt())

		b.RecordFailure()
		assert.Equal(t, StateOpen, b.State())
		assert.False(t, b.CanAttempt())

		// The reopened window starts from the probe failure.
		advance(31 * time.Second)
		assert.True(t, b.CanAttempt())
	})
}

func TestBreaker_RecordSuccessIsUnconditional(t *testing.T) {
	b, _ := newTestBreaker(t)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	assert.Zero(t, b.Failures(), "success resets the consecutive failure count")

	// Fresh failures need the full threshold again.
	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_DefaultOptions(t *testing.T) {
	b := New(Options{})
	assert.Equal(t, 5, b.threshold)
	assert.Equal(t, 30*time.Second, b.resetTimeout)
}
