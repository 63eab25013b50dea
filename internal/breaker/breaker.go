// Package breaker isolates the contextual scorer behind a circuit breaker
// so a failing or slow dependency degrades scoring instead of stalling
// evaluations.
package breaker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the breaker's position in its lifecycle.
type State string

const (
	// StateClosed allows attempts; failures are being counted.
	StateClosed State = "CLOSED"
	// StateOpen denies attempts until the reset timeout has elapsed.
	StateOpen State = "OPEN"
	// StateHalfOpen allows a probe attempt after the reset timeout.
	StateHalfOpen State = "HALF_OPEN"
)

// Options configures a Breaker.
type Options struct {
	// FailureThreshold is how many consecutive failures open the breaker.
	FailureThreshold int
	// ResetTimeout is how long the breaker stays open before allowing a
	// probe.
	ResetTimeout time.Duration
	Logger       *zap.Logger
}

// DefaultOptions returns the production thresholds.
func DefaultOptions() Options {
	return Options{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// Breaker is a CLOSED/OPEN/HALF_OPEN state machine. All transitions happen
// under one mutex; CanAttempt is allowed to mutate state and must be
// serialized with the record calls.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time

	threshold    int
	resetTimeout time.Duration
	clock        func() time.Time
	logger       *zap.Logger
}

// New creates a Breaker in the CLOSED state.
func New(opts Options) *Breaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultOptions().FailureThreshold
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = DefaultOptions().ResetTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Breaker{
		state:        StateClosed,
		threshold:    opts.FailureThreshold,
		resetTimeout: opts.ResetTimeout,
		clock:        time.Now,
		logger:       opts.Logger.Named("breaker"),
	}
}

// SetClock overrides the time source. Tests use this to step through the
// reset timeout deterministically.
func (b *Breaker) SetClock(clock func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock = clock
}

// CanAttempt reports whether a call should be made. When the breaker is
// open and the reset timeout has elapsed it transitions to HALF_OPEN and
// allows a probe.
func (b *Breaker) CanAttempt() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateOpen {
		return true
	}
	if b.clock().Sub(b.lastFailure) > b.resetTimeout {
		b.state = StateHalfOpen
		b.logger.Info("Circuit breaker half-open, allowing probe")
		return true
	}
	return false
}

// RecordSuccess closes the breaker and zeroes the failure count,
// regardless of the current state.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateClosed {
		b.logger.Info("Circuit breaker closed", zap.String("from", string(b.state)))
	}
	b.failures = 0
	b.state = StateClosed
}

// RecordFailure counts a failure and opens the breaker once the threshold
// is reached. A failed half-open probe reopens immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.clock()
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		if b.state != StateOpen {
			b.logger.Warn("Circuit breaker open", zap.Int("failures", b.failures))
		}
		b.state = StateOpen
	}
}

// State returns the current state without mutating it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
