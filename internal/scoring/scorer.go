// Package scoring rates events for the pipeline: a deterministic scorer
// that always works, a contextual scorer strategy behind a circuit
// breaker, and the arbitration between the two.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shrikectl/shrike/internal/breaker"
	"github.com/shrikectl/shrike/internal/types"
)

// Options configures a Scorer.
type Options struct {
	// Context is the contextual scorer strategy; nil selects the simulated
	// stand-in.
	Context ContextScorer
	// Breaker protects the contextual scorer; nil creates one with default
	// thresholds.
	Breaker *breaker.Breaker
	// Timeout bounds each contextual call; expiry counts as a breaker
	// failure. Zero selects the default of 1.5 s.
	Timeout time.Duration
	// Disabled starts with the contextual path switched off so every call
	// uses the deterministic fallback.
	Disabled bool
	Logger   *zap.Logger
}

// Scorer arbitrates between the contextual scorer and the deterministic
// fallback. Dependency failures are recorded on the breaker and absorbed;
// callers always receive a usable Result.
type Scorer struct {
	contextScorer ContextScorer
	fallback      *Deterministic
	breaker       *breaker.Breaker
	timeout       time.Duration
	logger        *zap.Logger

	mu        sync.RWMutex
	available bool
}

// New creates a Scorer.
func New(opts Options) *Scorer {
	if opts.Context == nil {
		opts.Context = NewSimulated()
	}
	if opts.Breaker == nil {
		opts.Breaker = breaker.New(breaker.Options{Logger: opts.Logger})
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 1500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Scorer{
		contextScorer: opts.Context,
		fallback:      NewDeterministic(),
		breaker:       opts.Breaker,
		timeout:       opts.Timeout,
		logger:        opts.Logger.Named("scorer"),
		available:     !opts.Disabled,
	}
}

// SetAvailable toggles the contextual scorer at runtime.
func (s *Scorer) SetAvailable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = v
}

// Available reports whether the contextual scorer is enabled.
func (s *Scorer) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

// Breaker exposes the breaker for health reporting.
func (s *Scorer) Breaker() *breaker.Breaker {
	return s.breaker
}

// FallbackMode reports whether the next call would skip the contextual
// scorer.
func (s *Scorer) FallbackMode() bool {
	return !s.Available() || s.breaker.State() == breaker.StateOpen
}

// SetClock overrides the fallback scorer's time source.
func (s *Scorer) SetClock(clock func() time.Time) {
	s.fallback.SetClock(clock)
}

// Score rates the event, preferring the contextual scorer. The only error
// it returns is the caller's own context ending mid-call; every dependency
// failure is absorbed into a fallback Result.
func (s *Scorer) Score(ctx context.Context, ev *types.Event, recentCount int64, quietHours bool) (Result, error) {
	if !s.Available() {
		return s.fallbackResult(ev, recentCount, quietHours, "AI scorer unavailable"), nil
	}
	if !s.breaker.CanAttempt() {
		return s.fallbackResult(ev, recentCount, quietHours, "AI circuit breaker OPEN"), nil
	}

	type outcome struct {
		result Result
		err    error
	}
	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Buffered so a late completion after the deadline does not leak the
	// goroutine.
	ch := make(chan outcome, 1)
	go func() {
		res, err := s.contextScorer.Score(tctx, ev, recentCount, quietHours)
		ch <- outcome{result: res, err: err}
	}()

	select {
	case out := <-ch:
		if out.err == nil {
			s.breaker.RecordSuccess()
			return out.result, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		cause := out.err.Error()
		if errors.Is(out.err, context.DeadlineExceeded) {
			cause = s.timeoutCause()
		}
		s.breaker.RecordFailure()
		s.logger.Warn("Contextual scoring failed", zap.Error(out.err))
		return s.fallbackResult(ev, recentCount, quietHours, cause), nil
	case <-tctx.Done():
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		s.breaker.RecordFailure()
		s.logger.Warn("Contextual scoring timed out", zap.Duration("timeout", s.timeout))
		return s.fallbackResult(ev, recentCount, quietHours, s.timeoutCause()), nil
	}
}

func (s *Scorer) timeoutCause() string {
	return fmt.Sprintf("AI scoring timed out after %s", s.timeout)
}

func (s *Scorer) fallbackResult(ev *types.Event, recentCount int64, quietHours bool, cause string) Result {
	res := s.fallback.Score(ev, recentCount, quietHours)
	res.Reason = fmt.Sprintf("[FALLBACK] %s — %s", cause, res.Reason)
	return res
}
