// Package prioritizer wires the full decision pipeline: expiry, duplicate
// suppression, hard rules, fatigue caps, scoring, and the safety net, with
// every outcome recorded in the audit log.
package prioritizer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shrikectl/shrike/internal/audit"
	"github.com/shrikectl/shrike/internal/dedup"
	"github.com/shrikectl/shrike/internal/frequency"
	"github.com/shrikectl/shrike/internal/kvstore"
	"github.com/shrikectl/shrike/internal/metrics"
	"github.com/shrikectl/shrike/internal/rules"
	"github.com/shrikectl/shrike/internal/scoring"
	"github.com/shrikectl/shrike/internal/types"
)

// Options configures an Engine. Every nil dependency gets a working
// default, so tests and tools can build an engine from a Store alone.
type Options struct {
	// Store backs deduplication and the fatigue counters. Nil selects an
	// in-memory store.
	Store kvstore.Store
	// Rules is the hard-rule engine; nil seeds one with the default rules.
	Rules *rules.Engine
	// Scorer arbitrates contextual scoring and the deterministic fallback.
	Scorer *scoring.Scorer
	// Audit receives every decision; nil creates a fresh in-memory log.
	Audit *audit.Log
	// Metrics is optional; nil records nothing.
	Metrics *metrics.Recorder
	Logger  *zap.Logger
}

// Engine runs events through the decision pipeline.
type Engine struct {
	store     kvstore.Store
	dedup     *dedup.Checker
	frequency *frequency.Checker
	rules     *rules.Engine
	scorer    *scoring.Scorer
	audit     *audit.Log
	metrics   *metrics.Recorder
	logger    *zap.Logger
	clock     func() time.Time
}

// outcome is a pipeline verdict before the safety net and bookkeeping.
type outcome struct {
	action       string
	score        float64
	reason       string
	ruleMatched  string
	aiUsed       bool
	fallbackMode bool
}

// New creates an Engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := opts.Store
	if store == nil {
		store = kvstore.NewMemory(kvstore.DefaultMemoryOptions())
	}
	ruleEngine := opts.Rules
	if ruleEngine == nil {
		ruleEngine = rules.NewEngine(logger)
	}
	scorer := opts.Scorer
	if scorer == nil {
		scorer = scoring.New(scoring.Options{Logger: logger})
	}
	auditLog := opts.Audit
	if auditLog == nil {
		auditLog = audit.NewLog(logger)
	}

	return &Engine{
		store:     store,
		dedup:     dedup.New(store, logger),
		frequency: frequency.New(store, logger),
		rules:     ruleEngine,
		scorer:    scorer,
		audit:     auditLog,
		metrics:   opts.Metrics,
		logger:    logger.Named("prioritizer"),
		clock:     time.Now,
	}
}

// SetClock overrides the time source for the engine and the time-aware
// components it owns.
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
	e.frequency.SetClock(clock)
	e.scorer.SetClock(clock)
	e.scorer.Breaker().SetClock(clock)
}

// Rules exposes the rule engine for the API layer.
func (e *Engine) Rules() *rules.Engine { return e.rules }

// Scorer exposes the scorer for health reporting and runtime toggles.
func (e *Engine) Scorer() *scoring.Scorer { return e.scorer }

// Audit exposes the decision log.
func (e *Engine) Audit() *audit.Log { return e.audit }

// Store exposes the backing store for health checks.
func (e *Engine) Store() kvstore.Store { return e.store }

// Evaluate runs one event through the pipeline and returns the recorded
// decision. The only errors are infrastructural: a store failure or the
// caller's context ending mid-flight. Every business outcome, including
// scorer breakdowns, still produces a Decision.
//
// An aborted evaluation records no Decision, but dedup registrations and
// counter increments that already happened are not rolled back. Callers
// must treat an error as "no decision made", not "no side effects".
func (e *Engine) Evaluate(ctx context.Context, ev *types.Event) (types.Decision, error) {
	start := e.clock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()[:8]
	}

	e.logger.Info("Evaluating event",
		zap.String("event_id", ev.ID),
		zap.String("user_id", ev.UserID),
		zap.String("event_type", ev.EventType),
		zap.String("channel", ev.Channel),
		zap.String("priority_hint", ev.PriorityHint))

	// Step 1: expiry. The one suppression the safety net does not reverse;
	// an expired event is worthless at any priority.
	if ev.IsExpired(start) {
		return e.record(ev, outcome{
			action: types.ActionNever,
			reason: "Event expired before processing",
		}, start), nil
	}

	// Step 2: duplicates.
	dedupReason, err := e.dedup.Check(ctx, ev)
	if err != nil {
		return types.Decision{}, fmt.Errorf("dedup check: %w", err)
	}
	if dedupReason != "" {
		return e.decide(ev, outcome{
			action:      types.ActionNever,
			reason:      dedupReason,
			ruleMatched: "dedup_check",
		}, start), nil
	}

	// Step 3: hard rules. NOW and NEVER short-circuit; a LATER match is
	// carried into the merge after scoring.
	match := e.rules.Evaluate(ev)
	if match != nil && match.Action == types.ActionNow {
		return e.decide(ev, outcome{
			action:      types.ActionNow,
			score:       1.0,
			reason:      match.Reason,
			ruleMatched: match.RuleName,
		}, start), nil
	}
	if match != nil && match.Action == types.ActionNever {
		return e.decide(ev, outcome{
			action:      types.ActionNever,
			reason:      match.Reason,
			ruleMatched: match.RuleName,
		}, start), nil
	}

	// Step 4: fatigue. Both counters advance on every evaluation that gets
	// this far, whatever the outcome, so suppressed sends still count
	// toward the caps.
	freqReason, err := e.frequency.CheckFrequency(ctx, ev)
	if err != nil {
		return types.Decision{}, fmt.Errorf("frequency check: %w", err)
	}
	dailyReason, err := e.frequency.CheckDailyCap(ctx, ev)
	if err != nil {
		return types.Decision{}, fmt.Errorf("daily cap check: %w", err)
	}

	urgent := ev.IsUrgent()
	if freqReason != "" && !urgent {
		if ev.EventType == "promotion" || ev.EventType == "system_event" {
			return e.decide(ev, outcome{
				action:      types.ActionNever,
				score:       0.1,
				reason:      freqReason,
				ruleMatched: "frequency_cap",
			}, start), nil
		}
		return e.decide(ev, outcome{
			action:      types.ActionLater,
			score:       0.3,
			reason:      freqReason + " — batched to digest",
			ruleMatched: "frequency_cap",
		}, start), nil
	}
	if dailyReason != "" && !urgent {
		return e.decide(ev, outcome{
			action:      types.ActionLater,
			score:       0.3,
			reason:      dailyReason + " — batched to digest",
			ruleMatched: "daily_cap",
		}, start), nil
	}

	// Step 5: scoring. The recent count is read after the increment, so it
	// includes the event under evaluation.
	recentCount, err := e.frequency.RecentCount(ctx, ev)
	if err != nil {
		return types.Decision{}, fmt.Errorf("recent count: %w", err)
	}
	res, err := e.scorer.Score(ctx, ev, recentCount, ev.QuietHours())
	if err != nil {
		return types.Decision{}, err
	}

	// Step 6: merge. A LATER rule holds a scorer NOW back to LATER unless
	// the event is urgent; the score stays the scorer's score either way.
	out := outcome{
		action:       res.Action,
		score:        res.Score,
		reason:       res.Reason,
		aiUsed:       res.AIUsed,
		fallbackMode: res.FallbackMode,
	}
	if match != nil {
		out.ruleMatched = match.RuleName
		if match.Action == types.ActionLater && out.action == types.ActionNow && !urgent {
			out.action = types.ActionLater
			out.reason = fmt.Sprintf("%s (overrides AI NOW suggestion)", match.Reason)
		}
	}
	return e.decide(ev, out, start), nil
}

// decide applies the safety net before recording: an urgent event never
// ends suppressed by anything past the expiry check.
func (e *Engine) decide(ev *types.Event, out outcome, start time.Time) types.Decision {
	if out.action == types.ActionNever && ev.IsUrgent() {
		out.action = types.ActionNow
		out.score = 0.9
		out.reason = fmt.Sprintf("[SAFETY NET] High-priority event cannot be suppressed. Original: %s", out.reason)
	}
	return e.record(ev, out, start)
}

// record stamps, audits, and instruments the decision.
func (e *Engine) record(ev *types.Event, out outcome, start time.Time) types.Decision {
	now := e.clock()
	d := types.Decision{
		EventID:      ev.ID,
		UserID:       ev.UserID,
		Action:       out.action,
		Score:        out.score,
		Reason:       out.reason,
		RuleMatched:  out.ruleMatched,
		AIUsed:       out.aiUsed,
		FallbackMode: out.fallbackMode,
		DecidedAt:    now.UTC().Format(time.RFC3339),
	}

	e.audit.Record(d)
	e.metrics.ObserveDecision(d.Action, d.FallbackMode, now.Sub(start).Seconds())
	e.metrics.SetBreakerState(e.scorer.Breaker().State())

	fields := []zap.Field{
		zap.String("event_id", d.EventID),
		zap.String("user_id", d.UserID),
		zap.String("action", d.Action),
		zap.Float64("score", d.Score),
		zap.String("reason", d.Reason),
	}
	if d.RuleMatched != "" {
		fields = append(fields, zap.String("rule_matched", d.RuleMatched))
	}
	if d.FallbackMode {
		fields = append(fields, zap.Bool("fallback_mode", true))
	}
	e.logger.Info("Decision", fields...)
	return d
}
