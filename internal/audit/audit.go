// Package audit keeps the in-memory decision log and the aggregate
// outcome statistics derived from it. A durable deployment would land
// these rows in a relational table instead.
package audit

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/shrikectl/shrike/internal/types"
)

const defaultHistoryLimit = 50

// Stats summarizes every decision recorded so far.
type Stats struct {
	TotalEvaluated  int            `json:"total_evaluated"`
	ByAction        map[string]int `json:"by_action"`
	SuppressionRate float64        `json:"suppression_rate"`
	DeferredRate    float64        `json:"deferred_rate"`
}

// Log is an append-only record of evaluation outcomes.
type Log struct {
	logger *zap.Logger

	mu        sync.RWMutex
	decisions []types.Decision
}

// NewLog creates an empty log.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("audit")}
}

// Record appends a decision.
func (l *Log) Record(d types.Decision) {
	l.mu.Lock()
	l.decisions = append(l.decisions, d)
	l.mu.Unlock()

	l.logger.Debug("Recorded decision",
		zap.String("event_id", d.EventID),
		zap.String("user_id", d.UserID),
		zap.String("action", d.Action))
}

// UserHistory returns the user's decisions in insertion order, newest
// last. An empty action matches every action; a non-positive limit falls
// back to the default of 50.
func (l *Log) UserHistory(userID, action string, limit int) []types.Decision {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	matched := make([]types.Decision, 0, limit)
	for _, d := range l.decisions {
		if d.UserID != userID {
			continue
		}
		if action != "" && d.Action != action {
			continue
		}
		matched = append(matched, d)
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}

// All returns a copy of the full log in insertion order.
func (l *Log) All() []types.Decision {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]types.Decision, len(l.decisions))
	copy(out, l.decisions)
	return out
}

// Size returns the number of recorded decisions.
func (l *Log) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.decisions)
}

// Stats aggregates the log. ByAction always carries the NOW, LATER and
// NEVER keys; the rates are percentages rounded to one decimal.
func (l *Log) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	byAction := map[string]int{
		types.ActionNow:   0,
		types.ActionLater: 0,
		types.ActionNever: 0,
	}
	for _, d := range l.decisions {
		byAction[d.Action]++
	}

	total := len(l.decisions)
	denom := total
	if denom == 0 {
		denom = 1
	}
	return Stats{
		TotalEvaluated:  total,
		ByAction:        byAction,
		SuppressionRate: round1(float64(byAction[types.ActionNever]) / float64(denom) * 100),
		DeferredRate:    round1(float64(byAction[types.ActionLater]) / float64(denom) * 100),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
