package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shrikectl/shrike/internal/types"
)

// ContextScorer rates an event with awareness of its content and the
// recipient's situation. Implementations must honor the same thresholds
// and Result shape as the deterministic scorer; the pipeline treats the
// two as interchangeable.
type ContextScorer interface {
	Score(ctx context.Context, ev *types.Event, recentCount int64, quietHours bool) (Result, error)
}

// typeScores is the simulated model's prior per event type.
var typeScores = map[string]float64{
	"message":        0.70,
	"security_alert": 0.95,
	"alert":          0.85,
	"reminder":       0.55,
	"update":         0.40,
	"promotion":      0.20,
	"system_event":   0.60,
}

const defaultTypeScore = 0.50

// Simulated is a table-driven stand-in for the hosted scoring model, so
// the full pipeline including the breaker runs without network access.
// Deployments point the engine at a Remote scorer instead.
type Simulated struct{}

var _ ContextScorer = (*Simulated)(nil)

// NewSimulated creates the stand-in scorer.
func NewSimulated() *Simulated {
	return &Simulated{}
}

// Score implements ContextScorer. The reason enumerates every factor that
// moved the score.
func (s *Simulated) Score(_ context.Context, ev *types.Event, recentCount int64, quietHours bool) (Result, error) {
	score, ok := typeScores[ev.EventType]
	if !ok {
		score = defaultTypeScore
	}
	factors := []string{fmt.Sprintf("event_type='%s'", ev.EventType)}

	switch ev.PriorityHint {
	case types.PriorityCritical:
		score = math.Max(score, 0.93)
		factors = append(factors, "critical priority")
	case types.PriorityHigh:
		score = math.Max(score, 0.78)
	case types.PriorityLow:
		score = math.Min(score, 0.35)
	}

	if recentCount > 3 {
		score -= 0.12 * float64(recentCount-3)
		factors = append(factors, fmt.Sprintf("%d recent similar events", recentCount))
	}

	if quietHours && !ev.IsUrgent() {
		score -= 0.18
		factors = append(factors, "quiet hours")
	}

	score = round3(clamp01(score))
	action := types.ActionNever
	switch {
	case score >= nowThreshold:
		action = types.ActionNow
	case score >= laterThreshold:
		action = types.ActionLater
	}

	return Result{
		Score:        score,
		Action:       action,
		Reason:       fmt.Sprintf("[AI] Score %.2f: %s", score, strings.Join(factors, ", ")),
		AIUsed:       true,
		FallbackMode: false,
	}, nil
}
