package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/shrikectl/shrike/internal/types"
)

// Result is the scoring contract shared by the deterministic scorer and
// every contextual scorer implementation.
type Result struct {
	Score        float64 `json:"score"`
	Action       string  `json:"action"`
	Reason       string  `json:"reason"`
	AIUsed       bool    `json:"ai_used"`
	FallbackMode bool    `json:"fallback_mode"`
}

// Action thresholds shared by all scorers.
const (
	nowThreshold   = 0.75
	laterThreshold = 0.35
)

// priorityScores maps the producer's hint to a base score; absent or
// unknown hints score 0.40.
var priorityScores = map[string]float64{
	types.PriorityCritical: 0.95,
	types.PriorityHigh:     0.78,
	types.PriorityMedium:   0.52,
	types.PriorityLow:      0.22,
}

const defaultPriorityScore = 0.40

// channelWeights discounts quieter surfaces; unknown channels weigh 0.7.
var channelWeights = map[string]float64{
	"push":   1.0,
	"sms":    0.9,
	"email":  0.7,
	"in_app": 0.5,
}

const defaultChannelWeight = 0.7

// Deterministic scores events from the priority hint, recency, expiry
// pressure, quiet hours, and channel weight. It is a pure function of its
// inputs and the clock, and doubles as the fallback when the contextual
// scorer is out of service.
type Deterministic struct {
	clock func() time.Time
}

// NewDeterministic creates the scorer.
func NewDeterministic() *Deterministic {
	return &Deterministic{clock: time.Now}
}

// SetClock overrides the time source used for expiry pressure.
func (d *Deterministic) SetClock(clock func() time.Time) {
	d.clock = clock
}

// Score rates the event. recentCount is how many events of the same type
// the user saw in the current window, this one included.
func (d *Deterministic) Score(ev *types.Event, recentCount int64, quietHours bool) Result {
	base, ok := priorityScores[ev.PriorityHint]
	if !ok {
		base = defaultPriorityScore
	}

	base -= math.Min(float64(recentCount)*0.08, 0.25)

	if ev.ExpiresAt != "" {
		if exp, parsed := types.ParseTime(ev.ExpiresAt); parsed {
			minutesLeft := exp.Sub(d.clock()).Minutes()
			if minutesLeft < 10 {
				base += 0.30
			} else if minutesLeft < 60 {
				base += 0.10
			}
		}
	}

	if quietHours {
		base -= 0.20
	}

	weight, ok := channelWeights[ev.Channel]
	if !ok {
		weight = defaultChannelWeight
	}
	base *= weight

	score := round3(clamp01(base))
	action, reason := thresholdAction(score)
	return Result{
		Score:        score,
		Action:       action,
		Reason:       reason,
		AIUsed:       false,
		FallbackMode: true,
	}
}

func thresholdAction(score float64) (string, string) {
	switch {
	case score >= nowThreshold:
		return types.ActionNow, fmt.Sprintf("Score %.2f — high priority, sending immediately", score)
	case score >= laterThreshold:
		return types.ActionLater, fmt.Sprintf("Score %.2f — medium priority, deferred", score)
	default:
		return types.ActionNever, fmt.Sprintf("Score %.2f — low value, suppressed", score)
	}
}

func clamp01(x float64) float64 {
	return math.Max(0.0, math.Min(1.0, x))
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
