//go:build e2e
// +build e2e

package e2e

import (
	"fmt"

	"github.com/stretchr/testify/assert"

	"github.com/shrikectl/shrike/internal/scoring"
	"github.com/shrikectl/shrike/internal/types"
)

func (s *E2ESuite) TestSecurityAlertAlwaysNow() {
	d := s.evaluate(types.Event{
		UserID:       "u1",
		EventType:    "security_alert",
		Channel:      "push",
		PriorityHint: "critical",
		Title:        "Login from new device",
	})
	assert.Equal(s.T(), types.ActionNow, d.Action)
	assert.Contains(s.T(), d.Reason, "Security alerts")
	assert.Equal(s.T(), "always_send_security_alerts", d.RuleMatched)
}

func (s *E2ESuite) TestLowPriorityPromotionSuppressed() {
	d := s.evaluate(types.Event{
		UserID:       "u1",
		EventType:    "promotion",
		Channel:      "push",
		PriorityHint: "low",
		Title:        "Sale",
	})
	assert.Equal(s.T(), types.ActionNever, d.Action)
	assert.Contains(s.T(), d.Reason, "Low-priority promotions")
}

func (s *E2ESuite) TestExactDuplicateSuppressed() {
	ev := types.Event{
		UserID:    "u2",
		EventType: "message",
		Channel:   "push",
		Title:     "Sarah: Hey!",
		DedupeKey: "k1",
	}

	first := s.evaluate(ev)
	assert.NotEqual(s.T(), types.ActionNever, first.Action)

	second := s.evaluate(ev)
	assert.Equal(s.T(), types.ActionNever, second.Action)
	assert.Contains(s.T(), second.Reason, "Exact duplicate")
	assert.Contains(s.T(), second.Reason, "k1")
	assert.Equal(s.T(), "dedup_check", second.RuleMatched)
}

func (s *E2ESuite) TestNearDuplicateSuppressed() {
	first := s.evaluate(types.Event{
		UserID:    "u2",
		EventType: "message",
		Channel:   "push",
		Title:     "Sarah: Hey!",
	})
	assert.NotEqual(s.T(), types.ActionNever, first.Action)

	// Same content after normalization, no dedupe key.
	second := s.evaluate(types.Event{
		UserID:    "u2",
		EventType: "message",
		Channel:   "push",
		Title:     "Sarah Hey",
	})
	assert.Equal(s.T(), types.ActionNever, second.Action)
	assert.Contains(s.T(), second.Reason, "Near-duplicate")
}

func (s *E2ESuite) TestUpdateFrequencyCap() {
	// The first five pass the frequency gate: three defer on score, two get
	// suppressed by the recency penalty. The sixth and seventh trip the
	// 5/hour update cap and are batched.
	wantActions := []string{
		types.ActionLater, types.ActionLater, types.ActionLater,
		types.ActionNever, types.ActionNever,
		types.ActionLater, types.ActionLater,
	}
	for i, want := range wantActions {
		d := s.evaluate(types.Event{
			UserID:       "u3",
			EventType:    "update",
			Channel:      "in_app",
			PriorityHint: "low",
			Title:        fmt.Sprintf("Build %d finished", i+1),
		})
		assert.Equal(s.T(), want, d.Action, "event %d", i+1)
		if i >= 5 {
			assert.Equal(s.T(), "frequency_cap", d.RuleMatched, "event %d", i+1)
			assert.Contains(s.T(), d.Reason, "Frequency cap exceeded", "event %d", i+1)
			assert.Contains(s.T(), d.Reason, "batched to digest", "event %d", i+1)
		} else {
			assert.Equal(s.T(), "defer_updates_to_digest", d.RuleMatched, "event %d", i+1)
		}
	}
}

func (s *E2ESuite) TestQuietHoursDeferReminder() {
	d := s.evaluate(types.Event{
		UserID:       "u4",
		EventType:    "reminder",
		Channel:      "push",
		PriorityHint: "medium",
		Title:        "Standup in 15",
		Metadata:     map[string]interface{}{"quiet_hours": true},
	})
	assert.Equal(s.T(), types.ActionLater, d.Action)
	assert.True(s.T(), d.AIUsed)
	assert.Contains(s.T(), d.Reason, "quiet hours")
}

func (s *E2ESuite) TestFallbackWhenScorerUnavailable() {
	s.buildServer(scoring.Options{Disabled: true})

	d := s.evaluate(types.Event{
		UserID:    "u5",
		EventType: "message",
		Channel:   "push",
		Title:     "Ping",
	})
	assert.False(s.T(), d.AIUsed)
	assert.True(s.T(), d.FallbackMode)
	assert.Contains(s.T(), d.Reason, "[FALLBACK]")
	assert.Contains(s.T(), d.Reason, "AI scorer unavailable")
}

func (s *E2ESuite) TestHighPriorityPromotionNotSuppressed() {
	d := s.evaluate(types.Event{
		UserID:       "u6",
		EventType:    "promotion",
		Channel:      "push",
		PriorityHint: "high",
		Title:        "Your plan expires today",
	})
	// The promotion-suppress rule misses on priority, and the safety net
	// forbids NEVER for urgent events regardless.
	assert.NotEqual(s.T(), types.ActionNever, d.Action)
}

func (s *E2ESuite) TestExpiredEventNever() {
	d := s.evaluate(types.Event{
		UserID:       "u7",
		EventType:    "reminder",
		Channel:      "push",
		PriorityHint: "critical",
		Title:        "Meeting started",
		ExpiresAt:    "2020-01-01T00:00:00Z",
	})
	assert.Equal(s.T(), types.ActionNever, d.Action)
	assert.Equal(s.T(), "Event expired before processing", d.Reason)
	assert.Zero(s.T(), d.Score)
}

func (s *E2ESuite) TestUrgentEventsNeverSuppressed() {
	// Urgent promotions hammer the caps; none may come back NEVER.
	for i := 0; i < 10; i++ {
		d := s.evaluate(types.Event{
			UserID:       "u8",
			EventType:    "promotion",
			Channel:      "sms",
			PriorityHint: "high",
			Title:        fmt.Sprintf("Renewal notice %d", i),
		})
		assert.NotEqual(s.T(), types.ActionNever, d.Action, "event %d", i)
	}
}

func (s *E2ESuite) TestAuditSizeMatchesEvaluations() {
	for i := 0; i < 4; i++ {
		s.evaluate(types.Event{
			UserID:    "u9",
			EventType: "message",
			Channel:   "email",
			Title:     fmt.Sprintf("Thread %d", i),
		})
	}
	assert.Equal(s.T(), 4, s.engine.Audit().Size())

	var stats struct {
		TotalEvaluated int `json:"total_evaluated"`
	}
	s.getJSON("/v1/stats", &stats)
	assert.Equal(s.T(), 4, stats.TotalEvaluated)
}
