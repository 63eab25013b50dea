//go:build e2e
// +build e2e

package e2e

import (
	"net/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrikectl/shrike/internal/types"
)

func (s *E2ESuite) TestAddedRuleChangesDecisions() {
	resp := s.postJSON("/v1/rules", types.Rule{
		Name:     "mute_build_bot",
		Priority: 90,
		Conditions: []types.Condition{
			{Field: "source", Op: types.OpEq, Value: "build-bot"},
			{Field: "priority_hint", Op: types.OpNeq, Value: "critical"},
		},
		Action: types.ActionNever,
		Reason: "Build bot chatter suppressed",
	})
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusCreated, resp.StatusCode)

	d := s.evaluate(types.Event{
		UserID:    "u1",
		EventType: "message",
		Channel:   "push",
		Source:    "build-bot",
		Title:     "Build green",
	})
	assert.Equal(s.T(), types.ActionNever, d.Action)
	assert.Equal(s.T(), "mute_build_bot", d.RuleMatched)
	assert.Equal(s.T(), "Build bot chatter suppressed", d.Reason)

	var listed struct {
		Rules []types.Rule `json:"rules"`
	}
	s.getJSON("/v1/rules", &listed)
	require.Len(s.T(), listed.Rules, 5)
	assert.Equal(s.T(), "mute_build_bot", listed.Rules[2].Name)
}

func (s *E2ESuite) TestHistoryFilter() {
	s.evaluate(types.Event{
		UserID: "u1", EventType: "security_alert", Channel: "push", Title: "New login",
	})
	s.evaluate(types.Event{
		UserID: "u1", EventType: "promotion", Channel: "push", PriorityHint: "low", Title: "Sale",
	})
	s.evaluate(types.Event{
		UserID: "u2", EventType: "security_alert", Channel: "push", Title: "New login",
	})

	var body struct {
		UserID  string           `json:"user_id"`
		Total   int              `json:"total"`
		Results []types.Decision `json:"results"`
	}
	s.getJSON("/v1/notifications/history/u1?action=NOW", &body)
	require.Equal(s.T(), 1, body.Total)
	assert.Equal(s.T(), types.ActionNow, body.Results[0].Action)
	assert.Equal(s.T(), "u1", body.Results[0].UserID)

	s.getJSON("/v1/notifications/history/u1", &body)
	assert.Equal(s.T(), 2, body.Total)
}

func (s *E2ESuite) TestHealthAndForceDispatch() {
	var health struct {
		Status       string            `json:"status"`
		Components   map[string]string `json:"components"`
		FallbackMode bool              `json:"fallback_mode"`
	}
	s.getJSON("/v1/health", &health)
	assert.Equal(s.T(), "ok", health.Status)
	assert.Equal(s.T(), "CLOSED", health.Components["circuit_breaker"])
	assert.False(s.T(), health.FallbackMode)

	resp := s.postJSON("/v1/notifications/abc12345/dispatch", map[string]string{
		"override_reason": "on-call override",
	})
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	// Force dispatch is bookkeeping only; the audit log is untouched.
	assert.Zero(s.T(), s.engine.Audit().Size())
}

func (s *E2ESuite) TestStatsRates() {
	s.evaluate(types.Event{
		UserID: "u1", EventType: "security_alert", Channel: "push", Title: "New login",
	})
	s.evaluate(types.Event{
		UserID: "u1", EventType: "promotion", Channel: "push", PriorityHint: "low", Title: "Sale",
	})

	var stats struct {
		TotalEvaluated  int            `json:"total_evaluated"`
		ByAction        map[string]int `json:"by_action"`
		SuppressionRate float64        `json:"suppression_rate"`
		DeferredRate    float64        `json:"deferred_rate"`
	}
	s.getJSON("/v1/stats", &stats)
	assert.Equal(s.T(), 2, stats.TotalEvaluated)
	assert.Equal(s.T(), 1, stats.ByAction[types.ActionNow])
	assert.Equal(s.T(), 1, stats.ByAction[types.ActionNever])
	assert.InDelta(s.T(), 50.0, stats.SuppressionRate, 1e-9)
	assert.InDelta(s.T(), 0.0, stats.DeferredRate, 1e-9)
}
