package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shrikectl/shrike/internal/types"
)

func TestEngine_Defaults(t *testing.T) {
	e := NewEngine(zap.NewNop())

	require.Equal(t, 4, e.Len())
	got := e.Rules()
	assert.Equal(t, "always_send_security_alerts", got[0].Name)
	assert.Equal(t, "always_send_critical", got[1].Name)
	assert.Equal(t, "suppress_promos_low_priority", got[2].Name)
	assert.Equal(t, "defer_updates_to_digest", got[3].Name)
}

func TestEngine_Evaluate(t *testing.T) {
	e := NewEngine(zap.NewNop())

	tests := []struct {
		name       string
		event      types.Event
		wantMatch  bool
		wantAction string
		wantRule   string
	}{
		{
			name:       "security alert always now",
			event:      types.Event{UserID: "u1", EventType: "security_alert", Channel: "push"},
			wantMatch:  true,
			wantAction: types.ActionNow,
			wantRule:   "always_send_security_alerts",
		},
		{
			name:       "critical hint always now",
			event:      types.Event{UserID: "u1", EventType: "message", Channel: "push", PriorityHint: "critical"},
			wantMatch:  true,
			wantAction: types.ActionNow,
			wantRule:   "always_send_critical",
		},
		{
			name:       "low priority promotion suppressed",
			event:      types.Event{UserID: "u1", EventType: "promotion", Channel: "push", PriorityHint: "low"},
			wantMatch:  true,
			wantAction: types.ActionNever,
			wantRule:   "suppress_promos_low_priority",
		},
		{
			name:       "hintless promotion suppressed via nil in list",
			event:      types.Event{UserID: "u1", EventType: "promotion", Channel: "push"},
			wantMatch:  true,
			wantAction: types.ActionNever,
			wantRule:   "suppress_promos_low_priority",
		},
		{
			name:      "high priority promotion escapes the suppress rule",
			event:     types.Event{UserID: "u1", EventType: "promotion", Channel: "push", PriorityHint: "high"},
			wantMatch: false,
		},
		{
			name:       "update deferred to digest",
			event:      types.Event{UserID: "u1", EventType: "update", Channel: "in_app", PriorityHint: "low"},
			wantMatch:  true,
			wantAction: types.ActionLater,
			wantRule:   "defer_updates_to_digest",
		},
		{
			name:      "plain message matches nothing",
			event:     types.Event{UserID: "u1", EventType: "message", Channel: "push", PriorityHint: "medium"},
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := e.Evaluate(&tt.event)
			if !tt.wantMatch {
				assert.Nil(t, m)
				return
			}
			require.NotNil(t, m)
			assert.Equal(t, tt.wantAction, m.Action)
			assert.Equal(t, tt.wantRule, m.RuleName)
			assert.NotEmpty(t, m.Reason)
		})
	}
}

func TestEngine_Evaluate_MetadataFallback(t *testing.T) {
	e := NewEngine(zap.NewNop())
	require.NoError(t, e.AddRule(types.Rule{
		Name:     "mute_staging_tenants",
		Priority: 120,
		Conditions: []types.Condition{
			{Field: "tenant_tier", Op: types.OpEq, Value: "staging"},
		},
		Action: types.ActionNever,
		Reason: "Staging tenants receive no user notifications",
	}))

	ev := &types.Event{
		UserID:    "u1",
		EventType: "message",
		Channel:   "push",
		Metadata:  map[string]interface{}{"tenant_tier": "staging"},
	}
	m := e.Evaluate(ev)
	require.NotNil(t, m)
	assert.Equal(t, "mute_staging_tenants", m.RuleName)

	ev.Metadata["tenant_tier"] = "prod"
	assert.Nil(t, e.Evaluate(ev))
}

func TestEngine_Evaluate_Neq(t *testing.T) {
	e := NewEngine(zap.NewNop())
	require.NoError(t, e.AddRule(types.Rule{
		Name:     "defer_non_push",
		Priority: 10,
		Conditions: []types.Condition{
			{Field: "channel", Op: types.OpNeq, Value: "push"},
		},
		Action: types.ActionLater,
		Reason: "Only push interrupts",
	}))

	m := e.Evaluate(&types.Event{UserID: "u1", EventType: "message", Channel: "email"})
	require.NotNil(t, m)
	assert.Equal(t, "defer_non_push", m.RuleName)

	assert.Nil(t, e.Evaluate(&types.Event{UserID: "u1", EventType: "message", Channel: "push"}))
}

func TestEngine_AddRule_OrderAndValidation(t *testing.T) {
	e := NewEngine(zap.NewNop())

	require.NoError(t, e.AddRule(types.Rule{
		Name:     "vip_first",
		Priority: 150,
		Conditions: []types.Condition{
			{Field: "event_type", Op: types.OpEq, Value: "security_alert"},
		},
		Action: types.ActionNow,
		Reason: "VIP routing",
	}))
	assert.Equal(t, "vip_first", e.Rules()[0].Name, "highest priority should evaluate first")

	m := e.Evaluate(&types.Event{UserID: "u1", EventType: "security_alert", Channel: "push"})
	require.NotNil(t, m)
	assert.Equal(t, "vip_first", m.RuleName)

	tests := []struct {
		name string
		rule types.Rule
	}{
		{name: "duplicate name", rule: types.Rule{Name: "vip_first", Action: types.ActionNow, Reason: "r"}},
		{name: "missing name", rule: types.Rule{Action: types.ActionNow, Reason: "r"}},
		{name: "unknown action", rule: types.Rule{Name: "bad_action", Action: "MAYBE", Reason: "r"}},
		{
			name: "unknown op",
			rule: types.Rule{
				Name:       "bad_op",
				Action:     types.ActionNow,
				Reason:     "r",
				Conditions: []types.Condition{{Field: "channel", Op: "matches", Value: "push"}},
			},
		},
		{
			name: "in without list",
			rule: types.Rule{
				Name:       "bad_in",
				Action:     types.ActionNow,
				Reason:     "r",
				Conditions: []types.Condition{{Field: "channel", Op: types.OpIn, Value: "push"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, e.AddRule(tt.rule))
		})
	}
}

func TestEngine_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	content := `[
  {
    "name": "mute_inapp_promos",
    "priority": 60,
    "conditions": [
      {"field": "event_type", "op": "eq", "value": "promotion"},
      {"field": "channel", "op": "eq", "value": "in_app"}
    ],
    "action": "NEVER",
    "reason": "In-app surface has its own promo placement"
  },
  {
    "name": "defer_weekend_reports",
    "priority": 30,
    "conditions": [
      {"field": "source", "op": "in", "value": ["reporting", "analytics"]}
    ],
    "action": "LATER",
    "reason": "Reports wait for the digest"
  }
]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	e := NewEngine(zap.NewNop())
	added, err := e.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 6, e.Len())

	m := e.Evaluate(&types.Event{UserID: "u1", EventType: "promotion", Channel: "in_app", PriorityHint: "high"})
	require.NotNil(t, m)
	assert.Equal(t, "mute_inapp_promos", m.RuleName)

	m = e.Evaluate(&types.Event{UserID: "u1", EventType: "message", Channel: "email", Source: "analytics"})
	require.NotNil(t, m)
	assert.Equal(t, "defer_weekend_reports", m.RuleName)
}

func TestEngine_LoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not": "a list"}`), 0o600))

	e := NewEngine(zap.NewNop())
	_, err := e.LoadFile(path)
	assert.Error(t, err)

	_, err = e.LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
