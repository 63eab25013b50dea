package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvent_IsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt string
		want      bool
	}{
		{name: "no deadline", expiresAt: "", want: false},
		{name: "future deadline", expiresAt: "2025-06-01T13:00:00Z", want: false},
		{name: "past deadline", expiresAt: "2025-06-01T11:00:00Z", want: true},
		{name: "past with offset", expiresAt: "2025-06-01T10:00:00+02:00", want: true},
		{name: "zoneless long past", expiresAt: "2000-01-01T00:00:00", want: true},
		{name: "unparseable", expiresAt: "tomorrow-ish", want: false},
		{name: "exactly now is not expired", expiresAt: "2025-06-01T12:00:00Z", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &Event{UserID: "u1", EventType: "message", Channel: "push", ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, ev.IsExpired(now))
		})
	}
}

func TestEvent_IsUrgent(t *testing.T) {
	tests := []struct {
		hint string
		want bool
	}{
		{hint: PriorityCritical, want: true},
		{hint: PriorityHigh, want: true},
		{hint: PriorityMedium, want: false},
		{hint: PriorityLow, want: false},
		{hint: "", want: false},
	}

	for _, tt := range tests {
		ev := &Event{PriorityHint: tt.hint}
		assert.Equal(t, tt.want, ev.IsUrgent(), "hint %q", tt.hint)
	}
}

func TestEvent_QuietHours(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]interface{}
		want     bool
	}{
		{name: "no metadata", metadata: nil, want: false},
		{name: "flag absent", metadata: map[string]interface{}{"locale": "en"}, want: false},
		{name: "flag true", metadata: map[string]interface{}{"quiet_hours": true}, want: true},
		{name: "flag false", metadata: map[string]interface{}{"quiet_hours": false}, want: false},
		{name: "non-bool flag ignored", metadata: map[string]interface{}{"quiet_hours": "yes"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &Event{Metadata: tt.metadata}
			assert.Equal(t, tt.want, ev.QuietHours())
		})
	}
}

func TestParseTime(t *testing.T) {
	got, ok := ParseTime("2025-06-01T08:30:00Z")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC), got.UTC())

	_, ok = ParseTime("June 1st")
	assert.False(t, ok)
}
