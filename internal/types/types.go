// Package types defines the data model shared across the engine: inbound
// notification events, the decisions produced for them, and the declarative
// rules that shape those decisions.
package types

import "time"

// Actions an evaluation can produce.
const (
	// ActionNow dispatches the notification immediately.
	ActionNow = "NOW"
	// ActionLater defers the notification into a digest.
	ActionLater = "LATER"
	// ActionNever suppresses the notification entirely.
	ActionNever = "NEVER"
)

// Priority hints carried by inbound events. The hint is optional; an absent
// hint is a valid state and rules may match on it explicitly.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Condition operators supported by the rules engine.
const (
	OpEq  = "eq"
	OpNeq = "neq"
	OpIn  = "in"
)

// Event is an inbound notification to classify. UserID, EventType, and
// Channel are required; everything else is optional context supplied by the
// producer. ID is assigned by the engine when absent.
type Event struct {
	ID           string                 `json:"id,omitempty"`
	UserID       string                 `json:"user_id"`
	EventType    string                 `json:"event_type"`
	Channel      string                 `json:"channel"`
	Title        string                 `json:"title,omitempty"`
	Message      string                 `json:"message,omitempty"`
	Source       string                 `json:"source,omitempty"`
	PriorityHint string                 `json:"priority_hint,omitempty"`
	Timestamp    string                 `json:"timestamp,omitempty"`
	ExpiresAt    string                 `json:"expires_at,omitempty"`
	DedupeKey    string                 `json:"dedupe_key,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// IsExpired reports whether the event's expiry deadline is strictly in the
// past as of now. Events without a deadline, or with one that does not
// parse, never expire.
func (e *Event) IsExpired(now time.Time) bool {
	if e.ExpiresAt == "" {
		return false
	}
	exp, ok := ParseTime(e.ExpiresAt)
	if !ok {
		return false
	}
	return exp.Before(now)
}

// IsUrgent reports whether the event carries a critical or high priority
// hint. Urgent events may be deferred but never suppressed.
func (e *Event) IsUrgent() bool {
	return e.PriorityHint == PriorityCritical || e.PriorityHint == PriorityHigh
}

// QuietHours reports whether the producer flagged the event as arriving
// during the recipient's quiet hours. Only an explicit boolean true in
// metadata counts.
func (e *Event) QuietHours() bool {
	v, ok := e.Metadata["quiet_hours"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// ParseTime parses the timestamp formats accepted on the wire: RFC 3339
// with a zone or offset, or a zoneless ISO 8601 form interpreted in local
// time.
func ParseTime(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.Local); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Decision is the engine's verdict for a single event.
type Decision struct {
	EventID       string  `json:"event_id"`
	UserID        string  `json:"user_id"`
	Action        string  `json:"action"`
	Score         float64 `json:"score"`
	Reason        string  `json:"reason"`
	RuleMatched   string  `json:"rule_matched,omitempty"`
	AIUsed        bool    `json:"ai_used"`
	FallbackMode  bool    `json:"fallback_mode"`
	DecidedAt     string  `json:"decided_at"`
	DeferredUntil string  `json:"deferred_until,omitempty"`
}

// Rule pairs a set of conditions with the action taken when they all hold.
// Higher priority rules are evaluated first; within an engine, rule names
// are unique.
type Rule struct {
	Name       string      `json:"name"`
	Priority   int         `json:"priority"`
	Conditions []Condition `json:"conditions"`
	Action     string      `json:"action"`
	Reason     string      `json:"reason"`
}

// Condition is a single predicate on an event field. Field resolves against
// the event's own attributes first, then its metadata. For OpIn the value
// must be a list; a nil element in the list matches an absent field.
type Condition struct {
	Field string      `json:"field"`
	Op    string      `json:"op"`
	Value interface{} `json:"value"`
}
