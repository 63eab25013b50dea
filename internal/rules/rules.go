// Package rules matches events against a priority-ordered list of
// declarative rules. Built-in defaults keep security and critical traffic
// flowing and mute the noisiest types; operators extend the list at runtime
// or from a rules file.
package rules

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"
	"sigs.k8s.io/yaml"

	"github.com/shrikectl/shrike/internal/types"
)

// Match is the outcome of a successful rule evaluation.
type Match struct {
	Action   string
	Reason   string
	RuleName string
}

// Engine evaluates events against its rule list, highest priority first.
// Reads run concurrently; mutations re-sort the list.
type Engine struct {
	mu     sync.RWMutex
	rules  []types.Rule
	logger *zap.Logger
}

// NewEngine creates an Engine seeded with the default ruleset.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		rules:  defaultRules(),
		logger: logger.Named("rules"),
	}
	e.sortLocked()
	return e
}

// defaultRules returns the built-in ruleset. Names and reasons are part of
// the engine's observable behavior; decisions carry them verbatim.
func defaultRules() []types.Rule {
	return []types.Rule{
		{
			Name:     "always_send_security_alerts",
			Priority: 100,
			Conditions: []types.Condition{
				{Field: "event_type", Op: types.OpEq, Value: "security_alert"},
			},
			Action: types.ActionNow,
			Reason: "Security alerts always sent immediately",
		},
		{
			Name:     "always_send_critical",
			Priority: 99,
			Conditions: []types.Condition{
				{Field: "priority_hint", Op: types.OpEq, Value: "critical"},
			},
			Action: types.ActionNow,
			Reason: "Critical priority always sent immediately",
		},
		{
			Name:     "suppress_promos_low_priority",
			Priority: 50,
			Conditions: []types.Condition{
				{Field: "event_type", Op: types.OpEq, Value: "promotion"},
				{Field: "priority_hint", Op: types.OpIn, Value: []interface{}{"low", nil}},
			},
			Action: types.ActionNever,
			Reason: "Low-priority promotions suppressed to reduce noise",
		},
		{
			Name:     "defer_updates_to_digest",
			Priority: 40,
			Conditions: []types.Condition{
				{Field: "event_type", Op: types.OpEq, Value: "update"},
			},
			Action: types.ActionLater,
			Reason: "Updates batched into daily digest",
		},
	}
}

// Evaluate returns the first rule matching the event, or nil. A rule
// matches only when all of its conditions hold.
func (e *Engine) Evaluate(ev *types.Event) *Match {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i := range e.rules {
		if matches(&e.rules[i], ev) {
			r := &e.rules[i]
			return &Match{Action: r.Action, Reason: r.Reason, RuleName: r.Name}
		}
	}
	return nil
}

// AddRule validates and appends a rule, then restores priority order. Rule
// names are unique within the engine.
func (e *Engine) AddRule(rule types.Rule) error {
	if err := Validate(rule); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.rules {
		if existing.Name == rule.Name {
			return fmt.Errorf("rule %q already exists", rule.Name)
		}
	}
	e.rules = append(e.rules, rule)
	e.sortLocked()
	e.logger.Info("Rule added",
		zap.String("rule", rule.Name),
		zap.Int("priority", rule.Priority),
		zap.String("action", rule.Action),
	)
	return nil
}

// LoadFile appends rules from a file holding an array of rule objects,
// YAML or JSON, and returns the number added. Rules already added stay if a
// later entry fails.
func (e *Engine) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading rules file: %w", err)
	}
	var loaded []types.Rule
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return 0, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	added := 0
	for _, rule := range loaded {
		if err := e.AddRule(rule); err != nil {
			return added, fmt.Errorf("loading rules file %s: %w", path, err)
		}
		added++
	}
	return added, nil
}

// Rules returns a copy of the current ruleset in evaluation order.
func (e *Engine) Rules() []types.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]types.Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Len returns the number of rules.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Validate checks that a rule is well formed: named, a known action, and
// known condition operators with list values for "in".
func Validate(rule types.Rule) error {
	if rule.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	switch rule.Action {
	case types.ActionNow, types.ActionLater, types.ActionNever:
	default:
		return fmt.Errorf("rule %q: unknown action %q", rule.Name, rule.Action)
	}
	for _, cond := range rule.Conditions {
		if cond.Field == "" {
			return fmt.Errorf("rule %q: condition field is required", rule.Name)
		}
		switch cond.Op {
		case types.OpEq, types.OpNeq:
		case types.OpIn:
			if _, ok := cond.Value.([]interface{}); !ok {
				return fmt.Errorf("rule %q: %q condition needs a list value", rule.Name, types.OpIn)
			}
		default:
			return fmt.Errorf("rule %q: unknown op %q", rule.Name, cond.Op)
		}
	}
	return nil
}

func (e *Engine) sortLocked() {
	sort.SliceStable(e.rules, func(i, j int) bool {
		return e.rules[i].Priority > e.rules[j].Priority
	})
}

func matches(r *types.Rule, ev *types.Event) bool {
	for _, cond := range r.Conditions {
		actual := resolveField(ev, cond.Field)
		switch cond.Op {
		case types.OpEq:
			if !valueEquals(actual, cond.Value) {
				return false
			}
		case types.OpNeq:
			if valueEquals(actual, cond.Value) {
				return false
			}
		case types.OpIn:
			list, ok := cond.Value.([]interface{})
			if !ok {
				return false
			}
			if !containsValue(list, actual) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// resolveField looks up a condition field on the event itself, then in its
// metadata. Optional attributes that are unset resolve to nil so rules can
// match on absence.
func resolveField(ev *types.Event, field string) interface{} {
	var s string
	switch field {
	case "id":
		s = ev.ID
	case "user_id":
		s = ev.UserID
	case "event_type":
		s = ev.EventType
	case "channel":
		s = ev.Channel
	case "title":
		s = ev.Title
	case "message":
		s = ev.Message
	case "source":
		s = ev.Source
	case "priority_hint":
		s = ev.PriorityHint
	case "timestamp":
		s = ev.Timestamp
	case "expires_at":
		s = ev.ExpiresAt
	case "dedupe_key":
		s = ev.DedupeKey
	default:
		if v, ok := ev.Metadata[field]; ok {
			return v
		}
		return nil
	}
	if s == "" {
		return nil
	}
	return s
}

func containsValue(list []interface{}, v interface{}) bool {
	for _, candidate := range list {
		if valueEquals(v, candidate) {
			return true
		}
	}
	return false
}

func valueEquals(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a, b)
}
