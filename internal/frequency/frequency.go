// Package frequency enforces the fatigue caps: per-type hourly limits and
// per-channel daily limits, both backed by fixed-window counters.
package frequency

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shrikectl/shrike/internal/kvstore"
	"github.com/shrikectl/shrike/internal/types"
)

// typeCap bounds how many events of one type a user sees per window.
type typeCap struct {
	Max    int64
	Window time.Duration
}

var hourlyCaps = map[string]typeCap{
	"promotion":    {Max: 2, Window: time.Hour},
	"update":       {Max: 5, Window: time.Hour},
	"reminder":     {Max: 3, Window: time.Hour},
	"message":      {Max: 20, Window: time.Hour},
	"system_event": {Max: 10, Window: time.Hour},
	"alert":        {Max: 10, Window: time.Hour},
}

var defaultTypeCap = typeCap{Max: 8, Window: time.Hour}

// dailyChannelCaps bounds deliveries per channel per user per UTC day.
var dailyChannelCaps = map[string]int64{
	"push":   20,
	"sms":    5,
	"email":  10,
	"in_app": 50,
}

const (
	defaultDailyCap = int64(20)
	dailyTTL        = 24 * time.Hour
)

// Checker tracks per-user delivery volume. Both checks increment on every
// call, so an event a later gate suppresses still consumes budget; events
// stopped by dedup never reach these counters. Operators tuning caps should
// account for that asymmetry.
type Checker struct {
	store  kvstore.Store
	logger *zap.Logger
	clock  func() time.Time
}

// New creates a Checker on top of the shared store.
func New(store kvstore.Store, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		store:  store,
		logger: logger.Named("frequency"),
		clock:  time.Now,
	}
}

// SetClock overrides the time source used for the daily bucket date.
func (c *Checker) SetClock(clock func() time.Time) {
	c.clock = clock
}

// CheckFrequency counts the event against its hourly type cap and returns
// a reason when the cap is exceeded.
func (c *Checker) CheckFrequency(ctx context.Context, ev *types.Event) (string, error) {
	limit, ok := hourlyCaps[ev.EventType]
	if !ok {
		limit = defaultTypeCap
	}
	count, err := c.store.Incr(ctx, freqKey(ev.UserID, ev.EventType), limit.Window)
	if err != nil {
		return "", fmt.Errorf("frequency counter: %w", err)
	}
	if count > limit.Max {
		c.logger.Debug("Hourly cap exceeded",
			zap.String("user_id", ev.UserID),
			zap.String("event_type", ev.EventType),
			zap.Int64("count", count),
		)
		return fmt.Sprintf("Frequency cap exceeded (%d/%d '%s' events in last hour)", count, limit.Max, ev.EventType), nil
	}
	return "", nil
}

// CheckDailyCap counts the event against its channel's daily cap.
func (c *Checker) CheckDailyCap(ctx context.Context, ev *types.Event) (string, error) {
	limit, ok := dailyChannelCaps[ev.Channel]
	if !ok {
		limit = defaultDailyCap
	}
	day := c.clock().UTC().Format("2006-01-02")
	key := fmt.Sprintf("daily_cap:%s:%s:%s", ev.UserID, ev.Channel, day)
	count, err := c.store.Incr(ctx, key, dailyTTL)
	if err != nil {
		return "", fmt.Errorf("daily counter: %w", err)
	}
	if count > limit {
		c.logger.Debug("Daily cap exceeded",
			zap.String("user_id", ev.UserID),
			zap.String("channel", ev.Channel),
			zap.Int64("count", count),
		)
		return fmt.Sprintf("Daily %s cap reached (%d/%d)", ev.Channel, count, limit), nil
	}
	return "", nil
}

// RecentCount reads the current hourly counter for the event's type without
// incrementing. During an evaluation it already includes the event itself.
func (c *Checker) RecentCount(ctx context.Context, ev *types.Event) (int64, error) {
	count, err := c.store.GetCount(ctx, freqKey(ev.UserID, ev.EventType))
	if err != nil {
		return 0, fmt.Errorf("recent count: %w", err)
	}
	return count, nil
}

func freqKey(userID, eventType string) string {
	return fmt.Sprintf("freq:%s:%s", userID, eventType)
}
