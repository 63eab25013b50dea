package kvstore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryOptions configures the in-memory backend.
type MemoryOptions struct {
	// JanitorInterval is how often expired entries are swept. Zero disables
	// the sweeper; expiry is still enforced lazily on every access.
	JanitorInterval time.Duration
	Logger          *zap.Logger
}

// DefaultMemoryOptions returns options suitable for a long-running daemon.
func DefaultMemoryOptions() MemoryOptions {
	return MemoryOptions{
		JanitorInterval: 5 * time.Minute,
	}
}

type valueEntry struct {
	value    string
	expireAt time.Time
}

type counterEntry struct {
	count    int64
	expireAt time.Time
}

// Memory is a process-local Store. A single mutex covers both namespaces;
// entries are dropped lazily on access and, when enabled, by a background
// sweeper.
type Memory struct {
	mu       sync.Mutex
	values   map[string]valueEntry
	counters map[string]counterEntry
	clock    func() time.Time

	logger      *zap.Logger
	sweepEvery  time.Duration
	stopSweeper chan struct{}
	stopOnce    sync.Once
}

var _ Store = (*Memory)(nil)

// NewMemory creates an in-memory Store. The sweeper goroutine runs only
// when opts.JanitorInterval is positive and stops on Close.
func NewMemory(opts MemoryOptions) *Memory {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	m := &Memory{
		values:      make(map[string]valueEntry),
		counters:    make(map[string]counterEntry),
		clock:       time.Now,
		logger:      opts.Logger.Named("kvstore"),
		sweepEvery:  opts.JanitorInterval,
		stopSweeper: make(chan struct{}),
	}
	if m.sweepEvery > 0 {
		go m.sweeper()
	}
	return m
}

// SetClock overrides the time source. Tests use this to step through TTL
// windows deterministically.
func (m *Memory) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

// SetNX implements Store.
func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	if e, ok := m.values[key]; ok && !now.After(e.expireAt) {
		return false, nil
	}
	m.values[key] = valueEntry{value: value, expireAt: now.Add(ttl)}
	return true, nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.values[key]
	if !ok {
		return "", false, nil
	}
	if m.clock().After(e.expireAt) {
		delete(m.values, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Incr implements Store.
func (m *Memory) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	e, ok := m.counters[key]
	if !ok || now.After(e.expireAt) {
		m.counters[key] = counterEntry{count: 1, expireAt: now.Add(ttl)}
		return 1, nil
	}
	e.count++
	m.counters[key] = e
	return e.count, nil
}

// GetCount implements Store.
func (m *Memory) GetCount(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.counters[key]
	if !ok {
		return 0, nil
	}
	if m.clock().After(e.expireAt) {
		delete(m.counters, key)
		return 0, nil
	}
	return e.count, nil
}

// Close stops the sweeper. The maps themselves need no teardown.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stopSweeper) })
	return nil
}

func (m *Memory) sweeper() {
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopSweeper:
			return
		}
	}
}

func (m *Memory) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	removed := 0
	for k, e := range m.values {
		if now.After(e.expireAt) {
			delete(m.values, k)
			removed++
		}
	}
	for k, e := range m.counters {
		if now.After(e.expireAt) {
			delete(m.counters, k)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("Swept expired entries", zap.Int("removed", removed))
	}
}
