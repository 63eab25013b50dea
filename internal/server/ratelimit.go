package server

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterEvictAge = 10 * time.Minute

// clientLimiter tracks a token bucket per client address.
type clientLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time
	rate       rate.Limit
	burst      int
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		rate:       rate.Limit(rps),
		burst:      burst,
	}
}

// Allow reports whether the client identified by remoteAddr may proceed.
func (c *clientLimiter) Allow(remoteAddr string) bool {
	key := remoteAddr
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		key = host
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	limiter, ok := c.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(c.rate, c.burst)
		c.limiters[key] = limiter
	}
	c.lastAccess[key] = time.Now()
	return limiter.Allow()
}

// Evict removes buckets idle longer than maxAge.
func (c *clientLimiter) Evict(maxAge time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	for key, last := range c.lastAccess {
		if last.Before(cutoff) {
			delete(c.limiters, key)
			delete(c.lastAccess, key)
		}
	}
}

// run evicts idle buckets until the context ends.
func (c *clientLimiter) run(ctx context.Context) {
	ticker := time.NewTicker(limiterEvictAge)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Evict(limiterEvictAge)
		}
	}
}
