// Package kvstore provides the TTL-keyed state backing deduplication and
// frequency accounting: set-if-absent values plus counters whose TTL is
// fixed at the first write of a window.
package kvstore

import (
	"context"
	"time"
)

// Store is the keyed state shared by all evaluations. It has two logical
// namespaces: values with set-if-absent semantics, and integer counters.
// An entry whose TTL deadline has passed is treated as absent.
type Store interface {
	// SetNX writes value under key with the given TTL iff no live entry
	// exists, and reports whether the write happened. False means a live
	// entry was already present. Atomic against concurrent callers.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Get returns the live value under key, if any.
	Get(ctx context.Context, key string) (string, bool, error)

	// Incr increments the counter under key and returns the new count.
	// The TTL applies only when this call creates the window; later hits
	// keep the original deadline, so the window never slides.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// GetCount returns the live counter under key, or 0 when absent.
	GetCount(ctx context.Context, key string) (int64, error)

	// Close releases backend resources.
	Close() error
}
