// Package dedup suppresses repeat notifications with two layers: an exact
// match on a caller-supplied dedupe key, and a near match on a fingerprint
// of the normalized content.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/shrikectl/shrike/internal/kvstore"
	"github.com/shrikectl/shrike/internal/types"
)

const (
	// exactTTL is how long an explicit dedupe key blocks repeats.
	exactTTL = 24 * time.Hour
	// nearTTL is how long a content fingerprint blocks near-repeats.
	nearTTL = time.Hour
)

// Checker detects duplicate events per user.
type Checker struct {
	store  kvstore.Store
	logger *zap.Logger
}

// New creates a Checker on top of the shared store.
func New(store kvstore.Store, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{store: store, logger: logger.Named("dedup")}
}

// Check registers the event and returns a human-readable reason when it is
// a duplicate, or "" when it is the first of its kind. Both layers write on
// a miss, so a fresh event becomes the reference for future repeats.
func (c *Checker) Check(ctx context.Context, ev *types.Event) (string, error) {
	if ev.DedupeKey != "" {
		key := fmt.Sprintf("dedup:%s:%s", ev.UserID, ev.DedupeKey)
		ok, err := c.store.SetNX(ctx, key, ev.ID, exactTTL)
		if err != nil {
			return "", fmt.Errorf("exact dedup check: %w", err)
		}
		if !ok {
			c.logger.Debug("Exact duplicate",
				zap.String("user_id", ev.UserID),
				zap.String("dedupe_key", ev.DedupeKey),
			)
			return fmt.Sprintf("Exact duplicate — dedupe_key '%s' already seen in last 24h", ev.DedupeKey), nil
		}
	}

	fp := fingerprint(ev)
	key := fmt.Sprintf("fingerprint:%s:%s", ev.UserID, fp)
	ok, err := c.store.SetNX(ctx, key, ev.ID, nearTTL)
	if err != nil {
		return "", fmt.Errorf("fingerprint dedup check: %w", err)
	}
	if !ok {
		c.logger.Debug("Near duplicate",
			zap.String("user_id", ev.UserID),
			zap.String("fingerprint", fp),
		)
		return "Near-duplicate detected — very similar content sent in last 1h", nil
	}

	return "", nil
}

// fingerprint hashes the normalized content, truncated to the first 16 hex
// characters of the SHA-256, so casing or punctuation changes do not defeat
// detection.
func fingerprint(ev *types.Event) string {
	text := fmt.Sprintf("%s:%s:%s", ev.EventType, ev.Title, ev.Message)
	sum := sha256.Sum256([]byte(normalize(text)))
	return hex.EncodeToString(sum[:])[:16]
}

// normalize lowercases, trims, and strips every rune that is not a letter,
// digit, underscore, or whitespace. The result must stay byte-stable across
// releases; stored fingerprints outlive deploys.
func normalize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
