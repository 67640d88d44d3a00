package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const defaultDedupTTL = 120 * time.Second
const defaultDedupSimilarityGate = 5 * time.Second
const defaultDedupSimilarityScan = 10 * time.Second
const defaultDedupMaxEntries = 10_000

type MemoryDedupCacheConfig struct {
	SimilarityGate time.Duration
	SimilarityScan time.Duration
	MaxEntries     int
	Now            func() time.Time
}

type dedupPairEntry struct {
	messageID string
	claimedAt time.Time
}

// MemoryDedupCache admits each fingerprint once per TTL. Beyond the exact-key
// guard it applies a similarity heuristic: when an event's provider timestamp
// is within the gate window of processing time, a prior entry for the same
// sender/recipient pair inserted within the scan window under a different
// message id marks it a redelivery and it is rejected.
type MemoryDedupCache struct {
	mu             sync.Mutex
	similarityGate time.Duration
	similarityScan time.Duration
	maxEntries     int
	entries        map[string]time.Time
	pairs          map[string]dedupPairEntry
	Now            func() time.Time
}

func NewMemoryDedupCache(cfg MemoryDedupCacheConfig) *MemoryDedupCache {
	if cfg.SimilarityGate <= 0 {
		cfg.SimilarityGate = defaultDedupSimilarityGate
	}
	if cfg.SimilarityScan <= 0 {
		cfg.SimilarityScan = defaultDedupSimilarityScan
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultDedupMaxEntries
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryDedupCache{
		similarityGate: cfg.SimilarityGate,
		similarityScan: cfg.SimilarityScan,
		maxEntries:     cfg.MaxEntries,
		entries:        map[string]time.Time{},
		pairs:          map[string]dedupPairEntry{},
		Now:            now,
	}
}

func (c *MemoryDedupCache) Claim(_ context.Context, fp Fingerprint, ttl time.Duration) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("core: dedup cache is not configured")
	}
	if err := fp.Validate(); err != nil {
		return false, err
	}
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	now := c.now()
	key := fp.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneExpiredLocked(now)
	if expiresAt, ok := c.entries[key]; ok {
		if now.Before(expiresAt) {
			return false, nil
		}
		delete(c.entries, key)
	}
	if c.similarDeliveryLocked(fp, now) {
		return false, nil
	}

	c.enforceCapacityLocked(1)
	c.entries[key] = now.Add(ttl)
	c.pairs[fp.PairKey()] = dedupPairEntry{
		messageID: fp.MessageID,
		claimedAt: now,
	}
	return true, nil
}

func (c *MemoryDedupCache) PurgeExpired(_ context.Context) (int, error) {
	if c == nil {
		return 0, fmt.Errorf("core: dedup cache is not configured")
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	pruned := 0
	for key, expiresAt := range c.entries {
		if !now.Before(expiresAt) {
			delete(c.entries, key)
			pruned++
		}
	}
	c.pruneStalePairsLocked(now)
	return pruned, nil
}

// similarDeliveryLocked activates only for events whose provider timestamp is
// near processing time; it then treats any pair entry inserted within the
// scan window under another message id as a redelivery.
func (c *MemoryDedupCache) similarDeliveryLocked(fp Fingerprint, now time.Time) bool {
	providerAt := fp.ProviderTime()
	if providerAt.IsZero() {
		return false
	}
	drift := now.Sub(providerAt)
	if drift < 0 {
		drift = -drift
	}
	if drift > c.similarityGate {
		return false
	}
	entry, ok := c.pairs[fp.PairKey()]
	if !ok {
		return false
	}
	if entry.messageID == fp.MessageID {
		return false
	}
	return now.Sub(entry.claimedAt) <= c.similarityScan
}

func (c *MemoryDedupCache) now() time.Time {
	if c != nil && c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c *MemoryDedupCache) pruneExpiredLocked(now time.Time) {
	for key, expiresAt := range c.entries {
		if !now.Before(expiresAt) {
			delete(c.entries, key)
		}
	}
	c.pruneStalePairsLocked(now)
}

// Pair entries matter only inside the scan window; pruning here keeps the
// pair map bounded by recent traffic instead of every pair ever seen.
func (c *MemoryDedupCache) pruneStalePairsLocked(now time.Time) {
	for pairKey, entry := range c.pairs {
		if now.Sub(entry.claimedAt) > c.similarityScan {
			delete(c.pairs, pairKey)
		}
	}
}

func (c *MemoryDedupCache) enforceCapacityLocked(incoming int) {
	if c.maxEntries <= 0 {
		return
	}
	target := c.maxEntries - incoming
	if target < 0 {
		target = 0
	}
	for len(c.entries) > target {
		c.evictOldestLocked()
	}
}

func (c *MemoryDedupCache) evictOldestLocked() {
	var oldestKey string
	var oldestExpiry time.Time
	for key, expiry := range c.entries {
		if oldestKey == "" || expiry.Before(oldestExpiry) {
			oldestKey = key
			oldestExpiry = expiry
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		return
	}
	for key := range c.entries {
		delete(c.entries, key)
		break
	}
}

var _ DedupCache = (*MemoryDedupCache)(nil)
