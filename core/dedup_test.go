package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func testFingerprint(id string, ts int64) Fingerprint {
	return Fingerprint{MessageID: id, Sender: "15550001111", Recipient: "15550002222", Timestamp: ts}
}

func TestMemoryDedupCache_ClaimOncePerTTL(t *testing.T) {
	current := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	cache := NewMemoryDedupCache(MemoryDedupCacheConfig{
		Now: func() time.Time { return current },
	})
	ctx := context.Background()
	fp := testFingerprint("m1", current.Unix())

	admitted, err := cache.Claim(ctx, fp, 120*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !admitted {
		t.Fatalf("first claim should be admitted")
	}

	current = current.Add(30 * time.Second)
	admitted, err = cache.Claim(ctx, fp, 120*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if admitted {
		t.Fatalf("second claim inside ttl should be rejected")
	}

	current = current.Add(120 * time.Second)
	admitted, err = cache.Claim(ctx, fp, 120*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !admitted {
		t.Fatalf("claim after ttl expiry should be admitted")
	}
}

func TestMemoryDedupCache_SimilarityRejectsRedelivery(t *testing.T) {
	current := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	cache := NewMemoryDedupCache(MemoryDedupCacheConfig{
		SimilarityGate: 5 * time.Second,
		SimilarityScan: 10 * time.Second,
		Now:            func() time.Time { return current },
	})
	ctx := context.Background()

	if admitted, _ := cache.Claim(ctx, testFingerprint("m1", current.Unix()), 0); !admitted {
		t.Fatalf("first claim should be admitted")
	}

	// Same pair, new id, fresh provider timestamp, arriving 2s after the
	// first insert: treated as a redelivery.
	current = current.Add(2 * time.Second)
	admitted, err := cache.Claim(ctx, testFingerprint("m2", current.Unix()+1), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if admitted {
		t.Fatalf("similar delivery inside scan window should be rejected")
	}

	// Once the prior insert falls outside the scan window the same shape is
	// a genuine new message.
	current = current.Add(10 * time.Second)
	admitted, err = cache.Claim(ctx, testFingerprint("m3", current.Unix()), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !admitted {
		t.Fatalf("claim outside scan window should be admitted")
	}
}

func TestMemoryDedupCache_SimilarityCoversFullScanWindow(t *testing.T) {
	current := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	cache := NewMemoryDedupCache(MemoryDedupCacheConfig{
		SimilarityGate: 5 * time.Second,
		SimilarityScan: 10 * time.Second,
		Now:            func() time.Time { return current },
	})
	ctx := context.Background()

	if admitted, _ := cache.Claim(ctx, testFingerprint("m1", current.Unix()), 0); !admitted {
		t.Fatalf("first claim should be admitted")
	}

	// A redelivery 8s after the first insert is well inside the 10s scan
	// window even though it is beyond the 5s gate; the gate applies to the
	// provider-timestamp-vs-now drift, not to the insert age.
	current = current.Add(8 * time.Second)
	admitted, err := cache.Claim(ctx, testFingerprint("m2", current.Unix()), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if admitted {
		t.Fatalf("redelivery 8s after insert should be rejected by the scan window")
	}
}

func TestMemoryDedupCache_SimilarityRequiresFreshProviderTimestamp(t *testing.T) {
	current := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	cache := NewMemoryDedupCache(MemoryDedupCacheConfig{
		SimilarityGate: 5 * time.Second,
		SimilarityScan: 10 * time.Second,
		Now:            func() time.Time { return current },
	})
	ctx := context.Background()

	if admitted, _ := cache.Claim(ctx, testFingerprint("m1", current.Unix()), 0); !admitted {
		t.Fatalf("first claim should be admitted")
	}

	// A provider timestamp a minute off processing time never activates the
	// heuristic; only the exact-key guard applies.
	current = current.Add(2 * time.Second)
	admitted, err := cache.Claim(ctx, testFingerprint("m2", current.Unix()+60), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !admitted {
		t.Fatalf("stale provider timestamp must not activate the heuristic")
	}
}

func TestMemoryDedupCache_ClaimPrunesStalePairs(t *testing.T) {
	current := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	cache := NewMemoryDedupCache(MemoryDedupCacheConfig{
		SimilarityScan: 10 * time.Second,
		Now:            func() time.Time { return current },
	})
	ctx := context.Background()

	if admitted, _ := cache.Claim(ctx, testFingerprint("m1", current.Unix()), 0); !admitted {
		t.Fatalf("first claim should be admitted")
	}

	current = current.Add(time.Minute)
	other := Fingerprint{MessageID: "m2", Sender: "15550003333", Recipient: "15550004444", Timestamp: current.Unix()}
	if admitted, _ := cache.Claim(ctx, other, 0); !admitted {
		t.Fatalf("unrelated claim should be admitted")
	}

	cache.mu.Lock()
	pairs := len(cache.pairs)
	cache.mu.Unlock()
	if pairs != 1 {
		t.Fatalf("expected stale pair pruned on claim, got %d pair entries", pairs)
	}
}

func TestMemoryDedupCache_RejectsInvalidFingerprint(t *testing.T) {
	cache := NewMemoryDedupCache(MemoryDedupCacheConfig{})
	if _, err := cache.Claim(context.Background(), Fingerprint{}, 0); err == nil {
		t.Fatalf("expected invalid fingerprint error")
	}
}

func TestMemoryDedupCache_PurgeExpired(t *testing.T) {
	current := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	cache := NewMemoryDedupCache(MemoryDedupCacheConfig{
		Now: func() time.Time { return current },
	})
	ctx := context.Background()

	if _, err := cache.Claim(ctx, testFingerprint("m1", current.Unix()), 10*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	current = current.Add(time.Minute)

	pruned, err := cache.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", pruned)
	}

	cache.mu.Lock()
	pairs := len(cache.pairs)
	cache.mu.Unlock()
	if pairs != 0 {
		t.Fatalf("expected pair entries purged, got %d", pairs)
	}
}

func TestMemoryDedupCache_CapacityEvictsOldest(t *testing.T) {
	current := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	cache := NewMemoryDedupCache(MemoryDedupCacheConfig{
		MaxEntries: 2,
		Now:        func() time.Time { return current },
	})
	ctx := context.Background()

	for i, id := range []string{"m1", "m2", "m3"} {
		fp := Fingerprint{MessageID: id, Sender: "s" + id, Recipient: "r" + id, Timestamp: current.Unix()}
		current = current.Add(time.Duration(i+1) * 20 * time.Second)
		if admitted, err := cache.Claim(ctx, fp, 10*time.Minute); err != nil || !admitted {
			t.Fatalf("claim %s: admitted=%v err=%v", id, admitted, err)
		}
	}

	cache.mu.Lock()
	size := len(cache.entries)
	cache.mu.Unlock()
	if size != 2 {
		t.Fatalf("expected capacity cap of 2, got %d entries", size)
	}
}

func TestMemoryDedupCache_ConcurrentClaimsAdmitOne(t *testing.T) {
	cache := NewMemoryDedupCache(MemoryDedupCacheConfig{})
	ctx := context.Background()
	fp := testFingerprint("m1", time.Now().Unix())

	const workers = 16
	var wg sync.WaitGroup
	admissions := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admitted, err := cache.Claim(ctx, fp, time.Minute)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			admissions <- admitted
		}()
	}
	wg.Wait()
	close(admissions)

	total := 0
	for admitted := range admissions {
		if admitted {
			total++
		}
	}
	if total != 1 {
		t.Fatalf("expected exactly one admission, got %d", total)
	}
}
