package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryTenantLocker_AcquireConflictsWhileHeld(t *testing.T) {
	locker := NewMemoryTenantLocker()
	ctx := context.Background()

	handle, err := locker.Acquire(ctx, "loc-1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err = locker.Acquire(ctx, "loc-1", time.Minute); err == nil {
		t.Fatalf("expected second acquisition to conflict")
	}

	if _, err = locker.Acquire(ctx, "loc-2", time.Minute); err != nil {
		t.Fatalf("different tenant should not conflict: %v", err)
	}

	if err = handle.Unlock(ctx); err != nil {
		t.Fatalf("unexpected unlock error: %v", err)
	}
	if _, err = locker.Acquire(ctx, "loc-1", time.Minute); err != nil {
		t.Fatalf("acquisition after unlock should succeed: %v", err)
	}
}

func TestMemoryTenantLocker_ExpiredLockIsReacquirable(t *testing.T) {
	current := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	locker := NewMemoryTenantLocker()
	locker.nowFn = func() time.Time { return current }
	ctx := context.Background()

	if _, err := locker.Acquire(ctx, "loc-1", 30*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	current = current.Add(time.Minute)
	if _, err := locker.Acquire(ctx, "loc-1", 30*time.Second); err != nil {
		t.Fatalf("expired lock should be reacquirable: %v", err)
	}
}

func TestMemoryTenantLocker_RequiresResourceID(t *testing.T) {
	locker := NewMemoryTenantLocker()
	if _, err := locker.Acquire(context.Background(), "  ", time.Minute); err == nil {
		t.Fatalf("expected error for blank resource id")
	}
}

func TestMemoryTenantLocker_UnlockIsIdempotent(t *testing.T) {
	locker := NewMemoryTenantLocker()
	ctx := context.Background()
	handle, err := locker.Acquire(ctx, "loc-1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err = handle.Unlock(ctx); err != nil {
		t.Fatalf("unexpected unlock error: %v", err)
	}
	if err = handle.Unlock(ctx); err != nil {
		t.Fatalf("second unlock should be a no-op: %v", err)
	}
}
