package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultTenantLockTTL = 60 * time.Second

// MemoryTenantLocker serializes refreshes in a single process. Multi-node
// deployments should swap in a shared locker; the interface is the contract.
type MemoryTenantLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	nowFn func() time.Time
}

func NewMemoryTenantLocker() *MemoryTenantLocker {
	return &MemoryTenantLocker{
		locks: make(map[string]time.Time),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryTenantLocker) Acquire(_ context.Context, resourceID string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: tenant locker is not configured")
	}
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return nil, fmt.Errorf("core: resource id is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultTenantLockTTL
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.locks[resourceID]; ok && now.Before(until) {
		return nil, fmt.Errorf("core: refresh lock already held for tenant %q", resourceID)
	}
	l.locks[resourceID] = now.Add(ttl)
	return &memoryLockHandle{locker: l, resourceID: resourceID}, nil
}

type memoryLockHandle struct {
	locker     *MemoryTenantLocker
	resourceID string
	once       sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		delete(h.locker.locks, h.resourceID)
		h.locker.mu.Unlock()
	})
	return nil
}

var _ TenantLocker = (*MemoryTenantLocker)(nil)
