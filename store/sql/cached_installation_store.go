package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-whatsapp-bridge/core"
)

const installationCacheKeyPrefix = "whatsapp-bridge::installation::v1"

// CachedInstallationStore layers read caching over an installation store.
// Webhook traffic resolves the same tenant for every message, so the two hot
// lookups (resource id and instance name) are cached; every write invalidates
// both keys for the touched record.
type CachedInstallationStore struct {
	base  core.InstallationStore
	cache repositorycache.CacheService
}

func NewCachedInstallationStore(
	base core.InstallationStore,
	cacheService repositorycache.CacheService,
) (*CachedInstallationStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base installation store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: installation cache service is required")
	}
	return &CachedInstallationStore{base: base, cache: cacheService}, nil
}

// InstallationCacheKey returns the deterministic cache key for resource-id
// lookups: whatsapp-bridge::installation::v1::resource::<resource_id>.
func InstallationCacheKey(resourceID string) string {
	return installationCacheKeyPrefix + "::resource::" + url.PathEscape(strings.TrimSpace(resourceID))
}

// InstanceCacheKey returns the deterministic cache key for instance-name
// lookups: whatsapp-bridge::installation::v1::instance::<instance_name>.
func InstanceCacheKey(instanceName string) string {
	return installationCacheKeyPrefix + "::instance::" + url.PathEscape(strings.TrimSpace(instanceName))
}

func (s *CachedInstallationStore) Save(ctx context.Context, in core.SaveInstallationInput) (core.Installation, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Installation{}, fmt.Errorf("sqlstore: cached installation store is not configured")
	}
	saved, err := s.base.Save(ctx, in)
	if err != nil {
		return core.Installation{}, err
	}
	if invalidateErr := s.invalidate(ctx, saved); invalidateErr != nil {
		return core.Installation{}, invalidateErr
	}
	return saved, nil
}

func (s *CachedInstallationStore) Get(ctx context.Context, resourceID string) (core.Installation, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Installation{}, fmt.Errorf("sqlstore: cached installation store is not configured")
	}
	resourceID = strings.TrimSpace(resourceID)
	installation, err := repositorycache.GetOrFetch(ctx, s.cache, InstallationCacheKey(resourceID),
		func(ctx context.Context) (core.Installation, error) {
			return s.base.Get(ctx, resourceID)
		})
	if err != nil {
		return core.Installation{}, err
	}
	return cloneInstallation(installation), nil
}

func (s *CachedInstallationStore) Delete(ctx context.Context, resourceID string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached installation store is not configured")
	}
	// Read first so the instance-name key can be dropped with the record.
	existing, getErr := s.base.Get(ctx, resourceID)
	if err := s.base.Delete(ctx, resourceID); err != nil {
		return err
	}
	if getErr == nil {
		if err := s.invalidate(ctx, existing); err != nil {
			return err
		}
	}
	return s.cache.Delete(ctx, InstallationCacheKey(resourceID))
}

func (s *CachedInstallationStore) Exists(ctx context.Context, resourceID string) (bool, error) {
	if s == nil || s.base == nil {
		return false, fmt.Errorf("sqlstore: cached installation store is not configured")
	}
	return s.base.Exists(ctx, resourceID)
}

func (s *CachedInstallationStore) UpdateStatus(
	ctx context.Context,
	resourceID string,
	status core.InstallationStatus,
	reason string,
) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached installation store is not configured")
	}
	if err := s.base.UpdateStatus(ctx, resourceID, status, reason); err != nil {
		return err
	}
	return s.invalidateByResourceID(ctx, resourceID)
}

func (s *CachedInstallationStore) UpdateLastSync(ctx context.Context, resourceID string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached installation store is not configured")
	}
	if err := s.base.UpdateLastSync(ctx, resourceID); err != nil {
		return err
	}
	return s.invalidateByResourceID(ctx, resourceID)
}

func (s *CachedInstallationStore) GetByInstanceName(ctx context.Context, name string) (core.Installation, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Installation{}, fmt.Errorf("sqlstore: cached installation store is not configured")
	}
	name = strings.TrimSpace(name)
	installation, err := repositorycache.GetOrFetch(ctx, s.cache, InstanceCacheKey(name),
		func(ctx context.Context) (core.Installation, error) {
			return s.base.GetByInstanceName(ctx, name)
		})
	if err != nil {
		return core.Installation{}, err
	}
	return cloneInstallation(installation), nil
}

func (s *CachedInstallationStore) ListActive(ctx context.Context) ([]core.Installation, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached installation store is not configured")
	}
	return s.base.ListActive(ctx)
}

func (s *CachedInstallationStore) ListAll(ctx context.Context) ([]core.Installation, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached installation store is not configured")
	}
	return s.base.ListAll(ctx)
}

func (s *CachedInstallationStore) invalidate(ctx context.Context, installation core.Installation) error {
	if err := s.cache.Delete(ctx, InstallationCacheKey(installation.ResourceID())); err != nil {
		return err
	}
	if instance := strings.TrimSpace(installation.GatewayInstanceName); instance != "" {
		if err := s.cache.Delete(ctx, InstanceCacheKey(instance)); err != nil {
			return err
		}
	}
	return nil
}

func (s *CachedInstallationStore) invalidateByResourceID(ctx context.Context, resourceID string) error {
	existing, err := s.base.Get(ctx, resourceID)
	if err != nil {
		return s.cache.Delete(ctx, InstallationCacheKey(resourceID))
	}
	return s.invalidate(ctx, existing)
}

func cloneInstallation(installation core.Installation) core.Installation {
	cloned := installation
	cloned.LastSyncAt = cloneTimePointer(installation.LastSyncAt)
	return cloned
}
