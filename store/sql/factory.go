package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-whatsapp-bridge/core"
)

// RepositoryFactory wires the sql-backed stores over a shared bun handle.
type RepositoryFactory struct {
	db *bun.DB

	installationStore *InstallationStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores accepts either a *bun.DB or anything exposing DB() *bun.DB,
// such as the go-persistence-bun client.
func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.installationStore != nil {
		return nil
	}
	installationStore, err := NewInstallationStore(f.db)
	if err != nil {
		return err
	}
	f.installationStore = installationStore
	return nil
}

func (f *RepositoryFactory) InstallationStore() core.InstallationStore {
	if f == nil || f.installationStore == nil {
		return nil
	}
	return f.installationStore
}

// CachedInstallationStore wraps the sql store with the given cache service.
func (f *RepositoryFactory) CachedInstallationStore(cacheService repositorycache.CacheService) (core.InstallationStore, error) {
	if f == nil || f.installationStore == nil {
		return nil, fmt.Errorf("sqlstore: build stores before requesting the cached store")
	}
	return NewCachedInstallationStore(f.installationStore, cacheService)
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
