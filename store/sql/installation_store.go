package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-whatsapp-bridge/core"
)

// InstallationStore persists installations in the whatsapp_installations
// table. A tenant is addressed by its resource id, which matches either the
// subaccount or the company column.
type InstallationStore struct {
	db   *bun.DB
	repo repository.Repository[*installationRecord]
}

func NewInstallationStore(db *bun.DB) (*InstallationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*installationRecord](db, installationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid installation repository wiring: %w", err)
		}
	}
	return &InstallationStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *InstallationStore) Save(ctx context.Context, in core.SaveInstallationInput) (core.Installation, error) {
	if s == nil || s.db == nil {
		return core.Installation{}, fmt.Errorf("sqlstore: installation store is not configured")
	}
	resourceID := strings.TrimSpace(in.SubaccountID)
	if resourceID == "" {
		resourceID = strings.TrimSpace(in.CompanyID)
	}
	if resourceID == "" {
		return core.Installation{}, core.ErrMissingResourceIdentity
	}
	if in.Status != "" {
		if _, err := core.ParseInstallationStatus(string(in.Status)); err != nil {
			return core.Installation{}, err
		}
	}

	now := time.Now().UTC()
	var out core.Installation
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findInstallationTx(ctx, tx, resourceID)
		if err != nil {
			return err
		}
		if record == nil {
			record = &installationRecord{
				ID:        uuid.NewString(),
				Status:    string(core.InstallationStatusPending),
				CreatedAt: now,
			}
			record.applySave(in)
			if in.Status != "" {
				record.Status = string(in.Status)
			}
			record.UpdatedAt = now
			if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				return insertErr
			}
			out = record.toDomain()
			return nil
		}

		if in.Status != "" {
			candidate := record.toDomain()
			if transitionErr := candidate.TransitionTo(in.Status, now); transitionErr != nil {
				return transitionErr
			}
			record.Status = string(candidate.Status)
		}
		record.applySave(in)
		record.UpdatedAt = now
		if _, updateErr := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.Installation{}, err
	}
	return out, nil
}

func (s *InstallationStore) Get(ctx context.Context, resourceID string) (core.Installation, error) {
	if s == nil || s.db == nil {
		return core.Installation{}, fmt.Errorf("sqlstore: installation store is not configured")
	}
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return core.Installation{}, core.ErrMissingResourceIdentity
	}
	record, err := s.findByResourceID(ctx, resourceID)
	if err != nil {
		return core.Installation{}, err
	}
	if record == nil {
		return core.Installation{}, fmt.Errorf("sqlstore: installation %q not found", resourceID)
	}
	return record.toDomain(), nil
}

func (s *InstallationStore) Delete(ctx context.Context, resourceID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: installation store is not configured")
	}
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return core.ErrMissingResourceIdentity
	}
	// Deleting an absent tenant is a success: uninstall webhooks redeliver.
	_, err := s.db.NewDelete().
		Model((*installationRecord)(nil)).
		Where("subaccount_id = ? OR company_id = ?", resourceID, resourceID).
		Exec(ctx)
	return err
}

func (s *InstallationStore) Exists(ctx context.Context, resourceID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: installation store is not configured")
	}
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return false, nil
	}
	return s.db.NewSelect().
		Model((*installationRecord)(nil)).
		Where("?TableAlias.subaccount_id = ? OR ?TableAlias.company_id = ?", resourceID, resourceID).
		Exists(ctx)
}

func (s *InstallationStore) UpdateStatus(
	ctx context.Context,
	resourceID string,
	status core.InstallationStatus,
	reason string,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: installation store is not configured")
	}
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" || status == "" {
		return fmt.Errorf("sqlstore: resource id and status are required")
	}
	targetStatus, parseErr := core.ParseInstallationStatus(string(status))
	if parseErr != nil {
		return parseErr
	}

	record, err := s.findByResourceID(ctx, resourceID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("sqlstore: installation %q not found", resourceID)
	}
	now := time.Now().UTC()
	candidate := record.toDomain()
	if transitionErr := candidate.TransitionTo(targetStatus, now); transitionErr != nil {
		return transitionErr
	}
	record.Status = string(candidate.Status)
	record.LastError = strings.TrimSpace(reason)
	record.UpdatedAt = now
	_, err = s.repo.Update(ctx, record, repository.UpdateByID(record.ID))
	return err
}

func (s *InstallationStore) UpdateLastSync(ctx context.Context, resourceID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: installation store is not configured")
	}
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return core.ErrMissingResourceIdentity
	}
	now := time.Now().UTC()
	result, err := s.db.NewUpdate().
		Model((*installationRecord)(nil)).
		Set("last_sync_at = ?", now).
		Where("subaccount_id = ? OR company_id = ?", resourceID, resourceID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, affErr := result.RowsAffected(); affErr == nil && affected == 0 {
		return fmt.Errorf("sqlstore: installation %q not found", resourceID)
	}
	return nil
}

func (s *InstallationStore) GetByInstanceName(ctx context.Context, name string) (core.Installation, error) {
	if s == nil || s.db == nil {
		return core.Installation{}, fmt.Errorf("sqlstore: installation store is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Installation{}, fmt.Errorf("sqlstore: instance name is required")
	}
	record := &installationRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.gateway_instance_name = ?", name).
		OrderExpr("?TableAlias.updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Installation{}, fmt.Errorf("sqlstore: installation for instance %q not found", name)
		}
		return core.Installation{}, err
	}
	return record.toDomain(), nil
}

func (s *InstallationStore) ListActive(ctx context.Context) ([]core.Installation, error) {
	return s.list(ctx, repository.SelectBy("status", "=", string(core.InstallationStatusActive)))
}

func (s *InstallationStore) ListAll(ctx context.Context) ([]core.Installation, error) {
	return s.list(ctx)
}

func (s *InstallationStore) list(ctx context.Context, criteria ...repository.SelectCriteria) ([]core.Installation, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: installation store is not configured")
	}
	criteria = append(criteria, repository.OrderBy("updated_at DESC"))
	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	out := make([]core.Installation, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *InstallationStore) findByResourceID(ctx context.Context, resourceID string) (*installationRecord, error) {
	record := &installationRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.subaccount_id = ? OR ?TableAlias.company_id = ?", resourceID, resourceID).
		OrderExpr("?TableAlias.updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func findInstallationTx(ctx context.Context, tx bun.Tx, resourceID string) (*installationRecord, error) {
	record := &installationRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.subaccount_id = ? OR ?TableAlias.company_id = ?", resourceID, resourceID).
		OrderExpr("?TableAlias.updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}
