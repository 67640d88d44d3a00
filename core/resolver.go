package core

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Identifier carries every tenant hint a webhook delivery may expose. CRM
// events resolve by subaccount first, company second; gateway events only
// ever carry the instance name.
type Identifier struct {
	SubaccountID string
	CompanyID    string
	InstanceName string
}

func (id Identifier) Empty() bool {
	return strings.TrimSpace(id.SubaccountID) == "" &&
		strings.TrimSpace(id.CompanyID) == "" &&
		strings.TrimSpace(id.InstanceName) == ""
}

// ResolveInstallation finds the tenant an event belongs to. Candidates are
// tried in precedence order; the first hit wins.
func (s *Service) ResolveInstallation(ctx context.Context, id Identifier) (Installation, error) {
	if s == nil || s.installationStore == nil {
		return Installation{}, fmt.Errorf("core: installation store is required")
	}
	if id.Empty() {
		return Installation{}, s.mapError(newBridgeError(
			"tenant identifier is required",
			goerrors.CategoryBadInput,
			BridgeErrorBadInput,
		))
	}

	candidates := []string{
		strings.TrimSpace(id.SubaccountID),
		strings.TrimSpace(id.CompanyID),
	}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		installation, err := s.installationStore.Get(ctx, candidate)
		if err == nil {
			return installation, nil
		}
		if !IsNotFound(s.mapError(err)) {
			return Installation{}, s.mapError(err)
		}
	}

	if instance := strings.TrimSpace(id.InstanceName); instance != "" {
		installation, err := s.installationStore.GetByInstanceName(ctx, instance)
		if err == nil {
			return installation, nil
		}
		if !IsNotFound(s.mapError(err)) {
			return Installation{}, s.mapError(err)
		}
	}

	return Installation{}, s.mapError(newBridgeError(
		fmt.Sprintf("no installation matches identifier %+v", id),
		goerrors.CategoryNotFound,
		BridgeErrorInstallationNotFound,
	))
}
