package core

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// GetValidAccessToken returns the tenant's access token, refreshing it first
// when the stored one has aged out of its validity window.
func (s *Service) GetValidAccessToken(ctx context.Context, resourceID string) (string, error) {
	if s == nil || s.installationStore == nil {
		return "", fmt.Errorf("core: installation store is required")
	}
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return "", s.mapError(newBridgeError("resource id is required", goerrors.CategoryBadInput, BridgeErrorBadInput))
	}

	installation, err := s.installationStore.Get(ctx, resourceID)
	if err != nil {
		return "", s.mapError(err)
	}
	if installation.TokenValid(s.clock()) {
		return installation.AccessToken, nil
	}

	refreshed, err := s.RefreshTenantToken(ctx, resourceID)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// RefreshTenantToken exchanges the stored refresh token for a new grant,
// persists the coalesced installation, and probes the new token's access.
// The exchange is unconditional: callers reacting to a live 401 need a new
// grant even when the stored token still looks fresh. Refresh tokens are
// single-use upstream, so at most one refresh runs per tenant; a concurrent
// attempt fails fast with a conflict.
func (s *Service) RefreshTenantToken(ctx context.Context, resourceID string) (installation Installation, err error) {
	startedAt := s.clock()
	fields := map[string]any{
		"resource_id": resourceID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "token_refresh", err, fields)
	}()

	if s == nil || s.installationStore == nil || s.crmClient == nil {
		err = fmt.Errorf("core: installation store and crm client are required")
		return Installation{}, err
	}
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		err = s.mapError(newBridgeError("resource id is required", goerrors.CategoryBadInput, BridgeErrorBadInput))
		return Installation{}, err
	}

	if s.tenantLocker != nil {
		handle, lockErr := s.tenantLocker.Acquire(ctx, resourceID, s.config.RefreshLockTTL())
		if lockErr != nil {
			err = s.mapError(lockErr)
			return Installation{}, err
		}
		defer func() {
			_ = handle.Unlock(ctx)
		}()
	}

	current, loadErr := s.installationStore.Get(ctx, resourceID)
	if loadErr != nil {
		err = s.mapError(loadErr)
		return Installation{}, err
	}
	if strings.TrimSpace(current.RefreshToken) == "" {
		err = s.mapError(newBridgeError(
			fmt.Sprintf("tenant %q has no refresh token, re-authorization required", resourceID),
			goerrors.CategoryAuth,
			BridgeErrorReauthRequired,
		))
		return Installation{}, err
	}

	clientID, clientSecret := s.tenantCredentials(current)
	payload, exchangeErr := s.crmClient.ExchangeToken(ctx, TokenRequest{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		GrantType:    GrantRefreshToken,
		RefreshToken: current.RefreshToken,
		UserType:     s.tokenUserType(current),
	})
	if exchangeErr != nil {
		mapped := s.mapError(exchangeErr)
		if IsAuthError(mapped) {
			if statusErr := s.installationStore.UpdateStatus(ctx, resourceID, InstallationStatusError, "refresh token rejected"); statusErr != nil {
				s.logError(ctx, "installation status update failed", map[string]any{
					"resource_id": resourceID,
					"error":       statusErr.Error(),
				})
			}
		}
		err = mapped
		return Installation{}, err
	}

	saved, saveErr := s.installationStore.Save(ctx, SaveInstallationInput{
		SubaccountID: current.SubaccountID,
		CompanyID:    current.CompanyID,
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresIn:    payload.ExpiresIn,
		TokenType:    payload.TokenType,
		Scope:        payload.Scope,
		UserType:     payload.UserType,
		Status:       InstallationStatusActive,
	})
	if saveErr != nil {
		err = s.mapError(saveErr)
		return Installation{}, err
	}

	if probeErr := s.crmClient.ProbeAccess(ctx, saved.AccessToken, saved.SubaccountID); probeErr != nil {
		mapped := s.mapError(probeErr)
		if IsAuthError(mapped) {
			if statusErr := s.installationStore.UpdateStatus(ctx, resourceID, InstallationStatusError, "permission probe rejected"); statusErr != nil {
				s.logError(ctx, "installation status update failed", map[string]any{
					"resource_id": resourceID,
					"error":       statusErr.Error(),
				})
			}
			err = s.mapError(newBridgeError(
				fmt.Sprintf("tenant %q token lacks required permissions", resourceID),
				goerrors.CategoryAuthz,
				BridgeErrorPermissionDenied,
			))
			return Installation{}, err
		}
		// Transient probe failures do not invalidate a freshly minted token.
		s.logError(ctx, "permission probe failed", map[string]any{
			"resource_id": resourceID,
			"error":       mapped.Error(),
		})
	}

	installation = saved
	return installation, nil
}

// WithValidToken runs call with a fresh access token, retrying exactly once
// after a forced refresh when the first attempt comes back unauthorized.
func (s *Service) WithValidToken(ctx context.Context, resourceID string, call func(ctx context.Context, accessToken string) error) error {
	if call == nil {
		return fmt.Errorf("core: token call is required")
	}
	token, err := s.GetValidAccessToken(ctx, resourceID)
	if err != nil {
		return err
	}
	callErr := call(ctx, token)
	if callErr == nil {
		return nil
	}
	if !IsUnauthorized(s.mapError(callErr)) {
		return s.mapError(callErr)
	}

	refreshed, refreshErr := s.RefreshTenantToken(ctx, resourceID)
	if refreshErr != nil {
		return refreshErr
	}
	return s.mapError(call(ctx, refreshed.AccessToken))
}

func (s *Service) tenantCredentials(installation Installation) (string, string) {
	clientID := strings.TrimSpace(installation.ClientID)
	clientSecret := strings.TrimSpace(installation.ClientSecret)
	if clientID == "" {
		clientID = strings.TrimSpace(s.config.CRM.ClientID)
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(s.config.CRM.ClientSecret)
	}
	return clientID, clientSecret
}

func (s *Service) tokenUserType(installation Installation) string {
	if userType := strings.TrimSpace(installation.UserType); userType != "" {
		return userType
	}
	return strings.TrimSpace(s.config.CRM.UserType)
}
