package core

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// InstallInput captures an app install event. Token fields may arrive inline
// on the webhook or be obtained by exchanging an authorization code.
type InstallInput struct {
	SubaccountID           string
	CompanyID              string
	AuthorizationCode      string
	AccessToken            string
	RefreshToken           string
	ExpiresIn              int64
	TokenType              string
	Scope                  string
	UserType               string
	ConversationProviderID string
	GatewayInstanceName    string
	ClientID               string
	ClientSecret           string
}

func (in InstallInput) resourceID() string {
	if subaccount := strings.TrimSpace(in.SubaccountID); subaccount != "" {
		return subaccount
	}
	return strings.TrimSpace(in.CompanyID)
}

// HandleInstall registers a tenant: exchanges the authorization code when one
// is present, provisions the gateway instance, and persists the installation.
func (s *Service) HandleInstall(ctx context.Context, in InstallInput) (installation Installation, err error) {
	startedAt := s.clock()
	fields := map[string]any{
		"resource_id": in.resourceID(),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "install", err, fields)
	}()

	if s == nil || s.installationStore == nil {
		err = fmt.Errorf("core: installation store is required")
		return Installation{}, err
	}
	if in.resourceID() == "" {
		err = s.mapError(newBridgeError(
			"install requires a subaccount id or company id",
			goerrors.CategoryBadInput,
			BridgeErrorBadInput,
		))
		return Installation{}, err
	}

	if code := strings.TrimSpace(in.AuthorizationCode); code != "" && s.crmClient != nil {
		clientID := strings.TrimSpace(in.ClientID)
		clientSecret := strings.TrimSpace(in.ClientSecret)
		if clientID == "" {
			clientID = strings.TrimSpace(s.config.CRM.ClientID)
		}
		if clientSecret == "" {
			clientSecret = strings.TrimSpace(s.config.CRM.ClientSecret)
		}
		payload, exchangeErr := s.crmClient.ExchangeToken(ctx, TokenRequest{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			GrantType:    GrantAuthorizationCode,
			Code:         code,
			UserType:     strings.TrimSpace(in.UserType),
		})
		if exchangeErr != nil {
			err = s.mapError(exchangeErr)
			return Installation{}, err
		}
		in.AccessToken = payload.AccessToken
		in.RefreshToken = payload.RefreshToken
		in.ExpiresIn = payload.ExpiresIn
		in.TokenType = payload.TokenType
		in.Scope = payload.Scope
		if strings.TrimSpace(payload.UserType) != "" {
			in.UserType = payload.UserType
		}
		if strings.TrimSpace(payload.SubaccountID) != "" {
			in.SubaccountID = payload.SubaccountID
		}
		if strings.TrimSpace(payload.CompanyID) != "" {
			in.CompanyID = payload.CompanyID
		}
	}

	instanceName := strings.TrimSpace(in.GatewayInstanceName)
	if instanceName == "" {
		instanceName = in.resourceID()
	}
	fields["instance_name"] = instanceName

	if s.gatewayClient != nil {
		if provisionErr := s.provisionInstance(ctx, instanceName); provisionErr != nil {
			err = s.mapError(provisionErr)
			return Installation{}, err
		}
	}

	status := InstallationStatusPending
	if strings.TrimSpace(in.AccessToken) != "" {
		status = InstallationStatusActive
	}

	installation, saveErr := s.installationStore.Save(ctx, SaveInstallationInput{
		SubaccountID:           in.SubaccountID,
		CompanyID:              in.CompanyID,
		AccessToken:            in.AccessToken,
		RefreshToken:           in.RefreshToken,
		ExpiresIn:              in.ExpiresIn,
		TokenType:              in.TokenType,
		Scope:                  in.Scope,
		UserType:               in.UserType,
		ConversationProviderID: in.ConversationProviderID,
		GatewayInstanceName:    instanceName,
		Status:                 status,
		ClientID:               in.ClientID,
		ClientSecret:           in.ClientSecret,
	})
	if saveErr != nil {
		err = s.mapError(saveErr)
		return Installation{}, err
	}
	return installation, nil
}

// HandleUninstall removes a tenant. Removal is idempotent: uninstalling a
// tenant that is already gone succeeds.
func (s *Service) HandleUninstall(ctx context.Context, id Identifier) (err error) {
	startedAt := s.clock()
	fields := map[string]any{
		"resource_id": strings.TrimSpace(id.SubaccountID),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "uninstall", err, fields)
	}()

	if s == nil || s.installationStore == nil {
		err = fmt.Errorf("core: installation store is required")
		return err
	}
	if id.Empty() {
		err = s.mapError(newBridgeError(
			"uninstall requires a tenant identifier",
			goerrors.CategoryBadInput,
			BridgeErrorBadInput,
		))
		return err
	}

	for _, candidate := range []string{strings.TrimSpace(id.SubaccountID), strings.TrimSpace(id.CompanyID)} {
		if candidate == "" {
			continue
		}
		if deleteErr := s.installationStore.Delete(ctx, candidate); deleteErr != nil {
			err = s.mapError(deleteErr)
			return err
		}
	}
	return nil
}

func (s *Service) provisionInstance(ctx context.Context, instanceName string) error {
	state, err := s.gatewayClient.ConnectionState(ctx, instanceName)
	if err != nil {
		return err
	}
	if state != InstanceStateMissing {
		return nil
	}
	return s.gatewayClient.CreateInstance(ctx, instanceName)
}
