package sqlstore

import (
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-whatsapp-bridge/core"
)

type installationRecord struct {
	bun.BaseModel `bun:"table:whatsapp_installations,alias:wi"`

	ID                     string     `bun:"id,pk"`
	SubaccountID           string     `bun:"subaccount_id"`
	CompanyID              string     `bun:"company_id"`
	AccessToken            string     `bun:"access_token"`
	RefreshToken           string     `bun:"refresh_token"`
	ExpiresIn              int64      `bun:"expires_in,notnull"`
	TokenType              string     `bun:"token_type"`
	Scope                  string     `bun:"scope"`
	UserType               string     `bun:"user_type"`
	ConversationProviderID string     `bun:"conversation_provider_id"`
	GatewayInstanceName    string     `bun:"gateway_instance_name"`
	Status                 string     `bun:"status,notnull"`
	LastError              string     `bun:"last_error"`
	ClientID               string     `bun:"client_id"`
	ClientSecret           string     `bun:"client_secret"`
	LastSyncAt             *time.Time `bun:"last_sync_at,nullzero"`
	CreatedAt              time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt              time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *installationRecord) toDomain() core.Installation {
	if r == nil {
		return core.Installation{}
	}
	return core.Installation{
		ID:                     r.ID,
		SubaccountID:           r.SubaccountID,
		CompanyID:              r.CompanyID,
		AccessToken:            r.AccessToken,
		RefreshToken:           r.RefreshToken,
		ExpiresIn:              r.ExpiresIn,
		TokenType:              r.TokenType,
		Scope:                  r.Scope,
		UserType:               r.UserType,
		ConversationProviderID: r.ConversationProviderID,
		GatewayInstanceName:    r.GatewayInstanceName,
		Status:                 core.InstallationStatus(r.Status),
		LastSyncAt:             cloneTimePointer(r.LastSyncAt),
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
		ClientID:               r.ClientID,
		ClientSecret:           r.ClientSecret,
	}
}

// applySave folds a partial update into the record. Empty input fields keep
// the stored value so a token refresh never clears routing config.
func (r *installationRecord) applySave(in core.SaveInstallationInput) {
	if r == nil {
		return
	}
	if subaccount := strings.TrimSpace(in.SubaccountID); subaccount != "" {
		r.SubaccountID = subaccount
	}
	if company := strings.TrimSpace(in.CompanyID); company != "" {
		r.CompanyID = company
	}
	if in.AccessToken != "" {
		r.AccessToken = in.AccessToken
	}
	if in.RefreshToken != "" {
		r.RefreshToken = in.RefreshToken
	}
	if in.ExpiresIn > 0 {
		r.ExpiresIn = in.ExpiresIn
	}
	if in.TokenType != "" {
		r.TokenType = in.TokenType
	}
	if in.Scope != "" {
		r.Scope = in.Scope
	}
	if in.UserType != "" {
		r.UserType = in.UserType
	}
	if provider := strings.TrimSpace(in.ConversationProviderID); provider != "" {
		r.ConversationProviderID = provider
	}
	if instance := strings.TrimSpace(in.GatewayInstanceName); instance != "" {
		r.GatewayInstanceName = instance
	}
	if in.ClientID != "" {
		r.ClientID = in.ClientID
	}
	if in.ClientSecret != "" {
		r.ClientSecret = in.ClientSecret
	}
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
