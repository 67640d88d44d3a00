package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissingResourceIdentity             = errors.New("core: installation requires a subaccount id or company id")
	ErrInvalidInstallationStatusTransition = errors.New("core: invalid installation status transition")
	ErrInvalidFingerprint                  = errors.New("core: invalid dedup fingerprint")
)

type InstallationStatus string

const (
	InstallationStatusPending     InstallationStatus = "pending"
	InstallationStatusActive      InstallationStatus = "active"
	InstallationStatusError       InstallationStatus = "error"
	InstallationStatusUninstalled InstallationStatus = "uninstalled"
)

// Installation is one CRM subaccount's connection bundle: OAuth credentials
// plus the routing config that ties it to a gateway instance.
type Installation struct {
	ID                     string
	SubaccountID           string
	CompanyID              string
	AccessToken            string
	RefreshToken           string
	ExpiresIn              int64
	TokenType              string
	Scope                  string
	UserType               string
	ConversationProviderID string
	GatewayInstanceName    string
	Status                 InstallationStatus
	LastSyncAt             *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
	ClientID               string
	ClientSecret           string
}

// ResourceID returns the canonical tenant identifier. The subaccount id wins
// when both identifiers are present.
func (i Installation) ResourceID() string {
	if subaccount := strings.TrimSpace(i.SubaccountID); subaccount != "" {
		return subaccount
	}
	return strings.TrimSpace(i.CompanyID)
}

func (i Installation) Validate() error {
	if i.ResourceID() == "" {
		return ErrMissingResourceIdentity
	}
	return nil
}

// TokenValid reports whether the stored access token is still inside its
// validity window. Validity is derived, not stored: the token is good until
// updated_at + expires_in seconds.
func (i Installation) TokenValid(now time.Time) bool {
	if strings.TrimSpace(i.AccessToken) == "" {
		return false
	}
	if i.ExpiresIn <= 0 {
		return false
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return i.UpdatedAt.Add(time.Duration(i.ExpiresIn) * time.Second).After(now.UTC())
}

func (i *Installation) TransitionTo(status InstallationStatus, now time.Time) error {
	if i == nil {
		return nil
	}
	if i.Status == status {
		i.UpdatedAt = now
		return nil
	}
	if !installationTransitionAllowed(i.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidInstallationStatusTransition, i.Status, status)
	}
	i.Status = status
	i.UpdatedAt = now
	return nil
}

func installationTransitionAllowed(current, next InstallationStatus) bool {
	allowed := map[InstallationStatus]map[InstallationStatus]struct{}{
		InstallationStatusPending: {
			InstallationStatusActive:      {},
			InstallationStatusError:       {},
			InstallationStatusUninstalled: {},
		},
		InstallationStatusActive: {
			InstallationStatusError:       {},
			InstallationStatusUninstalled: {},
		},
		InstallationStatusError: {
			InstallationStatusActive:      {},
			InstallationStatusUninstalled: {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

func ParseInstallationStatus(value string) (InstallationStatus, error) {
	normalized := InstallationStatus(strings.TrimSpace(strings.ToLower(value)))
	if normalized == "" {
		return InstallationStatusPending, nil
	}
	switch normalized {
	case InstallationStatusPending,
		InstallationStatusActive,
		InstallationStatusError,
		InstallationStatusUninstalled:
		return normalized, nil
	}
	return "", fmt.Errorf("core: invalid installation status %q", value)
}

// Fingerprint identifies one logical gateway message event for dedup.
type Fingerprint struct {
	MessageID string
	Sender    string
	Recipient string
	Timestamp int64
}

func (f Fingerprint) Validate() error {
	if strings.TrimSpace(f.MessageID) == "" {
		return fmt.Errorf("%w: message id is required", ErrInvalidFingerprint)
	}
	if strings.TrimSpace(f.Sender) == "" {
		return fmt.Errorf("%w: sender is required", ErrInvalidFingerprint)
	}
	if strings.TrimSpace(f.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidFingerprint)
	}
	return nil
}

// Key joins the fingerprint components into the dedup cache key.
func (f Fingerprint) Key() string {
	return strings.Join([]string{
		strings.TrimSpace(f.MessageID),
		strings.TrimSpace(f.Sender),
		strings.TrimSpace(f.Recipient),
		fmt.Sprintf("%d", f.Timestamp),
	}, "|")
}

// PairKey identifies the sender/recipient pair, used by the similarity
// heuristic to catch redeliveries that arrive under different message ids.
func (f Fingerprint) PairKey() string {
	return strings.TrimSpace(f.Sender) + "|" + strings.TrimSpace(f.Recipient)
}

func (f Fingerprint) ProviderTime() time.Time {
	if f.Timestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(f.Timestamp, 0).UTC()
}
