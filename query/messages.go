package query

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-whatsapp-bridge/core"
)

const (
	TypeGetInstallation   = "bridge.query.installation.get"
	TypeListInstallations = "bridge.query.installation.list"
	TypeGetAccessToken    = "bridge.query.token.get"
)

type GetInstallationMessage struct {
	Identifier core.Identifier
}

func (GetInstallationMessage) Type() string { return TypeGetInstallation }

func (m GetInstallationMessage) Validate() error {
	if m.Identifier.Empty() {
		return fmt.Errorf("query: tenant identifier is required")
	}
	return nil
}

type ListInstallationsMessage struct {
	ActiveOnly bool
}

func (ListInstallationsMessage) Type() string { return TypeListInstallations }

func (ListInstallationsMessage) Validate() error { return nil }

type GetAccessTokenMessage struct {
	ResourceID string
}

func (GetAccessTokenMessage) Type() string { return TypeGetAccessToken }

func (m GetAccessTokenMessage) Validate() error {
	if strings.TrimSpace(m.ResourceID) == "" {
		return fmt.Errorf("query: resource id is required")
	}
	return nil
}
