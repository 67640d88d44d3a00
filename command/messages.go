package command

import (
	"strings"

	"github.com/goliatone/go-whatsapp-bridge/core"
)

const (
	TypeInstall       = "bridge.command.install"
	TypeUninstall     = "bridge.command.uninstall"
	TypeRefreshToken  = "bridge.command.token.refresh"
	TypeRelayInbound  = "bridge.command.relay.inbound"
	TypeRelayOutbound = "bridge.command.relay.outbound"
	TypeRelayDirect   = "bridge.command.relay.direct"
)

type InstallMessage struct {
	Input core.InstallInput
}

func (InstallMessage) Type() string { return TypeInstall }

func (m InstallMessage) Validate() error {
	if strings.TrimSpace(m.Input.SubaccountID) == "" && strings.TrimSpace(m.Input.CompanyID) == "" {
		return commandInvalidInputError("command: install requires a subaccount id or company id")
	}
	return nil
}

type UninstallMessage struct {
	Identifier core.Identifier
}

func (UninstallMessage) Type() string { return TypeUninstall }

func (m UninstallMessage) Validate() error {
	if m.Identifier.Empty() {
		return commandInvalidInputError("command: uninstall requires a tenant identifier")
	}
	return nil
}

type RefreshTokenMessage struct {
	ResourceID string
}

func (RefreshTokenMessage) Type() string { return TypeRefreshToken }

func (m RefreshTokenMessage) Validate() error {
	if strings.TrimSpace(m.ResourceID) == "" {
		return commandInvalidInputError("command: resource id is required")
	}
	return nil
}

type RelayInboundMessage struct {
	Message core.InboundMessage
}

func (RelayInboundMessage) Type() string { return TypeRelayInbound }

func (m RelayInboundMessage) Validate() error {
	if strings.TrimSpace(m.Message.InstanceName) == "" {
		return commandInvalidInputError("command: instance name is required")
	}
	if strings.TrimSpace(m.Message.SenderPhone) == "" {
		return commandInvalidInputError("command: sender phone is required")
	}
	if strings.TrimSpace(m.Message.Body) == "" {
		return commandInvalidInputError("command: message body is required")
	}
	return nil
}

type RelayOutboundMessage struct {
	Event core.OutboundMessageEvent
}

func (RelayOutboundMessage) Type() string { return TypeRelayOutbound }

func (m RelayOutboundMessage) Validate() error {
	if strings.TrimSpace(m.Event.ResourceID) == "" {
		return commandInvalidInputError("command: resource id is required")
	}
	return nil
}

type RelayDirectMessage struct {
	Message core.DirectMessage
}

func (RelayDirectMessage) Type() string { return TypeRelayDirect }

func (m RelayDirectMessage) Validate() error {
	if strings.TrimSpace(m.Message.InstanceName) == "" {
		return commandInvalidInputError("command: instance name is required")
	}
	if strings.TrimSpace(m.Message.RecipientPhone) == "" {
		return commandInvalidInputError("command: recipient phone is required")
	}
	if strings.TrimSpace(m.Message.Body) == "" {
		return commandInvalidInputError("command: message body is required")
	}
	return nil
}
