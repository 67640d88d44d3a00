// Package command wraps the bridge service mutations as go-command handlers
// so host apps can dispatch them through a command bus.
package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-whatsapp-bridge/core"
)

type MutatingService interface {
	HandleInstall(ctx context.Context, in core.InstallInput) (core.Installation, error)
	HandleUninstall(ctx context.Context, id core.Identifier) error
	RefreshTenantToken(ctx context.Context, resourceID string) (core.Installation, error)
	RelayInbound(ctx context.Context, msg core.InboundMessage) (core.RelayOutcome, error)
	RelayOutbound(ctx context.Context, event core.OutboundMessageEvent) (core.RelayOutcome, error)
	RelayDirect(ctx context.Context, msg core.DirectMessage) (core.RelayOutcome, error)
}

type InstallCommand struct {
	service MutatingService
}

func NewInstallCommand(service MutatingService) *InstallCommand {
	return &InstallCommand{service: service}
}

func (c *InstallCommand) Execute(ctx context.Context, msg InstallMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: install service is required")
	}
	out, err := c.service.HandleInstall(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UninstallCommand struct {
	service MutatingService
}

func NewUninstallCommand(service MutatingService) *UninstallCommand {
	return &UninstallCommand{service: service}
}

func (c *UninstallCommand) Execute(ctx context.Context, msg UninstallMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: uninstall service is required")
	}
	return c.service.HandleUninstall(ctx, msg.Identifier)
}

type RefreshTokenCommand struct {
	service MutatingService
}

func NewRefreshTokenCommand(service MutatingService) *RefreshTokenCommand {
	return &RefreshTokenCommand{service: service}
}

func (c *RefreshTokenCommand) Execute(ctx context.Context, msg RefreshTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	out, err := c.service.RefreshTenantToken(ctx, msg.ResourceID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RelayInboundCommand struct {
	service MutatingService
}

func NewRelayInboundCommand(service MutatingService) *RelayInboundCommand {
	return &RelayInboundCommand{service: service}
}

func (c *RelayInboundCommand) Execute(ctx context.Context, msg RelayInboundMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: relay service is required")
	}
	out, err := c.service.RelayInbound(ctx, msg.Message)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RelayOutboundCommand struct {
	service MutatingService
}

func NewRelayOutboundCommand(service MutatingService) *RelayOutboundCommand {
	return &RelayOutboundCommand{service: service}
}

func (c *RelayOutboundCommand) Execute(ctx context.Context, msg RelayOutboundMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: relay service is required")
	}
	out, err := c.service.RelayOutbound(ctx, msg.Event)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RelayDirectCommand struct {
	service MutatingService
}

func NewRelayDirectCommand(service MutatingService) *RelayDirectCommand {
	return &RelayDirectCommand{service: service}
}

func (c *RelayDirectCommand) Execute(ctx context.Context, msg RelayDirectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: relay service is required")
	}
	out, err := c.service.RelayDirect(ctx, msg.Message)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
