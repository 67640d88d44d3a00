package bridge

import (
	"fmt"

	bridgecommand "github.com/goliatone/go-whatsapp-bridge/command"
	"github.com/goliatone/go-whatsapp-bridge/core"
	bridgequery "github.com/goliatone/go-whatsapp-bridge/query"
)

// CommandQueryService is the surface the facade mounts command and query
// handlers on. *core.Service satisfies it.
type CommandQueryService interface {
	bridgecommand.MutatingService
	bridgequery.InstallationResolver
	bridgequery.TokenReader
}

type Commands struct {
	Install       *bridgecommand.InstallCommand
	Uninstall     *bridgecommand.UninstallCommand
	RefreshToken  *bridgecommand.RefreshTokenCommand
	RelayInbound  *bridgecommand.RelayInboundCommand
	RelayOutbound *bridgecommand.RelayOutboundCommand
	RelayDirect   *bridgecommand.RelayDirectCommand
}

type Queries struct {
	GetInstallation   *bridgequery.GetInstallationQuery
	ListInstallations *bridgequery.ListInstallationsQuery
	GetAccessToken    *bridgequery.GetAccessTokenQuery
}

// Facade bundles the command and query handlers for a configured service so
// host applications mount one object instead of wiring each handler.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	lister bridgequery.InstallationLister
}

// WithInstallationLister overrides the store used by the list query.
func WithInstallationLister(lister bridgequery.InstallationLister) FacadeOption {
	return func(options *facadeOptions) {
		options.lister = lister
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("bridge: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	lister := cfg.lister
	if lister == nil {
		lister = resolveInstallationLister(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Install:       bridgecommand.NewInstallCommand(service),
		Uninstall:     bridgecommand.NewUninstallCommand(service),
		RefreshToken:  bridgecommand.NewRefreshTokenCommand(service),
		RelayInbound:  bridgecommand.NewRelayInboundCommand(service),
		RelayOutbound: bridgecommand.NewRelayOutboundCommand(service),
		RelayDirect:   bridgecommand.NewRelayDirectCommand(service),
	}
	facade.queries = Queries{
		GetInstallation:   bridgequery.NewGetInstallationQuery(service),
		ListInstallations: bridgequery.NewListInstallationsQuery(lister),
		GetAccessToken:    bridgequery.NewGetAccessTokenQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func resolveInstallationLister(service CommandQueryService) bridgequery.InstallationLister {
	if service == nil {
		return nil
	}
	if lister, ok := service.(bridgequery.InstallationLister); ok {
		return lister
	}
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return nil
	}
	return provider.Dependencies().InstallationStore
}
