package command

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-whatsapp-bridge/core"
)

var (
	_ gocmd.Commander[InstallMessage]       = (*InstallCommand)(nil)
	_ gocmd.Commander[UninstallMessage]     = (*UninstallCommand)(nil)
	_ gocmd.Commander[RefreshTokenMessage]  = (*RefreshTokenCommand)(nil)
	_ gocmd.Commander[RelayInboundMessage]  = (*RelayInboundCommand)(nil)
	_ gocmd.Commander[RelayOutboundMessage] = (*RelayOutboundCommand)(nil)
	_ gocmd.Commander[RelayDirectMessage]   = (*RelayDirectCommand)(nil)

	_ MutatingService = (*core.Service)(nil)
)
