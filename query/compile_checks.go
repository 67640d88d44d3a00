package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-whatsapp-bridge/core"
)

var (
	_ gocmd.Querier[GetInstallationMessage, core.Installation]     = (*GetInstallationQuery)(nil)
	_ gocmd.Querier[ListInstallationsMessage, []core.Installation] = (*ListInstallationsQuery)(nil)
	_ gocmd.Querier[GetAccessTokenMessage, string]                 = (*GetAccessTokenQuery)(nil)

	_ InstallationResolver = (*core.Service)(nil)
	_ TokenReader          = (*core.Service)(nil)
)
