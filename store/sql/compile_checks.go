package sqlstore

import "github.com/goliatone/go-whatsapp-bridge/core"

var (
	_ core.InstallationStore = (*InstallationStore)(nil)
	_ core.InstallationStore = (*CachedInstallationStore)(nil)
)
