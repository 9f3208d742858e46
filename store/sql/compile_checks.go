package sqlstore

import "github.com/goliatone/go-smarthome/core"

var (
	_ core.CredentialStore = (*CredentialStore)(nil)
	_ core.DeviceStore     = (*DeviceStore)(nil)
	_ core.DeviceStore     = (*CachedDeviceStore)(nil)
	_ core.StoreProvider   = (*RepositoryFactory)(nil)
)
