package identity

import "github.com/goliatone/go-smarthome/core"

var (
	_ core.ProfileFetcher = (*ProfileClient)(nil)
	_ core.ProfileFetcher = (*CachedProfileFetcher)(nil)
	_ core.TokenValidator = (*ProfileTokenValidator)(nil)
)
