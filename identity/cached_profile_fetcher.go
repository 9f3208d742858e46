package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-smarthome/core"
)

const profileCacheKeyPrefix = "go-smarthome::profile::v1"

// CachedProfileFetcher memoises profile lookups per access token.
type CachedProfileFetcher struct {
	base  core.ProfileFetcher
	cache repositorycache.CacheService
}

func NewCachedProfileFetcher(base core.ProfileFetcher, cacheService repositorycache.CacheService) (*CachedProfileFetcher, error) {
	if base == nil {
		return nil, fmt.Errorf("identity: base profile fetcher is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("identity: profile cache service is required")
	}
	return &CachedProfileFetcher{base: base, cache: cacheService}, nil
}

// ProfileCacheKey returns go-smarthome::profile::v1::<sha256(token)>. Raw
// tokens never appear in cache keys.
func ProfileCacheKey(accessToken string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(accessToken)))
	return profileCacheKeyPrefix + "::" + hex.EncodeToString(sum[:])
}

func (f *CachedProfileFetcher) FetchProfile(ctx context.Context, accessToken string) (core.CustomerProfile, error) {
	if f == nil || f.base == nil || f.cache == nil {
		return core.CustomerProfile{}, fmt.Errorf("identity: cached profile fetcher is not configured")
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return f.base.FetchProfile(ctx, accessToken)
	}
	return repositorycache.GetOrFetch(ctx, f.cache, ProfileCacheKey(accessToken), func(ctx context.Context) (core.CustomerProfile, error) {
		return f.base.FetchProfile(ctx, accessToken)
	})
}

// Forget drops the memoised profile for accessToken.
func (f *CachedProfileFetcher) Forget(ctx context.Context, accessToken string) error {
	if f == nil || f.cache == nil {
		return nil
	}
	return f.cache.Delete(ctx, ProfileCacheKey(accessToken))
}
