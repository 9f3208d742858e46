package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-smarthome/core"
)

const deviceCacheKeyPrefix = "go-smarthome::device::v1"

// CachedDeviceStore serves GetByEndpoint from a read-through cache and
// invalidates the entry on every Upsert.
type CachedDeviceStore struct {
	base     core.DeviceStore
	cache    repositorycache.CacheService
	observer core.Observer
}

func NewCachedDeviceStore(base core.DeviceStore, cacheService repositorycache.CacheService, opts ...core.Option) (*CachedDeviceStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base device store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: device cache service is required")
	}
	resolved := core.ResolveOptions("smarthome.store.devices", opts...)
	return &CachedDeviceStore{
		base:     base,
		cache:    cacheService,
		observer: core.NewObserver("smarthome.store.devices", resolved.Logger, resolved.MetricsRecorder),
	}, nil
}

// DeviceCacheKey returns go-smarthome::device::v1::<endpoint_id> with the
// endpoint id URL-path escaped.
func DeviceCacheKey(endpointID string) (string, error) {
	endpointID = strings.TrimSpace(endpointID)
	if endpointID == "" {
		return "", fmt.Errorf("sqlstore: endpoint id is required")
	}
	return deviceCacheKeyPrefix + "::" + url.PathEscape(endpointID), nil
}

func (s *CachedDeviceStore) GetByEndpoint(ctx context.Context, endpointID string) (core.DeviceRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.DeviceRecord{}, fmt.Errorf("sqlstore: cached device store is not configured")
	}
	cacheKey, err := DeviceCacheKey(endpointID)
	if err != nil {
		return core.DeviceRecord{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.DeviceRecord, error) {
		fetched, fetchErr := s.base.GetByEndpoint(ctx, endpointID)
		if fetchErr != nil {
			return core.DeviceRecord{}, fetchErr
		}
		return fetched.Normalized(), nil
	})
}

func (s *CachedDeviceStore) Upsert(ctx context.Context, record core.DeviceRecord) (core.DeviceRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.DeviceRecord{}, fmt.Errorf("sqlstore: cached device store is not configured")
	}
	record = record.Normalized()
	cacheKey, err := DeviceCacheKey(record.EndpointID)
	if err != nil {
		return core.DeviceRecord{}, err
	}
	stored, err := s.base.Upsert(ctx, record)
	if err != nil {
		return core.DeviceRecord{}, err
	}
	// The row is written; a stale entry expires with the cache TTL.
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		s.observer.Log(ctx, "warn", "sqlstore: device cache invalidation failed", map[string]any{
			"endpoint_id": record.EndpointID,
			"error":       err.Error(),
		})
	}
	return stored, nil
}
