package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-smarthome/core"
)

type stubDeviceStore struct {
	mu          sync.Mutex
	records     map[string]core.DeviceRecord
	getCalls    int
	upsertCalls int
	upsertErr   error
}

func (s *stubDeviceStore) Upsert(_ context.Context, record core.DeviceRecord) (core.DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	if s.upsertErr != nil {
		return core.DeviceRecord{}, s.upsertErr
	}
	if s.records == nil {
		s.records = map[string]core.DeviceRecord{}
	}
	s.records[record.EndpointID] = record
	return record, nil
}

func (s *stubDeviceStore) GetByEndpoint(_ context.Context, endpointID string) (core.DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	record, ok := s.records[strings.TrimSpace(endpointID)]
	if !ok {
		return core.DeviceRecord{}, fmt.Errorf("stub: %w", core.ErrRecordNotFound)
	}
	return record, nil
}

func TestCachedDeviceStore_MissFetchThenHit(t *testing.T) {
	base := &stubDeviceStore{records: map[string]core.DeviceRecord{
		"e1": {EndpointID: "e1", UserID: "u1"},
	}}
	store, err := NewCachedDeviceStore(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached device store: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := store.GetByEndpoint(context.Background(), "e1")
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if got.UserID != "u1" {
			t.Fatalf("unexpected record %+v", got)
		}
	}
	if base.getCalls != 1 {
		t.Fatalf("expected one base read, got %d", base.getCalls)
	}
}

func TestCachedDeviceStore_UpsertInvalidates(t *testing.T) {
	base := &stubDeviceStore{records: map[string]core.DeviceRecord{
		"e1": {EndpointID: "e1", UserID: "u1"},
	}}
	store, err := NewCachedDeviceStore(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached device store: %v", err)
	}
	if _, err := store.GetByEndpoint(context.Background(), "e1"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if _, err := store.Upsert(context.Background(), core.DeviceRecord{EndpointID: " e1 ", UserID: "u2"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := store.GetByEndpoint(context.Background(), "e1")
	if err != nil {
		t.Fatalf("get after upsert: %v", err)
	}
	if got.UserID != "u2" {
		t.Fatalf("expected invalidated entry to reload owner u2, got %+v", got)
	}
	if base.getCalls != 2 {
		t.Fatalf("expected a second base read after invalidation, got %d", base.getCalls)
	}
}

func TestCachedDeviceStore_UpsertErrorKeepsCache(t *testing.T) {
	base := &stubDeviceStore{records: map[string]core.DeviceRecord{"e1": {EndpointID: "e1", UserID: "u1"}}}
	store, err := NewCachedDeviceStore(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached device store: %v", err)
	}
	base.upsertErr = fmt.Errorf("write failed")
	if _, err := store.Upsert(context.Background(), core.DeviceRecord{EndpointID: "e1", UserID: "u2"}); err == nil {
		t.Fatalf("expected upsert error")
	}
}

type failingDeleteCache struct {
	repositorycache.CacheService
	deletes int
}

func (c *failingDeleteCache) Delete(context.Context, string) error {
	c.deletes++
	return fmt.Errorf("cache unavailable")
}

func TestCachedDeviceStore_InvalidationFailureKeepsWrite(t *testing.T) {
	base := &stubDeviceStore{}
	cacheService := &failingDeleteCache{CacheService: newTestCacheService(t)}
	store, err := NewCachedDeviceStore(base, cacheService)
	if err != nil {
		t.Fatalf("new cached device store: %v", err)
	}
	stored, err := store.Upsert(context.Background(), core.DeviceRecord{EndpointID: "e1", UserID: "u1"})
	if err != nil {
		t.Fatalf("expected upsert to succeed despite cache failure, got %v", err)
	}
	if stored.EndpointID != "e1" || stored.UserID != "u1" {
		t.Fatalf("unexpected stored record %+v", stored)
	}
	if base.upsertCalls != 1 || cacheService.deletes != 1 {
		t.Fatalf("expected one write and one invalidation, got %d and %d", base.upsertCalls, cacheService.deletes)
	}
}

func TestDeviceCacheKey(t *testing.T) {
	key, err := DeviceCacheKey(" Honda Garage/1 ")
	if err != nil {
		t.Fatalf("cache key: %v", err)
	}
	if key != "go-smarthome::device::v1::Honda%20Garage%2F1" {
		t.Fatalf("unexpected cache key %q", key)
	}
	if _, err := DeviceCacheKey(" "); err == nil {
		t.Fatalf("expected error for empty endpoint id")
	}
}

func TestNewCachedDeviceStore_RequiresDependencies(t *testing.T) {
	if _, err := NewCachedDeviceStore(nil, newTestCacheService(t)); err == nil {
		t.Fatalf("expected missing base error")
	}
	if _, err := NewCachedDeviceStore(&stubDeviceStore{}, nil); err == nil {
		t.Fatalf("expected missing cache error")
	}
}

func newTestCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}
