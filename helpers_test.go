package smarthome

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-smarthome/catalog"
	"github.com/goliatone/go-smarthome/core"
)

type memoryStores struct {
	mu      sync.Mutex
	tokens  map[string]core.TokenRecord
	devices map[string]core.DeviceRecord
}

func newMemoryStores() *memoryStores {
	return &memoryStores{tokens: map[string]core.TokenRecord{}, devices: map[string]core.DeviceRecord{}}
}

func (s *memoryStores) CredentialStore() core.CredentialStore { return memoryCredentials{s} }
func (s *memoryStores) DeviceStore() core.DeviceStore         { return memoryDevices{s} }

type memoryCredentials struct{ s *memoryStores }

func (m memoryCredentials) Get(_ context.Context, userID string) (core.TokenRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	record, ok := m.s.tokens[userID]
	if !ok {
		return core.TokenRecord{}, core.ErrRecordNotFound
	}
	return record, nil
}

func (m memoryCredentials) GetByDevice(ctx context.Context, endpointID string) (core.TokenRecord, error) {
	device, err := memoryDevices(m).GetByEndpoint(ctx, endpointID)
	if err != nil {
		return core.TokenRecord{}, err
	}
	return m.Get(ctx, device.UserID)
}

func (m memoryCredentials) Put(_ context.Context, record core.TokenRecord) (core.TokenRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.tokens[record.UserID] = record
	return record, nil
}

func (m memoryCredentials) UpdateAccessToken(_ context.Context, userID string, update core.TokenUpdate) (core.TokenRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	record, ok := m.s.tokens[userID]
	if !ok {
		return core.TokenRecord{}, core.ErrRecordNotFound
	}
	record.AccessToken = update.AccessToken
	if update.RefreshToken != "" {
		record.RefreshToken = update.RefreshToken
	}
	record.IssuedAt = update.IssuedAt
	record.ExpiresIn = update.ExpiresIn
	m.s.tokens[userID] = record
	return record, nil
}

type memoryDevices struct{ s *memoryStores }

func (m memoryDevices) Upsert(_ context.Context, record core.DeviceRecord) (core.DeviceRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.devices[record.EndpointID] = record
	return record, nil
}

func (m memoryDevices) GetByEndpoint(_ context.Context, endpointID string) (core.DeviceRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	record, ok := m.s.devices[endpointID]
	if !ok {
		return core.DeviceRecord{}, core.ErrRecordNotFound
	}
	return record, nil
}

type stubIdentity struct {
	mu        sync.Mutex
	exchanges int
	refreshes int
}

func (s *stubIdentity) ExchangeCode(_ context.Context, code string) (core.TokenGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges++
	return core.TokenGrant{AccessToken: "access-" + code, RefreshToken: "refresh-" + code, ExpiresIn: 3600}, nil
}

func (s *stubIdentity) Refresh(_ context.Context, refreshToken string) (core.TokenGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	return core.TokenGrant{AccessToken: fmt.Sprintf("refreshed-%d", s.refreshes), ExpiresIn: 3600}, nil
}

type stubProfiles struct {
	userID string
}

func (s stubProfiles) FetchProfile(_ context.Context, accessToken string) (core.CustomerProfile, error) {
	if accessToken == "" {
		return core.CustomerProfile{}, fmt.Errorf("missing token")
	}
	return core.CustomerProfile{UserID: s.userID}, nil
}

type recordingGateway struct {
	mu      sync.Mutex
	reports []core.ChangeReport
}

func (g *recordingGateway) SendChangeReport(_ context.Context, report core.ChangeReport) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reports = append(g.reports, report)
	return nil
}

func (g *recordingGateway) sent() []core.ChangeReport {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]core.ChangeReport(nil), g.reports...)
}

type bridgeFixture struct {
	stores   *memoryStores
	identity *stubIdentity
	gateway  *recordingGateway
	now      time.Time
}

func newBridgeFixture() *bridgeFixture {
	return &bridgeFixture{
		stores:   newMemoryStores(),
		identity: &stubIdentity{},
		gateway:  &recordingGateway{},
		now:      time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *bridgeFixture) deps() Dependencies {
	return Dependencies{
		Stores:   f.stores,
		Catalog:  catalog.NewStaticCatalog(catalog.DefaultDevices()...),
		Identity: f.identity,
		Profiles: stubProfiles{userID: "amzn1.account.A"},
		Gateway:  f.gateway,
	}
}

func (f *bridgeFixture) bridge(t *testing.T) *Bridge {
	t.Helper()
	ids := 0
	bridge, err := New(DefaultConfig(), f.deps(),
		WithClock(func() time.Time { return f.now }),
		WithMessageIDGenerator(func() string {
			ids++
			return fmt.Sprintf("msg-%d", ids)
		}),
	)
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	return bridge
}
