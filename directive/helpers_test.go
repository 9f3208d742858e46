package directive

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-smarthome/catalog"
	"github.com/goliatone/go-smarthome/core"
	"github.com/goliatone/go-smarthome/protocol"
)

type memoryCredentialStore struct {
	mu      sync.Mutex
	records map[string]core.TokenRecord
	putErr  error
	puts    int
}

func newMemoryCredentialStore() *memoryCredentialStore {
	return &memoryCredentialStore{records: map[string]core.TokenRecord{}}
}

func (s *memoryCredentialStore) Get(_ context.Context, userID string) (core.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[userID]
	if !ok {
		return core.TokenRecord{}, core.ErrRecordNotFound
	}
	return record, nil
}

func (s *memoryCredentialStore) GetByDevice(context.Context, string) (core.TokenRecord, error) {
	return core.TokenRecord{}, core.ErrRecordNotFound
}

func (s *memoryCredentialStore) Put(_ context.Context, record core.TokenRecord) (core.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return core.TokenRecord{}, s.putErr
	}
	s.records[record.UserID] = record
	return record, nil
}

func (s *memoryCredentialStore) UpdateAccessToken(context.Context, string, core.TokenUpdate) (core.TokenRecord, error) {
	return core.TokenRecord{}, fmt.Errorf("not used")
}

func (s *memoryCredentialStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type memoryDeviceStore struct {
	mu        sync.Mutex
	records   map[string]core.DeviceRecord
	upsertErr error
	upserts   int
	active    int
	maxActive int
	delay     time.Duration
}

func newMemoryDeviceStore() *memoryDeviceStore {
	return &memoryDeviceStore{records: map[string]core.DeviceRecord{}}
}

func (s *memoryDeviceStore) Upsert(_ context.Context, record core.DeviceRecord) (core.DeviceRecord, error) {
	s.mu.Lock()
	s.upserts++
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active--
	if s.upsertErr != nil {
		return core.DeviceRecord{}, s.upsertErr
	}
	s.records[record.EndpointID] = record
	return record, nil
}

func (s *memoryDeviceStore) GetByEndpoint(_ context.Context, endpointID string) (core.DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[endpointID]
	if !ok {
		return core.DeviceRecord{}, core.ErrRecordNotFound
	}
	return record, nil
}

type stubIdentityProvider struct {
	mu        sync.Mutex
	exchanges []string
	grant     core.TokenGrant
	err       error
}

func (p *stubIdentityProvider) ExchangeCode(_ context.Context, code string) (core.TokenGrant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchanges = append(p.exchanges, code)
	if p.err != nil {
		return core.TokenGrant{}, p.err
	}
	return p.grant, nil
}

func (p *stubIdentityProvider) Refresh(context.Context, string) (core.TokenGrant, error) {
	return core.TokenGrant{}, fmt.Errorf("not used")
}

type stubProfiles struct {
	mu      sync.Mutex
	calls   int
	profile core.CustomerProfile
	err     error
	block   bool
}

func (p *stubProfiles) FetchProfile(ctx context.Context, _ string) (core.CustomerProfile, error) {
	p.mu.Lock()
	p.calls++
	block, profile, err := p.block, p.profile, p.err
	p.mu.Unlock()
	if block {
		<-ctx.Done()
		return core.CustomerProfile{}, ctx.Err()
	}
	return profile, err
}

type rejectingValidator struct{}

func (rejectingValidator) ValidateAccessToken(context.Context, string) error {
	return fmt.Errorf("token revoked")
}

type fixture struct {
	credentials *memoryCredentialStore
	devices     *memoryDeviceStore
	catalog     *catalog.StaticCatalog
	identity    *stubIdentityProvider
	profiles    *stubProfiles
	now         time.Time
}

func newFixture() *fixture {
	return &fixture{
		credentials: newMemoryCredentialStore(),
		devices:     newMemoryDeviceStore(),
		catalog:     catalog.NewStaticCatalog(),
		identity: &stubIdentityProvider{grant: core.TokenGrant{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresIn:    3600,
		}},
		profiles: &stubProfiles{profile: core.CustomerProfile{UserID: "amzn1.account.u1"}},
		now:      time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC),
	}
}

func (f *fixture) deps() Dependencies {
	return Dependencies{
		Credentials: f.credentials,
		Devices:     f.devices,
		Catalog:     f.catalog,
		Identity:    f.identity,
		Profiles:    f.profiles,
	}
}

func (f *fixture) dispatcher(t *testing.T, deps Dependencies, opts ...core.Option) *Dispatcher {
	t.Helper()
	opts = append([]core.Option{
		core.WithClock(func() time.Time { return f.now }),
		core.WithLogger(glog.Nop()),
	}, opts...)
	d, err := NewDispatcher(deps, opts...)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d
}

func acceptGrant(code, token string) core.Directive {
	payload, _ := json.Marshal(map[string]any{
		"grant":   map[string]string{"type": "OAuth2.AuthorizationCode", "code": code},
		"grantee": map[string]string{"type": protocol.ScopeTypeBearer, "token": token},
	})
	return core.Directive{
		Namespace:   protocol.NamespaceAuthorization,
		Name:        protocol.NameAcceptGrant,
		MessageID:   "in-1",
		BearerToken: token,
		Payload:     payload,
	}
}

func discover(token string) core.Directive {
	return core.Directive{
		Namespace:   protocol.NamespaceDiscovery,
		Name:        protocol.NameDiscover,
		MessageID:   "in-2",
		BearerToken: token,
	}
}

func control(name, endpointID, token string) core.Directive {
	return core.Directive{
		Namespace:        protocol.NamespaceAlexa,
		Name:             name,
		MessageID:        "in-3",
		CorrelationToken: "corr-1",
		EndpointID:       endpointID,
		BearerToken:      token,
	}
}

func mustDispatch(t *testing.T, d *Dispatcher, directive core.Directive) protocol.Response {
	t.Helper()
	response, err := d.Dispatch(context.Background(), directive)
	if err != nil {
		t.Fatalf("dispatch %s/%s: %v", directive.Namespace, directive.Name, err)
	}
	return response
}

func errorType(t *testing.T, response protocol.Response) string {
	t.Helper()
	payload, ok := protocol.ErrorPayloadOf(response)
	if !ok {
		t.Fatalf("expected error envelope, got %s", response.Event.Header.Name)
	}
	return payload.Type
}
