package directive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-smarthome/catalog"
	"github.com/goliatone/go-smarthome/core"
	"github.com/goliatone/go-smarthome/protocol"
)

func TestDispatch_UnknownNamespaceIsHardError(t *testing.T) {
	f := newFixture()
	d := f.dispatcher(t, f.deps())
	_, err := d.Dispatch(context.Background(), core.Directive{Namespace: "Alexa.PowerController", Name: "TurnOn"})
	if !core.HasErrorCode(err, core.ErrorUnknownNamespace) {
		t.Fatalf("expected unknown namespace, got %v", err)
	}
}

func TestDispatch_UnknownNameWithoutFallbackIsHardError(t *testing.T) {
	f := newFixture()
	d := f.dispatcher(t, f.deps())
	_, err := d.Dispatch(context.Background(), core.Directive{Namespace: protocol.NamespaceAuthorization, Name: "RevokeGrant"})
	if !core.HasErrorCode(err, core.ErrorUnsupportedDirective) {
		t.Fatalf("expected unsupported directive, got %v", err)
	}
}

func TestRegister_DuplicateRouteConflicts(t *testing.T) {
	f := newFixture()
	d := f.dispatcher(t, f.deps())
	noop := HandlerFunc(func(context.Context, core.Directive) (protocol.Response, error) {
		return protocol.Response{}, nil
	})
	err := d.Register(protocol.NamespaceDiscovery, protocol.NameDiscover, noop)
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Category != goerrors.CategoryConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := d.RegisterControl(protocol.NameReportState, noop); !core.HasErrorCode(err, core.ErrorDuplicateRegistration) {
		t.Fatalf("expected duplicate control registration, got %v", err)
	}
	if err := d.Register("", "x", noop); !core.HasErrorCode(err, core.ErrorBadInput) {
		t.Fatalf("expected bad input, got %v", err)
	}
}

func TestRegister_AddsRoutesAndFallbacks(t *testing.T) {
	f := newFixture()
	d := f.dispatcher(t, f.deps())
	var seen []string
	record := func(tag string) HandlerFunc {
		return func(_ context.Context, directive core.Directive) (protocol.Response, error) {
			seen = append(seen, tag+":"+directive.Name)
			return protocol.Response{}, nil
		}
	}
	if err := d.Register("Alexa.PowerController", "TurnOn", record("exact")); err != nil {
		t.Fatalf("register exact: %v", err)
	}
	if err := d.Register("Alexa.PowerController", WildcardName, record("fallback")); err != nil {
		t.Fatalf("register fallback: %v", err)
	}
	mustDispatch(t, d, core.Directive{Namespace: "Alexa.PowerController", Name: "TurnOn"})
	mustDispatch(t, d, core.Directive{Namespace: "Alexa.PowerController", Name: "TurnOff"})
	if strings.Join(seen, ",") != "exact:TurnOn,fallback:TurnOff" {
		t.Fatalf("unexpected routing %v", seen)
	}
}

func TestRegisterControl_RunsAfterValidation(t *testing.T) {
	f := newFixture()
	d := f.dispatcher(t, f.deps())
	calls := 0
	err := d.RegisterControl("TurnOn", HandlerFunc(func(context.Context, core.Directive) (protocol.Response, error) {
		calls++
		return protocol.Response{Event: protocol.Event{Header: protocol.Header{Name: "Response"}}}, nil
	}))
	if err != nil {
		t.Fatalf("register control: %v", err)
	}
	mustDispatch(t, d, control("TurnOn", "", "tok"))
	if calls != 0 {
		t.Fatalf("expected endpoint check before control handler")
	}
	response := mustDispatch(t, d, control("TurnOn", catalog.DefaultEndpointID, "tok"))
	if calls != 1 || response.Event.Header.Name != "Response" {
		t.Fatalf("expected control handler response, got %+v", response.Event.Header)
	}
}

func TestNewDispatcher_RequiresCollaborators(t *testing.T) {
	f := newFixture()
	base := f.deps()
	cases := map[string]func(Dependencies) Dependencies{
		"credentials": func(d Dependencies) Dependencies { d.Credentials = nil; return d },
		"devices":     func(d Dependencies) Dependencies { d.Devices = nil; return d },
		"catalog":     func(d Dependencies) Dependencies { d.Catalog = nil; return d },
		"identity":    func(d Dependencies) Dependencies { d.Identity = nil; return d },
		"profiles":    func(d Dependencies) Dependencies { d.Profiles = nil; return d },
	}
	for name, mutate := range cases {
		if _, err := NewDispatcher(mutate(base)); err == nil {
			t.Fatalf("%s: expected constructor error", name)
		}
	}
}

func TestAcceptGrant_StoresTokenRecord(t *testing.T) {
	f := newFixture()
	d := f.dispatcher(t, f.deps())

	response := mustDispatch(t, d, acceptGrant("code-1", "grantee-tok"))
	if response.Event.Header.Name != protocol.NameAcceptGrantResponse || response.Event.Header.Namespace != protocol.NamespaceAuthorization {
		t.Fatalf("unexpected header %+v", response.Event.Header)
	}
	encoded, _ := json.Marshal(response)
	if !strings.Contains(string(encoded), `"payload":{}`) {
		t.Fatalf("expected empty payload, got %s", encoded)
	}
	if len(f.identity.exchanges) != 1 || f.identity.exchanges[0] != "code-1" {
		t.Fatalf("unexpected exchanges %v", f.identity.exchanges)
	}
	record, err := f.credentials.Get(context.Background(), "amzn1.account.u1")
	if err != nil {
		t.Fatalf("expected stored record: %v", err)
	}
	if record.AccessToken != "access-1" || record.RefreshToken != "refresh-1" || record.ExpiresIn != 3600 || record.IssuedAt != f.now.Unix() {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestAcceptGrant_DefaultsExpiry(t *testing.T) {
	f := newFixture()
	f.identity.grant.ExpiresIn = 0
	d := f.dispatcher(t, f.deps(), core.WithDefaultExpiresIn(1800))
	mustDispatch(t, d, acceptGrant("code-1", "tok"))
	record, _ := f.credentials.Get(context.Background(), "amzn1.account.u1")
	if record.ExpiresIn != 1800 {
		t.Fatalf("expected default expiry, got %d", record.ExpiresIn)
	}
}

func TestAcceptGrant_ExchangeFailureCreatesNoRecord(t *testing.T) {
	f := newFixture()
	f.identity.err = errors.New("invalid_grant")
	d := f.dispatcher(t, f.deps())

	response := mustDispatch(t, d, acceptGrant("bad", "tok"))
	if got := errorType(t, response); got != protocol.ErrorTypeAcceptGrantFailed {
		t.Fatalf("expected ACCEPT_GRANT_FAILED, got %s", got)
	}
	if f.credentials.puts != 0 || f.credentials.count() != 0 {
		t.Fatalf("expected no token record")
	}
}

func TestAcceptGrant_MissingAccessTokenCreatesNoRecord(t *testing.T) {
	f := newFixture()
	f.identity.grant = core.TokenGrant{RefreshToken: "refresh-only", ExpiresIn: 3600}
	d := f.dispatcher(t, f.deps())

	response := mustDispatch(t, d, acceptGrant("code-1", "tok"))
	if got := errorType(t, response); got != protocol.ErrorTypeAcceptGrantFailed {
		t.Fatalf("expected ACCEPT_GRANT_FAILED, got %s", got)
	}
	if f.credentials.puts != 0 {
		t.Fatalf("expected no token record, got %d puts", f.credentials.puts)
	}
}

func TestAcceptGrant_ProfileFailureSkipsExchange(t *testing.T) {
	f := newFixture()
	f.profiles.err = errors.New("profile unavailable")
	d := f.dispatcher(t, f.deps())

	response := mustDispatch(t, d, acceptGrant("code", "tok"))
	if got := errorType(t, response); got != protocol.ErrorTypeAcceptGrantFailed {
		t.Fatalf("expected ACCEPT_GRANT_FAILED, got %s", got)
	}
	if len(f.identity.exchanges) != 0 {
		t.Fatalf("expected no code exchange after profile failure")
	}
}

func TestAcceptGrant_StoreFailure(t *testing.T) {
	f := newFixture()
	f.credentials.putErr = errors.New("disk full")
	d := f.dispatcher(t, f.deps())
	if got := errorType(t, mustDispatch(t, d, acceptGrant("code", "tok"))); got != protocol.ErrorTypeAcceptGrantFailed {
		t.Fatalf("expected ACCEPT_GRANT_FAILED, got %s", got)
	}
}

func TestAcceptGrant_MissingGranteeOrCode(t *testing.T) {
	f := newFixture()
	d := f.dispatcher(t, f.deps())
	if got := errorType(t, mustDispatch(t, d, acceptGrant("code", ""))); got != protocol.ErrorTypeAcceptGrantFailed {
		t.Fatalf("expected ACCEPT_GRANT_FAILED for missing grantee, got %s", got)
	}
	if f.profiles.calls != 0 {
		t.Fatalf("expected no profile lookup without grantee token")
	}
	if got := errorType(t, mustDispatch(t, d, acceptGrant("", "tok"))); got != protocol.ErrorTypeAcceptGrantFailed {
		t.Fatalf("expected ACCEPT_GRANT_FAILED for missing code, got %s", got)
	}
	if len(f.identity.exchanges) != 0 {
		t.Fatalf("expected no exchange without code")
	}
}

func TestAcceptGrant_ProfileTimeout(t *testing.T) {
	f := newFixture()
	f.profiles.block = true
	d := f.dispatcher(t, f.deps(), core.WithCallTimeout(20*time.Millisecond))

	started := time.Now()
	if got := errorType(t, mustDispatch(t, d, acceptGrant("code", "tok"))); got != protocol.ErrorTypeAcceptGrantFailed {
		t.Fatalf("expected ACCEPT_GRANT_FAILED, got %s", got)
	}
	if time.Since(started) > time.Second {
		t.Fatalf("expected bounded profile call")
	}
}

func TestDiscover_UpsertsDevicesIdempotently(t *testing.T) {
	f := newFixture()
	d := f.dispatcher(t, f.deps())

	for range 2 {
		response := mustDispatch(t, d, discover("tok"))
		if response.Event.Header.Name != protocol.NameDiscoverResponse {
			t.Fatalf("unexpected header %+v", response.Event.Header)
		}
		payload, ok := response.Event.Payload.(protocol.DiscoveryPayload)
		if !ok || len(payload.Endpoints) != 1 || payload.Endpoints[0].EndpointID != catalog.DefaultEndpointID {
			t.Fatalf("unexpected discovery payload %+v", response.Event.Payload)
		}
	}
	if len(f.devices.records) != 1 {
		t.Fatalf("expected one device record, got %d", len(f.devices.records))
	}
	record := f.devices.records[catalog.DefaultEndpointID]
	if record.UserID != "amzn1.account.u1" || record.FriendlyName != "Honda Garage Door sensor" {
		t.Fatalf("unexpected device record %+v", record)
	}
}

func TestDiscover_ProfileFailureIsInternalError(t *testing.T) {
	f := newFixture()
	f.profiles.err = errors.New("lookup failed")
	d := f.dispatcher(t, f.deps())

	response := mustDispatch(t, d, discover("tok"))
	if got := errorType(t, response); got != protocol.ErrorTypeInternal {
		t.Fatalf("expected INTERNAL_ERROR, got %s", got)
	}
	encoded, _ := json.Marshal(response)
	if !strings.Contains(string(encoded), `"endpoints":[]`) {
		t.Fatalf("expected empty endpoint list, got %s", encoded)
	}
	if f.devices.upserts != 0 {
		t.Fatalf("expected no upserts")
	}
}

func TestDiscover_UpsertFailureIsInternalError(t *testing.T) {
	f := newFixture()
	f.devices.upsertErr = errors.New("write failed")
	d := f.dispatcher(t, f.deps())
	if got := errorType(t, mustDispatch(t, d, discover("tok"))); got != protocol.ErrorTypeInternal {
		t.Fatalf("expected INTERNAL_ERROR, got %s", got)
	}
}

func TestDiscover_MissingTokenIsInvalidCredential(t *testing.T) {
	f := newFixture()
	d := f.dispatcher(t, f.deps())
	if got := errorType(t, mustDispatch(t, d, discover(""))); got != protocol.ErrorTypeInvalidAuthCredential {
		t.Fatalf("expected INVALID_AUTHORIZATION_CREDENTIAL, got %s", got)
	}
	if f.profiles.calls != 0 {
		t.Fatalf("expected no profile lookup")
	}
}

func TestDiscover_BoundsUpsertConcurrency(t *testing.T) {
	f := newFixture()
	devices := make([]core.DeviceDescriptor, 0, 12)
	for i := range 12 {
		devices = append(devices, core.DeviceDescriptor{EndpointID: fmt.Sprintf("sensor-%02d", i), FriendlyName: "sensor"})
	}
	f.catalog = catalog.NewStaticCatalog(devices...)
	f.devices.delay = 5 * time.Millisecond
	d := f.dispatcher(t, f.deps(), core.WithDiscoveryConcurrency(3))

	mustDispatch(t, d, discover("tok"))
	if f.devices.upserts != 12 || len(f.devices.records) != 12 {
		t.Fatalf("expected 12 upserts, got %d", f.devices.upserts)
	}
	if f.devices.maxActive > 3 {
		t.Fatalf("expected at most 3 concurrent upserts, saw %d", f.devices.maxActive)
	}
}

func TestControl_ReportState(t *testing.T) {
	f := newFixture()
	d := f.dispatcher(t, f.deps())

	response := mustDispatch(t, d, control(protocol.NameReportState, catalog.DefaultEndpointID, "tok"))
	if response.Event.Header.Name != protocol.NameStateReport || response.Event.Header.CorrelationToken != "corr-1" {
		t.Fatalf("unexpected header %+v", response.Event.Header)
	}
	if response.Context == nil || len(response.Context.Properties) != 2 {
		t.Fatalf("expected two context properties, got %+v", response.Context)
	}
	first := response.Context.Properties[0]
	if first.Name != protocol.PropertyDetectionState || first.Value != protocol.DetectionStateNotDetected {
		t.Fatalf("unexpected first property %+v", first)
	}
	if first.TimeOfSample != "2026-05-06T07:08:09Z" || first.UncertaintyMs != 0 {
		t.Fatalf("unexpected sample stamp %+v", first)
	}
	if response.Context.Properties[1].Namespace != protocol.NamespaceEndpointHealth {
		t.Fatalf("unexpected second property %+v", response.Context.Properties[1])
	}
}

func TestControl_UnsupportedName(t *testing.T) {
	f := newFixture()
	d := f.dispatcher(t, f.deps())
	response := mustDispatch(t, d, control("TurnOn", catalog.DefaultEndpointID, "tok"))
	payload, ok := protocol.ErrorPayloadOf(response)
	if !ok || payload.Type != protocol.ErrorTypeInvalidDirective || !strings.Contains(payload.Message, "TurnOn") {
		t.Fatalf("expected INVALID_DIRECTIVE naming TurnOn, got %+v", payload)
	}
	if response.Event.Endpoint == nil || response.Event.Endpoint.EndpointID != catalog.DefaultEndpointID {
		t.Fatalf("expected endpoint echo, got %+v", response.Event.Endpoint)
	}
}

func TestControl_TokenCheckPrecedesEndpointCheck(t *testing.T) {
	f := newFixture()
	deps := f.deps()
	deps.Validator = rejectingValidator{}
	d := f.dispatcher(t, deps)
	assertInvalidTokenEnvelope(t, mustDispatch(t, d, control(protocol.NameReportState, "", "tok")))

	plain := f.dispatcher(t, f.deps())
	assertInvalidTokenEnvelope(t, mustDispatch(t, plain, control(protocol.NameReportState, "", "")))
}

func assertInvalidTokenEnvelope(t *testing.T, resp protocol.Response) {
	t.Helper()
	if resp.Event.Header.Name != protocol.NameErrorResponse {
		t.Fatalf("expected error response, got %s", resp.Event.Header.Name)
	}
	payload, err := json.Marshal(resp.Event.Payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if string(payload) != "{}" {
		t.Fatalf("expected empty payload, got %s", payload)
	}
}

func TestControl_MissingEndpoint(t *testing.T) {
	f := newFixture()
	d := f.dispatcher(t, f.deps())
	if got := errorType(t, mustDispatch(t, d, control(protocol.NameReportState, "", "tok"))); got != protocol.ErrorTypeNoSuchEndpoint {
		t.Fatalf("expected NO_SUCH_ENDPOINT, got %s", got)
	}
}

func TestControl_OfflineEndpoint(t *testing.T) {
	f := newFixture()
	f.catalog.SetOnline(catalog.DefaultEndpointID, false)
	d := f.dispatcher(t, f.deps())
	if got := errorType(t, mustDispatch(t, d, control(protocol.NameReportState, catalog.DefaultEndpointID, "tok"))); got != protocol.ErrorTypeEndpointUnreachable {
		t.Fatalf("expected ENDPOINT_UNREACHABLE, got %s", got)
	}
	// reachability precedes the name check
	if got := errorType(t, mustDispatch(t, d, control("TurnOn", catalog.DefaultEndpointID, "tok"))); got != protocol.ErrorTypeEndpointUnreachable {
		t.Fatalf("expected ENDPOINT_UNREACHABLE for offline unsupported name, got %s", got)
	}
	if got := errorType(t, mustDispatch(t, d, control(protocol.NameReportState, "unknown-endpoint", "tok"))); got != protocol.ErrorTypeEndpointUnreachable {
		t.Fatalf("expected ENDPOINT_UNREACHABLE for health error, got %s", got)
	}
}

func TestDispatch_MessageIDsAreUnique(t *testing.T) {
	f := newFixture()
	d := f.dispatcher(t, f.deps())
	seen := make(map[string]struct{}, 10000)
	for i := range 10000 {
		response := mustDispatch(t, d, control("TurnOn", "", fmt.Sprintf("tok-%d", i)))
		id := response.Event.Header.MessageID
		if id == "" {
			t.Fatalf("expected message id")
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate message id %s after %d responses", id, i)
		}
		seen[id] = struct{}{}
	}
}

func TestDispatch_RecordsMetrics(t *testing.T) {
	f := newFixture()
	metrics := &countingMetrics{counters: map[string]int64{}}
	d := f.dispatcher(t, f.deps(), core.WithMetricsRecorder(metrics))
	mustDispatch(t, d, control("TurnOn", catalog.DefaultEndpointID, "tok"))
	_, _ = d.Dispatch(context.Background(), core.Directive{Namespace: "Nope", Name: "x"})
	if metrics.counters["smarthome.directive.dispatch.total"] != 2 {
		t.Fatalf("expected two dispatch counts, got %+v", metrics.counters)
	}
	if metrics.lastTags["status"] != "failure" {
		t.Fatalf("expected failure status on hard error, got %+v", metrics.lastTags)
	}
}

type countingMetrics struct {
	counters map[string]int64
	lastTags map[string]string
}

func (m *countingMetrics) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.counters[name] += value
	m.lastTags = tags
}

func (m *countingMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}
