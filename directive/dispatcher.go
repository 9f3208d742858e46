package directive

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-smarthome/core"
	"github.com/goliatone/go-smarthome/protocol"
)

// WildcardName registers a namespace fallback route.
const WildcardName = "*"

type Handler interface {
	Handle(ctx context.Context, directive core.Directive) (protocol.Response, error)
}

type HandlerFunc func(ctx context.Context, directive core.Directive) (protocol.Response, error)

func (f HandlerFunc) Handle(ctx context.Context, directive core.Directive) (protocol.Response, error) {
	return f(ctx, directive)
}

// Dependencies are the collaborators the built-in flows call out to. Health
// may be omitted when Catalog also implements core.DeviceHealth; Validator
// defaults to a presence check.
type Dependencies struct {
	Credentials core.CredentialStore
	Devices     core.DeviceStore
	Catalog     core.DeviceCatalog
	Health      core.DeviceHealth
	Identity    core.IdentityProvider
	Profiles    core.ProfileFetcher
	Validator   core.TokenValidator
}

type routeKey struct {
	namespace string
	name      string
}

type Dispatcher struct {
	deps        Dependencies
	builder     protocol.Builder
	observer    core.Observer
	now         func() time.Time
	callTimeout time.Duration
	expiresIn   int64
	concurrency int

	mu       sync.RWMutex
	routes   map[routeKey]Handler
	controls map[string]Handler
}

func NewDispatcher(deps Dependencies, opts ...core.Option) (*Dispatcher, error) {
	if deps.Credentials == nil {
		return nil, fmt.Errorf("directive: credential store is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("directive: device store is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("directive: device catalog is required")
	}
	if deps.Identity == nil {
		return nil, fmt.Errorf("directive: identity provider is required")
	}
	if deps.Profiles == nil {
		return nil, fmt.Errorf("directive: profile fetcher is required")
	}
	if deps.Health == nil {
		health, ok := deps.Catalog.(core.DeviceHealth)
		if !ok {
			return nil, fmt.Errorf("directive: device health check is required")
		}
		deps.Health = health
	}
	if deps.Validator == nil {
		deps.Validator = core.PresenceTokenValidator{}
	}

	resolved := core.ResolveOptions("smarthome.directive", opts...)
	d := &Dispatcher{
		deps:        deps,
		builder:     protocol.NewBuilder(resolved.Now, resolved.MessageIDs),
		observer:    core.NewObserver("smarthome.directive", resolved.Logger, resolved.MetricsRecorder),
		now:         resolved.Now,
		callTimeout: resolved.CallTimeout,
		expiresIn:   resolved.DefaultExpiresIn,
		concurrency: resolved.DiscoveryConcurrency,
		routes:      map[routeKey]Handler{},
		controls:    map[string]Handler{},
	}

	defaults := []struct {
		namespace string
		name      string
		handler   HandlerFunc
	}{
		{protocol.NamespaceAuthorization, protocol.NameAcceptGrant, d.handleAcceptGrant},
		{protocol.NamespaceDiscovery, protocol.NameDiscover, d.handleDiscover},
		{protocol.NamespaceAlexa, WildcardName, d.handleControl},
	}
	for _, route := range defaults {
		if err := d.Register(route.namespace, route.name, route.handler); err != nil {
			return nil, err
		}
	}
	if err := d.RegisterControl(protocol.NameReportState, HandlerFunc(d.reportState)); err != nil {
		return nil, err
	}
	return d, nil
}

// Register adds a route. Registering the same (namespace, name) twice fails
// with a conflict.
func (d *Dispatcher) Register(namespace, name string, handler Handler) error {
	if d == nil {
		return core.NewError("directive: dispatcher is nil", goerrors.CategoryInternal, core.ErrorInternal)
	}
	if handler == nil {
		return core.NewError("directive: handler is nil", goerrors.CategoryBadInput, core.ErrorBadInput)
	}
	key := routeKey{namespace: strings.TrimSpace(namespace), name: strings.TrimSpace(name)}
	if key.namespace == "" || key.name == "" {
		return core.NewError("directive: namespace and name are required", goerrors.CategoryBadInput, core.ErrorBadInput)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.routes[key]; exists {
		return duplicateRegistration(fmt.Sprintf("directive: route already registered for %s/%s", key.namespace, key.name), key)
	}
	d.routes[key] = handler
	return nil
}

// RegisterControl adds a directive name served by the control flow once the
// token, endpoint and reachability checks pass.
func (d *Dispatcher) RegisterControl(name string, handler Handler) error {
	if d == nil {
		return core.NewError("directive: dispatcher is nil", goerrors.CategoryInternal, core.ErrorInternal)
	}
	if handler == nil {
		return core.NewError("directive: control handler is nil", goerrors.CategoryBadInput, core.ErrorBadInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.NewError("directive: control name is required", goerrors.CategoryBadInput, core.ErrorBadInput)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.controls[name]; exists {
		return duplicateRegistration(
			"directive: control already registered for "+name,
			routeKey{namespace: protocol.NamespaceAlexa, name: name},
		)
	}
	d.controls[name] = handler
	return nil
}

// Dispatch routes directive to its handler. The returned error is non-nil only
// for directives no route accepts.
func (d *Dispatcher) Dispatch(ctx context.Context, directive core.Directive) (protocol.Response, error) {
	if d == nil {
		return protocol.Response{}, core.NewError("directive: dispatcher is nil", goerrors.CategoryInternal, core.ErrorInternal)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now()
	directive = directive.Normalized()

	var response protocol.Response
	handler, err := d.route(directive.Namespace, directive.Name)
	if err == nil {
		response, err = handler.Handle(ctx, directive)
	}

	fields := directiveFields(directive)
	if payload, ok := protocol.ErrorPayloadOf(response); ok {
		fields["error_type"] = payload.Type
	}
	d.observer.Observe(ctx, startedAt, "dispatch", err, fields)
	if err != nil {
		return protocol.Response{}, err
	}
	return response, nil
}

func (d *Dispatcher) route(namespace, name string) (Handler, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if handler, ok := d.routes[routeKey{namespace: namespace, name: name}]; ok {
		return handler, nil
	}
	if handler, ok := d.routes[routeKey{namespace: namespace, name: WildcardName}]; ok {
		return handler, nil
	}
	for key := range d.routes {
		if key.namespace == namespace {
			return nil, core.NewError(
				fmt.Sprintf("directive: no supported directive %s in namespace %s", name, namespace),
				goerrors.CategoryBadInput,
				core.ErrorUnsupportedDirective,
			).WithMetadata(map[string]any{"namespace": namespace, "name": name})
		}
	}
	return nil, core.NewError(
		"directive: no supported namespace: "+namespace,
		goerrors.CategoryBadInput,
		core.ErrorUnknownNamespace,
	).WithMetadata(map[string]any{"namespace": namespace, "name": name})
}

func (d *Dispatcher) control(name string) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	handler, ok := d.controls[name]
	return handler, ok
}

func (d *Dispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.callTimeout)
}

// flowFailed logs the cause behind an error envelope. The caller only ever
// sees the envelope.
func (d *Dispatcher) flowFailed(ctx context.Context, flow string, stage string, directive core.Directive, err error) {
	fields := directiveFields(directive)
	fields["flow"] = flow
	fields["stage"] = stage
	if err != nil {
		fields["error"] = err.Error()
		if code := core.ErrorCode(err); code != "" {
			fields["error_code"] = code
		}
	}
	d.observer.Log(ctx, "warn", "directive: "+flow+" failed at "+stage, fields)
}

func duplicateRegistration(message string, key routeKey) error {
	return core.NewError(message, goerrors.CategoryConflict, core.ErrorDuplicateRegistration).
		WithMetadata(map[string]any{"namespace": key.namespace, "name": key.name})
}

func directiveFields(directive core.Directive) map[string]any {
	fields := map[string]any{
		"namespace":  directive.Namespace,
		"name":       directive.Name,
		"message_id": directive.MessageID,
	}
	if directive.CorrelationToken != "" {
		fields["correlation_token"] = directive.CorrelationToken
	}
	if directive.EndpointID != "" {
		fields["endpoint_id"] = directive.EndpointID
	}
	return fields
}
