package smarthome

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-smarthome/core"
	"github.com/goliatone/go-smarthome/directive"
	"github.com/goliatone/go-smarthome/events"
	"github.com/goliatone/go-smarthome/protocol"
)

// Dependencies are the collaborators a Bridge is assembled from. Stores may
// stand in for Credentials and Devices; explicit stores win.
type Dependencies struct {
	Stores      core.StoreProvider
	Credentials core.CredentialStore
	Devices     core.DeviceStore
	Catalog     core.DeviceCatalog
	Health      core.DeviceHealth
	Identity    core.IdentityProvider
	Profiles    core.ProfileFetcher
	Validator   core.TokenValidator
	Gateway     core.EventGateway
}

// Bridge ties the token manager, the directive dispatcher and the device
// event reporter together behind one entry point.
type Bridge struct {
	config     Config
	tokens     *core.TokenManager
	dispatcher *directive.Dispatcher
	reporter   *events.Reporter
	observer   core.Observer
}

func New(cfg Config, deps Dependencies, opts ...Option) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Stores != nil {
		if deps.Credentials == nil {
			deps.Credentials = deps.Stores.CredentialStore()
		}
		if deps.Devices == nil {
			deps.Devices = deps.Stores.DeviceStore()
		}
	}

	options := append([]Option{core.WithConfig(cfg)}, opts...)
	tokens, err := core.NewTokenManager(deps.Credentials, deps.Identity, options...)
	if err != nil {
		return nil, err
	}
	dispatcher, err := directive.NewDispatcher(directive.Dependencies{
		Credentials: deps.Credentials,
		Devices:     deps.Devices,
		Catalog:     deps.Catalog,
		Health:      deps.Health,
		Identity:    deps.Identity,
		Profiles:    deps.Profiles,
		Validator:   deps.Validator,
	}, options...)
	if err != nil {
		return nil, err
	}
	reporter, err := events.NewReporter(deps.Devices, tokens, deps.Gateway, options...)
	if err != nil {
		return nil, err
	}

	resolved := core.ResolveOptions(cfg.ServiceName, options...)
	return &Bridge{
		config:     cfg,
		tokens:     tokens,
		dispatcher: dispatcher,
		reporter:   reporter,
		observer:   core.NewObserver(cfg.ServiceName, resolved.Logger, resolved.MetricsRecorder),
	}, nil
}

// Handle decodes raw and routes it. Device status notifications go to the
// reporter and yield a nil response; directives go to the dispatcher. A
// non-nil error means raw could not be decoded or routed at all.
func (b *Bridge) Handle(ctx context.Context, raw []byte) (*protocol.Response, error) {
	if b == nil {
		return nil, core.NewError("smarthome: bridge is nil", goerrors.CategoryInternal, core.ErrorInternal)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := protocol.DecodeRequest(raw)
	if err != nil {
		b.observer.Log(ctx, "warn", "smarthome: rejected request", map[string]any{"error": err.Error()})
		return nil, err
	}
	switch req.Kind {
	case protocol.RequestKindDeviceStatus:
		b.reporter.ReportDeviceEvent(ctx, req.DeviceStatus.EndpointID)
		return nil, nil
	case protocol.RequestKindDirective:
		response, err := b.dispatcher.Dispatch(ctx, req.Directive)
		if err != nil {
			return nil, err
		}
		return &response, nil
	default:
		return nil, core.NewError(
			fmt.Sprintf("smarthome: unsupported request kind %q", req.Kind),
			goerrors.CategoryBadInput,
			core.ErrorBadInput,
		)
	}
}

// HandleDirective dispatches an already decoded directive.
func (b *Bridge) HandleDirective(ctx context.Context, d core.Directive) (protocol.Response, error) {
	if b == nil {
		return protocol.Response{}, core.NewError("smarthome: bridge is nil", goerrors.CategoryInternal, core.ErrorInternal)
	}
	return b.dispatcher.Dispatch(ctx, d)
}

// Report sends a change report for status and returns the flow error.
func (b *Bridge) Report(ctx context.Context, status core.DeviceStatus) error {
	if b == nil {
		return core.NewError("smarthome: bridge is nil", goerrors.CategoryInternal, core.ErrorInternal)
	}
	return b.reporter.Report(ctx, status)
}

func (b *Bridge) EnsureValidToken(ctx context.Context, userID string) (core.TokenRecord, error) {
	if b == nil {
		return core.TokenRecord{}, core.NewError("smarthome: bridge is nil", goerrors.CategoryInternal, core.ErrorInternal)
	}
	return b.tokens.EnsureValidToken(ctx, userID)
}

func (b *Bridge) TokenState(ctx context.Context, userID string) (core.TokenStatus, error) {
	if b == nil {
		return core.TokenStatus{}, core.NewError("smarthome: bridge is nil", goerrors.CategoryInternal, core.ErrorInternal)
	}
	return b.tokens.TokenState(ctx, userID)
}

func (b *Bridge) Config() Config {
	if b == nil {
		return Config{}
	}
	return b.config
}

func (b *Bridge) Tokens() *core.TokenManager {
	if b == nil {
		return nil
	}
	return b.tokens
}

func (b *Bridge) Dispatcher() *directive.Dispatcher {
	if b == nil {
		return nil
	}
	return b.dispatcher
}

func (b *Bridge) Reporter() *events.Reporter {
	if b == nil {
		return nil
	}
	return b.reporter
}

var (
	_ core.TokenEnsurer     = (*Bridge)(nil)
	_ core.TokenStateReader = (*Bridge)(nil)
)
