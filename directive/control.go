package directive

import (
	"context"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-smarthome/core"
	"github.com/goliatone/go-smarthome/protocol"
)

const flowControl = "control"

// handleControl checks, in order, the token, the endpoint id, reachability
// and the directive name. The first failing check decides the envelope.
func (d *Dispatcher) handleControl(ctx context.Context, directive core.Directive) (protocol.Response, error) {
	if err := d.validateToken(ctx, directive.BearerToken); err != nil {
		d.flowFailed(ctx, flowControl, "token", directive, err)
		return d.builder.InvalidTokenResponse(directive), nil
	}

	if directive.EndpointID == "" {
		d.flowFailed(ctx, flowControl, "endpoint", directive, core.NewError("directive: endpoint id is required", goerrors.CategoryNotFound, core.ErrorUnknownEndpoint))
		return d.builder.ErrorResponse(directive, protocol.ErrorTypeNoSuchEndpoint, "endpointId: Invalid endpoint"), nil
	}

	healthCtx, cancel := d.withTimeout(ctx)
	online, err := d.deps.Health.IsDeviceOnline(healthCtx, directive.EndpointID)
	cancel()
	if err != nil || !online {
		if err == nil {
			err = core.NewError("directive: endpoint is offline", goerrors.CategoryExternal, core.ErrorEndpointUnreachable)
		}
		d.flowFailed(ctx, flowControl, "reachability", directive, err)
		return d.builder.ErrorResponse(
			directive,
			protocol.ErrorTypeEndpointUnreachable,
			"Unable to reach endpoint because it appears to be offline",
		), nil
	}

	handler, ok := d.control(directive.Name)
	if !ok {
		d.flowFailed(ctx, flowControl, "name", directive, core.NewError("directive: unsupported directive "+directive.Name, goerrors.CategoryBadInput, core.ErrorUnsupportedDirective))
		return d.builder.ErrorResponse(directive, protocol.ErrorTypeInvalidDirective, "Invalid directive name "+directive.Name), nil
	}
	return handler.Handle(ctx, directive)
}

func (d *Dispatcher) validateToken(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return core.NewError("directive: access token is required", goerrors.CategoryAuth, core.ErrorInvalidToken)
	}
	callCtx, cancel := d.withTimeout(ctx)
	defer cancel()
	return d.deps.Validator.ValidateAccessToken(callCtx, accessToken)
}

// reportState answers with the fixed contact sensor snapshot.
func (d *Dispatcher) reportState(_ context.Context, directive core.Directive) (protocol.Response, error) {
	sampledAt := d.now().UTC()
	return d.builder.StateReport(directive, []core.PropertyState{
		{
			Namespace:    protocol.NamespaceContactSensor,
			Name:         protocol.PropertyDetectionState,
			Value:        protocol.DetectionStateNotDetected,
			TimeOfSample: sampledAt,
		},
		{
			Namespace:    protocol.NamespaceEndpointHealth,
			Name:         protocol.PropertyConnectivity,
			Value:        map[string]string{"value": protocol.ConnectivityOK},
			TimeOfSample: sampledAt,
		},
	}), nil
}
