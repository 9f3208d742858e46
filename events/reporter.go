package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-smarthome/core"
	"github.com/goliatone/go-smarthome/protocol"
)

type Reporter struct {
	devices     core.DeviceStore
	tokens      core.TokenEnsurer
	gateway     core.EventGateway
	observer    core.Observer
	ids         core.MessageIDGenerator
	now         func() time.Time
	callTimeout time.Duration
}

func NewReporter(devices core.DeviceStore, tokens core.TokenEnsurer, gateway core.EventGateway, opts ...core.Option) (*Reporter, error) {
	if devices == nil {
		return nil, fmt.Errorf("events: device store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("events: token ensurer is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("events: event gateway is required")
	}
	resolved := core.ResolveOptions("smarthome.events", opts...)
	return &Reporter{
		devices:     devices,
		tokens:      tokens,
		gateway:     gateway,
		observer:    core.NewObserver("smarthome.events", resolved.Logger, resolved.MetricsRecorder),
		ids:         resolved.MessageIDs,
		now:         resolved.Now,
		callTimeout: resolved.CallTimeout,
	}, nil
}

// ReportDeviceEvent reports a state change for endpointID. Failures are
// logged only.
func (r *Reporter) ReportDeviceEvent(ctx context.Context, endpointID string) {
	_ = r.Report(ctx, core.DeviceStatus{EndpointID: endpointID})
}

// Report resolves the device owner, makes sure the owner's token is fresh and
// sends a DETECTED change report. The returned error has already been logged.
func (r *Reporter) Report(ctx context.Context, status core.DeviceStatus) error {
	if r == nil {
		return fmt.Errorf("events: reporter is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now()
	status.EndpointID = strings.TrimSpace(status.EndpointID)
	status.Status = strings.TrimSpace(status.Status)
	fields := map[string]any{
		"endpoint_id": status.EndpointID,
		"status":      status.Status,
	}

	err := r.report(ctx, status, fields)
	r.observer.Observe(ctx, startedAt, "report_device_event", err, fields)
	return err
}

func (r *Reporter) report(ctx context.Context, status core.DeviceStatus, fields map[string]any) error {
	if status.EndpointID == "" {
		fields["stage"] = "decode"
		return core.NewError("events: endpoint id is required", goerrors.CategoryBadInput, core.ErrorBadInput)
	}

	lookupCtx, cancel := r.withTimeout(ctx)
	device, err := r.devices.GetByEndpoint(lookupCtx, status.EndpointID)
	cancel()
	if err != nil {
		fields["stage"] = "device_lookup"
		if core.IsRecordNotFound(err) {
			return core.WrapError(err, goerrors.CategoryNotFound, core.ErrorUnknownEndpoint, "events: unknown endpoint "+status.EndpointID)
		}
		return core.WrapError(err, goerrors.CategoryInternal, core.ErrorInternal, "events: device lookup failed")
	}
	fields["user_id"] = device.UserID

	record, err := r.tokens.EnsureValidToken(ctx, device.UserID)
	if err != nil {
		fields["stage"] = "token"
		return err
	}

	messageID := r.ids()
	fields["message_id"] = messageID
	sendCtx, cancel := r.withTimeout(ctx)
	err = r.gateway.SendChangeReport(sendCtx, core.ChangeReport{
		MessageID:   messageID,
		AccessToken: record.AccessToken,
		EndpointID:  status.EndpointID,
		Cause:       protocol.CausePhysicalInteraction,
		Properties: []core.PropertyState{
			{
				Namespace:    protocol.NamespaceContactSensor,
				Name:         protocol.PropertyDetectionState,
				Value:        protocol.DetectionStateDetected,
				TimeOfSample: r.now().UTC(),
			},
		},
	})
	cancel()
	if err != nil {
		fields["stage"] = "gateway"
		return err
	}
	return nil
}

func (r *Reporter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.callTimeout)
}
