package directive

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-smarthome/core"
	"github.com/goliatone/go-smarthome/protocol"
)

const flowDiscover = "discover"

// handleDiscover lists the caller's devices and records each one against the
// caller's user id. Failures are reported as INTERNAL_ERROR with no endpoints.
func (d *Dispatcher) handleDiscover(ctx context.Context, directive core.Directive) (protocol.Response, error) {
	if directive.BearerToken == "" {
		d.flowFailed(ctx, flowDiscover, "token", directive, core.NewError("directive: access token is required", goerrors.CategoryAuth, core.ErrorInvalidToken))
		return d.builder.ErrorResponse(directive, protocol.ErrorTypeInvalidAuthCredential, "Invalid access token"), nil
	}
	fail := func(stage string, err error) (protocol.Response, error) {
		d.flowFailed(ctx, flowDiscover, stage, directive, err)
		return d.builder.DiscoverErrorResponse(protocol.ErrorTypeInternal, "Unable to complete discovery"), nil
	}

	profile, err := d.fetchProfile(ctx, directive.BearerToken)
	if err != nil {
		return fail("profile", err)
	}

	listCtx, cancel := d.withTimeout(ctx)
	devices, err := d.deps.Catalog.ListDevices(listCtx, directive.BearerToken)
	cancel()
	if err != nil {
		return fail("catalog", err)
	}

	if err := d.upsertDevices(ctx, profile.UserID, devices); err != nil {
		return fail("upsert", err)
	}

	d.observer.Log(ctx, "info", "directive: discovery completed", map[string]any{
		"user_id":      profile.UserID,
		"device_count": len(devices),
	})
	return d.builder.DiscoverResponse(devices), nil
}

// upsertDevices writes one DeviceRecord per device concurrently and waits for
// all of them. Any single failure fails the batch.
func (d *Dispatcher) upsertDevices(ctx context.Context, userID string, devices []core.DeviceDescriptor) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.concurrency)
	for _, device := range devices {
		record := core.DeviceRecord{
			EndpointID:   device.EndpointID,
			UserID:       userID,
			FriendlyName: device.FriendlyName,
		}.Normalized()
		group.Go(func() error {
			callCtx, cancel := d.withTimeout(groupCtx)
			defer cancel()
			if _, err := d.deps.Devices.Upsert(callCtx, record); err != nil {
				return core.WrapError(err, goerrors.CategoryInternal, core.ErrorDeviceUpsertFailed, "directive: upsert device "+record.EndpointID).
					WithMetadata(map[string]any{"endpoint_id": record.EndpointID})
			}
			return nil
		})
	}
	return group.Wait()
}
