package command

import (
	"context"
	"strings"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-smarthome/core"
)

type DeviceEventReporter interface {
	Report(ctx context.Context, status core.DeviceStatus) error
}

type ReportDeviceEventCommand struct {
	reporter DeviceEventReporter
}

func NewReportDeviceEventCommand(reporter DeviceEventReporter) *ReportDeviceEventCommand {
	return &ReportDeviceEventCommand{reporter: reporter}
}

func (c *ReportDeviceEventCommand) Execute(ctx context.Context, msg ReportDeviceEventMessage) error {
	if c == nil || c.reporter == nil {
		return commandDependencyError("command: device event reporter is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.reporter.Report(ctx, core.DeviceStatus{
		EndpointID: strings.TrimSpace(msg.EndpointID),
		Status:     strings.TrimSpace(msg.Status),
	})
}

// EnsureTokenCommand refreshes the user's token when needed and stores the
// resulting core.TokenStatus in the context result collector.
type EnsureTokenCommand struct {
	tokens core.TokenEnsurer
}

func NewEnsureTokenCommand(tokens core.TokenEnsurer) *EnsureTokenCommand {
	return &EnsureTokenCommand{tokens: tokens}
}

func (c *EnsureTokenCommand) Execute(ctx context.Context, msg EnsureTokenMessage) error {
	if c == nil || c.tokens == nil {
		return commandDependencyError("command: token manager is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	record, err := c.tokens.EnsureValidToken(ctx, strings.TrimSpace(msg.UserID))
	if err != nil {
		return err
	}
	storeResult(ctx, core.TokenStatus{
		UserID:    record.UserID,
		Valid:     true,
		IssuedAt:  record.IssuedAt,
		ExpiresAt: record.ExpiresAt(),
	})
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
