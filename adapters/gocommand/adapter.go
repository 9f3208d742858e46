package gocommand

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	smarthomecommand "github.com/goliatone/go-smarthome/command"
	"github.com/goliatone/go-smarthome/core"
	smarthomequery "github.com/goliatone/go-smarthome/query"
)

// CommandBus owns a go-command registry and the dispatcher subscriptions made
// through it. Close releases every subscription.
type CommandBus struct {
	registry *command.Registry

	mu            sync.Mutex
	subscriptions []commanddispatcher.Subscription
}

func NewCommandBus(registry *command.Registry) *CommandBus {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &CommandBus{registry: registry}
}

// MirrorToQueue copies every registered command into the go-job queue
// registry when the bus initializes.
func (b *CommandBus) MirrorToQueue(key string, queueRegistry *jobqueuecommand.Registry) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: command bus is not configured")
	}
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	key = strings.TrimSpace(key)
	if b.registry.HasResolver(key) {
		return fmt.Errorf("gocommand: resolver %q already registered", key)
	}
	return b.registry.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (b *CommandBus) Initialize() error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: command bus is not configured")
	}
	return b.registry.Initialize()
}

// Subscriptions reports how many handlers the bus currently holds.
func (b *CommandBus) Subscriptions() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscriptions)
}

func (b *CommandBus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	subscriptions := b.subscriptions
	b.subscriptions = nil
	b.mu.Unlock()
	for _, subscription := range subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

func (b *CommandBus) keep(subscription commanddispatcher.Subscription) {
	b.mu.Lock()
	b.subscriptions = append(b.subscriptions, subscription)
	b.mu.Unlock()
}

// Handle registers cmd and subscribes it on the global dispatcher. A failed
// registration drops the subscription.
func Handle[T any](b *CommandBus, cmd command.Commander[T], runnerOpts ...runner.Option) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: command bus is not configured")
	}
	if cmd == nil {
		return fmt.Errorf("gocommand: command is required")
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := b.registry.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return err
	}
	b.keep(subscription)
	return nil
}

func HandleQuery[T any, R any](b *CommandBus, qry command.Querier[T, R], runnerOpts ...runner.Option) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: command bus is not configured")
	}
	if qry == nil {
		return fmt.Errorf("gocommand: query is required")
	}
	subscription := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := b.registry.RegisterCommand(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return err
	}
	b.keep(subscription)
	return nil
}

// BridgeHandlers are the collaborators behind the bridge command and query surface.
type BridgeHandlers struct {
	Reporter smarthomecommand.DeviceEventReporter
	Tokens   core.TokenEnsurer
	States   core.TokenStateReader
}

// RegisterBridge wires every configured bridge handler onto the bus. On error
// the bus is closed.
func (b *CommandBus) RegisterBridge(handlers BridgeHandlers, runnerOpts ...runner.Option) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: command bus is not configured")
	}
	if handlers.Reporter == nil && handlers.Tokens == nil && handlers.States == nil {
		return fmt.Errorf("gocommand: at least one bridge handler is required")
	}

	var err error
	if handlers.Reporter != nil {
		err = Handle(b, command.Commander[smarthomecommand.ReportDeviceEventMessage](
			smarthomecommand.NewReportDeviceEventCommand(handlers.Reporter),
		), runnerOpts...)
	}
	if err == nil && handlers.Tokens != nil {
		err = Handle(b, command.Commander[smarthomecommand.EnsureTokenMessage](
			smarthomecommand.NewEnsureTokenCommand(handlers.Tokens),
		), runnerOpts...)
	}
	if err == nil && handlers.States != nil {
		err = HandleQuery(b, command.Querier[smarthomequery.TokenStatusMessage, core.TokenStatus](
			smarthomequery.NewTokenStatusQuery(handlers.States),
		), runnerOpts...)
	}
	if err != nil {
		b.Close()
		return err
	}
	return nil
}

// BusReporter reports device events by dispatching them on the command bus,
// so queue workers reach whichever reporter the bus has subscribed.
type BusReporter struct{}

func (BusReporter) Report(ctx context.Context, status core.DeviceStatus) error {
	return dispatch(ctx, smarthomecommand.ReportDeviceEventMessage{
		EndpointID: status.EndpointID,
		Status:     status.Status,
	})
}

func EnsureToken(ctx context.Context, userID string) error {
	return dispatch(ctx, smarthomecommand.EnsureTokenMessage{UserID: userID})
}

func TokenStatus(ctx context.Context, userID string) (core.TokenStatus, error) {
	msg := smarthomequery.TokenStatusMessage{UserID: userID}
	if err := validateMessage(msg); err != nil {
		return core.TokenStatus{}, err
	}
	return commanddispatcher.Query[smarthomequery.TokenStatusMessage, core.TokenStatus](ctx, msg)
}

func dispatch[T command.Message](ctx context.Context, msg T) error {
	if err := validateMessage(msg); err != nil {
		return err
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

// validateMessage enforces a non-empty Type() plus the optional Validate().
func validateMessage(msg command.Message) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	if strings.TrimSpace(msg.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}
