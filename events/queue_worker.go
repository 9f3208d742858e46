package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-smarthome/core"
)

const (
	JobIDDeviceEvent = "smarthome.device_event"

	defaultPollInterval = time.Second
)

// DeviceEventReporter is the part of Reporter the queue worker drives.
type DeviceEventReporter interface {
	Report(ctx context.Context, status core.DeviceStatus) error
}

// QueueWorker moves device events through a job queue so the inbound surface
// can acknowledge a notification before the gateway call happens.
type QueueWorker struct {
	reporter     DeviceEventReporter
	enqueuer     core.JobEnqueuer
	dequeuer     core.JobDequeuer
	observer     core.Observer
	now          func() time.Time
	PollInterval time.Duration
	// Hook, when set, sees every well-formed delivery.
	Hook core.JobWorkerHook
}

func NewQueueWorker(reporter DeviceEventReporter, enqueuer core.JobEnqueuer, dequeuer core.JobDequeuer, opts ...core.Option) (*QueueWorker, error) {
	if reporter == nil {
		return nil, fmt.Errorf("events: reporter is required")
	}
	if enqueuer == nil {
		return nil, fmt.Errorf("events: job enqueuer is required")
	}
	if dequeuer == nil {
		return nil, fmt.Errorf("events: job dequeuer is required")
	}
	resolved := core.ResolveOptions("smarthome.events.queue", opts...)
	return &QueueWorker{
		reporter:     reporter,
		enqueuer:     enqueuer,
		dequeuer:     dequeuer,
		observer:     core.NewObserver("smarthome.events.queue", resolved.Logger, resolved.MetricsRecorder),
		now:          resolved.Now,
		PollInterval: defaultPollInterval,
	}, nil
}

// ToJobMessage wraps status in a device event job message.
func ToJobMessage(status core.DeviceStatus) *core.JobExecutionMessage {
	return &core.JobExecutionMessage{
		JobID:      JobIDDeviceEvent,
		ScriptPath: JobIDDeviceEvent,
		Parameters: map[string]any{
			"endpoint_id": strings.TrimSpace(status.EndpointID),
			"status":      strings.TrimSpace(status.Status),
		},
	}
}

// FromJobMessage extracts the device status carried by msg.
func FromJobMessage(msg *core.JobExecutionMessage) (core.DeviceStatus, error) {
	if msg == nil {
		return core.DeviceStatus{}, fmt.Errorf("events: job message is nil")
	}
	if strings.TrimSpace(msg.JobID) != JobIDDeviceEvent {
		return core.DeviceStatus{}, fmt.Errorf("events: unexpected job id %q", msg.JobID)
	}
	status := core.DeviceStatus{
		EndpointID: readString(msg.Parameters["endpoint_id"]),
		Status:     readString(msg.Parameters["status"]),
	}
	if status.EndpointID == "" {
		return core.DeviceStatus{}, fmt.Errorf("events: job message missing endpoint_id")
	}
	return status, nil
}

func (w *QueueWorker) Enqueue(ctx context.Context, status core.DeviceStatus) error {
	if w == nil || w.enqueuer == nil {
		return fmt.Errorf("events: queue worker is not configured")
	}
	if strings.TrimSpace(status.EndpointID) == "" {
		return fmt.Errorf("events: endpoint id is required")
	}
	return w.enqueuer.Enqueue(ctx, ToJobMessage(status))
}

// RunOnce handles one delivery. Reported events are acked whatever the
// outcome; malformed messages go to the dead letter queue.
func (w *QueueWorker) RunOnce(ctx context.Context) error {
	_, err := w.runOnce(ctx)
	return err
}

func (w *QueueWorker) runOnce(ctx context.Context) (bool, error) {
	if w == nil || w.dequeuer == nil || w.reporter == nil {
		return false, fmt.Errorf("events: queue worker is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if delivery == nil {
		return false, nil
	}

	status, err := FromJobMessage(delivery.Message())
	if err != nil {
		w.observer.Log(ctx, "error", "events: dropping malformed device event", map[string]any{"error": err.Error()})
		return true, delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: err.Error()})
	}

	event := core.JobWorkerEvent{Message: delivery.Message(), Attempt: 1, StartedAt: w.now()}
	if w.Hook != nil {
		w.Hook.OnStart(ctx, event)
	}
	// the reporter logs its own failures
	reportErr := w.reporter.Report(ctx, status)
	if w.Hook != nil {
		event.Err = reportErr
		event.Duration = w.now().Sub(event.StartedAt)
		if reportErr != nil {
			w.Hook.OnFailure(ctx, event)
		} else {
			w.Hook.OnSuccess(ctx, event)
		}
	}
	return true, delivery.Ack(ctx)
}

// Run drains the queue until ctx is done.
func (w *QueueWorker) Run(ctx context.Context) error {
	if w == nil {
		return fmt.Errorf("events: queue worker is nil")
	}
	interval := w.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		handled, err := w.runOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.observer.Log(ctx, "debug", "events: queue poll failed", map[string]any{"error": err.Error()})
		}
		if handled && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func readString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}
