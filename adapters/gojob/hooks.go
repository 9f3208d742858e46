package gojob

import (
	"context"
	"time"

	"github.com/goliatone/go-job/queue/worker"

	"github.com/goliatone/go-smarthome/core"
)

// WorkerHookAdapter forwards go-job worker lifecycle events to a core hook.
type WorkerHookAdapter struct {
	hook core.JobWorkerHook
}

func NewWorkerHookAdapter(hook core.JobWorkerHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) forward(ctx context.Context, event worker.Event, stage func(core.JobWorkerHook, context.Context, core.JobWorkerEvent)) {
	if a == nil || a.hook == nil {
		return
	}
	stage(a.hook, ctx, toWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	a.forward(ctx, event, core.JobWorkerHook.OnStart)
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	a.forward(ctx, event, core.JobWorkerHook.OnSuccess)
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	a.forward(ctx, event, core.JobWorkerHook.OnFailure)
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	a.forward(ctx, event, core.JobWorkerHook.OnRetry)
}

func toWorkerEvent(event worker.Event) core.JobWorkerEvent {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	return core.JobWorkerEvent{
		Message:   FromExecutionMessage(message),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
}

// ObservingHook logs device event jobs and counts them under
// smarthome.jobs.<stage>.total.
type ObservingHook struct {
	observer core.Observer
	now      func() time.Time
}

func NewObservingHook(opts ...core.Option) *ObservingHook {
	resolved := core.ResolveOptions("smarthome.jobs", opts...)
	return &ObservingHook{
		observer: core.NewObserver("smarthome.jobs", resolved.Logger, resolved.MetricsRecorder),
		now:      resolved.Now,
	}
}

func (h *ObservingHook) OnStart(ctx context.Context, event core.JobWorkerEvent) {
	h.observe(ctx, "start", event)
}

func (h *ObservingHook) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	h.observe(ctx, "success", event)
}

func (h *ObservingHook) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	h.observe(ctx, "failure", event)
}

func (h *ObservingHook) OnRetry(ctx context.Context, event core.JobWorkerEvent) {
	h.observe(ctx, "retry", event)
}

func (h *ObservingHook) observe(ctx context.Context, stage string, event core.JobWorkerEvent) {
	if h == nil {
		return
	}
	fields := map[string]any{"attempt": event.Attempt}
	if msg := event.Message; msg != nil {
		fields["job_id"] = msg.JobID
		if endpointID, ok := msg.Parameters["endpoint_id"]; ok {
			fields["endpoint_id"] = endpointID
		}
	}
	if event.Delay > 0 {
		fields["delay_ms"] = event.Delay.Milliseconds()
	}
	startedAt := event.StartedAt
	if startedAt.IsZero() {
		startedAt = h.now()
	}
	h.observer.Observe(ctx, startedAt, stage, event.Err, fields)
}

var (
	_ worker.Hook        = (*WorkerHookAdapter)(nil)
	_ core.JobWorkerHook = (*ObservingHook)(nil)
)
