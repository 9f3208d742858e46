package gojob

import (
	"strings"
	"time"

	"github.com/goliatone/go-smarthome/core"
)

// DefaultRetryPolicy dead-letters a device event after five attempts and
// caps the redelivery delay at one minute.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, MaxDelay: time.Minute, DeadLetterOnMax: true}

// RetryPolicy bounds redelivery of nacked device events.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

func (p RetryPolicy) exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}

func (p RetryPolicy) delay(requested time.Duration) time.Duration {
	switch {
	case requested < 0:
		return 0
	case p.MaxDelay > 0 && requested > p.MaxDelay:
		return p.MaxDelay
	default:
		return requested
	}
}

// NormalizeAttempt turns opts into a nack that either requeues or dead
// letters, never neither. Attempts at or past MaxAttempts stop requeueing.
func (p RetryPolicy) NormalizeAttempt(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	out := core.JobNackOptions{
		Delay:      p.delay(opts.Delay),
		Requeue:    opts.Requeue && !opts.DeadLetter,
		DeadLetter: opts.DeadLetter,
		Reason:     strings.TrimSpace(opts.Reason),
	}
	if p.exhausted(attempt) {
		out.Requeue = false
		out.DeadLetter = out.DeadLetter || p.DeadLetterOnMax
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}
