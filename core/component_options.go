package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
	glog "github.com/goliatone/go-logger/glog"
)

// Options holds the ambient collaborators shared by the token manager, the
// directive dispatcher and the event reporter.
type Options struct {
	Logger               Logger
	LoggerProvider       LoggerProvider
	MetricsRecorder      MetricsRecorder
	Now                  func() time.Time
	CallTimeout          time.Duration
	DefaultExpiresIn     int64
	MessageIDs           MessageIDGenerator
	DiscoveryConcurrency int
}

type Option func(*Options)

func WithLogger(logger Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(o *Options) {
		o.LoggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *Options) {
		o.MetricsRecorder = recorder
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.Now = now
	}
}

func WithCallTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.CallTimeout = timeout
	}
}

func WithDefaultExpiresIn(seconds int64) Option {
	return func(o *Options) {
		o.DefaultExpiresIn = seconds
	}
}

func WithMessageIDGenerator(generator MessageIDGenerator) Option {
	return func(o *Options) {
		o.MessageIDs = generator
	}
}

func WithDiscoveryConcurrency(limit int) Option {
	return func(o *Options) {
		o.DiscoveryConcurrency = limit
	}
}

// WithConfig copies the call timeout, default expiry and discovery fan-out from cfg.
func WithConfig(cfg Config) Option {
	return func(o *Options) {
		o.CallTimeout = cfg.EffectiveCallTimeout()
		o.DefaultExpiresIn = cfg.EffectiveExpiresIn()
		o.DiscoveryConcurrency = cfg.EffectiveDiscoveryConcurrency()
	}
}

// ResolveOptions applies opts over defaults and resolves a logger named name.
func ResolveOptions(name string, opts ...Option) Options {
	resolved := Options{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&resolved)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = "smarthome"
	}
	provider, logger := glog.Resolve(name, resolved.LoggerProvider, resolved.Logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger(name); named != nil {
			logger = glog.Ensure(named)
		}
	}
	resolved.Logger = logger
	resolved.LoggerProvider = provider

	if resolved.MetricsRecorder == nil {
		resolved.MetricsRecorder = NopMetricsRecorder{}
	}
	if resolved.Now == nil {
		resolved.Now = time.Now
	}
	if resolved.CallTimeout <= 0 {
		resolved.CallTimeout = DefaultConfig().CallTimeout
	}
	if resolved.DefaultExpiresIn <= 0 {
		resolved.DefaultExpiresIn = DefaultExpiresInSeconds
	}
	if resolved.MessageIDs == nil {
		resolved.MessageIDs = uuid.NewString
	}
	if resolved.DiscoveryConcurrency <= 0 {
		resolved.DiscoveryConcurrency = DefaultConfig().DiscoveryConcurrency
	}
	return resolved
}
