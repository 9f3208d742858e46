package gologger

import (
	"context"
	"log/slog"
	"os"
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves glog logger/provider then returns equivalent go-job adapters.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}

// SlogLogger adapts a *slog.Logger to glog.Logger. Fatal logs at error level
// and exits.
type SlogLogger struct {
	l   *slog.Logger
	ctx context.Context
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l, ctx: context.Background()}
}


func (s *SlogLogger) Trace(msg string, args ...any) {
	s.l.DebugContext(s.ctx, msg, args...)
}

func (s *SlogLogger) Debug(msg string, args ...any) {
	s.l.DebugContext(s.ctx, msg, args...)
}

func (s *SlogLogger) Info(msg string, args ...any) {
	s.l.InfoContext(s.ctx, msg, args...)
}

func (s *SlogLogger) Warn(msg string, args ...any) {
	s.l.WarnContext(s.ctx, msg, args...)
}

func (s *SlogLogger) Error(msg string, args ...any) {
	s.l.ErrorContext(s.ctx, msg, args...)
}

func (s *SlogLogger) Fatal(msg string, args ...any) {
	s.l.ErrorContext(s.ctx, msg, args...)
	os.Exit(1)
}

func (s *SlogLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return &SlogLogger{l: s.l, ctx: ctx}
}

// SlogProvider hands out SlogLoggers tagged with a "logger" attribute.
type SlogProvider struct {
	base *slog.Logger
}

func NewSlogProvider(base *slog.Logger) *SlogProvider {
	if base == nil {
		base = slog.Default()
	}
	return &SlogProvider{base: base}
}

// NewJSONProvider writes JSON lines to stdout at level ("debug", "info",
// "warn", "error").
func NewJSONProvider(level string) *SlogProvider {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)})
	return NewSlogProvider(slog.New(handler))
}

func (p *SlogProvider) GetLogger(name string) glog.Logger {
	if p == nil || p.base == nil {
		return glog.Nop()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return NewSlogLogger(p.base)
	}
	return NewSlogLogger(p.base.With("logger", name))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var (
	_ glog.Logger         = (*SlogLogger)(nil)
	_ glog.LoggerProvider = (*SlogProvider)(nil)
)
