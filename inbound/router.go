package inbound

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-smarthome/core"
	"github.com/goliatone/go-smarthome/protocol"
)

const (
	defaultMaxBodyBytes   = 1 << 20 // 1 MiB
	defaultRequestTimeout = 30 * time.Second
	defaultEventTimeout   = 30 * time.Second
)

// Handler is the bridge entry point: decode, route, answer.
type Handler interface {
	Handle(ctx context.Context, raw []byte) (*protocol.Response, error)
}

// DeviceEventQueue defers device events to a worker instead of reporting
// them inline.
type DeviceEventQueue interface {
	Enqueue(ctx context.Context, status core.DeviceStatus) error
}

type RouterOption func(*routerConfig)

type routerConfig struct {
	queue          DeviceEventQueue
	metrics        http.Handler
	maxBodyBytes   int64
	requestTimeout time.Duration
	eventTimeout   time.Duration
	rateRequests   int
	rateWindow     time.Duration
}

func WithDeviceEventQueue(queue DeviceEventQueue) RouterOption {
	return func(c *routerConfig) {
		c.queue = queue
	}
}

// WithMetricsHandler mounts handler on GET /metrics.
func WithMetricsHandler(handler http.Handler) RouterOption {
	return func(c *routerConfig) {
		c.metrics = handler
	}
}

func WithMaxBodyBytes(limit int64) RouterOption {
	return func(c *routerConfig) {
		c.maxBodyBytes = limit
	}
}

func WithRequestTimeout(timeout time.Duration) RouterOption {
	return func(c *routerConfig) {
		c.requestTimeout = timeout
	}
}

// WithRateLimit caps requests per client IP. A non-positive count disables it.
func WithRateLimit(requests int, window time.Duration) RouterOption {
	return func(c *routerConfig) {
		c.rateRequests = requests
		c.rateWindow = window
	}
}

type router struct {
	bridge   Handler
	queue    DeviceEventQueue
	logger   core.Logger
	maxBody  int64
	eventTTL time.Duration
}

func NewRouter(bridge Handler, logger core.Logger, opts ...RouterOption) (chi.Router, error) {
	if bridge == nil {
		return nil, errors.New("inbound: bridge handler is required")
	}
	cfg := routerConfig{
		maxBodyBytes:   defaultMaxBodyBytes,
		requestTimeout: defaultRequestTimeout,
		eventTimeout:   defaultEventTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.maxBodyBytes <= 0 {
		cfg.maxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.requestTimeout <= 0 {
		cfg.requestTimeout = defaultRequestTimeout
	}

	h := &router{
		bridge:   bridge,
		queue:    cfg.queue,
		logger:   glog.Ensure(logger),
		maxBody:  cfg.maxBodyBytes,
		eventTTL: cfg.eventTimeout,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.requestTimeout))
	if cfg.rateRequests > 0 {
		window := cfg.rateWindow
		if window <= 0 {
			window = time.Minute
		}
		r.Use(httprate.LimitByIP(cfg.rateRequests, window))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metrics)
	}
	r.Post("/directives", h.handleDirective)
	r.Post("/device-events", h.handleDeviceEvent)
	return r, nil
}

func (h *router) handleDirective(w http.ResponseWriter, r *http.Request) {
	raw, err := h.readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	response, err := h.bridge.Handle(r.Context(), raw)
	if err != nil {
		h.logger.Warn("inbound: directive rejected", "request_id", chimw.GetReqID(r.Context()), "error", err.Error())
		writeError(w, err)
		return
	}
	if response == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	encoded, err := protocol.EncodeResponse(*response)
	if err != nil {
		writeError(w, inboundWrapError(err, goerrors.CategoryInternal, core.ErrorInternal, "inbound: encode response failed"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(encoded)
}

// handleDeviceEvent answers 202 once the body is decoded. Reporting happens
// after the response, so the caller never waits on the gateway.
func (h *router) handleDeviceEvent(w http.ResponseWriter, r *http.Request) {
	raw, err := h.readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	req, err := protocol.DecodeRequest(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Kind != protocol.RequestKindDeviceStatus {
		writeError(w, inboundBadInput("inbound: body is not a device status", map[string]any{"kind": string(req.Kind)}))
		return
	}

	requestID := chimw.GetReqID(r.Context())
	if h.queue != nil {
		if err := h.queue.Enqueue(r.Context(), req.DeviceStatus); err != nil {
			h.logger.Error("inbound: enqueue device event failed", "request_id", requestID, "endpoint_id", req.DeviceStatus.EndpointID, "error", err.Error())
			writeError(w, inboundWrapError(err, goerrors.CategoryInternal, core.ErrorInternal, "inbound: enqueue device event failed"))
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.eventTTL)
	go func() {
		defer cancel()
		if _, err := h.bridge.Handle(ctx, raw); err != nil {
			h.logger.Warn("inbound: device event failed", "request_id", requestID, "error", err.Error())
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

func (h *router) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if ct := strings.ToLower(r.Header.Get("Content-Type")); ct != "" && !strings.Contains(ct, "json") {
		return nil, inboundBadInput("inbound: content type must be json", map[string]any{"content_type": ct})
	}
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	defer func() { _ = body.Close() }()
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, inboundBadInput("inbound: request body too large", map[string]any{"limit": h.maxBody})
		}
		return nil, inboundWrapError(err, goerrors.CategoryBadInput, core.ErrorBadInput, "inbound: read request body")
	}
	return raw, nil
}
