package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-smarthome/core"
	"github.com/goliatone/go-smarthome/protocol"
	"github.com/goliatone/go-smarthome/transport"
)

const (
	defaultEventTimeout = 10 * time.Second
	excerptLimit        = 256
)

type Config struct {
	EventURL   string
	Timeout    time.Duration
	HTTPClient transport.HTTPDoer
	Now        func() time.Time
	MessageIDs core.MessageIDGenerator
}

// Client pushes change reports to the assistant event gateway.
type Client struct {
	eventURL string
	timeout  time.Duration
	rest     *transport.RESTAdapter
	builder  protocol.Builder
}

func NewClient(cfg Config) (*Client, error) {
	eventURL := strings.TrimSpace(cfg.EventURL)
	if eventURL == "" {
		return nil, fmt.Errorf("gateway: event url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultEventTimeout
	}
	rest := transport.NewRESTAdapter(cfg.HTTPClient)
	rest.DefaultHeaders["Content-Type"] = "application/json"
	return &Client{
		eventURL: eventURL,
		timeout:  timeout,
		rest:     rest,
		builder:  protocol.NewBuilder(cfg.Now, cfg.MessageIDs),
	}, nil
}

func (c *Client) SendChangeReport(ctx context.Context, report core.ChangeReport) error {
	if c == nil || c.rest == nil {
		return fmt.Errorf("gateway: client is not configured")
	}
	report.AccessToken = strings.TrimSpace(report.AccessToken)
	report.EndpointID = strings.TrimSpace(report.EndpointID)
	if report.AccessToken == "" {
		return core.NewError("gateway: access token is required", goerrors.CategoryBadInput, core.ErrorBadInput)
	}
	if report.EndpointID == "" {
		return core.NewError("gateway: endpoint id is required", goerrors.CategoryBadInput, core.ErrorBadInput)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := json.Marshal(c.builder.ChangeReportEvent(report))
	if err != nil {
		return fmt.Errorf("gateway: encode change report: %w", err)
	}
	response, err := c.rest.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     c.eventURL,
		Headers: map[string]string{"Authorization": "Bearer " + report.AccessToken},
		Body:    body,
		Timeout: c.timeout,
	})
	if err != nil {
		return fmt.Errorf("gateway: send change report: %w", err)
	}
	if !response.IsSuccess() {
		return core.NewError(
			fmt.Sprintf("gateway: event gateway rejected change report (%d): %s", response.StatusCode, response.BodyExcerpt(excerptLimit)),
			goerrors.CategoryExternal,
			transport.ErrorExternalFailure,
		).WithMetadata(map[string]any{
			"status_code": response.StatusCode,
			"endpoint_id": report.EndpointID,
		})
	}
	return nil
}

var _ core.EventGateway = (*Client)(nil)
