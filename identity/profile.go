package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-smarthome/core"
	"github.com/goliatone/go-smarthome/transport"
)

const (
	defaultRequestTimeout   = 10 * time.Second
	maxProfileResponseBytes = 1 << 20 // 1 MiB
)

var ErrProfileNotFound = errors.New("identity: profile not found")

type ProfileNotFoundError struct {
	StatusCode int
	Cause      error
}

func (e *ProfileNotFoundError) Error() string {
	if e == nil || e.Cause == nil {
		return ErrProfileNotFound.Error()
	}
	return ErrProfileNotFound.Error() + ": " + e.Cause.Error()
}

func (e *ProfileNotFoundError) Unwrap() error {
	if e == nil {
		return nil
	}
	if e.Cause == nil {
		return ErrProfileNotFound
	}
	return errors.Join(ErrProfileNotFound, e.Cause)
}

func (e *ProfileNotFoundError) ToServiceError() *goerrors.Error {
	message := ErrProfileNotFound.Error()
	if e != nil && e.Cause != nil {
		message = e.Error()
	}
	serviceErr := core.NewError(message, goerrors.CategoryNotFound, core.ErrorProfileNotFound)
	if e != nil && e.StatusCode > 0 {
		serviceErr.WithMetadata(map[string]any{"status_code": e.StatusCode})
	}
	return serviceErr
}

func profileNotFound(statusCode int, cause error) error {
	return &ProfileNotFoundError{StatusCode: statusCode, Cause: cause}
}

type Config struct {
	ProfileURL string
	Timeout    time.Duration
	HTTPClient transport.HTTPDoer
}

// ProfileClient resolves the customer profile that owns an access token.
type ProfileClient struct {
	profileURL string
	timeout    time.Duration
	rest       *transport.RESTAdapter
}

type profilePayload struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

func NewProfileClient(cfg Config) (*ProfileClient, error) {
	profileURL := strings.TrimSpace(cfg.ProfileURL)
	if profileURL == "" {
		return nil, fmt.Errorf("identity: profile url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	rest := transport.NewRESTAdapter(cfg.HTTPClient)
	rest.MaxResponseBodyBytes = maxProfileResponseBytes
	rest.DefaultHeaders["Accept"] = "application/json"
	return &ProfileClient{profileURL: profileURL, timeout: timeout, rest: rest}, nil
}

func (c *ProfileClient) FetchProfile(ctx context.Context, accessToken string) (core.CustomerProfile, error) {
	if c == nil || c.rest == nil {
		return core.CustomerProfile{}, fmt.Errorf("identity: profile client is not configured")
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return core.CustomerProfile{}, core.NewError("identity: access token is required", goerrors.CategoryBadInput, core.ErrorBadInput)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	response, err := c.rest.Do(ctx, transport.Request{
		Method:  http.MethodGet,
		URL:     c.profileURL,
		Headers: map[string]string{"Authorization": "Bearer " + accessToken},
		Timeout: c.timeout,
	})
	if err != nil {
		return core.CustomerProfile{}, fmt.Errorf("identity: profile request failed: %w", err)
	}

	switch response.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return core.CustomerProfile{}, profileNotFound(
			response.StatusCode,
			fmt.Errorf("profile endpoint returned %d", response.StatusCode),
		)
	}
	if !response.IsSuccess() {
		return core.CustomerProfile{}, core.NewError(
			fmt.Sprintf("identity: profile endpoint error (%d): %s", response.StatusCode, response.BodyExcerpt(256)),
			goerrors.CategoryExternal,
			core.ErrorInternal,
		)
	}

	var payload profilePayload
	if err := json.Unmarshal(response.Body, &payload); err != nil {
		return core.CustomerProfile{}, fmt.Errorf("identity: decode profile response: %w", err)
	}
	profile := core.CustomerProfile{
		UserID: strings.TrimSpace(payload.UserID),
		Name:   strings.TrimSpace(payload.Name),
		Email:  strings.TrimSpace(payload.Email),
	}
	if profile.UserID == "" {
		return core.CustomerProfile{}, profileNotFound(response.StatusCode, fmt.Errorf("profile response missing user_id"))
	}
	return profile, nil
}

// IsProfileNotFound reports whether err came from a rejected or empty profile lookup.
func IsProfileNotFound(err error) bool {
	if errors.Is(err, ErrProfileNotFound) {
		return true
	}
	return core.HasErrorCode(err, core.ErrorProfileNotFound)
}
