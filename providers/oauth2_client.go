package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-smarthome/core"
	"github.com/goliatone/go-smarthome/transport"
)

const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"

	defaultTokenRequestTimeout = 10 * time.Second
	maxTokenResponseBodyBytes  = 1 << 20 // 1 MiB
)

type OAuth2Config struct {
	TokenURL            string
	ClientID            string
	ClientSecret        string
	ClientSecretInBody  bool
	TokenRequestTimeout time.Duration
	HTTPClient          transport.HTTPDoer
}

// OAuth2Client talks to an OAuth2 token endpoint on behalf of the bridge. It
// implements core.IdentityProvider.
type OAuth2Client struct {
	cfg  OAuth2Config
	rest *transport.RESTAdapter
}

type tokenEndpointPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

func NewOAuth2Client(cfg OAuth2Config) (*OAuth2Client, error) {
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("providers: token url is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("providers: client id is required")
	}
	if cfg.TokenRequestTimeout <= 0 {
		cfg.TokenRequestTimeout = defaultTokenRequestTimeout
	}
	rest := transport.NewRESTAdapter(cfg.HTTPClient)
	rest.MaxResponseBodyBytes = maxTokenResponseBodyBytes
	return &OAuth2Client{cfg: cfg, rest: rest}, nil
}

func (c *OAuth2Client) ExchangeCode(ctx context.Context, code string) (core.TokenGrant, error) {
	if c == nil {
		return core.TokenGrant{}, fmt.Errorf("providers: oauth2 client is nil")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return core.TokenGrant{}, fmt.Errorf("providers: authorization code is required")
	}
	form := url.Values{}
	form.Set("grant_type", GrantTypeAuthorizationCode)
	form.Set("code", code)
	return c.fetchToken(ctx, form)
}

func (c *OAuth2Client) Refresh(ctx context.Context, refreshToken string) (core.TokenGrant, error) {
	if c == nil {
		return core.TokenGrant{}, fmt.Errorf("providers: oauth2 client is nil")
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return core.TokenGrant{}, fmt.Errorf("providers: refresh token is required")
	}
	form := url.Values{}
	form.Set("grant_type", GrantTypeRefreshToken)
	form.Set("refresh_token", refreshToken)
	return c.fetchToken(ctx, form)
}

func (c *OAuth2Client) fetchToken(ctx context.Context, form url.Values) (core.TokenGrant, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	form.Set("client_id", c.cfg.ClientID)
	headers := map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Accept":       "application/json",
	}
	if c.cfg.ClientSecret != "" {
		if c.cfg.ClientSecretInBody {
			form.Set("client_secret", c.cfg.ClientSecret)
		} else {
			credentials := base64.StdEncoding.EncodeToString([]byte(c.cfg.ClientID + ":" + c.cfg.ClientSecret))
			headers["Authorization"] = "Basic " + credentials
		}
	}

	response, err := c.rest.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     c.cfg.TokenURL,
		Headers: headers,
		Body:    []byte(form.Encode()),
		Timeout: c.cfg.TokenRequestTimeout,
	})
	if err != nil {
		return core.TokenGrant{}, fmt.Errorf("providers: token request failed: %w", err)
	}

	payload, parseErr := parseTokenPayload(response.Body, response.Headers["Content-Type"])
	if !response.IsSuccess() {
		return core.TokenGrant{}, fmt.Errorf(
			"providers: token endpoint error (%d): %s",
			response.StatusCode,
			describeTokenError(payload, response),
		)
	}
	if parseErr != nil {
		return core.TokenGrant{}, fmt.Errorf("providers: decode token response: %w", parseErr)
	}
	if payload.ErrorCode != "" {
		return core.TokenGrant{}, fmt.Errorf("providers: token endpoint error: %s", describeTokenError(payload, response))
	}
	if payload.AccessToken == "" {
		return core.TokenGrant{}, fmt.Errorf("providers: token endpoint response missing access token")
	}
	return core.TokenGrant{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    normalizeTokenType(payload.TokenType),
		ExpiresIn:    payload.ExpiresIn,
	}, nil
}

func describeTokenError(payload tokenEndpointPayload, response transport.Response) string {
	if payload.ErrorDescription != "" {
		return payload.ErrorDescription
	}
	if payload.ErrorCode != "" {
		return payload.ErrorCode
	}
	if excerpt := response.BodyExcerpt(256); excerpt != "" {
		return excerpt
	}
	return "unknown error"
}

func parseTokenPayload(body []byte, contentType string) (tokenEndpointPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	return tokenEndpointPayload{
		AccessToken:      readAnyString(decoded["access_token"]),
		TokenType:        readAnyString(decoded["token_type"]),
		RefreshToken:     readAnyString(decoded["refresh_token"]),
		ExpiresIn:        readAnyInt64(decoded["expires_in"]),
		ErrorCode:        readAnyString(decoded["error"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
	}, nil
}

func parseTokenPayloadForm(body []byte) (tokenEndpointPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenEndpointPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

func normalizeTokenType(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "bearer"
	}
	return normalized
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case float64:
		return int64(typed)
	case json.Number:
		if parsed, err := typed.Int64(); err == nil {
			return parsed
		}
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}

var _ core.IdentityProvider = (*OAuth2Client)(nil)
