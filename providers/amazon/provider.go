package amazon

import (
	"strings"
	"time"

	"github.com/goliatone/go-smarthome/providers"
	"github.com/goliatone/go-smarthome/transport"
)

const (
	TokenURL        = "https://api.amazon.com/auth/o2/token"
	ProfileURL      = "https://api.amazon.com/user/profile"
	EventURL        = "https://api.amazonalexa.com/v3/events"
	EventURLEurope  = "https://api.eu.amazonalexa.com/v3/events"
	EventURLFarEast = "https://api.fe.amazonalexa.com/v3/events"
)

// Config holds Login with Amazon client settings. Empty URLs fall back to the
// public North America endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	ProfileURL   string
	EventURL     string
	Timeout      time.Duration
	HTTPClient   transport.HTTPDoer
}

func DefaultConfig() Config {
	return Config{
		TokenURL:   TokenURL,
		ProfileURL: ProfileURL,
		EventURL:   EventURL,
		Timeout:    10 * time.Second,
	}
}

// Resolve fills unset fields from DefaultConfig.
func (c Config) Resolve() Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(c.TokenURL) == "" {
		c.TokenURL = defaults.TokenURL
	}
	if strings.TrimSpace(c.ProfileURL) == "" {
		c.ProfileURL = defaults.ProfileURL
	}
	if strings.TrimSpace(c.EventURL) == "" {
		c.EventURL = defaults.EventURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	return c
}

// NewIdentityProvider returns a token client that sends the client secret in
// the form body, as Login with Amazon expects.
func NewIdentityProvider(cfg Config) (*providers.OAuth2Client, error) {
	cfg = cfg.Resolve()
	return providers.NewOAuth2Client(providers.OAuth2Config{
		TokenURL:            cfg.TokenURL,
		ClientID:            cfg.ClientID,
		ClientSecret:        cfg.ClientSecret,
		ClientSecretInBody:  true,
		TokenRequestTimeout: cfg.Timeout,
		HTTPClient:          cfg.HTTPClient,
	})
}
