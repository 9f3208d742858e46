package smarthome

import (
	"github.com/goliatone/go-smarthome/core"
	"github.com/goliatone/go-smarthome/gateway"
	"github.com/goliatone/go-smarthome/identity"
	"github.com/goliatone/go-smarthome/providers"
	"github.com/goliatone/go-smarthome/providers/amazon"
)

func OAuth2IdentityProvider(cfg providers.OAuth2Config) (core.IdentityProvider, error) {
	return providers.NewOAuth2Client(cfg)
}

func AmazonIdentityProvider(cfg amazon.Config) (core.IdentityProvider, error) {
	return amazon.NewIdentityProvider(cfg)
}

// AmazonProfileFetcher resolves Login with Amazon profiles, falling back to the
// public profile endpoint when cfg.ProfileURL is empty.
func AmazonProfileFetcher(cfg amazon.Config) (core.ProfileFetcher, error) {
	cfg = cfg.Resolve()
	return identity.NewProfileClient(identity.Config{
		ProfileURL: cfg.ProfileURL,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
	})
}

func AmazonEventGateway(cfg amazon.Config) (core.EventGateway, error) {
	cfg = cfg.Resolve()
	return gateway.NewClient(gateway.Config{
		EventURL:   cfg.EventURL,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
	})
}
