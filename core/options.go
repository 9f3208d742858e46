package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// StaticRawConfigLoader serves a fixed raw map, typically built from the environment.
type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver merges defaults < loaded < runtime. Zero values in the
// loaded and runtime layers do not override lower layers.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// ResolveConfig loads configuration through provider and layers runtime on top.
func ResolveConfig(ctx context.Context, runtime Config, provider ConfigProvider, resolver OptionsResolver) (Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	defaults := DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, MapError(err)
	}
	resolved, err := resolver.Resolve(defaults, loaded, runtime)
	if err != nil {
		return Config{}, MapError(err)
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(target map[string]any, key, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			target[key] = value
		}
	}

	setString(layer, "service_name", cfg.ServiceName)
	if includeZero || cfg.DefaultExpiresIn > 0 {
		layer["default_expires_in"] = cfg.DefaultExpiresIn
	}
	if includeZero || cfg.CallTimeout > 0 {
		layer["call_timeout"] = cfg.CallTimeout
	}
	if includeZero || cfg.DiscoveryConcurrency > 0 {
		layer["discovery_concurrency"] = cfg.DiscoveryConcurrency
	}

	provider := map[string]any{}
	setString(provider, "client_id", cfg.Provider.ClientID)
	setString(provider, "client_secret", cfg.Provider.ClientSecret)
	setString(provider, "token_url", cfg.Provider.TokenURL)
	setString(provider, "profile_url", cfg.Provider.ProfileURL)
	if len(provider) > 0 {
		layer["provider"] = provider
	}

	gateway := map[string]any{}
	setString(gateway, "event_url", cfg.Gateway.EventURL)
	if len(gateway) > 0 {
		layer["gateway"] = gateway
	}

	store := map[string]any{}
	setString(store, "driver", cfg.Store.Driver)
	setString(store, "dsn", cfg.Store.DSN)
	setString(store, "region", cfg.Store.Region)
	setString(store, "endpoint", cfg.Store.Endpoint)
	setString(store, "access_key_id", cfg.Store.AccessKeyID)
	setString(store, "secret_access_key", cfg.Store.SecretAccessKey)
	setString(store, "user_table", cfg.Store.UserTable)
	setString(store, "device_table", cfg.Store.DeviceTable)
	if includeZero || cfg.Store.DeviceCacheTTL > 0 {
		store["device_cache_ttl"] = cfg.Store.DeviceCacheTTL
	}
	if len(store) > 0 {
		layer["store"] = store
	}

	httpLayer := map[string]any{}
	setString(httpLayer, "addr", cfg.HTTP.Addr)
	if len(httpLayer) > 0 {
		layer["http"] = httpLayer
	}
	return layer
}
