package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	StoreDriverSQLite   = "sqlite3"
	StoreDriverPostgres = "postgres"
	StoreDriverDynamoDB = "dynamodb"
)

type ProviderConfig struct {
	ClientID     string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string `koanf:"client_secret" mapstructure:"client_secret"`
	TokenURL     string `koanf:"token_url" mapstructure:"token_url"`
	ProfileURL   string `koanf:"profile_url" mapstructure:"profile_url"`
}

type GatewayConfig struct {
	EventURL string `koanf:"event_url" mapstructure:"event_url"`
}

type StoreConfig struct {
	Driver          string        `koanf:"driver" mapstructure:"driver"`
	DSN             string        `koanf:"dsn" mapstructure:"dsn"`
	Region          string        `koanf:"region" mapstructure:"region"`
	Endpoint        string        `koanf:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string        `koanf:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string        `koanf:"secret_access_key" mapstructure:"secret_access_key"`
	UserTable       string        `koanf:"user_table" mapstructure:"user_table"`
	DeviceTable     string        `koanf:"device_table" mapstructure:"device_table"`
	DeviceCacheTTL  time.Duration `koanf:"device_cache_ttl" mapstructure:"device_cache_ttl"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr" mapstructure:"addr"`
}

type Config struct {
	ServiceName          string         `koanf:"service_name" mapstructure:"service_name"`
	DefaultExpiresIn     int64          `koanf:"default_expires_in" mapstructure:"default_expires_in"`
	CallTimeout          time.Duration  `koanf:"call_timeout" mapstructure:"call_timeout"`
	DiscoveryConcurrency int            `koanf:"discovery_concurrency" mapstructure:"discovery_concurrency"`
	Provider             ProviderConfig `koanf:"provider" mapstructure:"provider"`
	Gateway              GatewayConfig  `koanf:"gateway" mapstructure:"gateway"`
	Store                StoreConfig    `koanf:"store" mapstructure:"store"`
	HTTP                 HTTPConfig     `koanf:"http" mapstructure:"http"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:          "smarthome",
		DefaultExpiresIn:     DefaultExpiresInSeconds,
		CallTimeout:          10 * time.Second,
		DiscoveryConcurrency: 8,
		Store: StoreConfig{
			Driver:         StoreDriverSQLite,
			DSN:            "file:smarthome.db?cache=shared&_foreign_keys=on",
			UserTable:      "User_Profile",
			DeviceTable:    "Devices",
			DeviceCacheTTL: 5 * time.Minute,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.DefaultExpiresIn < 0 {
		return fmt.Errorf("core: default_expires_in must be >= 0")
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("core: call_timeout must be >= 0")
	}
	if c.DiscoveryConcurrency < 0 {
		return fmt.Errorf("core: discovery_concurrency must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(c.Store.Driver)) {
	case "", StoreDriverSQLite, "sqlite", StoreDriverPostgres, StoreDriverDynamoDB:
	default:
		return fmt.Errorf("core: unsupported store driver %q", c.Store.Driver)
	}
	return nil
}

func (c Config) EffectiveCallTimeout() time.Duration {
	if c.CallTimeout <= 0 {
		return DefaultConfig().CallTimeout
	}
	return c.CallTimeout
}

func (c Config) EffectiveExpiresIn() int64 {
	if c.DefaultExpiresIn <= 0 {
		return DefaultExpiresInSeconds
	}
	return c.DefaultExpiresIn
}

func (c Config) EffectiveDiscoveryConcurrency() int {
	if c.DiscoveryConcurrency <= 0 {
		return DefaultConfig().DiscoveryConcurrency
	}
	return c.DiscoveryConcurrency
}
