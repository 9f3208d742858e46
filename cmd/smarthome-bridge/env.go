package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "SMARTHOME_"

type envKind int

const (
	envString envKind = iota
	envInt
	envInt64
	envDuration
)

type envBinding struct {
	path []string
	kind envKind
}

// envBindings maps SMARTHOME_* variables onto core.Config keys.
var envBindings = map[string]envBinding{
	"SERVICE_NAME":            {path: []string{"service_name"}},
	"DEFAULT_EXPIRES_IN":      {path: []string{"default_expires_in"}, kind: envInt64},
	"CALL_TIMEOUT":            {path: []string{"call_timeout"}, kind: envDuration},
	"DISCOVERY_CONCURRENCY":   {path: []string{"discovery_concurrency"}, kind: envInt},
	"PROVIDER_CLIENT_ID":      {path: []string{"provider", "client_id"}},
	"PROVIDER_CLIENT_SECRET":  {path: []string{"provider", "client_secret"}},
	"PROVIDER_TOKEN_URL":      {path: []string{"provider", "token_url"}},
	"PROVIDER_PROFILE_URL":    {path: []string{"provider", "profile_url"}},
	"GATEWAY_EVENT_URL":       {path: []string{"gateway", "event_url"}},
	"STORE_DRIVER":            {path: []string{"store", "driver"}},
	"STORE_DSN":               {path: []string{"store", "dsn"}},
	"STORE_REGION":            {path: []string{"store", "region"}},
	"STORE_ENDPOINT":          {path: []string{"store", "endpoint"}},
	"STORE_ACCESS_KEY_ID":     {path: []string{"store", "access_key_id"}},
	"STORE_SECRET_ACCESS_KEY": {path: []string{"store", "secret_access_key"}},
	"STORE_USER_TABLE":        {path: []string{"store", "user_table"}},
	"STORE_DEVICE_TABLE":      {path: []string{"store", "device_table"}},
	"STORE_DEVICE_CACHE_TTL":  {path: []string{"store", "device_cache_ttl"}, kind: envDuration},
	"HTTP_ADDR":               {path: []string{"http", "addr"}},
}

// loadDotEnv reads files into the process environment without overriding
// variables already set. Missing files are skipped.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("smarthome-bridge: load %s: %w", file, err)
		}
	}
	return nil
}

// rawConfigFromEnv builds the nested raw config map from KEY=VALUE pairs.
// Unknown SMARTHOME_* keys are ignored; empty values are skipped.
func rawConfigFromEnv(environ []string) (map[string]any, error) {
	raw := map[string]any{}
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, envPrefix) {
			continue
		}
		binding, known := envBindings[strings.TrimPrefix(key, envPrefix)]
		value = strings.TrimSpace(value)
		if !known || value == "" {
			continue
		}
		parsed, err := parseEnvValue(binding.kind, value)
		if err != nil {
			return nil, fmt.Errorf("smarthome-bridge: %s: %w", key, err)
		}
		setPath(raw, binding.path, parsed)
	}
	return raw, nil
}

func parseEnvValue(kind envKind, value string) (any, error) {
	switch kind {
	case envInt:
		return strconv.Atoi(value)
	case envInt64:
		return strconv.ParseInt(value, 10, 64)
	case envDuration:
		return time.ParseDuration(value)
	default:
		return value, nil
	}
}

func setPath(target map[string]any, path []string, value any) {
	for _, segment := range path[:len(path)-1] {
		next, ok := target[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			target[segment] = next
		}
		target = next
	}
	target[path[len(path)-1]] = value
}
