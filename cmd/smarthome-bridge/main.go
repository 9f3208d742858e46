// Command smarthome-bridge serves the smart-home skill endpoint: directives
// and device notifications over HTTP, tokens and devices in the configured
// store, change reports to the Alexa event gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-command"
	repositorycache "github.com/goliatone/go-repository-cache/cache"

	smarthome "github.com/goliatone/go-smarthome"
	"github.com/goliatone/go-smarthome/adapters/gocommand"
	"github.com/goliatone/go-smarthome/adapters/gologger"
	promadapter "github.com/goliatone/go-smarthome/adapters/prometheus"
	"github.com/goliatone/go-smarthome/catalog"
	"github.com/goliatone/go-smarthome/core"
	"github.com/goliatone/go-smarthome/identity"
	"github.com/goliatone/go-smarthome/inbound"
	"github.com/goliatone/go-smarthome/providers/amazon"
)

const (
	profileCacheTTL = 10 * time.Minute
	shutdownTimeout = 15 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "smarthome-bridge: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if err := loadDotEnv(); err != nil {
		return err
	}
	logProvider := gologger.NewJSONProvider(os.Getenv(envPrefix + "LOG_LEVEL"))
	logger := logProvider.GetLogger("smarthome-bridge")

	raw, err := rawConfigFromEnv(os.Environ())
	if err != nil {
		return err
	}
	cfg, err := core.ResolveConfig(ctx, core.Config{}, core.NewCfgxConfigProvider(core.StaticRawConfigLoader{Values: raw}), nil)
	if err != nil {
		return err
	}

	backends, err := openStores(ctx, cfg.Store, core.WithLoggerProvider(logProvider))
	if err != nil {
		return err
	}
	defer func() {
		if err := backends.Close(); err != nil {
			logger.Warn("store close failed", "error", err)
		}
	}()

	amazonCfg := amazon.Config{
		ClientID:     cfg.Provider.ClientID,
		ClientSecret: cfg.Provider.ClientSecret,
		TokenURL:     cfg.Provider.TokenURL,
		ProfileURL:   cfg.Provider.ProfileURL,
		EventURL:     cfg.Gateway.EventURL,
		Timeout:      cfg.EffectiveCallTimeout(),
	}
	identityProvider, err := smarthome.AmazonIdentityProvider(amazonCfg)
	if err != nil {
		return err
	}
	profiles, err := newProfileFetcher(amazonCfg)
	if err != nil {
		return err
	}
	validator, err := identity.NewProfileTokenValidator(profiles)
	if err != nil {
		return err
	}
	eventGateway, err := smarthome.AmazonEventGateway(amazonCfg)
	if err != nil {
		return err
	}

	devices := catalog.NewStaticCatalog(catalog.DefaultDevices()...)
	recorder := promadapter.NewRecorder(cfg.ServiceName, nil)

	bridge, err := smarthome.New(cfg, smarthome.Dependencies{
		Stores:    backends,
		Catalog:   devices,
		Health:    devices,
		Identity:  identityProvider,
		Profiles:  profiles,
		Validator: validator,
		Gateway:   eventGateway,
	},
		smarthome.WithLoggerProvider(logProvider),
		smarthome.WithMetricsRecorder(recorder),
	)
	if err != nil {
		return err
	}

	commands := gocommand.NewCommandBus(command.NewRegistry())
	defer commands.Close()
	if err := commands.RegisterBridge(gocommand.BridgeHandlers{Reporter: bridge, Tokens: bridge, States: bridge}); err != nil {
		return err
	}
	if err := commands.Initialize(); err != nil {
		return err
	}

	router, err := inbound.NewRouter(bridge, logger,
		inbound.WithMetricsHandler(recorder.Handler()),
		inbound.WithRequestTimeout(2*cfg.EffectiveCallTimeout()),
	)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTP.Addr, "store", cfg.Store.Driver)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newProfileFetcher(cfg amazon.Config) (core.ProfileFetcher, error) {
	base, err := smarthome.AmazonProfileFetcher(cfg)
	if err != nil {
		return nil, err
	}
	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = profileCacheTTL
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("profile cache: %w", err)
	}
	return identity.NewCachedProfileFetcher(base, cacheService)
}
