package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-smarthome/core"
	"github.com/goliatone/go-smarthome/migrations"
	dynamostore "github.com/goliatone/go-smarthome/store/dynamo"
	sqlstore "github.com/goliatone/go-smarthome/store/sql"
)

type persistenceConfig struct {
	driver string
	server string
}

func (c persistenceConfig) GetDebug() bool                { return false }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.server }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "smarthome-bridge" }

// stores pairs the selected backends with the device read cache.
type stores struct {
	credentials core.CredentialStore
	devices     core.DeviceStore
	close       func() error
}

func (s *stores) CredentialStore() core.CredentialStore { return s.credentials }
func (s *stores) DeviceStore() core.DeviceStore         { return s.devices }

func (s *stores) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

func openStores(ctx context.Context, cfg core.StoreConfig, opts ...core.Option) (*stores, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	var (
		out *stores
		err error
	)
	switch driver {
	case "", core.StoreDriverSQLite, "sqlite":
		out, err = openSQLStores(ctx, core.StoreDriverSQLite, cfg.DSN, sqlitedialect.New())
	case core.StoreDriverPostgres:
		out, err = openSQLStores(ctx, core.StoreDriverPostgres, cfg.DSN, pgdialect.New())
	case core.StoreDriverDynamoDB:
		out, err = openDynamoStores(ctx, cfg)
	default:
		return nil, fmt.Errorf("smarthome-bridge: unsupported store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	cacheConfig := repositorycache.DefaultConfig()
	if cfg.DeviceCacheTTL > 0 {
		cacheConfig.TTL = cfg.DeviceCacheTTL
	}
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("smarthome-bridge: device cache: %w", err)
	}
	cached, err := sqlstore.NewCachedDeviceStore(out.devices, cacheService, opts...)
	if err != nil {
		_ = out.Close()
		return nil, err
	}
	out.devices = cached
	return out, nil
}

func openSQLStores(ctx context.Context, driver string, dsn string, dialect schema.Dialect) (*stores, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("smarthome-bridge: store dsn is required for %s", driver)
	}
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("smarthome-bridge: open %s: %w", driver, err)
	}
	if driver == core.StoreDriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(persistenceConfig{driver: driver, server: dsn}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("smarthome-bridge: persistence client: %w", err)
	}

	target, err := migrations.DialectForDriver(driver)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if _, err := migrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect == target {
			client.RegisterSQLMigrations(fsys)
		}
		return nil
	}, migrations.WithValidationTargets(target)); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("smarthome-bridge: migrate: %w", err)
	}

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &stores{
		credentials: factory.CredentialStore(),
		devices:     factory.DeviceStore(),
		close:       client.Close,
	}, nil
}

func openDynamoStores(ctx context.Context, cfg core.StoreConfig) (*stores, error) {
	api, err := dynamostore.NewClientFromConfig(ctx, dynamostore.ClientConfig{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	backends, err := dynamostore.NewStores(api, dynamostore.Tables{Users: cfg.UserTable, Devices: cfg.DeviceTable})
	if err != nil {
		return nil, err
	}
	return &stores{
		credentials: backends.CredentialStore(),
		devices:     backends.DeviceStore(),
	}, nil
}

var _ core.StoreProvider = (*stores)(nil)
