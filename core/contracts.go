package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// CredentialStore persists one TokenRecord per user. Missing keys surface as
// ErrRecordNotFound.
type CredentialStore interface {
	Get(ctx context.Context, userID string) (TokenRecord, error)
	GetByDevice(ctx context.Context, endpointID string) (TokenRecord, error)
	// Put inserts or replaces the record for record.UserID.
	Put(ctx context.Context, record TokenRecord) (TokenRecord, error)
	// UpdateAccessToken applies update atomically; on error the stored record is unchanged.
	UpdateAccessToken(ctx context.Context, userID string, update TokenUpdate) (TokenRecord, error)
}

type DeviceStore interface {
	Upsert(ctx context.Context, record DeviceRecord) (DeviceRecord, error)
	GetByEndpoint(ctx context.Context, endpointID string) (DeviceRecord, error)
}

type DeviceCatalog interface {
	ListDevices(ctx context.Context, accessToken string) ([]DeviceDescriptor, error)
}

type DeviceHealth interface {
	IsDeviceOnline(ctx context.Context, endpointID string) (bool, error)
}

type IdentityProvider interface {
	ExchangeCode(ctx context.Context, code string) (TokenGrant, error)
	Refresh(ctx context.Context, refreshToken string) (TokenGrant, error)
}

type ProfileFetcher interface {
	FetchProfile(ctx context.Context, accessToken string) (CustomerProfile, error)
}

type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, accessToken string) error
}

type EventGateway interface {
	SendChangeReport(ctx context.Context, report ChangeReport) error
}

// TokenEnsurer is the narrow view of TokenManager used by event and command flows.
type TokenEnsurer interface {
	EnsureValidToken(ctx context.Context, userID string) (TokenRecord, error)
}

type TokenStateReader interface {
	TokenState(ctx context.Context, userID string) (TokenStatus, error)
}

type MessageIDGenerator func() string

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// StoreProvider exposes the persistence backends selected at wiring time.
type StoreProvider interface {
	CredentialStore() CredentialStore
	DeviceStore() DeviceStore
}
