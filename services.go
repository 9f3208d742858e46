package smarthome

import (
	"github.com/goliatone/go-smarthome/core"
	"github.com/goliatone/go-smarthome/protocol"
)

type Config = core.Config

type Option = core.Option

type TokenRecord = core.TokenRecord
type TokenStatus = core.TokenStatus
type DeviceRecord = core.DeviceRecord
type DeviceStatus = core.DeviceStatus
type Directive = core.Directive

type Response = protocol.Response

var (
	WithLogger               = core.WithLogger
	WithLoggerProvider       = core.WithLoggerProvider
	WithMetricsRecorder      = core.WithMetricsRecorder
	WithClock                = core.WithClock
	WithCallTimeout          = core.WithCallTimeout
	WithDefaultExpiresIn     = core.WithDefaultExpiresIn
	WithMessageIDGenerator   = core.WithMessageIDGenerator
	WithDiscoveryConcurrency = core.WithDiscoveryConcurrency
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}
