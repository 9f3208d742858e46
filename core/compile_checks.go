package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ TokenEnsurer     = (*TokenManager)(nil)
	_ TokenStateReader = (*TokenManager)(nil)
	_ TokenValidator   = PresenceTokenValidator{}
	_ MetricsRecorder  = NopMetricsRecorder{}
	_ ConfigProvider   = (*CfgxConfigProvider)(nil)
	_ OptionsResolver  = GoOptionsResolver{}
	_ RawConfigLoader  = StaticRawConfigLoader{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
