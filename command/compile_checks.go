package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ReportDeviceEventMessage] = (*ReportDeviceEventCommand)(nil)
	_ gocmd.Commander[EnsureTokenMessage]       = (*EnsureTokenCommand)(nil)
)
