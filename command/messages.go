package command

import (
	"strings"
)

const (
	TypeReportDeviceEvent = "smarthome.command.device_event.report"
	TypeEnsureToken       = "smarthome.command.token.ensure"
)

type ReportDeviceEventMessage struct {
	EndpointID string
	Status     string
}

func (ReportDeviceEventMessage) Type() string { return TypeReportDeviceEvent }

func (m ReportDeviceEventMessage) Validate() error {
	if strings.TrimSpace(m.EndpointID) == "" {
		return commandValidationError("endpoint_id", "endpoint id is required")
	}
	return nil
}

type EnsureTokenMessage struct {
	UserID string
}

func (EnsureTokenMessage) Type() string { return TypeEnsureToken }

func (m EnsureTokenMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return nil
}
