package smarthome

import (
	"fmt"

	smarthomecommand "github.com/goliatone/go-smarthome/command"
	"github.com/goliatone/go-smarthome/core"
	smarthomequery "github.com/goliatone/go-smarthome/query"
)

type CommandQueryService interface {
	smarthomecommand.DeviceEventReporter
	core.TokenEnsurer
	core.TokenStateReader
}

type Commands struct {
	ReportDeviceEvent *smarthomecommand.ReportDeviceEventCommand
	EnsureToken       *smarthomecommand.EnsureTokenCommand
}

type Queries struct {
	TokenStatus *smarthomequery.TokenStatusQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("smarthome: command/query service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			ReportDeviceEvent: smarthomecommand.NewReportDeviceEventCommand(service),
			EnsureToken:       smarthomecommand.NewEnsureTokenCommand(service),
		},
		queries: Queries{
			TokenStatus: smarthomequery.NewTokenStatusQuery(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
