package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-smarthome/core"
)

var _ gocmd.Querier[TokenStatusMessage, core.TokenStatus] = (*TokenStatusQuery)(nil)
