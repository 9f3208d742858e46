package query

import "strings"

const TypeTokenStatus = "smarthome.query.token.status"

type TokenStatusMessage struct {
	UserID string
}

func (TokenStatusMessage) Type() string { return TypeTokenStatus }

func (m TokenStatusMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	return nil
}
