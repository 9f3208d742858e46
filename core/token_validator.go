package core

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// PresenceTokenValidator accepts any non-empty bearer token.
type PresenceTokenValidator struct{}

func (PresenceTokenValidator) ValidateAccessToken(_ context.Context, accessToken string) error {
	if strings.TrimSpace(accessToken) == "" {
		return NewError("core: bearer token is required", goerrors.CategoryAuth, ErrorInvalidToken)
	}
	return nil
}
