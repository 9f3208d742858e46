package identity

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-smarthome/core"
)

// ProfileTokenValidator treats a token as valid when it resolves to a profile.
type ProfileTokenValidator struct {
	profiles core.ProfileFetcher
}

func NewProfileTokenValidator(profiles core.ProfileFetcher) (*ProfileTokenValidator, error) {
	if profiles == nil {
		return nil, fmt.Errorf("identity: profile fetcher is required")
	}
	return &ProfileTokenValidator{profiles: profiles}, nil
}

func (v *ProfileTokenValidator) ValidateAccessToken(ctx context.Context, accessToken string) error {
	if v == nil || v.profiles == nil {
		return fmt.Errorf("identity: token validator is not configured")
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return core.NewError("identity: access token is required", goerrors.CategoryAuth, core.ErrorInvalidToken)
	}
	if _, err := v.profiles.FetchProfile(ctx, accessToken); err != nil {
		return core.WrapError(err, goerrors.CategoryAuth, core.ErrorInvalidToken, "identity: access token rejected")
	}
	return nil
}
