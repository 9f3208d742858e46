package directive

import (
	"context"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-smarthome/core"
	"github.com/goliatone/go-smarthome/protocol"
)

const flowAcceptGrant = "accept_grant"

// handleAcceptGrant resolves the grantee's profile, exchanges the grant code
// and stores the resulting token pair under the profile's user id. Each step
// needs the previous one; the first failure ends the flow.
func (d *Dispatcher) handleAcceptGrant(ctx context.Context, directive core.Directive) (protocol.Response, error) {
	fail := func(stage string, err error) (protocol.Response, error) {
		d.flowFailed(ctx, flowAcceptGrant, stage, directive, err)
		return d.builder.ErrorResponse(
			directive,
			protocol.ErrorTypeAcceptGrantFailed,
			"Failed to handle AcceptGrant directive: "+stage,
		), nil
	}

	if directive.BearerToken == "" {
		return fail("grantee", core.NewError("directive: grantee token is required", goerrors.CategoryBadInput, core.ErrorBadInput))
	}

	profile, err := d.fetchProfile(ctx, directive.BearerToken)
	if err != nil {
		return fail("profile", err)
	}

	code, err := protocol.GrantCode(directive.Payload)
	if err != nil {
		return fail("grant_code", err)
	}
	exchangeCtx, cancel := d.withTimeout(ctx)
	grant, err := d.deps.Identity.ExchangeCode(exchangeCtx, code)
	cancel()
	if err != nil {
		return fail("exchange", core.WrapError(err, goerrors.CategoryExternal, core.ErrorGrantExchangeFailed, "directive: grant code exchange failed"))
	}
	if grant.AccessToken == "" {
		return fail("exchange", core.NewError("directive: grant exchange returned no access token", goerrors.CategoryExternal, core.ErrorGrantExchangeFailed))
	}

	expiresIn := grant.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = d.expiresIn
	}
	record := core.TokenRecord{
		UserID:       profile.UserID,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		IssuedAt:     d.now().UTC().Unix(),
		ExpiresIn:    expiresIn,
	}
	storeCtx, cancel := d.withTimeout(ctx)
	_, err = d.deps.Credentials.Put(storeCtx, record)
	cancel()
	if err != nil {
		return fail("store", core.WrapError(err, goerrors.CategoryInternal, core.ErrorGrantExchangeFailed, "directive: persist token record failed"))
	}

	d.observer.Log(ctx, "info", "directive: authorization grant accepted", map[string]any{
		"user_id":    profile.UserID,
		"expires_in": expiresIn,
	})
	return d.builder.AcceptGrantResponse(), nil
}

func (d *Dispatcher) fetchProfile(ctx context.Context, accessToken string) (core.CustomerProfile, error) {
	callCtx, cancel := d.withTimeout(ctx)
	defer cancel()
	profile, err := d.deps.Profiles.FetchProfile(callCtx, accessToken)
	if err != nil {
		return core.CustomerProfile{}, err
	}
	if profile.UserID == "" {
		return core.CustomerProfile{}, core.NewError("directive: customer profile has no user id", goerrors.CategoryNotFound, core.ErrorProfileNotFound)
	}
	return profile, nil
}
