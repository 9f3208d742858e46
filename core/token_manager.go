package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/sync/singleflight"
)

// TokenManager hands out valid access tokens, refreshing them on demand.
// Concurrent refreshes for one user collapse into a single provider call.
type TokenManager struct {
	store            CredentialStore
	provider         IdentityProvider
	observer         Observer
	now              func() time.Time
	callTimeout      time.Duration
	defaultExpiresIn int64
	flights          singleflight.Group
}

func NewTokenManager(store CredentialStore, provider IdentityProvider, opts ...Option) (*TokenManager, error) {
	if store == nil {
		return nil, fmt.Errorf("core: credential store is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("core: identity provider is required")
	}
	resolved := ResolveOptions("smarthome.tokens", opts...)
	return &TokenManager{
		store:            store,
		provider:         provider,
		observer:         NewObserver("smarthome", resolved.Logger, resolved.MetricsRecorder),
		now:              resolved.Now,
		callTimeout:      resolved.CallTimeout,
		defaultExpiresIn: resolved.DefaultExpiresIn,
	}, nil
}

// EnsureValidToken returns a record whose access token is valid now. A valid
// stored record is returned as is; an expired one is refreshed and persisted.
func (m *TokenManager) EnsureValidToken(ctx context.Context, userID string) (TokenRecord, error) {
	if m == nil {
		return TokenRecord{}, fmt.Errorf("core: token manager is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now()
	userID = strings.TrimSpace(userID)

	record, refreshed, err := m.ensure(ctx, userID)
	m.observer.Observe(ctx, startedAt, "ensure_valid_token", err, map[string]any{
		"user_id":   userID,
		"refreshed": refreshed,
	})
	if err != nil {
		return TokenRecord{}, err
	}
	return record, nil
}

// TokenState reports the stored token status without refreshing it.
func (m *TokenManager) TokenState(ctx context.Context, userID string) (TokenStatus, error) {
	if m == nil {
		return TokenStatus{}, fmt.Errorf("core: token manager is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return TokenStatus{}, NewError("core: user id is required", goerrors.CategoryBadInput, ErrorBadInput)
	}
	record, err := m.load(ctx, userID)
	if err != nil {
		return TokenStatus{}, err
	}
	return TokenStatus{
		UserID:    record.UserID,
		Valid:     record.IsValidAt(m.now()),
		IssuedAt:  record.IssuedAt,
		ExpiresAt: record.ExpiresAt(),
	}, nil
}

func (m *TokenManager) ensure(ctx context.Context, userID string) (TokenRecord, bool, error) {
	if userID == "" {
		return TokenRecord{}, false, NewError("core: user id is required", goerrors.CategoryBadInput, ErrorBadInput)
	}
	record, err := m.load(ctx, userID)
	if err != nil {
		return TokenRecord{}, false, err
	}
	if record.IsValidAt(m.now()) {
		return record, false, nil
	}

	// the flight runs detached from the caller; each waiter still honours its own ctx.
	flightCtx := context.WithoutCancel(ctx)
	results := m.flights.DoChan(userID, func() (any, error) {
		return m.refresh(flightCtx, userID)
	})
	select {
	case <-ctx.Done():
		return TokenRecord{}, false, WrapError(ctx.Err(), goerrors.CategoryOperation, ErrorRefreshFailed, "core: token refresh wait cancelled")
	case result := <-results:
		if result.Err != nil {
			return TokenRecord{}, false, result.Err
		}
		refreshed, ok := result.Val.(TokenRecord)
		if !ok {
			return TokenRecord{}, false, NewError("core: token refresh returned no record", goerrors.CategoryInternal, ErrorRefreshFailed)
		}
		return refreshed, true, nil
	}
}

func (m *TokenManager) refresh(ctx context.Context, userID string) (TokenRecord, error) {
	current, err := m.load(ctx, userID)
	if err != nil {
		return TokenRecord{}, err
	}
	if current.IsValidAt(m.now()) {
		return current, nil
	}
	if current.RefreshToken == "" {
		return TokenRecord{}, NewError("core: refresh token missing for user", goerrors.CategoryAuth, ErrorRefreshFailed).
			WithMetadata(map[string]any{"user_id": userID})
	}

	callCtx, cancel := m.withTimeout(ctx)
	grant, err := m.provider.Refresh(callCtx, current.RefreshToken)
	cancel()
	if err != nil {
		return TokenRecord{}, WrapError(err, goerrors.CategoryExternal, ErrorRefreshFailed, "core: token refresh rejected by identity provider").
			WithMetadata(map[string]any{"user_id": userID})
	}
	accessToken := strings.TrimSpace(grant.AccessToken)
	if accessToken == "" {
		return TokenRecord{}, NewError("core: identity provider returned empty access token", goerrors.CategoryExternal, ErrorRefreshFailed).
			WithMetadata(map[string]any{"user_id": userID})
	}

	expiresIn := grant.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = m.defaultExpiresIn
	}
	update := TokenUpdate{
		AccessToken:  accessToken,
		RefreshToken: strings.TrimSpace(grant.RefreshToken),
		IssuedAt:     max(m.now().UTC().Unix(), current.IssuedAt+1),
		ExpiresIn:    expiresIn,
	}

	storeCtx, cancelStore := m.withTimeout(ctx)
	updated, err := m.store.UpdateAccessToken(storeCtx, userID, update)
	cancelStore()
	if err != nil {
		return TokenRecord{}, WrapError(err, goerrors.CategoryInternal, ErrorRefreshFailed, "core: persisting refreshed token failed").
			WithMetadata(map[string]any{"user_id": userID})
	}
	return updated, nil
}

func (m *TokenManager) load(ctx context.Context, userID string) (TokenRecord, error) {
	callCtx, cancel := m.withTimeout(ctx)
	defer cancel()
	record, err := m.store.Get(callCtx, userID)
	if err != nil {
		if IsRecordNotFound(err) {
			return TokenRecord{}, WrapError(err, goerrors.CategoryNotFound, ErrorProfileNotFound, "core: no token record for user").
				WithMetadata(map[string]any{"user_id": userID})
		}
		return TokenRecord{}, WrapError(err, goerrors.CategoryInternal, ErrorInternal, "core: token record lookup failed")
	}
	if record.ExpiresIn <= 0 {
		record.ExpiresIn = m.defaultExpiresIn
	}
	return record, nil
}

func (m *TokenManager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.callTimeout)
}
