package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-smarthome/core"
)

// TokenStatusQuery reports the stored token state without refreshing it.
type TokenStatusQuery struct {
	reader core.TokenStateReader
}

func NewTokenStatusQuery(reader core.TokenStateReader) *TokenStatusQuery {
	return &TokenStatusQuery{reader: reader}
}

func (q *TokenStatusQuery) Query(ctx context.Context, msg TokenStatusMessage) (core.TokenStatus, error) {
	if q == nil || q.reader == nil {
		return core.TokenStatus{}, queryDependencyError("query: token state reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.TokenStatus{}, err
	}
	return q.reader.TokenState(ctx, strings.TrimSpace(msg.UserID))
}
