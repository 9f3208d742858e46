package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestWrapError_KeepsCauseAndTextCode(t *testing.T) {
	cause := fmt.Errorf("sqlstore: user %q: %w", "u1", ErrRecordNotFound)
	err := WrapError(cause, goerrors.CategoryNotFound, ErrorProfileNotFound, "core: no token record")

	if !IsRecordNotFound(err) {
		t.Fatalf("expected cause in chain")
	}
	if got := ErrorCode(err); got != ErrorProfileNotFound {
		t.Fatalf("expected %s, got %q", ErrorProfileNotFound, got)
	}
	if err.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", err.Code)
	}
}

func TestErrorCode_SeesThroughWrapping(t *testing.T) {
	inner := NewError("core: bearer token is required", goerrors.CategoryAuth, ErrorInvalidToken)
	outer := fmt.Errorf("directive: control: %w", inner)
	if !HasErrorCode(outer, ErrorInvalidToken) {
		t.Fatalf("expected %s through fmt wrapping", ErrorInvalidToken)
	}
	if HasErrorCode(errors.New("plain"), ErrorInvalidToken) {
		t.Fatalf("expected plain error to carry no code")
	}
}

func TestMapError_AssignsDefaults(t *testing.T) {
	mapped := MapError(fmt.Errorf("core: user id is required"))
	if mapped.TextCode != ErrorBadInput {
		t.Fatalf("expected bad input code, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", mapped.Code)
	}

	notFound := MapError(ErrRecordNotFound)
	if notFound.TextCode != ErrorProfileNotFound {
		t.Fatalf("expected profile not found code, got %q", notFound.TextCode)
	}
	if MapError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
