package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput              = "SMARTHOME_BAD_INPUT"
	ErrorProfileNotFound       = "SMARTHOME_PROFILE_NOT_FOUND"
	ErrorRefreshFailed         = "SMARTHOME_REFRESH_FAILED"
	ErrorGrantExchangeFailed   = "SMARTHOME_GRANT_EXCHANGE_FAILED"
	ErrorDeviceUpsertFailed    = "SMARTHOME_DEVICE_UPSERT_FAILED"
	ErrorInvalidToken          = "SMARTHOME_INVALID_TOKEN"
	ErrorUnknownEndpoint       = "SMARTHOME_UNKNOWN_ENDPOINT"
	ErrorEndpointUnreachable   = "SMARTHOME_ENDPOINT_UNREACHABLE"
	ErrorUnsupportedDirective  = "SMARTHOME_UNSUPPORTED_DIRECTIVE"
	ErrorUnknownNamespace      = "SMARTHOME_UNKNOWN_NAMESPACE"
	ErrorDuplicateRegistration = "SMARTHOME_DUPLICATE_REGISTRATION"
	ErrorInternal              = "SMARTHOME_INTERNAL_ERROR"
)

// ErrRecordNotFound is returned (wrapped) by stores when a key has no record.
var ErrRecordNotFound = errors.New("core: record not found")

func IsRecordNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// NewError builds a taxonomy error with the HTTP status derived from category.
func NewError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(goerrors.New(message, category).WithTextCode(textCode))
}

// WrapError wraps cause into a taxonomy error, keeping the cause in the chain.
func WrapError(cause error, category goerrors.Category, textCode string, message string) *goerrors.Error {
	if cause == nil {
		return NewError(message, category, textCode)
	}
	return ensureErrorEnvelope(goerrors.Wrap(cause, category, message).WithTextCode(textCode))
}

// ErrorCode returns the outermost taxonomy text code in err's chain.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		return strings.TrimSpace(richErr.TextCode)
	}
	return ""
}

func HasErrorCode(err error, code string) bool {
	code = strings.TrimSpace(code)
	return code != "" && ErrorCode(err) == code
}

// MapError converts arbitrary errors into a goerrors envelope with a text code.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}
	if IsRecordNotFound(err) {
		return NewError(err.Error(), goerrors.CategoryNotFound, ErrorProfileNotFound)
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	if strings.Contains(msg, "required") || strings.Contains(msg, "invalid") {
		return NewError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}
	return ensureErrorEnvelope(goerrors.MapToError(err, goerrors.DefaultErrorMappers()))
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorUnknownEndpoint
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorInvalidToken
	case goerrors.CategoryConflict:
		return ErrorDuplicateRegistration
	default:
		return ErrorInternal
	}
}

func httpStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
