package inbound

import (
	"encoding/json"
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-smarthome/core"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func inboundBadInput(message string, metadata map[string]any) error {
	err := core.NewError(message, goerrors.CategoryBadInput, core.ErrorBadInput)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundWrapError(source error, category goerrors.Category, textCode string, message string) error {
	return core.WrapError(source, category, textCode, message)
}

// writeError renders err as {"error":{"code","message","metadata"}} with the
// status carried by its envelope.
func writeError(w http.ResponseWriter, err error) {
	mapped := core.MapError(err)
	if mapped == nil {
		mapped = core.NewError("inbound: unknown error", goerrors.CategoryInternal, core.ErrorInternal)
	}
	status := mapped.Code
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	body := errorBody{Error: errorDetail{
		Code:     mapped.TextCode,
		Message:  mapped.Message,
		Metadata: core.RedactFields(mapped.Metadata),
	}}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
