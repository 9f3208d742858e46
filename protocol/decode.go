package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-smarthome/core"
)

type RequestKind string

const (
	RequestKindDirective    RequestKind = "directive"
	RequestKindDeviceStatus RequestKind = "device_status"
)

// Request is a decoded inbound message: either a directive or a device-status
// notification.
type Request struct {
	Kind         RequestKind
	Directive    core.Directive
	DeviceStatus core.DeviceStatus
}

type wireRequest struct {
	Directive  *wireDirective  `json:"directive"`
	Status     json.RawMessage `json:"status"`
	EndpointID string          `json:"endpointId"`
}

type wireDirective struct {
	Header   Header          `json:"header"`
	Endpoint *wireEndpoint   `json:"endpoint"`
	Payload  json.RawMessage `json:"payload"`
}

type wireEndpoint struct {
	Scope      *Scope `json:"scope"`
	EndpointID string `json:"endpointId"`
}

type scopedPayload struct {
	Scope   *Scope     `json:"scope"`
	Grantee *Scope     `json:"grantee"`
	Grant   *wireGrant `json:"grant"`
}

type wireGrant struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

func DecodeRequest(raw []byte) (Request, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Request{}, badInput("protocol: request body is empty")
	}
	var wire wireRequest
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Request{}, core.WrapError(err, goerrors.CategoryBadInput, core.ErrorBadInput, "protocol: request body is not valid json")
	}

	if status, ok := statusValue(wire.Status); ok {
		endpointID := strings.TrimSpace(wire.EndpointID)
		if endpointID == "" {
			return Request{}, badInput("protocol: device status requires endpointId")
		}
		return Request{
			Kind:         RequestKindDeviceStatus,
			DeviceStatus: core.DeviceStatus{EndpointID: endpointID, Status: status},
		}, nil
	}

	if wire.Directive == nil {
		return Request{}, badInput("protocol: request carries neither directive nor status")
	}
	directive, err := decodeDirective(*wire.Directive)
	if err != nil {
		return Request{}, err
	}
	return Request{Kind: RequestKindDirective, Directive: directive}, nil
}

// DecodeDirective decodes a bare directive object (without the outer wrapper).
func DecodeDirective(raw []byte) (core.Directive, error) {
	var wire wireDirective
	if err := json.Unmarshal(bytes.TrimSpace(raw), &wire); err != nil {
		return core.Directive{}, core.WrapError(err, goerrors.CategoryBadInput, core.ErrorBadInput, "protocol: directive is not valid json")
	}
	return decodeDirective(wire)
}

func decodeDirective(wire wireDirective) (core.Directive, error) {
	header := wire.Header
	if strings.TrimSpace(header.Namespace) == "" {
		return core.Directive{}, badInput("protocol: directive header namespace is required")
	}
	directive := core.Directive{
		Namespace:        header.Namespace,
		Name:             header.Name,
		MessageID:        header.MessageID,
		CorrelationToken: header.CorrelationToken,
		PayloadVersion:   header.PayloadVersion,
		Payload:          wire.Payload,
	}
	if wire.Endpoint != nil {
		directive.EndpointID = wire.Endpoint.EndpointID
		if wire.Endpoint.Scope != nil {
			directive.BearerToken = wire.Endpoint.Scope.Token
		}
	}
	if strings.TrimSpace(directive.BearerToken) == "" {
		directive.BearerToken = payloadToken(wire.Payload)
	}
	return directive.Normalized(), nil
}

// GrantCode returns payload.grant.code from an AcceptGrant payload.
func GrantCode(payload json.RawMessage) (string, error) {
	decoded, err := decodeScopedPayload(payload)
	if err != nil {
		return "", err
	}
	if decoded.Grant == nil || strings.TrimSpace(decoded.Grant.Code) == "" {
		return "", badInput("protocol: grant code is required")
	}
	return strings.TrimSpace(decoded.Grant.Code), nil
}

func payloadToken(payload json.RawMessage) string {
	decoded, err := decodeScopedPayload(payload)
	if err != nil {
		return ""
	}
	if decoded.Scope != nil && strings.TrimSpace(decoded.Scope.Token) != "" {
		return strings.TrimSpace(decoded.Scope.Token)
	}
	if decoded.Grantee != nil {
		return strings.TrimSpace(decoded.Grantee.Token)
	}
	return ""
}

func decodeScopedPayload(payload json.RawMessage) (scopedPayload, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return scopedPayload{}, nil
	}
	var decoded scopedPayload
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return scopedPayload{}, core.WrapError(err, goerrors.CategoryBadInput, core.ErrorBadInput, "protocol: payload is not a json object")
	}
	return decoded, nil
}

// statusValue reports whether raw holds a truthy status and returns it as text.
func statusValue(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", false
	}
	switch string(trimmed) {
	case "null", "false", `""`, "0":
		return "", false
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return strings.TrimSpace(text), true
	}
	return string(trimmed), true
}

func badInput(message string) error {
	return core.NewError(message, goerrors.CategoryBadInput, core.ErrorBadInput)
}

// EncodeResponse renders r as JSON.
func EncodeResponse(r Response) ([]byte, error) {
	out, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode response: %w", err)
	}
	return out, nil
}
