package protocol

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-smarthome/core"
)

// Builder stamps response envelopes with message ids and sample times.
type Builder struct {
	Now        func() time.Time
	MessageIDs core.MessageIDGenerator
}

func NewBuilder(now func() time.Time, ids core.MessageIDGenerator) Builder {
	if now == nil {
		now = time.Now
	}
	if ids == nil {
		ids = uuid.NewString
	}
	return Builder{Now: now, MessageIDs: ids}
}

func (b Builder) header(namespace, name, correlationToken string) Header {
	ids := b.MessageIDs
	if ids == nil {
		ids = uuid.NewString
	}
	return Header{
		Namespace:        namespace,
		Name:             name,
		PayloadVersion:   PayloadVersion,
		MessageID:        ids(),
		CorrelationToken: strings.TrimSpace(correlationToken),
	}
}

func (b Builder) sampleTime() string {
	now := b.Now
	if now == nil {
		now = time.Now
	}
	return FormatSampleTime(now())
}

// FormatSampleTime renders t as an RFC 3339 UTC timestamp.
func FormatSampleTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ErrorResponse echoes the endpoint, correlation token and token scope of the
// directive being rejected.
func (b Builder) ErrorResponse(directive core.Directive, errorType, message string) Response {
	payload := ErrorPayload{Type: errorType, Message: message}
	return Response{
		Event: Event{
			Header: b.header(NamespaceAlexa, NameErrorResponse, directive.CorrelationToken),
			Endpoint: &Endpoint{
				Scope:      &Scope{Type: ScopeTypeBearer, Token: directive.BearerToken},
				EndpointID: directive.EndpointID,
			},
			Payload: payload,
		},
	}
}

// InvalidTokenResponse is ErrorResponse with an empty payload.
func (b Builder) InvalidTokenResponse(directive core.Directive) Response {
	resp := b.ErrorResponse(directive, "", "")
	resp.Event.Payload = struct{}{}
	return resp
}

func (b Builder) AcceptGrantResponse() Response {
	return Response{
		Event: Event{
			Header:  b.header(NamespaceAuthorization, NameAcceptGrantResponse, ""),
			Payload: struct{}{},
		},
	}
}

func (b Builder) DiscoverResponse(devices []core.DeviceDescriptor) Response {
	endpoints := make([]DiscoveredEndpoint, 0, len(devices))
	for _, device := range devices {
		endpoints = append(endpoints, DescribeEndpoint(device))
	}
	return Response{
		Event: Event{
			Header:  b.header(NamespaceDiscovery, NameDiscoverResponse, ""),
			Payload: DiscoveryPayload{Endpoints: endpoints},
		},
	}
}

func (b Builder) DiscoverErrorResponse(errorType, message string) Response {
	return Response{
		Event: Event{
			Header: b.header(NamespaceAlexa, NameErrorResponse, ""),
			Payload: DiscoveryErrorPayload{
				Type:      errorType,
				Message:   message,
				Endpoints: []DiscoveredEndpoint{},
			},
		},
	}
}

// StateReport answers ReportState with the given property snapshot.
func (b Builder) StateReport(directive core.Directive, states []core.PropertyState) Response {
	return Response{
		Context: &Context{Properties: b.properties(states)},
		Event: Event{
			Header: b.header(NamespaceAlexa, NameStateReport, directive.CorrelationToken),
			Endpoint: &Endpoint{
				EndpointID: directive.EndpointID,
				Cookie:     map[string]string{},
			},
			Payload: struct{}{},
		},
	}
}

func (b Builder) ChangeReportEvent(report core.ChangeReport) ChangeReportEvent {
	header := b.header(NamespaceAlexa, NameChangeReport, "")
	if id := strings.TrimSpace(report.MessageID); id != "" {
		header.MessageID = id
	}
	cause := strings.TrimSpace(report.Cause)
	if cause == "" {
		cause = CausePhysicalInteraction
	}
	return ChangeReportEvent{
		Context: Context{},
		Event: Event{
			Header: header,
			Endpoint: &Endpoint{
				Scope:      &Scope{Type: ScopeTypeBearer, Token: report.AccessToken},
				EndpointID: report.EndpointID,
			},
			Payload: ChangePayload{
				Change: Change{
					Cause:      Cause{Type: cause},
					Properties: b.properties(report.Properties),
				},
			},
		},
	}
}

func (b Builder) properties(states []core.PropertyState) []Property {
	out := make([]Property, 0, len(states))
	for _, state := range states {
		sampled := b.sampleTime()
		if !state.TimeOfSample.IsZero() {
			sampled = FormatSampleTime(state.TimeOfSample)
		}
		out = append(out, Property{
			Namespace:     state.Namespace,
			Name:          state.Name,
			Value:         state.Value,
			TimeOfSample:  sampled,
			UncertaintyMs: state.UncertaintyMs,
		})
	}
	return out
}

// DescribeEndpoint converts a catalog entry into its discovery representation.
func DescribeEndpoint(device core.DeviceDescriptor) DiscoveredEndpoint {
	cookie := device.Cookie
	if cookie == nil {
		cookie = map[string]string{}
	}
	categories := append([]string{}, device.DisplayCategories...)
	capabilities := make([]DiscoveredCapability, 0, len(device.Capabilities))
	for _, capability := range device.Capabilities {
		described := DiscoveredCapability{
			Type:      capability.Type,
			Interface: capability.Interface,
			Version:   capability.Version,
		}
		if len(capability.Supported) > 0 {
			supported := make([]SupportedProperty, 0, len(capability.Supported))
			for _, name := range capability.Supported {
				supported = append(supported, SupportedProperty{Name: name})
			}
			described.Properties = &CapabilityProperties{
				Supported:           supported,
				ProactivelyReported: capability.ProactivelyReported,
				Retrievable:         capability.Retrievable,
			}
		}
		capabilities = append(capabilities, described)
	}
	return DiscoveredEndpoint{
		EndpointID:        device.EndpointID,
		ManufacturerName:  device.ManufacturerName,
		FriendlyName:      device.FriendlyName,
		Description:       device.Description,
		DisplayCategories: categories,
		Cookie:            cookie,
		Capabilities:      capabilities,
	}
}
