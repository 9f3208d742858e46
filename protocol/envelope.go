package protocol

import "encoding/json"

const (
	PayloadVersion  = "3"
	ScopeTypeBearer = "BearerToken"

	NamespaceAlexa          = "Alexa"
	NamespaceAuthorization  = "Alexa.Authorization"
	NamespaceDiscovery      = "Alexa.Discovery"
	NamespaceContactSensor  = "Alexa.ContactSensor"
	NamespaceEndpointHealth = "Alexa.EndpointHealth"

	NameAcceptGrant         = "AcceptGrant"
	NameAcceptGrantResponse = "AcceptGrant.Response"
	NameDiscover            = "Discover"
	NameDiscoverResponse    = "Discover.Response"
	NameReportState         = "ReportState"
	NameStateReport         = "StateReport"
	NameChangeReport        = "ChangeReport"
	NameErrorResponse       = "ErrorResponse"

	PropertyDetectionState = "detectionState"
	PropertyConnectivity   = "connectivity"

	DetectionStateDetected    = "DETECTED"
	DetectionStateNotDetected = "NOT_DETECTED"
	ConnectivityOK            = "OK"

	CausePhysicalInteraction = "PHYSICAL_INTERACTION"
)

// Error payload types understood by the assistant cloud.
const (
	ErrorTypeAcceptGrantFailed     = "ACCEPT_GRANT_FAILED"
	ErrorTypeInternal              = "INTERNAL_ERROR"
	ErrorTypeNoSuchEndpoint        = "NO_SUCH_ENDPOINT"
	ErrorTypeEndpointUnreachable   = "ENDPOINT_UNREACHABLE"
	ErrorTypeInvalidDirective      = "INVALID_DIRECTIVE"
	ErrorTypeInvalidAuthCredential = "INVALID_AUTHORIZATION_CREDENTIAL"
)

type Header struct {
	Namespace        string `json:"namespace"`
	Name             string `json:"name"`
	PayloadVersion   string `json:"payloadVersion"`
	MessageID        string `json:"messageId"`
	CorrelationToken string `json:"correlationToken,omitempty"`
}

type Scope struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// Endpoint.Cookie is omitted only when nil; an empty map renders as {}.
type Endpoint struct {
	Scope      *Scope `json:"scope,omitempty"`
	EndpointID string `json:"endpointId"`
	Cookie     any    `json:"cookie,omitempty"`
}

type Property struct {
	Namespace     string `json:"namespace"`
	Name          string `json:"name"`
	Value         any    `json:"value"`
	TimeOfSample  string `json:"timeOfSample"`
	UncertaintyMs int64  `json:"uncertaintyInMilliseconds"`
}

type Context struct {
	Properties []Property `json:"properties,omitempty"`
}

type Event struct {
	Header   Header    `json:"header"`
	Endpoint *Endpoint `json:"endpoint,omitempty"`
	Payload  any       `json:"payload"`
}

// Response is the envelope returned for every directive.
type Response struct {
	Context *Context `json:"context,omitempty"`
	Event   Event    `json:"event"`
}

type ErrorPayload struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// DiscoveryErrorPayload always serialises an (empty) endpoint list.
type DiscoveryErrorPayload struct {
	Type      string               `json:"type"`
	Message   string               `json:"message"`
	Endpoints []DiscoveredEndpoint `json:"endpoints"`
}

type DiscoveryPayload struct {
	Endpoints []DiscoveredEndpoint `json:"endpoints"`
}

type DiscoveredEndpoint struct {
	EndpointID        string                 `json:"endpointId"`
	ManufacturerName  string                 `json:"manufacturerName"`
	FriendlyName      string                 `json:"friendlyName"`
	Description       string                 `json:"description"`
	DisplayCategories []string               `json:"displayCategories"`
	Cookie            map[string]string      `json:"cookie"`
	Capabilities      []DiscoveredCapability `json:"capabilities"`
}

type DiscoveredCapability struct {
	Type       string                `json:"type"`
	Interface  string                `json:"interface"`
	Version    string                `json:"version"`
	Properties *CapabilityProperties `json:"properties,omitempty"`
}

type CapabilityProperties struct {
	Supported           []SupportedProperty `json:"supported"`
	ProactivelyReported bool                `json:"proactivelyReported"`
	Retrievable         bool                `json:"retrievable"`
}

type SupportedProperty struct {
	Name string `json:"name"`
}

type ChangePayload struct {
	Change Change `json:"change"`
}

type Change struct {
	Cause      Cause      `json:"cause"`
	Properties []Property `json:"properties"`
}

type Cause struct {
	Type string `json:"type"`
}

// ChangeReportEvent is the body posted to the event gateway. Its context is
// always present, possibly empty.
type ChangeReportEvent struct {
	Context Context `json:"context"`
	Event   Event   `json:"event"`
}

// ErrorPayloadOf returns the error payload carried by r, if any.
func ErrorPayloadOf(r Response) (ErrorPayload, bool) {
	if r.Event.Header.Name != NameErrorResponse {
		return ErrorPayload{}, false
	}
	switch typed := r.Event.Payload.(type) {
	case ErrorPayload:
		return typed, true
	case DiscoveryErrorPayload:
		return ErrorPayload{Type: typed.Type, Message: typed.Message}, true
	case json.RawMessage:
		var decoded ErrorPayload
		if err := json.Unmarshal(typed, &decoded); err != nil {
			return ErrorPayload{}, false
		}
		return decoded, true
	}
	return ErrorPayload{}, true
}
