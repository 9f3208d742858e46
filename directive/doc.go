// Package directive routes inbound smart-home directives to their flows.
//
// Routes are keyed by (namespace, name). A route registered under the name
// "*" catches every name in its namespace that has no exact route. The
// default table serves:
//
//	Alexa.Authorization / AcceptGrant   authorization grant exchange
//	Alexa.Discovery     / Discover      device discovery
//	Alexa               / *             control and state queries
//
// Built-in flows always answer with a protocol envelope, including the error
// envelopes. Dispatch returns an error only when no route matches.
package directive
