// Package protocol models the smart-home directive wire format: inbound
// directive and device-status decoding, and the response, error, discovery,
// state report and change report envelopes.
package protocol
