// Package transport provides the bounded HTTP adapter used by every outbound
// client: identity provider, customer profile and event gateway.
package transport
