// Package gateway delivers proactive change reports to the assistant event
// gateway using the owning user's bearer token.
package gateway
