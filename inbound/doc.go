// Package inbound exposes the bridge over HTTP. Directives are answered
// synchronously with their response envelope; device events are accepted
// with 202 and reported in the background or through a queue.
package inbound
