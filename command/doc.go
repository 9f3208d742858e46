// Package command exposes the token and device-event mutations as go-command
// commanders.
package command
