// Package query exposes read-only token state as go-command queriers.
package query
