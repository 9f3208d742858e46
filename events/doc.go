// Package events pushes device-originated state changes to the assistant
// event gateway. Delivery is fire-and-forget: failures are logged and the
// event is dropped.
package events
