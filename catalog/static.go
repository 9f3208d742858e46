package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-smarthome/core"
	"github.com/goliatone/go-smarthome/protocol"
)

const (
	DefaultEndpointID     = "HondaGarageDoor-400605"
	CategoryContactSensor = "CONTACT_SENSOR"
	capabilityType        = "AlexaInterface"
)

// DefaultDevices returns the garage door contact sensor exposed by the partner cloud.
func DefaultDevices() []core.DeviceDescriptor {
	return []core.DeviceDescriptor{
		{
			EndpointID:        DefaultEndpointID,
			ManufacturerName:  "XCoder Inc.",
			FriendlyName:      "Honda Garage Door sensor",
			Description:       "Garage Door monitor",
			DisplayCategories: []string{CategoryContactSensor},
			Cookie:            map[string]string{},
			Capabilities: []core.Capability{
				{
					Type:                capabilityType,
					Interface:           protocol.NamespaceContactSensor,
					Version:             protocol.PayloadVersion,
					Supported:           []string{protocol.PropertyDetectionState},
					ProactivelyReported: true,
					Retrievable:         true,
				},
				{
					Type:        capabilityType,
					Interface:   protocol.NamespaceEndpointHealth,
					Version:     protocol.PayloadVersion,
					Supported:   []string{protocol.PropertyConnectivity},
					Retrievable: true,
				},
			},
		},
	}
}

// StaticCatalog serves a fixed device list. Every listed device is online
// until SetOnline says otherwise.
type StaticCatalog struct {
	mu      sync.RWMutex
	devices []core.DeviceDescriptor
	offline map[string]bool
}

func NewStaticCatalog(devices ...core.DeviceDescriptor) *StaticCatalog {
	if len(devices) == 0 {
		devices = DefaultDevices()
	}
	copied := make([]core.DeviceDescriptor, 0, len(devices))
	for _, device := range devices {
		device.EndpointID = strings.TrimSpace(device.EndpointID)
		if device.EndpointID == "" {
			continue
		}
		copied = append(copied, cloneDescriptor(device))
	}
	return &StaticCatalog{devices: copied, offline: map[string]bool{}}
}

func (c *StaticCatalog) ListDevices(_ context.Context, _ string) ([]core.DeviceDescriptor, error) {
	if c == nil {
		return nil, fmt.Errorf("catalog: static catalog is nil")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.DeviceDescriptor, 0, len(c.devices))
	for _, device := range c.devices {
		out = append(out, cloneDescriptor(device))
	}
	return out, nil
}

func (c *StaticCatalog) IsDeviceOnline(_ context.Context, endpointID string) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("catalog: static catalog is nil")
	}
	endpointID = strings.TrimSpace(endpointID)
	if endpointID == "" {
		return false, core.NewError("catalog: endpoint id is required", goerrors.CategoryBadInput, core.ErrorBadInput)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.hasDevice(endpointID) {
		return false, core.NewError("catalog: unknown endpoint "+endpointID, goerrors.CategoryNotFound, core.ErrorUnknownEndpoint)
	}
	return !c.offline[endpointID], nil
}

func (c *StaticCatalog) SetOnline(endpointID string, online bool) {
	if c == nil {
		return
	}
	endpointID = strings.TrimSpace(endpointID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if online {
		delete(c.offline, endpointID)
		return
	}
	c.offline[endpointID] = true
}

func (c *StaticCatalog) hasDevice(endpointID string) bool {
	for _, device := range c.devices {
		if device.EndpointID == endpointID {
			return true
		}
	}
	return false
}

func cloneDescriptor(device core.DeviceDescriptor) core.DeviceDescriptor {
	cloned := device
	cloned.DisplayCategories = append([]string{}, device.DisplayCategories...)
	cloned.Cookie = make(map[string]string, len(device.Cookie))
	for k, v := range device.Cookie {
		cloned.Cookie[k] = v
	}
	cloned.Capabilities = make([]core.Capability, 0, len(device.Capabilities))
	for _, capability := range device.Capabilities {
		capability.Supported = append([]string{}, capability.Supported...)
		cloned.Capabilities = append(cloned.Capabilities, capability)
	}
	return cloned
}

var (
	_ core.DeviceCatalog = (*StaticCatalog)(nil)
	_ core.DeviceHealth  = (*StaticCatalog)(nil)
)
