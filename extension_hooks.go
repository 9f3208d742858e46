package smarthome

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-smarthome/directive"
)

// DirectiveRoute binds a handler to a (namespace, name) pair. Name may be
// directive.WildcardName.
type DirectiveRoute struct {
	Namespace string
	Name      string
	Handler   directive.Handler
}

// DirectivePack groups extra routes and control directives contributed by one
// integration.
type DirectivePack struct {
	Name     string
	Routes   []DirectiveRoute
	Controls map[string]directive.Handler
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

type ExtensionHooks struct {
	mu sync.RWMutex

	directivePacks map[string]DirectivePack
	bundles        map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		directivePacks: map[string]DirectivePack{},
		bundles:        map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterDirectivePack(pack DirectivePack) error {
	if h == nil {
		return fmt.Errorf("smarthome: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("smarthome: directive pack name is required")
	}
	if len(pack.Routes) == 0 && len(pack.Controls) == 0 {
		return fmt.Errorf("smarthome: directive pack %q has no routes", name)
	}

	normalized := DirectivePack{
		Name:     name,
		Routes:   make([]DirectiveRoute, 0, len(pack.Routes)),
		Controls: make(map[string]directive.Handler, len(pack.Controls)),
	}
	for _, route := range pack.Routes {
		if route.Handler == nil {
			return fmt.Errorf("smarthome: directive pack %q has a nil handler for %s/%s", name, route.Namespace, route.Name)
		}
		route.Namespace = strings.TrimSpace(route.Namespace)
		route.Name = strings.TrimSpace(route.Name)
		normalized.Routes = append(normalized.Routes, route)
	}
	for control, handler := range pack.Controls {
		if handler == nil {
			return fmt.Errorf("smarthome: directive pack %q has a nil control handler for %s", name, control)
		}
		normalized.Controls[strings.TrimSpace(control)] = handler
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.directivePacks[name]; exists {
		return fmt.Errorf("smarthome: directive pack %q already registered", name)
	}
	h.directivePacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(name string, factory CommandQueryBundleFactory) error {
	if h == nil {
		return fmt.Errorf("smarthome: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("smarthome: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("smarthome: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("smarthome: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyDirectivePacks registers every pack on dispatcher in pack-name order.
// The first conflicting route aborts the apply.
func (h *ExtensionHooks) ApplyDirectivePacks(dispatcher *directive.Dispatcher) error {
	if h == nil {
		return nil
	}
	if dispatcher == nil {
		return fmt.Errorf("smarthome: dispatcher is required")
	}
	for _, pack := range h.DirectivePacks() {
		for _, route := range pack.Routes {
			if err := dispatcher.Register(route.Namespace, route.Name, route.Handler); err != nil {
				return err
			}
		}
		controls := make([]string, 0, len(pack.Controls))
		for name := range pack.Controls {
			controls = append(controls, name)
		}
		sort.Strings(controls)
		for _, name := range controls {
			if err := dispatcher.RegisterControl(name, pack.Controls[name]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(service CommandQueryService) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("smarthome: command/query service is required")
	}

	h.mu.RLock()
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(factories))
	for _, name := range sortedKeys(factories) {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) DirectivePacks() []DirectivePack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]DirectivePack, 0, len(h.directivePacks))
	for _, name := range sortedKeys(h.directivePacks) {
		pack := h.directivePacks[name]
		controls := make(map[string]directive.Handler, len(pack.Controls))
		for control, handler := range pack.Controls {
			controls[control] = handler
		}
		out = append(out, DirectivePack{
			Name:     pack.Name,
			Routes:   append([]DirectiveRoute(nil), pack.Routes...),
			Controls: controls,
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.bundles)
}

func sortedKeys[V any](values map[string]V) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
