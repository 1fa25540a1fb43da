// Package catalog provides a process-scoped registry of guardrail
// constructors. The registry is an explicit instance passed by reference, not
// a package-global, so tests and independent subsystems stay isolated.
package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/run-bigpig/llm-guardrails/pkg/guardrails"
)

// Factory constructs a guardrail from configuration arguments
type Factory func(args map[string]interface{}) (guardrails.Guardrail, error)

// Registry maps names to guardrail factories. Keys are plain identifiers and
// live only for the lifetime of the process.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds a guardrail factory under a unique name. Registering a
// duplicate name or a nil factory is an error.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("guardrail name must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("guardrail %q: factory must not be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("guardrail %q is already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Load resolves one or more names into guardrail instances, passing args to
// every factory. An unknown name is a lookup error; a factory failure is
// attributed to the guardrail it came from.
func (r *Registry) Load(names []string, args map[string]interface{}) ([]guardrails.Guardrail, error) {
	loaded := make([]guardrails.Guardrail, 0, len(names))

	for _, name := range names {
		r.mu.RLock()
		factory, exists := r.factories[name]
		r.mu.RUnlock()

		if !exists {
			return nil, fmt.Errorf("unknown guardrail %q, available: %v", name, r.ListAvailable())
		}

		guardrail, err := factory(args)
		if err != nil {
			return nil, fmt.Errorf("constructing guardrail %q with args %v: %w", name, args, err)
		}
		if guardrail == nil {
			return nil, fmt.Errorf("constructing guardrail %q: factory returned nil", name)
		}
		loaded = append(loaded, guardrail)
	}

	return loaded, nil
}

// Compose loads the named guardrails and wraps them in a composite, in the
// given order. Composing an empty list is an error.
func (r *Registry) Compose(names []string, args map[string]interface{}) (*guardrails.CompositeGuardrail, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("cannot compose an empty list of guardrails")
	}

	loaded, err := r.Load(names, args)
	if err != nil {
		return nil, err
	}

	return guardrails.NewCompositeGuardrail("composite("+strings.Join(names, ",")+")", loaded...)
}

// ListAvailable returns the registered names in sorted order
func (r *Registry) ListAvailable() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes every registration. Useful for test isolation.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = map[string]Factory{}
}
