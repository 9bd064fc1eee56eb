package processor

import (
	"fmt"
	"sort"
)

// Registry holds processor factories by name so pipelines can be described
// in configuration.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry with every built-in processor.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
	}

	r.Register("Telemetry", NewTelemetry)
	r.Register("ModeToggle", NewModeToggle)
	r.Register("KeyRemap", NewKeyRemap)
	r.Register("InAppGate", NewInAppGate)
	r.Register("KeyEventProcessor", NewKeyEventProcessor)

	return r
}

// NewRegistryWithFactories creates a registry holding only the given factories.
func NewRegistryWithFactories(factories map[string]Factory) *Registry {
	r := &Registry{
		factories: make(map[string]Factory, len(factories)),
	}
	for name, f := range factories {
		r.Register(name, f)
	}
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Get returns a factory by name.
func (r *Registry) Get(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// Factories resolves names in order.
func (r *Registry) Factories(names ...string) ([]Factory, error) {
	out := make([]Factory, 0, len(names))
	for _, name := range names {
		f, ok := r.Get(name)
		if !ok {
			return nil, fmt.Errorf("processor not found: %s", name)
		}
		out = append(out, f)
	}
	return out, nil
}

// List returns all registered names, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultKeyPipeline is the processor order of the daemon's key pipeline.
var DefaultKeyPipeline = []string{
	"Telemetry",
	"ModeToggle",
	"KeyRemap",
	"InAppGate",
	"KeyEventProcessor",
}
