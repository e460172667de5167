package facade

import (
	"github.com/morezero/capability-facade/pkg/capability"
)

// Factory builds facades against a fixed registry of providers.
type Factory struct {
	registry capability.Registry
}

// NewFactory creates a factory. A nil registry yields facades with no
// capabilities.
func NewFactory(registry capability.Registry) *Factory {
	if registry == nil {
		registry = capability.NewList()
	}
	return &Factory{registry: registry}
}

// Create builds the facade of component.
func (f *Factory) Create(component any, tk capability.Toolkit) (*Manager, error) {
	return Build(component, tk, f.registry)
}

// Registry returns the registry facades are built from.
func (f *Factory) Registry() capability.Registry {
	return f.registry
}
