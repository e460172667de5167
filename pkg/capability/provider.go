package capability

import "fmt"

// Spec is the static metadata of a capability.
type Spec struct {
	// Name is the capability's interface type name, e.g. "stateful".
	Name          string
	Version       string
	Description   string
	Attributes    []AttributeDescriptor
	Operations    []OperationDescriptor
	Notifications []NotificationDescriptor
}

// Factory binds a handler to a target component and its toolkit.
type Factory func(target any, tk Toolkit) (Handler, error)

// Provider describes one capability a component may implement. Providers are
// immutable and shared by every component that matches them.
type Provider struct {
	spec     Spec
	supports func(component any) bool
	factory  Factory
}

// NewProvider creates a provider for components implementing T. The
// membership test is a type assertion to T, so a component may satisfy any
// number of providers at once.
func NewProvider[T any](spec Spec, create func(target T, tk Toolkit) (Handler, error)) *Provider {
	return &Provider{
		spec: copySpec(spec),
		supports: func(component any) bool {
			_, ok := component.(T)
			return ok
		},
		factory: func(target any, tk Toolkit) (Handler, error) {
			t, ok := target.(T)
			if !ok {
				return nil, ContractViolation(spec.Name, target)
			}
			return create(t, tk)
		},
	}
}

// Name returns the capability name.
func (p *Provider) Name() string { return p.spec.Name }

// Version returns the capability version, possibly empty.
func (p *Provider) Version() string { return p.spec.Version }

// Description returns the human readable description.
func (p *Provider) Description() string { return p.spec.Description }

// Attributes returns a copy of the attribute descriptors.
func (p *Provider) Attributes() []AttributeDescriptor {
	return append([]AttributeDescriptor(nil), p.spec.Attributes...)
}

// Operations returns a copy of the operation descriptors.
func (p *Provider) Operations() []OperationDescriptor {
	return copySpec(Spec{Operations: p.spec.Operations}).Operations
}

// Notifications returns a copy of the notification descriptors.
func (p *Provider) Notifications() []NotificationDescriptor {
	return append([]NotificationDescriptor(nil), p.spec.Notifications...)
}

// Supports reports whether component implements the capability.
func (p *Provider) Supports(component any) bool {
	return component != nil && p.supports(component)
}

// CreateHandler binds a new handler to target. A target that does not
// implement the capability is a contract violation.
func (p *Provider) CreateHandler(target any, tk Toolkit) (Handler, error) {
	h, err := p.factory(target, tk)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("capability %s returned a nil handler for %T", p.spec.Name, target)
	}
	return h, nil
}

// ClientDescriptor returns what a remote caller needs to proxy this capability.
func (p *Provider) ClientDescriptor() ClientDescriptor {
	cd := ClientDescriptor{
		Capability: p.spec.Name,
		Version:    p.spec.Version,
		Operations: make([]string, 0, len(p.spec.Operations)),
	}
	for _, a := range p.spec.Attributes {
		cd.Attributes = append(cd.Attributes, a.Name)
	}
	for _, op := range p.spec.Operations {
		cd.Operations = append(cd.Operations, op.Identity().String())
	}
	for _, n := range p.spec.Notifications {
		cd.Notifications = append(cd.Notifications, n.Type)
	}
	return cd
}

// Validate checks the provider can be registered: it needs a name, a factory,
// and no operation declared twice.
func (p *Provider) Validate() error {
	if p == nil {
		return InvalidProvider("nil provider")
	}
	if p.spec.Name == "" {
		return InvalidProvider("provider name is required")
	}
	if p.factory == nil || p.supports == nil {
		return InvalidProvider(fmt.Sprintf("provider %s has no handler factory", p.spec.Name))
	}
	seen := make(map[OperationIdentity]bool, len(p.spec.Operations))
	for _, op := range p.spec.Operations {
		id := op.Identity()
		if id.Name() == "" {
			return InvalidProvider(fmt.Sprintf("provider %s declares an unnamed operation", p.spec.Name))
		}
		if seen[id] {
			return InvalidProvider(fmt.Sprintf("provider %s declares %s twice", p.spec.Name, id))
		}
		seen[id] = true
	}
	return nil
}

func copySpec(s Spec) Spec {
	out := s
	out.Attributes = append([]AttributeDescriptor(nil), s.Attributes...)
	out.Notifications = append([]NotificationDescriptor(nil), s.Notifications...)
	out.Operations = make([]OperationDescriptor, len(s.Operations))
	for i, op := range s.Operations {
		op.Params = append([]string(nil), op.Params...)
		out.Operations[i] = op
	}
	return out
}
