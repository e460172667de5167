// Package facade composes the capability handlers of one component into a
// single describable, invocable facade.
package facade

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/multierr"

	"github.com/morezero/capability-facade/pkg/capability"
)

const logPrefix = "facade:manager"

type state int

const (
	stateBuilding state = iota
	stateActive
	stateDestroyed
)

func (s state) String() string {
	switch s {
	case stateBuilding:
		return "building"
	case stateActive:
		return "active"
	case stateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

type binding struct {
	provider *capability.Provider
	handler  capability.Handler
}

// Manager is the facade of one published component: the handlers of every
// matched provider, their merged description, and the dispatch table.
//
// When two providers declare the same operation identity the provider
// registered later wins. The collision is logged at build time.
type Manager struct {
	mu          sync.RWMutex
	state       state
	component   any
	bindings    []binding
	snapshots   []capability.Snapshotter
	table       map[capability.OperationIdentity]capability.Handler
	description capability.Description
	clients     []capability.ClientDescriptor
	logger      *slog.Logger
}

// Build matches component against every provider in registry and creates one
// handler per match. If any handler cannot be created, the handlers already
// created are destroyed and the error is returned.
func Build(component any, tk capability.Toolkit, registry capability.Registry) (*Manager, error) {
	logger := slog.Default()
	if tk != nil && tk.Logger() != nil {
		logger = tk.Logger()
	}
	m := &Manager{
		state:     stateBuilding,
		component: component,
		table:     make(map[capability.OperationIdentity]capability.Handler),
		logger:    logger,
	}

	owners := make(map[capability.OperationIdentity]string)
	for _, p := range registry.Providers() {
		if !p.Supports(component) {
			continue
		}
		h, err := p.CreateHandler(component, tk)
		if err != nil {
			if cleanupErr := m.destroyBindings(); cleanupErr != nil {
				err = multierr.Append(err, cleanupErr)
			}
			return nil, fmt.Errorf("%s - create %s handler for %T: %w", logPrefix, p.Name(), component, err)
		}
		m.bindings = append(m.bindings, binding{provider: p, handler: h})
		if s, ok := h.(capability.Snapshotter); ok {
			m.snapshots = append(m.snapshots, s)
		}

		m.description.Capabilities = append(m.description.Capabilities, p.Name())
		m.description.Attributes = append(m.description.Attributes, p.Attributes()...)
		m.description.Notifications = append(m.description.Notifications, p.Notifications()...)
		for _, op := range p.Operations() {
			id := op.Identity()
			if prev, dup := owners[id]; dup {
				logger.Debug(fmt.Sprintf("%s - %T: %s of %s overrides %s", logPrefix, component, id, p.Name(), prev))
			}
			owners[id] = p.Name()
			m.table[id] = h
			m.description.Operations = append(m.description.Operations, op)
		}
		m.clients = append(m.clients, p.ClientDescriptor())
	}

	m.state = stateActive
	logger.Debug(fmt.Sprintf("%s - built facade for %T with %d capabilities", logPrefix, component, len(m.bindings)))
	return m, nil
}

// Invoke dispatches op to the handler that declared it. An operation nobody
// declared, or any operation after Destroy, fails with capability.ErrNoHandler.
// The handler's result and error are returned unchanged.
func (m *Manager) Invoke(ctx context.Context, op capability.OperationIdentity, args []any) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state != stateActive {
		return nil, capability.NoHandler(op)
	}
	h, ok := m.table[op]
	if !ok {
		return nil, capability.NoHandler(op)
	}
	return h.Invoke(ctx, op, args)
}

// Supports reports whether op is in the dispatch table.
func (m *Manager) Supports(op capability.OperationIdentity) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.table[op]
	return ok && m.state == stateActive
}

// Description returns the merged metadata of the component's capabilities.
func (m *Manager) Description() capability.Description {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d := m.description
	d.Capabilities = append([]string(nil), d.Capabilities...)
	d.Attributes = append([]capability.AttributeDescriptor(nil), d.Attributes...)
	d.Operations = append([]capability.OperationDescriptor(nil), d.Operations...)
	d.Notifications = append([]capability.NotificationDescriptor(nil), d.Notifications...)
	return d
}

// ClientCapabilities returns the client descriptor of every matched provider.
func (m *Manager) ClientCapabilities() []capability.ClientDescriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]capability.ClientDescriptor(nil), m.clients...)
}

// Handlers returns the live handlers in registration order. After Destroy it
// returns nil.
func (m *Manager) Handlers() []capability.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != stateActive {
		return nil
	}
	out := make([]capability.Handler, len(m.bindings))
	for i, b := range m.bindings {
		out[i] = b.handler
	}
	return out
}

// Snapshot asks every snapshotting handler for the current payload of
// notificationType. The first handler that has one wins.
//
// Snapshot does not take the facade lock: it is called under the
// component's resync lock, which an invoking handler may be waiting for.
// Callers stop calling it once the component is unregistered.
func (m *Manager) Snapshot(notificationType string) (any, bool) {
	for _, s := range m.snapshots {
		if payload, ok := s.Snapshot(notificationType); ok {
			return payload, true
		}
	}
	return nil, false
}

// Destroyed reports whether Destroy has been called.
func (m *Manager) Destroyed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == stateDestroyed
}

// Destroy destroys every handler once, in registration order. It waits for
// in-flight invocations to finish, then releases the lock before calling
// the handlers, so a handler's cleanup never runs while an invocation is
// blocked on the facade. All handlers are destroyed even when some fail;
// the failures are returned together. A second call does nothing.
func (m *Manager) Destroy() error {
	m.mu.Lock()
	if m.state == stateDestroyed {
		m.mu.Unlock()
		return nil
	}
	m.state = stateDestroyed
	m.table = make(map[capability.OperationIdentity]capability.Handler)
	m.mu.Unlock()

	if err := m.destroyBindings(); err != nil {
		return fmt.Errorf("%s - destroy facade of %T: %w", logPrefix, m.component, err)
	}
	return nil
}

func (m *Manager) destroyBindings() error {
	bindings := m.bindings
	m.bindings = nil

	var errs error
	for _, b := range bindings {
		if err := destroyHandler(b.handler); err != nil {
			m.logger.Warn(fmt.Sprintf("%s - %s handler of %T failed to clean up: %v", logPrefix, b.provider.Name(), m.component, err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", b.provider.Name(), err))
		}
	}
	return errs
}

func destroyHandler(h capability.Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during destroy: %v", r)
		}
	}()
	return h.Destroy()
}
