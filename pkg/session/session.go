// Package session is the component registry: it allocates component ids,
// builds and owns each component's facade, and routes notification
// subscriptions to the component's toolkit.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/morezero/capability-facade/pkg/addressing"
	"github.com/morezero/capability-facade/pkg/capability"
	"github.com/morezero/capability-facade/pkg/events"
	"github.com/morezero/capability-facade/pkg/facade"
	"github.com/morezero/capability-facade/pkg/metrics"
)

const logPrefix = "session:session"

var (
	// ErrUnknownID is returned for ids that are not (or no longer) registered.
	ErrUnknownID = errors.New("unknown component id")
	// ErrAlreadyRegistered is returned when a component is registered twice.
	ErrAlreadyRegistered = errors.New("component already registered")
	// ErrInvalidComponent is returned for nil or non-comparable components.
	ErrInvalidComponent = errors.New("invalid component")
	// ErrInvalidListener is returned for nil or non-comparable notification
	// listeners.
	ErrInvalidListener = errors.New("invalid notification listener")
	// ErrNoContext is returned when a component is registered without an
	// addressing context.
	ErrNoContext = errors.New("missing addressing context")
	// ErrClosed is returned once the session has been closed.
	ErrClosed = errors.New("session closed")
)

// Options configures a Session. Nil fields use defaults.
type Options struct {
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

type entry struct {
	component any
	toolkit   *toolkit
	facade    *facade.Manager
	ready     bool
}

// Session maps ids to published components and back. Ids start at 1 and are
// never reused while the session is alive.
type Session struct {
	factory   *facade.Factory
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	nextID atomic.Int64

	mu          sync.RWMutex
	byID        map[int64]*entry
	byComponent map[any]int64
	closed      bool
}

// New creates a session that builds facades with factory.
func New(factory *facade.Factory, opts *Options) *Session {
	if factory == nil {
		factory = facade.NewFactory(nil)
	}
	s := &Session{
		factory:     factory,
		publisher:   &events.NoOpPublisher{},
		logger:      slog.Default(),
		byID:        make(map[int64]*entry),
		byComponent: make(map[any]int64),
	}
	if opts != nil {
		if opts.Publisher != nil {
			s.publisher = opts.Publisher
		}
		if opts.Logger != nil {
			s.logger = opts.Logger
		}
		s.metrics = opts.Metrics
	}
	return s
}

// Register publishes component and returns its new id. The facade is built
// outside the session lock, so handlers may register nested components while
// they are being created. Until Register returns, lookups do not see the
// component.
func (s *Session) Register(component any, actx *addressing.Context) (int64, error) {
	if component == nil || !reflect.TypeOf(component).Comparable() {
		return capability.NotFound, fmt.Errorf("%s - register %T: %w", logPrefix, component, ErrInvalidComponent)
	}
	if actx == nil {
		return capability.NotFound, fmt.Errorf("%s - register %T: %w", logPrefix, component, ErrNoContext)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return capability.NotFound, ErrClosed
	}
	if existing, dup := s.byComponent[component]; dup {
		s.mu.Unlock()
		return capability.NotFound, fmt.Errorf("%s - register %T as %d: %w", logPrefix, component, existing, ErrAlreadyRegistered)
	}
	id := s.nextID.Add(1)
	tk := newToolkit(s, id, actx)
	e := &entry{component: component, toolkit: tk}
	s.byID[id] = e
	s.byComponent[component] = id
	s.mu.Unlock()

	m, err := s.factory.Create(component, tk)
	if err != nil {
		s.mu.Lock()
		delete(s.byID, id)
		delete(s.byComponent, component)
		s.mu.Unlock()
		s.metrics.ComponentRegistered(false)
		return capability.NotFound, fmt.Errorf("%s - register %T: %w", logPrefix, component, err)
	}
	tk.attach(m)

	s.mu.Lock()
	if s.closed {
		delete(s.byID, id)
		delete(s.byComponent, component)
		s.mu.Unlock()
		tk.detach()
		if err := m.Destroy(); err != nil {
			s.logger.Warn(fmt.Sprintf("%s - cleanup of %d after close: %v", logPrefix, id, err))
		}
		return capability.NotFound, ErrClosed
	}
	e.facade = m
	e.ready = true
	s.mu.Unlock()

	s.metrics.ComponentRegistered(true)
	s.logger.Debug(fmt.Sprintf("%s - registered %T as %d", logPrefix, component, id))
	return id, nil
}

// Unregister removes the component and destroys its facade. The id mapping
// is removed even when handler cleanup fails; the cleanup failures are
// returned together.
func (s *Session) Unregister(id int64) error {
	s.mu.Lock()
	e, ok := s.byID[id]
	if !ok || !e.ready {
		s.mu.Unlock()
		return fmt.Errorf("%s - unregister %d: %w", logPrefix, id, ErrUnknownID)
	}
	delete(s.byID, id)
	delete(s.byComponent, e.component)
	s.mu.Unlock()

	e.toolkit.detach()
	s.metrics.ComponentUnregistered()
	if err := e.facade.Destroy(); err != nil {
		return fmt.Errorf("%s - unregister %d: %w", logPrefix, id, err)
	}
	s.logger.Debug(fmt.Sprintf("%s - unregistered %d", logPrefix, id))
	return nil
}

// IDFor returns the id of component, or capability.NotFound.
func (s *Session) IDFor(component any) int64 {
	if component == nil || !reflect.TypeOf(component).Comparable() {
		return capability.NotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byComponent[component]
	if !ok || !s.byID[id].ready {
		return capability.NotFound
	}
	return id
}

// ComponentFor returns the component registered as id.
func (s *Session) ComponentFor(id int64) (any, bool) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, false
	}
	return e.component, true
}

// Facade returns the facade of id.
func (s *Session) Facade(id int64) (*facade.Manager, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%s - facade %d: %w", logPrefix, id, ErrUnknownID)
	}
	return e.facade, nil
}

// Context returns the addressing context id was registered with.
func (s *Session) Context(id int64) (*addressing.Context, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%s - context %d: %w", logPrefix, id, ErrUnknownID)
	}
	return e.toolkit.actx, nil
}

// Invoke dispatches op on the facade of id.
func (s *Session) Invoke(ctx context.Context, id int64, op capability.OperationIdentity, args []any) (any, error) {
	e, ok := s.lookup(id)
	if !ok {
		s.metrics.Invocation(metrics.OutcomeUnknownID)
		return nil, fmt.Errorf("%s - invoke %s on %d: %w", logPrefix, op, id, ErrUnknownID)
	}
	result, err := e.facade.Invoke(ctx, op, args)
	switch {
	case err == nil:
		s.metrics.Invocation(metrics.OutcomeOK)
	case errors.Is(err, capability.ErrNoHandler):
		s.metrics.Invocation(metrics.OutcomeNoHandler)
	default:
		s.metrics.Invocation(metrics.OutcomeError)
	}
	return result, err
}

// AddNotificationListener subscribes listener to notificationType of id. If
// a handler of the component can snapshot that notification type, the
// listener first receives the snapshot, atomically with the subscription.
func (s *Session) AddNotificationListener(id int64, notificationType string, listener capability.NotificationListener) error {
	if !validListener(listener) {
		return fmt.Errorf("%s - subscribe to %d: %w", logPrefix, id, ErrInvalidListener)
	}
	e, ok := s.lookup(id)
	if !ok {
		return fmt.Errorf("%s - subscribe to %d: %w", logPrefix, id, ErrUnknownID)
	}
	if !e.toolkit.addListener(notificationType, listener) {
		return fmt.Errorf("%s - subscribe to %d: %w", logPrefix, id, ErrUnknownID)
	}
	return nil
}

// RemoveNotificationListener unsubscribes listener. Removing a listener that
// was never added is not an error.
func (s *Session) RemoveNotificationListener(id int64, notificationType string, listener capability.NotificationListener) error {
	if !validListener(listener) {
		return fmt.Errorf("%s - unsubscribe from %d: %w", logPrefix, id, ErrInvalidListener)
	}
	e, ok := s.lookup(id)
	if !ok {
		return fmt.Errorf("%s - unsubscribe from %d: %w", logPrefix, id, ErrUnknownID)
	}
	e.toolkit.removeListener(notificationType, listener)
	return nil
}

// validListener reports whether listener can be matched by equality when it
// is removed.
func validListener(listener capability.NotificationListener) bool {
	return listener != nil && reflect.TypeOf(listener).Comparable()
}

// IDs returns the registered ids in ascending order.
func (s *Session) IDs() []int64 {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.byID))
	for id, e := range s.byID {
		if e.ready {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of registered components.
func (s *Session) Len() int {
	return len(s.IDs())
}

// Close unregisters every component, newest first, and refuses further
// registrations. Components already removed by a parent's cleanup are
// skipped. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	ids := s.IDs()
	var errs error
	for i := len(ids) - 1; i >= 0; i-- {
		if err := s.Unregister(ids[i]); err != nil && !errors.Is(err, ErrUnknownID) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (s *Session) lookup(id int64) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok || !e.ready {
		return nil, false
	}
	return e, true
}
