package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/morezero/capability-facade/pkg/addressing"
	"github.com/morezero/capability-facade/pkg/capability"
	"github.com/morezero/capability-facade/pkg/events"
	"github.com/morezero/capability-facade/pkg/facade"
)

const toolkitLogPrefix = "session:toolkit"

// toolkit is the per-component helper handed to every handler. Its mutex is
// the component's resync lock: sending, subscribing and RunSynchronized
// closures are serialized by it.
type toolkit struct {
	session *Session
	id      int64
	actx    *addressing.Context
	logger  *slog.Logger

	mu        sync.Mutex
	sequence  int64
	listeners map[string][]capability.NotificationListener
	detached  bool

	facade atomic.Pointer[facade.Manager]
}

var _ capability.Toolkit = (*toolkit)(nil)

func newToolkit(s *Session, id int64, actx *addressing.Context) *toolkit {
	logger := s.logger
	if actx.Model().Logger != nil {
		logger = actx.Model().Logger
	}
	return &toolkit{
		session:   s,
		id:        id,
		actx:      actx,
		logger:    logger.With("component", id),
		listeners: make(map[string][]capability.NotificationListener),
	}
}

func (t *toolkit) Send(notificationType string, payload any) capability.Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.send(notificationType, payload)
}

func (t *toolkit) RunSynchronized(fn func(capability.Sender)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(lockedSender{t})
}

func (t *toolkit) ComponentID() int64 { return t.id }

func (t *toolkit) Context() *addressing.Context { return t.actx }

func (t *toolkit) Session() capability.Session { return t.session }

func (t *toolkit) ServerFacade() capability.ServerFacade {
	m := t.facade.Load()
	if m == nil {
		return nil
	}
	return m
}

func (t *toolkit) Logger() *slog.Logger { return t.logger }

// send must be called with t.mu held.
func (t *toolkit) send(notificationType string, payload any) capability.Notification {
	t.sequence++
	n := capability.Notification{
		ComponentID: t.id,
		Type:        notificationType,
		Sequence:    t.sequence,
		Payload:     payload,
	}
	if t.detached {
		return n
	}
	for _, l := range t.listeners[notificationType] {
		t.deliver(l, n)
	}
	t.session.metrics.NotificationSent(notificationType)
	t.export(n)
	return n
}

func (t *toolkit) deliver(l capability.NotificationListener, n capability.Notification) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn(fmt.Sprintf("%s - listener for %s #%d panicked: %v", toolkitLogPrefix, n.Type, n.Sequence, r))
		}
	}()
	l.HandleNotification(n)
}

func (t *toolkit) export(n capability.Notification) {
	event := &events.NotificationEvent{
		Server:      string(t.actx.ServerID()),
		ComponentID: n.ComponentID,
		Type:        n.Type,
		Sequence:    n.Sequence,
		Payload:     n.Payload,
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if addr, ok := t.actx.Address(); ok {
		event.Address = addr.String()
	}
	if err := t.session.publisher.PublishNotification(context.Background(), event); err != nil {
		t.logger.Warn(fmt.Sprintf("%s - failed to export %s #%d: %v", toolkitLogPrefix, n.Type, n.Sequence, err))
	}
}

func (t *toolkit) attach(m *facade.Manager) {
	t.facade.Store(m)
}

// detach drops every listener. Notifications sent afterwards, for instance
// by handlers during their cleanup, still get sequence numbers but reach
// nobody.
func (t *toolkit) detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.detached = true
	t.listeners = make(map[string][]capability.NotificationListener)
}

// addListener delivers the current snapshot of notificationType, if any, and
// subscribes l, both under the resync lock. It reports false once the
// component has been unregistered.
func (t *toolkit) addListener(notificationType string, l capability.NotificationListener) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.detached {
		return false
	}
	for _, existing := range t.listeners[notificationType] {
		if existing == l {
			return true
		}
	}
	if m := t.facade.Load(); m != nil {
		if payload, ok := m.Snapshot(notificationType); ok {
			t.deliver(l, capability.Notification{
				ComponentID: t.id,
				Type:        notificationType,
				Sequence:    t.sequence,
				Payload:     payload,
			})
		}
	}
	t.listeners[notificationType] = append(t.listeners[notificationType], l)
	return true
}

func (t *toolkit) removeListener(notificationType string, l capability.NotificationListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.listeners[notificationType]
	for i, existing := range list {
		if existing == l {
			next := make([]capability.NotificationListener, 0, len(list)-1)
			next = append(next, list[:i]...)
			t.listeners[notificationType] = append(next, list[i+1:]...)
			return
		}
	}
}

// lockedSender sends from inside RunSynchronized, where the resync lock is
// already held.
type lockedSender struct{ t *toolkit }

func (s lockedSender) Send(notificationType string, payload any) capability.Notification {
	return s.t.send(notificationType, payload)
}
