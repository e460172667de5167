package capability

import (
	"context"
	"log/slog"

	"github.com/morezero/capability-facade/pkg/addressing"
)

// NotFound is returned by Session.IDFor for components that are not registered.
const NotFound int64 = -1

// Handler serves one capability of one component. A handler is created once
// per matched provider and never reused after Destroy.
type Handler interface {
	Invoke(ctx context.Context, op OperationIdentity, args []any) (any, error)
	// Destroy releases everything the handler registered on its target.
	Destroy() error
}

// Snapshotter is implemented by handlers whose notifications carry state that
// a new subscriber needs up front. Snapshot is called while the component's
// resync lock is held.
type Snapshotter interface {
	Snapshot(notificationType string) (payload any, ok bool)
}

// Notification is an event emitted by a published component.
type Notification struct {
	ComponentID int64  `json:"componentId"`
	Type        string `json:"type"`
	Sequence    int64  `json:"sequence"`
	Payload     any    `json:"payload,omitempty"`
}

// NotificationListener receives notifications. Implementations must be
// comparable (typically pointers) so they can be removed again. Listeners are
// called with the component's resync lock held and must not send on the same
// component from within HandleNotification.
type NotificationListener interface {
	HandleNotification(n Notification)
}

// Sender sends notifications for one component.
type Sender interface {
	// Send stamps the next sequence number, delivers to every listener of
	// notificationType, and returns the sent notification.
	Send(notificationType string, payload any) Notification
}

// Session is the component registry as seen by handlers that manage the
// lifecycle of nested components.
type Session interface {
	Register(component any, actx *addressing.Context) (int64, error)
	Unregister(id int64) error
	IDFor(component any) int64
	ComponentFor(id int64) (any, bool)
}

// ServerFacade describes the capabilities a component is published with.
type ServerFacade interface {
	Description() Description
	ClientCapabilities() []ClientDescriptor
}

// Toolkit is handed to every handler at creation.
type Toolkit interface {
	Sender
	// RunSynchronized runs fn holding the component's resync lock. fn must
	// send through the Sender it is given; the Toolkit's own Send would
	// block on the lock fn already holds.
	RunSynchronized(fn func(Sender))
	ComponentID() int64
	Context() *addressing.Context
	Session() Session
	// ServerFacade is available once the component's facade is built; it is
	// nil while handlers are still being created.
	ServerFacade() ServerFacade
	Logger() *slog.Logger
}
