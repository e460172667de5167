package capabilities

import (
	"context"
	"time"

	"github.com/morezero/capability-facade/pkg/capability"
)

// StateEvent is a state change of a component. State values are opaque to
// the facade layer.
type StateEvent struct {
	State   string    `json:"state"`
	Time    time.Time `json:"time"`
	Message string    `json:"message,omitempty"`
}

// Stateful components report state changes.
type Stateful interface {
	LastStateEvent() StateEvent
	// AddStateListener registers fn for future state changes and returns a
	// function that removes it.
	AddStateListener(fn func(StateEvent)) (remove func())
}

var opLastStateEvent = capability.NewOperation("lastStateEvent")

// StatefulProvider serves lastStateEvent() and forwards state changes as
// "state" notifications. New subscribers receive the current state first.
func StatefulProvider() *capability.Provider {
	return capability.NewProvider[Stateful](capability.Spec{
		Name:        NameStateful,
		Version:     Version,
		Description: "State changes of a component",
		Operations: []capability.OperationDescriptor{
			{Name: "lastStateEvent", Returns: "StateEvent", Impact: capability.ImpactInfo},
		},
		Notifications: []capability.NotificationDescriptor{
			{Type: NotificationState, PayloadType: "StateEvent", Snapshot: true},
		},
	}, newStatefulHandler)
}

type statefulHandler struct {
	tk     capability.Toolkit
	remove func()

	// guarded by the component's resync lock
	last StateEvent
	seen bool
}

func newStatefulHandler(target Stateful, tk capability.Toolkit) (capability.Handler, error) {
	h := &statefulHandler{tk: tk}
	h.remove = target.AddStateListener(func(e StateEvent) {
		tk.RunSynchronized(func(s capability.Sender) {
			h.last, h.seen = e, true
			s.Send(NotificationState, e)
		})
	})
	tk.RunSynchronized(func(capability.Sender) {
		if !h.seen {
			h.last, h.seen = target.LastStateEvent(), true
		}
	})
	return h, nil
}

func (h *statefulHandler) Invoke(_ context.Context, op capability.OperationIdentity, _ []any) (any, error) {
	if op != opLastStateEvent {
		return nil, noOperation(op)
	}
	var last StateEvent
	h.tk.RunSynchronized(func(capability.Sender) {
		last = h.last
	})
	return last, nil
}

// Snapshot is called with the resync lock held.
func (h *statefulHandler) Snapshot(notificationType string) (any, bool) {
	if notificationType != NotificationState {
		return nil, false
	}
	return h.last, true
}

func (h *statefulHandler) Destroy() error {
	if h.remove != nil {
		h.remove()
	}
	return nil
}
