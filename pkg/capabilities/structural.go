package capabilities

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/morezero/capability-facade/pkg/capability"
	"github.com/morezero/capability-facade/pkg/session"
)

const structuralLogPrefix = "capabilities:structural"

// StructureEvent reports a child added to or removed from a component.
type StructureEvent struct {
	Index int
	Child any
	Added bool
}

// Structural components have children that are published alongside them.
type Structural interface {
	// AddStructureListener registers fn and immediately replays every
	// current child to it as an added event, then reports later changes.
	// The returned function removes fn.
	AddStructureListener(fn func(StructureEvent)) (remove func())
}

// StructuralProvider publishes the children of structural components through
// the session and sends their ids as "structure" notifications. Every child
// it registered is unregistered before its Destroy returns.
func StructuralProvider() *capability.Provider {
	return capability.NewProvider[Structural](capability.Spec{
		Name:        NameStructural,
		Version:     Version,
		Description: "Children of a component",
		Notifications: []capability.NotificationDescriptor{
			{Type: NotificationStructure, PayloadType: "[]int64", Snapshot: true},
		},
	}, newStructuralHandler)
}

type child struct {
	component any
	id        int64
}

type structuralHandler struct {
	tk     capability.Toolkit
	remove func()

	// guarded by the component's resync lock
	children  []child
	destroyed bool
}

func newStructuralHandler(target Structural, tk capability.Toolkit) (capability.Handler, error) {
	h := &structuralHandler{tk: tk}
	h.remove = target.AddStructureListener(func(e StructureEvent) {
		tk.RunSynchronized(func(s capability.Sender) {
			if h.destroyed {
				return
			}
			if h.apply(e) {
				s.Send(NotificationStructure, h.ids())
			}
		})
	})
	return h, nil
}

// apply must be called with the resync lock held. It reports whether the
// published children changed.
func (h *structuralHandler) apply(e StructureEvent) bool {
	if !e.Added {
		for i, c := range h.children {
			if c.component == e.Child {
				h.children = append(h.children[:i], h.children[i+1:]...)
				_ = h.unregister(c)
				return true
			}
		}
		return false
	}

	childCtx, err := h.tk.Context().AddChild(e.Child)
	if err != nil {
		h.tk.Logger().Error(fmt.Sprintf("%s - cannot address child %T: %v", structuralLogPrefix, e.Child, err))
		return false
	}
	id, err := h.tk.Session().Register(e.Child, childCtx)
	if err != nil {
		h.tk.Logger().Error(fmt.Sprintf("%s - cannot publish child %T: %v", structuralLogPrefix, e.Child, err))
		return false
	}
	index := e.Index
	if index < 0 || index > len(h.children) {
		index = len(h.children)
	}
	h.children = append(h.children, child{})
	copy(h.children[index+1:], h.children[index:])
	h.children[index] = child{component: e.Child, id: id}
	return true
}

func (h *structuralHandler) unregister(c child) error {
	err := h.tk.Session().Unregister(c.id)
	if err != nil && !errors.Is(err, session.ErrUnknownID) {
		h.tk.Logger().Warn(fmt.Sprintf("%s - cleanup of child %d: %v", structuralLogPrefix, c.id, err))
		return err
	}
	return nil
}

func (h *structuralHandler) ids() []int64 {
	out := make([]int64, len(h.children))
	for i, c := range h.children {
		out[i] = c.id
	}
	return out
}

func (h *structuralHandler) Invoke(_ context.Context, op capability.OperationIdentity, _ []any) (any, error) {
	return nil, noOperation(op)
}

// Snapshot is called with the resync lock held.
func (h *structuralHandler) Snapshot(notificationType string) (any, bool) {
	if notificationType != NotificationStructure {
		return nil, false
	}
	return h.ids(), true
}

// Destroy stops listening and unregisters the children, last first.
func (h *structuralHandler) Destroy() error {
	if h.remove != nil {
		h.remove()
	}
	var children []child
	h.tk.RunSynchronized(func(capability.Sender) {
		h.destroyed = true
		children = h.children
		h.children = nil
	})
	var errs error
	for i := len(children) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, h.unregister(children[i]))
	}
	return errs
}
