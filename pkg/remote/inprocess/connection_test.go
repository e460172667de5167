package inprocess

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/morezero/capability-facade/pkg/addressing"
	"github.com/morezero/capability-facade/pkg/capability"
	"github.com/morezero/capability-facade/pkg/facade"
	"github.com/morezero/capability-facade/pkg/remote"
	"github.com/morezero/capability-facade/pkg/session"
)

const connectionTestPrefix = "inprocess:connection_test"

type describer interface{ Describe() string }
type changer interface{ OnChange(func()) }

// widget satisfies both the describable and the notifiable capability.
type widget struct {
	mu      sync.Mutex
	name    string
	changed []func()
}

func (w *widget) Describe() string { return "widget " + w.name }

func (w *widget) OnChange(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changed = append(w.changed, fn)
}

func (w *widget) change() {
	w.mu.Lock()
	fns := append([]func(){}, w.changed...)
	w.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type describeHandler struct {
	target  describer
	invoked int
}

func (h *describeHandler) Invoke(context.Context, capability.OperationIdentity, []any) (any, error) {
	h.invoked++
	return h.target.Describe(), nil
}

func (h *describeHandler) Destroy() error { return nil }

type changeHandler struct{}

func (changeHandler) Invoke(context.Context, capability.OperationIdentity, []any) (any, error) {
	return nil, errors.New("no operations")
}

func (changeHandler) Destroy() error { return nil }

func registry(describe **describeHandler) capability.Registry {
	return capability.NewList(
		capability.NewProvider[describer](capability.Spec{
			Name:       "describable",
			Operations: []capability.OperationDescriptor{{Name: "describe", Returns: "string", Impact: capability.ImpactInfo}},
		}, func(target describer, _ capability.Toolkit) (capability.Handler, error) {
			h := &describeHandler{target: target}
			if describe != nil {
				*describe = h
			}
			return h, nil
		}),
		capability.NewProvider[changer](capability.Spec{
			Name:          "notifiable",
			Notifications: []capability.NotificationDescriptor{{Type: "changed"}},
		}, func(target changer, tk capability.Toolkit) (capability.Handler, error) {
			target.OnChange(func() { tk.Send("changed", nil) })
			return changeHandler{}, nil
		}),
	)
}

type counting struct {
	mu sync.Mutex
	n  []capability.Notification
}

func (c *counting) HandleNotification(n capability.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = append(c.n, n)
}

func (c *counting) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.n)
}

func newConnection(t *testing.T, reg capability.Registry) (*Connection, *session.Session) {
	t.Helper()
	s := session.New(facade.NewFactory(reg), nil)
	return New(s, nil), s
}

func rootContext(t *testing.T, component any) *addressing.Context {
	t.Helper()
	actx, err := addressing.Root(component, addressing.Model{ServerID: "//local/inprocess"}, addressing.NewSimpleDirectory())
	if err != nil {
		t.Fatalf("%s - Root failed: %v", connectionTestPrefix, err)
	}
	return actx
}

func TestConnection_EndToEnd(t *testing.T) {
	ctx := context.Background()
	var describe *describeHandler
	conn, s := newConnection(t, registry(&describe))
	defer conn.Close()

	w := &widget{name: "w1"}
	id, err := conn.Create(ctx, w, rootContext(t, w))
	if err != nil {
		t.Fatalf("%s - Create failed: %v", connectionTestPrefix, err)
	}

	got, err := conn.Invoke(ctx, id, capability.NewOperation("describe"))
	if err != nil {
		t.Fatalf("%s - Invoke failed: %v", connectionTestPrefix, err)
	}
	if got != "widget w1" {
		t.Errorf("%s - describe() = %v", connectionTestPrefix, got)
	}

	listener := &counting{}
	if err := conn.AddNotificationListener(ctx, id, "changed", listener); err != nil {
		t.Fatalf("%s - AddNotificationListener failed: %v", connectionTestPrefix, err)
	}
	w.change()
	if listener.count() != 1 {
		t.Errorf("%s - listener got %d notifications, want 1", connectionTestPrefix, listener.count())
	}

	desc, err := conn.Describe(ctx, id)
	if err != nil {
		t.Fatalf("%s - Describe failed: %v", connectionTestPrefix, err)
	}
	if !desc.Supports("describable") || !desc.Supports("notifiable") {
		t.Errorf("%s - description = %+v", connectionTestPrefix, desc)
	}
	clients, err := conn.ClientCapabilities(ctx, id)
	if err != nil || len(clients) != 2 {
		t.Errorf("%s - ClientCapabilities = %v, %v", connectionTestPrefix, clients, err)
	}

	m, err := s.Facade(id)
	if err != nil {
		t.Fatalf("%s - Facade failed: %v", connectionTestPrefix, err)
	}
	if err := conn.Destroy(ctx, id); err != nil {
		t.Fatalf("%s - Destroy failed: %v", connectionTestPrefix, err)
	}
	before := describe.invoked
	if _, err := m.Invoke(ctx, capability.NewOperation("describe"), nil); !errors.Is(err, capability.ErrNoHandler) {
		t.Errorf("%s - facade invoke after destroy = %v, want ErrNoHandler", connectionTestPrefix, err)
	}
	_, err = conn.Invoke(ctx, id, capability.NewOperation("describe"))
	if !remote.IsUnknownID(err) {
		t.Errorf("%s - invoke after destroy = %v, want unknown id", connectionTestPrefix, err)
	}
	if describe.invoked != before {
		t.Errorf("%s - stale handler ran after destroy", connectionTestPrefix)
	}
	w.change()
	if listener.count() != 1 {
		t.Errorf("%s - listener notified after destroy", connectionTestPrefix)
	}
}

func TestConnection_InvokeErrors(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConnection(t, registry(nil))
	w := &widget{}
	id, _ := conn.Create(ctx, w, rootContext(t, w))

	_, err := conn.Invoke(ctx, id, capability.NewOperation("describe", "string"), "extra")
	var invErr *remote.InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("%s - err = %v, want *InvocationError", connectionTestPrefix, err)
	}
	if invErr.ID != id || len(invErr.Args) != 1 || invErr.Args[0] != "extra" {
		t.Errorf("%s - InvocationError = %+v", connectionTestPrefix, invErr)
	}
	if !errors.Is(err, capability.ErrNoHandler) {
		t.Errorf("%s - cause = %v, want ErrNoHandler", connectionTestPrefix, invErr.Err)
	}

	_, err = conn.Invoke(ctx, 999, capability.NewOperation("describe"))
	var unknown *remote.UnknownIDError
	if !errors.As(err, &unknown) || unknown.ID != 999 {
		t.Errorf("%s - err = %v, want UnknownIDError{999}", connectionTestPrefix, err)
	}
}

func TestConnection_UnknownIDEverywhere(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConnection(t, registry(nil))
	l := &counting{}

	checks := map[string]error{
		"destroy":     conn.Destroy(ctx, 5),
		"subscribe":   conn.AddNotificationListener(ctx, 5, "changed", l),
		"unsubscribe": conn.RemoveNotificationListener(ctx, 5, "changed", l),
	}
	_, checks["describe"] = conn.Describe(ctx, 5)
	_, checks["client capabilities"] = conn.ClientCapabilities(ctx, 5)

	for name, err := range checks {
		if !remote.IsUnknownID(err) {
			t.Errorf("%s - %s = %v, want unknown id", connectionTestPrefix, name, err)
		}
	}
}

func TestConnection_CreateRejectsInvalid(t *testing.T) {
	conn, _ := newConnection(t, registry(nil))
	w := &widget{}
	if _, err := conn.Create(context.Background(), w, nil); !errors.Is(err, session.ErrNoContext) {
		t.Errorf("%s - err = %v, want ErrNoContext", connectionTestPrefix, err)
	}
	if _, err := conn.Create(context.Background(), nil, rootContext(t, w)); !errors.Is(err, session.ErrInvalidComponent) {
		t.Errorf("%s - err = %v, want ErrInvalidComponent", connectionTestPrefix, err)
	}
}

func TestConnection_Close(t *testing.T) {
	ctx := context.Background()
	conn, s := newConnection(t, registry(nil))

	other := &widget{name: "not mine"}
	if _, err := s.Register(other, rootContext(t, other)); err != nil {
		t.Fatalf("%s - Register failed: %v", connectionTestPrefix, err)
	}
	w := &widget{}
	if _, err := conn.Create(ctx, w, rootContext(t, w)); err != nil {
		t.Fatalf("%s - Create failed: %v", connectionTestPrefix, err)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("%s - Close failed: %v", connectionTestPrefix, err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("%s - second Close = %v", connectionTestPrefix, err)
	}
	if s.IDFor(w) != capability.NotFound {
		t.Errorf("%s - created component survived Close", connectionTestPrefix)
	}
	if s.IDFor(other) == capability.NotFound {
		t.Errorf("%s - Close destroyed a component it did not create", connectionTestPrefix)
	}
	if _, err := conn.Invoke(ctx, 1, capability.NewOperation("describe")); !errors.Is(err, remote.ErrClosed) {
		t.Errorf("%s - invoke after Close = %v, want ErrClosed", connectionTestPrefix, err)
	}
}

type stickyHandler struct{}

func (stickyHandler) Invoke(context.Context, capability.OperationIdentity, []any) (any, error) {
	return nil, errors.New("no operations")
}

func (stickyHandler) Destroy() error { return errors.New("still attached") }

func TestConnection_CreateDuringClose(t *testing.T) {
	var conn *Connection
	reg := capability.NewList(capability.NewProvider[describer](capability.Spec{
		Name: "closing",
	}, func(describer, capability.Toolkit) (capability.Handler, error) {
		// The connection closes while the component is being registered.
		if err := conn.Close(); err != nil {
			t.Errorf("%s - Close failed: %v", connectionTestPrefix, err)
		}
		return stickyHandler{}, nil
	}))
	conn, s := newConnection(t, reg)

	w := &widget{}
	id, err := conn.Create(context.Background(), w, rootContext(t, w))
	if !errors.Is(err, remote.ErrClosed) {
		t.Fatalf("%s - Create = %v, want ErrClosed", connectionTestPrefix, err)
	}
	if err == nil || !strings.Contains(err.Error(), "still attached") {
		t.Errorf("%s - cleanup failure dropped: %v", connectionTestPrefix, err)
	}
	if id != capability.NotFound {
		t.Errorf("%s - id = %d, want NotFound", connectionTestPrefix, id)
	}
	if s.IDFor(w) != capability.NotFound {
		t.Errorf("%s - component survived a create during close", connectionTestPrefix)
	}
}

func TestConnection_CloseOwnedSession(t *testing.T) {
	s := session.New(facade.NewFactory(registry(nil)), nil)
	conn := New(s, &Options{CloseSession: true})
	w := &widget{}
	if _, err := s.Register(w, rootContext(t, w)); err != nil {
		t.Fatalf("%s - Register failed: %v", connectionTestPrefix, err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("%s - Close failed: %v", connectionTestPrefix, err)
	}
	if s.Len() != 0 {
		t.Errorf("%s - session still holds %d components", connectionTestPrefix, s.Len())
	}
}

func TestConnection_CancelledContext(t *testing.T) {
	conn, _ := newConnection(t, registry(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := conn.Invoke(ctx, 1, capability.NewOperation("describe")); !errors.Is(err, context.Canceled) {
		t.Errorf("%s - err = %v, want context.Canceled", connectionTestPrefix, err)
	}
}
