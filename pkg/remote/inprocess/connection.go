// Package inprocess implements remote.Connection directly on a session,
// without serialization.
package inprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"github.com/morezero/capability-facade/pkg/addressing"
	"github.com/morezero/capability-facade/pkg/capability"
	"github.com/morezero/capability-facade/pkg/remote"
	"github.com/morezero/capability-facade/pkg/session"
)

const logPrefix = "inprocess:connection"

// Connection routes Create and Destroy to a session and Invoke to the
// component's facade.
type Connection struct {
	session *session.Session
	owned   bool

	mu      sync.RWMutex
	closed  bool
	created map[int64]struct{}
}

var _ remote.Connection = (*Connection)(nil)

// Options configures a Connection.
type Options struct {
	// CloseSession closes the session when the connection is closed.
	// Otherwise Close only destroys the components created through this
	// connection.
	CloseSession bool
}

// New creates a connection on s.
func New(s *session.Session, opts *Options) *Connection {
	c := &Connection{
		session: s,
		created: make(map[int64]struct{}),
	}
	if opts != nil {
		c.owned = opts.CloseSession
	}
	return c
}

func (c *Connection) Create(ctx context.Context, component any, actx *addressing.Context) (int64, error) {
	if err := c.check(ctx); err != nil {
		return capability.NotFound, err
	}
	id, err := c.session.Register(component, actx)
	if err != nil {
		return capability.NotFound, fmt.Errorf("%s - create %T: %w", logPrefix, component, err)
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if err := c.session.Unregister(id); err != nil && !errors.Is(err, session.ErrUnknownID) {
			slog.Warn(fmt.Sprintf("%s - failed to destroy %d created during close: %v", logPrefix, id, err))
			return capability.NotFound, multierr.Append(remote.ErrClosed, err)
		}
		return capability.NotFound, remote.ErrClosed
	}
	c.created[id] = struct{}{}
	c.mu.Unlock()
	return id, nil
}

func (c *Connection) Destroy(ctx context.Context, id int64) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.created, id)
	c.mu.Unlock()
	if err := c.session.Unregister(id); err != nil {
		return c.translate(id, err)
	}
	return nil
}

func (c *Connection) Invoke(ctx context.Context, id int64, op capability.OperationIdentity, args ...any) (any, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	result, err := c.session.Invoke(ctx, id, op, args)
	if err != nil {
		if errors.Is(err, session.ErrUnknownID) {
			return nil, &remote.UnknownIDError{ID: id}
		}
		return nil, &remote.InvocationError{ID: id, Op: op, Args: args, Err: err}
	}
	return result, nil
}

func (c *Connection) AddNotificationListener(ctx context.Context, id int64, notificationType string, listener capability.NotificationListener) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	return c.translate(id, c.session.AddNotificationListener(id, notificationType, listener))
}

func (c *Connection) RemoveNotificationListener(ctx context.Context, id int64, notificationType string, listener capability.NotificationListener) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	return c.translate(id, c.session.RemoveNotificationListener(id, notificationType, listener))
}

func (c *Connection) Describe(ctx context.Context, id int64) (capability.Description, error) {
	if err := c.check(ctx); err != nil {
		return capability.Description{}, err
	}
	m, err := c.session.Facade(id)
	if err != nil {
		return capability.Description{}, c.translate(id, err)
	}
	return m.Description(), nil
}

func (c *Connection) ClientCapabilities(ctx context.Context, id int64) ([]capability.ClientDescriptor, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	m, err := c.session.Facade(id)
	if err != nil {
		return nil, c.translate(id, err)
	}
	return m.ClientCapabilities(), nil
}

// Close destroys the components created through this connection, newest
// first, or closes the whole session when the connection owns it.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	created := c.created
	c.created = nil
	c.mu.Unlock()

	if c.owned {
		return c.session.Close()
	}

	ids := make([]int64, 0, len(created))
	for id := range created {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	var errs error
	for _, id := range ids {
		if err := c.session.Unregister(id); err != nil && !errors.Is(err, session.ErrUnknownID) {
			slog.Warn(fmt.Sprintf("%s - failed to destroy %d on close: %v", logPrefix, id, err))
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (c *Connection) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return remote.ErrClosed
	}
	return nil
}

func (c *Connection) translate(id int64, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, session.ErrUnknownID) {
		return &remote.UnknownIDError{ID: id}
	}
	return fmt.Errorf("%s - component %d: %w", logPrefix, id, err)
}
