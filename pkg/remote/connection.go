// Package remote defines the transport-independent contract through which
// callers publish components and talk to them.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/morezero/capability-facade/pkg/addressing"
	"github.com/morezero/capability-facade/pkg/capability"
)

// ErrClosed is returned by every method of a closed Connection except Close.
var ErrClosed = errors.New("connection closed")

// Connection publishes components and dispatches to them. Implementations
// are safe for concurrent use.
type Connection interface {
	// Create publishes component under actx and returns its id.
	Create(ctx context.Context, component any, actx *addressing.Context) (int64, error)
	// Destroy unpublishes id. Unknown ids fail with *UnknownIDError.
	Destroy(ctx context.Context, id int64) error
	// Invoke calls op on id. Unknown ids fail with *UnknownIDError; handler
	// failures are returned as *InvocationError.
	Invoke(ctx context.Context, id int64, op capability.OperationIdentity, args ...any) (any, error)
	AddNotificationListener(ctx context.Context, id int64, notificationType string, listener capability.NotificationListener) error
	RemoveNotificationListener(ctx context.Context, id int64, notificationType string, listener capability.NotificationListener) error
	// Describe returns the merged description of id's capabilities.
	Describe(ctx context.Context, id int64) (capability.Description, error)
	// ClientCapabilities returns what a caller needs to build a local proxy
	// for id without knowing its concrete type.
	ClientCapabilities(ctx context.Context, id int64) ([]capability.ClientDescriptor, error)
	// Close releases the transport. It is idempotent.
	Close() error
}

// UnknownIDError reports an id that is not registered.
type UnknownIDError struct {
	ID int64
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("unknown component id %d", e.ID)
}

// IsUnknownID reports whether err is or wraps an *UnknownIDError.
func IsUnknownID(err error) bool {
	var target *UnknownIDError
	return errors.As(err, &target)
}

// InvocationError annotates a handler failure with the call that caused it.
type InvocationError struct {
	ID   int64
	Op   capability.OperationIdentity
	Args []any
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s on %d with %v: %v", e.Op, e.ID, e.Args, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
