// Package capabilities provides the built-in capability providers and the
// generic components used to host component trees.
package capabilities

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/morezero/capability-facade/pkg/capability"
)

// Capability names.
const (
	NameDescribable = "describable"
	NameRunnable    = "runnable"
	NameStoppable   = "stoppable"
	NameStateful    = "stateful"
	NameStructural  = "structural"
	NameLogPoll     = "logpoll"
)

// Notification types.
const (
	NotificationState     = "state"
	NotificationStructure = "structure"
)

// Version is the version every built-in provider is published with.
const Version = "1.0.0"

// Builtins returns a fresh instance of every built-in provider.
func Builtins() []*capability.Provider {
	return []*capability.Provider{
		DescribableProvider(),
		RunnableProvider(),
		StoppableProvider(),
		StatefulProvider(),
		StructuralProvider(),
		LogPollProvider(),
	}
}

// noOperation is returned by handlers that declare no operation of their own
// but were dispatched to anyway.
func noOperation(op capability.OperationIdentity) error {
	return capability.NoHandler(op)
}

func argInt64(args []any, i int) (int64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument %d", i)
	}
	switch v := args[i].(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("argument %d: %v is not an integer", i, v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	default:
		return 0, fmt.Errorf("argument %d: unsupported type %T", i, args[i])
	}
}

func argInt(args []any, i int) (int, error) {
	v, err := argInt64(args, i)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}
