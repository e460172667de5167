package capabilities

import (
	"context"
	"fmt"

	"github.com/morezero/capability-facade/pkg/addressing"
	"github.com/morezero/capability-facade/pkg/capability"
)

const defaultPollSize = 100

var (
	opRetrieveLogEvents     = capability.NewOperation("retrieveLogEvents", "int64", "int")
	opRetrieveConsoleEvents = capability.NewOperation("retrieveConsoleEvents", "int64", "int")
)

// LogPollProvider lets callers poll log and console output. A component that
// keeps its own archive is polled directly; any other component is polled
// through the sinks its addressing context resolved to. It matches every
// component.
func LogPollProvider() *capability.Provider {
	return capability.NewProvider[any](capability.Spec{
		Name:        NameLogPoll,
		Version:     Version,
		Description: "Poll archived log and console output",
		Operations: []capability.OperationDescriptor{
			{Name: "retrieveLogEvents", Params: []string{"int64", "int"}, Returns: "[]LogEvent", Impact: capability.ImpactInfo},
			{Name: "retrieveConsoleEvents", Params: []string{"int64", "int"}, Returns: "[]LogEvent", Impact: capability.ImpactInfo},
		},
	}, newLogPollHandler)
}

type logPollHandler struct {
	logs    addressing.LogArchiver
	console addressing.ConsoleArchiver
}

func newLogPollHandler(target any, tk capability.Toolkit) (capability.Handler, error) {
	if tk == nil || tk.Context() == nil {
		return nil, fmt.Errorf("%s needs an addressing context", NameLogPoll)
	}
	h := &logPollHandler{
		logs:    tk.Context().LogArchiver(),
		console: tk.Context().ConsoleArchiver(),
	}
	if la, ok := target.(addressing.LogArchiver); ok {
		h.logs = la
	}
	if ca, ok := target.(addressing.ConsoleArchiver); ok {
		h.console = ca
	}
	return h, nil
}

func (h *logPollHandler) Invoke(_ context.Context, op capability.OperationIdentity, args []any) (any, error) {
	if op != opRetrieveLogEvents && op != opRetrieveConsoleEvents {
		return nil, noOperation(op)
	}
	from, err := argInt64(args, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	max, err := argInt(args, 1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if max <= 0 {
		max = defaultPollSize
	}

	var events []addressing.LogEvent
	if op == opRetrieveLogEvents {
		events = h.logs.RetrieveLogEvents(from, max)
	} else {
		events = h.console.RetrieveConsoleEvents(from, max)
	}
	if events == nil {
		events = []addressing.LogEvent{}
	}
	return events, nil
}

func (h *logPollHandler) Destroy() error { return nil }
