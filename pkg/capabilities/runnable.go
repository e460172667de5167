package capabilities

import (
	"context"
	"fmt"

	"github.com/morezero/capability-facade/pkg/capability"
)

const runnableLogPrefix = "capabilities:runnable"

// Runnable components can be started remotely.
type Runnable interface {
	Run(ctx context.Context) error
}

// Stoppable components can be stopped remotely.
type Stoppable interface {
	Stop() error
}

var (
	opRun  = capability.NewOperation("run")
	opStop = capability.NewOperation("stop")
)

// RunnableProvider serves run(). The run happens on a goroutine owned by the
// handler so the caller is not held for the duration of the job; destroying
// the handler cancels the run's context.
func RunnableProvider() *capability.Provider {
	return capability.NewProvider[Runnable](capability.Spec{
		Name:        NameRunnable,
		Version:     Version,
		Description: "Start a component",
		Operations: []capability.OperationDescriptor{
			{Name: "run", Impact: capability.ImpactAction},
		},
	}, func(target Runnable, tk capability.Toolkit) (capability.Handler, error) {
		ctx, cancel := context.WithCancel(context.Background())
		return &runnableHandler{target: target, tk: tk, ctx: ctx, cancel: cancel}, nil
	})
}

type runnableHandler struct {
	target Runnable
	tk     capability.Toolkit
	ctx    context.Context
	cancel context.CancelFunc
}

func (h *runnableHandler) Invoke(_ context.Context, op capability.OperationIdentity, _ []any) (any, error) {
	if op != opRun {
		return nil, noOperation(op)
	}
	if err := h.ctx.Err(); err != nil {
		return nil, err
	}
	go func() {
		if err := h.target.Run(h.ctx); err != nil && h.tk != nil {
			h.tk.Logger().Warn(fmt.Sprintf("%s - run of %T failed: %v", runnableLogPrefix, h.target, err))
		}
	}()
	return nil, nil
}

// Destroy cancels any run still in progress. It does not wait for it.
func (h *runnableHandler) Destroy() error {
	h.cancel()
	return nil
}

// StoppableProvider serves stop().
func StoppableProvider() *capability.Provider {
	return capability.NewProvider[Stoppable](capability.Spec{
		Name:        NameStoppable,
		Version:     Version,
		Description: "Stop a component",
		Operations: []capability.OperationDescriptor{
			{Name: "stop", Impact: capability.ImpactAction},
		},
	}, func(target Stoppable, _ capability.Toolkit) (capability.Handler, error) {
		return &stoppableHandler{target: target}, nil
	})
}

type stoppableHandler struct {
	target Stoppable
}

func (h *stoppableHandler) Invoke(_ context.Context, op capability.OperationIdentity, _ []any) (any, error) {
	if op != opStop {
		return nil, noOperation(op)
	}
	return nil, h.target.Stop()
}

func (h *stoppableHandler) Destroy() error { return nil }
