package capabilities

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/morezero/capability-facade/pkg/addressing"
)

// Task states.
const (
	StateReady      = "READY"
	StateExecuting  = "EXECUTING"
	StateComplete   = "COMPLETE"
	StateIncomplete = "INCOMPLETE"
	StateException  = "EXCEPTION"
)

// ErrTaskRunning is returned when a running task is started again.
var ErrTaskRunning = errors.New("task is already executing")

// Task is a runnable, stoppable, stateful component wrapping a function. It
// keeps its own log archive, which logpoll reads wherever the task is
// published. Children of a task inherit the archive as their log sink.
type Task struct {
	name    string
	fn      func(ctx context.Context, logger *slog.Logger) error
	archive *addressing.MemoryArchive
	logger  *slog.Logger

	mu        sync.Mutex
	last      StateEvent
	cancel    context.CancelFunc
	listeners map[int]func(StateEvent)
	nextKey   int
}

var (
	_ Runnable               = (*Task)(nil)
	_ Stoppable              = (*Task)(nil)
	_ Stateful               = (*Task)(nil)
	_ Describable            = (*Task)(nil)
	_ addressing.LogArchiver = (*Task)(nil)
)

// NewTask creates a task in the READY state.
func NewTask(name string, fn func(ctx context.Context, logger *slog.Logger) error) *Task {
	if fn == nil {
		fn = func(context.Context, *slog.Logger) error { return nil }
	}
	archive := addressing.NewMemoryArchive(0)
	return &Task{
		name:      name,
		fn:        fn,
		archive:   archive,
		logger:    slog.New(archive).With("task", name),
		last:      StateEvent{State: StateReady, Time: time.Now().UTC()},
		listeners: make(map[int]func(StateEvent)),
	}
}

// Run executes the task function. A cancelled context, including one
// cancelled by Stop, ends the task INCOMPLETE.
func (t *Task) Run(ctx context.Context) error {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return ErrTaskRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()
	defer cancel()

	t.setState(StateExecuting, "")
	t.logger.Info(fmt.Sprintf("%s started", t.name))
	err := t.fn(ctx, t.logger)
	defer func() {
		t.mu.Lock()
		t.cancel = nil
		t.mu.Unlock()
	}()

	switch {
	case err == nil:
		t.setState(StateComplete, "")
	case errors.Is(err, context.Canceled):
		t.setState(StateIncomplete, err.Error())
	default:
		t.logger.Error(fmt.Sprintf("%s failed: %v", t.name, err))
		t.setState(StateException, err.Error())
	}
	return err
}

// Stop cancels a running task. Stopping an idle task does nothing.
func (t *Task) Stop() error {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// LastStateEvent returns the most recent state change.
func (t *Task) LastStateEvent() StateEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// AddStateListener registers fn for future state changes.
func (t *Task) AddStateListener(fn func(StateEvent)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := t.nextKey
	t.nextKey++
	t.listeners[key] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.listeners, key)
	}
}

// Describe reports the task's name and current state.
func (t *Task) Describe() map[string]string {
	last := t.LastStateEvent()
	return map[string]string{
		"name":  t.name,
		"type":  "task",
		"state": last.State,
	}
}

// RetrieveLogEvents returns archived log lines of the task.
func (t *Task) RetrieveLogEvents(from int64, max int) []addressing.LogEvent {
	return t.archive.RetrieveLogEvents(from, max)
}

func (t *Task) setState(state, message string) {
	t.mu.Lock()
	e := StateEvent{State: state, Time: time.Now().UTC(), Message: message}
	t.last = e
	fns := make([]func(StateEvent), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
