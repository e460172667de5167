package addressing

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultArchiveSize = 1000

// LogEvent is one archived log or console line.
type LogEvent struct {
	Number  int64     `json:"number"`
	Level   string    `json:"level"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// LogArchiver is implemented by nodes that keep their own log history.
type LogArchiver interface {
	RetrieveLogEvents(from int64, max int) []LogEvent
}

// ConsoleArchiver is implemented by nodes that keep their own console output.
type ConsoleArchiver interface {
	RetrieveConsoleEvents(from int64, max int) []LogEvent
}

// MemoryArchive is a bounded in-memory event history. It serves as a log sink
// (slog.Handler), a console sink (io.Writer) and satisfies both archiver
// interfaces so a root context can hand it out when its node has none.
type MemoryArchive struct {
	state *archiveState
	attrs []slog.Attr
	group string
}

type archiveState struct {
	mu      sync.Mutex
	max     int
	last    int64
	events  []LogEvent
	partial bytes.Buffer
}

// NewMemoryArchive creates an archive keeping at most size events.
// A non-positive size selects the default.
func NewMemoryArchive(size int) *MemoryArchive {
	if size <= 0 {
		size = defaultArchiveSize
	}
	return &MemoryArchive{state: &archiveState{max: size}}
}

// Append records a message and returns its event number.
func (a *MemoryArchive) Append(level, message string) int64 {
	s := a.state
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.append(level, message)
}

func (s *archiveState) append(level, message string) int64 {
	s.last++
	s.events = append(s.events, LogEvent{
		Number:  s.last,
		Level:   level,
		Time:    time.Now().UTC(),
		Message: message,
	})
	if over := len(s.events) - s.max; over > 0 {
		s.events = append(s.events[:0:0], s.events[over:]...)
	}
	return s.last
}

// LastNumber returns the number of the most recent event, 0 when empty.
func (a *MemoryArchive) LastNumber() int64 {
	a.state.mu.Lock()
	defer a.state.mu.Unlock()
	return a.state.last
}

// Retrieve returns up to max of the most recent events numbered after from,
// oldest first.
func (a *MemoryArchive) Retrieve(from int64, max int) []LogEvent {
	s := a.state
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []LogEvent
	for _, e := range s.events {
		if e.Number > from {
			out = append(out, e)
		}
	}
	if max > 0 && len(out) > max {
		out = out[len(out)-max:]
	}
	return append([]LogEvent(nil), out...)
}

// RetrieveLogEvents implements LogArchiver.
func (a *MemoryArchive) RetrieveLogEvents(from int64, max int) []LogEvent {
	return a.Retrieve(from, max)
}

// RetrieveConsoleEvents implements ConsoleArchiver.
func (a *MemoryArchive) RetrieveConsoleEvents(from int64, max int) []LogEvent {
	return a.Retrieve(from, max)
}

// Write records each complete line of p as a console event. A trailing
// partial line is held until the next newline arrives.
func (a *MemoryArchive) Write(p []byte) (int, error) {
	s := a.state
	s.mu.Lock()
	defer s.mu.Unlock()

	s.partial.Write(p)
	for {
		line, err := s.partial.ReadString('\n')
		if err != nil {
			// put back the incomplete remainder
			s.partial.Reset()
			s.partial.WriteString(line)
			break
		}
		s.append("INFO", strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// Enabled implements slog.Handler.
func (a *MemoryArchive) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle implements slog.Handler.
func (a *MemoryArchive) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	write := func(attr slog.Attr) bool {
		key := attr.Key
		if a.group != "" {
			key = a.group + "." + key
		}
		fmt.Fprintf(&b, " %s=%v", key, attr.Value.Any())
		return true
	}
	for _, attr := range a.attrs {
		write(attr)
	}
	r.Attrs(write)
	a.Append(r.Level.String(), b.String())
	return nil
}

// WithAttrs implements slog.Handler.
func (a *MemoryArchive) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *a
	next.attrs = append(append([]slog.Attr(nil), a.attrs...), attrs...)
	return &next
}

// WithGroup implements slog.Handler.
func (a *MemoryArchive) WithGroup(name string) slog.Handler {
	next := *a
	if next.group == "" {
		next.group = name
	} else {
		next.group = next.group + "." + name
	}
	return &next
}
