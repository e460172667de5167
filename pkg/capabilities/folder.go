package capabilities

import (
	"strconv"
	"sync"

	"github.com/morezero/capability-facade/pkg/addressing"
)

// Folder is a generic container component. It is structural and owns the
// directory its children are named in, so their paths extend the folder's.
type Folder struct {
	name string
	dir  *addressing.SimpleDirectory

	// emit serializes structure events so a listener never sees a change
	// twice or out of order.
	emit sync.Mutex

	mu        sync.Mutex
	children  []any
	listeners map[int]func(StructureEvent)
	nextKey   int
}

var (
	_ Structural                = (*Folder)(nil)
	_ Describable               = (*Folder)(nil)
	_ addressing.DirectoryOwner = (*Folder)(nil)
)

// NewFolder creates an empty folder.
func NewFolder(name string) *Folder {
	return &Folder{
		name:      name,
		dir:       addressing.NewSimpleDirectory(),
		listeners: make(map[int]func(StructureEvent)),
	}
}

// Name returns the folder name.
func (f *Folder) Name() string { return f.name }

// Add appends child, naming it id in the folder's directory. An empty id
// leaves the child without an address.
func (f *Folder) Add(id string, child any) {
	if id != "" {
		f.dir.Register(id, child)
	}
	f.emit.Lock()
	defer f.emit.Unlock()
	f.mu.Lock()
	f.children = append(f.children, child)
	e := StructureEvent{Index: len(f.children) - 1, Child: child, Added: true}
	fns := f.snapshotListeners()
	f.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// Remove removes child. It reports whether child was present.
func (f *Folder) Remove(child any) bool {
	f.emit.Lock()
	defer f.emit.Unlock()
	f.mu.Lock()
	index := -1
	for i, c := range f.children {
		if c == child {
			index = i
			break
		}
	}
	if index < 0 {
		f.mu.Unlock()
		return false
	}
	f.children = append(f.children[:index], f.children[index+1:]...)
	fns := f.snapshotListeners()
	f.mu.Unlock()

	for _, fn := range fns {
		fn(StructureEvent{Index: index, Child: child})
	}
	f.dir.Remove(child)
	return true
}

// Children returns the current children in order.
func (f *Folder) Children() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.children...)
}

// AddStructureListener replays the current children to fn, then reports
// later changes.
func (f *Folder) AddStructureListener(fn func(StructureEvent)) func() {
	f.emit.Lock()
	defer f.emit.Unlock()
	f.mu.Lock()
	key := f.nextKey
	f.nextKey++
	f.listeners[key] = fn
	current := append([]any(nil), f.children...)
	f.mu.Unlock()

	for i, c := range current {
		fn(StructureEvent{Index: i, Child: c, Added: true})
	}
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, key)
	}
}

// ProvideDirectory returns the directory the folder's children are named in.
func (f *Folder) ProvideDirectory() addressing.Directory {
	return f.dir
}

// Describe reports the folder's name and child count.
func (f *Folder) Describe() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return map[string]string{
		"name":     f.name,
		"type":     "folder",
		"children": strconv.Itoa(len(f.children)),
	}
}

// snapshotListeners must be called with f.mu held.
func (f *Folder) snapshotListeners() []func(StructureEvent) {
	out := make([]func(StructureEvent), 0, len(f.listeners))
	for _, fn := range f.listeners {
		out = append(out, fn)
	}
	return out
}
