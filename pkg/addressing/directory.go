package addressing

import (
	"reflect"
	"sync"
)

// Directory resolves the identifier a component is known by in a naming scope.
type Directory interface {
	IDFor(component any) (string, bool)
}

// RemoteDirectory is a Directory whose naming scope belongs to another server.
type RemoteDirectory interface {
	Directory
	ServerID() ServerID
}

// DirectoryOwner is implemented by nodes that provide their own directory to
// their descendants.
type DirectoryOwner interface {
	ProvideDirectory() Directory
}

// SimpleDirectory is an in-memory Directory keyed by component identity.
type SimpleDirectory struct {
	mu  sync.RWMutex
	ids map[any]string
}

// NewSimpleDirectory creates an empty directory.
func NewSimpleDirectory() *SimpleDirectory {
	return &SimpleDirectory{ids: make(map[any]string)}
}

// Register records id for component. Components whose dynamic type is not
// comparable cannot be identified and are ignored.
func (d *SimpleDirectory) Register(id string, component any) {
	if !identifiable(component) {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids[component] = id
}

// Remove forgets component.
func (d *SimpleDirectory) Remove(component any) {
	if !identifiable(component) {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.ids, component)
}

// IDFor implements Directory.
func (d *SimpleDirectory) IDFor(component any) (string, bool) {
	if !identifiable(component) {
		return "", false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.ids[component]
	return id, ok
}

// ScopedDirectory is a SimpleDirectory that belongs to a foreign server's
// naming scope.
type ScopedDirectory struct {
	*SimpleDirectory
	server ServerID
}

// NewScopedDirectory creates an empty directory for the given server scope.
func NewScopedDirectory(server ServerID) *ScopedDirectory {
	return &ScopedDirectory{SimpleDirectory: NewSimpleDirectory(), server: server}
}

// ServerID implements RemoteDirectory.
func (d *ScopedDirectory) ServerID() ServerID {
	return d.server
}

func identifiable(component any) bool {
	if component == nil {
		return false
	}
	return reflect.TypeOf(component).Comparable()
}
