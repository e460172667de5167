// Package addressing derives the naming scope, active directory and log sinks
// for every node of a published component tree.
package addressing

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

const pathSeparator = "/"

// ServerID identifies a naming scope owned by one server.
type ServerID string

// NewServerID builds a server identity of the form //host/name. An empty name
// is replaced by a random UUID so that two processes never share an identity.
func NewServerID(name string) ServerID {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	if name == "" {
		name = uuid.NewString()
	}
	return ServerID(fmt.Sprintf("//%s/%s", host, name))
}

// Path is an immutable ordered sequence of identifier segments.
// The zero value is the empty path.
type Path struct {
	segments []string
}

// NewPath creates a path from the given segments. Empty segments are dropped.
func NewPath(segments ...string) Path {
	out := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			out = append(out, s)
		}
	}
	return Path{segments: out}
}

// ParsePath parses a slash separated path.
func ParsePath(s string) Path {
	if s == "" {
		return Path{}
	}
	return NewPath(strings.Split(s, pathSeparator)...)
}

// Add returns a new path with id appended. The receiver is not modified.
func (p Path) Add(id string) Path {
	if id == "" {
		return p
	}
	out := make([]string, len(p.segments), len(p.segments)+1)
	copy(out, p.segments)
	return Path{segments: append(out, id)}
}

// IsEmpty reports whether the path has no segments.
func (p Path) IsEmpty() bool {
	return len(p.segments) == 0
}

// Len returns the number of segments.
func (p Path) Len() int {
	return len(p.segments)
}

// Segments returns a copy of the segments.
func (p Path) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// Equal reports whether both paths hold the same segments in the same order.
func (p Path) Equal(other Path) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

func (p Path) String() string {
	return strings.Join(p.segments, pathSeparator)
}

// Address locates a component: the server owning its naming scope plus the
// path of identifiers within that scope, ending with the component's own id.
type Address struct {
	Server ServerID
	Path   Path
}

func (a Address) String() string {
	return string(a.Server) + ":" + a.Path.String()
}
