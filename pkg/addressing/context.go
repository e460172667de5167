package addressing

import (
	"errors"
	"fmt"
	"log/slog"
)

const logPrefix = "addressing:context"

// ErrNullDirectory is returned when a DirectoryOwner provides no directory.
var ErrNullDirectory = errors.New("directory owner provided a nil directory")

// LoopBackError reports a naming scope that resolves back to the current
// server, which would make address resolution recurse forever.
type LoopBackError struct {
	Server ServerID
	Node   any
}

func (e *LoopBackError) Error() string {
	return fmt.Sprintf("server loop back: directory of %T resolves to this server %s", e.Node, e.Server)
}

// Model holds what is shared by every context of one server.
type Model struct {
	ServerID ServerID
	Logger   *slog.Logger
}

// Context is the immutable addressing record of one node in the tree.
// Children are derived with AddChild; a Context is never modified after it
// is built and may be shared between goroutines.
type Context struct {
	node            any
	model           Model
	logArchiver     LogArchiver
	consoleArchiver ConsoleArchiver
	directory       Directory
	serverID        ServerID
	path            Path
	id              string
	hasID           bool
}

// Root creates the topmost context for component. Sinks are the component
// itself when it archives its own logs or console, otherwise fresh archives.
func Root(component any, model Model, directory Directory) (*Context, error) {
	if directory == nil {
		return nil, fmt.Errorf("%s - root of %T: %w", logPrefix, component, ErrNullDirectory)
	}
	c := &Context{
		node:      component,
		model:     model,
		directory: directory,
		serverID:  model.ServerID,
	}
	if la, ok := component.(LogArchiver); ok {
		c.logArchiver = la
	} else {
		c.logArchiver = NewMemoryArchive(0)
	}
	if ca, ok := component.(ConsoleArchiver); ok {
		c.consoleArchiver = ca
	} else {
		c.consoleArchiver = NewMemoryArchive(0)
	}
	c.id, c.hasID = directory.IDFor(component)
	return c, nil
}

// AddChild derives the context of child, a direct descendant of this
// context's node. The receiver is left untouched whether or not this fails.
func (c *Context) AddChild(child any) (*Context, error) {
	next := &Context{
		node:            child,
		model:           c.model,
		logArchiver:     c.logArchiver,
		consoleArchiver: c.consoleArchiver,
		directory:       c.directory,
		serverID:        c.serverID,
		path:            c.path,
	}
	if la, ok := c.node.(LogArchiver); ok {
		next.logArchiver = la
	}
	if ca, ok := c.node.(ConsoleArchiver); ok {
		next.consoleArchiver = ca
	}

	if owner, ok := c.node.(DirectoryOwner); ok {
		dir := owner.ProvideDirectory()
		if dir == nil {
			return nil, fmt.Errorf("%s - %T: %w", logPrefix, c.node, ErrNullDirectory)
		}
		server := c.serverID
		if remote, ok := dir.(RemoteDirectory); ok {
			server = remote.ServerID()
			if server == c.model.ServerID {
				return nil, &LoopBackError{Server: server, Node: c.node}
			}
		}
		next.directory = dir
		next.serverID = server
		if server != c.serverID {
			next.path = Path{}
		} else if c.hasID {
			next.path = c.path.Add(c.id)
		}
	}

	next.id, next.hasID = next.directory.IDFor(child)
	if c.model.Logger != nil {
		c.model.Logger.Debug(fmt.Sprintf("%s - child %T id=%q path=%s server=%s",
			logPrefix, child, next.id, next.path, next.serverID))
	}
	return next, nil
}

// Node returns the component this context describes.
func (c *Context) Node() any { return c.node }

// Model returns the server-wide model.
func (c *Context) Model() Model { return c.model }

// LogArchiver returns the nearest log sink.
func (c *Context) LogArchiver() LogArchiver { return c.logArchiver }

// ConsoleArchiver returns the nearest console sink.
func (c *Context) ConsoleArchiver() ConsoleArchiver { return c.consoleArchiver }

// Directory returns the active directory.
func (c *Context) Directory() Directory { return c.directory }

// ServerID returns the identity of the server owning this naming scope.
func (c *Context) ServerID() ServerID { return c.serverID }

// Path returns the path of the parent within the naming scope.
func (c *Context) Path() Path { return c.path }

// ID returns the node's identifier segment, if it has one.
func (c *Context) ID() (string, bool) { return c.id, c.hasID }

// Address returns the node's full address. It reports false when the node has
// no identifier in the active directory.
func (c *Context) Address() (Address, bool) {
	if !c.hasID {
		return Address{}, false
	}
	return Address{Server: c.serverID, Path: c.path.Add(c.id)}, true
}
