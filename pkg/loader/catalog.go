package loader

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/morezero/capability-facade/pkg/capability"
	"github.com/morezero/capability-facade/pkg/semver"
)

const catalogLogPrefix = "loader:catalog"

// unversioned is the version a provider without one is catalogued under.
const unversioned = "0.0.0"

var (
	// ErrUnknownProvider is returned when no provider has the referenced name.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrUnsatisfiable is returned when no version of the provider matches
	// the referenced range.
	ErrUnsatisfiable = errors.New("no provider version satisfies range")
)

// Catalog holds the compiled-in providers a provider document may name,
// keyed by name and version.
type Catalog struct {
	mu     sync.RWMutex
	byName map[string]map[string]*capability.Provider
}

// NewCatalog creates a catalog holding providers. It fails on the first
// invalid or duplicate provider.
func NewCatalog(providers ...*capability.Provider) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]map[string]*capability.Provider)}
	for _, p := range providers {
		if err := c.Add(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add catalogues p under its name and version.
func (c *Catalog) Add(p *capability.Provider) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%s - %w", catalogLogPrefix, err)
	}
	version := p.Version()
	if version == "" {
		version = unversioned
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	versions, ok := c.byName[p.Name()]
	if !ok {
		versions = make(map[string]*capability.Provider)
		c.byName[p.Name()] = versions
	}
	if _, dup := versions[version]; dup {
		return fmt.Errorf("%s - provider %s@%s already catalogued", catalogLogPrefix, p.Name(), version)
	}
	versions[version] = p
	return nil
}

// Resolve returns the highest catalogued version of ref's provider that
// satisfies ref's range.
func (c *Catalog) Resolve(ref semver.ProviderRef) (*capability.Provider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	versions, ok := c.byName[ref.Name]
	if !ok {
		return nil, fmt.Errorf("%s - %s: %w", catalogLogPrefix, ref.Name, ErrUnknownProvider)
	}
	available := make([]string, 0, len(versions))
	for v := range versions {
		available = append(available, v)
	}
	best, ok := semver.ResolveVersion(available, ref.Range)
	if !ok {
		return nil, fmt.Errorf("%s - %s (have %v): %w", catalogLogPrefix, ref, available, ErrUnsatisfiable)
	}
	return versions[best], nil
}

// Names returns the catalogued provider names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.byName))
	for name := range c.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Versions returns the catalogued versions of name, highest first.
func (c *Catalog) Versions(name string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.byName[name]))
	for v := range c.byName[name] {
		out = append(out, v)
	}
	semver.SortVersionsDesc(out)
	return out
}
