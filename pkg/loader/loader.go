// Package loader builds capability registries from declarative provider
// documents held on disk, behind a NATS subject or in Postgres.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/morezero/capability-facade/pkg/capability"
)

const logPrefix = "loader:loader"

// Parser turns one location into a registry. A registry with no providers
// is allowed.
type Parser interface {
	Parse(ctx context.Context, location string) (capability.Registry, error)
}

// LoadError wraps the failure of a single location.
type LoadError struct {
	Location string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load providers from %s: %v", e.Location, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// DocumentParser fetches a provider document and resolves its references
// against a catalog. Fetchers are chosen by location scheme.
type DocumentParser struct {
	catalog  *Catalog
	fetchers map[string]Fetcher
}

// NewDocumentParser creates a parser resolving against catalog. It reads
// file locations out of the box; see WithFetcher for the others.
func NewDocumentParser(catalog *Catalog) *DocumentParser {
	return &DocumentParser{
		catalog:  catalog,
		fetchers: map[string]Fetcher{"file": FileFetcher{}},
	}
}

// WithFetcher routes locations with the given scheme to f.
func (p *DocumentParser) WithFetcher(scheme string, f Fetcher) *DocumentParser {
	p.fetchers[strings.ToLower(scheme)] = f
	return p
}

// Parse implements Parser.
func (p *DocumentParser) Parse(ctx context.Context, location string) (capability.Registry, error) {
	scheme := schemeOf(location)
	f, ok := p.fetchers[scheme]
	if !ok {
		return nil, fmt.Errorf("no fetcher for scheme %q", scheme)
	}
	data, format, err := f.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	doc, err := DecodeDocument(data, format)
	if err != nil {
		return nil, err
	}
	return doc.Resolve(p.catalog)
}

// Loader accumulates the registries of several locations.
type Loader struct {
	parser Parser
}

// New creates a loader using parser.
func New(parser Parser) *Loader {
	return &Loader{parser: parser}
}

// Load parses every location in order and accumulates the results. A
// location yielding no providers contributes nothing. The first failure is
// returned as a *LoadError and no registry is produced.
func (l *Loader) Load(ctx context.Context, locations []string) (*capability.Accumulator, error) {
	acc := capability.NewAccumulator()
	for _, raw := range locations {
		location := strings.TrimSpace(raw)
		if location == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, &LoadError{Location: location, Err: err}
		}

		reg, err := l.parser.Parse(ctx, location)
		if err != nil {
			slog.Error(fmt.Sprintf("%s - Failed to load %s: %v", logPrefix, location, err))
			return nil, &LoadError{Location: location, Err: err}
		}
		if reg == nil || len(reg.Providers()) == 0 {
			slog.Debug(fmt.Sprintf("%s - %s contributed no providers", logPrefix, location))
			continue
		}
		slog.Info(fmt.Sprintf("%s - Loaded %d providers from %s", logPrefix, len(reg.Providers()), location))
		acc.AddRegistry(reg)
	}
	return acc, nil
}
