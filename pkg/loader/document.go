package loader

import (
	"fmt"

	"github.com/morezero/capability-facade/pkg/capability"
	"github.com/morezero/capability-facade/pkg/commsutil"
	"github.com/morezero/capability-facade/pkg/semver"
)

// Document is a declarative provider document. Providers holds references
// of the form name[@range], e.g. "stateful@^1.0.0".
type Document struct {
	Name      string   `json:"name" yaml:"name"`
	Providers []string `json:"providers" yaml:"providers"`
}

// DecodeDocument decodes a provider document. An empty format is sniffed.
func DecodeDocument(data []byte, format commsutil.Format) (*Document, error) {
	var doc Document
	if err := commsutil.DecodeDocument(data, format, &doc); err != nil {
		return nil, fmt.Errorf("decode provider document: %w", err)
	}
	return &doc, nil
}

// DocumentFor describes providers as a document pinning each exact version.
func DocumentFor(name string, providers []*capability.Provider) Document {
	doc := Document{Name: name, Providers: make([]string, 0, len(providers))}
	for _, p := range providers {
		doc.Providers = append(doc.Providers, semver.BuildProviderRef(p.Name(), p.Version()))
	}
	return doc
}

// Resolve looks up every reference of d in catalog, in document order.
func (d *Document) Resolve(catalog *Catalog) (*capability.List, error) {
	list := capability.NewList()
	for _, raw := range d.Providers {
		ref, err := semver.ParseProviderRef(raw)
		if err != nil {
			return nil, err
		}
		p, err := catalog.Resolve(ref)
		if err != nil {
			return nil, err
		}
		if err := list.AddProvider(p); err != nil {
			return nil, err
		}
	}
	return list, nil
}
