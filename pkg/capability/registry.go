package capability

import "sync"

// Registry is a source of capability providers.
type Registry interface {
	Providers() []*Provider
}

// List is a fixed, in-memory registry.
type List struct {
	mu        sync.RWMutex
	providers []*Provider
}

// NewList creates a list holding providers. Invalid providers are skipped;
// use AddProvider to see why a provider is rejected.
func NewList(providers ...*Provider) *List {
	l := &List{}
	for _, p := range providers {
		_ = l.AddProvider(p)
	}
	return l
}

// AddProvider appends p.
func (l *List) AddProvider(p *Provider) error {
	if err := p.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.providers = append(l.providers, p)
	return nil
}

// Providers returns the providers in registration order.
func (l *List) Providers() []*Provider {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*Provider(nil), l.providers...)
}

// Accumulator unions the providers of several registries. Nothing is
// de-duplicated: a provider offered twice is returned twice.
type Accumulator struct {
	mu         sync.RWMutex
	registries []Registry
}

// NewAccumulator creates an accumulator over registries.
func NewAccumulator(registries ...Registry) *Accumulator {
	a := &Accumulator{}
	for _, r := range registries {
		a.AddRegistry(r)
	}
	return a
}

// AddRegistry appends a nested registry. Later registries' providers come
// after earlier ones.
func (a *Accumulator) AddRegistry(r Registry) {
	if r == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.registries = append(a.registries, r)
}

// AddProvider appends a single provider.
func (a *Accumulator) AddProvider(p *Provider) error {
	if err := p.Validate(); err != nil {
		return err
	}
	a.AddRegistry(NewList(p))
	return nil
}

// Providers returns every nested registry's providers in order.
func (a *Accumulator) Providers() []*Provider {
	a.mu.RLock()
	regs := append([]Registry(nil), a.registries...)
	a.mu.RUnlock()

	var out []*Provider
	for _, r := range regs {
		out = append(out, r.Providers()...)
	}
	return out
}
