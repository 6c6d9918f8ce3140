package parser

import (
	"fmt"
	"sync"
)

// Registry manages the available parser backends.
type Registry struct {
	mu      sync.RWMutex
	parsers map[Backend]Parser
	order   []Backend
}

// NewRegistry creates a new parser registry.
func NewRegistry() *Registry {
	return &Registry{
		parsers: make(map[Backend]Parser),
		order:   make([]Backend, 0),
	}
}

// Register adds a parser to the registry, replacing any parser previously
// registered under the same backend name.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := p.Backend()
	if _, exists := r.parsers[b]; !exists {
		r.order = append(r.order, b)
	}
	r.parsers[b] = p
}

// Get retrieves a parser by backend name.
func (r *Registry) Get(b Backend) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.parsers[b]
	return p, ok
}

// Lookup retrieves a parser by backend name or returns ErrUnknownBackend.
func (r *Registry) Lookup(name string) (Parser, error) {
	p, ok := r.Get(Backend(name))
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownBackend, name, r.Backends())
	}
	return p, nil
}

// All returns all registered parsers in registration order.
func (r *Registry) All() []Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Parser, len(r.order))
	for i, b := range r.order {
		result[i] = r.parsers[b]
	}
	return result
}

// Backends returns the registered backend names in registration order.
func (r *Registry) Backends() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Backend, len(r.order))
	copy(result, r.order)
	return result
}
