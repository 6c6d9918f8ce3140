package graph

import (
	"context"
	"fmt"

	"github.com/obernardovieira/solvis/internal/callgraph"
)

// StoreSink writes linked universes into a Store. Each file's previous
// records are deleted the first time the sink sees that file in a run.
type StoreSink struct {
	store   Store
	cleared map[string]bool
}

// NewStoreSink returns a sink writing to store.
func NewStoreSink(store Store) *StoreSink {
	return &StoreSink{store: store, cleared: make(map[string]bool)}
}

func (s *StoreSink) Name() string { return "store" }

// StartRun forgets which files were cleared, so the next run replaces them
// again.
func (s *StoreSink) StartRun() { clear(s.cleared) }

// Consume replaces the stored records of every file in u.
func (s *StoreSink) Consume(ctx context.Context, _ string, u *callgraph.Universe) error {
	b := FromUniverse(u)
	for _, f := range b.Files() {
		if s.cleared[f] {
			continue
		}
		if err := s.store.DeleteByFile(ctx, f); err != nil {
			return fmt.Errorf("clear %s: %w", f, err)
		}
		s.cleared[f] = true
	}
	for _, n := range b.Nodes {
		if err := s.store.AddNode(ctx, n); err != nil {
			return fmt.Errorf("add node %s: %w", n.QualifiedName, err)
		}
	}
	for _, e := range b.Edges {
		if err := s.store.AddEdge(ctx, e); err != nil {
			return fmt.Errorf("add %s edge: %w", e.Type, err)
		}
	}
	return nil
}
