package cli

import (
	"fmt"

	"github.com/obernardovieira/solvis/internal/config"
	"github.com/obernardovieira/solvis/internal/graph/embedded"
)

// openStore opens the embedded call graph store. dbPath overrides the
// configured location when set.
func openStore(cfg *config.Config, dbPath string, opts ...embedded.Option) (*embedded.Store, error) {
	if dbPath == "" {
		dbPath = cfg.DBPath()
	}
	if dbPath == "" {
		return nil, fmt.Errorf("no graph database path; run 'solvis init' or use --db-path")
	}
	store, err := embedded.NewStore(dbPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	return store, nil
}
