// Package linker drives the call graph pipeline over a list of entry files.
// Each entry file is profiled and extracted into its own universe; once
// every file is done, all calls are resolved and the universes are handed
// to the configured sinks.
package linker

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/obernardovieira/solvis/internal/callgraph"
	"github.com/obernardovieira/solvis/internal/parser"
)

// Sink consumes one entry file's resolved universe.
type Sink interface {
	Name() string
	Consume(ctx context.Context, entryFile string, u *callgraph.Universe) error
}

// RunStarter is implemented by sinks that keep state for the length of one
// link run. StartRun is called before any entry file is processed.
type RunStarter interface {
	StartRun()
}

// Result is the linked universe of one entry file.
type Result struct {
	EntryFile  string
	Universe   *callgraph.Universe
	Unresolved int
}

// Linker resolves call graphs for entry files.
type Linker struct {
	parser parser.Parser
	paths  *callgraph.PathResolver
	sinks  []Sink
	log    *slog.Logger
}

// NewLinker creates a Linker. A nil logger discards output.
func NewLinker(p parser.Parser, paths *callgraph.PathResolver, logger *slog.Logger, sinks ...Sink) *Linker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Linker{parser: p, paths: paths, sinks: sinks, log: logger}
}

// Link runs the pipeline. Variable types are shared across entry files;
// every other registry is fresh per file. A read, parse or sink failure
// aborts the run.
func (l *Linker) Link(ctx context.Context, entryFiles []string) ([]*Result, error) {
	for _, s := range l.sinks {
		if rs, ok := s.(RunStarter); ok {
			rs.StartRun()
		}
	}
	vars := callgraph.NewVariableTypeRegistry()
	a := callgraph.NewAnalyzer(l.parser, l.paths)

	results := make([]*Result, 0, len(entryFiles))
	for _, entry := range entryFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ps := callgraph.NewProfileState(vars)
		if err := a.Profile(entry, ps); err != nil {
			return nil, fmt.Errorf("profile %s: %w", entry, err)
		}
		records, err := a.Extract(entry, callgraph.NewExtractState(ps))
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", entry, err)
		}
		l.log.Debug("extracted", "entry", entry, "files", len(ps.Visited), "contracts", len(records))
		results = append(results, &Result{EntryFile: entry, Universe: callgraph.NewUniverse(entry, records)})
	}

	for _, r := range results {
		r.Unresolved = callgraph.ResolveUniverse(r.Universe, vars)
		st := r.Universe.Stats()
		l.log.Info("linked", "entry", r.EntryFile, "contracts", st.Contracts, "functions", st.Functions,
			"calls", st.Calls, "unresolved", r.Unresolved)
	}

	for _, r := range results {
		for _, s := range l.sinks {
			if err := s.Consume(ctx, r.EntryFile, r.Universe); err != nil {
				return results, fmt.Errorf("sink %s: %w", s.Name(), err)
			}
		}
	}
	return results, nil
}
