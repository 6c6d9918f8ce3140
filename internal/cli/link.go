package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/obernardovieira/solvis/internal/config"
	"github.com/obernardovieira/solvis/internal/graph"
	"github.com/obernardovieira/solvis/internal/graph/embedded"
	"github.com/obernardovieira/solvis/internal/graph/neo4j"
	"github.com/obernardovieira/solvis/internal/linker"
	"github.com/obernardovieira/solvis/internal/parser"
	"github.com/obernardovieira/solvis/internal/parser/solc"
	"github.com/obernardovieira/solvis/internal/parser/solidity"
	"github.com/obernardovieira/solvis/internal/render"
)

// linkFlags override configuration for one invocation.
type linkFlags struct {
	parser         string
	out            string
	formats        []string
	store          string
	dbPath         string
	dependencyRoot string
}

func (f *linkFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.parser, "parser", "", "parser backend: native or solc")
	cmd.Flags().StringVar(&f.out, "out", "", "output directory for rendered graphs")
	cmd.Flags().StringSliceVar(&f.formats, "format", nil, "output format: edgebundle, gnn or json (repeatable)")
	cmd.Flags().StringVar(&f.store, "store", "", "graph storage: embedded, neo4j or none")
	cmd.Flags().StringVar(&f.dbPath, "db-path", "", "path for the embedded graph database")
	cmd.Flags().StringVar(&f.dependencyRoot, "dependency-root", "", "directory holding external packages")
}

func (f *linkFlags) apply(cfg *config.Config) {
	if f.parser != "" {
		cfg.Parser.Backend = f.parser
	}
	if f.out != "" {
		cfg.Output.Dir = f.out
	}
	if len(f.formats) > 0 {
		cfg.Output.Formats = f.formats
	}
	if f.store != "" {
		cfg.Graph.Storage = f.store
	}
	if f.dbPath != "" {
		cfg.Graph.DBPath = f.dbPath
	}
	if f.dependencyRoot != "" {
		cfg.Resolve.DependencyRoot = f.dependencyRoot
	}
}

func newLinkCmd() *cobra.Command {
	var flags linkFlags

	cmd := &cobra.Command{
		Use:   "link [files...]",
		Short: "Build resolved call graphs for Solidity entry files",
		Long: `Profile, extract and resolve the call graph of each entry file, then
write the configured outputs and update the graph store.

Entry files default to the 'entries' list of the project config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			flags.apply(cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}
			entries, err := entryFiles(cfg, args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			s, err := newSession(ctx, cfg, newLogger(cmd, cfg))
			if err != nil {
				return err
			}
			defer s.Close()

			results, err := s.linker.Link(ctx, entries)
			if len(results) > 0 {
				printSummary(cmd.OutOrStdout(), results)
			}
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

// entryFiles returns absolute entry paths: command-line arguments relative
// to the working directory, else the configured entries relative to the
// project root.
func entryFiles(cfg *config.Config, args []string) ([]string, error) {
	var out []string
	if len(args) > 0 {
		for _, a := range args {
			p, err := filepath.Abs(a)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	}
	for _, e := range cfg.Entries {
		if !filepath.IsAbs(e) {
			e = filepath.Join(cfg.Project.Root, e)
		}
		out = append(out, filepath.Clean(e))
	}
	if len(out) == 0 {
		return nil, errors.New("no entry files; pass them as arguments or list them under 'entries' in the config")
	}
	return out, nil
}

// session is a linker wired to the configured parser and sinks. It can run
// any number of times; the stores stay open until Close.
type session struct {
	linker  *linker.Linker
	closers []func() error
}

func newSession(ctx context.Context, cfg *config.Config, log *slog.Logger) (*session, error) {
	paths, err := cfg.PathResolver()
	if err != nil {
		return nil, fmt.Errorf("import resolution: %w", err)
	}

	remappings := make([]string, 0, len(paths.Remappings))
	for _, r := range paths.Remappings {
		remappings = append(remappings, r.String())
	}
	registry := parser.NewRegistry()
	registry.Register(solidity.NewParser())
	registry.Register(solc.NewParser(cfg.Parser.SolcPath, cfg.Project.Root, remappings))
	p, err := registry.Lookup(cfg.Parser.Backend)
	if err != nil {
		return nil, err
	}

	s := &session{}
	var sinks []linker.Sink
	if len(cfg.Output.Formats) > 0 {
		formats := make([]render.Format, 0, len(cfg.Output.Formats))
		for _, name := range cfg.Output.Formats {
			f, err := render.ParseFormat(name)
			if err != nil {
				return nil, err
			}
			formats = append(formats, f)
		}
		sinks = append(sinks, render.NewFileSink(cfg.OutputDir(), formats, log))
	}

	switch cfg.Graph.Storage {
	case "embedded":
		store, err := openStore(cfg, "", embedded.WithLogger(log))
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store.Close)
		sinks = append(sinks, graph.NewStoreSink(store))
	case "neo4j":
		loader, err := neo4j.NewLoader(ctx, cfg.Graph.Neo4jURI, cfg.Graph.Neo4jUser, cfg.Graph.Neo4jPassword, log)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { return loader.Close(context.Background()) })
		if err := loader.CreateIndexes(ctx); err != nil {
			s.Close()
			return nil, err
		}
		sinks = append(sinks, loader)
	}

	s.linker = linker.NewLinker(p, paths, log, sinks...)
	return s, nil
}

// Close releases the stores in reverse order of opening.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

var (
	summaryHeader = lipgloss.NewStyle().Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#C2410C", Dark: "#FB923C"})
	cellStyle     = lipgloss.NewStyle().Width(11).Align(lipgloss.Right)
)

func printSummary(out io.Writer, results []*linker.Result) {
	row := func(cells ...string) string {
		rendered := make([]string, len(cells))
		for i, c := range cells {
			rendered[i] = cellStyle.Render(c)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
	}

	wd, _ := os.Getwd()
	fmt.Fprintln(out, summaryHeader.Render(row("contracts", "functions", "calls", "resolved", "unresolved"))+"  "+summaryHeader.Render("entry"))
	for _, r := range results {
		st := r.Universe.Stats()
		unresolved := strconv.Itoa(r.Unresolved)
		line := row(strconv.Itoa(st.Contracts), strconv.Itoa(st.Functions), strconv.Itoa(st.Calls),
			strconv.Itoa(st.Resolved), unresolved)
		if r.Unresolved > 0 {
			line = warnStyle.Render(line)
		}
		name := r.EntryFile
		if rel, err := filepath.Rel(wd, name); err == nil && !filepath.IsAbs(rel) && len(rel) < len(name) {
			name = rel
		}
		fmt.Fprintf(out, "%s  %s\n", line, name)
	}
}
