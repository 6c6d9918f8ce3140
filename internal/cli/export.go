package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/obernardovieira/solvis/internal/graph"
)

func newExportCmd() *cobra.Command {
	var (
		dbPath string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump the call graph store as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			return dumpGraph(context.Background(), store, w)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db-path", "", "path for the graph database (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newImportCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the call graph store with a JSON lines dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[0], err)
				}
				defer f.Close()
				r = f
			}

			store, err := openStore(cfg, dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := restoreGraph(context.Background(), store, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d nodes and %d edges.\n", stats.NodeCount, stats.EdgeCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db-path", "", "path for the graph database (default from config)")
	return cmd
}

func dumpGraph(ctx context.Context, a graph.Archive, w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := a.Export(ctx, bw); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return bw.Flush()
}

// restoreGraph replaces a's contents with the dump in r and reports what
// was loaded.
func restoreGraph(ctx context.Context, a graph.Archive, r io.Reader) (*graph.GraphStats, error) {
	if err := a.Import(ctx, bufio.NewReader(r)); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	stats, err := a.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return stats, nil
}
