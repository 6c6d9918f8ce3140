package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/obernardovieira/solvis/internal/graph"
)

func newStatusCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show call graph store statistics",
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

			ctx := context.Background()
			stats, err := store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("get stats: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Call Graph Status\n")
			fmt.Fprintf(out, "=================\n\n")
			fmt.Fprintf(out, "  Total nodes: %d\n", stats.NodeCount)
			fmt.Fprintf(out, "  Total edges: %d\n\n", stats.EdgeCount)

			if len(stats.NodesByType) > 0 {
				fmt.Fprintf(out, "  Nodes by type:\n")
				for _, nt := range sortedKeys(stats.NodesByType) {
					fmt.Fprintf(out, "    %-20s %d\n", nt, stats.NodesByType[nt])
				}
				fmt.Fprintln(out)
			}
			if len(stats.EdgesByType) > 0 {
				fmt.Fprintf(out, "  Edges by type:\n")
				for _, et := range sortedKeys(stats.EdgesByType) {
					fmt.Fprintf(out, "    %-20s %d\n", et, stats.EdgesByType[et])
				}
				fmt.Fprintln(out)
			}

			// Functions carrying unresolved call names.
			fns, err := store.QueryNodes(ctx, graph.NodeFilter{Type: graph.NodeFunction})
			if err != nil {
				return fmt.Errorf("query functions: %w", err)
			}
			var withUnresolved int
			for _, f := range fns {
				if f.Properties[graph.PropUnresolved] != "" {
					withUnresolved++
				}
			}
			fmt.Fprintf(out, "  Functions with unresolved calls: %d\n", withUnresolved)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db-path", "", "path for the graph database (default from config)")
	return cmd
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
