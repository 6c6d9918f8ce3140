package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/obernardovieira/solvis/internal/graph"
)

func newQueryCmd() *cobra.Command {
	var (
		nodeType    string
		namePattern string
		contract    string
		filePath    string
		signature   string
		dbPath      string
		jsonOut     bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the stored call graph",
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

			nodes, err := store.QueryNodes(context.Background(), graph.NodeFilter{
				Type:        graph.NodeType(nodeType),
				NamePattern: namePattern,
				Contract:    contract,
				FilePath:    filePath,
				Signature:   signature,
			})
			if err != nil {
				return fmt.Errorf("query nodes: %w", err)
			}
			sortNodes(nodes)

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, nodes)
			}
			if len(nodes) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}
			fmt.Fprintf(out, "%-10s  %-44s  %s\n", "Type", "Name", "Location")
			fmt.Fprintf(out, "%-10s  %-44s  %s\n", "----------", strings.Repeat("-", 44), "--------")
			for _, n := range nodes {
				fmt.Fprintf(out, "%-10s  %-44s  %s\n", n.Type, displayName(n), location(n.FilePath, n.Line))
			}
			fmt.Fprintf(out, "\n%d result(s)\n", len(nodes))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db-path", "", "path for the graph database (default from config)")
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")
	cmd.Flags().StringVar(&nodeType, "type", "", "filter by node type: File, Contract or Function")
	cmd.Flags().StringVar(&namePattern, "name", "", "filter by name pattern (glob)")
	cmd.Flags().StringVar(&contract, "contract", "", "filter by contract name")
	cmd.Flags().StringVar(&filePath, "file", "", "filter by file path")
	cmd.Flags().StringVar(&signature, "signature", "", "filter by signature, e.g. Token:transfer:address:uint256")

	cmd.AddCommand(newQueryCallsCmd("callees", graph.Outgoing))
	cmd.AddCommand(newQueryCallsCmd("callers", graph.Incoming))
	cmd.AddCommand(newQueryContractsCmd())
	cmd.AddCommand(newQueryUnusedCmd())
	return cmd
}

// callEntry is one resolved call edge seen from a function.
type callEntry struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Line     string `json:"line,omitempty"`
	Receiver string `json:"receiver,omitempty"`
	FilePath string `json:"file_path"`
}

func newQueryCallsCmd(use string, dir graph.Direction) *cobra.Command {
	short := "List the functions called by a function"
	if dir == graph.Incoming {
		short = "List the functions calling a function"
	}
	return &cobra.Command{
		Use:   use + " <function>",
		Short: short,
		Long: short + `.

<function> is a signature such as Token:transfer:address:uint256, a
Contract.function pair, or a bare function name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, flagString(cmd, "db-path"))
			if err != nil {
				return err
			}
			defer store.Close()

			entries, unresolved, err := collectCalls(context.Background(), store, args[0], dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flagBool(cmd, "json") {
				return writeJSON(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintf(out, "No %s found.\n", use)
			}
			for _, e := range entries {
				other, file := e.To, e.FilePath
				if dir == graph.Incoming {
					other = e.From
				}
				recv := ""
				if e.Receiver != "" {
					recv = "  via " + e.Receiver
				}
				fmt.Fprintf(out, "  %-44s  %s%s\n", other, location(file, atoi(e.Line)), recv)
			}
			if len(unresolved) > 0 {
				fmt.Fprintf(out, "\nUnresolved: %s\n", strings.Join(unresolved, ", "))
			}
			return nil
		},
	}
}

// findFunctions resolves a function reference to stored function nodes.
func findFunctions(ctx context.Context, store graph.Store, ref string) ([]*graph.Node, error) {
	filter := graph.NodeFilter{Type: graph.NodeFunction}
	switch {
	case strings.Contains(ref, ":"):
		filter.Signature = ref
	case strings.Contains(ref, "."):
		filter.Contract, filter.NamePattern, _ = strings.Cut(ref, ".")
	default:
		filter.NamePattern = ref
	}
	nodes, err := store.QueryNodes(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query functions: %w", err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no function matches %q", ref)
	}
	sortNodes(nodes)
	return nodes, nil
}

// collectCalls returns the Calls edges touching every function matching ref
// in direction dir. For outgoing queries it also returns the callee names
// that stayed unresolved.
func collectCalls(ctx context.Context, store graph.Store, ref string, dir graph.Direction) ([]callEntry, []string, error) {
	fns, err := findFunctions(ctx, store, ref)
	if err != nil {
		return nil, nil, err
	}
	var entries []callEntry
	var unresolved []string
	for _, fn := range fns {
		edges, err := store.GetEdges(ctx, fn.ID, graph.EdgeCalls)
		if err != nil {
			return nil, nil, fmt.Errorf("get calls of %s: %w", fn.Signature, err)
		}
		for _, e := range edges {
			var otherID string
			switch {
			case dir == graph.Outgoing && e.SourceID == fn.ID:
				otherID = e.TargetID
			case dir == graph.Incoming && e.TargetID == fn.ID:
				otherID = e.SourceID
			default:
				continue
			}
			other, err := store.GetNode(ctx, otherID)
			if err != nil {
				return nil, nil, fmt.Errorf("get node %s: %w", otherID, err)
			}
			entry := callEntry{
				Line:     e.Properties[graph.PropCallLine],
				Receiver: e.Properties[graph.PropReceiver],
			}
			if dir == graph.Outgoing {
				entry.From, entry.To, entry.FilePath = fn.Signature, other.Signature, fn.FilePath
			} else {
				entry.From, entry.To, entry.FilePath = other.Signature, fn.Signature, other.FilePath
			}
			entries = append(entries, entry)
		}
		if dir == graph.Outgoing && fn.Properties[graph.PropUnresolved] != "" {
			unresolved = append(unresolved, strings.Split(fn.Properties[graph.PropUnresolved], ",")...)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].FilePath != entries[j].FilePath {
			return entries[i].FilePath < entries[j].FilePath
		}
		return atoi(entries[i].Line) < atoi(entries[j].Line)
	})
	return entries, unresolved, nil
}

// contractEntry summarises one stored contract.
type contractEntry struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	FilePath  string   `json:"file_path"`
	Line      int      `json:"line"`
	Bases     []string `json:"bases,omitempty"`
	Functions int      `json:"functions"`
}

func newQueryContractsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contracts",
		Short: "List stored contracts with their bases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, flagString(cmd, "db-path"))
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := listContracts(context.Background(), store)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flagBool(cmd, "json") {
				return writeJSON(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No contracts found.")
				return nil
			}
			for _, c := range entries {
				bases := ""
				if len(c.Bases) > 0 {
					bases = " is " + strings.Join(c.Bases, ", ")
				}
				fmt.Fprintf(out, "  %-10s %s%s  (%d functions)  %s\n", c.Kind, c.Name, bases, c.Functions, location(c.FilePath, c.Line))
			}
			return nil
		},
	}
}

func listContracts(ctx context.Context, store graph.Store) ([]contractEntry, error) {
	nodes, err := store.QueryNodes(ctx, graph.NodeFilter{Type: graph.NodeContract})
	if err != nil {
		return nil, fmt.Errorf("query contracts: %w", err)
	}
	sortNodes(nodes)
	entries := make([]contractEntry, 0, len(nodes))
	for _, n := range nodes {
		bases, err := store.GetNeighbors(ctx, n.ID, graph.EdgeInherits, graph.Outgoing)
		if err != nil {
			return nil, fmt.Errorf("get bases of %s: %w", n.Name, err)
		}
		fns, err := store.GetNeighbors(ctx, n.ID, graph.EdgeContains, graph.Outgoing)
		if err != nil {
			return nil, fmt.Errorf("get functions of %s: %w", n.Name, err)
		}
		e := contractEntry{Name: n.Name, Kind: n.Properties[graph.PropKind], FilePath: n.FilePath, Line: n.Line, Functions: len(fns)}
		for _, b := range bases {
			e.Bases = append(e.Bases, b.Name)
		}
		sort.Strings(e.Bases)
		entries = append(entries, e)
	}
	return entries, nil
}

// unusedEntry is a function no stored call reaches.
type unusedEntry struct {
	Signature  string `json:"signature"`
	Visibility string `json:"visibility,omitempty"`
	FilePath   string `json:"file_path"`
	Line       int    `json:"line"`
}

func newQueryUnusedCmd() *cobra.Command {
	var includeExternal bool

	cmd := &cobra.Command{
		Use:   "unused",
		Short: "Find functions with no incoming Calls edges",
		Long: `Identify functions that no linked call reaches. Public and external
functions are excluded by default since transactions and other contracts
may call them; use --include-external to list them too.

Fallback and receive functions and interface declarations are always
excluded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, flagString(cmd, "db-path"))
			if err != nil {
				return err
			}
			defer store.Close()

			unused, err := findUnused(context.Background(), store, includeExternal)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flagBool(cmd, "json") {
				return writeJSON(out, unused)
			}
			if len(unused) == 0 {
				fmt.Fprintln(out, "No unused functions found.")
				return nil
			}
			for _, u := range unused {
				fmt.Fprintf(out, "  %-44s  %-9s  %s\n", u.Signature, u.Visibility, location(u.FilePath, u.Line))
			}
			fmt.Fprintf(out, "\n%d potentially unused function(s)\n", len(unused))
			return nil
		},
	}
	cmd.Flags().BoolVar(&includeExternal, "include-external", false, "include public and external functions")
	return cmd
}

func findUnused(ctx context.Context, store graph.Store, includeExternal bool) ([]unusedEntry, error) {
	fns, err := store.QueryNodes(ctx, graph.NodeFilter{Type: graph.NodeFunction})
	if err != nil {
		return nil, fmt.Errorf("query functions: %w", err)
	}
	interfaces := make(map[string]bool)
	contracts, err := store.QueryNodes(ctx, graph.NodeFilter{Type: graph.NodeContract})
	if err != nil {
		return nil, fmt.Errorf("query contracts: %w", err)
	}
	for _, c := range contracts {
		if c.Properties[graph.PropKind] == "interface" {
			interfaces[c.Name] = true
		}
	}

	var unused []unusedEntry
	for _, fn := range fns {
		if skipForUnused(fn, includeExternal) || interfaces[fn.Contract] {
			continue
		}
		callers, err := store.GetNeighbors(ctx, fn.ID, graph.EdgeCalls, graph.Incoming)
		if err != nil {
			return nil, fmt.Errorf("get callers of %s: %w", fn.Signature, err)
		}
		if len(callers) == 0 {
			unused = append(unused, unusedEntry{
				Signature:  fn.Signature,
				Visibility: fn.Properties[graph.PropVisibility],
				FilePath:   fn.FilePath,
				Line:       fn.Line,
			})
		}
	}
	sort.Slice(unused, func(i, j int) bool {
		if unused[i].FilePath != unused[j].FilePath {
			return unused[i].FilePath < unused[j].FilePath
		}
		return unused[i].Line < unused[j].Line
	})
	return unused, nil
}

// skipForUnused reports whether fn is reachable from outside the graph.
func skipForUnused(fn *graph.Node, includeExternal bool) bool {
	switch fn.Properties[graph.PropKind] {
	case "fallback", "receive":
		return true
	}
	if includeExternal {
		return false
	}
	switch fn.Properties[graph.PropVisibility] {
	case "public", "external":
		return true
	}
	return false
}

func sortNodes(nodes []*graph.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].FilePath != nodes[j].FilePath {
			return nodes[i].FilePath < nodes[j].FilePath
		}
		if nodes[i].Line != nodes[j].Line {
			return nodes[i].Line < nodes[j].Line
		}
		return nodes[i].QualifiedName < nodes[j].QualifiedName
	})
}

func displayName(n *graph.Node) string {
	if n.Type == graph.NodeFunction && n.Signature != "" {
		return n.Signature
	}
	if n.Type == graph.NodeFile {
		return n.Name
	}
	return n.QualifiedName
}

func location(file string, line int) string {
	if line > 0 {
		return fmt.Sprintf("%s:%d", file, line)
	}
	return file
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func flagBool(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	return v
}
