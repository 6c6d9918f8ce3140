package embedded

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/obernardovieira/solvis/internal/graph"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func names(nodes []*graph.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	sort.Strings(out)
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// seed stores a small vault project: Vault.sol holds Vault, which calls into
// Token.sol's Token.
func seed(t *testing.T, s *Store) map[string]*graph.Node {
	t.Helper()
	ctx := context.Background()
	nodes := map[string]*graph.Node{
		"vaultFile": {Type: graph.NodeFile, Name: "Vault.sol", FilePath: "/p/Vault.sol"},
		"tokenFile": {Type: graph.NodeFile, Name: "Token.sol", FilePath: "/p/Token.sol"},
		"Vault":     {Type: graph.NodeContract, Name: "Vault", FilePath: "/p/Vault.sol", Contract: "Vault"},
		"Token":     {Type: graph.NodeContract, Name: "Token", FilePath: "/p/Token.sol", Contract: "Token"},
		"deposit":   {Type: graph.NodeFunction, Name: "deposit", FilePath: "/p/Vault.sol", Contract: "Vault", Signature: "Vault:deposit:uint256"},
		"sweep":     {Type: graph.NodeFunction, Name: "sweep", FilePath: "/p/Vault.sol", Contract: "Vault", Signature: "Vault:sweep"},
		"transfer":  {Type: graph.NodeFunction, Name: "transfer", FilePath: "/p/Token.sol", Contract: "Token", Signature: "Token:transfer:address:uint256"},
	}
	for key, n := range nodes {
		n.ID = graph.NewNodeID(n.Type, n.FilePath, key)
		if err := s.AddNode(ctx, n); err != nil {
			t.Fatalf("AddNode %s: %v", key, err)
		}
	}
	edges := []struct {
		typ      graph.EdgeType
		src, dst string
	}{
		{graph.EdgeContains, "vaultFile", "Vault"},
		{graph.EdgeContains, "tokenFile", "Token"},
		{graph.EdgeContains, "Vault", "deposit"},
		{graph.EdgeContains, "Vault", "sweep"},
		{graph.EdgeContains, "Token", "transfer"},
		{graph.EdgeImports, "vaultFile", "tokenFile"},
		{graph.EdgeCalls, "deposit", "transfer"},
		{graph.EdgeCalls, "sweep", "transfer"},
		{graph.EdgeCalls, "sweep", "deposit"},
	}
	for _, e := range edges {
		src, dst := nodes[e.src].ID, nodes[e.dst].ID
		edge := &graph.Edge{ID: graph.NewEdgeID(e.typ, src, dst, ""), Type: e.typ, SourceID: src, TargetID: dst}
		if err := s.AddEdge(ctx, edge); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	return nodes
}

func TestAddGetNode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	node := &graph.Node{
		ID:            graph.NewNodeID(graph.NodeFunction, "/p/Vault.sol", "Vault:deposit:uint256"),
		Type:          graph.NodeFunction,
		Name:          "deposit",
		QualifiedName: "Vault.deposit",
		FilePath:      "/p/Vault.sol",
		Line:          12,
		Contract:      "Vault",
		Signature:     "Vault:deposit:uint256",
		Properties:    map[string]string{graph.PropSelector: "0xb6b55f25"},
	}
	if err := s.AddNode(ctx, node); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	got, err := s.GetNode(ctx, node.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.Name != "deposit" || got.QualifiedName != "Vault.deposit" || got.Line != 12 {
		t.Errorf("got %+v", got)
	}
	if got.Contract != "Vault" || got.Signature != "Vault:deposit:uint256" {
		t.Errorf("Contract/Signature = %q/%q", got.Contract, got.Signature)
	}
	if got.Properties[graph.PropSelector] != "0xb6b55f25" {
		t.Errorf("selector = %q", got.Properties[graph.PropSelector])
	}

	if _, err := s.GetNode(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetNode(missing) err = %v, want ErrNotFound", err)
	}
}

func TestAddNodeReplacesIndexes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	node := &graph.Node{ID: "f1", Type: graph.NodeFunction, Name: "f", FilePath: "/p/A.sol", Signature: "A:f"}
	if err := s.AddNode(ctx, node); err != nil {
		t.Fatal(err)
	}
	replaced := &graph.Node{ID: "f1", Type: graph.NodeFunction, Name: "f", FilePath: "/p/A.sol", Signature: "A:f:uint256"}
	if err := s.AddNode(ctx, replaced); err != nil {
		t.Fatal(err)
	}

	old, err := s.QueryNodes(ctx, graph.NodeFilter{Signature: "A:f"})
	if err != nil {
		t.Fatal(err)
	}
	if len(old) != 0 {
		t.Errorf("stale signature still indexed: %v", names(old))
	}
	cur, _ := s.QueryNodes(ctx, graph.NodeFilter{Signature: "A:f:uint256"})
	if len(cur) != 1 {
		t.Errorf("got %d nodes for new signature, want 1", len(cur))
	}
}

func TestQueryNodes(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter graph.NodeFilter
		want   []string
	}{
		{"by type", graph.NodeFilter{Type: graph.NodeContract}, []string{"Token", "Vault"}},
		{"by file", graph.NodeFilter{FilePath: "/p/Vault.sol"}, []string{"Vault", "Vault.sol", "deposit", "sweep"}},
		{"by file and type", graph.NodeFilter{FilePath: "/p/Vault.sol", Type: graph.NodeFunction}, []string{"deposit", "sweep"}},
		{"by contract", graph.NodeFilter{Contract: "Token"}, []string{"Token", "transfer"}},
		{"by signature", graph.NodeFilter{Signature: "Vault:sweep"}, []string{"sweep"}},
		{"signature prefix does not match", graph.NodeFilter{Signature: "Vault:deposit"}, []string{}},
		{"by name pattern", graph.NodeFilter{NamePattern: "*.sol"}, []string{"Token.sol", "Vault.sol"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryNodes(ctx, tt.filter)
			if err != nil {
				t.Fatalf("QueryNodes: %v", err)
			}
			if g := names(got); !equal(g, tt.want) {
				t.Errorf("got %v, want %v", g, tt.want)
			}
		})
	}
}

func TestGetEdgesAndNeighbors(t *testing.T) {
	s := newTestStore(t)
	n := seed(t, s)
	ctx := context.Background()

	edges, err := s.GetEdges(ctx, n["sweep"].ID, graph.EdgeCalls)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 2 {
		t.Errorf("sweep has %d call edges, want 2", len(edges))
	}
	all, _ := s.GetEdges(ctx, n["deposit"].ID, "")
	if len(all) != 3 { // contained by Vault, calls transfer, called by sweep
		t.Errorf("deposit has %d edges, want 3", len(all))
	}

	tests := []struct {
		name string
		node string
		typ  graph.EdgeType
		dir  graph.Direction
		want []string
	}{
		{"callees", "sweep", graph.EdgeCalls, graph.Outgoing, []string{"deposit", "transfer"}},
		{"callers", "transfer", graph.EdgeCalls, graph.Incoming, []string{"deposit", "sweep"}},
		{"both directions", "deposit", graph.EdgeCalls, graph.Both, []string{"sweep", "transfer"}},
		{"any edge type", "deposit", "", graph.Incoming, []string{"Vault", "sweep"}},
		{"imports", "vaultFile", graph.EdgeImports, graph.Outgoing, []string{"Token.sol"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetNeighbors(ctx, n[tt.node].ID, tt.typ, tt.dir)
			if err != nil {
				t.Fatalf("GetNeighbors: %v", err)
			}
			if g := names(got); !equal(g, tt.want) {
				t.Errorf("got %v, want %v", g, tt.want)
			}
		})
	}
}

func TestDeleteByFile(t *testing.T) {
	s := newTestStore(t)
	n := seed(t, s)
	ctx := context.Background()

	if err := s.DeleteByFile(ctx, "/p/Token.sol"); err != nil {
		t.Fatalf("DeleteByFile: %v", err)
	}
	if _, err := s.GetNode(ctx, n["transfer"].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("transfer still present: %v", err)
	}
	callees, _ := s.GetNeighbors(ctx, n["sweep"].ID, graph.EdgeCalls, graph.Outgoing)
	if g := names(callees); !equal(g, []string{"deposit"}) {
		t.Errorf("sweep callees = %v, want [deposit]", g)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.NodeCount != 4 {
		t.Errorf("NodeCount = %d, want 4", stats.NodeCount)
	}
	// Vault file/contract/functions: 3 contains + 1 call remain.
	if stats.EdgeCount != 4 {
		t.Errorf("EdgeCount = %d, want 4", stats.EdgeCount)
	}

	if err := s.DeleteByFile(ctx, "/p/None.sol"); err != nil {
		t.Errorf("DeleteByFile on unknown file: %v", err)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.NodeCount != 7 || stats.EdgeCount != 9 {
		t.Errorf("counts = %d nodes, %d edges; want 7, 9", stats.NodeCount, stats.EdgeCount)
	}
	want := map[graph.NodeType]int64{graph.NodeFile: 2, graph.NodeContract: 2, graph.NodeFunction: 3}
	for typ, c := range want {
		if stats.NodesByType[typ] != c {
			t.Errorf("NodesByType[%s] = %d, want %d", typ, stats.NodesByType[typ], c)
		}
	}
	if stats.EdgesByType[graph.EdgeCalls] != 3 || stats.EdgesByType[graph.EdgeContains] != 5 || stats.EdgesByType[graph.EdgeImports] != 1 {
		t.Errorf("EdgesByType = %v", stats.EdgesByType)
	}
}

func TestBadgerLogger(t *testing.T) {
	var buf bytes.Buffer
	l := badgerLogger{slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	l.Infof("compaction %d\n", 1)
	l.Debugf("level %d\n", 0)
	if buf.Len() != 0 {
		t.Fatalf("info/debug should be dropped, got %q", buf.String())
	}
	l.Warningf("value log %s\n", "truncated")
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, `msg="value log truncated"`) {
		t.Errorf("unexpected output %q", out)
	}
}

func TestNewStoreWithLogger(t *testing.T) {
	s, err := NewStore(t.TempDir(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), WithLogger(nil))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
