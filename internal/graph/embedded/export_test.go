package embedded

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/obernardovieira/solvis/internal/graph"
)

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()

	src := newTestStore(t)
	n := seed(t, src)

	var buf bytes.Buffer
	if err := src.Export(ctx, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 16 {
		t.Fatalf("exported %d records, want 16", len(lines))
	}
	if !strings.Contains(lines[0], `"kind":"node"`) || !strings.Contains(lines[len(lines)-1], `"kind":"edge"`) {
		t.Errorf("nodes should precede edges")
	}

	dst := newTestStore(t)
	// Pre-existing data is dropped by Import.
	if err := dst.AddNode(ctx, &graph.Node{ID: "stale", Type: graph.NodeFile, Name: "Old.sol"}); err != nil {
		t.Fatal(err)
	}
	if err := dst.Import(ctx, &buf); err != nil {
		t.Fatalf("Import: %v", err)
	}

	for key, want := range n {
		got, err := dst.GetNode(ctx, want.ID)
		if err != nil {
			t.Errorf("GetNode %s after import: %v", key, err)
			continue
		}
		if got.Name != want.Name || got.Signature != want.Signature {
			t.Errorf("node %s = %+v, want %+v", key, got, want)
		}
	}
	if _, err := dst.GetNode(ctx, "stale"); err == nil {
		t.Error("stale node survived import")
	}

	callers, err := dst.GetNeighbors(ctx, n["transfer"].ID, graph.EdgeCalls, graph.Incoming)
	if err != nil {
		t.Fatal(err)
	}
	if g := names(callers); !equal(g, []string{"deposit", "sweep"}) {
		t.Errorf("callers after import = %v", g)
	}
	stats, _ := dst.Stats(ctx)
	if stats.NodeCount != 7 || stats.EdgeCount != 9 {
		t.Errorf("stats after import = %+v", stats)
	}
}

func TestImportRejectsUnknownKind(t *testing.T) {
	s := newTestStore(t)
	err := s.Import(context.Background(), strings.NewReader(`{"kind":"blob","data":{}}`+"\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown record kind") {
		t.Errorf("err = %v", err)
	}
}
