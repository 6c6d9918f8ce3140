package neo4j

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/obernardovieira/solvis/internal/callgraph"
)

type query struct {
	cypher string
	params map[string]any
}

func recorder(queries *[]query, failOn string) runFunc {
	return func(_ context.Context, cypher string, params map[string]any) error {
		*queries = append(*queries, query{cypher, params})
		if failOn != "" && strings.Contains(cypher, failOn) {
			return errors.New("boom")
		}
		return nil
	}
}

func universe() *callgraph.Universe {
	base := &callgraph.ContractRecord{
		Name: "Base", Kind: "contract", FilePath: "/p/Base.sol",
		Functions: []*callgraph.FunctionRecord{{Name: "greet", SignatureID: "Base:greet", Kind: "function"}},
	}
	child := &callgraph.ContractRecord{
		Name: "Child", Kind: "contract", FilePath: "/p/Child.sol",
		BaseNames:   []string{"Base"},
		ImportPaths: []string{"/p/Base.sol"},
		Functions: []*callgraph.FunctionRecord{{
			Name: "hello", SignatureID: "Child:hello", Kind: "function",
			Calls: []*callgraph.CallRef{{CalleeName: "greet", Line: 7, ResolvedID: "Base:greet"}},
		}},
	}
	return callgraph.NewUniverse("/p/Child.sol", []*callgraph.ContractRecord{base, child})
}

func TestConsume(t *testing.T) {
	var queries []query
	l := newLoader(recorder(&queries, ""), nil)

	if err := l.Consume(context.Background(), "/p/Child.sol", universe()); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	want := []string{
		"DETACH DELETE",
		"SET n:SolFile",
		"SET n:SolContract",
		"SET n:SolFunction",
		"[r:DEFINES",
		"[r:IMPORTS",
		"[r:INHERITS",
		"[r:CALLS",
	}
	if len(queries) != len(want) {
		t.Fatalf("ran %d queries, want %d", len(queries), len(want))
	}
	for i, w := range want {
		if !strings.Contains(queries[i].cypher, w) {
			t.Errorf("query %d = %q, want it to contain %q", i, queries[i].cypher, w)
		}
	}

	files := queries[0].params["files"].([]string)
	if len(files) != 2 {
		t.Errorf("cleaned files = %v", files)
	}
	calls := queries[7].params["batch"].([]map[string]any)
	if len(calls) != 1 {
		t.Fatalf("call batch = %v", calls)
	}
	props := calls[0]["props"].(map[string]any)
	if props["target"] != "Base:greet" || props["line"] != int64(7) {
		t.Errorf("call props = %v", props)
	}

	// A second entry sharing the files does not clean them again.
	queries = nil
	if err := l.Consume(context.Background(), "/p/Child.sol", universe()); err != nil {
		t.Fatal(err)
	}
	for _, q := range queries {
		if strings.Contains(q.cypher, "DETACH DELETE") {
			t.Error("files cleaned twice in one run")
		}
	}

	// A new run cleans them again.
	l.StartRun()
	queries = nil
	if err := l.Consume(context.Background(), "/p/Child.sol", universe()); err != nil {
		t.Fatal(err)
	}
	if len(queries) == 0 || !strings.Contains(queries[0].cypher, "DETACH DELETE") {
		t.Error("StartRun did not reset cleaned files")
	}
}

func TestConsumeError(t *testing.T) {
	var queries []query
	l := newLoader(recorder(&queries, "SolContract"), nil)
	err := l.Consume(context.Background(), "/p/Child.sol", universe())
	if err == nil || !strings.Contains(err.Error(), "load Contract nodes") {
		t.Errorf("err = %v", err)
	}
}

func TestCreateIndexes(t *testing.T) {
	var queries []query
	l := newLoader(recorder(&queries, ""), nil)
	if err := l.CreateIndexes(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(queries) != 2 || !strings.Contains(queries[0].cypher, "SolNode") {
		t.Errorf("queries = %v", queries)
	}
	if l.Name() != "neo4j" {
		t.Errorf("Name = %q", l.Name())
	}
	if err := l.Close(context.Background()); err != nil {
		t.Errorf("Close without driver: %v", err)
	}
}
