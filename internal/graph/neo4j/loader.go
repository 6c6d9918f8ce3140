// Package neo4j loads linked call graphs into a Neo4j database using batch
// UNWIND queries.
package neo4j

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	driver "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/obernardovieira/solvis/internal/callgraph"
	"github.com/obernardovieira/solvis/internal/graph"
)

// Every loaded node carries the SolNode label plus one of these.
var nodeLabels = map[graph.NodeType]string{
	graph.NodeFile:     "SolFile",
	graph.NodeContract: "SolContract",
	graph.NodeFunction: "SolFunction",
}

var relTypes = map[graph.EdgeType]string{
	graph.EdgeContains: "DEFINES",
	graph.EdgeInherits: "INHERITS",
	graph.EdgeImports:  "IMPORTS",
	graph.EdgeCalls:    "CALLS",
}

// Load order: relationships need both endpoints to exist.
var (
	nodeOrder = []graph.NodeType{graph.NodeFile, graph.NodeContract, graph.NodeFunction}
	edgeOrder = []graph.EdgeType{graph.EdgeContains, graph.EdgeImports, graph.EdgeInherits, graph.EdgeCalls}
)

type runFunc func(ctx context.Context, cypher string, params map[string]any) error

// Loader writes universes to Neo4j. Like the embedded store sink, it clears
// each file's previous nodes the first time it sees the file.
type Loader struct {
	driver  driver.DriverWithContext
	run     runFunc
	log     *slog.Logger
	cleared map[string]bool
}

// NewLoader connects to Neo4j and returns a ready-to-use loader.
func NewLoader(ctx context.Context, uri, user, password string, logger *slog.Logger) (*Loader, error) {
	d, err := driver.NewDriverWithContext(uri, driver.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := d.VerifyConnectivity(ctx); err != nil {
		_ = d.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j at %s: %w", uri, err)
	}
	l := newLoader(nil, logger)
	l.driver = d
	l.run = func(ctx context.Context, cypher string, params map[string]any) error {
		_, err := driver.ExecuteQuery(ctx, d, cypher, params, driver.EagerResultTransformer)
		return err
	}
	return l, nil
}

func newLoader(run runFunc, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loader{run: run, log: logger, cleared: make(map[string]bool)}
}

// Close releases the underlying driver.
func (l *Loader) Close(ctx context.Context) error {
	if l.driver == nil {
		return nil
	}
	return l.driver.Close(ctx)
}

func (l *Loader) Name() string { return "neo4j" }

// StartRun forgets which files were cleaned in the previous run.
func (l *Loader) StartRun() { clear(l.cleared) }

// CreateIndexes ensures the lookup index on node IDs exists.
func (l *Loader) CreateIndexes(ctx context.Context) error {
	indexes := []string{
		"CREATE INDEX sol_node_id IF NOT EXISTS FOR (n:SolNode) ON (n.id)",
		"CREATE INDEX sol_function_signature IF NOT EXISTS FOR (n:SolFunction) ON (n.signature)",
	}
	for _, q := range indexes {
		if err := l.run(ctx, q, nil); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Consume loads one entry file's universe.
func (l *Loader) Consume(ctx context.Context, entryFile string, u *callgraph.Universe) error {
	b := graph.FromUniverse(u)

	var stale []string
	for _, f := range b.Files() {
		if !l.cleared[f] {
			l.cleared[f] = true
			stale = append(stale, f)
		}
	}
	if len(stale) > 0 {
		if err := l.run(ctx, "MATCH (n:SolNode) WHERE n.file IN $files DETACH DELETE n", map[string]any{"files": stale}); err != nil {
			return fmt.Errorf("clean files: %w", err)
		}
	}

	nodes := nodeBatches(b)
	for _, t := range nodeOrder {
		if len(nodes[t]) == 0 {
			continue
		}
		if err := l.run(ctx, nodeQuery(nodeLabels[t]), map[string]any{"batch": nodes[t]}); err != nil {
			return fmt.Errorf("load %s nodes: %w", t, err)
		}
	}
	edges := edgeBatches(b)
	for _, t := range edgeOrder {
		if len(edges[t]) == 0 {
			continue
		}
		if err := l.run(ctx, edgeQuery(relTypes[t]), map[string]any{"batch": edges[t]}); err != nil {
			return fmt.Errorf("load %s edges: %w", t, err)
		}
	}
	l.log.Debug("loaded into neo4j", "entry", entryFile, "nodes", len(b.Nodes), "edges", len(b.Edges))
	return nil
}

func nodeQuery(label string) string {
	return `UNWIND $batch AS row
MERGE (n:SolNode {id: row.id})
SET n:` + label + `, n += row.props`
}

func edgeQuery(rel string) string {
	return `UNWIND $batch AS row
MATCH (a:SolNode {id: row.src}), (b:SolNode {id: row.dst})
MERGE (a)-[r:` + rel + ` {id: row.id}]->(b)
SET r += row.props`
}

func nodeBatches(b *graph.Batch) map[graph.NodeType][]map[string]any {
	out := make(map[graph.NodeType][]map[string]any)
	for _, n := range b.Nodes {
		props := map[string]any{
			"name":           n.Name,
			"qualified_name": n.QualifiedName,
			"file":           n.FilePath,
			"line":           int64(n.Line),
		}
		if n.Contract != "" {
			props["contract"] = n.Contract
		}
		if n.Signature != "" {
			props["signature"] = n.Signature
		}
		for k, v := range n.Properties {
			props[k] = v
		}
		out[n.Type] = append(out[n.Type], map[string]any{"id": n.ID, "props": props})
	}
	return out
}

func edgeBatches(b *graph.Batch) map[graph.EdgeType][]map[string]any {
	out := make(map[graph.EdgeType][]map[string]any)
	for _, e := range b.Edges {
		props := make(map[string]any, len(e.Properties))
		for k, v := range e.Properties {
			if k == graph.PropCallLine {
				if line, err := strconv.ParseInt(v, 10, 64); err == nil {
					props[k] = line
					continue
				}
			}
			props[k] = v
		}
		out[e.Type] = append(out[e.Type], map[string]any{
			"id":    e.ID,
			"src":   e.SourceID,
			"dst":   e.TargetID,
			"props": props,
		})
	}
	return out
}
