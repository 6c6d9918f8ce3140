package embedded

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v4"

	"github.com/obernardovieira/solvis/internal/graph"
)

// exportRecord is the JSON-lines format for export/import.
type exportRecord struct {
	Kind string          `json:"kind"` // "node" or "edge"
	Data json.RawMessage `json:"data"`
}

// Export writes all nodes and then all edges to w in JSON-lines format.
func (s *Store) Export(_ context.Context, w io.Writer) error {
	enc := json.NewEncoder(w)
	var encErr error
	emit := func(kind string, v any) bool {
		data, err := json.Marshal(v)
		if err != nil {
			return true // skip bad records
		}
		if err := enc.Encode(exportRecord{Kind: kind, Data: data}); err != nil {
			encErr = fmt.Errorf("encode %s: %w", kind, err)
			return false
		}
		return true
	}
	err := s.db.View(func(txn *badger.Txn) error {
		if err := scanNodes(txn, func(n *graph.Node) bool { return emit("node", n) }); err != nil {
			return fmt.Errorf("export nodes: %w", err)
		}
		if encErr != nil {
			return encErr
		}
		if err := scanEdges(txn, func(e *graph.Edge) bool { return emit("edge", e) }); err != nil {
			return fmt.Errorf("export edges: %w", err)
		}
		return encErr
	})
	return err
}

// Import reads JSON-lines from r, clears the store, and inserts all records.
func (s *Store) Import(ctx context.Context, r io.Reader) error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}

	scanner := bufio.NewScanner(r)
	// Increase buffer for potentially large lines.
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec exportRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("unmarshal record: %w", err)
		}

		switch rec.Kind {
		case "node":
			var node graph.Node
			if err := json.Unmarshal(rec.Data, &node); err != nil {
				return fmt.Errorf("unmarshal node: %w", err)
			}
			if err := s.AddNode(ctx, &node); err != nil {
				return fmt.Errorf("import node %s: %w", node.ID, err)
			}
		case "edge":
			var edge graph.Edge
			if err := json.Unmarshal(rec.Data, &edge); err != nil {
				return fmt.Errorf("unmarshal edge: %w", err)
			}
			if err := s.AddEdge(ctx, &edge); err != nil {
				return fmt.Errorf("import edge %s: %w", edge.ID, err)
			}
		default:
			return fmt.Errorf("unknown record kind: %q", rec.Kind)
		}
	}

	return scanner.Err()
}
