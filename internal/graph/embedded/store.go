package embedded

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/obernardovieira/solvis/internal/graph"
)

// Key prefixes for the BadgerDB key scheme.
const (
	prefixNode           = "n:"
	prefixEdge           = "e:"
	prefixIdxType        = "idx:type:"
	prefixIdxFile        = "idx:file:"
	prefixIdxSig         = "idx:sig:"
	prefixIdxEdge        = "idx:edge:"
	prefixIdxReverseEdge = "idx:redge:"
)

// ErrNotFound is returned when a node or edge does not exist.
var ErrNotFound = errors.New("not found")

// Store is the badger-backed graph.Archive.
type Store struct {
	db *badger.DB
}

var _ graph.Archive = (*Store)(nil)

// Option configures NewStore.
type Option func(*badger.Options)

// WithLogger routes badger's warnings and errors to logger. Without it
// badger is silent.
func WithLogger(logger *slog.Logger) Option {
	return func(o *badger.Options) {
		if logger != nil {
			o.Logger = badgerLogger{logger.With("component", "badger")}
		}
	}
}

// NewStore opens (or creates) a BadgerDB-backed graph store at dbPath.
func NewStore(dbPath string, options ...Option) (*Store, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil
	for _, o := range options {
		o(&opts)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Store{db: db}, nil
}

func nodeKey(id string) []byte { return []byte(prefixNode + id) }

func edgeKey(id string) []byte { return []byte(prefixEdge + id) }

func indexTypeKey(nodeType graph.NodeType, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixIdxType, nodeType, id))
}

func indexFileKey(filePath, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixIdxFile, filePath, id))
}

func indexSigKey(sig, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixIdxSig, sig, id))
}

func indexEdgeKey(sourceID string, edgeType graph.EdgeType, edgeID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%s", prefixIdxEdge, sourceID, edgeType, edgeID))
}

func indexReverseEdgeKey(targetID string, edgeType graph.EdgeType, edgeID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%s", prefixIdxReverseEdge, targetID, edgeType, edgeID))
}

// nodeIndexKeys lists the secondary index keys of a node.
func nodeIndexKeys(n *graph.Node) [][]byte {
	keys := [][]byte{indexTypeKey(n.Type, n.ID)}
	if n.FilePath != "" {
		keys = append(keys, indexFileKey(n.FilePath, n.ID))
	}
	if n.Signature != "" {
		keys = append(keys, indexSigKey(n.Signature, n.ID))
	}
	return keys
}

func (s *Store) AddNode(_ context.Context, node *graph.Node) error {
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		// Drop indexes of a node being replaced.
		if old, err := getNodeInTxn(txn, node.ID); err == nil {
			for _, k := range nodeIndexKeys(old) {
				_ = txn.Delete(k)
			}
		}
		if err := txn.Set(nodeKey(node.ID), data); err != nil {
			return err
		}
		for _, k := range nodeIndexKeys(node) {
			if err := txn.Set(k, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// deleteNodeInTxn removes a node and all its edges within a transaction.
func deleteNodeInTxn(txn *badger.Txn, id string) error {
	node, err := getNodeInTxn(txn, id)
	if err != nil {
		return err
	}
	for _, prefix := range []string{prefixIdxEdge, prefixIdxReverseEdge} {
		edgeIDs, err := scanIndexPrefix(txn, []byte(prefix+id+":"))
		if err != nil {
			return err
		}
		for _, eid := range edgeIDs {
			if err := deleteEdgeInTxn(txn, eid); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}
	}
	for _, k := range nodeIndexKeys(node) {
		_ = txn.Delete(k)
	}
	return txn.Delete(nodeKey(id))
}

func (s *Store) GetNode(_ context.Context, id string) (*graph.Node, error) {
	var node *graph.Node
	err := s.db.View(func(txn *badger.Txn) error {
		n, err := getNodeInTxn(txn, id)
		node = n
		return err
	})
	return node, err
}

func getNodeInTxn(txn *badger.Txn, id string) (*graph.Node, error) {
	item, err := txn.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("get node %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", id, err)
	}
	var node graph.Node
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &node)
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal node %s: %w", id, err)
	}
	return &node, nil
}

func (s *Store) QueryNodes(_ context.Context, filter graph.NodeFilter) ([]*graph.Node, error) {
	var results []*graph.Node
	err := s.db.View(func(txn *badger.Txn) error {
		var prefix []byte
		switch {
		case filter.Signature != "":
			prefix = []byte(prefixIdxSig + filter.Signature + ":")
		case filter.FilePath != "":
			prefix = []byte(prefixIdxFile + filter.FilePath + ":")
		case filter.Type != "":
			prefix = []byte(prefixIdxType + string(filter.Type) + ":")
		default:
			return scanNodes(txn, func(node *graph.Node) bool {
				if matchesFilter(node, filter) {
					results = append(results, node)
				}
				return true
			})
		}
		ids, err := scanIndexPrefix(txn, prefix)
		if err != nil {
			return err
		}
		for _, id := range ids {
			node, err := getNodeInTxn(txn, id)
			if err != nil {
				continue // index entry for deleted node; skip
			}
			if matchesFilter(node, filter) {
				results = append(results, node)
			}
		}
		return nil
	})
	return results, err
}

func (s *Store) AddEdge(_ context.Context, edge *graph.Edge) error {
	data, err := json.Marshal(edge)
	if err != nil {
		return fmt.Errorf("marshal edge: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(edgeKey(edge.ID), data); err != nil {
			return err
		}
		if err := txn.Set(indexEdgeKey(edge.SourceID, edge.Type, edge.ID), nil); err != nil {
			return err
		}
		return txn.Set(indexReverseEdgeKey(edge.TargetID, edge.Type, edge.ID), nil)
	})
}

func deleteEdgeInTxn(txn *badger.Txn, id string) error {
	edge, err := getEdgeInTxn(txn, id)
	if err != nil {
		return err
	}
	_ = txn.Delete(indexEdgeKey(edge.SourceID, edge.Type, edge.ID))
	_ = txn.Delete(indexReverseEdgeKey(edge.TargetID, edge.Type, edge.ID))
	return txn.Delete(edgeKey(id))
}

func (s *Store) GetEdges(_ context.Context, nodeID string, edgeType graph.EdgeType) ([]*graph.Edge, error) {
	seen := make(map[string]struct{})
	var results []*graph.Edge
	err := s.db.View(func(txn *badger.Txn) error {
		for _, prefix := range []string{prefixIdxEdge, prefixIdxReverseEdge} {
			ids, err := scanIndexPrefix(txn, buildEdgeIndexPrefix(prefix, nodeID, edgeType))
			if err != nil {
				return err
			}
			for _, eid := range ids {
				if _, ok := seen[eid]; ok {
					continue
				}
				seen[eid] = struct{}{}
				e, err := getEdgeInTxn(txn, eid)
				if err != nil {
					continue
				}
				results = append(results, e)
			}
		}
		return nil
	})
	return results, err
}

func (s *Store) GetNeighbors(_ context.Context, nodeID string, edgeType graph.EdgeType, direction graph.Direction) ([]*graph.Node, error) {
	var results []*graph.Node
	err := s.db.View(func(txn *badger.Txn) error {
		seen := make(map[string]struct{})
		follow := func(prefix string, other func(*graph.Edge) string) error {
			edgeIDs, err := scanIndexPrefix(txn, buildEdgeIndexPrefix(prefix, nodeID, edgeType))
			if err != nil {
				return err
			}
			for _, eid := range edgeIDs {
				e, err := getEdgeInTxn(txn, eid)
				if err != nil {
					continue
				}
				id := other(e)
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				n, err := getNodeInTxn(txn, id)
				if err != nil {
					continue
				}
				results = append(results, n)
			}
			return nil
		}
		// Outgoing: nodeID is source -> follow forward index -> neighbor is target.
		if direction == graph.Outgoing || direction == graph.Both {
			if err := follow(prefixIdxEdge, func(e *graph.Edge) string { return e.TargetID }); err != nil {
				return err
			}
		}
		// Incoming: nodeID is target -> follow reverse index -> neighbor is source.
		if direction == graph.Incoming || direction == graph.Both {
			if err := follow(prefixIdxReverseEdge, func(e *graph.Edge) string { return e.SourceID }); err != nil {
				return err
			}
		}
		return nil
	})
	return results, err
}

func (s *Store) DeleteByFile(_ context.Context, filePath string) error {
	var nodeIDs []string
	err := s.db.View(func(txn *badger.Txn) error {
		ids, err := scanIndexPrefix(txn, []byte(prefixIdxFile+filePath+":"))
		nodeIDs = ids
		return err
	})
	if err != nil {
		return err
	}
	for _, id := range nodeIDs {
		err := s.db.Update(func(txn *badger.Txn) error {
			return deleteNodeInTxn(txn, id)
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete node %s for file %s: %w", id, filePath, err)
		}
	}
	return nil
}

func (s *Store) Stats(_ context.Context) (*graph.GraphStats, error) {
	stats := &graph.GraphStats{
		NodesByType: make(map[graph.NodeType]int64),
		EdgesByType: make(map[graph.EdgeType]int64),
	}
	err := s.db.View(func(txn *badger.Txn) error {
		if err := scanNodes(txn, func(node *graph.Node) bool {
			stats.NodeCount++
			stats.NodesByType[node.Type]++
			return true
		}); err != nil {
			return err
		}
		return scanEdges(txn, func(edge *graph.Edge) bool {
			stats.EdgeCount++
			stats.EdgesByType[edge.Type]++
			return true
		})
	})
	return stats, err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- helpers ---

// buildEdgeIndexPrefix constructs the prefix for scanning edge indexes.
// If edgeType is empty, it scans all edge types for the given nodeID.
func buildEdgeIndexPrefix(prefix, nodeID string, edgeType graph.EdgeType) []byte {
	if edgeType == "" {
		return []byte(fmt.Sprintf("%s%s:", prefix, nodeID))
	}
	return []byte(fmt.Sprintf("%s%s:%s:", prefix, nodeID, edgeType))
}

// scanIndexPrefix scans all keys with the given prefix and extracts the trailing
// ID segment (the last colon-separated part).
func scanIndexPrefix(txn *badger.Txn, prefix []byte) ([]string, error) {
	var ids []string
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.Valid(); it.Next() {
		key := string(it.Item().Key())
		if idx := strings.LastIndex(key, ":"); idx >= 0 && idx < len(key)-1 {
			ids = append(ids, key[idx+1:])
		}
	}
	return ids, nil
}

// scanNodes calls fn for every stored node. Return false from fn to stop.
func scanNodes(txn *badger.Txn, fn func(*graph.Node) bool) error {
	return scanValues(txn, []byte(prefixNode), func(val []byte) bool {
		var node graph.Node
		if err := json.Unmarshal(val, &node); err != nil {
			return true
		}
		return fn(&node)
	})
}

// scanEdges calls fn for every stored edge. Return false from fn to stop.
func scanEdges(txn *badger.Txn, fn func(*graph.Edge) bool) error {
	return scanValues(txn, []byte(prefixEdge), func(val []byte) bool {
		var edge graph.Edge
		if err := json.Unmarshal(val, &edge); err != nil {
			return true
		}
		return fn(&edge)
	})
}

func scanValues(txn *badger.Txn, prefix []byte, fn func([]byte) bool) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.Valid(); it.Next() {
		var cont bool
		err := it.Item().Value(func(val []byte) error {
			cont = fn(val)
			return nil
		})
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return nil
}

func getEdgeInTxn(txn *badger.Txn, id string) (*graph.Edge, error) {
	item, err := txn.Get(edgeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("get edge %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get edge %s: %w", id, err)
	}
	var edge graph.Edge
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &edge)
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal edge %s: %w", id, err)
	}
	return &edge, nil
}

// matchesFilter checks whether a node matches all non-zero fields in the filter.
func matchesFilter(node *graph.Node, filter graph.NodeFilter) bool {
	if filter.Type != "" && node.Type != filter.Type {
		return false
	}
	if filter.FilePath != "" && node.FilePath != filter.FilePath {
		return false
	}
	if filter.Contract != "" && node.Contract != filter.Contract {
		return false
	}
	if filter.Signature != "" && node.Signature != filter.Signature {
		return false
	}
	if filter.NamePattern != "" {
		matched, err := filepath.Match(filter.NamePattern, node.Name)
		if err != nil || !matched {
			return false
		}
	}
	return true
}

// badgerLogger adapts slog to badger.Logger. Badger's info and debug
// chatter about compactions is dropped.
type badgerLogger struct{ log *slog.Logger }

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (badgerLogger) Infof(string, ...any)  {}
func (badgerLogger) Debugf(string, ...any) {}
