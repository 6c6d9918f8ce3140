package graph

import (
	"context"
	"io"
)

// Direction specifies the traversal direction for edge queries.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// NodeFilter specifies criteria for querying nodes.
type NodeFilter struct {
	Type        NodeType
	FilePath    string
	Contract    string
	NamePattern string // glob pattern matched against Name
	Signature   string
}

// Store is the interface for call graph persistence.
type Store interface {
	// AddNode inserts a node, replacing any node with the same ID.
	AddNode(ctx context.Context, node *Node) error

	// GetNode retrieves a single node by ID.
	GetNode(ctx context.Context, id string) (*Node, error)

	// QueryNodes returns all nodes matching the given filter.
	QueryNodes(ctx context.Context, filter NodeFilter) ([]*Node, error)

	// AddEdge inserts an edge, replacing any edge with the same ID.
	AddEdge(ctx context.Context, edge *Edge) error

	// GetEdges returns edges connected to nodeID with the given type.
	// If edgeType is empty, all edge types are returned.
	GetEdges(ctx context.Context, nodeID string, edgeType EdgeType) ([]*Edge, error)

	// GetNeighbors returns nodes connected to nodeID via edges of the given type
	// in the specified direction. If edgeType is empty, all edge types are traversed.
	GetNeighbors(ctx context.Context, nodeID string, edgeType EdgeType, direction Direction) ([]*Node, error)

	// DeleteByFile removes all nodes (and their edges) recorded for the file.
	// Re-linking a file deletes its previous records first.
	DeleteByFile(ctx context.Context, filePath string) error

	// Stats returns aggregate statistics about the graph.
	Stats(ctx context.Context) (*GraphStats, error)

	// Close releases resources held by the store.
	Close() error
}

// Archive is a Store that can be dumped to and restored from a JSON-lines
// stream. Import replaces everything the store holds.
type Archive interface {
	Store
	Export(ctx context.Context, w io.Writer) error
	Import(ctx context.Context, r io.Reader) error
}
