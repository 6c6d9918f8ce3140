package graph

import (
	"crypto/sha256"
	"fmt"
)

// NodeType represents the kind of entity in the call graph store.
type NodeType string

const (
	NodeFile     NodeType = "File"
	NodeContract NodeType = "Contract"
	NodeFunction NodeType = "Function"
)

// EdgeType represents a relationship between two nodes.
type EdgeType string

const (
	EdgeContains EdgeType = "Contains" // file -> contract, contract -> function
	EdgeInherits EdgeType = "Inherits" // contract -> base contract
	EdgeImports  EdgeType = "Imports"  // file -> imported file
	EdgeCalls    EdgeType = "Calls"    // function -> resolved target function
)

// Property keys used on nodes and edges.
const (
	PropKind       = "kind"
	PropSelector   = "selector"
	PropVisibility = "visibility"
	PropMutability = "state_mutability"
	PropTarget     = "target"
	PropCallLine   = "line"
	PropReceiver   = "receiver"
	PropUnresolved = "unresolved_calls"
)

// Node is a file, contract or function in the store.
type Node struct {
	ID            string            `json:"id"`
	Type          NodeType          `json:"type"`
	Name          string            `json:"name"`
	QualifiedName string            `json:"qualified_name"`
	FilePath      string            `json:"file_path"`
	Line          int               `json:"line"`
	Contract      string            `json:"contract,omitempty"`
	Signature     string            `json:"signature,omitempty"`
	Properties    map[string]string `json:"properties,omitempty"`
}

// Edge represents a relationship between two nodes.
type Edge struct {
	ID         string            `json:"id"`
	Type       EdgeType          `json:"type"`
	SourceID   string            `json:"source_id"`
	TargetID   string            `json:"target_id"`
	Properties map[string]string `json:"properties,omitempty"`
}

// GraphStats holds aggregate statistics about the store.
type GraphStats struct {
	NodeCount   int64              `json:"node_count"`
	EdgeCount   int64              `json:"edge_count"`
	NodesByType map[NodeType]int64 `json:"nodes_by_type"`
	EdgesByType map[EdgeType]int64 `json:"edges_by_type"`
}

// NewNodeID generates a deterministic node ID from the type, file path, and name.
// The ID is a hex-encoded SHA-256 hash prefix to keep keys compact.
func NewNodeID(nodeType NodeType, filePath, name string) string {
	raw := fmt.Sprintf("%s:%s:%s", nodeType, filePath, name)
	h := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", h[:12])
}

// NewEdgeID derives an edge ID from its endpoints and type. A discriminator
// separates parallel edges such as two calls to the same target.
func NewEdgeID(edgeType EdgeType, sourceID, targetID, discriminator string) string {
	raw := fmt.Sprintf("%s:%s:%s:%s", edgeType, sourceID, targetID, discriminator)
	h := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", h[:12])
}
