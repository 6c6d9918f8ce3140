package graph

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/obernardovieira/solvis/internal/callgraph"
)

// Batch is the set of nodes and edges derived from one linked universe.
type Batch struct {
	Nodes []*Node
	Edges []*Edge
}

// Files returns the distinct file paths the batch has File nodes for.
func (b *Batch) Files() []string {
	var out []string
	for _, n := range b.Nodes {
		if n.Type == NodeFile {
			out = append(out, n.FilePath)
		}
	}
	return out
}

// FunctionNodeID returns the node ID of a function record declared in file.
// Unnamed functions are keyed by kind so fallback and receive stay distinct.
func FunctionNodeID(file string, f *callgraph.FunctionRecord) string {
	key := f.SignatureID
	if f.Name == "" {
		key += "#" + f.Kind
	}
	return NewNodeID(NodeFunction, file, key)
}

// ContractNodeID returns the node ID of a contract declared in file.
func ContractNodeID(file, name string) string {
	return NewNodeID(NodeContract, file, name)
}

// FileNodeID returns the node ID of a source file.
func FileNodeID(file string) string {
	return NewNodeID(NodeFile, file, file)
}

// FromUniverse converts a linked universe into store records. Calls left
// unresolved produce no edge; their callee names are kept on the calling
// function under PropUnresolved.
func FromUniverse(u *callgraph.Universe) *Batch {
	b := &Batch{}
	files := make(map[string]bool)
	addFile := func(path string) string {
		id := FileNodeID(path)
		if !files[path] {
			files[path] = true
			b.Nodes = append(b.Nodes, &Node{
				ID:            id,
				Type:          NodeFile,
				Name:          filepath.Base(path),
				QualifiedName: path,
				FilePath:      path,
			})
		}
		return id
	}
	imports := make(map[string]bool)

	for _, c := range u.Contracts {
		fileID := addFile(c.FilePath)
		contractID := ContractNodeID(c.FilePath, c.Name)
		b.Nodes = append(b.Nodes, &Node{
			ID:            contractID,
			Type:          NodeContract,
			Name:          c.Name,
			QualifiedName: c.Name,
			FilePath:      c.FilePath,
			Line:          c.Line,
			Contract:      c.Name,
			Properties:    map[string]string{PropKind: c.Kind},
		})
		b.Edges = append(b.Edges, newEdge(EdgeContains, fileID, contractID, ""))

		for _, imp := range c.ImportPaths {
			key := c.FilePath + "\x00" + imp
			if imports[key] {
				continue
			}
			imports[key] = true
			b.Edges = append(b.Edges, newEdge(EdgeImports, fileID, addFile(imp), ""))
		}

		for _, base := range c.BaseNames {
			if rec, ok := u.Contract(base); ok {
				b.Edges = append(b.Edges, newEdge(EdgeInherits, contractID, ContractNodeID(rec.FilePath, rec.Name), ""))
			}
		}

		for _, f := range c.Functions {
			fnID := FunctionNodeID(c.FilePath, f)
			props := map[string]string{PropKind: f.Kind}
			if f.Selector != "" {
				props[PropSelector] = f.Selector
			}
			if f.Visibility != "" {
				props[PropVisibility] = f.Visibility
			}
			if f.StateMutability != "" {
				props[PropMutability] = f.StateMutability
			}
			var unresolved []string
			for i, call := range f.Calls {
				if !call.IsResolved() {
					unresolved = append(unresolved, call.CalleeName)
					continue
				}
				tc, tf, ok := u.Function(call.ResolvedID)
				if !ok {
					unresolved = append(unresolved, call.CalleeName)
					continue
				}
				e := newEdge(EdgeCalls, fnID, FunctionNodeID(tc.FilePath, tf), strconv.Itoa(i))
				e.Properties = map[string]string{
					PropTarget:   call.ResolvedID,
					PropCallLine: strconv.Itoa(call.Line),
				}
				if call.Receiver != "" {
					e.Properties[PropReceiver] = call.Receiver
				}
				b.Edges = append(b.Edges, e)
			}
			if len(unresolved) > 0 {
				props[PropUnresolved] = strings.Join(unresolved, ",")
			}
			b.Nodes = append(b.Nodes, &Node{
				ID:            fnID,
				Type:          NodeFunction,
				Name:          f.Name,
				QualifiedName: c.Name + "." + f.Name,
				FilePath:      c.FilePath,
				Line:          f.Line,
				Contract:      c.Name,
				Signature:     f.SignatureID,
				Properties:    props,
			})
			b.Edges = append(b.Edges, newEdge(EdgeContains, contractID, fnID, ""))
		}
	}
	return b
}

func newEdge(t EdgeType, src, dst, disc string) *Edge {
	return &Edge{ID: NewEdgeID(t, src, dst, disc), Type: t, SourceID: src, TargetID: dst}
}
