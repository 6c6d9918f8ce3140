package render

import (
	"strings"

	"github.com/obernardovieira/solvis/internal/callgraph"
)

// BundleNode is one leaf of a hierarchical edge-bundling layout. Names are
// dotted paths whose prefixes form the hierarchy.
type BundleNode struct {
	Name    string   `json:"name"`
	Size    int      `json:"size"`
	Imports []string `json:"imports"`
}

// BundleName returns the layout name of a function:
// `solvis.<Contract>.<function>(<types>)`. Unnamed functions use their kind.
func BundleName(contract string, f *callgraph.FunctionRecord) string {
	name := f.Name
	if name == "" {
		name = f.Kind
	}
	return "solvis." + contract + "." + name + "(" + strings.Join(f.ParamTypes, ",") + ")"
}

// EdgeBundle lists every function of u with the distinct functions it calls.
// Unresolved calls are omitted.
func EdgeBundle(u *callgraph.Universe) []BundleNode {
	out := make([]BundleNode, 0)
	for _, c := range u.Contracts {
		for _, f := range c.Functions {
			node := BundleNode{Name: BundleName(c.Name, f), Size: len(f.Calls), Imports: []string{}}
			seen := make(map[string]bool)
			for _, call := range f.Calls {
				if !call.IsResolved() {
					continue
				}
				tc, tf, ok := u.Function(call.ResolvedID)
				if !ok {
					continue
				}
				target := BundleName(tc.Name, tf)
				if !seen[target] {
					seen[target] = true
					node.Imports = append(node.Imports, target)
				}
			}
			out = append(out, node)
		}
	}
	return out
}
