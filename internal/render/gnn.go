package render

import (
	"strings"

	"github.com/obernardovieira/solvis/internal/callgraph"
)

// GNNNode is a graph node with a fixed-width feature vector.
type GNNNode struct {
	ID       int    `json:"id"`
	Label    string `json:"label"`
	Contract string `json:"contract"`
	// Declared is false for call targets with no function record.
	Declared bool      `json:"declared"`
	Features []float64 `json:"features"`
}

// GNNGraph is a call graph in COO form: EdgeIndex[0][i] calls EdgeIndex[1][i].
type GNNGraph struct {
	Features  []string  `json:"feature_names"`
	Nodes     []GNNNode `json:"nodes"`
	EdgeIndex [2][]int  `json:"edge_index"`
}

// GNNFeatures names the columns of GNNNode.Features.
var GNNFeatures = []string{"params", "calls", "resolved_calls", "is_external"}

func gnnKey(f *callgraph.FunctionRecord) string {
	if f.Name == "" {
		return f.SignatureID + "#" + f.Kind
	}
	return f.SignatureID
}

// GNN converts u into graph neural network input. Declared functions come
// first in universe order; unresolved calls add no edge.
func GNN(u *callgraph.Universe) *GNNGraph {
	g := &GNNGraph{
		Features:  GNNFeatures,
		Nodes:     []GNNNode{},
		EdgeIndex: [2][]int{{}, {}},
	}
	index := make(map[string]int)
	add := func(key string, n GNNNode) int {
		if id, ok := index[key]; ok {
			return id
		}
		n.ID = len(g.Nodes)
		index[key] = n.ID
		g.Nodes = append(g.Nodes, n)
		return n.ID
	}

	for _, c := range u.Contracts {
		for _, f := range c.Functions {
			resolved := 0
			for _, call := range f.Calls {
				if call.IsResolved() {
					resolved++
				}
			}
			external := 0.0
			if f.IsExternal() {
				external = 1
			}
			add(gnnKey(f), GNNNode{
				Label:    f.SignatureID,
				Contract: c.Name,
				Declared: true,
				Features: []float64{float64(len(f.ParamTypes)), float64(len(f.Calls)), float64(resolved), external},
			})
		}
	}

	for _, c := range u.Contracts {
		for _, f := range c.Functions {
			src := index[gnnKey(f)]
			for _, call := range f.Calls {
				if !call.IsResolved() {
					continue
				}
				var dst int
				if _, tf, ok := u.Function(call.ResolvedID); ok {
					dst = index[gnnKey(tf)]
				} else {
					dst = add("?"+call.ResolvedID, GNNNode{
						Label:    call.ResolvedID,
						Contract: strings.SplitN(call.ResolvedID, ":", 2)[0],
						Features: make([]float64, len(GNNFeatures)),
					})
				}
				g.EdgeIndex[0] = append(g.EdgeIndex[0], src)
				g.EdgeIndex[1] = append(g.EdgeIndex[1], dst)
			}
		}
	}
	return g
}
