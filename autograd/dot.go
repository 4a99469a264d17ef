package autograd

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// ErrInvalidRankDir is returned for a DOT layout direction other than LR or TB.
var ErrInvalidRankDir = errors.New("autograd: invalid rankdir, use LR or TB")

// Edge links a parent to a child that was computed from it.
type Edge struct {
	From, To *Value
}

// Trace collects every node reachable from root (parents before children)
// and every parent->child edge. It only reads the graph.
func Trace(root *Value) ([]*Value, []Edge) {
	nodes := TopoSort(root)
	var edges []Edge
	for _, n := range nodes {
		for _, p := range n.parents {
			edges = append(edges, Edge{From: p, To: n})
		}
	}
	return nodes, edges
}

// DOTOptions controls MarshalDOT output.
type DOTOptions struct {
	Name    string
	RankDir string // "LR" (default) or "TB"
}

// MarshalDOT renders the graph under root in Graphviz DOT, one record node
// per value labelled with its data and gradient.
func MarshalDOT(root *Value, opts DOTOptions) ([]byte, error) {
	rankdir := opts.RankDir
	if rankdir == "" {
		rankdir = "LR"
	}
	if rankdir != "LR" && rankdir != "TB" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRankDir, rankdir)
	}

	nodes, edges := Trace(root)
	g := dotGraph{DirectedGraph: simple.NewDirectedGraph(), rankdir: rankdir}
	ids := make(map[*Value]dotNode, len(nodes))
	for i, v := range nodes {
		n := dotNode{id: int64(i), v: v}
		ids[v] = n
		g.AddNode(n)
	}
	for _, e := range edges {
		g.SetEdge(simple.Edge{F: ids[e.From], T: ids[e.To]})
	}
	return dot.Marshal(g, opts.Name, "", "  ")
}

type dotGraph struct {
	*simple.DirectedGraph
	rankdir string
}

func (g dotGraph) DOTAttributers() (graph, node, edge encoding.Attributer) {
	return attributes{{Key: "rankdir", Value: g.rankdir}},
		attributes{{Key: "shape", Value: "record"}},
		attributes{}
}

type attributes []encoding.Attribute

func (a attributes) Attributes() []encoding.Attribute { return a }

// dotNode adapts a *Value to graph.Node.
type dotNode struct {
	id int64
	v  *Value
}

var _ graph.Node = dotNode{}

func (n dotNode) ID() int64 { return n.id }

func (n dotNode) Attributes() []encoding.Attribute {
	label := fmt.Sprintf(`"{ data %.4f | grad %.4f }"`, n.v.Data, n.v.Grad)
	if !n.v.IsLeaf() {
		label = fmt.Sprintf(`"{ %s | data %.4f | grad %.4f }"`, n.v.op, n.v.Data, n.v.Grad)
	}
	return []encoding.Attribute{{Key: "label", Value: label}}
}
