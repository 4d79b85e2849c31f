// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package plan

import (
	"fmt"
	"strconv"

	"github.com/emicklei/dot"
	"github.com/heplan/heplan/pkg/util/treeprinter"
)

// FmtFlags controls how much detail Format prints.
type FmtFlags int

const (
	// FmtIDs prefixes every node with its ID.
	FmtIDs FmtFlags = 1 << iota
	// FmtSchema adds the output schema below every node.
	FmtSchema
)

// Format returns the plan rooted at the graph's root as a tree. Shared nodes
// are printed once per consumer.
func Format(g *Graph, flags FmtFlags) string {
	if g.Root() == NoNode {
		return "<empty>\n"
	}
	tp := treeprinter.New()
	formatNode(g, &tp, g.Root(), flags)
	return tp.String()
}

func formatNode(g *Graph, tp *treeprinter.Node, id NodeID, flags FmtFlags) {
	n := g.Node(id)
	text := n.String()
	if flags&FmtIDs != 0 {
		text = fmt.Sprintf("%d: %s", n.ID, text)
	}
	child := tp.Child(text)
	if flags&FmtSchema != 0 {
		child.Child("columns: " + n.Schema.String())
	}
	for _, in := range n.Inputs {
		formatNode(g, child, in, flags)
	}
}

// FormatDot renders the reachable plan as a Graphviz digraph. Edges point
// from consumers to their inputs and are labeled with the input ordinal.
func FormatDot(g *Graph) string {
	gr := dot.NewGraph(dot.Directed)
	nodes := make(map[NodeID]dot.Node)
	reachable := g.Reachable()
	for _, id := range reachable {
		n := g.Node(id)
		nodes[id] = gr.Node(strconv.Itoa(int(id))).
			Label(n.String()).
			Attr("shape", "box")
	}
	for _, id := range reachable {
		n := g.Node(id)
		for i, in := range n.Inputs {
			gr.Edge(nodes[id], nodes[g.Resolve(in)], strconv.Itoa(i))
		}
	}
	return gr.String()
}
