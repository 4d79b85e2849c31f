// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package plan implements the mutable plan graph that rewrite rules operate
// on. Nodes live in an arena addressed by NodeID. Replacing a node writes a
// single entry in a redirect table, so parents never hold stale pointers and
// shared subexpressions stay shared.
package plan

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// Graph is a DAG of plan nodes. A Graph is owned by a single compilation and
// is not safe for concurrent use. Errors detected while adding nodes are
// raised as panics that are caught at the optimizer boundary (see
// opt.CatchOptimizerError).
type Graph struct {
	// nodes is the arena. nodes[0] is unused so that NoNode is never a valid
	// node.
	nodes []*Node

	// redirect[id] is the node that replaced id, or NoNode.
	redirect []NodeID

	// keys[id] is the digest id was registered under.
	keys []string

	// digests maps a digest to the node that computes it.
	digests map[string]NodeID

	// dead marks nodes removed by garbage collection.
	dead bitset.BitSet

	root         NodeID
	frozen       bool
	replacements int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    []*Node{nil},
		redirect: []NodeID{NoNode},
		keys:     []string{""},
		digests:  make(map[string]NodeID),
	}
}

// Len returns the number of nodes ever added to the graph, including
// replaced and collected nodes.
func (g *Graph) Len() int {
	return len(g.nodes) - 1
}

func (g *Graph) checkID(id NodeID) {
	if id <= NoNode || int(id) >= len(g.nodes) {
		panic(errors.AssertionFailedf("invalid node id %d", id))
	}
}

// Resolve follows the redirect table from id to the node that currently
// stands for it.
func (g *Graph) Resolve(id NodeID) NodeID {
	g.checkID(id)
	r := id
	for g.redirect[r] != NoNode {
		r = g.redirect[r]
	}
	// Path compression.
	for id != r {
		next := g.redirect[id]
		g.redirect[id] = r
		id = next
	}
	return r
}

// Node returns the node that currently stands for id.
func (g *Graph) Node(id NodeID) *Node {
	return g.nodes[g.Resolve(id)]
}

// Input returns the node that currently stands for input i of n.
func (g *Graph) Input(n *Node, i int) *Node {
	return g.Node(n.Inputs[i])
}

func (g *Graph) live(id NodeID) bool {
	return g.redirect[id] == NoNode && !g.dead.Test(uint(id))
}

// IsLive returns true if id has been neither replaced nor collected.
func (g *Graph) IsLive(id NodeID) bool {
	g.checkID(id)
	return g.live(id)
}

func (g *Graph) normalizeInputs(n *Node) {
	for i, in := range n.Inputs {
		n.Inputs[i] = g.Resolve(in)
	}
}

// Add interns n. If the graph already contains a live node with the same
// digest, that node is returned and n is discarded; otherwise n is assigned
// a new ID.
func (g *Graph) Add(n *Node) NodeID {
	if g.frozen {
		panic(errors.AssertionFailedf("cannot add %s to a frozen plan graph", redact.Safe(n.Op)))
	}
	if n.Schema == nil {
		panic(errors.AssertionFailedf("%s node has no schema", redact.Safe(n.Op)))
	}
	g.normalizeInputs(n)
	key := n.digest()
	if id, ok := g.digests[key]; ok && g.live(id) {
		return id
	}
	id := NodeID(len(g.nodes))
	n.ID = id
	g.nodes = append(g.nodes, n)
	g.redirect = append(g.redirect, NoNode)
	g.keys = append(g.keys, key)
	g.digests[key] = id
	return id
}

// Lookup returns the live node with the same digest as n, if there is one.
func (g *Graph) Lookup(n *Node) (NodeID, bool) {
	cp := n.Copy()
	g.normalizeInputs(cp)
	id, ok := g.digests[cp.digest()]
	if !ok || !g.live(id) {
		return NoNode, false
	}
	return id, true
}

// Root returns the root of the plan.
func (g *Graph) Root() NodeID {
	if g.root == NoNode {
		return NoNode
	}
	return g.Resolve(g.root)
}

// SetRoot sets the root of the plan.
func (g *Graph) SetRoot(id NodeID) {
	if g.frozen {
		panic(errors.AssertionFailedf("cannot change the root of a frozen plan graph"))
	}
	g.root = g.Resolve(id)
}

// Mark returns a position that Rollback can return the graph to. Only nodes
// added since the mark can be rolled back; Rollback must not be called if a
// node was replaced after the mark.
type Mark struct {
	nodes        int
	replacements int
}

// Mark records the current state of the graph.
func (g *Graph) Mark() Mark {
	return Mark{nodes: len(g.nodes), replacements: g.replacements}
}

// Rollback discards every node added since m.
func (g *Graph) Rollback(m Mark) {
	if m.replacements != g.replacements {
		panic(errors.AssertionFailedf("cannot roll back across a node replacement"))
	}
	for id := len(g.nodes) - 1; id >= m.nodes; id-- {
		if g.digests[g.keys[id]] == NodeID(id) {
			delete(g.digests, g.keys[id])
		}
	}
	g.nodes = g.nodes[:m.nodes]
	g.redirect = g.redirect[:m.nodes]
	g.keys = g.keys[:m.nodes]
}

// Replace makes every reference to old refer to replacement instead. The
// replacement must not reach old through its inputs.
func (g *Graph) Replace(old, replacement NodeID) error {
	if g.frozen {
		return errors.AssertionFailedf("cannot replace nodes in a frozen plan graph")
	}
	old, replacement = g.Resolve(old), g.Resolve(replacement)
	if old == replacement {
		return nil
	}
	if g.reaches(replacement, old) {
		return errors.AssertionFailedf(
			"replacing node %d with node %d would create a cycle", old, replacement)
	}
	g.redirect[old] = replacement
	g.replacements++
	if g.digests[g.keys[old]] == old {
		delete(g.digests, g.keys[old])
	}
	if g.root == old {
		g.root = replacement
	}
	g.rekeyConsumers(replacement)
	return nil
}

// rekeyConsumers recomputes the digest of every live node that has id as an
// input, since their digests were computed with the replaced input.
func (g *Graph) rekeyConsumers(id NodeID) {
	for p := 1; p < len(g.nodes); p++ {
		pid := NodeID(p)
		if !g.live(pid) {
			continue
		}
		n := g.nodes[p]
		affected := false
		for _, in := range n.Inputs {
			if g.Resolve(in) == id {
				affected = true
				break
			}
		}
		if affected {
			g.rekey(pid)
		}
	}
}

func (g *Graph) rekey(id NodeID) {
	n := g.nodes[id]
	g.normalizeInputs(n)
	key := n.digest()
	if key == g.keys[id] {
		return
	}
	if g.digests[g.keys[id]] == id {
		delete(g.digests, g.keys[id])
	}
	g.keys[id] = key
	if existing, ok := g.digests[key]; !ok || !g.live(existing) {
		g.digests[key] = id
	}
}

// Rekey recomputes every digest. It must be called after correlation
// references inside existing nodes have been resolved in place.
func (g *Graph) Rekey() {
	g.digests = make(map[string]NodeID, len(g.nodes))
	for id := 1; id < len(g.nodes); id++ {
		if !g.live(NodeID(id)) {
			continue
		}
		n := g.nodes[id]
		g.normalizeInputs(n)
		g.keys[id] = n.digest()
		if _, ok := g.digests[g.keys[id]]; !ok {
			g.digests[g.keys[id]] = NodeID(id)
		}
	}
}

// reaches returns true if target is from or one of its descendants.
func (g *Graph) reaches(from, target NodeID) bool {
	var visited bitset.BitSet
	var walk func(id NodeID) bool
	walk = func(id NodeID) bool {
		id = g.Resolve(id)
		if id == target {
			return true
		}
		if visited.Test(uint(id)) {
			return false
		}
		visited.Set(uint(id))
		for _, in := range g.nodes[id].Inputs {
			if walk(in) {
				return true
			}
		}
		return false
	}
	return walk(from)
}

// Reachable returns the nodes reachable from the root in depth-first
// pre-order, each node once.
func (g *Graph) Reachable() []NodeID {
	if g.root == NoNode {
		return nil
	}
	var visited bitset.BitSet
	var res []NodeID
	var walk func(id NodeID)
	walk = func(id NodeID) {
		id = g.Resolve(id)
		if visited.Test(uint(id)) {
			return
		}
		visited.Set(uint(id))
		res = append(res, id)
		for _, in := range g.nodes[id].Inputs {
			walk(in)
		}
	}
	walk(g.root)
	return res
}

// TopologicalOrder returns the reachable nodes ordered so that every node
// comes before all of its inputs.
func (g *Graph) TopologicalOrder() []NodeID {
	if g.root == NoNode {
		return nil
	}
	var visited bitset.BitSet
	var post []NodeID
	var walk func(id NodeID)
	walk = func(id NodeID) {
		id = g.Resolve(id)
		if visited.Test(uint(id)) {
			return
		}
		visited.Set(uint(id))
		for _, in := range g.nodes[id].Inputs {
			walk(in)
		}
		post = append(post, id)
	}
	walk(g.root)
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// Edge is an input edge: input Ordinal of Consumer. The root of the plan is
// consumed by an edge whose Consumer is NoNode.
type Edge struct {
	Consumer NodeID
	Ordinal  int
}

// Consumers returns, for every reachable node, the edges that consume it.
// Edges are listed in topological order of their consumers.
func (g *Graph) Consumers() map[NodeID][]Edge {
	res := make(map[NodeID][]Edge)
	if g.root == NoNode {
		return res
	}
	res[g.Root()] = append(res[g.Root()], Edge{Consumer: NoNode})
	for _, id := range g.TopologicalOrder() {
		for i, in := range g.nodes[id].Inputs {
			in = g.Resolve(in)
			res[in] = append(res[in], Edge{Consumer: id, Ordinal: i})
		}
	}
	return res
}

// CollectGarbage forgets every node that is no longer reachable from the
// root so that it cannot be returned by Add or Lookup. It returns the number
// of nodes collected.
func (g *Graph) CollectGarbage() int {
	var reachable bitset.BitSet
	for _, id := range g.Reachable() {
		reachable.Set(uint(id))
	}
	n := 0
	for id := 1; id < len(g.nodes); id++ {
		if !g.live(NodeID(id)) || reachable.Test(uint(id)) {
			continue
		}
		g.dead.Set(uint(id))
		if g.digests[g.keys[id]] == NodeID(id) {
			delete(g.digests, g.keys[id])
		}
		n++
	}
	return n
}

// CheckAcyclic returns an assertion failure if the reachable graph has a
// cycle.
func (g *Graph) CheckAcyclic() error {
	const (
		white = iota
		grey
		black
	)
	color := make([]uint8, len(g.nodes))
	var walk func(id NodeID) error
	walk = func(id NodeID) error {
		id = g.Resolve(id)
		switch color[id] {
		case grey:
			return errors.AssertionFailedf("plan graph has a cycle through node %d", id)
		case black:
			return nil
		}
		color[id] = grey
		for _, in := range g.nodes[id].Inputs {
			if err := walk(in); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}
	if g.root == NoNode {
		return nil
	}
	return walk(g.root)
}

// Freeze makes the graph read-only.
func (g *Graph) Freeze() {
	g.frozen = true
}

// Frozen returns true once Freeze has been called.
func (g *Graph) Frozen() bool {
	return g.frozen
}
