// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rule

import (
	"context"

	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/opt/props"
)

// Call is one invocation of a rule on a match.
type Call struct {
	Ctx  context.Context
	Rule *Rule

	// Nodes are the nodes bound by the operand, in pre-order. Nodes[0] is
	// the node being rewritten.
	Nodes []*plan.Node

	Factory   *plan.Factory
	Estimator *props.Estimator
}

// Node returns the i-th bound node.
func (c *Call) Node(i int) *plan.Node {
	return c.Nodes[i]
}

// Root returns the node being rewritten.
func (c *Call) Root() *plan.Node {
	return c.Nodes[0]
}

// Graph returns the plan graph.
func (c *Call) Graph() *plan.Graph {
	return c.Factory.Graph()
}

// Input returns the node currently standing for input i of n.
func (c *Call) Input(n *plan.Node, i int) *plan.Node {
	return c.Graph().Input(n, i)
}

// RowCount returns the estimated row count of node id.
func (c *Call) RowCount(id plan.NodeID) float64 {
	return c.Estimator.RowCount(c.Graph(), id)
}
