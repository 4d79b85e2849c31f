// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rule

import (
	"strings"

	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
)

// MaxOperandDepth bounds the nesting of operand trees.
const MaxOperandDepth = 4

// Operand is a pattern over plan nodes. An operand with Op set to
// opt.UnknownOp is a wildcard that matches any node of any convention. An
// operand with nil Children accepts any inputs; otherwise the node must have
// exactly one input per child operand, and each input must match the
// corresponding child.
type Operand struct {
	Op       opt.Operator
	Children []*Operand
}

// Pattern returns an operand matching op whose inputs match children.
func Pattern(op opt.Operator, children ...*Operand) *Operand {
	if len(children) == 0 {
		children = nil
	}
	return &Operand{Op: op, Children: children}
}

// Any returns a wildcard operand.
func Any() *Operand {
	return &Operand{Op: opt.UnknownOp}
}

// IsAny returns true if the operand is a wildcard.
func (o *Operand) IsAny() bool {
	return o.Op == opt.UnknownOp
}

// Depth returns the number of levels in the operand tree.
func (o *Operand) Depth() int {
	d := 0
	for _, c := range o.Children {
		if cd := c.Depth(); cd > d {
			d = cd
		}
	}
	return d + 1
}

// Size returns the number of operands in the tree, which is also the number
// of nodes bound by a match.
func (o *Operand) Size() int {
	n := 1
	for _, c := range o.Children {
		n += c.Size()
	}
	return n
}

// String formats the operand as an s-expression, e.g. "(filter (project *))".
func (o *Operand) String() string {
	var buf strings.Builder
	o.format(&buf)
	return buf.String()
}

func (o *Operand) format(buf *strings.Builder) {
	if o.IsAny() {
		buf.WriteByte('*')
		return
	}
	if o.Children == nil {
		buf.WriteString(o.Op.String())
		return
	}
	buf.WriteByte('(')
	buf.WriteString(o.Op.String())
	for _, c := range o.Children {
		buf.WriteByte(' ')
		c.format(buf)
	}
	buf.WriteByte(')')
}

// match appends the nodes bound by matching o against n in pre-order.
// Non-wildcard operands only match nodes of the given convention.
func (o *Operand) match(
	g *plan.Graph, n *plan.Node, conv opt.Convention, bound []*plan.Node,
) ([]*plan.Node, bool) {
	if !o.IsAny() && (n.Op != o.Op || n.Convention != conv) {
		return bound, false
	}
	bound = append(bound, n)
	if o.Children == nil {
		return bound, true
	}
	if len(n.Inputs) != len(o.Children) {
		return bound, false
	}
	for i, c := range o.Children {
		var ok bool
		if bound, ok = c.match(g, g.Input(n, i), conv, bound); !ok {
			return bound, false
		}
	}
	return bound, true
}
