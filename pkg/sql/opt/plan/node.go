// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package plan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
)

// NodeID is the stable identifier of a node in a Graph's arena. A replaced
// node keeps its ID and forwards to its replacement through the graph's
// redirect table. Only the IDs of rolled back nodes are ever reused.
type NodeID int32

// NoNode is the zero NodeID. Rules return it to signal "no match".
const NoNode NodeID = 0

// SafeValue implements redact.SafeValue.
func (NodeID) SafeValue() {}

// Node is one relational operator in a plan graph. Nodes are immutable once
// added to a graph: rules build new nodes and replace old ones.
type Node struct {
	ID     NodeID
	Op     opt.Operator
	Inputs []NodeID

	// Private holds the operator-specific fields; its type is determined by
	// Op (see the *Private types below).
	Private interface{}

	Convention opt.Convention
	Schema     *opt.RowSchema

	// CorrelVar is set when the node's current row is referenced by
	// correlated expressions in an inner scope.
	CorrelVar string
}

// ScanPrivate is the private of ScanOp.
type ScanPrivate struct {
	Table string
}

// ValuesPrivate is the private of ValuesOp.
type ValuesPrivate struct {
	Rows []tree.Datums
}

// FilterPrivate is the private of FilterOp.
type FilterPrivate struct {
	Cond opt.ScalarExpr
}

// ProjectPrivate is the private of ProjectOp.
type ProjectPrivate struct {
	Exprs []opt.ScalarExpr
	Names []string
}

// CalcPrivate is the private of CalcOp. A nil Cond keeps every row.
type CalcPrivate struct {
	Cond  opt.ScalarExpr
	Exprs []opt.ScalarExpr
	Names []string
}

// JoinPrivate is the private of JoinOp and CorrelateOp. A nil Cond is a
// cross join. Correlate nodes only support inner and left joins.
type JoinPrivate struct {
	Type opt.JoinType
	Cond opt.ScalarExpr
}

// MultiJoinPrivate is the private of MultiJoinOp. Conds refer to the
// concatenation of all input rows.
type MultiJoinPrivate struct {
	Conds []opt.ScalarExpr
}

// AggregatePrivate is the private of AggregateOp. Output columns are the
// grouping columns followed by the aggregates.
type AggregatePrivate struct {
	GroupCols []int
	Aggs      []opt.AggCall
}

// UnionPrivate is the private of UnionOp.
type UnionPrivate struct {
	All bool
}

// SortKey is one ordering column.
type SortKey struct {
	Col        int
	Descending bool
}

// SortPrivate is the private of SortOp.
type SortPrivate struct {
	Keys []SortKey
}

// TableModificationPrivate is the private of TableModificationOp.
type TableModificationPrivate struct {
	Table string
}

// ConvertPrivate is the private of ConvertOp.
type ConvertPrivate struct {
	From, To opt.Convention
}

// InputConvention returns the convention the node requires of input i.
// Logical nodes impose no requirement; adapters consume their source
// convention; every other physical node consumes iterators.
func (n *Node) InputConvention(i int) opt.Convention {
	switch {
	case n.Op == opt.ConvertOp:
		return n.Private.(*ConvertPrivate).From
	case n.Convention == opt.LogicalConvention:
		return opt.LogicalConvention
	}
	return opt.IteratorConvention
}

// Copy returns a shallow copy of the node without an ID.
func (n *Node) Copy() *Node {
	cp := *n
	cp.ID = NoNode
	cp.Inputs = append([]NodeID(nil), n.Inputs...)
	return &cp
}

// WithConvention returns a copy of the node tagged with another convention.
func (n *Node) WithConvention(c opt.Convention) *Node {
	cp := n.Copy()
	cp.Convention = c
	return cp
}

// WithInput returns a copy of the node with input i replaced.
func (n *Node) WithInput(i int, input NodeID) *Node {
	cp := n.Copy()
	cp.Inputs[i] = input
	return cp
}

// Conditions returns the scalar expressions held by the node's private.
func (n *Node) Conditions() []opt.ScalarExpr {
	switch p := n.Private.(type) {
	case *FilterPrivate:
		return []opt.ScalarExpr{p.Cond}
	case *ProjectPrivate:
		return p.Exprs
	case *CalcPrivate:
		return append([]opt.ScalarExpr{p.Cond}, p.Exprs...)
	case *JoinPrivate:
		return []opt.ScalarExpr{p.Cond}
	case *MultiJoinPrivate:
		return p.Conds
	}
	return nil
}

// IsCorrelated returns true if the node's own expressions refer to an
// enclosing scope.
func (n *Node) IsCorrelated() bool {
	for _, e := range n.Conditions() {
		if len(opt.CorrelRefs(e)) > 0 {
			return true
		}
	}
	return false
}

// privateString formats the private for display or, if digest is set, for
// identity.
func (n *Node) privateString(digest bool) string {
	scalar := opt.FormatScalar
	if digest {
		scalar = opt.ScalarDigest
	}
	var buf strings.Builder
	switch p := n.Private.(type) {
	case nil:
	case *ScanPrivate:
		buf.WriteString(p.Table)
	case *ValuesPrivate:
		for i, row := range p.Rows {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(row.String())
		}
		if len(p.Rows) == 0 {
			buf.WriteString("empty")
		}
	case *FilterPrivate:
		buf.WriteString(scalar(p.Cond))
	case *ProjectPrivate:
		formatProjections(&buf, p.Names, p.Exprs, scalar)
	case *CalcPrivate:
		formatProjections(&buf, p.Names, p.Exprs, scalar)
		if p.Cond != nil {
			buf.WriteString(" where ")
			buf.WriteString(scalar(p.Cond))
		}
	case *JoinPrivate:
		buf.WriteString(p.Type.String())
		if p.Cond != nil {
			buf.WriteString(" on ")
			buf.WriteString(scalar(p.Cond))
		}
	case *MultiJoinPrivate:
		for i, c := range p.Conds {
			if i == 0 {
				buf.WriteString("on ")
			} else {
				buf.WriteString(", ")
			}
			buf.WriteString(scalar(c))
		}
	case *AggregatePrivate:
		buf.WriteString("group=(")
		for i, c := range p.GroupCols {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString("$" + strconv.Itoa(c))
		}
		buf.WriteByte(')')
		for _, a := range p.Aggs {
			fmt.Fprintf(&buf, " %s=%s", a.Name, a)
		}
	case *UnionPrivate:
		if p.All {
			buf.WriteString("all")
		} else {
			buf.WriteString("distinct")
		}
	case *SortPrivate:
		for i, k := range p.Keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if k.Descending {
				buf.WriteByte('-')
			} else {
				buf.WriteByte('+')
			}
			buf.WriteString(strconv.Itoa(k.Col))
		}
	case *TableModificationPrivate:
		buf.WriteString(p.Table)
	case *ConvertPrivate:
		fmt.Fprintf(&buf, "%s->%s", p.From, p.To)
	default:
		fmt.Fprintf(&buf, "%v", p)
	}
	return buf.String()
}

func formatProjections(
	buf *strings.Builder, names []string, exprs []opt.ScalarExpr, scalar func(opt.ScalarExpr) string,
) {
	for i, e := range exprs {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(names[i])
		buf.WriteByte('=')
		buf.WriteString(scalar(e))
	}
}

// String formats the node header, e.g. "filter $0 > 1 [iterator]".
func (n *Node) String() string {
	var buf strings.Builder
	buf.WriteString(n.Op.String())
	if p := n.privateString(false /* digest */); p != "" {
		buf.WriteByte(' ')
		buf.WriteString(p)
	}
	if n.Convention != opt.LogicalConvention {
		fmt.Fprintf(&buf, " [%s]", n.Convention)
	}
	if n.CorrelVar != "" {
		fmt.Fprintf(&buf, " (correlation %s)", n.CorrelVar)
	}
	return buf.String()
}

// digest identifies the node for common subexpression elimination. Inputs
// must already be resolved.
func (n *Node) digest() string {
	var buf strings.Builder
	buf.WriteString(n.Op.String())
	buf.WriteByte('|')
	buf.WriteString(n.Convention.String())
	buf.WriteByte('|')
	buf.WriteString(n.privateString(true /* digest */))
	buf.WriteByte('|')
	for i, in := range n.Inputs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(int(in)))
	}
	buf.WriteByte('|')
	buf.WriteString(n.CorrelVar)
	buf.WriteByte('|')
	buf.WriteString(n.Schema.String())
	return buf.String()
}
