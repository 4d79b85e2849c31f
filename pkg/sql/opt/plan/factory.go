// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package plan

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
	"github.com/heplan/heplan/pkg/sql/types"
)

// Factory constructs logical plan nodes in a graph, deriving each node's
// output schema from its inputs. Malformed nodes (out of range column
// references, mismatched union inputs) raise assertion failures as panics.
type Factory struct {
	g       *Graph
	schemas *opt.SchemaCache
}

// NewFactory returns a factory adding nodes to g. Schemas are interned in
// the given cache, which may be nil.
func NewFactory(g *Graph, schemas *opt.SchemaCache) *Factory {
	return &Factory{g: g, schemas: schemas}
}

// Graph returns the graph the factory adds nodes to.
func (f *Factory) Graph() *Graph { return f.g }

// Schemas returns the schema cache.
func (f *Factory) Schemas() *opt.SchemaCache { return f.schemas }

func (f *Factory) schema(id NodeID) *opt.RowSchema {
	return f.g.Node(id).Schema
}

func (f *Factory) add(n *Node) NodeID {
	return f.g.Add(n)
}

// checkScalar verifies that e only refers to columns of a row of the given
// width.
func checkScalar(op opt.Operator, e opt.ScalarExpr, width int) {
	opt.ReferencedColumns(e).ForEach(func(col int) {
		if col >= width {
			panic(errors.AssertionFailedf("%s references column %d of a row with %d columns",
				redact.Safe(op), col, width))
		}
	})
	opt.WalkScalar(e, func(s opt.ScalarExpr) bool {
		if c, ok := s.(*opt.ColRef); ok && c.Idx < 0 {
			panic(errors.AssertionFailedf("%s references negative column %d", redact.Safe(op), c.Idx))
		}
		return true
	})
}

func checkCondition(op opt.Operator, cond opt.ScalarExpr, width int) {
	if cond == nil {
		return
	}
	checkScalar(op, cond, width)
	if t := cond.Type(); t != types.Bool && t != types.Unknown {
		panic(errors.AssertionFailedf("%s condition has type %s", redact.Safe(op), t))
	}
}

// ConstructScan adds a scan of a table with the given schema.
func (f *Factory) ConstructScan(table string, cols []opt.Column) NodeID {
	return f.add(&Node{
		Op:      opt.ScanOp,
		Private: &ScanPrivate{Table: table},
		Schema:  f.schemas.Intern(cols),
	})
}

// ConstructValues adds a constant relation.
func (f *Factory) ConstructValues(rows []tree.Datums, cols []opt.Column) NodeID {
	for _, row := range rows {
		if len(row) != len(cols) {
			panic(errors.AssertionFailedf("values row has %d columns, expected %d", len(row), len(cols)))
		}
	}
	return f.add(&Node{
		Op:      opt.ValuesOp,
		Private: &ValuesPrivate{Rows: rows},
		Schema:  f.schemas.Intern(cols),
	})
}

// ConstructOneRow adds a relation with one row and no columns.
func (f *Factory) ConstructOneRow() NodeID {
	return f.add(&Node{Op: opt.OneRowOp, Schema: f.schemas.Intern(nil)})
}

// ConstructFilter adds a filter.
func (f *Factory) ConstructFilter(input NodeID, cond opt.ScalarExpr) NodeID {
	in := f.schema(input)
	checkCondition(opt.FilterOp, cond, in.Width())
	return f.add(&Node{
		Op:      opt.FilterOp,
		Inputs:  []NodeID{input},
		Private: &FilterPrivate{Cond: cond},
		Schema:  in,
	})
}

func (f *Factory) projectionSchema(
	op opt.Operator, in *opt.RowSchema, exprs []opt.ScalarExpr, names []string,
) *opt.RowSchema {
	if len(exprs) != len(names) {
		panic(errors.AssertionFailedf("%s has %d expressions and %d names",
			redact.Safe(op), len(exprs), len(names)))
	}
	cols := make([]opt.Column, len(exprs))
	for i, e := range exprs {
		checkScalar(op, e, in.Width())
		nullable := true
		switch t := e.(type) {
		case *opt.ColRef:
			nullable = in.Column(t.Idx).Nullable
		case *opt.Const:
			nullable = t.Value == tree.DNull
		}
		cols[i] = opt.Column{Name: names[i], Type: e.Type(), Nullable: nullable}
	}
	return f.schemas.Intern(cols)
}

// ConstructProject adds a projection.
func (f *Factory) ConstructProject(
	input NodeID, exprs []opt.ScalarExpr, names []string,
) NodeID {
	return f.add(&Node{
		Op:      opt.ProjectOp,
		Inputs:  []NodeID{input},
		Private: &ProjectPrivate{Exprs: exprs, Names: names},
		Schema:  f.projectionSchema(opt.ProjectOp, f.schema(input), exprs, names),
	})
}

// ConstructCalc adds a combined filter and projection.
func (f *Factory) ConstructCalc(
	input NodeID, cond opt.ScalarExpr, exprs []opt.ScalarExpr, names []string,
) NodeID {
	in := f.schema(input)
	checkCondition(opt.CalcOp, cond, in.Width())
	return f.add(&Node{
		Op:      opt.CalcOp,
		Inputs:  []NodeID{input},
		Private: &CalcPrivate{Cond: cond, Exprs: exprs, Names: names},
		Schema:  f.projectionSchema(opt.CalcOp, in, exprs, names),
	})
}

func (f *Factory) joinSchema(typ opt.JoinType, left, right *opt.RowSchema) *opt.RowSchema {
	switch typ {
	case opt.LeftJoin:
		right = f.schemas.WithNullable(right)
	case opt.RightJoin:
		left = f.schemas.WithNullable(left)
	}
	return f.schemas.Concat(left, right)
}

// ConstructJoin adds a join. The condition refers to the concatenation of a
// left and a right row.
func (f *Factory) ConstructJoin(typ opt.JoinType, left, right NodeID, cond opt.ScalarExpr) NodeID {
	l, r := f.schema(left), f.schema(right)
	checkCondition(opt.JoinOp, cond, l.Width()+r.Width())
	return f.add(&Node{
		Op:      opt.JoinOp,
		Inputs:  []NodeID{left, right},
		Private: &JoinPrivate{Type: typ, Cond: cond},
		Schema:  f.joinSchema(typ, l, r),
	})
}

// ConstructCorrelate adds a correlated join: the right input is evaluated
// for each row of the left input.
func (f *Factory) ConstructCorrelate(typ opt.JoinType, left, right NodeID) NodeID {
	if typ == opt.RightJoin {
		panic(errors.AssertionFailedf("correlate does not support right joins"))
	}
	return f.add(&Node{
		Op:      opt.CorrelateOp,
		Inputs:  []NodeID{left, right},
		Private: &JoinPrivate{Type: typ},
		Schema:  f.joinSchema(typ, f.schema(left), f.schema(right)),
	})
}

// ConstructMultiJoin adds an n-way inner join.
func (f *Factory) ConstructMultiJoin(inputs []NodeID, conds []opt.ScalarExpr) NodeID {
	schemas := make([]*opt.RowSchema, len(inputs))
	width := 0
	for i, in := range inputs {
		schemas[i] = f.schema(in)
		width += schemas[i].Width()
	}
	for _, c := range conds {
		checkCondition(opt.MultiJoinOp, c, width)
	}
	return f.add(&Node{
		Op:      opt.MultiJoinOp,
		Inputs:  append([]NodeID(nil), inputs...),
		Private: &MultiJoinPrivate{Conds: conds},
		Schema:  f.schemas.Concat(schemas...),
	})
}

// ConstructAggregate adds a grouping. With no grouping columns it returns one
// row.
func (f *Factory) ConstructAggregate(input NodeID, groupCols []int, aggs []opt.AggCall) NodeID {
	in := f.schema(input)
	cols := make([]opt.Column, 0, len(groupCols)+len(aggs))
	for _, c := range groupCols {
		if c < 0 || c >= in.Width() {
			panic(errors.AssertionFailedf("aggregate groups by column %d of %d", c, in.Width()))
		}
		cols = append(cols, in.Column(c))
	}
	for _, a := range aggs {
		if a.Func != opt.CountRowsAgg && (a.Arg < 0 || a.Arg >= in.Width()) {
			panic(errors.AssertionFailedf("aggregate %s refers to column %d of %d",
				redact.Safe(a.Func), a.Arg, in.Width()))
		}
		nullable := a.Func != opt.CountRowsAgg && a.Func != opt.CountAgg
		cols = append(cols, opt.Column{Name: a.Name, Type: a.ResultType(in), Nullable: nullable})
	}
	return f.add(&Node{
		Op:      opt.AggregateOp,
		Inputs:  []NodeID{input},
		Private: &AggregatePrivate{GroupCols: groupCols, Aggs: aggs},
		Schema:  f.schemas.Intern(cols),
	})
}

// ConstructUnion adds a union of inputs with compatible schemas. Output
// columns take the names of the first input.
func (f *Factory) ConstructUnion(all bool, inputs ...NodeID) NodeID {
	if len(inputs) == 0 {
		panic(errors.AssertionFailedf("union has no inputs"))
	}
	first := f.schema(inputs[0])
	cols := append([]opt.Column(nil), first.Columns()...)
	for _, in := range inputs[1:] {
		s := f.schema(in)
		if s.Width() != first.Width() {
			panic(errors.AssertionFailedf("union inputs have %d and %d columns", first.Width(), s.Width()))
		}
		for i := range cols {
			if !cols[i].Type.Equivalent(s.Column(i).Type) {
				panic(errors.AssertionFailedf("union column %d has types %s and %s",
					i, cols[i].Type, s.Column(i).Type))
			}
			cols[i].Nullable = cols[i].Nullable || s.Column(i).Nullable
		}
	}
	return f.add(&Node{
		Op:      opt.UnionOp,
		Inputs:  append([]NodeID(nil), inputs...),
		Private: &UnionPrivate{All: all},
		Schema:  f.schemas.Intern(cols),
	})
}

// ConstructSort adds a sort.
func (f *Factory) ConstructSort(input NodeID, keys []SortKey) NodeID {
	in := f.schema(input)
	for _, k := range keys {
		if k.Col < 0 || k.Col >= in.Width() {
			panic(errors.AssertionFailedf("sort key %d out of range", k.Col))
		}
	}
	return f.add(&Node{
		Op:      opt.SortOp,
		Inputs:  []NodeID{input},
		Private: &SortPrivate{Keys: keys},
		Schema:  in,
	})
}

// ConstructInsert adds an insertion of the input rows into a table. The
// output is a single row holding the number of rows inserted.
func (f *Factory) ConstructInsert(table string, input NodeID) NodeID {
	return f.add(&Node{
		Op:      opt.TableModificationOp,
		Inputs:  []NodeID{input},
		Private: &TableModificationPrivate{Table: table},
		Schema:  f.schemas.Intern([]opt.Column{{Name: "rows_inserted", Type: types.Int}}),
	})
}

// ConstructConvert adds an adapter changing the calling convention of its
// input.
func (f *Factory) ConstructConvert(input NodeID, from, to opt.Convention) NodeID {
	if !opt.AdapterExists(from, to) {
		panic(errors.AssertionFailedf("no adapter from %s to %s", from, to))
	}
	return f.add(&Node{
		Op:         opt.ConvertOp,
		Inputs:     []NodeID{input},
		Private:    &ConvertPrivate{From: from, To: to},
		Convention: to,
		Schema:     f.schema(input),
	})
}

// ConstructWithCorrelVar adds a copy of a node that publishes its current row
// under a correlation variable.
func (f *Factory) ConstructWithCorrelVar(id NodeID, correlVar string) NodeID {
	cp := f.g.Node(id).Copy()
	cp.CorrelVar = correlVar
	return f.add(cp)
}

// ConstructCopy adds a node built by modifying a copy of an existing node
// (see Node.WithConvention and Node.WithInput).
func (f *Factory) ConstructCopy(n *Node) NodeID {
	if n.ID != NoNode {
		panic(errors.AssertionFailedf("node %d is already in the graph", n.ID))
	}
	return f.add(n)
}
