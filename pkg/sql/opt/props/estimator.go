// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package props derives statistical properties of plan nodes. The estimates
// are deliberately coarse: they only need to rank alternatives, e.g. when
// ordering the inputs of an n-way join.
package props

import (
	"context"
	"math"

	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/cat"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
	"github.com/heplan/heplan/pkg/util/log"
)

const (
	// UnknownRowCount is used for tables without statistics.
	UnknownRowCount = 1000

	eqSelectivity        = 0.15
	rangeSelectivity     = 0.5
	notNullSelectivity   = 0.9
	isNullSelectivity    = 0.1
	defaultSelectivity   = 0.25
	groupingSelectivity  = 0.1
	unionDistinctFactor  = 0.5
	correlatedInnerRatio = 0.5
)

// Estimator estimates row counts of plan nodes. A nil *Estimator is valid and
// treats every table as having UnknownRowCount rows.
type Estimator struct {
	ctx     context.Context
	catalog cat.Catalog
}

// NewEstimator returns an estimator reading table statistics from catalog,
// which may be nil.
func NewEstimator(ctx context.Context, catalog cat.Catalog) *Estimator {
	return &Estimator{ctx: ctx, catalog: catalog}
}

// RowCount returns the estimated number of rows produced by node id.
func (e *Estimator) RowCount(g *plan.Graph, id plan.NodeID) float64 {
	n := g.Node(id)
	input := func(i int) float64 { return e.RowCount(g, n.Inputs[i]) }
	switch n.Op {
	case opt.ScanOp:
		return e.tableRowCount(n.Private.(*plan.ScanPrivate).Table)

	case opt.ValuesOp:
		return float64(len(n.Private.(*plan.ValuesPrivate).Rows))

	case opt.OneRowOp, opt.TableModificationOp:
		return 1

	case opt.FilterOp:
		return input(0) * Selectivity(n.Private.(*plan.FilterPrivate).Cond)

	case opt.CalcOp:
		return input(0) * Selectivity(n.Private.(*plan.CalcPrivate).Cond)

	case opt.ProjectOp, opt.SortOp, opt.ConvertOp:
		return input(0)

	case opt.JoinOp:
		p := n.Private.(*plan.JoinPrivate)
		l, r := input(0), input(1)
		rows := l * r * Selectivity(p.Cond)
		switch p.Type {
		case opt.LeftJoin:
			rows = math.Max(rows, l)
		case opt.RightJoin:
			rows = math.Max(rows, r)
		}
		return rows

	case opt.CorrelateOp:
		l := input(0)
		rows := l * input(1) * correlatedInnerRatio
		if n.Private.(*plan.JoinPrivate).Type == opt.LeftJoin {
			rows = math.Max(rows, l)
		}
		return rows

	case opt.MultiJoinOp:
		rows := 1.0
		for i := range n.Inputs {
			rows *= input(i)
		}
		for _, c := range n.Private.(*plan.MultiJoinPrivate).Conds {
			rows *= Selectivity(c)
		}
		return rows

	case opt.AggregateOp:
		if len(n.Private.(*plan.AggregatePrivate).GroupCols) == 0 {
			return 1
		}
		return math.Max(1, input(0)*groupingSelectivity)

	case opt.UnionOp:
		rows := 0.0
		for i := range n.Inputs {
			rows += input(i)
		}
		if !n.Private.(*plan.UnionPrivate).All {
			rows *= unionDistinctFactor
		}
		return rows
	}
	return UnknownRowCount
}

func (e *Estimator) tableRowCount(name string) float64 {
	if e == nil || e.catalog == nil {
		return UnknownRowCount
	}
	tab, err := e.catalog.ResolveTable(e.ctx, name)
	if err != nil {
		log.VEventf(e.ctx, 2, "no statistics for %s: %v", name, err)
		return UnknownRowCount
	}
	return tab.RowCount()
}

// Selectivity returns the estimated fraction of rows for which cond is true.
// A nil condition keeps every row.
func Selectivity(cond opt.ScalarExpr) float64 {
	if cond == nil {
		return 1
	}
	sel := 1.0
	for _, c := range opt.Conjuncts(cond) {
		sel *= conjunctSelectivity(c)
	}
	return sel
}

func conjunctSelectivity(e opt.ScalarExpr) float64 {
	switch t := e.(type) {
	case *opt.Const:
		if opt.IsTrue(t) {
			return 1
		}
		return 0
	case *opt.Cmp:
		switch t.Op {
		case tree.EQ:
			return eqSelectivity
		case tree.NE:
			return 1 - eqSelectivity
		}
		return rangeSelectivity
	case *opt.IsNull:
		if t.Negate {
			return notNullSelectivity
		}
		return isNullSelectivity
	case *opt.Or:
		l, r := conjunctSelectivity(t.Left), conjunctSelectivity(t.Right)
		return l + r - l*r
	}
	return defaultSelectivity
}
