// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package execbuilder

import (
	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/correl"
	"github.com/heplan/heplan/pkg/sql/opt/exec"
)

// colMap returns the runtime expression for a column of the row a scalar
// expression is evaluated against.
type colMap func(i int) exec.Expr

// rowCols maps columns to the fields of the current row of fr. The row is
// only looked up, and thus declared, when a column is referenced.
func rowCols(b *Builder, fr *frame) colMap {
	return func(i int) exec.Expr {
		return &exec.FieldRef{Slot: b.slotOf(fr), Field: i}
	}
}

func (b *Builder) makeRow(exprs []opt.ScalarExpr, cols colMap) exec.Expr {
	fields := make([]exec.Expr, len(exprs))
	for i, e := range exprs {
		fields[i] = b.buildScalar(e, cols)
	}
	return &exec.MakeRow{Fields: fields}
}

// buildScalar translates a scalar expression. Correlation references become
// fields of the row published by their producer; if the producer has not
// been lowered yet, the reference is filled in when it is.
func (b *Builder) buildScalar(e opt.ScalarExpr, cols colMap) exec.Expr {
	switch t := e.(type) {
	case *opt.ColRef:
		return cols(t.Idx)

	case *opt.Const:
		return &exec.Const{Value: t.Value}

	case *opt.CorrelRef:
		if !t.Resolved() {
			panic(errors.AssertionFailedf("correlation reference to field %d was never resolved", t.Field))
		}
		ref := &exec.CorrelField{Var: t.Var, Field: t.Field, Slot: exec.NoSlot}
		b.correl.Resolve(t.Var, correl.Lookup{Offset: t.Field}, func(fr *frame) {
			ref.Slot = b.slotOf(fr)
		})
		return ref

	case *opt.Cmp:
		return &exec.Cmp{Op: t.Op, Left: b.buildScalar(t.Left, cols), Right: b.buildScalar(t.Right, cols)}

	case *opt.And:
		return &exec.And{Left: b.buildScalar(t.Left, cols), Right: b.buildScalar(t.Right, cols)}

	case *opt.Or:
		return &exec.Or{Left: b.buildScalar(t.Left, cols), Right: b.buildScalar(t.Right, cols)}

	case *opt.Not:
		return &exec.Not{Input: b.buildScalar(t.Input, cols)}

	case *opt.IsNull:
		return &exec.IsNull{Input: b.buildScalar(t.Input, cols), Negate: t.Negate}

	case *opt.Arith:
		return &exec.Arith{Op: t.Op, Left: b.buildScalar(t.Left, cols), Right: b.buildScalar(t.Right, cols)}
	}
	panic(errors.AssertionFailedf("unhandled scalar expression %T", e))
}
