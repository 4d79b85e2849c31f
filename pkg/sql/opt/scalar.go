// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
	"github.com/heplan/heplan/pkg/sql/types"
)

// ScalarExpr is a scalar expression evaluated against the input row of the
// plan node that owns it. The set of expression kinds is closed.
type ScalarExpr interface {
	// Type returns the type of the expression's value.
	Type() *types.T

	format(buf *strings.Builder, digest bool)
}

// ColRef refers to a column of the owning node's input row, by position. For
// nodes with several inputs the positions address the concatenation of the
// input rows.
type ColRef struct {
	Idx int
	Typ *types.T
}

// Const is a constant value.
type Const struct {
	Value tree.Datum
}

// CorrelRef refers to a field of the current row of an enclosing scope. Var
// names the correlation variable carried by the plan node producing that
// row. A CorrelRef created for a forward reference starts unresolved (Var is
// empty) and is resolved in place once its owning scope is built, so the
// same pointer must be shared by every expression that contains it.
type CorrelRef struct {
	Var   string
	Field int
	Typ   *types.T
}

// Cmp is a comparison.
type Cmp struct {
	Op          tree.ComparisonOperator
	Left, Right ScalarExpr
}

// And is a boolean conjunction.
type And struct {
	Left, Right ScalarExpr
}

// Or is a boolean disjunction.
type Or struct {
	Left, Right ScalarExpr
}

// Not is a boolean negation.
type Not struct {
	Input ScalarExpr
}

// IsNull tests its input for NULL. If Negate is set it is IS NOT NULL.
type IsNull struct {
	Input  ScalarExpr
	Negate bool
}

// Arith is an arithmetic operation.
type Arith struct {
	Op          tree.BinaryOperator
	Left, Right ScalarExpr
}

var (
	// TrueExpr is the constant TRUE.
	TrueExpr = &Const{Value: tree.DBoolTrue}
	// FalseExpr is the constant FALSE.
	FalseExpr = &Const{Value: tree.DBoolFalse}
)

// Type implements ScalarExpr.
func (e *ColRef) Type() *types.T { return e.Typ }

// Type implements ScalarExpr.
func (e *Const) Type() *types.T { return e.Value.ResolvedType() }

// Type implements ScalarExpr.
func (e *CorrelRef) Type() *types.T { return e.Typ }

// Type implements ScalarExpr.
func (e *Cmp) Type() *types.T { return types.Bool }

// Type implements ScalarExpr.
func (e *And) Type() *types.T { return types.Bool }

// Type implements ScalarExpr.
func (e *Or) Type() *types.T { return types.Bool }

// Type implements ScalarExpr.
func (e *Not) Type() *types.T { return types.Bool }

// Type implements ScalarExpr.
func (e *IsNull) Type() *types.T { return types.Bool }

// Type implements ScalarExpr.
func (e *Arith) Type() *types.T {
	if e.Left.Type().Family() == types.IntFamily && e.Right.Type().Family() == types.IntFamily {
		return types.Int
	}
	return types.Decimal
}

// Resolved returns true once the correlation variable is known.
func (e *CorrelRef) Resolved() bool { return e.Var != "" }

// FormatScalar returns the expression in its display form, e.g.
// "$0 > 1 AND $cor0.$2 = 'x'".
func FormatScalar(e ScalarExpr) string {
	if e == nil {
		return "true"
	}
	var buf strings.Builder
	e.format(&buf, false /* digest */)
	return buf.String()
}

// ScalarDigest returns a string that identifies the expression. Unresolved
// correlation references are identified by their address so that they never
// compare equal to anything else.
func ScalarDigest(e ScalarExpr) string {
	if e == nil {
		return "true"
	}
	var buf strings.Builder
	e.format(&buf, true /* digest */)
	return buf.String()
}

func isBinary(e ScalarExpr) bool {
	switch e.(type) {
	case *Cmp, *And, *Or, *Arith:
		return true
	}
	return false
}

func formatOperand(buf *strings.Builder, e ScalarExpr, digest bool, parens bool) {
	if parens {
		buf.WriteByte('(')
	}
	e.format(buf, digest)
	if parens {
		buf.WriteByte(')')
	}
}

func (e *ColRef) format(buf *strings.Builder, digest bool) {
	buf.WriteByte('$')
	buf.WriteString(strconv.Itoa(e.Idx))
}

func (e *Const) format(buf *strings.Builder, digest bool) {
	buf.WriteString(e.Value.String())
}

func (e *CorrelRef) format(buf *strings.Builder, digest bool) {
	switch {
	case e.Resolved():
		buf.WriteString(e.Var)
	case digest:
		fmt.Fprintf(buf, "$cor?%p", e)
	default:
		buf.WriteString("$cor?")
	}
	buf.WriteString(".$")
	buf.WriteString(strconv.Itoa(e.Field))
}

func (e *Cmp) format(buf *strings.Builder, digest bool) {
	formatOperand(buf, e.Left, digest, isBinary(e.Left))
	buf.WriteByte(' ')
	buf.WriteString(e.Op.String())
	buf.WriteByte(' ')
	formatOperand(buf, e.Right, digest, isBinary(e.Right))
}

func (e *And) format(buf *strings.Builder, digest bool) {
	_, leftOr := e.Left.(*Or)
	formatOperand(buf, e.Left, digest, leftOr)
	buf.WriteString(" AND ")
	_, rightOr := e.Right.(*Or)
	_, rightAnd := e.Right.(*And)
	formatOperand(buf, e.Right, digest, rightOr || rightAnd)
}

func (e *Or) format(buf *strings.Builder, digest bool) {
	_, leftAnd := e.Left.(*And)
	formatOperand(buf, e.Left, digest, leftAnd)
	buf.WriteString(" OR ")
	_, rightOr := e.Right.(*Or)
	_, rightAnd := e.Right.(*And)
	formatOperand(buf, e.Right, digest, rightOr || rightAnd)
}

func (e *Not) format(buf *strings.Builder, digest bool) {
	buf.WriteString("NOT ")
	formatOperand(buf, e.Input, digest, isBinary(e.Input))
}

func (e *IsNull) format(buf *strings.Builder, digest bool) {
	formatOperand(buf, e.Input, digest, isBinary(e.Input))
	if e.Negate {
		buf.WriteString(" IS NOT NULL")
	} else {
		buf.WriteString(" IS NULL")
	}
}

func (e *Arith) format(buf *strings.Builder, digest bool) {
	formatOperand(buf, e.Left, digest, isBinary(e.Left))
	buf.WriteByte(' ')
	buf.WriteString(e.Op.String())
	buf.WriteByte(' ')
	formatOperand(buf, e.Right, digest, isBinary(e.Right))
}

// WalkScalar calls fn for e and, while fn returns true, for its descendants
// in pre-order.
func WalkScalar(e ScalarExpr, fn func(ScalarExpr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch t := e.(type) {
	case *ColRef, *Const, *CorrelRef:
	case *Cmp:
		WalkScalar(t.Left, fn)
		WalkScalar(t.Right, fn)
	case *And:
		WalkScalar(t.Left, fn)
		WalkScalar(t.Right, fn)
	case *Or:
		WalkScalar(t.Left, fn)
		WalkScalar(t.Right, fn)
	case *Not:
		WalkScalar(t.Input, fn)
	case *IsNull:
		WalkScalar(t.Input, fn)
	case *Arith:
		WalkScalar(t.Left, fn)
		WalkScalar(t.Right, fn)
	default:
		panic(errors.AssertionFailedf("unhandled scalar %T", e))
	}
}

// ReplaceScalar rebuilds e bottom-up, replacing every leaf for which fn
// returns a non-nil expression. Subtrees without replacements are returned
// unchanged, so correlation references keep their identity.
func ReplaceScalar(e ScalarExpr, fn func(ScalarExpr) ScalarExpr) ScalarExpr {
	if e == nil {
		return nil
	}
	switch t := e.(type) {
	case *ColRef, *Const, *CorrelRef:
		if r := fn(e); r != nil {
			return r
		}
		return e
	case *Cmp:
		l, r := ReplaceScalar(t.Left, fn), ReplaceScalar(t.Right, fn)
		if l == t.Left && r == t.Right {
			return e
		}
		return &Cmp{Op: t.Op, Left: l, Right: r}
	case *And:
		l, r := ReplaceScalar(t.Left, fn), ReplaceScalar(t.Right, fn)
		if l == t.Left && r == t.Right {
			return e
		}
		return &And{Left: l, Right: r}
	case *Or:
		l, r := ReplaceScalar(t.Left, fn), ReplaceScalar(t.Right, fn)
		if l == t.Left && r == t.Right {
			return e
		}
		return &Or{Left: l, Right: r}
	case *Not:
		in := ReplaceScalar(t.Input, fn)
		if in == t.Input {
			return e
		}
		return &Not{Input: in}
	case *IsNull:
		in := ReplaceScalar(t.Input, fn)
		if in == t.Input {
			return e
		}
		return &IsNull{Input: in, Negate: t.Negate}
	case *Arith:
		l, r := ReplaceScalar(t.Left, fn), ReplaceScalar(t.Right, fn)
		if l == t.Left && r == t.Right {
			return e
		}
		return &Arith{Op: t.Op, Left: l, Right: r}
	}
	panic(errors.AssertionFailedf("unhandled scalar %T", e))
}

// RemapColumns replaces every column reference with the result of fn.
func RemapColumns(e ScalarExpr, fn func(col *ColRef) ScalarExpr) ScalarExpr {
	return ReplaceScalar(e, func(leaf ScalarExpr) ScalarExpr {
		if c, ok := leaf.(*ColRef); ok {
			return fn(c)
		}
		return nil
	})
}

// ShiftColumns adds delta to every column ordinal in e.
func ShiftColumns(e ScalarExpr, delta int) ScalarExpr {
	if delta == 0 {
		return e
	}
	return RemapColumns(e, func(c *ColRef) ScalarExpr {
		return &ColRef{Idx: c.Idx + delta, Typ: c.Typ}
	})
}

// ReferencedColumns returns the ordinals of the columns e refers to.
func ReferencedColumns(e ScalarExpr) ColSet {
	var cols ColSet
	WalkScalar(e, func(s ScalarExpr) bool {
		if c, ok := s.(*ColRef); ok {
			cols.Add(c.Idx)
		}
		return true
	})
	return cols
}

// CorrelRefs returns the correlation references in e, in pre-order.
func CorrelRefs(e ScalarExpr) []*CorrelRef {
	var refs []*CorrelRef
	WalkScalar(e, func(s ScalarExpr) bool {
		if c, ok := s.(*CorrelRef); ok {
			refs = append(refs, c)
		}
		return true
	})
	return refs
}

// Conjuncts flattens nested ANDs into a list. A nil expression has no
// conjuncts.
func Conjuncts(e ScalarExpr) []ScalarExpr {
	if e == nil {
		return nil
	}
	if and, ok := e.(*And); ok {
		return append(Conjuncts(and.Left), Conjuncts(and.Right)...)
	}
	return []ScalarExpr{e}
}

// MakeConjunction builds a left-deep AND of the given expressions. It returns
// nil for an empty list, which conditions treat as TRUE.
func MakeConjunction(list []ScalarExpr) ScalarExpr {
	var res ScalarExpr
	for _, e := range list {
		if e == nil || IsTrue(e) {
			continue
		}
		if res == nil {
			res = e
		} else {
			res = &And{Left: res, Right: e}
		}
	}
	return res
}

// IsTrue returns true if e is the constant TRUE.
func IsTrue(e ScalarExpr) bool {
	c, ok := e.(*Const)
	return ok && c.Value.ResolvedType() == types.Bool && c.Value.Compare(tree.DBoolTrue) == 0
}

// IsFalseOrNull returns true if e is the constant FALSE or NULL, which
// rejects every row when used as a condition.
func IsFalseOrNull(e ScalarExpr) bool {
	c, ok := e.(*Const)
	if !ok {
		return false
	}
	return c.Value == tree.DNull ||
		(c.Value.ResolvedType() == types.Bool && c.Value.Compare(tree.DBoolFalse) == 0)
}
