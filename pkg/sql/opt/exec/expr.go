// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package exec

import (
	"fmt"
	"strings"

	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
)

// Expr is an expression evaluated by the instructions of a pipeline. Scalar
// expressions evaluate to datums; SlotRef, MakeRow, ConcatRows and NullRow
// evaluate to rows; the New* expressions initialize slots of other kinds.
type Expr interface {
	format(buf *strings.Builder)
}

// SlotRef is the value of a slot.
type SlotRef struct {
	Slot SlotID
}

// FieldRef is a field of the row held in a slot.
type FieldRef struct {
	Slot  SlotID
	Field int
}

// CorrelField is a field of the row published under a correlation variable.
// Slot is NoSlot until the row's producer is lowered.
type CorrelField struct {
	Var   string
	Field int
	Slot  SlotID
}

// NoSlot is the slot of an unresolved CorrelField.
const NoSlot SlotID = -1

// Const is a constant datum.
type Const struct {
	Value tree.Datum
}

// Cmp compares two scalars.
type Cmp struct {
	Op          tree.ComparisonOperator
	Left, Right Expr
}

// And is the three-valued conjunction.
type And struct {
	Left, Right Expr
}

// Or is the three-valued disjunction.
type Or struct {
	Left, Right Expr
}

// Not is the three-valued negation.
type Not struct {
	Input Expr
}

// IsNull tests a scalar for NULL, or for NOT NULL if Negate is set.
type IsNull struct {
	Input  Expr
	Negate bool
}

// Arith is an arithmetic operation.
type Arith struct {
	Op          tree.BinaryOperator
	Left, Right Expr
}

// MakeRow builds a row from scalars.
type MakeRow struct {
	Fields []Expr
}

// ConcatRows builds a row from the fields of two rows.
type ConcatRows struct {
	Left, Right Expr
}

// NullRow is a row of Width NULLs.
type NullRow struct {
	Width int
}

// NewArray initializes an array slot with constant rows.
type NewArray struct {
	Rows []tree.Datums
}

// NewGroupTable initializes a grouping table with NumKeys key columns and
// the given aggregates. A scalar table has no keys and produces one group
// even when nothing is accumulated.
type NewGroupTable struct {
	NumKeys int
	Aggs    []opt.AggFunc
	Scalar  bool
}

// NewSet initializes a set of rows.
type NewSet struct{}

// AddToSet adds a row to a set slot. It evaluates to true if the row was
// not in the set yet.
type AddToSet struct {
	Set SlotID
	Row Expr
}

func (e *SlotRef) format(buf *strings.Builder) { buf.WriteString(e.Slot.String()) }

func (e *FieldRef) format(buf *strings.Builder) { fmt.Fprintf(buf, "%s.%d", e.Slot, e.Field) }

func (e *CorrelField) format(buf *strings.Builder) {
	if e.Slot == NoSlot {
		fmt.Fprintf(buf, "%s(?).%d", e.Var, e.Field)
		return
	}
	fmt.Fprintf(buf, "%s(%s).%d", e.Var, e.Slot, e.Field)
}

func (e *Const) format(buf *strings.Builder) { buf.WriteString(e.Value.String()) }

func isBinary(e Expr) bool {
	switch e.(type) {
	case *Cmp, *And, *Or, *Arith:
		return true
	}
	return false
}

func formatOperand(buf *strings.Builder, e Expr) {
	if isBinary(e) {
		buf.WriteByte('(')
		e.format(buf)
		buf.WriteByte(')')
		return
	}
	e.format(buf)
}

func formatBinary(buf *strings.Builder, op string, left, right Expr) {
	formatOperand(buf, left)
	buf.WriteByte(' ')
	buf.WriteString(op)
	buf.WriteByte(' ')
	formatOperand(buf, right)
}

func (e *Cmp) format(buf *strings.Builder)   { formatBinary(buf, e.Op.String(), e.Left, e.Right) }
func (e *And) format(buf *strings.Builder)   { formatBinary(buf, "AND", e.Left, e.Right) }
func (e *Or) format(buf *strings.Builder)    { formatBinary(buf, "OR", e.Left, e.Right) }
func (e *Arith) format(buf *strings.Builder) { formatBinary(buf, e.Op.String(), e.Left, e.Right) }

func (e *Not) format(buf *strings.Builder) {
	buf.WriteString("NOT ")
	formatOperand(buf, e.Input)
}

func (e *IsNull) format(buf *strings.Builder) {
	formatOperand(buf, e.Input)
	if e.Negate {
		buf.WriteString(" IS NOT NULL")
	} else {
		buf.WriteString(" IS NULL")
	}
}

func formatList(buf *strings.Builder, list []Expr) {
	for i, e := range list {
		if i > 0 {
			buf.WriteString(", ")
		}
		e.format(buf)
	}
}

func (e *MakeRow) format(buf *strings.Builder) {
	buf.WriteByte('(')
	formatList(buf, e.Fields)
	buf.WriteByte(')')
}

func (e *ConcatRows) format(buf *strings.Builder) {
	e.Left.format(buf)
	buf.WriteString(" || ")
	e.Right.format(buf)
}

func (e *NullRow) format(buf *strings.Builder) { fmt.Fprintf(buf, "null-row(%d)", e.Width) }

func (e *NewArray) format(buf *strings.Builder) {
	buf.WriteString("new-array")
	if len(e.Rows) > 0 {
		buf.WriteByte(' ')
		formatRows(buf, e.Rows)
	}
}

func (e *NewGroupTable) format(buf *strings.Builder) {
	if e.Scalar {
		buf.WriteString("new-scalar-group(")
	} else {
		fmt.Fprintf(buf, "new-group-table(keys=%d", e.NumKeys)
		if len(e.Aggs) > 0 {
			buf.WriteString(", ")
		}
	}
	for i, a := range e.Aggs {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(a.String())
	}
	buf.WriteByte(')')
}

func (e *NewSet) format(buf *strings.Builder) { buf.WriteString("new-set") }

func (e *AddToSet) format(buf *strings.Builder) {
	fmt.Fprintf(buf, "add-to-set(%s, ", e.Set)
	e.Row.format(buf)
	buf.WriteByte(')')
}

// FormatExpr returns the expression as text.
func FormatExpr(e Expr) string {
	var buf strings.Builder
	e.format(&buf)
	return buf.String()
}
