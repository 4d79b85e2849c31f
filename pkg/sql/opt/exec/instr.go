// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package exec

import (
	"fmt"
	"strings"

	"github.com/heplan/heplan/pkg/sql/sem/tree"
)

// Instr is an instruction of a pipeline.
type Instr interface {
	// Blocks returns the nested blocks of the instruction, if any.
	Blocks() []*Block

	format(buf *strings.Builder)
}

// Declare introduces a slot and initializes it.
type Declare struct {
	Slot SlotID
	Init Expr
}

// Assign stores a value into a declared slot.
type Assign struct {
	Slot  SlotID
	Value Expr
}

// Loop runs Body once for every row of Source, with the row in Var.
type Loop struct {
	Var    SlotID
	Source Source
	Body   *Block
}

// If runs Then when Cond is true. NULL counts as false.
type If struct {
	Cond Expr
	Then *Block
}

// Append adds a row to an array slot.
type Append struct {
	Array SlotID
	Row   Expr
}

// Accumulate adds a row to the group of a grouping table identified by
// Keys. Args holds one argument per aggregate of the table; it is nil for
// count(*).
type Accumulate struct {
	Table SlotID
	Keys  []Expr
	Args  []Expr
}

// SortKey is one column of a SortArray ordering.
type SortKey struct {
	Col        int
	Descending bool
}

// SortArray sorts the rows of an array slot in place. NULLs sort first.
type SortArray struct {
	Array SlotID
	Keys  []SortKey
}

// Insert writes a row into a table and increments Counter.
type Insert struct {
	Table   string
	Row     Expr
	Counter SlotID
}

// Emit outputs a row of the result.
type Emit struct {
	Row Expr
}

// EmitAll outputs every row of an array slot.
type EmitAll struct {
	Array SlotID
}

// Blocks implements Instr.
func (*Declare) Blocks() []*Block { return nil }

// Blocks implements Instr.
func (*Assign) Blocks() []*Block { return nil }

// Blocks implements Instr.
func (l *Loop) Blocks() []*Block { return []*Block{l.Body} }

// Blocks implements Instr.
func (i *If) Blocks() []*Block { return []*Block{i.Then} }

// Blocks implements Instr.
func (*Append) Blocks() []*Block { return nil }

// Blocks implements Instr.
func (*Accumulate) Blocks() []*Block { return nil }

// Blocks implements Instr.
func (*SortArray) Blocks() []*Block { return nil }

// Blocks implements Instr.
func (*Insert) Blocks() []*Block { return nil }

// Blocks implements Instr.
func (*Emit) Blocks() []*Block { return nil }

// Blocks implements Instr.
func (*EmitAll) Blocks() []*Block { return nil }

func (d *Declare) format(buf *strings.Builder) {
	fmt.Fprintf(buf, "declare %s = ", d.Slot)
	d.Init.format(buf)
}

func (a *Assign) format(buf *strings.Builder) {
	fmt.Fprintf(buf, "%s := ", a.Slot)
	a.Value.format(buf)
}

func (l *Loop) format(buf *strings.Builder) {
	fmt.Fprintf(buf, "loop %s in ", l.Var)
	l.Source.format(buf)
}

func (i *If) format(buf *strings.Builder) {
	buf.WriteString("if ")
	i.Cond.format(buf)
}

func (a *Append) format(buf *strings.Builder) {
	fmt.Fprintf(buf, "append %s <- ", a.Array)
	a.Row.format(buf)
}

func (a *Accumulate) format(buf *strings.Builder) {
	fmt.Fprintf(buf, "accumulate %s key=(", a.Table)
	formatList(buf, a.Keys)
	buf.WriteString(") args=(")
	for i, e := range a.Args {
		if i > 0 {
			buf.WriteString(", ")
		}
		if e == nil {
			buf.WriteByte('*')
		} else {
			e.format(buf)
		}
	}
	buf.WriteByte(')')
}

func (s *SortArray) format(buf *strings.Builder) {
	fmt.Fprintf(buf, "sort %s by ", s.Array)
	for i, k := range s.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if k.Descending {
			buf.WriteByte('-')
		} else {
			buf.WriteByte('+')
		}
		fmt.Fprintf(buf, "%d", k.Col)
	}
}

func (i *Insert) format(buf *strings.Builder) {
	fmt.Fprintf(buf, "insert %s <- ", i.Table)
	i.Row.format(buf)
	fmt.Fprintf(buf, " count %s", i.Counter)
}

func (e *Emit) format(buf *strings.Builder) {
	buf.WriteString("emit ")
	e.Row.format(buf)
}

func (e *EmitAll) format(buf *strings.Builder) {
	fmt.Fprintf(buf, "emit-all %s", e.Array)
}

// Source is the row source of a Loop.
type Source interface {
	format(buf *strings.Builder)
}

// ScanSource iterates the rows of a table.
type ScanSource struct {
	Table string
}

// ValuesSource iterates constant rows.
type ValuesSource struct {
	Rows []tree.Datums
}

// ArraySource iterates the rows of an array slot.
type ArraySource struct {
	Array SlotID
}

// GroupSource iterates the result rows of a grouping table: the grouping
// key followed by the aggregate results, in the order groups were created.
type GroupSource struct {
	Table SlotID
}

func (s *ScanSource) format(buf *strings.Builder) {
	fmt.Fprintf(buf, "scan %s", s.Table)
}

func (s *ValuesSource) format(buf *strings.Builder) {
	buf.WriteString("values ")
	formatRows(buf, s.Rows)
}

func (s *ArraySource) format(buf *strings.Builder) {
	buf.WriteString(s.Array.String())
}

func (s *GroupSource) format(buf *strings.Builder) {
	fmt.Fprintf(buf, "groups %s", s.Table)
}

func formatRows(buf *strings.Builder, rows []tree.Datums) {
	if len(rows) == 0 {
		buf.WriteString("empty")
		return
	}
	for i, r := range rows {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(r.String())
	}
}
