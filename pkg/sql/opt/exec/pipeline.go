// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package exec defines the lowered form of a physical plan: a pipeline of
// nested instruction blocks operating on numbered slots. Every row, array,
// grouping table and counter the plan needs at runtime lives in a slot; a
// slot is declared once in the block whose instructions may refer to it.
package exec

import (
	"strconv"
	"strings"

	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/util/container/list"
)

// SlotID identifies a runtime value of a pipeline.
type SlotID int32

func (s SlotID) String() string { return "v" + strconv.Itoa(int(s)) }

// SafeValue implements redact.SafeValue.
func (SlotID) SafeValue() {}

// Block is a sequence of instructions. Instructions are kept in a linked
// list so that a position can be remembered and later used to insert
// declarations, regardless of what is appended in the meantime.
type Block struct {
	Instrs list.List[Instr]
	Parent *Block
}

// NewBlock returns an empty block nested in parent, which may be nil.
func NewBlock(parent *Block) *Block {
	return &Block{Parent: parent}
}

// Cursor is a position in a block: the instruction after which new
// instructions are inserted. The nil cursor is the start of the block.
type Cursor = *list.Element[Instr]

// Append adds an instruction at the end of the block.
func (b *Block) Append(i Instr) Cursor {
	return b.Instrs.PushBack(i)
}

// InsertAfter adds an instruction at the cursor position and returns the
// position after it.
func (b *Block) InsertAfter(i Instr, c Cursor) Cursor {
	if c == nil {
		return b.Instrs.PushFront(i)
	}
	return b.Instrs.InsertAfter(i, c)
}

// Last returns a cursor at the end of the block.
func (b *Block) Last() Cursor {
	return b.Instrs.Back()
}

// Len returns the number of instructions in the block, not counting nested
// blocks.
func (b *Block) Len() int { return b.Instrs.Len() }

// ForEach calls fn for every instruction of the block in order.
func (b *Block) ForEach(fn func(Instr)) {
	for e := b.Instrs.Front(); e != nil; e = e.Next() {
		fn(e.Value)
	}
}

// Contains returns true if b is blk or one of its ancestors.
func (b *Block) Contains(blk *Block) bool {
	for ; blk != nil; blk = blk.Parent {
		if blk == b {
			return true
		}
	}
	return false
}

// Pipeline is a lowered plan.
type Pipeline struct {
	Root *Block

	// NumSlots is the number of slots used by the pipeline; slots are
	// numbered from zero.
	NumSlots int

	// Columns is the schema of the emitted rows.
	Columns *opt.RowSchema
}

// Walk calls fn for every instruction of the pipeline in pre-order,
// including the instructions of nested blocks.
func (p *Pipeline) Walk(fn func(Instr)) {
	var walk func(b *Block)
	walk = func(b *Block) {
		b.ForEach(func(i Instr) {
			fn(i)
			for _, nested := range i.Blocks() {
				walk(nested)
			}
		})
	}
	walk(p.Root)
}

// String formats the pipeline as an indented listing:
//
//	declare v0 = new-array
//	loop v1 in scan t
//	  if v1.0 > 1
//	    append v0 <- v1
//	emit-all v0
func (p *Pipeline) String() string {
	var buf strings.Builder
	formatBlock(&buf, p.Root, 0)
	return buf.String()
}

func formatBlock(buf *strings.Builder, b *Block, depth int) {
	b.ForEach(func(i Instr) {
		for j := 0; j < depth; j++ {
			buf.WriteString("  ")
		}
		i.format(buf)
		buf.WriteByte('\n')
		for _, nested := range i.Blocks() {
			formatBlock(buf, nested, depth+1)
		}
	})
}
