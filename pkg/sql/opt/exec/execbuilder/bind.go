// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package execbuilder

import (
	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt/exec"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/util/log"
)

// frame is the lowering state of one visit of a node.
type frame struct {
	node *plan.Node

	// parent is the consuming frame, nil for the root and for materialized
	// shared nodes.
	parent  *frame
	ordinal int

	// materialize is set when the frame's rows go into a shared buffer.
	materialize bool

	// aux is a slot owned by the operator: the buffer of a materialized
	// node, the match flag of an outer join, the table of an aggregate, the
	// set of a distinct union, the array of a sort or the counter of an
	// insert.
	aux exec.SlotID

	bind binding
}

// binding is how the current row of a frame is reached.
type binding interface {
	String() string
}

// eagerBind is a row already held in a slot.
type eagerBind struct {
	slot exec.SlotID
}

// lazyBind is a row computed by init and declared on first use, right after
// the instruction that was last in block when the row became available.
type lazyBind struct {
	slot     exec.SlotID
	init     func() exec.Expr
	block    *exec.Block
	after    exec.Cursor
	declared bool
}

// sharedBind forwards to the row of an input node.
type sharedBind struct {
	input plan.NodeID
}

func (b *eagerBind) String() string { return "eager " + b.slot.String() }

func (b *lazyBind) String() string { return "lazy " + b.slot.String() }

func (b *sharedBind) String() string { return "shared" }

// setBind installs the first bind of a frame. A frame publishing a
// correlation variable becomes its producer unless another frame already
// is.
func (b *Builder) setBind(fr *frame, bind binding) {
	fr.bind = bind
	log.VEventf(b.ctx, 3, "node %d (%s): %s bind", fr.node.ID, fr.node.Op, bind)
	if v := fr.node.CorrelVar; v != "" {
		if !b.correl.Bind(v, fr) {
			log.VEventf(b.ctx, 2, "node %d: %s already has a producer", fr.node.ID, v)
		}
	}
}

// bindLazy binds the current row of fr to the value of init. If fr already
// has a lazy bind from another block, the bind moves to the current block
// and will be declared again there.
func (b *Builder) bindLazy(fr *frame, init func() exec.Expr) {
	switch t := fr.bind.(type) {
	case nil:
		b.setBind(fr, &lazyBind{slot: b.newSlot(), init: init, block: b.block, after: b.block.Last()})
	case *lazyBind:
		if t.block != b.block {
			t.block, t.after, t.init, t.declared = b.block, b.block.Last(), init, false
			log.VEventf(b.ctx, 3, "node %d (%s): rebound %s", fr.node.ID, fr.node.Op, t)
		}
	default:
		panic(errors.AssertionFailedf("node %d already has a %s bind", fr.node.ID, t))
	}
	if b.cfg.EagerBindAll {
		b.slotOf(fr)
	}
}

// slotOf returns the slot holding the current row of fr, declaring it if
// it is lazily bound.
func (b *Builder) slotOf(fr *frame) exec.SlotID {
	for {
		switch t := fr.bind.(type) {
		case *eagerBind:
			return t.slot
		case *lazyBind:
			if !t.declared {
				b.declare(t)
			}
			return t.slot
		case *sharedBind:
			next, ok := b.frames[t.input]
			if !ok {
				panic(errors.AssertionFailedf("node %d was not visited", t.input))
			}
			fr = next
		default:
			panic(errors.AssertionFailedf("node %d (%s) is not bound", fr.node.ID, fr.node.Op))
		}
	}
}

// declare inserts the declaration of a lazy bind at its cursor. The
// declaration is inserted before its initializer is built, so that rows the
// initializer reads are declared ahead of it.
func (b *Builder) declare(t *lazyBind) {
	t.declared = true
	d := &exec.Declare{Slot: t.slot}
	t.block.InsertAfter(d, t.after)
	d.Init = t.init()
}
