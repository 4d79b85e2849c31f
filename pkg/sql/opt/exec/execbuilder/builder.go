// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package execbuilder lowers a physical plan graph into an exec.Pipeline.
//
// Lowering visits the plan from the root down. Every node gets a frame
// holding its parent and its ordinal within the parent. When a node has
// produced a row (inside the loop that iterates its rows) it asks its parent
// to generate the code that consumes it; this "parent body" is generated in
// place, so a chain of filters and projections over a scan becomes a single
// loop. The current row of each frame is reached through a bind:
//
//   - an eager bind names a slot that already holds the row, such as a loop
//     variable or a materialized array;
//   - a lazy bind names a slot that is only declared when something reads
//     it, at the position where the row became available;
//   - a shared bind forwards to the row of an input, for operators such as
//     filters that pass their input rows through unchanged.
package execbuilder

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/correl"
	"github.com/heplan/heplan/pkg/sql/opt/exec"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/util/log"
)

// Config controls lowering.
type Config struct {
	// EagerBindAll declares every lazily bound row as soon as it is bound,
	// whether or not anything reads it. It is a debugging aid.
	EagerBindAll bool
}

// Builder lowers a frozen plan graph. A Builder is used once.
type Builder struct {
	ctx context.Context
	g   *plan.Graph
	cfg Config

	// frames maps each node to the frame of its most recent visit.
	frames map[plan.NodeID]*frame

	// correl binds correlation variables to the frame publishing them.
	correl *correl.Resolver[string, *frame]

	// block is the block instructions are currently appended to.
	block *exec.Block
	root  *exec.Block

	nextSlot exec.SlotID

	// buffers maps each materialized shared node to the array slot holding
	// its rows.
	buffers map[plan.NodeID]exec.SlotID
}

// New creates a Builder for the given graph.
func New(ctx context.Context, g *plan.Graph, cfg Config) *Builder {
	return &Builder{
		ctx:     ctx,
		g:       g,
		cfg:     cfg,
		frames:  make(map[plan.NodeID]*frame),
		correl:  correl.NewResolver[string, *frame](),
		buffers: make(map[plan.NodeID]exec.SlotID),
	}
}

// Build lowers the graph. The graph must be frozen and every reachable node
// must carry a physical convention.
func (b *Builder) Build() (_ *exec.Pipeline, err error) {
	defer opt.CatchOptimizerError(&err)

	if !b.g.Frozen() {
		return nil, errors.AssertionFailedf("plan graph is not frozen")
	}
	if b.g.Root() == plan.NoNode {
		return nil, errors.AssertionFailedf("plan graph has no root")
	}
	b.root = exec.NewBlock(nil)
	b.block = b.root

	for _, id := range b.sharedNodes() {
		b.materialize(id)
	}
	root := b.g.Node(b.g.Root())
	b.visitChild(nil /* parent */, 0 /* ordinal */, root.ID)

	if err := b.correl.Check(); err != nil {
		return nil, err
	}
	return &exec.Pipeline{Root: b.root, NumSlots: int(b.nextSlot), Columns: root.Schema}, nil
}

// Build lowers a frozen plan graph.
func Build(ctx context.Context, g *plan.Graph, cfg Config) (*exec.Pipeline, error) {
	return New(ctx, g, cfg).Build()
}

func (b *Builder) newSlot() exec.SlotID {
	s := b.nextSlot
	b.nextSlot++
	return s
}

// withBlock runs fn with instructions appended to blk.
func (b *Builder) withBlock(blk *exec.Block, fn func()) {
	saved := b.block
	b.block = blk
	defer func() { b.block = saved }()
	fn()
}

// nested appends an instruction built around a new nested block and runs fn
// with instructions appended to that block.
func (b *Builder) nested(mk func(body *exec.Block) exec.Instr, fn func()) {
	body := exec.NewBlock(b.block)
	b.block.Append(mk(body))
	b.withBlock(body, fn)
}

// sharedNodes returns the reachable nodes consumed more than once whose
// subtree is free of correlation, inputs first. Their rows do not depend on
// any enclosing row, so they are computed once into a buffer.
func (b *Builder) sharedNodes() []plan.NodeID {
	consumers := b.g.Consumers()
	correlated := make(map[plan.NodeID]bool)
	var isCorrelated func(id plan.NodeID) bool
	isCorrelated = func(id plan.NodeID) bool {
		n := b.g.Node(id)
		if res, ok := correlated[n.ID]; ok {
			return res
		}
		res := n.CorrelVar != "" || n.IsCorrelated()
		for i := range n.Inputs {
			if isCorrelated(b.g.Input(n, i).ID) {
				res = true
			}
		}
		correlated[n.ID] = res
		return res
	}

	order := b.g.TopologicalOrder()
	var res []plan.NodeID
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		if len(consumers[id]) > 1 && !isCorrelated(id) {
			res = append(res, id)
		}
	}
	return res
}

// materialize lowers a shared node into the root block, collecting its rows
// into a buffer that its consumers iterate.
func (b *Builder) materialize(id plan.NodeID) {
	n := b.g.Node(id)
	fr := &frame{node: n, ordinal: -1, materialize: true, aux: exec.NoSlot}
	b.frames[n.ID] = fr
	log.VEventf(b.ctx, 2, "materializing shared node %d (%s)", n.ID, n.Op)
	if n.Convention == opt.ArrayConvention {
		// The sink records the node's own array as the buffer.
		b.implement(fr)
		return
	}
	buf := b.newSlot()
	b.root.Append(&exec.Declare{Slot: buf, Init: &exec.NewArray{}})
	fr.aux = buf
	b.implement(fr)
	b.buffers[n.ID] = buf
}

// visitChild lowers input ordinal of parent, or the root if parent is nil.
func (b *Builder) visitChild(parent *frame, ordinal int, id plan.NodeID) {
	n := b.g.Node(id)
	fr := &frame{node: n, parent: parent, ordinal: ordinal, aux: exec.NoSlot}
	b.frames[n.ID] = fr
	log.VEventf(b.ctx, 3, "visiting node %d (%s) as input %d", n.ID, n.Op, ordinal)

	if buf, ok := b.buffers[n.ID]; ok {
		b.readBuffer(fr, buf)
		return
	}
	b.implement(fr)
}

// readBuffer feeds the rows of a materialized node to the frame's parent.
func (b *Builder) readBuffer(fr *frame, buf exec.SlotID) {
	if fr.node.Convention == opt.ArrayConvention {
		b.setBind(fr, &eagerBind{slot: buf})
		b.generateParentBody(fr)
		return
	}
	b.loop(fr, &exec.ArraySource{Array: buf})
}

// generateParentBody generates the code consuming the current row of fr.
func (b *Builder) generateParentBody(fr *frame) {
	if fr.parent == nil {
		b.sink(fr)
		return
	}
	b.implementParent(fr.parent, fr.ordinal)
}

// sink consumes the rows of the root or of a materialized node.
func (b *Builder) sink(fr *frame) {
	n := fr.node
	switch {
	case fr.materialize && n.Convention == opt.ArrayConvention:
		b.buffers[n.ID] = b.slotOf(fr)
	case fr.materialize:
		b.block.Append(&exec.Append{Array: fr.aux, Row: &exec.SlotRef{Slot: b.slotOf(fr)}})
	case n.Convention == opt.ArrayConvention:
		b.block.Append(&exec.EmitAll{Array: b.slotOf(fr)})
	default:
		b.block.Append(&exec.Emit{Row: &exec.SlotRef{Slot: b.slotOf(fr)}})
	}
}
