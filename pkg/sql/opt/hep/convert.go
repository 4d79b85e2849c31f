// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package hep

import (
	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/opt/rule"
	"github.com/heplan/heplan/pkg/util/log"
)

// edgeKey identifies an edge together with the producer it consumed when it
// could not be converted.
type edgeKey struct {
	consumer plan.NodeID
	ordinal  int
	producer plan.NodeID
}

// addConverters converts edges until every reachable edge consumes the
// convention its consumer requires, or no remaining edge can be converted.
// Unconvertible edges are left in place for Finish to report.
func (p *Planner) addConverters(minimize bool) error {
	failed := make(map[edgeKey]struct{})
	for n := 0; ; n++ {
		if n > p.cfg.MaxPassApplications {
			return errors.Wrapf(ErrDidNotConverge,
				"add-converters exceeded %d conversions", p.cfg.MaxPassApplications)
		}
		e, producer, want, ok := p.nextMismatch(failed)
		if !ok {
			return nil
		}
		converted, err := p.convertEdge(e, producer, want, minimize)
		if err != nil {
			return err
		}
		if !converted {
			log.VEventf(p.ctx, 2, "cannot convert node %d from %s to %s",
				producer.ID, producer.Convention, want)
			failed[edgeKey{consumer: e.Consumer, ordinal: e.Ordinal, producer: producer.ID}] = struct{}{}
		}
	}
}

// nextMismatch returns the first edge, in top-down order, whose producer
// does not have the convention its physical consumer requires. The root is
// consumed by an edge requiring the terminal convention.
func (p *Planner) nextMismatch(
	failed map[edgeKey]struct{},
) (_ plan.Edge, producer *plan.Node, want opt.Convention, ok bool) {
	isFailed := func(e plan.Edge, producer plan.NodeID) bool {
		_, ok := failed[edgeKey{consumer: e.Consumer, ordinal: e.Ordinal, producer: producer}]
		return ok
	}
	root := p.g.Node(p.g.Root())
	rootEdge := plan.Edge{Consumer: plan.NoNode}
	if root.Convention != p.cfg.TerminalConvention && !isFailed(rootEdge, root.ID) {
		return rootEdge, root, p.cfg.TerminalConvention, true
	}
	for _, id := range p.g.TopologicalOrder() {
		n := p.g.Node(id)
		if !n.Convention.IsPhysical() {
			continue
		}
		for i := range n.Inputs {
			in := p.g.Input(n, i)
			e := plan.Edge{Consumer: id, Ordinal: i}
			if want := n.InputConvention(i); in.Convention != want && !isFailed(e, in.ID) {
				return e, in, want, true
			}
		}
	}
	return plan.Edge{}, nil, 0, false
}

// convertEdge makes e consume a node with convention want that is
// equivalent to producer. With minimize, an existing equivalent node is
// reused if there is one. Otherwise converter rules are tried, first
// directly to want and then to a convention an adapter can bridge; as a
// last resort an adapter node is added.
func (p *Planner) convertEdge(
	e plan.Edge, producer *plan.Node, want opt.Convention, minimize bool,
) (bool, error) {
	if minimize {
		if id, ok := p.existingAlternative(producer, want); ok {
			log.VEventf(p.ctx, 2, "reusing node %d as %s for node %d", id, want, producer.ID)
			if err := p.redirect(e, id); err != nil {
				return false, err
			}
			return true, p.applied(nil, producer.ID, id)
		}
	}

	targets := []opt.Convention{want}
	for c := opt.Convention(0); c < opt.NumConventions; c++ {
		if c != want && c.IsPhysical() && opt.AdapterExists(c, want) {
			targets = append(targets, c)
		}
	}
	for _, to := range targets {
		for _, r := range p.reg.Converters(producer.Convention, to) {
			if p.isDisabled(r) {
				continue
			}
			ok, err := p.convertWith(r, e, producer)
			if err != nil || ok {
				return ok, err
			}
		}
	}

	if opt.AdapterExists(producer.Convention, want) {
		id := p.f.ConstructConvert(producer.ID, producer.Convention, want)
		if err := p.redirect(e, id); err != nil {
			return false, err
		}
		return true, p.applied(nil, producer.ID, id)
	}
	return false, nil
}

// convertWith applies converter r to producer. A logical producer is
// replaced everywhere, since no logical node may remain; a physical producer
// keeps its other consumers and only e is redirected.
func (p *Planner) convertWith(r *rule.Rule, e plan.Edge, producer *plan.Node) (bool, error) {
	st := p.stat(r.Name)
	st.Attempts++
	bound, ok := r.Match(p.g, producer.ID)
	if !ok {
		return false, nil
	}
	st.Matches++
	newID, err := p.produce(r, producer.ID, bound)
	if err != nil || newID == plan.NoNode {
		return false, err
	}
	if producer.Convention == opt.LogicalConvention {
		err = p.g.Replace(producer.ID, newID)
	} else {
		err = p.redirect(e, newID)
	}
	if err != nil {
		return false, err
	}
	return true, p.applied(r, producer.ID, newID)
}

// existingAlternative looks for a live node equivalent to producer with
// convention want: the producer itself re-tagged, or an adapter above it.
func (p *Planner) existingAlternative(producer *plan.Node, want opt.Convention) (plan.NodeID, bool) {
	if id, ok := p.g.Lookup(producer.WithConvention(want)); ok {
		return id, true
	}
	if !opt.AdapterExists(producer.Convention, want) {
		return plan.NoNode, false
	}
	return p.g.Lookup(&plan.Node{
		Op:         opt.ConvertOp,
		Inputs:     []plan.NodeID{producer.ID},
		Private:    &plan.ConvertPrivate{From: producer.Convention, To: want},
		Convention: want,
		Schema:     producer.Schema,
	})
}
