// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package optbuilder builds logical plan graphs. Queries are assembled scope
// by scope: a scope collects the relations of a FROM clause and resolves
// column names against them and against enclosing scopes. A name that
// resolves to an enclosing scope becomes a correlation reference, which is
// wired to the enclosing scope's row once that scope's relation exists. The
// order in which scopes are finished does not matter.
package optbuilder

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/cat"
	"github.com/heplan/heplan/pkg/sql/opt/correl"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/types"
	"github.com/heplan/heplan/pkg/util/log"
)

// Builder holds the state shared by the scopes of one query.
type Builder struct {
	ctx     context.Context
	f       *plan.Factory
	catalog cat.Catalog

	// resolver maps scopes to the correlation variables that publish their
	// rows.
	resolver   *correl.Resolver[*Scope, string]
	nextCorrel int
}

// New returns a builder adding nodes through f and resolving tables in
// catalog.
func New(ctx context.Context, f *plan.Factory, catalog cat.Catalog) *Builder {
	return &Builder{
		ctx:      ctx,
		f:        f,
		catalog:  catalog,
		resolver: correl.NewResolver[*Scope, string](),
	}
}

// Factory returns the factory the builder adds nodes through.
func (b *Builder) Factory() *plan.Factory { return b.f }

// NewScope returns a scope nested in parent, which may be nil.
func (b *Builder) NewScope(parent *Scope) *Scope {
	s := &Scope{b: b, parent: parent}
	if parent != nil {
		s.depth = parent.depth + 1
	}
	return s
}

// Finish checks that every correlation reference was resolved and makes
// root the root of the graph.
func (b *Builder) Finish(root plan.NodeID) error {
	if err := b.resolver.Check(); err != nil {
		return err
	}
	g := b.f.Graph()
	// References resolved after their nodes were added change those nodes'
	// identities.
	g.Rekey()
	g.SetRoot(root)
	return nil
}

// nameCorrel allocates the correlation variable of s the first time a nested
// scope refers to it. Names are handed out in reference order, whether or
// not the FROM clause of s is finished yet.
func (b *Builder) nameCorrel(s *Scope) {
	if s.correlVar != "" {
		return
	}
	s.correlVar = fmt.Sprintf("$cor%d", b.nextCorrel)
	b.nextCorrel++
	log.VEventf(b.ctx, 2, "scope at depth %d publishes %s", s.depth, s.correlVar)
}

// bind publishes the correlation variable of s and resolves the references
// waiting for it. s must be named and its FROM clause finished.
func (b *Builder) bind(s *Scope) {
	if _, ok := b.resolver.Binding(s); ok {
		return
	}
	b.resolver.Bind(s, s.correlVar)
}

// Exists returns the rows of outer for which the subquery sub returns at
// least one row. The subquery may refer to outer's row through correlation
// references. The result has outer's schema:
//
//	(Project
//	  (Filter
//	    (Correlate left $outer
//	      (Aggregate (Project $sub [true]) group=(indicator)))
//	    (IsNotNull indicator))
//	  [outer columns])
//
// Grouping on the constant indicator reduces the subquery to at most one
// row, so outer rows are never duplicated; the left correlate pads outer
// rows without a match with NULL, and the filter removes them.
func (b *Builder) Exists(outer, sub plan.NodeID, correlVar string) plan.NodeID {
	f := b.f
	outerSchema := f.Graph().Node(outer).Schema
	indicator := f.ConstructProject(sub,
		[]opt.ScalarExpr{opt.TrueExpr}, []string{"exists"})
	oneRow := f.ConstructAggregate(indicator, []int{0}, nil /* aggs */)
	if correlVar != "" {
		outer = f.ConstructWithCorrelVar(outer, correlVar)
	}
	correlate := f.ConstructCorrelate(opt.LeftJoin, outer, oneRow)
	lw := outerSchema.Width()
	filter := f.ConstructFilter(correlate, &opt.IsNull{
		Input:  &opt.ColRef{Idx: lw, Typ: types.Bool},
		Negate: true,
	})
	exprs := make([]opt.ScalarExpr, lw)
	names := make([]string, lw)
	for i := range exprs {
		col := outerSchema.Column(i)
		exprs[i] = &opt.ColRef{Idx: i, Typ: col.Type}
		names[i] = col.Name
	}
	return f.ConstructProject(filter, exprs, names)
}

// errUnfinished is returned when a scope is used before its FROM clause is
// finished.
var errUnfinished = errors.New("FROM clause is not finished")
