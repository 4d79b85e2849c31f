// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package optbuilder

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/correl"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/types"
)

// scopeColumn is a column visible in a scope.
type scopeColumn struct {
	qual string
	name string
	typ  *types.T
}

// Scope resolves column names for one level of a query. Its columns are the
// concatenation of the columns of its FROM items, in the order they were
// added. Columns of enclosing scopes are visible too; references to them are
// correlated.
type Scope struct {
	b      *Builder
	parent *Scope
	depth  int

	items []plan.NodeID
	cols  []scopeColumn

	// node is the relation the scope's rows come from, set when the FROM
	// clause is finished and updated as filters are applied.
	node plan.NodeID

	// correlVar is the variable under which node publishes its rows to
	// nested scopes. It is allocated the first time a nested scope refers
	// to the scope, and published when the FROM clause is finished.
	correlVar string
}

// Parent returns the enclosing scope, or nil.
func (s *Scope) Parent() *Scope { return s.parent }

// Node returns the relation producing the scope's rows, or plan.NoNode if
// the FROM clause is not finished.
func (s *Scope) Node() plan.NodeID { return s.node }

// CorrelVar returns the correlation variable of the scope, if nested scopes
// refer to it.
func (s *Scope) CorrelVar() string { return s.correlVar }

// AddFrom adds a relation to the FROM clause. Its columns are qualified
// with qual, which may be empty.
func (s *Scope) AddFrom(qual string, node plan.NodeID) error {
	if s.node != plan.NoNode {
		return errors.AssertionFailedf("FROM clause is already finished")
	}
	schema := s.b.f.Graph().Node(node).Schema
	for _, col := range schema.Columns() {
		s.cols = append(s.cols, scopeColumn{qual: qual, name: col.Name, typ: col.Type})
	}
	s.items = append(s.items, node)
	return nil
}

// ScanTable adds a scan of a catalog table to the FROM clause. The columns
// are qualified with alias, or with the table name if alias is empty.
func (s *Scope) ScanTable(ctx context.Context, name, alias string) error {
	tab, err := s.b.catalog.ResolveTable(ctx, name)
	if err != nil {
		return err
	}
	if alias == "" {
		alias = tab.Name()
	}
	return s.AddFrom(alias, s.b.f.ConstructScan(tab.Name(), tab.Columns()))
}

// FinishFrom joins the FROM items left to right and returns the resulting
// relation. The last join has the given type and ON condition; earlier ones
// are cross joins. A FROM clause without items produces one empty row.
// Nested scopes that referred to this scope before it was finished are
// resolved now.
func (s *Scope) FinishFrom(typ opt.JoinType, on opt.ScalarExpr) (_ plan.NodeID, err error) {
	defer opt.CatchOptimizerError(&err)
	if s.node != plan.NoNode {
		return plan.NoNode, errors.AssertionFailedf("FROM clause is already finished")
	}
	f := s.b.f
	switch len(s.items) {
	case 0:
		s.node = f.ConstructOneRow()
		if on != nil {
			s.node = f.ConstructFilter(s.node, on)
		}
	case 1:
		s.node = s.items[0]
		if on != nil {
			s.node = f.ConstructFilter(s.node, on)
		}
	default:
		cur := s.items[0]
		for i, in := range s.items[1:] {
			if i == len(s.items)-2 {
				cur = f.ConstructJoin(typ, cur, in, on)
			} else {
				cur = f.ConstructJoin(opt.InnerJoin, cur, in, nil /* cond */)
			}
		}
		s.node = cur
	}
	if s.correlVar != "" {
		s.b.bind(s)
	}
	return s.node, nil
}

// Where filters the rows of a finished scope.
func (s *Scope) Where(cond opt.ScalarExpr) (err error) {
	defer opt.CatchOptimizerError(&err)
	if s.node == plan.NoNode {
		return errUnfinished
	}
	s.node = s.b.f.ConstructFilter(s.node, cond)
	return nil
}

// WhereExists keeps the rows of a finished scope for which the subquery sub
// returns a row. sub is usually built in a scope nested in s.
func (s *Scope) WhereExists(sub plan.NodeID) (err error) {
	defer opt.CatchOptimizerError(&err)
	if s.node == plan.NoNode {
		return errUnfinished
	}
	s.node = s.b.Exists(s.node, sub, s.correlVar)
	return nil
}

// find returns the ordinal of the column with the given name, or -1.
func (s *Scope) find(qual, name string) (int, error) {
	found := -1
	for i, col := range s.cols {
		if col.name != name || (qual != "" && col.qual != qual) {
			continue
		}
		if found != -1 {
			return -1, errors.Newf("column reference %q is ambiguous", qualified(qual, name))
		}
		found = i
	}
	return found, nil
}

func qualified(qual, name string) string {
	if qual == "" {
		return name
	}
	return qual + "." + name
}

// Column resolves a column name. Columns of s are returned as column
// references; columns of enclosing scopes as correlation references, which
// stay unresolved until the enclosing scope's FROM clause is finished.
func (s *Scope) Column(qual, name string) (opt.ScalarExpr, error) {
	chain := 0
	for sc := s; sc != nil; sc, chain = sc.parent, chain+1 {
		ord, err := sc.find(qual, name)
		if err != nil {
			return nil, err
		}
		if ord < 0 {
			continue
		}
		col := sc.cols[ord]
		if chain == 0 {
			return &opt.ColRef{Idx: ord, Typ: col.typ}, nil
		}
		ref := &opt.CorrelRef{Field: ord, Typ: col.typ}
		s.b.nameCorrel(sc)
		if sc.node != plan.NoNode {
			s.b.bind(sc)
		}
		s.b.resolver.Resolve(sc, correl.Lookup{
			Offset:   ord,
			Chain:    chain,
			IsParent: chain == 1,
		}, func(v string) {
			ref.Var = v
		})
		return ref, nil
	}
	return nil, errors.Newf("column %q does not exist", qualified(qual, name))
}
