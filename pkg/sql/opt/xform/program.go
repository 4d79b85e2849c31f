// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/heplan/heplan/pkg/sql/opt/hep"
	"github.com/heplan/heplan/pkg/sql/opt/norm"
	"github.com/heplan/heplan/pkg/sql/opt/rule"
)

// PluginCollection is the name of the collection of rules contributed by
// plugins; the default program fires it after the standard logical rules.
const PluginCollection = "plugins"

// ProgramOptions selects the optional parts of the default program.
type ProgramOptions struct {
	// SwapRightJoins rewrites right joins as left joins. Without it right
	// joins are implemented natively.
	SwapRightJoins bool
}

// NewRegistry returns a registry holding the logical, implementation and
// enforcer rules. The caller freezes it once any additional rules are
// registered.
func NewRegistry() (*rule.Registry, error) {
	reg := rule.NewRegistry()
	if err := norm.Register(reg); err != nil {
		return nil, err
	}
	if err := reg.Register(Rules()...); err != nil {
		return nil, err
	}
	return reg, nil
}

// DefaultProgram returns the standard rewrite program:
//
//  1. push filters down and fold constant ones, to a fixpoint;
//  2. remove and merge projections and unions, to a fixpoint;
//  3. optionally swap right joins;
//  4. fire plugin rules;
//  5. flatten inner joins bottom-up, then expand them in estimated order;
//  6. fuse filters and projections into calcs, to a fixpoint;
//  7. implement every logical node;
//  8. add converters between mismatched conventions, reusing existing
//     equivalents.
func DefaultProgram(opts ProgramOptions) *hep.Program {
	b := hep.NewProgramBuilder()
	b.GroupBegin().FireRuleClass(norm.FilterClass).GroupEnd()
	b.GroupBegin().FireRuleClass(norm.ProjectClass).GroupEnd()
	if opts.SwapRightJoins {
		b.FireRule(norm.SwapRightJoin.Name)
	}
	b.FireRuleCollection(PluginCollection)
	b.MatchOrder(hep.BottomUp).FireRule(norm.ConvertMultiJoin.Name)
	b.MatchOrder(hep.Arbitrary).FireRule(norm.ExpandMultiJoin.Name)
	b.GroupBegin().FireRuleClass(norm.CalcClass).GroupEnd()
	b.FireRuleClass(ImplementationClass)
	b.AddConverters(true /* minimize */)
	return b.MustBuild()
}
