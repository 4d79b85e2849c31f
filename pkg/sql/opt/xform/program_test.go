// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/cat"
	"github.com/heplan/heplan/pkg/sql/opt/hep"
	"github.com/heplan/heplan/pkg/sql/opt/norm"
	"github.com/heplan/heplan/pkg/sql/opt/optbuilder"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/opt/props"
	"github.com/heplan/heplan/pkg/sql/opt/rule"
	"github.com/heplan/heplan/pkg/sql/opt/xform"
	"github.com/heplan/heplan/pkg/util/log"
	"github.com/stretchr/testify/require"
)

const testSpec = `
tables:
  - name: t
    columns: [a int not null, b string]
    stats: 1000
  - name: u
    columns: [x int not null]
    stats: 10
  - name: w
    columns: [y int not null]
    stats: 100
query:
  from: [{table: t}, {table: u}, {table: w}]
  where: (and (= t.a u.x) (= u.x w.y))
  order-by: [b]
`

type testPlan struct {
	f       *plan.Factory
	catalog *cat.MemCatalog
}

func buildPlan(t *testing.T, input string) testPlan {
	spec, err := optbuilder.ParsePlanSpec([]byte(input))
	require.NoError(t, err)
	catalog, err := spec.Catalog()
	require.NoError(t, err)
	f := plan.NewFactory(plan.New(), opt.NewSchemaCache())
	_, err = optbuilder.New(context.Background(), f, catalog).BuildSpec(spec.Query)
	require.NoError(t, err)
	return testPlan{f: f, catalog: catalog}
}

func newPlanner(t *testing.T, tp testPlan, cfg hep.Config) *hep.Planner {
	reg, err := xform.NewRegistry()
	require.NoError(t, err)
	reg.Freeze()
	ctx := context.Background()
	p := hep.New(ctx, tp.f, reg, cfg)
	p.SetEstimator(props.NewEstimator(ctx, tp.catalog))
	return p
}

// TestDefaultProgram runs the default program over the plan specs in
// testdata/program. Arguments:
//
//	swap-right-joins  rewrite right joins as left joins
//	terminal=name     the convention the root must have
//	disable=(A,...)   rules that must not fire
func TestDefaultProgram(t *testing.T) {
	defer log.Scope(t).Close(t)

	datadriven.RunTest(t, "testdata/program", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "optimize":
			var opts xform.ProgramOptions
			cfg := hep.DefaultConfig()
			cfg.CheckCycles = true
			for _, arg := range d.CmdArgs {
				switch arg.Key {
				case "swap-right-joins":
					opts.SwapRightJoins = true
				case "terminal":
					c, err := opt.ConventionFromString(arg.Vals[0])
					if err != nil {
						d.Fatalf(t, "%v", err)
					}
					cfg.TerminalConvention = c
				case "disable":
					cfg.DisabledRules = append(cfg.DisabledRules, arg.Vals...)
				default:
					d.Fatalf(t, "unknown argument: %s", arg.Key)
				}
			}
			tp := buildPlan(t, d.Input)
			p := newPlanner(t, tp, cfg)
			if err := p.Run(xform.DefaultProgram(opts)); err != nil {
				return fmt.Sprintf("error: %v\n", err)
			}
			return plan.Format(tp.f.Graph(), 0)

		default:
			d.Fatalf(t, "unsupported command: %s", d.Cmd)
			return ""
		}
	})
}

func TestImplementationRules(t *testing.T) {
	defer log.Scope(t).Close(t)

	for _, r := range xform.Rules() {
		require.NotNil(t, r.Convert, "rule %s is not a converter", r.Name)
		require.True(t, r.Convert.To.IsPhysical(), "rule %s", r.Name)
		if r.Class == xform.ImplementationClass {
			require.Equal(t, opt.LogicalConvention, r.Convert.From, "rule %s", r.Name)
		}
	}
	require.True(t, xform.ValuesToArray.Convert.Guaranteed)
}

// TestUnexpandedMultiJoin checks that a multi-join left logical because its
// expansion is disabled is reported as unconvertible.
func TestUnexpandedMultiJoin(t *testing.T) {
	defer log.Scope(t).Close(t)

	tp := buildPlan(t, testSpec)
	cfg := hep.DefaultConfig()
	cfg.DisabledRules = []string{norm.ExpandMultiJoin.Name}
	p := newPlanner(t, tp, cfg)
	err := p.Run(xform.DefaultProgram(xform.ProgramOptions{}))
	require.Error(t, err)

	var unconvertible *hep.UnconvertibleError
	require.True(t, errors.As(err, &unconvertible), "%+v", err)
	require.Equal(t, opt.MultiJoinOp, unconvertible.Op)
	require.Equal(t, opt.LogicalConvention, unconvertible.Convention)
	require.Equal(t, opt.IteratorConvention, unconvertible.Required)
	require.False(t, tp.f.Graph().Frozen())
}

// TestPluginRules registers a plugin rule that drops sorts and checks that
// the default program fires it.
func TestPluginRules(t *testing.T) {
	defer log.Scope(t).Close(t)

	tp := buildPlan(t, testSpec)
	p := newPlanner(t, tp, hep.DefaultConfig())
	require.NoError(t, p.BeginPluginRegistration(xform.PluginCollection))
	require.NoError(t, p.AddRule(&rule.Rule{
		Name:    "DropSort",
		Class:   "plugin",
		Operand: rule.Pattern(opt.SortOp),
		Apply: func(c *rule.Call) plan.NodeID {
			return c.Root().Inputs[0]
		},
	}))
	require.NoError(t, p.EndPluginRegistration())

	var applied []string
	p.NotifyOnAppliedRule(func(a hep.AppliedRule) {
		if a.Rule != nil {
			applied = append(applied, a.Rule.Name)
		}
	})
	require.NoError(t, p.Run(xform.DefaultProgram(xform.ProgramOptions{})))
	require.Contains(t, applied, "DropSort")
	require.Contains(t, applied, norm.ExpandMultiJoin.Name)

	g := tp.f.Graph()
	require.True(t, g.Frozen())
	for _, id := range g.Reachable() {
		n := g.Node(id)
		require.NotEqual(t, opt.SortOp, n.Op)
		require.NotEqual(t, opt.ConvertOp, n.Op)
		require.Equal(t, opt.IteratorConvention, n.Convention, "%s", n)
	}

	stats := make(map[string]hep.RuleStat)
	for _, s := range p.RuleStats() {
		stats[s.Name] = s
	}
	require.Equal(t, 1, stats["DropSort"].Applications)
	require.Equal(t, 2, stats[norm.ConvertMultiJoin.Name].Applications)
}
