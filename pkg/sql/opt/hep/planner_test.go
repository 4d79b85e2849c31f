// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package hep

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/opt/rule"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
	"github.com/heplan/heplan/pkg/sql/types"
	"github.com/heplan/heplan/pkg/util/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var tCols = []opt.Column{
	{Name: "a", Type: types.Int},
	{Name: "b", Type: types.Int, Nullable: true},
}

func gt(col, val int) opt.ScalarExpr {
	return &opt.Cmp{
		Op:    tree.GT,
		Left:  &opt.ColRef{Idx: col, Typ: types.Int},
		Right: &opt.Const{Value: tree.NewDInt(tree.DInt(val))},
	}
}

func filterCond(n *plan.Node) opt.ScalarExpr {
	return n.Private.(*plan.FilterPrivate).Cond
}

var removeTrueFilter = &rule.Rule{
	Name:    "RemoveTrueFilter",
	Class:   "test",
	Operand: rule.Pattern(opt.FilterOp),
	Apply: func(c *rule.Call) plan.NodeID {
		if !opt.IsTrue(filterCond(c.Root())) {
			return plan.NoNode
		}
		return c.Root().Inputs[0]
	},
}

var mergeFilter = &rule.Rule{
	Name:    "MergeFilter",
	Class:   "test",
	Operand: rule.Pattern(opt.FilterOp, rule.Pattern(opt.FilterOp)),
	Apply: func(c *rule.Call) plan.NodeID {
		top, bottom := c.Node(0), c.Node(1)
		cond := &opt.And{Left: filterCond(bottom), Right: filterCond(top)}
		return c.Factory.ConstructFilter(bottom.Inputs[0], cond)
	},
}

// commuteFilter never converges: it swaps the operands of a comparison back
// and forth.
var commuteFilter = &rule.Rule{
	Name:    "CommuteFilter",
	Operand: rule.Pattern(opt.FilterOp),
	Apply: func(c *rule.Call) plan.NodeID {
		cmp, ok := filterCond(c.Root()).(*opt.Cmp)
		if !ok {
			return plan.NoNode
		}
		return c.Factory.ConstructFilter(c.Root().Inputs[0],
			&opt.Cmp{Op: cmp.Op.Commute(), Left: cmp.Right, Right: cmp.Left})
	},
}

var narrowFilter = &rule.Rule{
	Name:    "NarrowFilter",
	Operand: rule.Pattern(opt.FilterOp),
	Apply: func(c *rule.Call) plan.NodeID {
		return c.Factory.ConstructProject(c.Root().Inputs[0],
			[]opt.ScalarExpr{&opt.ColRef{Idx: 0, Typ: types.Int}}, []string{"a"})
	},
}

var rejectLate = &rule.Rule{
	Name:    "RejectLate",
	Operand: rule.Pattern(opt.FilterOp),
	Apply: func(c *rule.Call) plan.NodeID {
		c.Factory.ConstructFilter(c.Root().Inputs[0], gt(0, 100))
		return plan.NoNode
	},
}

var panicking = &rule.Rule{
	Name:    "Panicking",
	Operand: rule.Pattern(opt.FilterOp),
	Apply: func(c *rule.Call) plan.NodeID {
		c.Factory.ConstructFilter(c.Root().Inputs[0], gt(0, 100))
		panic(errors.New("boom"))
	},
}

var crashing = &rule.Rule{
	Name:    "Crashing",
	Operand: rule.Pattern(opt.FilterOp),
	Apply: func(c *rule.Call) plan.NodeID {
		var inputs []plan.NodeID
		return inputs[len(c.Nodes)]
	},
}

func implRule(op opt.Operator, to opt.Convention) *rule.Rule {
	return &rule.Rule{
		Name:    "Impl" + op.String(),
		Class:   "impl",
		Operand: rule.Pattern(op),
		Apply: func(c *rule.Call) plan.NodeID {
			return c.Factory.ConstructCopy(c.Root().WithConvention(to))
		},
		Convert: &rule.Conversion{From: opt.LogicalConvention, To: to},
	}
}

var valuesToArray = &rule.Rule{
	Name:    "ValuesToArray",
	Operand: rule.Pattern(opt.ValuesOp),
	Apply: func(c *rule.Call) plan.NodeID {
		return c.Factory.ConstructCopy(c.Root().WithConvention(opt.ArrayConvention))
	},
	Convert: &rule.Conversion{
		From: opt.IteratorConvention, To: opt.ArrayConvention, Guaranteed: true,
	},
}

var testRules = []*rule.Rule{
	removeTrueFilter, mergeFilter, commuteFilter, narrowFilter, rejectLate, panicking, crashing,
	implRule(opt.ScanOp, opt.IteratorConvention),
	implRule(opt.FilterOp, opt.IteratorConvention),
	implRule(opt.ValuesOp, opt.IteratorConvention),
	implRule(opt.SortOp, opt.ArrayConvention),
	valuesToArray,
}

var testRegistry = func() *rule.Registry {
	r := rule.NewRegistry()
	r.MustRegister(testRules...)
	r.Freeze()
	return r
}()

type testEnv struct {
	f *plan.Factory
	g *plan.Graph
}

func newTestEnv() *testEnv {
	g := plan.New()
	return &testEnv{f: plan.NewFactory(g, opt.NewSchemaCache()), g: g}
}

func (e *testEnv) planner(cfg Config) *Planner {
	return New(context.Background(), e.f, testRegistry, cfg)
}

// filterChain builds filters with the given conditions, the first one on top,
// over a scan, and makes the top filter the root.
func (e *testEnv) filterChain(conds ...opt.ScalarExpr) {
	id := e.f.ConstructScan("t", tCols)
	for i := len(conds) - 1; i >= 0; i-- {
		id = e.f.ConstructFilter(id, conds[i])
	}
	e.g.SetRoot(id)
}

func (e *testEnv) count(op opt.Operator) int {
	n := 0
	for _, id := range e.g.Reachable() {
		if e.g.Node(id).Op == op {
			n++
		}
	}
	return n
}

func run(t *testing.T, p *Planner, b *ProgramBuilder) {
	t.Helper()
	require.NoError(t, p.Execute(b.MustBuild()))
}

func TestMatchOrder(t *testing.T) {
	defer log.Scope(t).Close(t)

	testCases := []struct {
		name    string
		program *ProgramBuilder
		filters int
	}{
		{
			// A single top-down pass merges the top two filters; the merged
			// filter is not revisited.
			name:    "top-down",
			program: NewProgramBuilder().MatchOrder(TopDown).FireRule("MergeFilter"),
			filters: 2,
		},
		{
			// Bottom-up merges the lower filters first, so the top filter
			// still matches when it is visited.
			name:    "bottom-up",
			program: NewProgramBuilder().MatchOrder(BottomUp).FireRule("MergeFilter"),
			filters: 1,
		},
		{
			name:    "arbitrary",
			program: NewProgramBuilder().FireRule("MergeFilter"),
			filters: 1,
		},
		{
			name: "top-down group",
			program: NewProgramBuilder().MatchOrder(TopDown).
				GroupBegin().FireRule("MergeFilter").GroupEnd(),
			filters: 1,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv()
			e.filterChain(gt(0, 3), gt(0, 2), gt(0, 1))
			p := e.planner(DefaultConfig())
			run(t, p, tc.program)
			require.Equal(t, tc.filters, e.count(opt.FilterOp))
		})
	}

	e := newTestEnv()
	e.filterChain(gt(0, 3), gt(0, 2), gt(0, 1))
	run(t, e.planner(DefaultConfig()), NewProgramBuilder().MatchOrder(TopDown).FireRule("MergeFilter"))
	require.Equal(t, `filter $0 > 2 AND $0 > 3
 └── filter $0 > 1
      └── scan t
`, plan.Format(e.g, 0))
}

func TestMatchLimit(t *testing.T) {
	defer log.Scope(t).Close(t)

	testCases := []struct {
		name      string
		program   *ProgramBuilder
		remaining int
	}{
		{
			name:      "limit 1",
			program:   NewProgramBuilder().MatchLimit(1).FireRule("RemoveTrueFilter"),
			remaining: 2,
		},
		{
			name: "limit 1 top-down",
			program: NewProgramBuilder().MatchOrder(TopDown).MatchLimit(1).
				FireRule("RemoveTrueFilter"),
			remaining: 2,
		},
		{
			name: "limit 2 group",
			program: NewProgramBuilder().MatchLimit(2).
				GroupBegin().FireRule("RemoveTrueFilter").FireRule("MergeFilter").GroupEnd(),
			remaining: 1,
		},
		{
			// The limit applies to each following instruction separately.
			name: "limit per instruction",
			program: NewProgramBuilder().MatchLimit(1).
				FireRule("RemoveTrueFilter").FireRule("RemoveTrueFilter"),
			remaining: 1,
		},
		{
			name:      "unlimited",
			program:   NewProgramBuilder().MatchLimit(1).MatchLimit(Unlimited).FireRule("RemoveTrueFilter"),
			remaining: 0,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv()
			e.filterChain(opt.TrueExpr, opt.TrueExpr, opt.TrueExpr)
			p := e.planner(DefaultConfig())
			run(t, p, tc.program)
			require.Equal(t, tc.remaining, e.count(opt.FilterOp))
			require.Equal(t, 3-tc.remaining, p.Transformations())
		})
	}
}

func TestGroupIdempotence(t *testing.T) {
	defer log.Scope(t).Close(t)

	e := newTestEnv()
	e.filterChain(gt(0, 1), opt.TrueExpr, gt(1, 2), opt.TrueExpr)
	p := e.planner(DefaultConfig())
	prog := NewProgramBuilder().
		GroupBegin().FireRule("RemoveTrueFilter").FireRule("MergeFilter").GroupEnd().
		MustBuild()

	require.NoError(t, p.Execute(prog))
	n := p.Transformations()
	require.Greater(t, n, 0)
	before := plan.Format(e.g, plan.FmtIDs)

	require.NoError(t, p.Execute(prog))
	require.Equal(t, n, p.Transformations())
	require.Equal(t, before, plan.Format(e.g, plan.FmtIDs))
	require.Equal(t, 1, e.count(opt.FilterOp))
}

func TestSubprogram(t *testing.T) {
	defer log.Scope(t).Close(t)

	e := newTestEnv()
	e.filterChain(opt.TrueExpr, opt.TrueExpr, opt.TrueExpr)
	p := e.planner(DefaultConfig())
	sub := NewProgramBuilder().MatchLimit(1).FireRule("RemoveTrueFilter").MustBuild()

	// The outer limit does not constrain the subprogram, which runs until it
	// makes no change.
	run(t, p, NewProgramBuilder().MatchLimit(1).Subprogram(sub))
	require.Equal(t, 0, e.count(opt.FilterOp))
	require.Equal(t, 3, p.Transformations())
}

func TestDidNotConverge(t *testing.T) {
	defer log.Scope(t).Close(t)

	cfg := DefaultConfig()
	cfg.MaxFixpointIterations = 10
	cfg.MaxPassApplications = 50

	testCases := []struct {
		name    string
		program *ProgramBuilder
	}{
		{name: "arbitrary pass", program: NewProgramBuilder().FireRule("CommuteFilter")},
		{
			name: "group",
			program: NewProgramBuilder().MatchOrder(TopDown).
				GroupBegin().FireRule("CommuteFilter").GroupEnd(),
		},
		{
			name: "subprogram",
			program: NewProgramBuilder().Subprogram(
				NewProgramBuilder().MatchOrder(TopDown).FireRule("CommuteFilter").MustBuild()),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv()
			e.filterChain(gt(0, 1))
			err := e.planner(cfg).Execute(tc.program.MustBuild())
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrDidNotConverge), "%+v", err)
		})
	}

	// A bounded pass terminates even though the rule never converges.
	e := newTestEnv()
	e.filterChain(gt(0, 1))
	p := e.planner(cfg)
	run(t, p, NewProgramBuilder().MatchOrder(TopDown).FireRule("CommuteFilter"))
	require.Equal(t, 1, p.Transformations())
	require.Equal(t, "filter 1 < $0\n └── scan t\n", plan.Format(e.g, 0))
}

func TestSchemaPreservation(t *testing.T) {
	defer log.Scope(t).Close(t)

	e := newTestEnv()
	e.filterChain(gt(0, 1))
	p := e.planner(DefaultConfig())
	before := e.g.Len()
	err := p.Execute(NewProgramBuilder().FireRule("NarrowFilter").MustBuild())
	require.Error(t, err)
	require.True(t, errors.HasAssertionFailure(err), "%+v", err)
	require.Equal(t, before, e.g.Len())
	require.Equal(t, opt.FilterOp, e.g.Node(e.g.Root()).Op)

	// The same transform is allowed when the rule is marked as coercing.
	coercing := *narrowFilter
	coercing.Name = "NarrowFilterCoercing"
	coercing.Coerces = true
	reg := rule.NewRegistry()
	reg.MustRegister(&coercing)
	e = newTestEnv()
	e.filterChain(gt(0, 1))
	p = New(context.Background(), e.f, reg, DefaultConfig())
	run(t, p, NewProgramBuilder().MatchLimit(1).FireRule("NarrowFilterCoercing"))
	require.Equal(t, 1, e.g.Node(e.g.Root()).Schema.Width())
}

func TestTransformFailure(t *testing.T) {
	defer log.Scope(t).Close(t)

	t.Run("late rejection", func(t *testing.T) {
		e := newTestEnv()
		e.filterChain(gt(0, 1))
		before := e.g.Len()
		p := e.planner(DefaultConfig())
		run(t, p, NewProgramBuilder().FireRule("RejectLate"))
		require.Equal(t, 0, p.Transformations())
		require.Equal(t, before, e.g.Len())
	})

	t.Run("panic", func(t *testing.T) {
		e := newTestEnv()
		e.filterChain(gt(0, 1))
		before := e.g.Len()
		err := e.planner(DefaultConfig()).Execute(NewProgramBuilder().FireRule("Panicking").MustBuild())
		require.Error(t, err)
		require.Contains(t, err.Error(), "boom")
		require.Contains(t, err.Error(), "Panicking")
		require.Equal(t, before, e.g.Len())
	})

	t.Run("runtime error", func(t *testing.T) {
		e := newTestEnv()
		e.filterChain(gt(0, 1))
		err := e.planner(DefaultConfig()).Execute(NewProgramBuilder().FireRule("Crashing").MustBuild())
		require.Error(t, err)
		require.True(t, errors.HasAssertionFailure(err), "%+v", err)
	})

	t.Run("unknown rule", func(t *testing.T) {
		e := newTestEnv()
		e.filterChain(gt(0, 1))
		err := e.planner(DefaultConfig()).Execute(NewProgramBuilder().FireRule("NoSuchRule").MustBuild())
		require.Error(t, err)
		require.Contains(t, err.Error(), "NoSuchRule")
	})
}

func TestAddConverters(t *testing.T) {
	defer log.Scope(t).Close(t)

	e := newTestEnv()
	scan := e.f.ConstructScan("t", tCols)
	e.g.SetRoot(e.f.ConstructSort(e.f.ConstructFilter(scan, gt(0, 1)), []plan.SortKey{{Col: 1}}))

	p := e.planner(DefaultConfig())
	require.NoError(t, p.Run(NewProgramBuilder().AddConverters(false).MustBuild()))
	require.True(t, e.g.Frozen())
	require.Equal(t, `convert array->iterator [iterator]
 └── sort +1 [array]
      └── filter $0 > 1 [iterator]
           └── scan t [iterator]
`, plan.Format(e.g, 0))
}

func TestAddConvertersMinimize(t *testing.T) {
	defer log.Scope(t).Close(t)

	cfg := DefaultConfig()
	cfg.TerminalConvention = opt.ArrayConvention

	build := func() (*testEnv, plan.NodeID) {
		e := newTestEnv()
		scan := e.f.ConstructCopy(e.g.Node(e.f.ConstructScan("t", tCols)).WithConvention(opt.IteratorConvention))
		filter := e.f.ConstructCopy(e.g.Node(e.f.ConstructFilter(scan, gt(0, 1))).WithConvention(opt.IteratorConvention))
		e.g.SetRoot(filter)
		// An equivalent array-convention node is already available.
		sibling := e.f.ConstructCopy(e.g.Node(filter).WithConvention(opt.ArrayConvention))
		return e, sibling
	}

	e, sibling := build()
	p := e.planner(cfg)
	m := NewMetrics()
	require.NoError(t, m.Register(prometheus.NewRegistry()))
	p.SetMetrics(m)
	var applied []AppliedRule
	p.NotifyOnAppliedRule(func(a AppliedRule) { applied = append(applied, a) })
	filter := e.g.Root()
	require.NoError(t, p.Run(NewProgramBuilder().AddConverters(true).MustBuild()))
	require.Equal(t, sibling, e.g.Root())
	require.Equal(t, 0, e.count(opt.ConvertOp))
	// Reusing the sibling counts as a transformation like any other.
	require.Equal(t, []AppliedRule{{Node: filter, Replacement: sibling}}, applied)
	require.Equal(t, 1, p.Transformations())
	require.Equal(t, 1.0, testutil.ToFloat64(m.ConvertersAdded))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Transformations))

	e, sibling = build()
	require.NoError(t, e.planner(cfg).Run(NewProgramBuilder().AddConverters(false).MustBuild()))
	require.NotEqual(t, sibling, e.g.Root())
	require.Equal(t, 1, e.count(opt.ConvertOp))
	require.Equal(t, `convert iterator->array [array]
 └── filter $0 > 1 [iterator]
      └── scan t [iterator]
`, plan.Format(e.g, 0))
}

func TestUnconvertible(t *testing.T) {
	defer log.Scope(t).Close(t)

	e := newTestEnv()
	left := e.f.ConstructScan("l", tCols)
	right := e.f.ConstructScan("r", tCols)
	e.g.SetRoot(e.f.ConstructFilter(e.f.ConstructMultiJoin([]plan.NodeID{left, right}, nil), gt(0, 1)))

	p := e.planner(DefaultConfig())
	require.NoError(t, p.Execute(NewProgramBuilder().FireRuleClass("impl").AddConverters(true).MustBuild()))
	err := p.Finish()
	require.Error(t, err)
	var unconvertible *UnconvertibleError
	require.True(t, errors.As(err, &unconvertible))
	require.Equal(t, opt.MultiJoinOp, unconvertible.Op)
	require.Equal(t, opt.LogicalConvention, unconvertible.Convention)
	require.Equal(t, opt.IteratorConvention, unconvertible.Required)
	require.Contains(t, err.Error(), "unconvertible node")
	require.False(t, e.g.Frozen())
}

func TestGuaranteedConverter(t *testing.T) {
	defer log.Scope(t).Close(t)

	build := func() *testEnv {
		e := newTestEnv()
		rows := []tree.Datums{{tree.NewDInt(1), tree.DNull}}
		values := e.f.ConstructValues(rows, tCols)
		e.g.SetRoot(e.f.ConstructCopy(e.g.Node(values).WithConvention(opt.IteratorConvention)))
		return e
	}

	// No consumer requires an array: the converter does not fire.
	e := build()
	p := e.planner(DefaultConfig())
	run(t, p, NewProgramBuilder().FireRule("ValuesToArray"))
	require.Equal(t, 0, p.Transformations())

	cfg := DefaultConfig()
	cfg.TerminalConvention = opt.ArrayConvention
	e = build()
	p = e.planner(cfg)
	run(t, p, NewProgramBuilder().FireRule("ValuesToArray"))
	require.Equal(t, 1, p.Transformations())
	require.Equal(t, opt.ArrayConvention, e.g.Node(e.g.Root()).Convention)
	require.NoError(t, p.Finish())
}

func TestPlugins(t *testing.T) {
	defer log.Scope(t).Close(t)

	e := newTestEnv()
	e.filterChain(opt.TrueExpr)
	p := e.planner(DefaultConfig())
	prog := NewProgramBuilder().FireRuleCollection("plugins").MustBuild()

	require.Error(t, p.AddRule(removeTrueFilter))
	require.NoError(t, p.BeginPluginRegistration("plugins"))
	require.NoError(t, p.AddRule(removeTrueFilter))
	require.Error(t, p.Execute(prog))
	require.NoError(t, p.EndPluginRegistration())

	require.NoError(t, p.Execute(prog))
	require.Equal(t, 0, e.count(opt.FilterOp))

	// Unknown collections are empty.
	require.NoError(t, p.Execute(NewProgramBuilder().FireRuleCollection("other").MustBuild()))
}

func TestDisabledRules(t *testing.T) {
	defer log.Scope(t).Close(t)

	cfg := DefaultConfig()
	cfg.DisabledRules = []string{"RemoveTrueFilter"}
	e := newTestEnv()
	e.filterChain(opt.TrueExpr)
	p := e.planner(cfg)
	run(t, p, NewProgramBuilder().FireRule("RemoveTrueFilter").FireRuleClass("test"))
	require.Equal(t, 1, e.count(opt.FilterOp))
}

func TestNotificationsAndMetrics(t *testing.T) {
	defer log.Scope(t).Close(t)

	e := newTestEnv()
	e.filterChain(opt.TrueExpr, gt(0, 1))
	p := e.planner(DefaultConfig())
	m := NewMetrics()
	require.NoError(t, m.Register(prometheus.NewRegistry()))
	p.SetMetrics(m)

	var applied []string
	p.NotifyOnAppliedRule(func(a AppliedRule) {
		require.NotEqual(t, a.Node, a.Replacement)
		applied = append(applied, a.Rule.Name)
	})
	run(t, p, NewProgramBuilder().FireRule("RemoveTrueFilter"))
	require.Equal(t, []string{"RemoveTrueFilter"}, applied)
	require.Equal(t, 1.0, testutil.ToFloat64(m.RuleApplications.WithLabelValues("RemoveTrueFilter")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Transformations))

	stats := p.RuleStats()
	require.Len(t, stats, 1)
	require.Equal(t, RuleStat{Name: "RemoveTrueFilter", Attempts: 3, Matches: 2, Applications: 1}, stats[0])
}

// TestArbitraryOrderSkipsExaminedNodes checks that after an application an
// arbitrary-order pass only revisits the nodes above the change and the
// nodes it has not examined yet.
func TestArbitraryOrderSkipsExaminedNodes(t *testing.T) {
	defer log.Scope(t).Close(t)

	e := newTestEnv()
	left := e.f.ConstructFilter(e.f.ConstructScan("l", tCols), gt(0, 1))
	right := e.f.ConstructFilter(e.f.ConstructScan("r", tCols), opt.TrueExpr)
	join := e.f.ConstructMultiJoin([]plan.NodeID{left, right}, nil)
	e.g.SetRoot(join)

	p := e.planner(DefaultConfig())
	run(t, p, NewProgramBuilder().FireRule("RemoveTrueFilter"))
	require.Equal(t, 1, e.count(opt.FilterOp))
	require.Equal(t, join, e.g.Root())

	// The join, the left filter, the left scan and the right filter are tried
	// once before the right filter is removed; the restart only tries the
	// join again and the right scan.
	stats := p.RuleStats()
	require.Len(t, stats, 1)
	require.Equal(t, RuleStat{Name: "RemoveTrueFilter", Attempts: 6, Matches: 2, Applications: 1}, stats[0])
}

func TestProgramBuilder(t *testing.T) {
	sub := NewProgramBuilder().MatchLimit(1).FireRule("B").MustBuild()
	prog, err := NewProgramBuilder().
		MatchOrder(BottomUp).
		GroupBegin().FireRule("A").FireRuleClass("c").GroupEnd().
		Subprogram(sub).
		FireRuleCollection("plugins").
		AddConverters(true).
		Build()
	require.NoError(t, err)
	require.Equal(t, 8, prog.Len())
	require.Equal(t, `match-order bottom-up
group-begin
  fire A
  fire-class c
group-end
subprogram
  match-limit 1
  fire B
fire-collection plugins
add-converters minimize
`, prog.String())

	for name, b := range map[string]*ProgramBuilder{
		"nested group":     NewProgramBuilder().GroupBegin().GroupBegin(),
		"unbalanced end":   NewProgramBuilder().GroupEnd(),
		"unterminated":     NewProgramBuilder().GroupBegin().FireRule("A"),
		"order in group":   NewProgramBuilder().GroupBegin().MatchOrder(TopDown).GroupEnd(),
		"negative limit":   NewProgramBuilder().MatchLimit(-1),
		"nil subprogram":   NewProgramBuilder().Subprogram(nil),
		"convert in group": NewProgramBuilder().GroupBegin().AddConverters(false).GroupEnd(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := b.Build()
			require.Error(t, err)
		})
	}
}
