// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package hep implements a heuristic planner: it applies rewrite rules to a
// plan graph in the order given by a Program, rather than exploring
// alternatives by cost. The planner converts the graph in place until every
// reachable node has a physical convention, and then freezes it.
package hep

import (
	"context"
	"sort"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/opt/props"
	"github.com/heplan/heplan/pkg/sql/opt/rule"
	"github.com/heplan/heplan/pkg/util/log"
)

// AppliedRule describes one transformation. Rule is nil for adapters
// inserted by AddConverters and for existing nodes it reuses.
type AppliedRule struct {
	Rule        *rule.Rule
	Node        plan.NodeID
	Replacement plan.NodeID
}

// RuleStat counts the activity of one rule.
type RuleStat struct {
	Name         string
	Attempts     int
	Matches      int
	Applications int
}

// Planner runs programs against a plan graph. A Planner belongs to a single
// compilation and is not safe for concurrent use.
type Planner struct {
	ctx       context.Context
	f         *plan.Factory
	g         *plan.Graph
	reg       *rule.Registry
	cfg       Config
	disabled  map[string]struct{}
	estimator *props.Estimator
	metrics   *Metrics
	plugins   *rule.Collector
	listeners []func(AppliedRule)

	nTransformations int
	stats            map[string]*RuleStat
	// lastReplacement is the node produced by the latest transformation.
	lastReplacement plan.NodeID

	// slowGroup rate limits progress reports of long fixpoint loops.
	slowGroup log.EveryN
}

// New returns a planner that rewrites the graph of f using the rules of reg.
func New(ctx context.Context, f *plan.Factory, reg *rule.Registry, cfg Config) *Planner {
	p := &Planner{
		ctx:      ctx,
		f:        f,
		g:        f.Graph(),
		reg:      reg,
		cfg:      cfg,
		disabled: make(map[string]struct{}, len(cfg.DisabledRules)),
		plugins:  rule.NewCollector(),
		stats:    make(map[string]*RuleStat),

		slowGroup: log.Every(time.Second),
	}
	for _, name := range cfg.DisabledRules {
		p.disabled[name] = struct{}{}
	}
	return p
}

// SetEstimator sets the estimator rules consult for row counts.
func (p *Planner) SetEstimator(e *props.Estimator) { p.estimator = e }

// SetMetrics sets the metrics the planner reports to.
func (p *Planner) SetMetrics(m *Metrics) { p.metrics = m }

// SetPluginCollector replaces the collector holding plugin rules.
func (p *Planner) SetPluginCollector(c *rule.Collector) { p.plugins = c }

// NotifyOnAppliedRule registers a function called after every
// transformation.
func (p *Planner) NotifyOnAppliedRule(fn func(AppliedRule)) {
	p.listeners = append(p.listeners, fn)
}

// Graph returns the graph being planned.
func (p *Planner) Graph() *plan.Graph { return p.g }

// Transformations returns the number of transformations applied so far.
func (p *Planner) Transformations() int { return p.nTransformations }

// RuleStats returns per-rule counters, ordered by rule name.
func (p *Planner) RuleStats() []RuleStat {
	res := make([]RuleStat, 0, len(p.stats))
	for _, s := range p.stats {
		res = append(res, *s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// BeginPluginRegistration starts a phase during which AddRule captures rules
// into the named collection. The collection is fired by a
// FireRuleCollection instruction with the same name.
func (p *Planner) BeginPluginRegistration(name string) error {
	return p.plugins.Begin(name)
}

// EndPluginRegistration ends the current registration phase.
func (p *Planner) EndPluginRegistration() error {
	return p.plugins.End()
}

// AddRule adds a rule to the collection being registered.
func (p *Planner) AddRule(r *rule.Rule) error {
	if _, ok := p.plugins.Registering(); !ok {
		return errors.AssertionFailedf("rule %s added outside of a plugin registration", r.Name)
	}
	return p.plugins.Add(r)
}

// Run executes prog and then finishes planning.
func (p *Planner) Run(prog *Program) error {
	if err := p.Execute(prog); err != nil {
		return err
	}
	return p.Finish()
}

// Execute runs the instructions of prog against the graph. A panic raised by
// a rule aborts execution; the nodes added by that rule are discarded and
// the panic is returned as an error.
func (p *Planner) Execute(prog *Program) (err error) {
	defer opt.CatchOptimizerError(&err)
	if p.g.Frozen() {
		return errors.AssertionFailedf("cannot plan a frozen graph")
	}
	if p.g.Root() == plan.NoNode {
		return errors.AssertionFailedf("plan graph has no root")
	}
	if name, ok := p.plugins.Registering(); ok {
		return errors.AssertionFailedf("plugin registration of %s is still in progress", redact.Safe(name))
	}
	return p.executeProgram(prog, 0 /* depth */)
}

// Finish verifies that every reachable node has the convention its consumer
// requires, removes unreachable nodes and freezes the graph.
func (p *Planner) Finish() (err error) {
	defer opt.CatchOptimizerError(&err)
	if err := p.checkConverted(); err != nil {
		return err
	}
	if n := p.g.CollectGarbage(); n > 0 {
		log.VEventf(p.ctx, 2, "collected %d unreachable nodes", n)
	}
	if err := p.g.CheckAcyclic(); err != nil {
		return err
	}
	p.g.Freeze()
	return nil
}

// programState is the match order and limit in effect while executing one
// program.
type programState struct {
	order MatchOrder
	limit int
}

// unit is a scheduling unit: a bare rule instruction or a group. Its match
// limit counts successful applications across all of its passes.
type unit struct {
	order MatchOrder
	limit int
	count int
}

func (u *unit) exhausted() bool {
	return u.limit != Unlimited && u.count >= u.limit
}

func (p *Planner) executeProgram(prog *Program, depth int) error {
	st := programState{order: Arbitrary, limit: Unlimited}
	var group []*rule.Rule
	inGroup := false
	for pc := 0; pc < prog.Len(); pc++ {
		instr := prog.Instruction(pc)
		log.VEventf(p.ctx, 3, "program depth %d, instruction %d: %s", depth, pc, instr)

		var err error
		switch t := instr.(type) {
		case *SetMatchOrder:
			st.order = t.Order

		case *SetMatchLimit:
			st.limit = t.Limit

		case *GroupBegin:
			group, inGroup = nil, true

		case *GroupEnd:
			inGroup = false
			err = p.runGroup(group, st)

		case *FireRule, *FireRuleClass, *FireRuleCollection:
			var rules []*rule.Rule
			if rules, err = p.resolveRules(instr); err != nil {
				break
			}
			if inGroup {
				group = append(group, rules...)
				break
			}
			u := unit{order: st.order, limit: st.limit}
			_, err = p.applyRules(rules, &u)

		case *Subprogram:
			err = p.runSubprogram(t.Program, depth)

		case *AddConverters:
			err = p.addConverters(t.Minimize)

		default:
			err = errors.AssertionFailedf("unhandled instruction %T", instr)
		}
		if err != nil {
			return errors.Wrapf(err, "instruction %d (%s)", pc, redact.Safe(instr.String()))
		}
	}
	return nil
}

// runGroup fires rules until a pass applies none of them.
func (p *Planner) runGroup(rules []*rule.Rule, st programState) error {
	u := unit{order: st.order, limit: st.limit}
	for iter := 0; ; iter++ {
		if iter >= p.cfg.MaxFixpointIterations {
			return errors.Wrapf(ErrDidNotConverge, "group still changing after %d passes", iter)
		}
		n, err := p.applyRules(rules, &u)
		if err != nil {
			return err
		}
		if n == 0 || u.exhausted() {
			return nil
		}
		if iter > 0 && iter%100 == 0 && p.slowGroup.ShouldLog() {
			log.Infof(p.ctx, "rule group still changing after %d passes (%d transformations)",
				iter, p.nTransformations)
		}
	}
}

// runSubprogram runs prog until a run makes no transformation.
func (p *Planner) runSubprogram(prog *Program, depth int) error {
	for iter := 0; ; iter++ {
		if iter >= p.cfg.MaxFixpointIterations {
			return errors.Wrapf(ErrDidNotConverge, "subprogram still changing after %d runs", iter)
		}
		before := p.nTransformations
		if err := p.executeProgram(prog, depth+1); err != nil {
			return err
		}
		if p.nTransformations == before {
			return nil
		}
	}
}

func (p *Planner) isDisabled(r *rule.Rule) bool {
	_, ok := p.disabled[r.Name]
	return ok
}

func (p *Planner) resolveRules(instr Instruction) ([]*rule.Rule, error) {
	var rules []*rule.Rule
	switch t := instr.(type) {
	case *FireRule:
		r, ok := p.reg.Lookup(t.Name)
		if !ok {
			return nil, errors.Newf("unknown rule %q", t.Name)
		}
		rules = []*rule.Rule{r}
	case *FireRuleClass:
		rules = p.reg.Class(t.Class)
	case *FireRuleCollection:
		rules = p.plugins.Collection(t.Name)
	}
	res := rules[:0:0]
	for _, r := range rules {
		if p.isDisabled(r) {
			log.VEventf(p.ctx, 3, "rule %s is disabled", r.Name)
			continue
		}
		res = append(res, r)
	}
	return res, nil
}

func (p *Planner) reachableSet() *bitset.BitSet {
	var s bitset.BitSet
	for _, id := range p.g.Reachable() {
		s.Set(uint(id))
	}
	return &s
}

// applyRules makes one pass over the graph in the unit's match order and
// returns the number of successful applications.
func (p *Planner) applyRules(rules []*rule.Rule, u *unit) (int, error) {
	if len(rules) == 0 || u.exhausted() {
		return 0, nil
	}
	applied := 0
	if u.order == Arbitrary {
		// examined holds the nodes no rule matched since the last change
		// below them.
		var examined bitset.BitSet
	restart:
		for {
			for _, id := range p.g.Reachable() {
				if examined.Test(uint(id)) {
					continue
				}
				ok, err := p.fireAt(rules, id)
				if err != nil {
					return applied, err
				}
				if !ok {
					examined.Set(uint(id))
					continue
				}
				p.forgetAncestors(&examined, p.lastReplacement)
				applied++
				u.count++
				if u.exhausted() {
					return applied, nil
				}
				if applied > p.cfg.MaxPassApplications {
					return applied, errors.Wrapf(ErrDidNotConverge,
						"pass exceeded %d applications", p.cfg.MaxPassApplications)
				}
				continue restart
			}
			return applied, nil
		}
	}

	order := p.g.TopologicalOrder()
	if u.order == BottomUp {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}
	reachable := p.reachableSet()
	for _, id := range order {
		if !p.g.IsLive(id) || !reachable.Test(uint(id)) {
			continue
		}
		ok, err := p.fireAt(rules, id)
		if err != nil {
			return applied, err
		}
		if !ok {
			continue
		}
		applied++
		u.count++
		if u.exhausted() {
			break
		}
		reachable = p.reachableSet()
	}
	return applied, nil
}

// forgetAncestors clears the examined marks of every node above id. Their
// inputs changed, so an operand tree rooted at one of them may match now.
func (p *Planner) forgetAncestors(examined *bitset.BitSet, id plan.NodeID) {
	consumers := p.g.Consumers()
	var seen bitset.BitSet
	stack := []plan.NodeID{p.g.Resolve(id)}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range consumers[n] {
			if e.Consumer == plan.NoNode || seen.Test(uint(e.Consumer)) {
				continue
			}
			seen.Set(uint(e.Consumer))
			examined.Clear(uint(e.Consumer))
			stack = append(stack, e.Consumer)
		}
	}
}

// fireAt tries each rule at node id and stops at the first that applies.
func (p *Planner) fireAt(rules []*rule.Rule, id plan.NodeID) (bool, error) {
	for _, r := range rules {
		if !p.g.IsLive(id) {
			return false, nil
		}
		ok, err := p.applyRule(r, id)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (p *Planner) stat(name string) *RuleStat {
	s, ok := p.stats[name]
	if !ok {
		s = &RuleStat{Name: name}
		p.stats[name] = s
	}
	return s
}

// applyRule applies r at node id. It returns true if the graph changed.
func (p *Planner) applyRule(r *rule.Rule, id plan.NodeID) (bool, error) {
	st := p.stat(r.Name)
	st.Attempts++
	bound, ok := r.Match(p.g, id)
	if !ok {
		return false, nil
	}
	var edges []plan.Edge
	if c := r.Convert; c != nil && c.Guaranteed {
		if edges = p.requiringEdges(id, c.To); len(edges) == 0 {
			return false, nil
		}
	}
	st.Matches++
	newID, err := p.produce(r, id, bound)
	if err != nil || newID == plan.NoNode {
		return false, err
	}
	if edges != nil {
		for _, e := range edges {
			if err := p.redirect(e, newID); err != nil {
				return false, err
			}
		}
	} else if err := p.g.Replace(id, newID); err != nil {
		return false, err
	}
	return true, p.applied(r, id, newID)
}

// produce runs the transform of r on a match at id and validates its result.
// It returns NoNode if the rule did not apply, in which case every node the
// transform added has been discarded.
func (p *Planner) produce(r *rule.Rule, id plan.NodeID, bound []*plan.Node) (plan.NodeID, error) {
	mark := p.g.Mark()
	newID := p.transform(r, bound, mark)
	if newID == plan.NoNode {
		return plan.NoNode, nil
	}
	newID = p.g.Resolve(newID)
	if newID == id {
		p.g.Rollback(mark)
		return plan.NoNode, nil
	}
	old, repl := p.g.Node(id), p.g.Node(newID)
	if !r.Coerces && !old.Schema.Equal(repl.Schema) {
		p.g.Rollback(mark)
		return plan.NoNode, errors.AssertionFailedf(
			"rule %s changed the row schema of node %d from %s to %s",
			redact.Safe(r.Name), id, old.Schema, repl.Schema)
	}
	if c := r.Convert; c != nil && repl.Convention != c.To {
		p.g.Rollback(mark)
		return plan.NoNode, errors.AssertionFailedf(
			"converter %s produced a node with convention %s, expected %s",
			redact.Safe(r.Name), repl.Convention, c.To)
	}
	return newID, nil
}

// transform calls the rule's Apply function. If it does not produce a node,
// including when it panics, the graph is rolled back to mark.
func (p *Planner) transform(r *rule.Rule, bound []*plan.Node, mark plan.Mark) (newID plan.NodeID) {
	defer func() {
		if newID != plan.NoNode {
			return
		}
		p.g.Rollback(mark)
		if e := recover(); e != nil {
			if err, ok := e.(error); ok {
				panic(errors.Wrapf(err, "applying rule %s", redact.Safe(r.Name)))
			}
			panic(e)
		}
	}()
	return r.Apply(&rule.Call{
		Ctx:       p.ctx,
		Rule:      r,
		Nodes:     bound,
		Factory:   p.f,
		Estimator: p.estimator,
	})
}

// applied records a successful transformation.
func (p *Planner) applied(r *rule.Rule, id, newID plan.NodeID) error {
	p.nTransformations++
	p.lastReplacement = newID
	if r != nil {
		p.stat(r.Name).Applications++
		p.metrics.ruleApplied(r.Name)
		log.VEventf(p.ctx, 2, "applied %s to node %d: node %d", r.Name, id, newID)
	} else {
		p.metrics.converterAdded()
		log.VEventf(p.ctx, 2, "converted node %d: node %d", id, newID)
	}
	for _, fn := range p.listeners {
		fn(AppliedRule{Rule: r, Node: id, Replacement: newID})
	}
	if p.cfg.CheckCycles {
		return p.g.CheckAcyclic()
	}
	return nil
}

// requiredConvention returns the convention the consumer of e requires.
func (p *Planner) requiredConvention(e plan.Edge) opt.Convention {
	if e.Consumer == plan.NoNode {
		return p.cfg.TerminalConvention
	}
	return p.g.Node(e.Consumer).InputConvention(e.Ordinal)
}

// requiringEdges returns the edges consuming id that require conv.
func (p *Planner) requiringEdges(id plan.NodeID, conv opt.Convention) []plan.Edge {
	var res []plan.Edge
	for _, e := range p.g.Consumers()[id] {
		if p.requiredConvention(e) == conv {
			res = append(res, e)
		}
	}
	return res
}

// redirect makes edge e consume id. The consumer is replaced by a copy with
// the new input, or the root is moved.
func (p *Planner) redirect(e plan.Edge, id plan.NodeID) error {
	if e.Consumer == plan.NoNode {
		p.g.SetRoot(id)
		return nil
	}
	consumer := p.g.Node(e.Consumer)
	repl := p.f.ConstructCopy(consumer.WithInput(e.Ordinal, id))
	return p.g.Replace(consumer.ID, repl)
}

// checkConverted returns an UnconvertibleError for the first reachable node,
// in top-down order, whose convention differs from the one its consumer
// requires.
func (p *Planner) checkConverted() error {
	root := p.g.Node(p.g.Root())
	if root.Convention != p.cfg.TerminalConvention {
		return &UnconvertibleError{
			Node: root.ID, Op: root.Op, Convention: root.Convention, Required: p.cfg.TerminalConvention,
		}
	}
	for _, id := range p.g.TopologicalOrder() {
		n := p.g.Node(id)
		for i := range n.Inputs {
			in := p.g.Input(n, i)
			if want := n.InputConvention(i); in.Convention != want {
				return &UnconvertibleError{Node: in.ID, Op: in.Op, Convention: in.Convention, Required: want}
			}
		}
	}
	return nil
}
