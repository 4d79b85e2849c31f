// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package optbuilder

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/cat"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
	"github.com/heplan/heplan/pkg/sql/types"
	"gopkg.in/yaml.v3"
)

// PlanSpec is the YAML description of a set of tables and a query over
// them:
//
//	tables:
//	  - name: t
//	    columns: [a int not null, b string]
//	    rows:
//	      - [1, x]
//	      - [2, null]
//	query:
//	  from: [{table: t}]
//	  where: (> t.a 1)
//	  select: [b, (+ a 1) as c]
//
// Scalar expressions are s-expressions; see Scope.BuildScalar.
type PlanSpec struct {
	Tables []TableSpec `yaml:"tables"`
	Query  *QuerySpec  `yaml:"query"`
}

// TableSpec describes a table and its contents. Columns are written as
// "name type [not null]".
type TableSpec struct {
	Name    string        `yaml:"name"`
	Columns []string      `yaml:"columns"`
	Rows    [][]yaml.Node `yaml:"rows"`

	// Stats overrides the row count used for estimates.
	Stats float64 `yaml:"stats"`
}

// FromSpec is one FROM item: a table, a derived table, or constant rows.
type FromSpec struct {
	Table  string     `yaml:"table"`
	As     string     `yaml:"as"`
	Query  *QuerySpec `yaml:"query"`
	Values *TableSpec `yaml:"values"`
}

// QuerySpec describes a query. Clauses apply in SQL order: FROM, WHERE,
// EXISTS, GROUP BY, SELECT, ORDER BY and finally INSERT. A query with Union
// branches is the union of those instead.
type QuerySpec struct {
	From []FromSpec `yaml:"from"`
	// Join is the type of the last join of the FROM clause and On its
	// condition.
	Join string `yaml:"join"`
	On   string `yaml:"on"`

	Where  string       `yaml:"where"`
	Exists []*QuerySpec `yaml:"exists"`

	GroupBy    []string `yaml:"group-by"`
	Aggregates []string `yaml:"aggregates"`

	// Select items are "expr" or "expr as name". No items selects every
	// column.
	Select []string `yaml:"select"`

	// OrderBy items are column names, prefixed with "-" for descending
	// order.
	OrderBy []string `yaml:"order-by"`

	Union []*QuerySpec `yaml:"union"`
	All   bool         `yaml:"all"`

	Insert string `yaml:"insert"`
}

// ParsePlanSpec decodes a YAML plan description. Unknown fields are
// rejected.
func ParsePlanSpec(data []byte) (*PlanSpec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var spec PlanSpec
	if err := dec.Decode(&spec); err != nil {
		return nil, errors.Wrap(err, "parsing plan spec")
	}
	if spec.Query == nil {
		return nil, errors.New("plan spec has no query")
	}
	return &spec, nil
}

// parseColumn parses "name type [not null]".
func parseColumn(s string) (opt.Column, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return opt.Column{}, errors.Newf("column %q needs a name and a type", s)
	}
	typ, err := types.FromName(fields[1])
	if err != nil {
		return opt.Column{}, errors.Wrapf(err, "column %q", fields[0])
	}
	col := opt.Column{Name: fields[0], Type: typ, Nullable: true}
	switch rest := strings.ToLower(strings.Join(fields[2:], " ")); rest {
	case "":
	case "not null":
		col.Nullable = false
	case "null":
	default:
		return opt.Column{}, errors.Newf("column %q: unexpected %q", fields[0], rest)
	}
	return col, nil
}

// rows parses the columns and rows of a table spec.
func (t *TableSpec) rows() ([]opt.Column, []tree.Datums, error) {
	cols := make([]opt.Column, len(t.Columns))
	for i, c := range t.Columns {
		var err error
		if cols[i], err = parseColumn(c); err != nil {
			return nil, nil, err
		}
	}
	rows := make([]tree.Datums, len(t.Rows))
	for i, r := range t.Rows {
		if len(r) != len(cols) {
			return nil, nil, errors.Newf("row %d has %d values, expected %d", i+1, len(r), len(cols))
		}
		row := make(tree.Datums, len(r))
		for j := range r {
			if r[j].ShortTag() == "!!null" {
				row[j] = tree.DNull
				continue
			}
			d, err := tree.ParseAndRequireString(cols[j].Type, r[j].Value)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "row %d", i+1)
			}
			row[j] = d
		}
		rows[i] = row
	}
	return cols, rows, nil
}

// Catalog returns an in-memory catalog holding the tables of the plan description.
func (spec *PlanSpec) Catalog() (*cat.MemCatalog, error) {
	c := cat.NewMemCatalog()
	for i := range spec.Tables {
		t := &spec.Tables[i]
		cols, rows, err := t.rows()
		if err != nil {
			return nil, errors.Wrapf(err, "table %s", t.Name)
		}
		if err := c.AddTable(&cat.MemTable{
			TabName: t.Name, Cols: cols, Rows: rows, Stats: t.Stats,
		}); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// BuildSpec builds the query of a plan spec, makes it the root of the graph
// and checks that every correlation was resolved.
func (b *Builder) BuildSpec(q *QuerySpec) (plan.NodeID, error) {
	root, err := b.BuildQuery(nil /* parent */, q)
	if err != nil {
		return plan.NoNode, err
	}
	if err := b.Finish(root); err != nil {
		return plan.NoNode, err
	}
	return root, nil
}

// BuildQuery builds a query in a scope nested in parent and returns its
// relation.
func (b *Builder) BuildQuery(parent *Scope, q *QuerySpec) (_ plan.NodeID, err error) {
	defer opt.CatchOptimizerError(&err)
	if len(q.Union) > 0 {
		return b.buildUnion(parent, q)
	}
	s := b.NewScope(parent)
	if err := b.buildFrom(s, q); err != nil {
		return plan.NoNode, err
	}
	if q.Where != "" {
		cond, err := s.BuildScalar(q.Where)
		if err != nil {
			return plan.NoNode, err
		}
		if err := s.Where(cond); err != nil {
			return plan.NoNode, err
		}
	}
	for _, sub := range q.Exists {
		subNode, err := b.BuildQuery(s, sub)
		if err != nil {
			return plan.NoNode, errors.Wrap(err, "EXISTS")
		}
		if err := s.WhereExists(subNode); err != nil {
			return plan.NoNode, err
		}
	}
	if len(q.GroupBy) > 0 || len(q.Aggregates) > 0 {
		if s, err = b.buildAggregate(s, q); err != nil {
			return plan.NoNode, err
		}
	}
	node, err := b.buildSelect(s, q.Select)
	if err != nil {
		return plan.NoNode, err
	}
	return b.buildOrderAndInsert(node, q)
}

func (b *Builder) buildFrom(s *Scope, q *QuerySpec) error {
	for _, item := range q.From {
		switch {
		case item.Table != "":
			if err := s.ScanTable(b.ctx, item.Table, item.As); err != nil {
				return err
			}
		case item.Query != nil:
			// Derived tables are not lateral: they cannot see s.
			sub, err := b.BuildQuery(nil /* parent */, item.Query)
			if err != nil {
				return err
			}
			if err := s.AddFrom(item.As, sub); err != nil {
				return err
			}
		case item.Values != nil:
			cols, rows, err := item.Values.rows()
			if err != nil {
				return err
			}
			if err := s.AddFrom(item.As, b.f.ConstructValues(rows, cols)); err != nil {
				return err
			}
		default:
			return errors.New("FROM item needs a table, a query, or values")
		}
	}
	typ := opt.InnerJoin
	if q.Join != "" {
		var err error
		if typ, err = opt.JoinTypeFromString(q.Join); err != nil {
			return err
		}
	}
	var on opt.ScalarExpr
	if q.On != "" {
		if len(q.From) < 2 {
			return errors.New("ON requires at least two FROM items")
		}
		var err error
		if on, err = s.BuildScalar(q.On); err != nil {
			return err
		}
	}
	_, err := s.FinishFrom(typ, on)
	return err
}

var aggRegexp = regexp.MustCompile(`^(\w+)\(\s*(\*|[\w.]+)\s*\)(?:\s+as\s+(\w+))?$`)

// buildAggregate groups the rows of s and returns a scope over the grouping
// columns followed by the aggregates.
func (b *Builder) buildAggregate(s *Scope, q *QuerySpec) (*Scope, error) {
	groupCols := make([]int, len(q.GroupBy))
	out := b.NewScope(s.parent)
	var cols []scopeColumn
	for i, name := range q.GroupBy {
		qual, n := splitColumnName(name)
		ord, err := s.find(qual, n)
		if err != nil {
			return nil, err
		}
		if ord < 0 {
			return nil, errors.Newf("column %q does not exist", name)
		}
		groupCols[i] = ord
		cols = append(cols, s.cols[ord])
	}
	aggs := make([]opt.AggCall, len(q.Aggregates))
	for i, text := range q.Aggregates {
		m := aggRegexp.FindStringSubmatch(strings.TrimSpace(text))
		if m == nil {
			return nil, errors.Newf("cannot parse aggregate %q", text)
		}
		fn, arg, name := strings.ToLower(m[1]), m[2], m[3]
		if name == "" {
			name = fn
		}
		call := opt.AggCall{Name: name}
		if arg == "*" {
			if fn != "count" {
				return nil, errors.Newf("%s(*) is not supported", fn)
			}
			call.Func = opt.CountRowsAgg
		} else {
			var err error
			if call.Func, err = opt.AggFuncFromString(fn); err != nil {
				return nil, err
			}
			qual, n := splitColumnName(arg)
			if call.Arg, err = s.find(qual, n); err != nil {
				return nil, err
			}
			if call.Arg < 0 {
				return nil, errors.Newf("column %q does not exist", arg)
			}
			if t := s.cols[call.Arg].typ; call.Func == opt.SumAgg && !t.IsNumeric() {
				return nil, errors.Newf("sum(%s) is not numeric", t)
			}
		}
		aggs[i] = call
		cols = append(cols, scopeColumn{name: name})
	}
	node := b.f.ConstructAggregate(s.node, groupCols, aggs)
	schema := b.f.Graph().Node(node).Schema
	for i := range cols {
		cols[i].typ = schema.Column(i).Type
	}
	out.items = []plan.NodeID{node}
	out.cols = cols
	out.node = node
	return out, nil
}

// buildSelect projects the select list over the rows of s.
func (b *Builder) buildSelect(s *Scope, items []string) (plan.NodeID, error) {
	if len(items) == 0 {
		return s.node, nil
	}
	exprs := make([]opt.ScalarExpr, len(items))
	names := make([]string, len(items))
	for i, item := range items {
		text, name := item, ""
		if j := strings.LastIndex(item, " as "); j >= 0 && !strings.Contains(item[j:], ")") {
			text, name = strings.TrimSpace(item[:j]), strings.TrimSpace(item[j+4:])
		}
		e, err := s.BuildScalar(text)
		if err != nil {
			return plan.NoNode, err
		}
		if name == "" {
			_, name = splitColumnName(text)
		}
		exprs[i], names[i] = e, name
	}
	return b.f.ConstructProject(s.node, exprs, names), nil
}

func (b *Builder) buildUnion(parent *Scope, q *QuerySpec) (plan.NodeID, error) {
	inputs := make([]plan.NodeID, len(q.Union))
	for i, branch := range q.Union {
		var err error
		if inputs[i], err = b.BuildQuery(parent, branch); err != nil {
			return plan.NoNode, errors.Wrapf(err, "union branch %d", i+1)
		}
	}
	first := b.f.Graph().Node(inputs[0]).Schema
	for _, in := range inputs[1:] {
		s := b.f.Graph().Node(in).Schema
		if s.Width() != first.Width() {
			return plan.NoNode, errors.Newf("union branches have %d and %d columns", first.Width(), s.Width())
		}
		for i := 0; i < s.Width(); i++ {
			if !s.Column(i).Type.Equivalent(first.Column(i).Type) {
				return plan.NoNode, errors.Newf("union column %s has types %s and %s",
					first.Column(i).Name, first.Column(i).Type, s.Column(i).Type)
			}
		}
	}
	return b.buildOrderAndInsert(b.f.ConstructUnion(q.All, inputs...), q)
}

func (b *Builder) buildOrderAndInsert(node plan.NodeID, q *QuerySpec) (plan.NodeID, error) {
	schema := b.f.Graph().Node(node).Schema
	if len(q.OrderBy) > 0 {
		keys := make([]plan.SortKey, len(q.OrderBy))
		for i, item := range q.OrderBy {
			desc := strings.HasPrefix(item, "-")
			_, name := splitColumnName(strings.TrimPrefix(item, "-"))
			ord, ok := schema.Ordinal(name)
			if !ok {
				return plan.NoNode, errors.Newf("ORDER BY column %q does not exist", name)
			}
			keys[i] = plan.SortKey{Col: ord, Descending: desc}
		}
		node = b.f.ConstructSort(node, keys)
	}
	if q.Insert != "" {
		tab, err := b.catalog.ResolveTable(b.ctx, q.Insert)
		if err != nil {
			return plan.NoNode, err
		}
		cols := tab.Columns()
		if len(cols) != schema.Width() {
			return plan.NoNode, errors.Newf("INSERT into %s has %d columns, the table has %d",
				q.Insert, schema.Width(), len(cols))
		}
		for i, col := range cols {
			if !col.Type.Equivalent(schema.Column(i).Type) {
				return plan.NoNode, errors.Newf("INSERT into %s: column %s has type %s, found %s",
					q.Insert, col.Name, col.Type, schema.Column(i).Type)
			}
		}
		node = b.f.ConstructInsert(tab.Name(), node)
	}
	return node, nil
}
