// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package rule defines rewrite rules, the operand patterns they match, and
// the registry that indexes them by name and class. Rules are plain data:
// once registered they are immutable and shared by every compilation.
package rule

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
)

// Class tags a family of rules that are fired together.
type Class string

// SafeValue implements redact.SafeValue.
func (Class) SafeValue() {}

// Conversion describes a converter rule, which produces an equivalent node
// in another calling convention.
type Conversion struct {
	From, To opt.Convention

	// Guaranteed converters only fire on nodes that have a consumer
	// requiring To, and only that consumer's input is redirected to the
	// converted node. Other converters replace the node everywhere.
	Guaranteed bool
}

// Rule is a rewrite rule.
type Rule struct {
	// Name identifies the rule in programs and logs. Names are unique within
	// a registry.
	Name  string
	Class Class

	// Operand is the pattern the rule matches.
	Operand *Operand

	// Apply builds a replacement for the first bound node, or returns
	// plan.NoNode if the rule does not apply. Apply may add nodes to the
	// graph through the call's factory; they are discarded if it returns
	// NoNode or panics.
	Apply func(c *Call) plan.NodeID

	// Coerces is set for rules whose replacement may have a different row
	// schema than the node it replaces.
	Coerces bool

	// Convert is set for converter rules.
	Convert *Conversion
}

// Convention returns the convention of the nodes the rule matches.
func (r *Rule) Convention() opt.Convention {
	if r.Convert != nil {
		return r.Convert.From
	}
	return opt.LogicalConvention
}

// IsConverter returns true for converter rules.
func (r *Rule) IsConverter() bool {
	return r.Convert != nil
}

// String returns the rule name.
func (r *Rule) String() string {
	return r.Name
}

// Match matches the rule's operand against node id. On success it returns
// the bound nodes in pre-order.
func (r *Rule) Match(g *plan.Graph, id plan.NodeID) ([]*plan.Node, bool) {
	bound, ok := r.Operand.match(g, g.Node(id), r.Convention(), make([]*plan.Node, 0, 4))
	if !ok {
		return nil, false
	}
	return bound, true
}

func (r *Rule) validate() error {
	switch {
	case r.Name == "":
		return errors.AssertionFailedf("rule has no name")
	case r.Operand == nil:
		return errors.AssertionFailedf("rule %s has no operand", r.Name)
	case r.Operand.IsAny():
		return errors.AssertionFailedf("rule %s matches any node", r.Name)
	case r.Apply == nil:
		return errors.AssertionFailedf("rule %s has no transform", r.Name)
	}
	if d := r.Operand.Depth(); d > MaxOperandDepth {
		return errors.AssertionFailedf("rule %s has operand depth %d, the maximum is %d",
			r.Name, d, MaxOperandDepth)
	}
	if c := r.Convert; c != nil {
		if c.From == c.To {
			return errors.AssertionFailedf("converter %s converts %s to itself", r.Name, c.From)
		}
		if !c.To.IsPhysical() {
			return errors.AssertionFailedf("converter %s converts to %s", r.Name, c.To)
		}
		if r.Coerces {
			return errors.AssertionFailedf("converter %s cannot change the row schema", r.Name)
		}
	}
	return nil
}

// Format returns a description of the rule including its operand.
func (r *Rule) Format() string {
	if r.Convert != nil {
		return fmt.Sprintf("%s %s [%s->%s]", r.Name, r.Operand, r.Convert.From, r.Convert.To)
	}
	return fmt.Sprintf("%s %s", r.Name, r.Operand)
}
