// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package hep

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt/rule"
)

// MatchOrder determines the order in which a pass visits plan nodes.
type MatchOrder uint8

const (
	// Arbitrary visits nodes in depth-first pre-order from the root and
	// restarts from the root after every successful application, until a
	// full traversal applies nothing.
	Arbitrary MatchOrder = iota

	// TopDown visits every node once, consumers before their inputs.
	TopDown

	// BottomUp visits every node once, inputs before their consumers.
	BottomUp
)

var matchOrderNames = [...]string{
	Arbitrary: "arbitrary",
	TopDown:   "top-down",
	BottomUp:  "bottom-up",
}

func (o MatchOrder) String() string { return matchOrderNames[o] }

// SafeValue implements redact.SafeValue.
func (MatchOrder) SafeValue() {}

// MatchOrderFromString parses a match order name.
func MatchOrderFromString(s string) (MatchOrder, error) {
	for i, name := range matchOrderNames {
		if name == s {
			return MatchOrder(i), nil
		}
	}
	return Arbitrary, errors.Newf("unknown match order %q", s)
}

// Unlimited is the match limit that places no bound on applications.
const Unlimited = 0

// Instruction is one step of a Program.
type Instruction interface {
	fmt.Stringer
	instruction()
}

// FireRule fires the registered rule with the given name.
type FireRule struct {
	Name string
}

// FireRuleClass fires every registered rule of a class.
type FireRuleClass struct {
	Class rule.Class
}

// FireRuleCollection fires the rules of a plugin collection. The collection
// is resolved when the instruction executes, so it may be filled after the
// program is built.
type FireRuleCollection struct {
	Name string
}

// GroupBegin starts a group. The rule instructions up to the matching
// GroupEnd are fired together until none of them applies.
type GroupBegin struct{}

// GroupEnd ends a group and runs it.
type GroupEnd struct{}

// Subprogram runs a nested program, with its own match order and limit,
// until a run makes no transformation.
type Subprogram struct {
	Program *Program
}

// SetMatchOrder sets the match order of the following instructions.
type SetMatchOrder struct {
	Order MatchOrder
}

// SetMatchLimit bounds the number of successful applications of each
// following instruction or group.
type SetMatchLimit struct {
	Limit int
}

// AddConverters converts every edge whose producer does not have the
// convention its consumer requires.
type AddConverters struct {
	// Minimize reuses existing nodes of the required convention before
	// creating new ones.
	Minimize bool
}

func (*FireRule) instruction()           {}
func (*FireRuleClass) instruction()      {}
func (*FireRuleCollection) instruction() {}
func (*GroupBegin) instruction()         {}
func (*GroupEnd) instruction()           {}
func (*Subprogram) instruction()         {}
func (*SetMatchOrder) instruction()      {}
func (*SetMatchLimit) instruction()      {}
func (*AddConverters) instruction()      {}

func (i *FireRule) String() string           { return "fire " + i.Name }
func (i *FireRuleClass) String() string      { return "fire-class " + string(i.Class) }
func (i *FireRuleCollection) String() string { return "fire-collection " + i.Name }
func (*GroupBegin) String() string           { return "group-begin" }
func (*GroupEnd) String() string             { return "group-end" }
func (*Subprogram) String() string           { return "subprogram" }
func (i *SetMatchOrder) String() string      { return "match-order " + i.Order.String() }
func (i *SetMatchLimit) String() string {
	if i.Limit == Unlimited {
		return "match-limit unlimited"
	}
	return fmt.Sprintf("match-limit %d", i.Limit)
}
func (i *AddConverters) String() string {
	if i.Minimize {
		return "add-converters minimize"
	}
	return "add-converters"
}

// Program is an immutable sequence of instructions. Programs may be shared by
// concurrent compilations.
type Program struct {
	instrs []Instruction
}

// Len returns the number of instructions.
func (p *Program) Len() int { return len(p.instrs) }

// Instruction returns the i-th instruction.
func (p *Program) Instruction(i int) Instruction { return p.instrs[i] }

// String formats the program one instruction per line, indenting groups and
// subprograms.
func (p *Program) String() string {
	var buf strings.Builder
	p.format(&buf, 0)
	return buf.String()
}

func (p *Program) format(buf *strings.Builder, depth int) {
	for _, instr := range p.instrs {
		if _, ok := instr.(*GroupEnd); ok {
			depth--
		}
		buf.WriteString(strings.Repeat("  ", depth))
		buf.WriteString(instr.String())
		buf.WriteByte('\n')
		switch t := instr.(type) {
		case *GroupBegin:
			depth++
		case *Subprogram:
			t.Program.format(buf, depth+1)
		}
	}
}

// ProgramBuilder assembles a Program. Methods can be chained; the first
// error is reported by Build.
type ProgramBuilder struct {
	instrs  []Instruction
	inGroup bool
	err     error
}

// NewProgramBuilder returns an empty builder.
func NewProgramBuilder() *ProgramBuilder {
	return &ProgramBuilder{}
}

func (b *ProgramBuilder) add(instr Instruction) *ProgramBuilder {
	if b.err != nil {
		return b
	}
	if b.inGroup {
		switch instr.(type) {
		case *FireRule, *FireRuleClass, *FireRuleCollection, *GroupEnd:
		default:
			b.err = errors.Newf("%s is not allowed inside a group", instr)
			return b
		}
	}
	b.instrs = append(b.instrs, instr)
	return b
}

// FireRule adds a FireRule instruction.
func (b *ProgramBuilder) FireRule(name string) *ProgramBuilder {
	return b.add(&FireRule{Name: name})
}

// FireRules adds one FireRule instruction per name.
func (b *ProgramBuilder) FireRules(names ...string) *ProgramBuilder {
	for _, name := range names {
		b.FireRule(name)
	}
	return b
}

// FireRuleClass adds a FireRuleClass instruction.
func (b *ProgramBuilder) FireRuleClass(class rule.Class) *ProgramBuilder {
	return b.add(&FireRuleClass{Class: class})
}

// FireRuleCollection adds a FireRuleCollection instruction.
func (b *ProgramBuilder) FireRuleCollection(name string) *ProgramBuilder {
	return b.add(&FireRuleCollection{Name: name})
}

// GroupBegin starts a group. Groups cannot be nested.
func (b *ProgramBuilder) GroupBegin() *ProgramBuilder {
	if b.err == nil && b.inGroup {
		b.err = errors.New("groups cannot be nested")
		return b
	}
	b.add(&GroupBegin{})
	b.inGroup = true
	return b
}

// GroupEnd ends the current group.
func (b *ProgramBuilder) GroupEnd() *ProgramBuilder {
	if b.err == nil && !b.inGroup {
		b.err = errors.New("group-end without group-begin")
		return b
	}
	b.add(&GroupEnd{})
	b.inGroup = false
	return b
}

// Subprogram adds a nested program.
func (b *ProgramBuilder) Subprogram(p *Program) *ProgramBuilder {
	if b.err == nil && p == nil {
		b.err = errors.New("subprogram is nil")
		return b
	}
	return b.add(&Subprogram{Program: p})
}

// MatchOrder adds a SetMatchOrder instruction.
func (b *ProgramBuilder) MatchOrder(order MatchOrder) *ProgramBuilder {
	return b.add(&SetMatchOrder{Order: order})
}

// MatchLimit adds a SetMatchLimit instruction. Unlimited removes the limit.
func (b *ProgramBuilder) MatchLimit(limit int) *ProgramBuilder {
	if b.err == nil && limit < 0 {
		b.err = errors.Newf("invalid match limit %d", limit)
		return b
	}
	return b.add(&SetMatchLimit{Limit: limit})
}

// AddConverters adds an AddConverters instruction.
func (b *ProgramBuilder) AddConverters(minimize bool) *ProgramBuilder {
	return b.add(&AddConverters{Minimize: minimize})
}

// Build returns the program.
func (b *ProgramBuilder) Build() (*Program, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.inGroup {
		return nil, errors.New("group-begin without group-end")
	}
	return &Program{instrs: append([]Instruction(nil), b.instrs...)}, nil
}

// MustBuild is like Build but panics on error.
func (b *ProgramBuilder) MustBuild() *Program {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}
