// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package optbuilder

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
	"github.com/heplan/heplan/pkg/sql/types"
)

// sexpr is a parsed s-expression: either an atom or a list.
type sexpr struct {
	atom string
	list []*sexpr
	// isList distinguishes the empty list from the empty atom.
	isList bool
}

// parseSexpr parses a single s-expression such as
//
//	(and (> t.a 1) (= u.name 'x'))
//
// Atoms are identifiers, numbers, quoted strings (with '' escaping a quote),
// true, false, and null.
func parseSexpr(s string) (*sexpr, error) {
	p := sexprParser{in: s}
	e, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.in) {
		return nil, errors.Newf("unexpected %q after expression at offset %d", p.in[p.pos:], p.pos)
	}
	return e, nil
}

type sexprParser struct {
	in  string
	pos int
}

func (p *sexprParser) skipSpace() {
	for p.pos < len(p.in) && strings.ContainsRune(" \t\n\r", rune(p.in[p.pos])) {
		p.pos++
	}
}

func (p *sexprParser) parse() (*sexpr, error) {
	p.skipSpace()
	if p.pos == len(p.in) {
		return nil, errors.New("unexpected end of expression")
	}
	switch p.in[p.pos] {
	case '(':
		p.pos++
		e := &sexpr{isList: true}
		for {
			p.skipSpace()
			if p.pos == len(p.in) {
				return nil, errors.New("unterminated list")
			}
			if p.in[p.pos] == ')' {
				p.pos++
				return e, nil
			}
			child, err := p.parse()
			if err != nil {
				return nil, err
			}
			e.list = append(e.list, child)
		}
	case ')':
		return nil, errors.Newf("unexpected ')' at offset %d", p.pos)
	case '\'':
		start := p.pos
		p.pos++
		for p.pos < len(p.in) {
			if p.in[p.pos] == '\'' {
				if p.pos+1 < len(p.in) && p.in[p.pos+1] == '\'' {
					p.pos += 2
					continue
				}
				p.pos++
				return &sexpr{atom: p.in[start:p.pos]}, nil
			}
			p.pos++
		}
		return nil, errors.New("unterminated string")
	}
	start := p.pos
	for p.pos < len(p.in) && !strings.ContainsRune(" \t\n\r()", rune(p.in[p.pos])) {
		p.pos++
	}
	return &sexpr{atom: p.in[start:p.pos]}, nil
}

// isLiteral returns true for atoms that are constants rather than column
// names.
func isLiteral(atom string) bool {
	if atom == "" {
		return false
	}
	switch strings.ToLower(atom) {
	case "true", "false", "null":
		return true
	}
	c := atom[0]
	return c == '\'' || (c >= '0' && c <= '9') ||
		(c == '-' && len(atom) > 1 && atom[1] >= '0' && atom[1] <= '9')
}

// splitColumnName splits "qual.name" into its parts.
func splitColumnName(s string) (qual, name string) {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}

// BuildScalar parses an s-expression and resolves its column names in s.
func (s *Scope) BuildScalar(text string) (opt.ScalarExpr, error) {
	e, err := parseSexpr(text)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %q", text)
	}
	res, err := s.buildScalar(e)
	if err != nil {
		return nil, errors.Wrapf(err, "building %q", text)
	}
	return res, nil
}

func (s *Scope) buildScalar(e *sexpr) (opt.ScalarExpr, error) {
	if !e.isList {
		if isLiteral(e.atom) {
			d, err := tree.ParseLiteral(e.atom)
			if err != nil {
				return nil, err
			}
			return &opt.Const{Value: d}, nil
		}
		return s.Column(splitColumnName(e.atom))
	}
	if len(e.list) == 0 || e.list[0].isList {
		return nil, errors.New("expected an operator at the start of a list")
	}
	op := strings.ToLower(e.list[0].atom)
	args := make([]opt.ScalarExpr, len(e.list)-1)
	for i, a := range e.list[1:] {
		var err error
		if args[i], err = s.buildScalar(a); err != nil {
			return nil, err
		}
	}
	argCount := func(n int) error {
		if len(args) != n {
			return errors.Newf("%s expects %d arguments, found %d", op, n, len(args))
		}
		return nil
	}
	requireBool := func() error {
		for _, a := range args {
			if !a.Type().Equivalent(types.Bool) {
				return errors.Newf("%s expects boolean arguments, found %s", op, a.Type())
			}
		}
		return nil
	}

	if cmp, ok := tree.ComparisonOperatorFromString(op); ok {
		if err := argCount(2); err != nil {
			return nil, err
		}
		if !args[0].Type().Equivalent(args[1].Type()) {
			return nil, errors.Newf("cannot compare %s and %s", args[0].Type(), args[1].Type())
		}
		return &opt.Cmp{Op: cmp, Left: args[0], Right: args[1]}, nil
	}
	if bin, ok := tree.BinaryOperatorFromString(op); ok {
		if err := argCount(2); err != nil {
			return nil, err
		}
		for _, a := range args {
			if t := a.Type(); t != types.Unknown && !t.IsNumeric() {
				return nil, errors.Newf("%s expects numeric arguments, found %s", op, t)
			}
		}
		return &opt.Arith{Op: bin, Left: args[0], Right: args[1]}, nil
	}
	switch op {
	case "and", "or":
		if len(args) < 2 {
			return nil, errors.Newf("%s expects at least 2 arguments", op)
		}
		if err := requireBool(); err != nil {
			return nil, err
		}
		res := args[0]
		for _, a := range args[1:] {
			if op == "and" {
				res = &opt.And{Left: res, Right: a}
			} else {
				res = &opt.Or{Left: res, Right: a}
			}
		}
		return res, nil
	case "not":
		if err := argCount(1); err != nil {
			return nil, err
		}
		if err := requireBool(); err != nil {
			return nil, err
		}
		return &opt.Not{Input: args[0]}, nil
	case "is-null", "is-not-null":
		if err := argCount(1); err != nil {
			return nil, err
		}
		return &opt.IsNull{Input: args[0], Negate: op == "is-not-null"}, nil
	}
	return nil, errors.Newf("unknown operator %q", op)
}
