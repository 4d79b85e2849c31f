// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package eval implements the runtime semantics of scalar operators over
// datums using SQL three-valued logic.
package eval

import (
	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
)

// DecimalCtx is the context for decimal arithmetic.
var DecimalCtx = apd.BaseContext.WithPrecision(20)

// Compare evaluates left op right. The result is NULL if either side is NULL.
func Compare(op tree.ComparisonOperator, left, right tree.Datum) (tree.Datum, error) {
	if left == tree.DNull || right == tree.DNull {
		return tree.DNull, nil
	}
	if !left.ResolvedType().Equivalent(right.ResolvedType()) {
		return nil, errors.Newf("unsupported comparison: %s %s %s",
			redact.Safe(left.ResolvedType()), op, redact.Safe(right.ResolvedType()))
	}
	c := left.Compare(right)
	var res bool
	switch op {
	case tree.EQ:
		res = c == 0
	case tree.NE:
		res = c != 0
	case tree.LT:
		res = c < 0
	case tree.LE:
		res = c <= 0
	case tree.GT:
		res = c > 0
	case tree.GE:
		res = c >= 0
	default:
		return nil, errors.AssertionFailedf("unknown comparison %d", redact.Safe(op))
	}
	return tree.MakeDBool(tree.DBool(res)), nil
}

// BinaryOp evaluates an arithmetic operator. Integer arithmetic overflows
// are reported as errors; mixing INT and DECIMAL yields DECIMAL.
func BinaryOp(op tree.BinaryOperator, left, right tree.Datum) (tree.Datum, error) {
	if left == tree.DNull || right == tree.DNull {
		return tree.DNull, nil
	}
	l, lok := left.(*tree.DInt)
	r, rok := right.(*tree.DInt)
	if lok && rok {
		a, b := int64(*l), int64(*r)
		var res int64
		switch op {
		case tree.Plus:
			res = a + b
			if (res > a) != (b > 0) {
				return nil, errIntOutOfRange
			}
		case tree.Minus:
			res = a - b
			if (res < a) != (b > 0) {
				return nil, errIntOutOfRange
			}
		case tree.Mult:
			res = a * b
			if a != 0 && (res/a != b || (a == -1 && b == -1<<63)) {
				return nil, errIntOutOfRange
			}
		}
		return tree.NewDInt(tree.DInt(res)), nil
	}
	ld, err := toDecimal(left)
	if err != nil {
		return nil, err
	}
	rd, err := toDecimal(right)
	if err != nil {
		return nil, err
	}
	res := &tree.DDecimal{}
	switch op {
	case tree.Plus:
		_, err = DecimalCtx.Add(&res.Decimal, ld, rd)
	case tree.Minus:
		_, err = DecimalCtx.Sub(&res.Decimal, ld, rd)
	case tree.Mult:
		_, err = DecimalCtx.Mul(&res.Decimal, ld, rd)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

var errIntOutOfRange = errors.New("integer out of range")

func toDecimal(d tree.Datum) (*apd.Decimal, error) {
	switch t := d.(type) {
	case *tree.DInt:
		return apd.New(int64(*t), 0), nil
	case *tree.DDecimal:
		return &t.Decimal, nil
	}
	return nil, errors.Newf("unsupported arithmetic on type %s", redact.Safe(d.ResolvedType()))
}

// boolValue returns the value of a boolean datum; ok is false for NULL.
func boolValue(d tree.Datum) (val bool, ok bool) {
	if b, isBool := d.(*tree.DBool); isBool {
		return bool(*b), true
	}
	return false, false
}

// And evaluates a AND b with three-valued logic.
func And(a, b tree.Datum) tree.Datum {
	av, aok := boolValue(a)
	bv, bok := boolValue(b)
	if (aok && !av) || (bok && !bv) {
		return tree.DBoolFalse
	}
	if !aok || !bok {
		return tree.DNull
	}
	return tree.DBoolTrue
}

// Or evaluates a OR b with three-valued logic.
func Or(a, b tree.Datum) tree.Datum {
	av, aok := boolValue(a)
	bv, bok := boolValue(b)
	if (aok && av) || (bok && bv) {
		return tree.DBoolTrue
	}
	if !aok || !bok {
		return tree.DNull
	}
	return tree.DBoolFalse
}

// Not evaluates NOT a.
func Not(a tree.Datum) tree.Datum {
	v, ok := boolValue(a)
	if !ok {
		return tree.DNull
	}
	return tree.MakeDBool(tree.DBool(!v))
}

// IsTrue returns true if d is TRUE. NULL and FALSE both filter a row out.
func IsTrue(d tree.Datum) bool {
	v, ok := boolValue(d)
	return ok && v
}
