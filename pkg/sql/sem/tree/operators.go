// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package tree

// ComparisonOperator represents a binary comparison.
type ComparisonOperator uint8

const (
	EQ ComparisonOperator = iota
	NE
	LT
	LE
	GT
	GE
)

var comparisonOpName = [...]string{
	EQ: "=",
	NE: "<>",
	LT: "<",
	LE: "<=",
	GT: ">",
	GE: ">=",
}

func (o ComparisonOperator) String() string { return comparisonOpName[o] }

// SafeValue implements redact.SafeValue.
func (ComparisonOperator) SafeValue() {}

// Commute returns the operator to use when the operands are swapped.
func (o ComparisonOperator) Commute() ComparisonOperator {
	switch o {
	case LT:
		return GT
	case LE:
		return GE
	case GT:
		return LT
	case GE:
		return LE
	}
	return o
}

// ComparisonOperatorFromString returns the operator for a symbol.
func ComparisonOperatorFromString(s string) (ComparisonOperator, bool) {
	for i, name := range comparisonOpName {
		if name == s {
			return ComparisonOperator(i), true
		}
	}
	if s == "!=" {
		return NE, true
	}
	return 0, false
}

// BinaryOperator represents an arithmetic operator.
type BinaryOperator uint8

const (
	Plus BinaryOperator = iota
	Minus
	Mult
)

var binaryOpName = [...]string{
	Plus:  "+",
	Minus: "-",
	Mult:  "*",
}

func (o BinaryOperator) String() string { return binaryOpName[o] }

// SafeValue implements redact.SafeValue.
func (BinaryOperator) SafeValue() {}

// BinaryOperatorFromString returns the operator for a symbol.
func BinaryOperatorFromString(s string) (BinaryOperator, bool) {
	for i, name := range binaryOpName {
		if name == s {
			return BinaryOperator(i), true
		}
	}
	return 0, false
}
