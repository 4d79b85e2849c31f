// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package types defines the column types understood by the plan compiler.
package types

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Family groups types that share a physical representation.
type Family int

const (
	// UnknownFamily is the type of NULL literals.
	UnknownFamily Family = iota
	BoolFamily
	IntFamily
	DecimalFamily
	StringFamily
)

// T is a column type. Types are compared by family; all instances are the
// package-level singletons below.
type T struct {
	family Family
	name   string
}

var (
	// Unknown is the type of an untyped NULL.
	Unknown = &T{family: UnknownFamily, name: "unknown"}
	// Bool is the type of boolean values.
	Bool = &T{family: BoolFamily, name: "bool"}
	// Int is the type of 64-bit integers.
	Int = &T{family: IntFamily, name: "int"}
	// Decimal is the type of arbitrary precision decimals.
	Decimal = &T{family: DecimalFamily, name: "decimal"}
	// String is the type of strings.
	String = &T{family: StringFamily, name: "string"}
)

// Scalar contains every concrete type.
var Scalar = []*T{Bool, Int, Decimal, String}

// Family returns the type's family.
func (t *T) Family() Family { return t.family }

// String implements fmt.Stringer.
func (t *T) String() string { return t.name }

// SafeValue implements redact.SafeValue.
func (t *T) SafeValue() {}

// Equivalent returns true if values of the two types can be compared.
// Unknown is equivalent to every type.
func (t *T) Equivalent(other *T) bool {
	if t.family == UnknownFamily || other.family == UnknownFamily {
		return true
	}
	if t.IsNumeric() && other.IsNumeric() {
		return true
	}
	return t.family == other.family
}

// Identical returns true if the two types are the same type.
func (t *T) Identical(other *T) bool {
	return t.family == other.family
}

// IsNumeric returns true for Int and Decimal.
func (t *T) IsNumeric() bool {
	return t.family == IntFamily || t.family == DecimalFamily
}

// FromName returns the type with the given (case-insensitive) name.
func FromName(name string) (*T, error) {
	switch strings.ToLower(name) {
	case "bool", "boolean":
		return Bool, nil
	case "int", "integer", "int8", "bigint":
		return Int, nil
	case "decimal", "numeric":
		return Decimal, nil
	case "string", "text", "varchar":
		return String, nil
	}
	return nil, errors.Newf("unknown type %q", name)
}
