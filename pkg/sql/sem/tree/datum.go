// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package tree

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/heplan/heplan/pkg/sql/types"
)

// Datum represents a SQL value.
type Datum interface {
	// ResolvedType returns the type of the value.
	ResolvedType() *types.T

	// Compare returns -1 if the receiver is less than other, 0 if receiver is
	// equal to other and +1 if receiver is greater than other. NULL sorts
	// before every other value. Comparing values of incomparable types is an
	// assertion failure and panics.
	Compare(other Datum) int

	// String returns the SQL literal form of the value.
	String() string

	datum()
}

// Datums is a slice of Datum values, typically a row.
type Datums []Datum

// String formats the row as a parenthesized list.
func (d Datums) String() string {
	var buf strings.Builder
	buf.WriteByte('(')
	for i, v := range d {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(v.String())
	}
	buf.WriteByte(')')
	return buf.String()
}

// Key returns a string that is equal for two rows exactly when the rows are
// equal value by value. Numeric values of different types that compare
// equal produce the same key.
func (d Datums) Key() string {
	var buf strings.Builder
	for _, v := range d {
		switch t := v.(type) {
		case *DInt:
			var dec apd.Decimal
			dec.SetInt64(int64(*t))
			buf.WriteString("n")
			buf.WriteString(dec.Text('f'))
		case *DDecimal:
			var dec apd.Decimal
			dec.Reduce(&t.Decimal)
			buf.WriteString("n")
			buf.WriteString(dec.Text('f'))
		case *DString:
			buf.WriteString("s")
			buf.WriteString(strconv.Quote(string(*t)))
		case *DBool:
			buf.WriteString("b")
			buf.WriteString(t.String())
		default:
			buf.WriteString("null")
		}
		buf.WriteByte('/')
	}
	return buf.String()
}

// DInt is the INT datum.
type DInt int64

// NewDInt is a helper routine to create a *DInt initialized from its argument.
func NewDInt(d DInt) *DInt {
	return &d
}

// ResolvedType implements the Datum interface.
func (*DInt) ResolvedType() *types.T { return types.Int }

// Compare implements the Datum interface.
func (d *DInt) Compare(other Datum) int {
	switch o := other.(type) {
	case dNull:
		return 1
	case *DInt:
		switch {
		case *d < *o:
			return -1
		case *d > *o:
			return 1
		}
		return 0
	case *DDecimal:
		var dec apd.Decimal
		dec.SetInt64(int64(*d))
		return dec.Cmp(&o.Decimal)
	}
	panic(makeUnsupportedComparisonMessage(d, other))
}

func (d *DInt) String() string { return strconv.FormatInt(int64(*d), 10) }

func (*DInt) datum() {}

// DDecimal is the DECIMAL datum.
type DDecimal struct {
	apd.Decimal
}

// ParseDDecimal parses a decimal literal.
func ParseDDecimal(s string) (*DDecimal, error) {
	dd := &DDecimal{}
	if _, _, err := dd.SetString(s); err != nil {
		return nil, errors.Wrapf(err, "could not parse %q as type decimal", s)
	}
	return dd, nil
}

// ResolvedType implements the Datum interface.
func (*DDecimal) ResolvedType() *types.T { return types.Decimal }

// Compare implements the Datum interface.
func (d *DDecimal) Compare(other Datum) int {
	switch o := other.(type) {
	case dNull:
		return 1
	case *DDecimal:
		return d.Cmp(&o.Decimal)
	case *DInt:
		return -o.Compare(d)
	}
	panic(makeUnsupportedComparisonMessage(d, other))
}

func (d *DDecimal) String() string { return d.Decimal.String() }

func (*DDecimal) datum() {}

// DString is the STRING datum.
type DString string

// NewDString is a helper routine to create a *DString initialized from its
// argument.
func NewDString(d string) *DString {
	r := DString(d)
	return &r
}

// ResolvedType implements the Datum interface.
func (*DString) ResolvedType() *types.T { return types.String }

// Compare implements the Datum interface.
func (d *DString) Compare(other Datum) int {
	switch o := other.(type) {
	case dNull:
		return 1
	case *DString:
		return strings.Compare(string(*d), string(*o))
	}
	panic(makeUnsupportedComparisonMessage(d, other))
}

func (d *DString) String() string {
	return "'" + strings.ReplaceAll(string(*d), "'", "''") + "'"
}

func (*DString) datum() {}

// DBool is the BOOL datum.
type DBool bool

var (
	// DBoolTrue is a pointer to the DBool(true) value and can be used in
	// comparisons against Datum types.
	DBoolTrue = &constDBoolTrue
	// DBoolFalse is a pointer to the DBool(false) value and can be used in
	// comparisons against Datum types.
	DBoolFalse = &constDBoolFalse

	constDBoolTrue  DBool = true
	constDBoolFalse DBool = false
)

// MakeDBool converts its argument to a *DBool, returning either DBoolTrue or
// DBoolFalse.
func MakeDBool(d DBool) *DBool {
	if d {
		return DBoolTrue
	}
	return DBoolFalse
}

// ResolvedType implements the Datum interface.
func (*DBool) ResolvedType() *types.T { return types.Bool }

// Compare implements the Datum interface.
func (d *DBool) Compare(other Datum) int {
	switch o := other.(type) {
	case dNull:
		return 1
	case *DBool:
		switch {
		case !bool(*d) && bool(*o):
			return -1
		case bool(*d) && !bool(*o):
			return 1
		}
		return 0
	}
	panic(makeUnsupportedComparisonMessage(d, other))
}

func (d *DBool) String() string { return strconv.FormatBool(bool(*d)) }

func (*DBool) datum() {}

type dNull struct{}

// DNull is the NULL Datum.
var DNull Datum = dNull{}

// ResolvedType implements the Datum interface.
func (dNull) ResolvedType() *types.T { return types.Unknown }

// Compare implements the Datum interface.
func (dNull) Compare(other Datum) int {
	if other == DNull {
		return 0
	}
	return -1
}

func (dNull) String() string { return "NULL" }

func (dNull) datum() {}

func makeUnsupportedComparisonMessage(d1, d2 Datum) error {
	return errors.AssertionFailedf("unsupported comparison: %s to %s",
		redact.Safe(d1.ResolvedType()), redact.Safe(d2.ResolvedType()))
}
