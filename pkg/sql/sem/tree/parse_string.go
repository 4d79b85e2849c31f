// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package tree

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/types"
)

// ParseAndRequireString parses s as type t. The string NULL (in any case)
// parses to DNull for every type.
func ParseAndRequireString(t *types.T, s string) (Datum, error) {
	if strings.EqualFold(s, "null") {
		return DNull, nil
	}
	switch t.Family() {
	case types.BoolFamily:
		b, err := strconv.ParseBool(strings.ToLower(s))
		if err != nil {
			return nil, errors.Wrapf(err, "could not parse %q as type bool", s)
		}
		return MakeDBool(DBool(b)), nil
	case types.IntFamily:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "could not parse %q as type int", s)
		}
		return NewDInt(DInt(i)), nil
	case types.DecimalFamily:
		return ParseDDecimal(s)
	case types.StringFamily:
		return NewDString(s), nil
	}
	return nil, errors.Newf("cannot parse %q as type %s", s, t)
}

// ParseLiteral infers the type of an untyped literal: quoted strings, true
// and false, NULL, integers, and decimals.
func ParseLiteral(s string) (Datum, error) {
	switch {
	case len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'':
		return NewDString(strings.ReplaceAll(s[1:len(s)-1], "''", "'")), nil
	case strings.EqualFold(s, "null"):
		return DNull, nil
	case strings.EqualFold(s, "true"), strings.EqualFold(s, "false"):
		return ParseAndRequireString(types.Bool, s)
	case strings.ContainsAny(s, ".eE"):
		return ParseDDecimal(s)
	}
	return ParseAndRequireString(types.Int, s)
}
