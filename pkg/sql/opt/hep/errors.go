// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package hep

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
)

// ErrDidNotConverge is returned, wrapped, when a group, subprogram or pass
// exceeds its iteration bound. Use errors.Is to detect it.
var ErrDidNotConverge = errors.New("rewrite program did not converge")

// UnconvertibleError is returned when a reachable node cannot be brought to
// the convention its consumer requires.
type UnconvertibleError struct {
	Node       plan.NodeID
	Op         opt.Operator
	Convention opt.Convention
	Required   opt.Convention
}

var _ errors.SafeFormatter = (*UnconvertibleError)(nil)
var _ fmt.Formatter = (*UnconvertibleError)(nil)

// Error is part of the error interface.
func (e *UnconvertibleError) Error() string {
	return fmt.Sprintf("unconvertible node %d (%s): convention %s cannot be converted to %s",
		e.Node, e.Op, e.Convention, e.Required)
}

// SafeFormatError implements errors.SafeFormatter.
func (e *UnconvertibleError) SafeFormatError(p errors.Printer) (next error) {
	p.Printf("unconvertible node %d (%s): convention %s cannot be converted to %s",
		e.Node, e.Op, e.Convention, e.Required)
	return nil
}

// Format implements fmt.Formatter.
func (e *UnconvertibleError) Format(s fmt.State, verb rune) { errors.FormatError(e, s, verb) }
