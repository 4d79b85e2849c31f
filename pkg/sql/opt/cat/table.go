// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cat contains the catalog interfaces the optimizer uses to resolve
// table names and to read table statistics.
package cat

import (
	"context"

	"github.com/heplan/heplan/pkg/sql/opt"
)

// Table is a database object that provides rows.
type Table interface {
	// Name returns the unqualified name of the table.
	Name() string

	// Columns returns the table's columns in ordinal order.
	Columns() []opt.Column

	// RowCount returns the estimated number of rows in the table.
	RowCount() float64
}

// Catalog resolves table names. Implementations must be safe for concurrent
// use by several compilations.
type Catalog interface {
	// ResolveTable returns the table with the given name, or an error if
	// there is none.
	ResolveTable(ctx context.Context, name string) (Table, error)
}
