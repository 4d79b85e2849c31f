// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cat

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
)

// MemTable is a table whose rows are held in memory.
type MemTable struct {
	TabName string
	Cols    []opt.Column
	Rows    []tree.Datums

	// Stats overrides the row count estimate when positive.
	Stats float64
}

var _ Table = &MemTable{}

// Name is part of the Table interface.
func (t *MemTable) Name() string { return t.TabName }

// Columns is part of the Table interface.
func (t *MemTable) Columns() []opt.Column { return t.Cols }

// RowCount is part of the Table interface.
func (t *MemTable) RowCount() float64 {
	if t.Stats > 0 {
		return t.Stats
	}
	return float64(len(t.Rows))
}

// MemCatalog is a Catalog backed by in-memory tables. It also serves as the
// storage the row executor scans and inserts into.
type MemCatalog struct {
	mu     sync.RWMutex
	tables map[string]*MemTable
}

var _ Catalog = &MemCatalog{}

// NewMemCatalog returns an empty catalog.
func NewMemCatalog() *MemCatalog {
	return &MemCatalog{tables: make(map[string]*MemTable)}
}

// AddTable adds a table to the catalog.
func (c *MemCatalog) AddTable(t *MemTable) error {
	if t.TabName == "" {
		return errors.New("table has no name")
	}
	for _, row := range t.Rows {
		if err := checkRow(t, row); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[t.TabName]; ok {
		return errors.Newf("table %q already exists", t.TabName)
	}
	c.tables[t.TabName] = t
	return nil
}

// ResolveTable is part of the Catalog interface.
func (c *MemCatalog) ResolveTable(_ context.Context, name string) (Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return nil, errors.Newf("no table named %q", name)
	}
	return t, nil
}

// TableNames returns the names of all tables in sorted order.
func (c *MemCatalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scan returns a snapshot of the rows of a table.
func (c *MemCatalog) Scan(name string) ([]tree.Datums, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return nil, errors.Newf("no table named %q", name)
	}
	return append([]tree.Datums(nil), t.Rows...), nil
}

// Insert appends a row to a table.
func (c *MemCatalog) Insert(name string, row tree.Datums) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[name]
	if !ok {
		return errors.Newf("no table named %q", name)
	}
	if err := checkRow(t, row); err != nil {
		return err
	}
	t.Rows = append(t.Rows, row)
	return nil
}

func checkRow(t *MemTable, row tree.Datums) error {
	if len(row) != len(t.Cols) {
		return errors.Newf("table %q has %d columns but row %s has %d",
			t.TabName, len(t.Cols), row, len(row))
	}
	for i, d := range row {
		col := t.Cols[i]
		if d == tree.DNull {
			if !col.Nullable {
				return errors.Newf("null value in column %q violates not-null constraint", col.Name)
			}
			continue
		}
		if !d.ResolvedType().Equivalent(col.Type) {
			return errors.Newf("value %s has type %s, column %q has type %s",
				d, d.ResolvedType(), col.Name, col.Type)
		}
	}
	return nil
}
