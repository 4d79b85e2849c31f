// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"strings"
	"sync"

	"github.com/heplan/heplan/pkg/sql/types"
)

// Column describes one output column of a plan node.
type Column struct {
	Name     string
	Type     *types.T
	Nullable bool
}

// RowSchema is the ordered list of output columns of a plan node. Schemas
// are immutable; they are usually interned through a SchemaCache so that
// identical schemas share storage.
type RowSchema struct {
	cols []Column
}

// Width returns the number of columns.
func (s *RowSchema) Width() int { return len(s.cols) }

// Column returns the i-th column.
func (s *RowSchema) Column(i int) Column { return s.cols[i] }

// Columns returns the columns. The slice must not be modified.
func (s *RowSchema) Columns() []Column { return s.cols }

// Ordinal returns the position of the first column with the given name.
func (s *RowSchema) Ordinal(name string) (int, bool) {
	for i := range s.cols {
		if s.cols[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

// Equal returns true if both schemas have the same column names and types in
// the same order. Nullability is not compared: outer joins and adapters may
// widen it without changing the row type.
func (s *RowSchema) Equal(other *RowSchema) bool {
	if s == other {
		return true
	}
	if len(s.cols) != len(other.cols) {
		return false
	}
	for i := range s.cols {
		if s.cols[i].Name != other.cols[i].Name || !s.cols[i].Type.Identical(other.cols[i].Type) {
			return false
		}
	}
	return true
}

func (s *RowSchema) String() string {
	var buf strings.Builder
	buf.WriteByte('(')
	for i, c := range s.cols {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(c.Name)
		buf.WriteByte(' ')
		buf.WriteString(c.Type.String())
		if !c.Nullable {
			buf.WriteString(" not null")
		}
	}
	buf.WriteByte(')')
	return buf.String()
}

func (s *RowSchema) key() string {
	return s.String()
}

// SchemaCache interns row schemas. It is safe for concurrent use and is
// shared by all compilations that use the same compiler context. A nil
// *SchemaCache is valid and simply allocates a new schema on every call.
type SchemaCache struct {
	mu      sync.Mutex
	schemas map[string]*RowSchema
}

// NewSchemaCache creates an empty cache.
func NewSchemaCache() *SchemaCache {
	return &SchemaCache{schemas: make(map[string]*RowSchema)}
}

// Intern returns the schema with the given columns.
func (c *SchemaCache) Intern(cols []Column) *RowSchema {
	s := &RowSchema{cols: append([]Column(nil), cols...)}
	if c == nil {
		return s
	}
	key := s.key()
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.schemas[key]; ok {
		return existing
	}
	c.schemas[key] = s
	return s
}

// Concat returns the schema of rows formed by concatenating a row of each
// input schema.
func (c *SchemaCache) Concat(schemas ...*RowSchema) *RowSchema {
	var cols []Column
	for _, s := range schemas {
		cols = append(cols, s.cols...)
	}
	return c.Intern(cols)
}

// WithNullable returns the schema with every column marked nullable.
func (c *SchemaCache) WithNullable(s *RowSchema) *RowSchema {
	cols := make([]Column, len(s.cols))
	for i, col := range s.cols {
		col.Nullable = true
		cols[i] = col
	}
	return c.Intern(cols)
}

// Len returns the number of distinct schemas in the cache.
func (c *SchemaCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.schemas)
}
