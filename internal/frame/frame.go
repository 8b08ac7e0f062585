// Package frame implements the in-memory columnar batch the pipeline
// accumulates parsed rows into. Columns are typed per the source schema
// and track per-value validity, so missing payload fields survive as
// nulls instead of empty strings.
package frame

import (
	"fmt"
	"strconv"

	"github.com/ignite/greenbutton-etl/internal/schema"
)

// Column is a single typed column with a validity mask.
type Column struct {
	Name string
	Type schema.FieldType

	strs   []string
	ints   []int64
	floats []float64
	valid  []bool
}

// NewColumn creates an empty column of the given type.
func NewColumn(name string, typ schema.FieldType) *Column {
	return &Column{Name: name, Type: typ}
}

// Len returns the number of values in the column.
func (c *Column) Len() int { return len(c.valid) }

// IsNull reports whether the value at index i is missing.
func (c *Column) IsNull(i int) bool { return !c.valid[i] }

// Value returns the value at index i as string/int64/float64, or nil if
// missing. Used by the loader when binding rows.
func (c *Column) Value(i int) interface{} {
	if !c.valid[i] {
		return nil
	}
	switch c.Type {
	case schema.TypeInt64:
		return c.ints[i]
	case schema.TypeFloat64:
		return c.floats[i]
	default:
		return c.strs[i]
	}
}

// AppendNull appends a missing value.
func (c *Column) AppendNull() {
	c.valid = append(c.valid, false)
	switch c.Type {
	case schema.TypeInt64:
		c.ints = append(c.ints, 0)
	case schema.TypeFloat64:
		c.floats = append(c.floats, 0)
	default:
		c.strs = append(c.strs, "")
	}
}

// AppendString appends a present string value; only valid on string columns.
func (c *Column) AppendString(v string) {
	c.strs = append(c.strs, v)
	c.valid = append(c.valid, true)
}

// AppendInt appends a present int64 value; only valid on int64 columns.
func (c *Column) AppendInt(v int64) {
	c.ints = append(c.ints, v)
	c.valid = append(c.valid, true)
}

// AppendFloat appends a present float64 value; only valid on float64 columns.
func (c *Column) AppendFloat(v float64) {
	c.floats = append(c.floats, v)
	c.valid = append(c.valid, true)
}

// AppendRaw decodes a raw payload value per the column's declared type
// and appends it. nil appends a null. A value that cannot be decoded is
// an error naming the column and offending text.
func (c *Column) AppendRaw(raw *string) error {
	if raw == nil {
		c.AppendNull()
		return nil
	}
	switch c.Type {
	case schema.TypeInt64:
		v, err := strconv.ParseInt(*raw, 10, 64)
		if err != nil {
			return fmt.Errorf("column %q: cannot decode %q as int64", c.Name, *raw)
		}
		c.AppendInt(v)
	case schema.TypeFloat64:
		v, err := strconv.ParseFloat(*raw, 64)
		if err != nil {
			return fmt.Errorf("column %q: cannot decode %q as float64", c.Name, *raw)
		}
		c.AppendFloat(v)
	default:
		c.AppendString(*raw)
	}
	return nil
}

// Int64 returns the int64 value at i. Callers check IsNull first.
func (c *Column) Int64(i int) int64 { return c.ints[i] }

// Float64 returns the float64 value at i. Callers check IsNull first.
func (c *Column) Float64(i int) float64 { return c.floats[i] }

// String returns the string value at i. Callers check IsNull first.
func (c *Column) String(i int) string { return c.strs[i] }

// NullCount returns the number of missing values in the column.
func (c *Column) NullCount() int {
	n := 0
	for _, ok := range c.valid {
		if !ok {
			n++
		}
	}
	return n
}

// Table is an ordered set of equal-length columns.
type Table struct {
	cols   []*Column
	byName map[string]int
}

// New creates an empty table with one column per schema entry, in
// declared order, named by source field.
func New(sch schema.SourceSchema) *Table {
	t := &Table{byName: make(map[string]int, len(sch))}
	for _, f := range sch {
		t.byName[f.SourceField] = len(t.cols)
		t.cols = append(t.cols, NewColumn(f.SourceField, f.Type))
	}
	return t
}

// Build decodes raw string rows into a typed table per the schema. Keys
// absent from a row become nulls; keys outside the schema are dropped.
func Build(rows []map[string]*string, sch schema.SourceSchema) (*Table, error) {
	t := New(sch)
	for _, row := range rows {
		for _, col := range t.cols {
			if err := col.AppendRaw(row[col.Name]); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

// Height returns the number of rows.
func (t *Table) Height() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column, or an error if absent.
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.byName[name]
	if !ok {
		return nil, fmt.Errorf("no column %q", name)
	}
	return t.cols[i], nil
}

// SetColumn replaces the named column in place, preserving order. The
// replacement may change the column's type (the timestamp conversion
// turns an int64 column into a formatted string column).
func (t *Table) SetColumn(name string, col *Column) error {
	i, ok := t.byName[name]
	if !ok {
		return fmt.Errorf("no column %q", name)
	}
	if col.Len() != t.Height() {
		return fmt.Errorf("column %q: length %d does not match table height %d", name, col.Len(), t.Height())
	}
	col.Name = name
	t.cols[i] = col
	return nil
}

// RenameAndSelect renames columns per mapping and projects the table
// down to exactly the target list, in target order. Columns without a
// mapping entry are dropped; a missing target is an error.
func (t *Table) RenameAndSelect(mapping map[string]string, targets []string) (*Table, error) {
	renamed := make(map[string]*Column, len(t.cols))
	for _, c := range t.cols {
		name, ok := mapping[c.Name]
		if !ok {
			continue
		}
		renamed[name] = c
	}

	out := &Table{byName: make(map[string]int, len(targets))}
	for _, name := range targets {
		c, ok := renamed[name]
		if !ok {
			return nil, fmt.Errorf("no column maps to target %q", name)
		}
		c.Name = name
		out.byName[name] = len(out.cols)
		out.cols = append(out.cols, c)
	}
	return out, nil
}

// NullCount returns the number of missing values in the named column.
func (t *Table) NullCount(name string) (int, error) {
	c, err := t.Column(name)
	if err != nil {
		return 0, err
	}
	return c.NullCount(), nil
}
