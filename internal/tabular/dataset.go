// Package tabular holds an in-memory table snapshot and encodes it as Parquet.
package tabular

import (
	"fmt"
	"time"
)

// Kind is the logical type of a column.
type Kind int

const (
	KindString Kind = iota
	KindInt64
	KindFloat64
	KindBool
	KindTimestamp
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	case KindTimestamp:
		return "timestamp"
	case KindBinary:
		return "binary"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column describes one column of a dataset.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Dataset is a full table snapshot. Rows hold values in column order; a nil
// value is a SQL NULL. Non-nil values must match the column kind: string,
// int64, float64, bool, time.Time or []byte.
type Dataset struct {
	Columns []Column
	Rows    [][]any
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Empty reports whether the dataset has no rows.
func (d *Dataset) Empty() bool {
	return d.Len() == 0
}

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Record returns row i keyed by column name.
func (d *Dataset) Record(i int) map[string]any {
	rec := make(map[string]any, len(d.Columns))
	for j, c := range d.Columns {
		rec[c.Name] = d.Rows[i][j]
	}
	return rec
}

// Summary describes the dataset shape.
func (d *Dataset) Summary() string {
	if d == nil {
		return "0 rows"
	}
	return fmt.Sprintf("%d rows x %d columns", len(d.Rows), len(d.Columns))
}

// KindOf returns the kind a non-nil value encodes as.
func KindOf(v any) (Kind, bool) {
	switch v.(type) {
	case string:
		return KindString, true
	case int64:
		return KindInt64, true
	case float64:
		return KindFloat64, true
	case bool:
		return KindBool, true
	case time.Time:
		return KindTimestamp, true
	case []byte:
		return KindBinary, true
	default:
		return 0, false
	}
}
