package source

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/seantiz/tablesnap/internal/tabular"
)

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// identifier matches a table name, optionally schema-qualified.
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)?$`)

// InvalidTableError is returned for table names that are not plain identifiers.
type InvalidTableError struct {
	Table string
}

func (e *InvalidTableError) Error() string {
	return fmt.Sprintf("invalid table name %q", e.Table)
}

// ReadTable reads every row of table. Columns keep the order of the result set.
func ReadTable(ctx context.Context, q Queryer, table string) (*tabular.Dataset, error) {
	if !identifier.MatchString(table) {
		return nil, &InvalidTableError{Table: table}
	}

	rows, err := q.QueryContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}
	ds := &tabular.Dataset{Columns: make([]tabular.Column, len(types))}
	for i, ct := range types {
		ds.Columns[i] = tabular.Column{Name: ct.Name(), Kind: kindFor(ct.DatabaseTypeName())}
	}

	for rows.Next() {
		raw := make([]any, len(types))
		dest := make([]any, len(types))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s row %d: %w", table, len(ds.Rows), err)
		}

		row := make([]any, len(types))
		for i, v := range raw {
			row[i], err = normalize(ds.Columns[i].Kind, v)
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %q: %w", table, len(ds.Rows), ds.Columns[i].Name, err)
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}

	return ds, nil
}

// kindFor maps a driver's database type name to a column kind. Names differ
// per driver (MySQL "BIGINT", Postgres "INT8", SQLite declared types), so
// anything unrecognized, including DECIMAL/NUMERIC, is read as a string.
// UNSIGNED BIGINT exceeds int64 and is kept as its decimal text.
func kindFor(dbType string) tabular.Kind {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	t, unsigned := strings.CutPrefix(t, "UNSIGNED ")
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	if unsigned && t == "BIGINT" {
		return tabular.KindString
	}
	switch t {
	case "INT", "INTEGER", "TINYINT", "SMALLINT", "MEDIUMINT", "BIGINT", "INT2", "INT4", "INT8", "YEAR":
		return tabular.KindInt64
	case "FLOAT", "DOUBLE", "REAL", "FLOAT4", "FLOAT8", "DOUBLE PRECISION":
		return tabular.KindFloat64
	case "BOOL", "BOOLEAN":
		return tabular.KindBool
	case "DATE", "DATETIME", "TIMESTAMP", "TIMESTAMPTZ":
		return tabular.KindTimestamp
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY", "BYTEA", "BIT":
		return tabular.KindBinary
	default:
		return tabular.KindString
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	time.DateTime,
	time.DateOnly,
}

// normalize converts a scanned driver value into the Go type for kind. The
// MySQL text protocol returns most values as []byte, so textual forms are
// parsed.
func normalize(kind tabular.Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok && kind != tabular.KindBinary {
		v = string(b)
	}

	switch kind {
	case tabular.KindInt64:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int32:
			return int64(x), nil
		case string:
			return strconv.ParseInt(x, 10, 64)
		}
	case tabular.KindFloat64:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case string:
			return strconv.ParseFloat(x, 64)
		}
	case tabular.KindBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case string:
			return strconv.ParseBool(x)
		}
	case tabular.KindTimestamp:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, x); err == nil {
					return t.UTC(), nil
				}
			}
			return nil, fmt.Errorf("unrecognized time %q", x)
		}
	case tabular.KindBinary:
		switch x := v.(type) {
		case []byte:
			return bytes.Clone(x), nil
		case string:
			return []byte(x), nil
		}
	default:
		switch x := v.(type) {
		case string:
			return x, nil
		case time.Time:
			return x.UTC().Format(time.RFC3339Nano), nil
		default:
			return fmt.Sprint(x), nil
		}
	}
	return nil, fmt.Errorf("cannot convert %T to %s", v, kind)
}
