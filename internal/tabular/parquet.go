package tabular

import (
	"bytes"
	"fmt"
	"time"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/apache/arrow/go/v15/parquet"
	"github.com/apache/arrow/go/v15/parquet/compress"
	"github.com/apache/arrow/go/v15/parquet/pqarrow"
)

// ContentType is the media type of encoded payloads.
const ContentType = "application/vnd.apache.parquet"

func arrowType(k Kind) (arrow.DataType, error) {
	switch k {
	case KindString:
		return arrow.BinaryTypes.String, nil
	case KindInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case KindFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case KindBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case KindTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us, nil
	case KindBinary:
		return arrow.BinaryTypes.Binary, nil
	default:
		return nil, fmt.Errorf("unsupported column kind %s", k)
	}
}

// Schema returns the Arrow schema of the dataset. Every column is nullable.
func (d *Dataset) Schema() (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(d.Columns))
	for i, c := range d.Columns {
		dt, err := arrowType(c.Kind)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		fields[i] = arrow.Field{Name: c.Name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

// EncodeParquet writes the dataset as a single-row-group, snappy-compressed
// Parquet file and returns its bytes.
func EncodeParquet(d *Dataset) ([]byte, error) {
	schema, err := d.Schema()
	if err != nil {
		return nil, err
	}

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	for i, row := range d.Rows {
		if len(row) != len(d.Columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(d.Columns))
		}
		for j, v := range row {
			if err := appendValue(b.Field(j), d.Columns[j].Kind, v); err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, d.Columns[j].Name, err)
			}
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	fw, err := pqarrow.NewFileWriter(schema, &buf, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return nil, fmt.Errorf("write parquet record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func appendValue(fb array.Builder, kind Kind, v any) error {
	if v == nil {
		fb.AppendNull()
		return nil
	}
	if k, ok := KindOf(v); !ok || k != kind {
		return fmt.Errorf("value of type %T does not match kind %s", v, kind)
	}
	switch b := fb.(type) {
	case *array.StringBuilder:
		b.Append(v.(string))
	case *array.Int64Builder:
		b.Append(v.(int64))
	case *array.Float64Builder:
		b.Append(v.(float64))
	case *array.BooleanBuilder:
		b.Append(v.(bool))
	case *array.TimestampBuilder:
		b.Append(arrow.Timestamp(v.(time.Time).UnixMicro()))
	case *array.BinaryBuilder:
		b.Append(v.([]byte))
	default:
		return fmt.Errorf("unsupported builder %T", fb)
	}
	return nil
}
