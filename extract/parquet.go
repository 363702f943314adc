package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"

	"learngen/sink"
)

func parquetNode(k kind) parquet.Node {
	switch k {
	case kindLong:
		return parquet.Int(64)
	case kindDouble:
		return parquet.Leaf(parquet.DoubleType)
	case kindBool:
		return parquet.Leaf(parquet.BooleanType)
	case kindTimestamp:
		return parquet.Timestamp(parquet.Microsecond)
	}
	return parquet.String()
}

// writeParquet writes the dataset as one snappy-compressed parquet file
// with every column optional.
func writeParquet(w io.Writer, table string, ds *sink.Dataset) error {
	kinds := columnKinds(ds)
	group := parquet.Group{}
	for i, name := range ds.Columns {
		group[name] = parquet.Optional(parquetNode(kinds[i]))
	}
	schema := parquet.NewSchema(table, group)

	// The schema orders leaves by name.
	leaf := make(map[string]int, len(ds.Columns))
	for i, path := range schema.Columns() {
		leaf[strings.Join(path, ".")] = i
	}

	pw := parquet.NewWriter(w, schema, parquet.Compression(&parquet.Snappy))
	rows := make([]parquet.Row, 0, len(ds.Rows))
	for r, values := range ds.Rows {
		row := make(parquet.Row, len(ds.Columns))
		for i, name := range ds.Columns {
			idx := leaf[name]
			v, err := cell(kinds[i], values[i])
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", r, name, err)
			}
			if v == nil {
				row[idx] = parquet.NullValue().Level(0, 0, idx)
				continue
			}
			row[idx] = parquet.ValueOf(v).Level(0, 1, idx)
		}
		rows = append(rows, row)
	}
	if _, err := pw.WriteRows(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	return pw.Close()
}
