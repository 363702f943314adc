package extract

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/linkedin/goavro/v2"

	"learngen/sink"
)

func avroType(k kind) string {
	switch k {
	case kindLong, kindTimestamp:
		return "long"
	case kindDouble:
		return "double"
	case kindBool:
		return "boolean"
	}
	return "string"
}

type avroField struct {
	Name    string `json:"name"`
	Type    any    `json:"type"`
	Default any    `json:"default"`
	Doc     string `json:"doc,omitempty"`
}

// avroSchema builds a record schema with nullable fields. Timestamps are
// microseconds since the epoch.
func avroSchema(table string, ds *sink.Dataset, kinds []kind) (string, error) {
	fields := make([]avroField, len(ds.Columns))
	for i, name := range ds.Columns {
		fields[i] = avroField{Name: name, Type: []string{"null", avroType(kinds[i])}}
		if kinds[i] == kindTimestamp {
			fields[i].Doc = "microseconds since the unix epoch, UTC"
		}
	}
	raw, err := json.Marshal(map[string]any{
		"type":   "record",
		"name":   table,
		"fields": fields,
	})
	return string(raw), err
}

// writeAvro writes the dataset as a snappy-compressed Avro container file.
func writeAvro(w io.Writer, table string, ds *sink.Dataset) error {
	kinds := columnKinds(ds)
	schema, err := avroSchema(table, ds, kinds)
	if err != nil {
		return err
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Schema:          schema,
		CompressionName: goavro.CompressionSnappyLabel,
	})
	if err != nil {
		return fmt.Errorf("create avro writer: %w", err)
	}
	records := make([]any, 0, len(ds.Rows))
	for r, values := range ds.Rows {
		record := make(map[string]any, len(ds.Columns))
		for i, name := range ds.Columns {
			v, err := cell(kinds[i], values[i])
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", r, name, err)
			}
			if v == nil {
				record[name] = nil
				continue
			}
			record[name] = goavro.Union(avroType(kinds[i]), v)
		}
		records = append(records, record)
	}
	if err := ocf.Append(records); err != nil {
		return fmt.Errorf("append avro records: %w", err)
	}
	return nil
}
