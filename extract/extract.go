// Package extract reads finished relational tables and uploads them to blob
// storage as columnar files, one file per table and day.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	log "github.com/sirupsen/logrus"

	"learngen/sink"
)

type Format string

const (
	Parquet Format = "parquet"
	Avro    Format = "avro"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", Parquet:
		return Parquet, nil
	case Avro:
		return Avro, nil
	}
	return "", fmt.Errorf("unsupported extract format %q", s)
}

func (f Format) contentType() string {
	if f == Avro {
		return "application/avro"
	}
	return "application/vnd.apache.parquet"
}

// Tables are extracted in this order by default.
var Tables = []string{
	"users", "subscriptions", "courses", "instructors",
	"course_categories", "subscription_plans", "payments", "course_enrollments",
}

// Result reports one table. Err is nil on success.
type Result struct {
	Table   string
	Rows    int
	Bytes   int64
	Path    string
	Elapsed time.Duration
	Err     error
}

type Extractor struct {
	store  sink.RelationalStore
	blobs  sink.BlobStore
	format Format
	prefix string
	now    func() time.Time
}

func New(store sink.RelationalStore, blobs sink.BlobStore, format Format, prefix string) *Extractor {
	if prefix == "" {
		prefix = "raw"
	}
	return &Extractor{store: store, blobs: blobs, format: format, prefix: prefix, now: time.Now}
}

// BlobPath is <prefix>/<table>/<table>_<YYYYMMDD>.<ext>.
func BlobPath(prefix, table string, format Format, day time.Time) string {
	name := fmt.Sprintf("%s_%s.%s", table, day.UTC().Format("20060102"), format)
	return path.Join(prefix, table, name)
}

// Run extracts every table. A failing table is reported and does not stop
// the others.
func (e *Extractor) Run(ctx context.Context, tables []string) []Result {
	day := e.now()
	results := make([]Result, 0, len(tables))
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{Table: table, Err: err})
			continue
		}
		start := time.Now()
		res := e.table(ctx, table, day)
		res.Elapsed = time.Since(start)
		logger := log.WithFields(log.Fields{"table": table, "rows": res.Rows, "bytes": res.Bytes})
		if res.Err != nil {
			logger.WithError(res.Err).Error("Extract failed")
		} else {
			logger.WithField("path", res.Path).Info("Extracted table")
		}
		results = append(results, res)
	}
	return results
}

func (e *Extractor) table(ctx context.Context, table string, day time.Time) Result {
	res := Result{Table: table}
	ds, err := e.store.ReadTable(ctx, table, nil, 0)
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", table, err)
		return res
	}
	res.Rows = len(ds.Rows)

	var buf bytes.Buffer
	switch e.format {
	case Avro:
		err = writeAvro(&buf, table, ds)
	default:
		err = writeParquet(&buf, table, ds)
	}
	if err != nil {
		res.Err = fmt.Errorf("%s: encode %s: %w", table, e.format, err)
		return res
	}

	blobPath := BlobPath(e.prefix, table, e.format, day)
	n, err := e.blobs.Put(ctx, blobPath, &buf, e.format.contentType())
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", table, err)
		return res
	}
	res.Bytes = n
	res.Path = e.blobs.Location(blobPath)
	return res
}
