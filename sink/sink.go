package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// A unique key already exists. Plain inserts skip such rows.
	ErrConstraintViolation = errors.New("constraint violation")
	// The store could not be reached or rejected a write.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Unavailable tags err as a store failure of the given operation.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// ChunkError reports which chunk of a write failed.
type ChunkError struct {
	Target string
	Offset int64
	Size   int
	Err    error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("write %s chunk at offset %d (%d records): %v", e.Target, e.Offset, e.Size, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// Table describes a relational target.
type Table struct {
	Name    string
	Columns []string
	// The store-assigned surrogate key returned by InsertReturning.
	IDColumn string
	// Rows colliding on these columns are skipped by Insert, and
	// InsertReturning reports the ID of the existing row.
	ConflictColumns []string
}

// Row is a relational record whose values follow Table.Columns.
type Row interface {
	Values() []any
}

// Dataset is a uniform tabular read result.
type Dataset struct {
	Columns []string
	Rows    [][]any
}

type RelationalStore interface {
	// InsertReturning writes rows and returns one assigned ID per row, in
	// input order.
	InsertReturning(ctx context.Context, t Table, rows [][]any) ([]int64, error)

	// Insert writes rows without returning IDs and reports how many were
	// stored.
	Insert(ctx context.Context, t Table, rows [][]any) (int64, error)

	// Truncate clears the tables and restarts their identities.
	Truncate(ctx context.Context, tables []string) error

	// ReadTable returns the named columns (all when empty) of a table, up
	// to limit rows (unbounded when zero), ordered by the first column.
	ReadTable(ctx context.Context, table string, columns []string, limit int) (*Dataset, error)

	Close() error
}

// Document is a schemaless record. Key is used for partitioning by
// message-queue backends.
type Document interface {
	Key() string
}

type DocumentStore interface {
	// Prepare makes the collections ready for writing. With reset, existing
	// contents are dropped first.
	Prepare(ctx context.Context, collections []string, reset bool) error

	InsertMany(ctx context.Context, collection string, docs []Document) error

	Close() error
}

// BlobStore receives finished extract files.
type BlobStore interface {
	// Put uploads the object and returns its stored size in bytes.
	Put(ctx context.Context, path string, body io.Reader, contentType string) (int64, error)

	// Location renders the fully qualified object location.
	Location(path string) string

	Close() error
}
