package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learngen/sink"
)

var users = sink.Table{Name: "users", Columns: []string{"email", "country"}, IDColumn: "user_id"}

var tags = sink.Table{Name: "tags", Columns: []string{"slug", "label"}, IDColumn: "tag_id", ConflictColumns: []string{"slug"}}

func TestUniqueKeysAreEnforced(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySink()
	m.Unique("users", "email")

	ids, err := m.InsertReturning(ctx, users, [][]any{{"a@x", "TW"}, {"b@x", "SG"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	_, err = m.InsertReturning(ctx, users, [][]any{{"a@x", "HK"}})
	assert.ErrorIs(t, err, sink.ErrConstraintViolation)
	_, err = m.Insert(ctx, users, [][]any{{"b@x", "HK"}})
	assert.ErrorIs(t, err, sink.ErrConstraintViolation)
}

func TestConflictColumnsReuseAndSkip(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySink()
	first, err := m.InsertReturning(ctx, tags, [][]any{{"go", "Go"}, {"sql", "SQL"}})
	require.NoError(t, err)

	again, err := m.InsertReturning(ctx, tags, [][]any{{"sql", "SQL"}, {"avro", "Avro"}})
	require.NoError(t, err)
	assert.Equal(t, first[1], again[0])
	assert.Equal(t, int64(3), again[1])

	n, err := m.Insert(ctx, tags, [][]any{{"go", "Go"}, {"rust", "Rust"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, m.Rows("tags"), 4)
}

func TestReadTable(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySink()
	_, err := m.InsertReturning(ctx, users, [][]any{{"a@x", "TW"}, {"b@x", "SG"}, {"c@x", "JP"}})
	require.NoError(t, err)

	ds, err := m.ReadTable(ctx, "users", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"user_id", "email", "country"}, ds.Columns)
	assert.Equal(t, []any{int64(3), "c@x", "JP"}, ds.Rows[2])

	ds, err = m.ReadTable(ctx, "users", []string{"country"}, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"TW"}, {"SG"}}, ds.Rows)

	_, err = m.ReadTable(ctx, "missing", nil, 0)
	assert.Error(t, err)
}

func TestTruncateRestartsIdentity(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySink()
	m.Unique("users", "email")
	_, err := m.InsertReturning(ctx, users, [][]any{{"a@x", "TW"}})
	require.NoError(t, err)
	require.NoError(t, m.Truncate(ctx, []string{"users"}))

	ds, err := m.ReadTable(ctx, "users", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, ds.Rows)

	ids, err := m.InsertReturning(ctx, users, [][]any{{"a@x", "TW"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)
}

func TestDefineCreatesEmptyTable(t *testing.T) {
	m := NewMemorySink()
	m.Define(users)

	ds, err := m.ReadTable(context.Background(), "users", nil, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"user_id", "email", "country"}, ds.Columns)
	assert.Empty(t, ds.Rows)
}

func TestFailAfter(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySink()
	m.FailAfter("events", 1)
	require.NoError(t, m.InsertMany(ctx, "events", nil))
	err := m.InsertMany(ctx, "events", nil)
	assert.ErrorIs(t, err, sink.ErrStoreUnavailable)
}

type doc string

func (d doc) Key() string { return string(d) }

func TestPrepareReset(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySink()
	require.NoError(t, m.Prepare(ctx, []string{"events"}, false))
	require.NoError(t, m.InsertMany(ctx, "events", []sink.Document{doc("a")}))
	require.NoError(t, m.Prepare(ctx, []string{"events"}, false))
	assert.Len(t, m.Documents("events"), 1)
	require.NoError(t, m.Prepare(ctx, []string{"events"}, true))
	assert.Empty(t, m.Documents("events"))
}

func TestBlobSink(t *testing.T) {
	ctx := context.Background()
	b := NewBlobSink()
	n, err := b.Put(ctx, "raw/users/users_20240101.parquet", bytes.NewBufferString("PAR1"), "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	data, ok := b.Object("raw/users/users_20240101.parquet")
	require.True(t, ok)
	assert.Equal(t, "PAR1", string(data))
	assert.Equal(t, "mem://raw/users/users_20240101.parquet", b.Location("raw/users/users_20240101.parquet"))

	b.FailPut("raw/x", errors.New("denied"))
	_, err = b.Put(ctx, "raw/x", bytes.NewBufferString("x"), "")
	assert.ErrorIs(t, err, sink.ErrStoreUnavailable)
}
