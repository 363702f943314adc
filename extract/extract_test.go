package extract

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linkedin/goavro/v2"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learngen/sink"
	"learngen/sink/memory"
)

var day = time.Date(2024, 1, 8, 15, 0, 0, 0, time.UTC)

var usersTable = sink.Table{
	Name:     "users",
	Columns:  []string{"email", "signup_date", "is_active", "score", "verified_at"},
	IDColumn: "user_id",
}

func seeded(t *testing.T) *memory.MemorySink {
	m := memory.NewMemorySink()
	signup := time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)
	var missing *time.Time
	_, err := m.InsertReturning(context.Background(), usersTable, [][]any{
		{"a@x", signup, true, 1.5, &signup},
		{"b@x", signup.Add(time.Hour), false, 2.5, missing},
		{"c@x", signup.Add(2 * time.Hour), true, 3.5, nil},
	})
	require.NoError(t, err)
	return m
}

func newExtractor(store sink.RelationalStore, blobs sink.BlobStore, format Format) *Extractor {
	e := New(store, blobs, format, "")
	e.now = func() time.Time { return day }
	return e
}

func TestBlobPath(t *testing.T) {
	assert.Equal(t, "raw/users/users_20240108.parquet", BlobPath("raw", "users", Parquet, day))
	assert.Equal(t, "lake/payments/payments_20240108.avro", BlobPath("lake", "payments", Avro, day))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, Parquet, f)
	f, err = ParseFormat("avro")
	require.NoError(t, err)
	assert.Equal(t, Avro, f)
	_, err = ParseFormat("csv")
	assert.Error(t, err)
}

func TestColumnKinds(t *testing.T) {
	var missing *time.Time
	ds := &sink.Dataset{
		Columns: []string{"id", "name", "at", "flag", "price", "empty"},
		Rows: [][]any{
			{int64(1), "a", missing, true, 9.99, nil},
			{int64(2), "b", time.Now(), false, 19.99, nil},
		},
	}
	assert.Equal(t, []kind{kindLong, kindString, kindTimestamp, kindBool, kindDouble, kindString}, columnKinds(ds))
}

func TestExtractParquet(t *testing.T) {
	blobs := memory.NewBlobSink()
	results := newExtractor(seeded(t), blobs, Parquet).Run(context.Background(), []string{"users"})
	require.Len(t, results, 1)
	res := results[0]
	require.NoError(t, res.Err)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, "mem://raw/users/users_20240108.parquet", res.Path)

	data, ok := blobs.Object("raw/users/users_20240108.parquet")
	require.True(t, ok)
	assert.Equal(t, int64(len(data)), res.Bytes)
	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.NumRows())
	assert.Len(t, f.Schema().Columns(), 6)
}

func TestExtractAvro(t *testing.T) {
	blobs := memory.NewBlobSink()
	results := newExtractor(seeded(t), blobs, Avro).Run(context.Background(), []string{"users"})
	require.NoError(t, results[0].Err)

	data, ok := blobs.Object("raw/users/users_20240108.avro")
	require.True(t, ok)
	reader, err := goavro.NewOCFReader(bytes.NewReader(data))
	require.NoError(t, err)
	var records []map[string]any
	for reader.Scan() {
		rec, err := reader.Read()
		require.NoError(t, err)
		records = append(records, rec.(map[string]any))
	}
	require.NoError(t, reader.Err())
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, map[string]any{"string": "a@x"}, first["email"])
	signup := time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, map[string]any{"long": signup.UnixMicro()}, first["signup_date"])
	assert.Nil(t, records[1]["verified_at"])
}

func TestFailingTableDoesNotStopOthers(t *testing.T) {
	blobs := memory.NewBlobSink()
	blobs.FailPut("raw/plans/plans_20240108.parquet", errors.New("denied"))
	store := seeded(t)
	_, err := store.InsertReturning(context.Background(),
		sink.Table{Name: "plans", Columns: []string{"plan_type"}, IDColumn: "plan_id"}, [][]any{{"basic"}})
	require.NoError(t, err)

	results := newExtractor(store, blobs, Parquet).Run(context.Background(), []string{"missing", "plans", "users"})
	require.Len(t, results, 3)
	assert.Error(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, sink.ErrStoreUnavailable)
	assert.NoError(t, results[2].Err)
	_, ok := blobs.Object("raw/users/users_20240108.parquet")
	assert.True(t, ok)
}
