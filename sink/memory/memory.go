// Package memory is an in-process store used for dry runs and tests. It
// enforces unique keys like the real backends and can inject write failures.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"learngen/sink"
)

type table struct {
	idColumn string
	columns  []string
	rows     []map[string]any
	nextID   int64
	unique   map[string]int64
}

type MemorySink struct {
	mu          sync.Mutex
	tables      map[string]*table
	collections map[string][]sink.Document
	// target -> successful writes left before the next one fails.
	failures map[string]int
	// Unique keys enforced per table, in addition to Table.ConflictColumns.
	uniques map[string][][]string
}

func NewMemorySink() *MemorySink {
	return &MemorySink{
		tables:      make(map[string]*table),
		collections: make(map[string][]sink.Document),
		failures:    make(map[string]int),
		uniques:     make(map[string][][]string),
	}
}

// Unique declares a unique key on a table.
func (m *MemorySink) Unique(tableName string, columns ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uniques[tableName] = append(m.uniques[tableName], columns)
}

// Define creates empty tables, the way a migration does for a real store.
func (m *MemorySink) Define(tables ...sink.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tables {
		m.table(t)
	}
}

// FailAfter makes the write to target fail once `after` writes succeeded.
func (m *MemorySink) FailAfter(target string, after int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[target] = after
}

func (m *MemorySink) checkFailure(target string) error {
	left, ok := m.failures[target]
	if !ok {
		return nil
	}
	if left == 0 {
		return sink.Unavailable("write "+target, fmt.Errorf("injected failure"))
	}
	m.failures[target] = left - 1
	return nil
}

func (m *MemorySink) table(t sink.Table) *table {
	tb, ok := m.tables[t.Name]
	if !ok {
		tb = &table{idColumn: t.IDColumn, columns: t.Columns, unique: make(map[string]int64)}
		m.tables[t.Name] = tb
	}
	return tb
}

func (m *MemorySink) keys(t sink.Table, row map[string]any) []string {
	var keys []string
	sets := m.uniques[t.Name]
	if len(t.ConflictColumns) > 0 {
		sets = append(slices.Clone(sets), t.ConflictColumns)
	}
	for _, cols := range sets {
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = fmt.Sprint(row[c])
		}
		keys = append(keys, strings.Join(cols, ",")+"="+strings.Join(parts, "\x00"))
	}
	return keys
}

type conflictMode int

const (
	failOnConflict conflictMode = iota
	skipOnConflict
	// Return the ID of the existing row, like an upsert.
	reuseOnConflict
)

func (m *MemorySink) insert(t sink.Table, values []any, mode conflictMode) (int64, bool, error) {
	tb := m.table(t)
	if len(values) != len(t.Columns) {
		return 0, false, fmt.Errorf("%s: got %d values for %d columns", t.Name, len(values), len(t.Columns))
	}
	row := make(map[string]any, len(values)+1)
	for i, c := range t.Columns {
		row[c] = values[i]
	}
	keys := m.keys(t, row)
	for _, k := range keys {
		if id, dup := tb.unique[k]; dup {
			switch mode {
			case skipOnConflict:
				return 0, false, nil
			case reuseOnConflict:
				return id, false, nil
			}
			return 0, false, fmt.Errorf("%s: duplicate key %s: %w", t.Name, k, sink.ErrConstraintViolation)
		}
	}
	tb.nextID++
	for _, k := range keys {
		tb.unique[k] = tb.nextID
	}
	if t.IDColumn != "" {
		row[t.IDColumn] = tb.nextID
	}
	tb.rows = append(tb.rows, row)
	return tb.nextID, true, nil
}

func (m *MemorySink) InsertReturning(ctx context.Context, t sink.Table, rows [][]any) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFailure(t.Name); err != nil {
		return nil, err
	}
	mode := failOnConflict
	if len(t.ConflictColumns) > 0 {
		mode = reuseOnConflict
	}
	ids := make([]int64, 0, len(rows))
	for _, values := range rows {
		id, _, err := m.insert(t, values, mode)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemorySink) Insert(ctx context.Context, t sink.Table, rows [][]any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFailure(t.Name); err != nil {
		return 0, err
	}
	mode := failOnConflict
	if len(t.ConflictColumns) > 0 {
		mode = skipOnConflict
	}
	var stored int64
	for _, values := range rows {
		_, ok, err := m.insert(t, values, mode)
		if err != nil {
			return stored, err
		}
		if ok {
			stored++
		}
	}
	return stored, nil
}

func (m *MemorySink) Truncate(ctx context.Context, tables []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range tables {
		if tb, ok := m.tables[name]; ok {
			tb.rows = nil
			tb.nextID = 0
			tb.unique = make(map[string]int64)
		}
	}
	return nil
}

func (m *MemorySink) ReadTable(ctx context.Context, name string, columns []string, limit int) (*sink.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tb, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("relation %q does not exist", name)
	}
	if len(columns) == 0 {
		if tb.idColumn != "" {
			columns = append(columns, tb.idColumn)
		}
		columns = append(columns, tb.columns...)
	}
	ds := &sink.Dataset{Columns: slices.Clone(columns)}
	for _, row := range tb.rows {
		if limit > 0 && len(ds.Rows) == limit {
			break
		}
		values := make([]any, len(columns))
		for i, c := range columns {
			values[i] = row[c]
		}
		ds.Rows = append(ds.Rows, values)
	}
	return ds, nil
}

// Rows returns a copy of a table's rows keyed by column name.
func (m *MemorySink) Rows(name string) []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	tb, ok := m.tables[name]
	if !ok {
		return nil
	}
	out := make([]map[string]any, len(tb.rows))
	for i, r := range tb.rows {
		out[i] = make(map[string]any, len(r))
		for k, v := range r {
			out[i][k] = v
		}
	}
	return out
}

func (m *MemorySink) Prepare(ctx context.Context, collections []string, reset bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range collections {
		if _, ok := m.collections[c]; !ok || reset {
			m.collections[c] = nil
		}
	}
	return nil
}

func (m *MemorySink) InsertMany(ctx context.Context, collection string, docs []sink.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFailure(collection); err != nil {
		return err
	}
	m.collections[collection] = append(m.collections[collection], docs...)
	return nil
}

// Documents returns the documents written to a collection.
func (m *MemorySink) Documents(collection string) []sink.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.collections[collection])
}

func (m *MemorySink) Close() error {
	return nil
}
