package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"learngen/sink"
)

type PostgresConfig struct {
	DbHost     string
	Database   string
	DbPort     int
	DbUser     string
	DbPassword string
}

func (cfg PostgresConfig) DSN() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.DbUser, cfg.DbPassword, cfg.DbHost, cfg.DbPort, cfg.Database)
}

// A bind message carries at most this many parameters.
const maxParams = 65535

type PostgresSink struct {
	pool *pgxpool.Pool
}

func OpenPostgresSink(ctx context.Context, cfg PostgresConfig) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, sink.Unavailable("connect postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, sink.Unavailable("ping postgres", err)
	}
	log.WithFields(log.Fields{"host": cfg.DbHost, "database": cfg.Database}).Info("Opened Postgres store")
	return &PostgresSink{pool: pool}, nil
}

func (p *PostgresSink) Close() error {
	p.pool.Close()
	return nil
}

// InsertReturning relies on a multi-row INSERT ... RETURNING yielding rows in
// VALUES order. Tables with conflict columns are upserted so that existing
// rows report their IDs too.
func (p *PostgresSink) InsertReturning(ctx context.Context, t sink.Table, rows [][]any) ([]int64, error) {
	ids := make([]int64, 0, len(rows))
	for _, part := range split(rows, len(t.Columns)) {
		query, args := insertStatement(t, part)
		if len(t.ConflictColumns) > 0 {
			first := pgx.Identifier{t.Columns[0]}.Sanitize()
			query += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s", columnList(t.ConflictColumns), first, first)
		}
		query += " RETURNING " + pgx.Identifier{t.IDColumn}.Sanitize()

		res, err := p.pool.Query(ctx, query, args...)
		if err != nil {
			return nil, classify("insert into "+t.Name, err)
		}
		got, err := pgx.CollectRows(res, pgx.RowTo[int64])
		if err != nil {
			return nil, classify("insert into "+t.Name, err)
		}
		ids = append(ids, got...)
	}
	return ids, nil
}

// Insert streams rows with COPY. Tables with conflict columns use a plain
// INSERT that skips duplicates, which COPY cannot do.
func (p *PostgresSink) Insert(ctx context.Context, t sink.Table, rows [][]any) (int64, error) {
	if len(t.ConflictColumns) == 0 {
		n, err := p.pool.CopyFrom(ctx, pgx.Identifier{t.Name}, t.Columns, pgx.CopyFromRows(rows))
		if err != nil {
			return n, classify("copy into "+t.Name, err)
		}
		return n, nil
	}
	var stored int64
	for _, part := range split(rows, len(t.Columns)) {
		query, args := insertStatement(t, part)
		query += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", columnList(t.ConflictColumns))
		tag, err := p.pool.Exec(ctx, query, args...)
		if err != nil {
			return stored, classify("insert into "+t.Name, err)
		}
		stored += tag.RowsAffected()
	}
	return stored, nil
}

func (p *PostgresSink) Truncate(ctx context.Context, tables []string) error {
	names := make([]string, len(tables))
	for i, name := range tables {
		names[i] = pgx.Identifier{name}.Sanitize()
	}
	query := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(names, ", "))
	if _, err := p.pool.Exec(ctx, query); err != nil {
		return classify("truncate", err)
	}
	return nil
}

func (p *PostgresSink) ReadTable(ctx context.Context, table string, columns []string, limit int) (*sink.Dataset, error) {
	projection := "*"
	if len(columns) > 0 {
		projection = columnList(columns)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY 1", projection, pgx.Identifier{table}.Sanitize())
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, classify("read "+table, err)
	}
	defer rows.Close()

	ds := &sink.Dataset{}
	for _, fd := range rows.FieldDescriptions() {
		ds.Columns = append(ds.Columns, fd.Name)
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, classify("read "+table, err)
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		ds.Rows = append(ds.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("read "+table, err)
	}
	return ds, nil
}

// normalize turns pgx wrapper types into plain Go values.
func normalize(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}

func insertStatement(t sink.Table, rows [][]any) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", pgx.Identifier{t.Name}.Sanitize(), columnList(t.Columns))
	args := make([]any, 0, len(rows)*len(t.Columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			args = append(args, v)
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteByte(')')
	}
	return b.String(), args
}

func columnList(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

// split keeps every statement under the bind parameter limit.
func split(rows [][]any, width int) [][][]any {
	per := maxParams / max(width, 1)
	var parts [][][]any
	for len(rows) > per {
		parts = append(parts, rows[:per])
		rows = rows[per:]
	}
	if len(rows) > 0 {
		parts = append(parts, rows)
	}
	return parts
}

func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return fmt.Errorf("%s: %w: %w", op, sink.ErrConstraintViolation, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return sink.Unavailable(op, err)
}
