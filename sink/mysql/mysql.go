package mysql

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"learngen/sink"
)

type MysqlConfig struct {
	DbHost     string
	Database   string
	DbPort     int
	DbUser     string
	DbPassword string
}

func (cfg MysqlConfig) DSN() string {
	c := mysql.NewConfig()
	c.User = cfg.DbUser
	c.Passwd = cfg.DbPassword
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", cfg.DbHost, cfg.DbPort)
	c.DBName = cfg.Database
	c.ParseTime = true
	c.Loc = time.UTC
	return c.FormatDSN()
}

const (
	maxPlaceholders = 65535
	errDuplicateKey = 1062
)

type MysqlSink struct {
	db *sqlx.DB
}

func OpenMysqlSink(ctx context.Context, cfg MysqlConfig) (*MysqlSink, error) {
	log.WithFields(log.Fields{"host": cfg.DbHost, "database": cfg.Database}).Info("Opening MySQL store")
	db, err := sqlx.ConnectContext(ctx, "mysql", cfg.DSN())
	if err != nil {
		return nil, sink.Unavailable("connect mysql", err)
	}
	return &MysqlSink{db}, nil
}

func (p *MysqlSink) Close() error {
	return p.db.Close()
}

// InsertReturning derives IDs from LAST_INSERT_ID, which InnoDB assigns
// consecutively to the rows of one multi-row INSERT. Tables with conflict
// columns are inserted with INSERT IGNORE and their IDs read back by key.
func (p *MysqlSink) InsertReturning(ctx context.Context, t sink.Table, rows [][]any) ([]int64, error) {
	if len(t.ConflictColumns) > 0 {
		return p.upsertReturning(ctx, t, rows)
	}
	ids := make([]int64, 0, len(rows))
	for _, part := range split(rows, len(t.Columns)) {
		query, args := insertStatement("INSERT", t, part)
		res, err := p.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, classify("insert into "+t.Name, err)
		}
		first, err := res.LastInsertId()
		if err != nil {
			return nil, classify("insert into "+t.Name, err)
		}
		if n, err := res.RowsAffected(); err == nil && n != int64(len(part)) {
			return nil, fmt.Errorf("insert into %s: %d of %d rows stored", t.Name, n, len(part))
		}
		for i := range part {
			ids = append(ids, first+int64(i))
		}
	}
	return ids, nil
}

func (p *MysqlSink) upsertReturning(ctx context.Context, t sink.Table, rows [][]any) ([]int64, error) {
	if _, err := p.Insert(ctx, t, rows); err != nil {
		return nil, err
	}
	keyIdx := make([]int, len(t.ConflictColumns))
	for i, c := range t.ConflictColumns {
		keyIdx[i] = slices.Index(t.Columns, c)
		if keyIdx[i] < 0 {
			return nil, fmt.Errorf("%s: conflict column %s is not inserted", t.Name, c)
		}
	}
	key := func(values []any) string {
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = fmt.Sprint(v)
		}
		return strings.Join(parts, "\x00")
	}

	var tuples []string
	var args []any
	for _, row := range rows {
		tuples = append(tuples, "("+placeholders(len(keyIdx))+")")
		for _, i := range keyIdx {
			args = append(args, row[i])
		}
	}
	query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE (%s) IN (%s)",
		quote(t.IDColumn), columnList(t.ConflictColumns), quote(t.Name),
		columnList(t.ConflictColumns), strings.Join(tuples, ", "))
	res, err := p.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, classify("read back "+t.Name, err)
	}
	defer res.Close()
	byKey := make(map[string]int64, len(rows))
	for res.Next() {
		values, err := res.SliceScan()
		if err != nil {
			return nil, classify("read back "+t.Name, err)
		}
		id, err := sink.AsInt64(values[0])
		if err != nil {
			return nil, err
		}
		for i := range values[1:] {
			values[i+1] = text(values[i+1])
		}
		byKey[key(values[1:])] = id
	}
	if err := res.Err(); err != nil {
		return nil, classify("read back "+t.Name, err)
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		k := make([]any, len(keyIdx))
		for j, idx := range keyIdx {
			k[j] = row[idx]
		}
		id, ok := byKey[key(k)]
		if !ok {
			return nil, fmt.Errorf("%s: row %d not found after insert", t.Name, i)
		}
		ids[i] = id
	}
	return ids, nil
}

// Insert skips duplicate rows with INSERT IGNORE on tables that have
// conflict columns.
func (p *MysqlSink) Insert(ctx context.Context, t sink.Table, rows [][]any) (int64, error) {
	verb := "INSERT"
	if len(t.ConflictColumns) > 0 {
		verb = "INSERT IGNORE"
	}
	var stored int64
	for _, part := range split(rows, len(t.Columns)) {
		query, args := insertStatement(verb, t, part)
		res, err := p.db.ExecContext(ctx, query, args...)
		if err != nil {
			return stored, classify("insert into "+t.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return stored, classify("insert into "+t.Name, err)
		}
		stored += n
	}
	return stored, nil
}

func (p *MysqlSink) Truncate(ctx context.Context, tables []string) error {
	conn, err := p.db.Connx(ctx)
	if err != nil {
		return sink.Unavailable("truncate", err)
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0"); err != nil {
		return classify("truncate", err)
	}
	defer conn.ExecContext(context.Background(), "SET FOREIGN_KEY_CHECKS = 1")
	for _, name := range tables {
		if _, err := conn.ExecContext(ctx, "TRUNCATE TABLE "+quote(name)); err != nil {
			return classify("truncate "+name, err)
		}
	}
	return nil
}

func (p *MysqlSink) ReadTable(ctx context.Context, table string, columns []string, limit int) (*sink.Dataset, error) {
	projection := "*"
	if len(columns) > 0 {
		projection = columnList(columns)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY 1", projection, quote(table))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := p.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, classify("read "+table, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, classify("read "+table, err)
	}
	ds := &sink.Dataset{}
	for _, ct := range types {
		ds.Columns = append(ds.Columns, ct.Name())
	}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, classify("read "+table, err)
		}
		for i, v := range values {
			if values[i], err = convert(types[i].DatabaseTypeName(), v); err != nil {
				return nil, fmt.Errorf("read %s.%s: %w", table, ds.Columns[i], err)
			}
		}
		ds.Rows = append(ds.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("read "+table, err)
	}
	return ds, nil
}

// convert maps the driver's text-protocol bytes onto typed values.
func convert(dbType string, v any) (any, error) {
	raw, ok := v.([]byte)
	if !ok {
		return v, nil
	}
	s := string(raw)
	switch dbType {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "BIGINT", "UNSIGNED BIGINT", "UNSIGNED INT":
		return strconv.ParseInt(s, 10, 64)
	case "DECIMAL", "FLOAT", "DOUBLE":
		return strconv.ParseFloat(s, 64)
	}
	return s, nil
}

func text(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func insertStatement(verb string, t sink.Table, rows [][]any) (string, []any) {
	row := "(" + placeholders(len(t.Columns)) + ")"
	tuples := make([]string, len(rows))
	args := make([]any, 0, len(rows)*len(t.Columns))
	for i, r := range rows {
		tuples[i] = row
		args = append(args, r...)
	}
	query := fmt.Sprintf("%s INTO %s (%s) VALUES %s", verb, quote(t.Name), columnList(t.Columns), strings.Join(tuples, ", "))
	return query, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func columnList(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quote(c)
	}
	return strings.Join(quoted, ", ")
}

func split(rows [][]any, width int) [][][]any {
	per := maxPlaceholders / max(width, 1)
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
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if myErr.Number == errDuplicateKey {
			return fmt.Errorf("%s: %w: %w", op, sink.ErrConstraintViolation, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return sink.Unavailable(op, err)
}
