package postgres

import (
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"

	"learngen/sink"
)

func TestInsertStatement(t *testing.T) {
	table := sink.Table{Name: "users", Columns: []string{"email", "country"}, IDColumn: "user_id"}
	query, args := insertStatement(table, [][]any{{"a@x", "TW"}, {"b@x", "SG"}})
	assert.Equal(t, `INSERT INTO "users" ("email", "country") VALUES ($1, $2), ($3, $4)`, query)
	assert.Equal(t, []any{"a@x", "TW", "b@x", "SG"}, args)
}

func TestSplitStaysUnderParamLimit(t *testing.T) {
	rows := make([][]any, 40000)
	parts := split(rows, 9)
	assert.Len(t, parts, 6)
	total := 0
	for _, p := range parts {
		assert.LessOrEqual(t, len(p)*9, maxParams)
		total += len(p)
	}
	assert.Equal(t, 40000, total)
	assert.Empty(t, split(nil, 9))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 9.99, normalize(pgtype.Numeric{Int: big.NewInt(999), Exp: -2, Valid: true}))
	assert.Nil(t, normalize(pgtype.Numeric{}))
	assert.Equal(t, int64(3), normalize(int32(3)))
	assert.Equal(t, "x", normalize("x"))
}

func TestDSN(t *testing.T) {
	cfg := PostgresConfig{DbHost: "db", Database: "learnhub_prod", DbPort: 5432, DbUser: "admin", DbPassword: "pw"}
	assert.Equal(t, "postgresql://admin:pw@db:5432/learnhub_prod?sslmode=disable", cfg.DSN())
}
