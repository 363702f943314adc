package sink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversions(t *testing.T) {
	n, err := AsInt64([]byte("42"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	n, err = AsInt64(int32(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	_, err = AsInt64(true)
	assert.Error(t, err)

	f, err := AsFloat64("9.99")
	require.NoError(t, err)
	assert.Equal(t, 9.99, f)

	now := time.Date(2023, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	got, err := AsTime(&now)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.Equal(now))
	var missing *time.Time
	_, err = AsTime(missing)
	assert.Error(t, err)

	s, err := AsString([]byte("basic"))
	require.NoError(t, err)
	assert.Equal(t, "basic", s)
}

func TestDatasetColumn(t *testing.T) {
	ds := &Dataset{Columns: []string{"user_id", "signup_date"}}
	i, err := ds.Column("signup_date")
	require.NoError(t, err)
	assert.Equal(t, 1, i)
	_, err = ds.Column("email")
	assert.Error(t, err)
}
