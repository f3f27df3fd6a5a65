package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/expdata"
)

func TestEmptyInListSkipsDatabase(t *testing.T) {
	src := NewSource("postgres://invalid.invalid:1/none")
	rows, err := src.FetchRows(context.Background(), expdata.Query{Table: "trust_player", Column: "id"})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NoError(t, src.Close())
}

func TestPlainValue(t *testing.T) {
	raw := make([]byte, 16)
	raw[15] = 1
	assert.Equal(t, raw, plainValue(pgtype.ByteaOID, raw))
	assert.Equal(t, string(raw), plainValue(pgtype.TextOID, raw))
	assert.Equal(t, "abc", plainValue(pgtype.ByteaOID, []byte("abc")))
	assert.Equal(t, int64(4), plainValue(pgtype.Int8OID, int64(4)))
}

func TestPostgresSource_FetchRows(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if os.Getenv("EXPDATA_INTEGRATION") != "1" || dsn == "" {
		t.Skip("integration: set EXPDATA_INTEGRATION=1 and POSTGRES_DSN to run")
	}

	ctx := context.Background()
	src := NewSource(dsn)
	defer src.Close()
	require.NoError(t, src.Ping(ctx))

	pool, err := src.init(ctx)
	require.NoError(t, err)
	_, _ = pool.Exec(ctx, "DROP TABLE IF EXISTS expdata_pg_test")
	_, err = pool.Exec(ctx, "CREATE TABLE expdata_pg_test (id INTEGER PRIMARY KEY, parent_id INTEGER, label TEXT)")
	require.NoError(t, err)
	defer pool.Exec(ctx, "DROP TABLE IF EXISTS expdata_pg_test")
	_, err = pool.Exec(ctx, "INSERT INTO expdata_pg_test VALUES (1, 10, 'a'), (2, 10, 'b'), (3, 20, 'c')")
	require.NoError(t, err)

	src.batchSize = 1
	rows, err := src.FetchRows(ctx, expdata.Query{Table: "expdata_pg_test", Column: "id", Values: []any{3, 1}, OrderBy: "id"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int32(1), rows[0].Value("id"))
	assert.Equal(t, []string{"id", "parent_id", "label"}, rows[0].Keys())

	buckets, err := src.FetchRowsByParent(ctx, "expdata_pg_test", "parent_id", []any{10, 20})
	require.NoError(t, err)
	assert.Len(t, buckets["10"], 2)
	assert.Len(t, buckets["20"], 1)
}
