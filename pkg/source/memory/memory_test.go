package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/expdata"
)

const fixtures = `{
  "trust_player": [
    {"id": 3, "group_id": 20, "payoff": 1.5},
    {"id": 1, "group_id": 10, "payoff": 2},
    {"id": 2, "group_id": 10, "payoff": null}
  ]
}`

func TestLoadAndFetch(t *testing.T) {
	src, err := Load(strings.NewReader(fixtures))
	require.NoError(t, err)
	ctx := context.Background()

	all, err := src.FetchRows(ctx, expdata.Query{Table: "trust_player", OrderBy: "id"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, float64(1), all[0].Value("id"))
	assert.Equal(t, []string{"id", "group_id", "payoff"}, all[0].Keys())

	some, err := src.FetchRows(ctx, expdata.Query{Table: "trust_player", Column: "id", Values: []any{int64(3), "2"}})
	require.NoError(t, err)
	assert.Len(t, some, 2)

	buckets, err := src.FetchRowsByParent(ctx, "trust_player", "group_id", []any{10, 20, 30})
	require.NoError(t, err)
	assert.Len(t, buckets["10"], 2)
	assert.Len(t, buckets["20"], 1)
	assert.Empty(t, buckets["30"])

	missing, err := src.FetchRows(ctx, expdata.Query{Table: "trust_group"})
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestFetchReturnsCopies(t *testing.T) {
	src, err := Load(strings.NewReader(fixtures))
	require.NoError(t, err)
	ctx := context.Background()

	rows, err := src.FetchRows(ctx, expdata.Query{Table: "trust_player"})
	require.NoError(t, err)
	rows[0].Set("payoff", 99)

	again, err := src.FetchRows(ctx, expdata.Query{Table: "trust_player"})
	require.NoError(t, err)
	assert.Equal(t, 1.5, again[0].Value("payoff"))
}

func TestClosedSource(t *testing.T) {
	src := New()
	require.NoError(t, src.Ping(context.Background()))
	require.NoError(t, src.Close())
	assert.Error(t, src.Ping(context.Background()))
	_, err := src.FetchRows(context.Background(), expdata.Query{Table: "x"})
	assert.Error(t, err)
}
