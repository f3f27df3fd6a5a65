package tabular

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/expdata"
	"github.com/user/expdata/pkg/record"
	"github.com/user/expdata/pkg/schema"
	"github.com/user/expdata/pkg/source/memory"
)

// grid creates one session with n subsessions of g groups of p players,
// followed by extra subsessions without groups.
func grid(app string, n, g, p, extra int) *memory.Source {
	src := memory.New()
	src.Insert(schema.SessionTable, record.FromPairs("id", 1, "code", "s1", "label", "", "experimenter_name", "", "time_created", nil, "comment", "", "is_demo", false))

	pid, gid, partID := 1000, 100, 1
	for s := 1; s <= n+extra; s++ {
		src.Insert(app+"_subsession", record.FromPairs("id", s, "session_id", 1, "round_number", s))
		if s > n {
			continue
		}
		for gi := 1; gi <= g; gi++ {
			gid++
			src.Insert(app+"_group", record.FromPairs("id", gid, "session_id", 1, "subsession_id", s, "id_in_subsession", gi, "round_number", s))
			for pi := 1; pi <= p; pi++ {
				pid++
				src.Insert(app+"_player", record.FromPairs(
					"id", pid, "session_id", 1, "subsession_id", s, "group_id", gid, "participant_id", partID,
					"id_in_group", pi, "_payoff", float64(pi), "_role", "", "round_number", s,
				))
				src.Insert(schema.ParticipantTable, record.FromPairs("id", partID, "session_id", 1, "code", "p", "payoff", 0.0))
				partID++
			}
		}
	}
	return src
}

func standardChain(app *schema.App) []Step {
	sub := app.Model(schema.Subsession)
	grp := app.Model(schema.Group)
	pl := app.Model(schema.Player)
	return []Step{
		{Model: app.Model(schema.Session)},
		{Model: sub, LeftKey: "session.id", RightKey: "subsession.session_id"},
		{Model: grp, LeftKey: "subsession.id", RightKey: "group.subsession_id"},
		{Model: pl, LeftKey: "group.id", RightKey: "player.group_id"},
	}
}

func TestLeftJoinChainCardinality(t *testing.T) {
	app := schema.NewApp("grid")
	w, err := LeftJoinChain(context.Background(), grid("grid", 3, 2, 4, 0), standardChain(app), nil)
	require.NoError(t, err)
	assert.Len(t, w.Rows, 3*2*4)
	for _, row := range w.Rows {
		assert.Len(t, row, len(w.Columns))
	}
}

func TestLeftJoinChainKeepsUnmatchedRows(t *testing.T) {
	app := schema.NewApp("grid")
	w, err := LeftJoinChain(context.Background(), grid("grid", 2, 1, 2, 1), standardChain(app), nil)
	require.NoError(t, err)
	require.Len(t, w.Rows, 2*1*2+1)

	last := w.Rows[len(w.Rows)-1]
	rounds, _ := w.Column("subsession.round_number")
	assert.Equal(t, 3, rounds[len(rounds)-1])
	for i, c := range w.Columns {
		if c == "group.id_in_subsession" || c == "player.id_in_group" || c == "player.payoff" {
			assert.Nil(t, last[i], c)
		}
	}
}

func TestLeftJoinChainDropsJoinKeys(t *testing.T) {
	app := schema.NewApp("grid")
	w, err := LeftJoinChain(context.Background(), grid("grid", 1, 1, 1, 0), standardChain(app), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"session.code", "session.label", "session.experimenter_name", "session.time_created", "session.comment", "session.is_demo",
		"subsession.round_number",
		"group.id_in_subsession",
		"player.id_in_group", "player.role", "player.payoff",
	}, w.Columns)
}

func offerModel(conf schema.Conf) *schema.StaticModel {
	return &schema.StaticModel{
		M: &schema.Model{Name: "offer", Table: "grid_offer", Fields: []schema.Field{
			{Name: "id", Type: schema.TypeInt},
			{Name: "player", Type: schema.TypeInt, References: schema.Player},
			{Name: "amount", Type: schema.TypeInt},
		}},
		Confs: map[expdata.Action]schema.Conf{expdata.ActionDataView: conf, expdata.ActionExportData: conf},
	}
}

func TestLeftJoinChainCustomModels(t *testing.T) {
	src := grid("grid", 1, 1, 2, 0)
	src.Insert("grid_offer",
		record.FromPairs("id", 1, "player_id", 1001, "amount", 3),
		record.FromPairs("id", 2, "player_id", 1001, "amount", 4),
		record.FromPairs("id", 3, "player_id", 9999, "amount", 5),
	)
	app := schema.NewApp("grid")
	require.NoError(t, app.Custom.Register(offerModel(schema.Conf{LinkWith: "player", Fields: []string{"amount"}})))
	links, err := schema.ResolveLinks(app.CustomModels(), expdata.ActionDataView)
	require.NoError(t, err)

	w, err := LeftJoinChain(context.Background(), src, standardChain(app), links)
	require.NoError(t, err)
	require.Len(t, w.Rows, 3)
	assert.Equal(t, "offer.amount", w.Columns[len(w.Columns)-1])

	amounts, _ := w.Column("offer.amount")
	assert.Equal(t, []any{3, 4, nil}, amounts)
	_, hasLink := w.Column("offer.player_id")
	assert.False(t, hasLink)

	pf, err := LeftJoinChain(context.Background(), src, standardChain(app), links, WithColumnOrder(PlayerFirst))
	require.NoError(t, err)
	assert.Equal(t, []string{"player.id_in_group", "player.role", "player.payoff", "offer.amount"}, pf.Columns[:4])
	assert.Equal(t, "session.code", pf.Columns[4])
}

func TestLeftJoinChainSubsessionCustomModel(t *testing.T) {
	src := grid("grid", 2, 1, 2, 0)
	src.Insert("grid_event",
		record.FromPairs("id", 1, "subsession_id", 1, "kind", "a"),
		record.FromPairs("id", 2, "subsession_id", 1, "kind", "b"),
	)
	app := schema.NewApp("grid")
	require.NoError(t, app.Custom.Register(&schema.StaticModel{
		M: &schema.Model{Name: "event", Table: "grid_event", Fields: []schema.Field{
			{Name: "id", Type: schema.TypeInt},
			{Name: "subsession", Type: schema.TypeInt, References: schema.Subsession},
			{Name: "kind", Type: schema.TypeString},
		}},
		Confs: map[expdata.Action]schema.Conf{expdata.ActionDataView: {LinkWith: "subsession", Fields: []string{"kind"}}},
	}))
	links, err := schema.ResolveLinks(app.CustomModels(), expdata.ActionDataView)
	require.NoError(t, err)

	w, err := LeftJoinChain(context.Background(), src, standardChain(app), links)
	require.NoError(t, err)
	require.Len(t, w.Rows, 6)

	kinds, ok := w.Column("event.kind")
	require.True(t, ok)
	assert.Equal(t, []any{"a", "a", "b", "b", nil, nil}, kinds)
	rounds, _ := w.Column("subsession.round_number")
	assert.Equal(t, []any{1, 1, 1, 1, 2, 2}, rounds)
	_, hasLink := w.Column("event.subsession_id")
	assert.False(t, hasLink)
}

func TestLeftJoinChainErrors(t *testing.T) {
	app := schema.NewApp("grid")
	_, err := LeftJoinChain(context.Background(), memory.New(), nil, nil)
	assert.ErrorIs(t, err, ErrEmptyChain)

	steps := standardChain(app)
	steps[0].LeftKey = "x.id"
	_, err = LeftJoinChain(context.Background(), memory.New(), steps, nil)
	assert.ErrorIs(t, err, ErrSeedWithKeys)

	steps = standardChain(app)
	steps[2].LeftKey = "subsession.nope"
	_, err = LeftJoinChain(context.Background(), grid("grid", 1, 1, 1, 0), steps, nil)
	assert.ErrorIs(t, err, ErrUnknownJoinKey)
}

func TestCombineColumns(t *testing.T) {
	std := []ModelColumns{
		{Model: "player", Fields: []string{"id_in_group", "payoff"}},
		{Model: "group", Fields: []string{"id_in_subsession", "total"}},
		{Model: "subsession", Fields: []string{"round_number"}},
	}
	custom := []ModelColumns{{Model: "offer", Fields: []string{"amount"}}}
	got := CombineColumns(std, custom, DroppedMonitorColumns)
	assert.Equal(t, []string{
		"player.id_in_group", "player.payoff", "offer.amount", "group.total", "subsession.round_number",
	}, got)
}

func TestDataTabRows(t *testing.T) {
	src := grid("grid", 2, 1, 2, 0)
	src.Insert("grid_offer",
		record.FromPairs("id", 1, "player_id", 1001, "amount", 3),
		record.FromPairs("id", 2, "player_id", 1001, "amount", 4),
	)
	app := schema.NewApp("grid")
	require.NoError(t, app.Custom.Register(offerModel(schema.Conf{LinkWith: "player", Fields: []string{"amount"}})))

	tab, err := DataTabRows(context.Background(), src, app, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"player.id_in_group", "player.group", "player.role", "player.payoff", "offer.amount", "subsession.round_number",
	}, tab.Columns)
	require.Len(t, tab.Rows, 5)
	assert.Equal(t, []string{"1", "1", "", "1", "3", "1"}, tab.Rows[0])
	assert.Equal(t, []string{"1", "1", "", "1", "4", "1"}, tab.Rows[1])
	assert.Equal(t, []string{"2", "1", "", "2", "", "1"}, tab.Rows[2])
	assert.Equal(t, "2", tab.Rows[4][5])
}

func TestDataTabRowsWithoutCustomModels(t *testing.T) {
	app := schema.NewApp("grid")
	tab, err := DataTabRows(context.Background(), grid("grid", 1, 1, 3, 0), app, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"player.id_in_group", "player.group", "player.role", "player.payoff", "subsession.round_number"}, tab.Columns)
	assert.Len(t, tab.Rows, 3)
}

func TestCustomExportRows(t *testing.T) {
	app := schema.NewApp("grid")
	header, rows, err := CustomExportRows(context.Background(), grid("grid", 2, 2, 2, 0), app)
	require.NoError(t, err)
	require.Len(t, rows, 8)
	assert.Equal(t, "session.code", header[0])
	assert.Contains(t, header, "player.participant_id")
	assert.Contains(t, header, "participant.code")
	assert.NotContains(t, header, "participant.id")

	payoff := -1
	for i, c := range header {
		if c == "player.payoff" {
			payoff = i
		}
	}
	require.GreaterOrEqual(t, payoff, 0)
	assert.Equal(t, int64(1), rows[0][payoff], "integer floats lose their fraction")
}

func TestParseColumnOrder(t *testing.T) {
	o, err := ParseColumnOrder("player_first")
	require.NoError(t, err)
	assert.Equal(t, PlayerFirst, o)
	_, err = ParseColumnOrder("alphabetic")
	assert.Error(t, err)
}
