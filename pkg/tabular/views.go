package tabular

import (
	"context"
	"fmt"

	"github.com/user/expdata"
	"github.com/user/expdata/pkg/record"
	"github.com/user/expdata/pkg/schema"
)

// DroppedMonitorColumns are left out of the monitor header. The group number
// is shown as player.group instead.
var DroppedMonitorColumns = []string{"group.id_in_subsession"}

// ModelColumns is a list of models with their fields.
type ModelColumns struct {
	Model  string
	Fields []string
}

// FlattenColumns returns model.field for every field of every model.
func FlattenColumns(cols []ModelColumns) []string {
	var out []string
	for _, mc := range cols {
		for _, f := range mc.Fields {
			out = append(out, mc.Model+"."+f)
		}
	}
	return out
}

// CombineColumns builds the monitor header: player columns, then custom
// model columns, then the other standard models, without drop.
func CombineColumns(std []ModelColumns, custom []ModelColumns, drop []string) []string {
	var player, others []ModelColumns
	for _, mc := range std {
		if mc.Model == string(schema.Player) {
			player = append(player, mc)
		} else {
			others = append(others, mc)
		}
	}
	all := FlattenColumns(player)
	all = append(all, FlattenColumns(custom)...)
	all = append(all, FlattenColumns(others)...)

	skip := make(map[string]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	out := all[:0]
	for _, c := range all {
		if !skip[c] {
			out = append(out, c)
		}
	}
	return out
}

func customColumns(links *schema.Links) []ModelColumns {
	var out []ModelColumns
	for _, l := range links.All() {
		out = append(out, ModelColumns{Model: l.Name(), Fields: l.Fields})
	}
	return out
}

// DataTab holds the live monitor rows of one app of a session.
type DataTab struct {
	App     string     `json:"app"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// DataTabRows returns the monitor rows of app for the session with the given
// id, one block of rows per subsession. Custom models configured for the
// data view are joined in; without any the standard fields are shown.
func DataTabRows(ctx context.Context, src expdata.DataSource, app *schema.App, sessionID any, opts ...Option) (*DataTab, error) {
	links, err := schema.ResolveLinks(app.CustomModels(), expdata.ActionDataView)
	if err != nil {
		return nil, fmt.Errorf("app %s: %w", app.Name, err)
	}

	subM := app.Model(schema.Subsession)
	grpM := app.Model(schema.Group)
	plM := app.Model(schema.Player)

	std := []ModelColumns{
		{Model: plM.Name, Fields: plM.MonitorFields()},
		{Model: grpM.Name, Fields: grpM.MonitorFields()},
		{Model: subM.Name, Fields: subM.MonitorFields()},
	}
	header := CombineColumns(std, customColumns(links), DroppedMonitorColumns)

	subs, err := src.FetchRows(ctx, expdata.Query{
		Table:   subM.Table,
		Column:  subM.ColumnOf("session"),
		Values:  []any{sessionID},
		OrderBy: "id",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", subM.Table, err)
	}

	tab := &DataTab{App: app.Name, Columns: header}
	for _, sub := range subs {
		subID := sub.Value("id")
		steps := []Step{
			{Model: subM, Query: expdata.Query{Column: "id", Values: []any{subID}}, Fields: subM.MonitorFields()},
			{
				Model:    grpM,
				Query:    expdata.Query{Column: grpM.ColumnOf("subsession"), Values: []any{subID}, OrderBy: "id"},
				LeftKey:  "subsession.id",
				RightKey: "group." + grpM.ColumnOf("subsession"),
				Fields:   grpM.MonitorFields(),
			},
			{
				Model:    plM,
				Query:    expdata.Query{Column: plM.ColumnOf("subsession"), Values: []any{subID}, OrderBy: "id"},
				LeftKey:  "group.id",
				RightKey: "player." + plM.ColumnOf("group"),
				Fields:   plM.MonitorFields(),
			},
		}
		w, err := LeftJoinChain(ctx, src, steps, links, opts...)
		if err != nil {
			return nil, fmt.Errorf("app %s: %w", app.Name, err)
		}
		w.Rename("group.id_in_subsession", "player.group")
		w = w.Project(header)
		for _, row := range w.Rows {
			out := make([]string, len(row))
			for i, v := range row {
				out[i] = record.SanitizeForLive(v)
			}
			tab.Rows = append(tab.Rows, out)
		}
	}
	return tab, nil
}

// CustomExportRows joins session, subsession, group, player and participant
// of every session with data for app and returns the header and the rows
// sanitized for CSV.
func CustomExportRows(ctx context.Context, src expdata.DataSource, app *schema.App, opts ...Option) ([]string, [][]any, error) {
	links, err := schema.ResolveLinks(app.CustomModels(), expdata.ActionDataView)
	if err != nil {
		return nil, nil, fmt.Errorf("app %s: %w", app.Name, err)
	}

	sessM := app.Model(schema.Session)
	subM := app.Model(schema.Subsession)
	grpM := app.Model(schema.Group)
	plM := app.Model(schema.Player)
	partM := app.Model(schema.Participant)

	allSubs, err := src.FetchRows(ctx, expdata.Query{Table: subM.Table})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch %s: %w", subM.Table, err)
	}
	sessIDs := record.IDs(allSubs, subM.ColumnOf("session"))

	allPlayers, err := src.FetchRows(ctx, expdata.Query{Table: plM.Table, Column: plM.ColumnOf("session"), Values: sessIDs})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch %s: %w", plM.Table, err)
	}
	partLink := plM.ColumnOf("participant")
	partIDs := record.IDs(allPlayers, partLink)

	playerFields := plM.ExportFields()
	if !contains(playerFields, partLink) {
		playerFields = append(playerFields, partLink)
	}

	inSessions := func(m *schema.Model) expdata.Query {
		return expdata.Query{Column: m.ColumnOf("session"), Values: sessIDs, OrderBy: "id"}
	}
	steps := []Step{
		{Model: sessM, Query: expdata.Query{Column: "id", Values: sessIDs, OrderBy: "id"}},
		{Model: subM, Query: inSessions(subM), LeftKey: "session.id", RightKey: "subsession." + subM.ColumnOf("session")},
		{Model: grpM, Query: inSessions(grpM), LeftKey: "subsession.id", RightKey: "group." + grpM.ColumnOf("subsession")},
		{Model: plM, Query: inSessions(plM), LeftKey: "group.id", RightKey: "player." + plM.ColumnOf("group"), Fields: playerFields},
		{Model: partM, Query: expdata.Query{Column: "id", Values: partIDs, OrderBy: "id"}, LeftKey: "player." + partLink, RightKey: "participant.id"},
	}

	w, err := LeftJoinChain(ctx, src, steps, links, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("app %s: %w", app.Name, err)
	}
	w.Map(record.SanitizeForCSV)
	return w.Columns, w.Rows, nil
}
