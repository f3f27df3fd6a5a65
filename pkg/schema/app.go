package schema

import (
	"fmt"
	"strings"
)

// Tables shared by all apps.
const (
	SessionTable     = "otree_session"
	ParticipantTable = "otree_participant"
)

// App is the schema of one experiment app: the five standard models and the
// registry of its custom models.
type App struct {
	Name   string
	Custom *Registry

	models map[Entity]*Model
}

// NewApp returns an app with the default standard models. Per-round tables
// are named <app>_subsession, <app>_group and <app>_player.
func NewApp(name string) *App {
	a := &App{Name: name, Custom: NewRegistry(), models: make(map[Entity]*Model)}
	for _, m := range StandardModels(name) {
		a.models[m.Entity] = m
	}
	return a
}

// Model returns the standard model for e.
func (a *App) Model(e Entity) *Model {
	return a.models[e]
}

// SetModel replaces the standard model for m.Entity.
func (a *App) SetModel(m *Model) error {
	if _, err := ParseEntity(string(m.Entity)); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	a.models[m.Entity] = m
	return nil
}

// Extend appends app-defined fields to a standard model. The new fields are
// exported and, where the model has its own monitor list, monitored.
func (a *App) Extend(e Entity, fields ...Field) error {
	m := a.models[e]
	if m == nil {
		return fmt.Errorf("schema: unknown entity %q", e)
	}
	for _, f := range fields {
		if m.HasField(f.Name) {
			return fmt.Errorf("schema: %s.%s already defined", m.Name, f.Name)
		}
		m.Fields = append(m.Fields, f)
		if len(m.Export) > 0 {
			m.Export = append(m.Export, f.Name)
		}
		if len(m.Monitor) > 0 {
			m.Monitor = append(m.Monitor, f.Name)
		}
	}
	return m.Validate()
}

// CustomModels returns the custom models of the app in declaration order.
func (a *App) CustomModels() []CustomModel {
	return a.Custom.Models()
}

// StandardModels returns the default session, subsession, group, player and
// participant models for app.
func StandardModels(app string) []*Model {
	prefix := strings.ToLower(app) + "_"
	return []*Model{
		{
			Name: "session", Table: SessionTable, Entity: Session,
			Fields: []Field{
				{Name: "id", Type: TypeInt},
				{Name: "code", Type: TypeString},
				{Name: "label", Type: TypeString},
				{Name: "experimenter_name", Type: TypeString},
				{Name: "time_created", Type: TypeTime},
				{Name: "comment", Type: TypeString},
				{Name: "is_demo", Type: TypeBool},
			},
			Export: []string{"code", "label", "experimenter_name", "time_created", "comment", "is_demo"},
		},
		{
			Name: "subsession", Table: prefix + "subsession", Entity: Subsession,
			Fields: []Field{
				{Name: "id", Type: TypeInt},
				{Name: "session", Type: TypeInt, References: Session},
				{Name: "round_number", Type: TypeInt},
			},
			Export: []string{"round_number"},
		},
		{
			Name: "group", Table: prefix + "group", Entity: Group,
			Fields: []Field{
				{Name: "id", Type: TypeInt},
				{Name: "session", Type: TypeInt, References: Session},
				{Name: "subsession", Type: TypeInt, References: Subsession},
				{Name: "id_in_subsession", Type: TypeInt},
				{Name: "round_number", Type: TypeInt},
			},
			Export: []string{"id_in_subsession"},
		},
		{
			Name: "player", Table: prefix + "player", Entity: Player,
			Fields: []Field{
				{Name: "id", Type: TypeInt},
				{Name: "session", Type: TypeInt, References: Session},
				{Name: "subsession", Type: TypeInt, References: Subsession},
				{Name: "group", Type: TypeInt, References: Group},
				{Name: "participant", Type: TypeInt, References: Participant},
				{Name: "id_in_group", Type: TypeInt},
				{Name: "_payoff", Type: TypeFloat},
				{Name: "_role", Type: TypeString},
				{Name: "round_number", Type: TypeInt},
			},
			Remaps: []Remap{
				{Field: "payoff", Column: "_payoff"},
				{Field: "role", Column: "_role"},
			},
			Export:  []string{"id_in_group", "role", "payoff"},
			Monitor: []string{"id_in_group", "group", "role", "payoff"},
		},
		{
			Name: "participant", Table: ParticipantTable, Entity: Participant,
			Fields: []Field{
				{Name: "id", Type: TypeInt},
				{Name: "session", Type: TypeInt, References: Session},
				{Name: "id_in_session", Type: TypeInt},
				{Name: "code", Type: TypeString},
				{Name: "label", Type: TypeString},
				{Name: "_is_bot", Type: TypeBool},
				{Name: "_index_in_pages", Type: TypeInt},
				{Name: "_max_page_index", Type: TypeInt},
				{Name: "_current_app_name", Type: TypeString},
				{Name: "_current_page_name", Type: TypeString},
				{Name: "time_started", Type: TypeTime},
				{Name: "visited", Type: TypeBool},
				{Name: "payoff", Type: TypeFloat},
				{Name: "vars", Type: TypeJSON},
			},
			Export: []string{
				"id_in_session", "code", "label", "_is_bot", "_index_in_pages", "_max_page_index",
				"_current_app_name", "_current_page_name", "time_started", "visited", "payoff",
			},
		},
	}
}
