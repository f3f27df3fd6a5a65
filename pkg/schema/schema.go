// Package schema describes the tables of an experiment app and resolves how
// custom data models attach to the standard session hierarchy.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/user/expdata/pkg/record"
)

var (
	ErrUnknownLinkField = errors.New("schema: link field not found on model")
	ErrUnsupportedLink  = errors.New("schema: link field does not reference subsession, group or player")
	ErrUnknownField     = errors.New("schema: unknown field")
	ErrDuplicateModel   = errors.New("schema: model already registered")
	ErrReservedName     = errors.New("schema: model name is reserved")
	ErrNameCollision    = errors.New("schema: custom model name collides with an exported field")
)

// Entity is one level of the standard hierarchy.
type Entity string

const (
	Session     Entity = "session"
	Subsession  Entity = "subsession"
	Group       Entity = "group"
	Player      Entity = "player"
	Participant Entity = "participant"
)

// Entities lists the standard entities top-down.
var Entities = []Entity{Session, Subsession, Group, Player, Participant}

// LinkTargets are the entities a custom model may attach to, top-down.
var LinkTargets = []Entity{Subsession, Group, Player}

// ParseEntity returns the entity called s.
func ParseEntity(s string) (Entity, error) {
	e := Entity(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Entities {
		if e == known {
			return e, nil
		}
	}
	return "", fmt.Errorf("schema: unknown entity %q", s)
}

// CanLink reports whether custom models may be linked to e.
func (e Entity) CanLink() bool {
	return e == Subsession || e == Group || e == Player
}

// FieldType is the storage type of a field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeBool   FieldType = "bool"
	TypeTime   FieldType = "time"
	TypeJSON   FieldType = "json"
)

// Field is one field of a model. Foreign keys set References and store the
// related id in Column, which defaults to Name+"_id".
type Field struct {
	Name       string    `json:"name" yaml:"name"`
	Column     string    `json:"column,omitempty" yaml:"column,omitempty"`
	Type       FieldType `json:"type,omitempty" yaml:"type,omitempty"`
	References Entity    `json:"references,omitempty" yaml:"references,omitempty"`
	Doc        string    `json:"doc,omitempty" yaml:"doc,omitempty"`
}

// ColumnName returns the stored column of f.
func (f Field) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	if f.References != "" {
		return f.Name + "_id"
	}
	return f.Name
}

// IsForeignKey reports whether f references a standard entity.
func (f Field) IsForeignKey() bool {
	return f.References != ""
}

// Remap declares a field that is read from a differently named column,
// e.g. a player's payoff stored as _payoff.
type Remap struct {
	Field  string `json:"field" yaml:"field"`
	Column string `json:"column" yaml:"column"`
}

// Model is the explicit schema of one table.
type Model struct {
	Name   string
	Table  string
	Entity Entity
	Fields []Field
	Remaps []Remap
	// Export lists the fields written by data exports; all fields if empty.
	Export []string
	// Monitor lists the fields shown by the live monitor; Export if empty.
	Monitor []string
}

// Field returns the field named name, matched against the field name or
// its stored column.
func (m *Model) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	for _, f := range m.Fields {
		if f.ColumnName() == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasField reports whether name is a field, a stored column or a remapped
// field of m.
func (m *Model) HasField(name string) bool {
	if _, ok := m.Field(name); ok {
		return true
	}
	for _, r := range m.Remaps {
		if r.Field == name {
			return true
		}
	}
	return false
}

// Columns returns the stored columns of m in field order.
func (m *Model) Columns() []string {
	out := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		out[i] = f.ColumnName()
	}
	return out
}

// ColumnOf returns the stored column that holds the value of field name.
func (m *Model) ColumnOf(name string) string {
	for _, r := range m.Remaps {
		if r.Field == name {
			return r.Column
		}
	}
	if f, ok := m.Field(name); ok {
		return f.ColumnName()
	}
	return name
}

// ExportFields returns the fields written by data exports.
func (m *Model) ExportFields() []string {
	if len(m.Export) > 0 {
		return append([]string(nil), m.Export...)
	}
	return m.Columns()
}

// MonitorFields returns the fields shown by the live monitor.
func (m *Model) MonitorFields() []string {
	if len(m.Monitor) > 0 {
		return append([]string(nil), m.Monitor...)
	}
	return m.ExportFields()
}

// Project builds an output record with the given fields from a stored row,
// resolving remapped fields. Fields missing from row are nil.
func (m *Model) Project(row *record.Record, fields []string) *record.Record {
	out := record.New()
	for _, name := range fields {
		out.Set(name, row.Value(m.ColumnOf(name)))
	}
	return out
}

// Validate checks that field names and columns are unique and that remaps
// and export lists refer to known fields.
func (m *Model) Validate() error {
	if m.Name == "" {
		return errors.New("schema: model without name")
	}
	names := make(map[string]bool, len(m.Fields))
	cols := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema: model %s has a field without name", m.Name)
		}
		if names[f.Name] {
			return fmt.Errorf("schema: model %s: duplicate field %q", m.Name, f.Name)
		}
		names[f.Name] = true
		c := f.ColumnName()
		if cols[c] {
			return fmt.Errorf("schema: model %s: duplicate column %q", m.Name, c)
		}
		cols[c] = true
		if f.References != "" {
			if _, err := ParseEntity(string(f.References)); err != nil {
				return fmt.Errorf("schema: model %s field %s: %w", m.Name, f.Name, err)
			}
		}
	}
	for _, list := range [][]string{m.Export, m.Monitor} {
		for _, name := range list {
			if !m.HasField(name) {
				return fmt.Errorf("%w: %s.%s", ErrUnknownField, m.Name, name)
			}
		}
	}
	return nil
}
