package schema

import (
	"fmt"

	"github.com/user/expdata"
)

// Link attaches one custom model to a standard entity.
type Link struct {
	Model  *Model
	Target Entity
	// Column is the stored column of the link field, e.g. "player_id".
	Column string
	// Fields are the exported columns of the custom model.
	Fields []string
}

// Name returns the branch and column prefix of the linked model.
func (l Link) Name() string {
	return l.Model.Name
}

// Links groups the custom models configured for an action by the entity they
// attach to. Within an entity the declaration order is kept.
type Links struct {
	byTarget map[Entity][]Link
	all      []Link
}

// For returns the links attached to e.
func (l *Links) For(e Entity) []Link {
	if l == nil {
		return nil
	}
	return l.byTarget[e]
}

// All returns every link in declaration order.
func (l *Links) All() []Link {
	if l == nil {
		return nil
	}
	return l.all
}

// Empty reports whether no custom model is linked.
func (l *Links) Empty() bool {
	return l == nil || len(l.all) == 0
}

// Columns returns the exported columns per custom model name.
func (l *Links) Columns() map[string][]string {
	out := make(map[string][]string, len(l.All()))
	for _, link := range l.All() {
		out[link.Name()] = append([]string(nil), link.Fields...)
	}
	return out
}

// ResolveLinks resolves the link field of every custom model configured for
// action. Models without a configuration for action are skipped.
func ResolveLinks(models []CustomModel, action expdata.Action) (*Links, error) {
	links := &Links{byTarget: make(map[Entity][]Link)}
	for _, cm := range models {
		conf, ok := cm.ExportConf(action)
		if !ok {
			continue
		}
		m := cm.Model()

		f, ok := m.Field(conf.LinkWith)
		if !ok || conf.LinkWith == "" {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownLinkField, m.Name, conf.LinkWith)
		}
		if !f.IsForeignKey() || !f.References.CanLink() {
			return nil, fmt.Errorf("%w: %s.%s references %q", ErrUnsupportedLink, m.Name, f.Name, f.References)
		}

		fields, err := ExportFields(m, conf)
		if err != nil {
			return nil, err
		}

		link := Link{Model: m, Target: f.References, Column: f.ColumnName(), Fields: fields}
		links.byTarget[f.References] = append(links.byTarget[f.References], link)
		links.all = append(links.all, link)
	}
	return links, nil
}

// CheckNames fails when a linked model is named like a field exported by the
// entity it attaches to. In a tree the model becomes a branch of that entity,
// so both would claim the same key.
func (l *Links) CheckNames(app *App) error {
	for _, link := range l.All() {
		m := app.Model(link.Target)
		if m == nil {
			continue
		}
		leaves := m.ExportFields()
		if link.Target == Player {
			leaves = append(leaves, m.ColumnOf(string(Participant)))
		}
		for _, f := range leaves {
			if f == link.Name() {
				return fmt.Errorf("%w: %s on %s", ErrNameCollision, link.Name(), m.Name)
			}
		}
	}
	return nil
}

// ExportFields returns the stored columns of m exported under conf: the
// allow-list (all columns if empty) minus the exclude-list. Names may be
// given as field names or as columns.
func ExportFields(m *Model, conf Conf) ([]string, error) {
	var fields []string
	if len(conf.Fields) > 0 {
		for _, name := range conf.Fields {
			f, ok := m.Field(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, m.Name, name)
			}
			fields = append(fields, f.ColumnName())
		}
	} else {
		fields = m.Columns()
	}

	exclude := make(map[string]bool, len(conf.ExcludeFields))
	for _, name := range conf.ExcludeFields {
		if f, ok := m.Field(name); ok {
			exclude[f.ColumnName()] = true
		} else {
			exclude[name] = true
		}
	}

	out := fields[:0:0]
	for _, c := range fields {
		if !exclude[c] {
			out = append(out, c)
		}
	}
	return out, nil
}
