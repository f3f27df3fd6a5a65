package tabular

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/user/expdata"
	"github.com/user/expdata/pkg/record"
	"github.com/user/expdata/pkg/schema"
)

var (
	ErrEmptyChain      = errors.New("tabular: no join steps")
	ErrUnknownJoinKey  = errors.New("tabular: join key not in table")
	ErrDuplicateColumn = errors.New("tabular: duplicate column")
	ErrSeedWithKeys    = errors.New("tabular: first step must not have join keys")
)

// ColumnOrder selects the column order of a wide table.
type ColumnOrder int

const (
	// TraversalOrder keeps columns in the order the join chain produced them.
	TraversalOrder ColumnOrder = iota
	// PlayerFirst puts player columns first, then custom models, then the
	// remaining entities in traversal order.
	PlayerFirst
)

func (o ColumnOrder) String() string {
	if o == PlayerFirst {
		return "player_first"
	}
	return "traversal"
}

// ParseColumnOrder maps a configuration value to a ColumnOrder.
func ParseColumnOrder(s string) (ColumnOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "traversal", "first_seen":
		return TraversalOrder, nil
	case "player_first", "player":
		return PlayerFirst, nil
	default:
		return TraversalOrder, fmt.Errorf("tabular: unknown column order %q", s)
	}
}

// Step is one standard entity of a join chain.
type Step struct {
	Model *schema.Model
	// Query selects the rows of the step. An empty Table means Model.Table.
	Query expdata.Query
	// LeftKey is a column of the accumulated table, RightKey a column of this
	// step, both prefixed with their entity name. Both are empty for the
	// first step.
	LeftKey  string
	RightKey string
	// Fields are the output fields; Model.ExportFields() if nil.
	Fields []string
}

type options struct {
	order  ColumnOrder
	logger expdata.Logger
}

// Option configures LeftJoinChain.
type Option func(*options)

// WithColumnOrder sets the column order of the result.
func WithColumnOrder(o ColumnOrder) Option {
	return func(opts *options) { opts.order = o }
}

// WithLogger sets a logger for the chain.
func WithLogger(l expdata.Logger) Option {
	return func(opts *options) { opts.logger = l }
}

// LeftJoinChain loads every step and left-joins it onto the table built so
// far; custom models linked to a step's entity are joined right after it.
// Columns are prefixed with the model name. Key columns added only to perform
// a join are dropped from the result.
func LeftJoinChain(ctx context.Context, src expdata.DataSource, steps []Step, links *schema.Links, opts ...Option) (*Wide, error) {
	if len(steps) == 0 {
		return nil, ErrEmptyChain
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		base      *Wide
		joinOnly  []string
		playerCol []string
		customCol []string
	)

	for i, step := range steps {
		m := step.Model
		if i == 0 && (step.LeftKey != "" || step.RightKey != "") {
			return nil, ErrSeedWithKeys
		}

		fields := step.Fields
		if fields == nil {
			fields = m.ExportFields()
		}
		if m.Entity == schema.Player {
			fields = without(fields, "group")
		}
		cols := append([]string(nil), fields...)
		if !contains(cols, "id") {
			cols = append(cols, "id")
			joinOnly = append(joinOnly, m.Name+".id")
		}
		if step.RightKey != "" {
			rk := step.RightKey[strings.LastIndex(step.RightKey, ".")+1:]
			if !contains(cols, rk) {
				cols = append(cols, rk)
				joinOnly = append(joinOnly, step.RightKey)
			}
		}

		q := step.Query
		if q.Table == "" {
			q.Table = m.Table
		}
		rows, err := src.FetchRows(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", q.Table, err)
		}
		right := load(m, rows, cols, m.Name)

		if base == nil {
			base = right
		} else if err := base.leftJoin(right, step.LeftKey, step.RightKey); err != nil {
			return nil, fmt.Errorf("joining %s: %w", m.Name, err)
		}
		if m.Entity == schema.Player {
			playerCol = append(playerCol, right.Columns...)
		}

		if !m.Entity.CanLink() {
			continue
		}
		ids := record.IDs(rows, "id")
		for _, l := range links.For(m.Entity) {
			ccols := append([]string(nil), l.Fields...)
			linkCol := l.Name() + "." + l.Column
			if !contains(ccols, l.Column) {
				ccols = append(ccols, l.Column)
				joinOnly = append(joinOnly, linkCol)
			}
			crow, err := src.FetchRows(ctx, expdata.Query{Table: l.Model.Table, Column: l.Column, Values: ids, OrderBy: "id"})
			if err != nil {
				return nil, fmt.Errorf("failed to fetch %s: %w", l.Model.Table, err)
			}
			custom := load(l.Model, crow, ccols, l.Name())
			if err := base.leftJoin(custom, m.Name+".id", linkCol); err != nil {
				return nil, fmt.Errorf("joining %s: %w", l.Name(), err)
			}
			customCol = append(customCol, custom.Columns...)
		}
	}

	base.Drop(joinOnly...)
	if o.logger != nil {
		o.logger.Debug("Built wide table", "steps", len(steps), "rows", len(base.Rows), "columns", len(base.Columns))
	}

	if o.order == PlayerFirst {
		return base.Project(playerFirst(base.Columns, playerCol, customCol)), nil
	}
	return base, nil
}

// load projects stored rows onto cols and prefixes the columns.
func load(m *schema.Model, rows []*record.Record, cols []string, prefix string) *Wide {
	w := &Wide{Columns: make([]string, len(cols)), Rows: make([][]any, 0, len(rows))}
	for i, c := range cols {
		w.Columns[i] = prefix + "." + c
	}
	for _, r := range rows {
		w.Rows = append(w.Rows, m.Project(r, cols).Values())
	}
	return w
}

func playerFirst(all, player, custom []string) []string {
	present := make(map[string]bool, len(all))
	for _, c := range all {
		present[c] = true
	}
	out := make([]string, 0, len(all))
	used := make(map[string]bool, len(all))
	for _, group := range [][]string{player, custom, all} {
		for _, c := range group {
			if present[c] && !used[c] {
				used[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func without(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
