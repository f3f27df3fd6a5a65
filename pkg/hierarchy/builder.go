// Package hierarchy assembles the session → subsession → group → player →
// participant tree of an app, with linked custom models, from a DataSource.
package hierarchy

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/expdata"
	"github.com/user/expdata/pkg/flatten"
	"github.com/user/expdata/pkg/record"
	"github.com/user/expdata/pkg/schema"
)

// ErrMissingRelated is returned when a row references a row that the data
// source does not return, e.g. a player without its participant.
var ErrMissingRelated = errors.New("hierarchy: related row not found")

// Branch names used in the tree.
const (
	BranchSubsession  = "subsession"
	BranchGroup       = "group"
	BranchPlayer      = "player"
	BranchParticipant = "participant"
	BranchApps        = "apps"
)

// SessionFilter restricts a build to sessions with the given codes. An empty
// filter selects every session that has data for the app.
type SessionFilter struct {
	Codes []string
}

// Result is the tree of one app together with its flat column list.
type Result struct {
	Sessions []*flatten.Node
	// Columns lists entity.field for every entity in discovery order.
	Columns []string
}

// Builder builds hierarchical exports.
type Builder struct {
	src    expdata.DataSource
	logger expdata.Logger
	vars   []VarsColumn

	sessionParticipants bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(l expdata.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithVarsColumns extracts values from participant vars into extra
// participant fields.
func WithVarsColumns(cols ...VarsColumn) Option {
	return func(b *Builder) { b.vars = append(b.vars, cols...) }
}

// WithSessionParticipants adds a participant branch to every session node.
func WithSessionParticipants(on bool) Option {
	return func(b *Builder) { b.sessionParticipants = on }
}

// NewBuilder returns a Builder reading from src.
func NewBuilder(src expdata.DataSource, opts ...Option) *Builder {
	b := &Builder{src: src}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetLogger sets the logger for the builder.
func (b *Builder) SetLogger(l expdata.Logger) {
	b.logger = l
}

func (b *Builder) log(level, msg string, keysAndValues ...any) {
	if b.logger == nil {
		return
	}
	switch level {
	case "DEBUG":
		b.logger.Debug(msg, keysAndValues...)
	case "INFO":
		b.logger.Info(msg, keysAndValues...)
	case "WARN":
		b.logger.Warn(msg, keysAndValues...)
	case "ERROR":
		b.logger.Error(msg, keysAndValues...)
	}
}

// prefetched holds every row needed to assemble the tree, bucketed by parent.
type prefetched struct {
	sessions     []*record.Record
	subsessions  map[string][]*record.Record // by session id
	groups       map[string][]*record.Record // by subsession id
	players      map[string][]*record.Record // by group id
	participants map[string]*record.Record   // by id
	partsBySess  map[string][]*record.Record // by session id
	custom       map[string]map[string][]*record.Record
}

// Build assembles the tree of app for the sessions selected by filter.
func (b *Builder) Build(ctx context.Context, app *schema.App, filter SessionFilter) (*Result, error) {
	links, err := schema.ResolveLinks(app.CustomModels(), expdata.ActionExportData)
	if err != nil {
		return nil, fmt.Errorf("app %s: %w", app.Name, err)
	}
	if err := links.CheckNames(app); err != nil {
		return nil, fmt.Errorf("app %s: %w", app.Name, err)
	}

	data, err := b.prefetch(ctx, app, links, filter)
	if err != nil {
		return nil, fmt.Errorf("app %s: %w", app.Name, err)
	}

	asm := &assembler{app: app, links: links, data: data, vars: b.vars, cols: newColumnBook()}
	out := make([]*flatten.Node, 0, len(data.sessions))
	for _, sess := range data.sessions {
		n, err := asm.session(sess, b.sessionParticipants)
		if err != nil {
			return nil, fmt.Errorf("app %s: %w", app.Name, err)
		}
		out = append(out, n)
	}

	b.log("DEBUG", "Built hierarchical data", "app", app.Name, "sessions", len(out), "custom_models", len(links.All()))
	return &Result{Sessions: out, Columns: asm.cols.flat()}, nil
}

func (b *Builder) prefetch(ctx context.Context, app *schema.App, links *schema.Links, filter SessionFilter) (*prefetched, error) {
	sessM := app.Model(schema.Session)
	subM := app.Model(schema.Subsession)
	grpM := app.Model(schema.Group)
	plM := app.Model(schema.Player)
	partM := app.Model(schema.Participant)

	// sessions that have data for this app
	allSubs, err := b.src.FetchRows(ctx, expdata.Query{Table: subM.Table})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", subM.Table, err)
	}
	sessIDs := record.IDs(allSubs, subM.ColumnOf("session"))

	q := expdata.Query{Table: sessM.Table, Column: "id", Values: sessIDs, OrderBy: "id"}
	sessions, err := b.src.FetchRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sessions: %w", err)
	}
	if len(filter.Codes) > 0 {
		sessions = filterByCode(sessions, filter.Codes)
	}
	sessIDs = record.IDs(sessions, "id")

	d := &prefetched{sessions: sessions, custom: make(map[string]map[string][]*record.Record)}
	if len(sessIDs) == 0 {
		return d, nil
	}

	if d.subsessions, err = b.src.FetchRowsByParent(ctx, subM.Table, subM.ColumnOf("session"), sessIDs); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", subM.Table, err)
	}
	subIDs := bucketIDs(d.subsessions)

	if d.groups, err = b.src.FetchRowsByParent(ctx, grpM.Table, grpM.ColumnOf("subsession"), subIDs); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", grpM.Table, err)
	}
	grpIDs := bucketIDs(d.groups)

	if d.players, err = b.src.FetchRowsByParent(ctx, plM.Table, plM.ColumnOf("group"), grpIDs); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", plM.Table, err)
	}
	playerIDs := bucketIDs(d.players)

	var partIDs []any
	seen := make(map[string]bool)
	for _, id := range grpIDs {
		for _, p := range d.players[record.Key(id)] {
			v := p.Value(plM.ColumnOf("participant"))
			if v != nil && !seen[record.Key(v)] {
				seen[record.Key(v)] = true
				partIDs = append(partIDs, v)
			}
		}
	}
	parts, err := b.src.FetchRows(ctx, expdata.Query{Table: partM.Table, Column: "id", Values: partIDs, OrderBy: "id"})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch participants: %w", err)
	}
	d.participants = make(map[string]*record.Record, len(parts))
	for _, p := range parts {
		d.participants[record.Key(p.Value("id"))] = p
	}
	d.partsBySess = record.GroupBy(parts, partM.ColumnOf("session"))

	idsFor := map[schema.Entity][]any{
		schema.Subsession: subIDs,
		schema.Group:      grpIDs,
		schema.Player:     playerIDs,
	}
	for _, l := range links.All() {
		rows, err := b.src.FetchRowsByParent(ctx, l.Model.Table, l.Column, idsFor[l.Target])
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", l.Model.Table, err)
		}
		d.custom[l.Name()] = rows
	}
	return d, nil
}

func filterByCode(sessions []*record.Record, codes []string) []*record.Record {
	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}
	out := sessions[:0:0]
	for _, s := range sessions {
		if want[record.Key(s.Value("code"))] {
			out = append(out, s)
		}
	}
	return out
}

// bucketIDs collects the ids of all bucketed rows. Buckets come from a map,
// so the result is only used as a filter.
func bucketIDs(buckets map[string][]*record.Record) []any {
	var ids []any
	for _, rows := range buckets {
		ids = append(ids, record.IDs(rows, "id")...)
	}
	return ids
}
