// Package memory provides an in-process DataSource backed by fixture rows.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/user/expdata"
	"github.com/user/expdata/pkg/record"
)

// Source serves rows from memory. It is safe for concurrent use.
type Source struct {
	mu     sync.RWMutex
	tables map[string][]*record.Record
	closed bool
}

// New creates an empty Source.
func New() *Source {
	return &Source{tables: make(map[string][]*record.Record)}
}

// Load reads fixtures of the form {"table": [{...}, ...], ...}.
func Load(r io.Reader) (*Source, error) {
	var raw map[string][]*record.Record
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode fixtures: %w", err)
	}
	s := New()
	for table, rows := range raw {
		s.Insert(table, rows...)
	}
	return s, nil
}

// Insert appends rows to table.
func (s *Source) Insert(table string, rows ...*record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], rows...)
}

func (s *Source) FetchRows(ctx context.Context, q expdata.Query) ([]*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("memory source is closed")
	}

	var want map[string]bool
	if q.Column != "" {
		want = make(map[string]bool, len(q.Values))
		for _, v := range q.Values {
			want[record.Key(v)] = true
		}
	}

	var out []*record.Record
	for _, r := range s.tables[q.Table] {
		if want != nil && !want[record.Key(r.Value(q.Column))] {
			continue
		}
		out = append(out, r.Clone())
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			return record.Less(out[i].Value(q.OrderBy), out[j].Value(q.OrderBy))
		})
	}
	return out, nil
}

func (s *Source) FetchRowsByParent(ctx context.Context, table, parentColumn string, parentIDs []any) (map[string][]*record.Record, error) {
	rows, err := s.FetchRows(ctx, expdata.Query{Table: table, Column: parentColumn, Values: parentIDs, OrderBy: "id"})
	if err != nil {
		return nil, err
	}
	return record.GroupBy(rows, parentColumn), nil
}

func (s *Source) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("memory source is closed")
	}
	return nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
