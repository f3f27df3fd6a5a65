// Package postgres reads experiment tables from PostgreSQL through a pgx
// connection pool.
package postgres

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/expdata"
	"github.com/user/expdata/pkg/record"
	"github.com/user/expdata/pkg/sqlutil"
)

const driver = "pgx"

// Source implements expdata.DataSource on a pgxpool.Pool. The pool is
// created on first use.
type Source struct {
	connString string
	batchSize  int

	mu     sync.Mutex
	pool   *pgxpool.Pool
	logger expdata.Logger
}

func NewSource(connString string) *Source {
	return &Source{connString: connString, batchSize: 500}
}

func (s *Source) SetLogger(logger expdata.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

func (s *Source) log(level, msg string, keysAndValues ...any) {
	s.mu.Lock()
	logger := s.logger
	s.mu.Unlock()
	if logger == nil {
		return
	}
	switch level {
	case "DEBUG":
		logger.Debug(msg, keysAndValues...)
	case "WARN":
		logger.Warn(msg, keysAndValues...)
	case "ERROR":
		logger.Error(msg, keysAndValues...)
	default:
		logger.Info(msg, keysAndValues...)
	}
}

func (s *Source) init(ctx context.Context) (*pgxpool.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		return s.pool, nil
	}
	pool, err := pgxpool.New(ctx, s.connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	s.pool = pool
	return pool, nil
}

func (s *Source) FetchRows(ctx context.Context, q expdata.Query) ([]*record.Record, error) {
	if q.Column != "" && len(q.Values) == 0 {
		return nil, nil
	}
	pool, err := s.init(ctx)
	if err != nil {
		return nil, err
	}
	if q.Column == "" {
		query, err := sqlutil.Select(driver, q.Table, "", 0, q.OrderBy)
		if err != nil {
			return nil, err
		}
		return s.query(ctx, pool, query)
	}

	var out []*record.Record
	for start := 0; start < len(q.Values); start += s.batchSize {
		end := min(start+s.batchSize, len(q.Values))
		query, err := sqlutil.Select(driver, q.Table, q.Column, end-start, q.OrderBy)
		if err != nil {
			return nil, err
		}
		rows, err := s.query(ctx, pool, query, q.Values[start:end]...)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	if len(q.Values) > s.batchSize && q.OrderBy != "" {
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

// plainValue renders byte slices as strings, except 16 byte bytea values which
// the record turns into UUIDs.
func plainValue(oid uint32, v any) any {
	b, ok := v.([]byte)
	if !ok || (oid == pgtype.ByteaOID && len(b) == 16) {
		return v
	}
	return string(b)
}

func (s *Source) query(ctx context.Context, pool *pgxpool.Pool, query string, args ...any) ([]*record.Record, error) {
	s.log("DEBUG", "Executing query", "query", query, "args", len(args))
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	var out []*record.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		for i, v := range values {
			values[i] = plainValue(fields[i].DataTypeOID, v)
		}
		out = append(out, record.FromColumns(cols, values))
	}
	if err := rows.Err(); err != nil {
		s.log("ERROR", "Row iteration failed", "error", err)
		return nil, err
	}
	return out, nil
}

func (s *Source) Ping(ctx context.Context) error {
	pool, err := s.init(ctx)
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}
