// Package sqldb reads experiment tables through database/sql. It supports
// SQLite, MySQL and PostgreSQL (through the pgx stdlib driver).
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/user/expdata"
	"github.com/user/expdata/pkg/record"
	"github.com/user/expdata/pkg/sqlutil"
)

// DefaultBatchSize bounds the number of values in one IN list.
const DefaultBatchSize = 500

// Source implements expdata.DataSource on a *sql.DB.
type Source struct {
	db        *sql.DB
	driver    string
	batchSize int
	mu        sync.Mutex
	logger    expdata.Logger
}

// DriverName maps a configured source type to the database/sql driver name.
func DriverName(kind string) (string, error) {
	switch strings.ToLower(kind) {
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "mysql", "mariadb":
		return "mysql", nil
	case "postgres", "postgresql", "pgx":
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported sql source type: %s", kind)
	}
}

// Open opens and pings a database of the given kind.
func Open(ctx context.Context, kind, dsn string) (*Source, error) {
	driver, err := DriverName(kind)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" && !strings.Contains(dsn, "?") && dsn != ":memory:" {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=query_only(1)"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", kind, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", kind, err)
	}
	return New(db, driver), nil
}

// New wraps an open database. driver selects identifier quoting and
// placeholders ("sqlite", "mysql" or "pgx").
func New(db *sql.DB, driver string) *Source {
	return &Source{db: db, driver: driver, batchSize: DefaultBatchSize}
}

// SetLogger sets the logger for the source.
func (s *Source) SetLogger(logger expdata.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetBatchSize sets the maximum number of values per IN list.
func (s *Source) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

func (s *Source) log(msg string, keysAndValues ...any) {
	s.mu.Lock()
	logger := s.logger
	s.mu.Unlock()
	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// DB returns the underlying database.
func (s *Source) DB() *sql.DB {
	return s.db
}

func (s *Source) FetchRows(ctx context.Context, q expdata.Query) ([]*record.Record, error) {
	if q.Column == "" {
		query, err := sqlutil.Select(s.driver, q.Table, "", 0, q.OrderBy)
		if err != nil {
			return nil, err
		}
		return s.query(ctx, query)
	}
	if len(q.Values) == 0 {
		return nil, nil
	}

	var out []*record.Record
	chunks := 0
	for start := 0; start < len(q.Values); start += s.batchSize {
		end := start + s.batchSize
		if end > len(q.Values) {
			end = len(q.Values)
		}
		args := q.Values[start:end]
		query, err := sqlutil.Select(s.driver, q.Table, q.Column, len(args), q.OrderBy)
		if err != nil {
			return nil, err
		}
		rows, err := s.query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
		chunks++
	}
	if chunks > 1 && q.OrderBy != "" {
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

func (s *Source) query(ctx context.Context, query string, args ...any) ([]*record.Record, error) {
	s.log("Executing query", "query", query, "args", len(args))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	binary := binaryColumns(rows)

	var out []*record.Record
	for rows.Next() {
		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			// 16 byte binary values stay raw so the record stores them as UUIDs
			if b, ok := v.([]byte); ok && !(i < len(binary) && binary[i] && len(b) == 16) {
				values[i] = string(b)
			}
		}
		out = append(out, record.FromColumns(cols, values))
	}
	return out, rows.Err()
}

// binaryColumns marks the columns whose database type holds raw bytes. MySQL
// hands back text as []byte too, so the value type alone is not enough.
func binaryColumns(rows *sql.Rows) []bool {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil
	}
	out := make([]bool, len(types))
	for i, ct := range types {
		name := strings.ToUpper(ct.DatabaseTypeName())
		out[i] = strings.Contains(name, "BLOB") || strings.Contains(name, "BINARY") || name == "BYTEA"
	}
	return out
}

func (s *Source) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Source) Close() error {
	return s.db.Close()
}
