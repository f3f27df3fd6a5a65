package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const (
	queryInit   = `CREATE TABLE IF NOT EXISTS expdata_state (key TEXT PRIMARY KEY, value BLOB)`
	queryGet    = `SELECT value FROM expdata_state WHERE key = ?`
	querySet    = `INSERT INTO expdata_state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`
	queryDelete = `DELETE FROM expdata_state WHERE key = ?`
)

// SQLiteStore keeps values in a local SQLite file, separate from the
// experiment database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite state store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(queryInit); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create state table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var val []byte
	err := s.db.QueryRowContext(ctx, queryGet, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return val, err
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, querySet, key, value)
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, queryDelete, key)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
