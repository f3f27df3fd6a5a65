// Package state keeps small keyed values, such as the artifacts of the last
// scheduled export runs, in memory, SQLite, Redis or etcd.
package state

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store is a key/value store. Get returns nil without error for missing
// keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	// Type is memory (default), sqlite, redis or etcd.
	Type     string        `yaml:"type" json:"type"`
	Path     string        `yaml:"path" json:"path"`
	Address  string        `yaml:"address" json:"address"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// DefaultPrefix namespaces keys in shared stores.
const DefaultPrefix = "expdata:"

func NewStore(cfg Config) (Store, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if cfg.Path == "" {
			cfg.Path = "expdata_state.db"
		}
		return NewSQLiteStore(cfg.Path)
	case "redis":
		return NewRedisStore(cfg.Address, cfg.Password, cfg.DB, cfg.Prefix, cfg.TTL), nil
	case "etcd":
		return NewEtcdStore([]string{cfg.Address}, cfg.Prefix, 5*time.Second)
	default:
		return nil, fmt.Errorf("unsupported state store type: %s", cfg.Type)
	}
}

// MemoryStore keeps values for the lifetime of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
