package state

import (
	"context"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdStore keeps values under a key directory in etcd, so the last run of
// schedule "daily" lands at /expdata/schedule/daily. Every call is bounded by
// timeout.
type EtcdStore struct {
	client  *clientv3.Client
	prefix  string
	timeout time.Duration
}

func NewEtcdStore(endpoints []string, prefix string, timeout time.Duration) (*EtcdStore, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return &EtcdStore{client: cli, prefix: etcdPrefix(prefix), timeout: timeout}, nil
}

// etcdPrefix turns a store prefix such as "expdata:" into the etcd directory
// "/expdata/".
func etcdPrefix(prefix string) string {
	p := strings.Trim(strings.TrimRight(prefix, ":"), "/")
	if p == "" {
		p = strings.TrimRight(DefaultPrefix, ":")
	}
	return "/" + p + "/"
}

func (s *EtcdStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Get(ctx, s.prefix+key)
	if err != nil {
		return nil, err
	}
	if len(resp.Kvs) == 0 {
		return nil, nil
	}
	return resp.Kvs[0].Value, nil
}

func (s *EtcdStore) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.Put(ctx, s.prefix+key, string(value))
	return err
}

func (s *EtcdStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.Delete(ctx, s.prefix+key)
	return err
}

func (s *EtcdStore) Close() error {
	return s.client.Close()
}
