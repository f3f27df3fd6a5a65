// Package secrets resolves "secret:" references in configuration values
// through an external secret manager.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// RefPrefix marks a configuration value that names a secret.
const RefPrefix = "secret:"

var ErrNotFound = errors.New("secret not found")

// Manager defines the interface for external secret managers.
type Manager interface {
	Get(ctx context.Context, key string) (string, error)
}

// EnvManager resolves secrets from environment variables, trying Prefix+key
// before key.
type EnvManager struct {
	Prefix string
}

func (m *EnvManager) Get(ctx context.Context, key string) (string, error) {
	if v := os.Getenv(m.Prefix + key); v != "" {
		return v, nil
	}
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Chain tries multiple secret managers in order.
type Chain []Manager

func (c Chain) Get(ctx context.Context, key string) (string, error) {
	errs := make([]error, 0, len(c))
	for _, mgr := range c {
		val, err := mgr.Get(ctx, key)
		if err == nil && val != "" {
			return val, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return "", errors.Join(errs...)
}

// Resolve returns value unchanged unless it starts with RefPrefix, in which
// case the referenced secret is looked up. An unresolvable reference is an
// error.
func Resolve(ctx context.Context, mgr Manager, value string) (string, error) {
	key, ok := strings.CutPrefix(value, RefPrefix)
	if !ok {
		return value, nil
	}
	if mgr == nil {
		return "", fmt.Errorf("cannot resolve %s: no secret manager configured", value)
	}
	val, err := mgr.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", value, err)
	}
	if val == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return val, nil
}

// ResolveAll resolves every referenced value in place.
func ResolveAll(ctx context.Context, mgr Manager, values ...*string) error {
	for _, v := range values {
		if v == nil {
			continue
		}
		resolved, err := Resolve(ctx, mgr, *v)
		if err != nil {
			return err
		}
		*v = resolved
	}
	return nil
}
