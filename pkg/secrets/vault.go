package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/vault/api"
)

// VaultManager reads fields of KV v2 secrets from HashiCorp Vault.
type VaultManager struct {
	client *api.Client
	mount  string
}

func NewVaultManager(address, token, mount string) (*VaultManager, error) {
	cfg := api.DefaultConfig()
	if address != "" {
		cfg.Address = address
	}
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}
	if mount == "" {
		mount = "secret"
	}
	return &VaultManager{client: client, mount: mount}, nil
}

// splitKey splits "path/to/secret:field"; the field defaults to "value".
func splitKey(key string) (path, field string) {
	path, field, ok := strings.Cut(key, ":")
	if !ok || field == "" {
		field = "value"
	}
	return path, field
}

func (m *VaultManager) Get(ctx context.Context, key string) (string, error) {
	path, field := splitKey(key)
	secret, err := m.client.KVv2(m.mount).Get(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	val, ok := secret.Data[field]
	if !ok {
		return "", fmt.Errorf("field %s not found in secret %s", field, path)
	}
	return fmt.Sprint(val), nil
}
