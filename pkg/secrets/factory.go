package secrets

import (
	"context"
	"fmt"
)

// Config selects the secret manager used for "secret:" references.
type Config struct {
	// Type is env (default), vault, aws or azure.
	Type  string      `yaml:"type" json:"type"`
	Vault VaultConfig `yaml:"vault" json:"vault"`
	AWS   AWSConfig   `yaml:"aws" json:"aws"`
	Azure AzureConfig `yaml:"azure" json:"azure"`
	Env   EnvConfig   `yaml:"env" json:"env"`
}

type VaultConfig struct {
	Address string `yaml:"address" json:"address"`
	Token   string `yaml:"token" json:"token"`
	Mount   string `yaml:"mount" json:"mount"`
}

type AWSConfig struct {
	Region string `yaml:"region" json:"region"`
}

type AzureConfig struct {
	VaultURL string `yaml:"vault_url" json:"vault_url"`
}

type EnvConfig struct {
	Prefix string `yaml:"prefix" json:"prefix"`
}

// NewManager creates a secret manager based on the provided configuration.
// Every manager falls back to the environment.
func NewManager(ctx context.Context, cfg Config) (Manager, error) {
	env := &EnvManager{Prefix: cfg.Env.Prefix}
	switch cfg.Type {
	case "", "env":
		return env, nil
	case "vault":
		m, err := NewVaultManager(cfg.Vault.Address, cfg.Vault.Token, cfg.Vault.Mount)
		if err != nil {
			return nil, err
		}
		return Chain{m, env}, nil
	case "aws":
		m, err := NewAWSSecretsManager(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
		return Chain{m, env}, nil
	case "azure":
		m, err := NewAzureKeyVaultManager(cfg.Azure.VaultURL)
		if err != nil {
			return nil, err
		}
		return Chain{m, env}, nil
	default:
		return nil, fmt.Errorf("unsupported secret manager type: %s", cfg.Type)
	}
}
