// Package config loads the expdata configuration file.
package config

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/user/expdata/pkg/filestorage"
	"github.com/user/expdata/pkg/secrets"
	"github.com/user/expdata/pkg/state"
)

// EnvPrefix prefixes the environment variables that override the file.
const EnvPrefix = "EXPDATA_"

//go:embed schema.json
var schemaJSON string

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Source    SourceConfig       `json:"source" yaml:"source"`
	Apps      []AppConfig        `json:"apps" yaml:"apps"`
	Storage   filestorage.Config `json:"storage" yaml:"storage"`
	Export    ExportConfig       `json:"export" yaml:"export"`
	Schedules []ScheduleConfig   `json:"schedules" yaml:"schedules"`
	Server    ServerConfig       `json:"server" yaml:"server"`
	Log       LogConfig          `json:"log" yaml:"log"`
	Secrets   secrets.Config     `json:"secrets" yaml:"secrets"`
	State     state.Config       `json:"state" yaml:"state"`
}

type SourceConfig struct {
	// Type is sqlite, mysql, postgres (native pool) or pgx (database/sql).
	Type string `json:"type" yaml:"type"`
	DSN  string `json:"dsn" yaml:"dsn"`
}

type VarsColumnConfig struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

type ExportConfig struct {
	Format              string             `json:"format" yaml:"format"`
	Glue                string             `json:"glue" yaml:"glue"`
	SiblingMode         string             `json:"sibling_mode" yaml:"sibling_mode"`
	ColumnOrder         string             `json:"column_order" yaml:"column_order"`
	Compression         string             `json:"compression" yaml:"compression"`
	SessionParticipants bool               `json:"session_participants" yaml:"session_participants"`
	VarsColumns         []VarsColumnConfig `json:"vars_columns" yaml:"vars_columns"`
	Timeout             time.Duration      `json:"timeout" yaml:"timeout"`
}

type ScheduleConfig struct {
	Name string `json:"name" yaml:"name"`
	Cron string `json:"cron" yaml:"cron"`
	// Kind is hierarchical (default) or custom.
	Kind   string   `json:"kind" yaml:"kind"`
	Apps   []string `json:"apps" yaml:"apps"`
	Format string   `json:"format" yaml:"format"`
}

type ServerConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	AuthToken string `json:"auth_token" yaml:"auth_token"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// SubstituteEnvVars replaces ${VAR} and ${VAR:-default} with the value of the
// environment variable.
func SubstituteEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(m string) string {
		parts := envVarRe.FindStringSubmatch(m)
		if v, ok := os.LookupEnv(parts[1]); ok && v != "" {
			return v
		}
		return parts[3]
	})
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML or JSON document, validates it and applies the
// environment overrides and defaults.
func Parse(data []byte) (*Config, error) {
	content := []byte(SubstituteEnvVars(string(data)))

	var doc any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		// Try JSON if YAML fails
		if jerr := json.Unmarshal(content, &doc); jerr != nil {
			return nil, fmt.Errorf("failed to decode config file (tried YAML and JSON): %w", err)
		}
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		if jerr := json.Unmarshal(content, &cfg); jerr != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}
	cfg.ApplyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// Validate checks a decoded document against the embedded JSON schema.
func Validate(doc any) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return fmt.Errorf("failed to parse config schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("config schema validation error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
	}
	return nil
}

// ApplyEnv applies EXPDATA_* environment overrides (highest precedence).
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvPrefix + "SOURCE_TYPE"); v != "" {
		c.Source.Type = v
	}
	if v := os.Getenv(EnvPrefix + "SOURCE_DSN"); v != "" {
		c.Source.DSN = v
	}
	if v := os.Getenv(EnvPrefix + "SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvPrefix + "AUTH_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvPrefix + "STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv(EnvPrefix + "STORAGE_DIR"); v != "" {
		c.Storage.LocalDir = v
	}
	if v := os.Getenv(EnvPrefix + "SESSION_PARTICIPANTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Export.SessionParticipants = b
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Source.Type == "" {
		c.Source.Type = "sqlite"
	}
	if c.Export.Format == "" {
		c.Export.Format = "csv"
	}
	if c.Export.Glue == "" {
		c.Export.Glue = "."
	}
	if c.Export.Timeout == 0 {
		c.Export.Timeout = 5 * time.Minute
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	for i := range c.Schedules {
		if c.Schedules[i].Format == "" {
			c.Schedules[i].Format = c.Export.Format
		}
		if c.Schedules[i].Kind == "" {
			c.Schedules[i].Kind = "hierarchical"
		}
	}
}

// App returns the configuration of the app called name.
func (c *Config) App(name string) (AppConfig, bool) {
	for _, a := range c.Apps {
		if a.Name == name {
			return a, true
		}
	}
	return AppConfig{}, false
}

// ResolveSecrets replaces "secret:" references in the credentials of the
// configuration with the values held by mgr.
func (c *Config) ResolveSecrets(ctx context.Context, mgr secrets.Manager) error {
	return secrets.ResolveAll(ctx, mgr,
		&c.Source.DSN,
		&c.Server.AuthToken,
		&c.Storage.S3.AccessKeyID,
		&c.Storage.S3.SecretAccessKey,
		&c.State.Password,
	)
}
