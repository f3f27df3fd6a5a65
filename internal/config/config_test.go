package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/expdata"
	"github.com/user/expdata/pkg/schema"
	"github.com/user/expdata/pkg/secrets"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("EXPDATA_TEST_TOKEN", "secret")
	t.Setenv("EXPDATA_SOURCE_DSN", "")

	cfg, err := LoadConfig(filepath.Join("testdata", "expdata.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Source.Type)
	assert.Equal(t, "file:otree.sqlite3", cfg.Source.DSN)
	assert.Equal(t, "secret", cfg.Server.AuthToken)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "csv", cfg.Export.Format)
	assert.Equal(t, ".", cfg.Export.Glue)
	assert.Equal(t, 5*time.Minute, cfg.Export.Timeout)
	require.Len(t, cfg.Schedules, 1)
	assert.Equal(t, "xlsx", cfg.Schedules[0].Format)
	assert.Equal(t, "hierarchical", cfg.Schedules[0].Kind)
	assert.Equal(t, "/tmp/exports", cfg.Storage.LocalDir)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EXPDATA_SOURCE_TYPE", "postgres")
	t.Setenv("EXPDATA_SOURCE_DSN", "postgres://localhost/otree")
	t.Setenv("EXPDATA_SESSION_PARTICIPANTS", "true")

	cfg, err := Parse([]byte("source: {type: sqlite, dsn: x.db}\n"))
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Source.Type)
	assert.Equal(t, "postgres://localhost/otree", cfg.Source.DSN)
	assert.True(t, cfg.Export.SessionParticipants)
}

func TestParseJSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"apps": [{"name": "pg"}], "export": {"format": "parquet"}}`))
	require.NoError(t, err)
	assert.Equal(t, "parquet", cfg.Export.Format)
	_, ok := cfg.App("pg")
	assert.True(t, ok)
}

func TestValidationErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown top level key": "sources: {}\n",
		"bad format":            "export: {format: ods}\n",
		"bad link conf":         "apps: [{name: a, custom_models: [{name: m, fields: [{name: id}], export_data: {fields: [x]}}]}]\n",
		"schedule without apps": "schedules: [{cron: '* * * * *'}]\n",
		"bad state store":       "state: {type: mongo}\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestStateConfig(t *testing.T) {
	cfg, err := Parse([]byte("state: {type: redis, address: 'localhost:6379', db: 2, ttl: 24h}\n"))
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.State.Type)
	assert.Equal(t, "localhost:6379", cfg.State.Address)
	assert.Equal(t, 2, cfg.State.DB)
	assert.Equal(t, 24*time.Hour, cfg.State.TTL)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("EXPDATA_X", "1")
	assert.Equal(t, "a=1 b=def c=", SubstituteEnvVars("a=${EXPDATA_X} b=${EXPDATA_UNSET:-def} c=${EXPDATA_UNSET}"))
}

func TestBuildApps(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata", "expdata.yaml"))
	require.NoError(t, err)
	apps, err := cfg.BuildApps()
	require.NoError(t, err)
	require.Len(t, apps, 2)

	trust := apps[0]
	assert.Equal(t, "trust_player", trust.Model(schema.Player).Table)
	assert.Contains(t, trust.Model(schema.Player).ExportFields(), "sent_amount")
	assert.Contains(t, trust.Model(schema.Group).ExportFields(), "total")

	links, err := schema.ResolveLinks(trust.CustomModels(), expdata.ActionExportData)
	require.NoError(t, err)
	require.Len(t, links.For(schema.Player), 1)
	l := links.For(schema.Player)[0]
	assert.Equal(t, "trust_offer", l.Model.Table)
	assert.Equal(t, []string{"id", "player_id", "amount"}, l.Fields)

	q := apps[1]
	assert.Equal(t, []string{"id_in_group", "role", "payoff", "age", "q_a"}, q.Model(schema.Player).ExportFields())
}

func TestBuildAppsRejectsDuplicateSurveyFields(t *testing.T) {
	cfg, err := Parse([]byte(`
apps:
  - name: q
    survey:
      - page_title: p
        survey_fields: [{name: a}, {name: a}]
`))
	require.NoError(t, err)
	_, err = cfg.BuildApps()
	assert.Error(t, err)
}

func TestResolveSecrets(t *testing.T) {
	t.Setenv("EXPDATA_TEST_DSN", "file:resolved.sqlite3")
	cfg, err := Parse([]byte(`
source: {type: sqlite, dsn: "secret:EXPDATA_TEST_DSN"}
server: {auth_token: plain}
secrets: {type: env}
`))
	require.NoError(t, err)
	assert.Equal(t, "env", cfg.Secrets.Type)

	mgr, err := secrets.NewManager(context.Background(), cfg.Secrets)
	require.NoError(t, err)
	require.NoError(t, cfg.ResolveSecrets(context.Background(), mgr))
	assert.Equal(t, "file:resolved.sqlite3", cfg.Source.DSN)
	assert.Equal(t, "plain", cfg.Server.AuthToken)

	cfg.Server.AuthToken = "secret:EXPDATA_TEST_MISSING_TOKEN"
	assert.Error(t, cfg.ResolveSecrets(context.Background(), mgr))
}
