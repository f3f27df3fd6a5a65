package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/expdata/internal/config"
	"github.com/user/expdata/pkg/logging"
)

func fixtureDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "otree.sqlite3")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE otree_session (id INTEGER PRIMARY KEY, code TEXT, label TEXT, experimenter_name TEXT,
			time_created TEXT, comment TEXT, is_demo BOOLEAN)`,
		`CREATE TABLE otree_participant (id INTEGER PRIMARY KEY, session_id INTEGER, id_in_session INTEGER, code TEXT,
			label TEXT, _is_bot BOOLEAN, _index_in_pages INTEGER, _max_page_index INTEGER, _current_app_name TEXT,
			_current_page_name TEXT, time_started TEXT, visited BOOLEAN, payoff REAL, vars TEXT)`,
		`CREATE TABLE pg_subsession (id INTEGER PRIMARY KEY, session_id INTEGER, round_number INTEGER)`,
		`CREATE TABLE pg_group (id INTEGER PRIMARY KEY, session_id INTEGER, subsession_id INTEGER, id_in_subsession INTEGER, round_number INTEGER)`,
		`CREATE TABLE pg_player (id INTEGER PRIMARY KEY, session_id INTEGER, subsession_id INTEGER, group_id INTEGER,
			participant_id INTEGER, id_in_group INTEGER, _payoff REAL, _role TEXT, round_number INTEGER, contribution INTEGER)`,

		`INSERT INTO otree_session VALUES (1, 's1', 'lab', '', NULL, '', 0)`,
		`INSERT INTO otree_participant VALUES
			(1, 1, 1, 'p1', NULL, 0, 2, 2, 'pg', 'End', NULL, 1, 5.0, '{}'),
			(2, 1, 2, 'p2', NULL, 0, 2, 2, 'pg', 'End', NULL, 1, 7.5, '{}')`,
		`INSERT INTO pg_subsession VALUES (1, 1, 1)`,
		`INSERT INTO pg_group VALUES (1, 1, 1, 1, 1)`,
		`INSERT INTO pg_player VALUES (1, 1, 1, 1, 1, 1, 5.0, '', 1, 10), (2, 1, 1, 1, 2, 2, 7.5, '', 1, 3)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
	return path
}

func writeConfig(t *testing.T, dbPath, exportsDir string) string {
	t.Helper()
	body := fmt.Sprintf(`
source:
  type: sqlite
  dsn: %s
apps:
  - name: pg
    fields:
      player:
        - {name: contribution, type: int}
storage:
  type: local
  local_dir: %s
log:
  level: error
`, dbPath, exportsDir)
	path := filepath.Join(t.TempDir(), "expdata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	exportApps, exportFormat, exportKind, exportSessions, exportOut = nil, "", "hierarchical", nil, ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExportToStdout(t *testing.T) {
	cfg := writeConfig(t, fixtureDB(t), t.TempDir())
	out, err := run(t, "--config", cfg, "export", "--app", "pg", "--format", "csv", "-o", "-")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "code,label,"))
	assert.Contains(t, lines[0], "subsession.group.player.contribution")
	assert.True(t, strings.HasPrefix(lines[1], "s1,lab,"))
}

func TestExportToStorage(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, fixtureDB(t), dir)
	out, err := run(t, "--config", cfg, "export", "--kind", "custom", "--app", "pg", "--format", "xlsx")
	require.NoError(t, err)
	assert.Contains(t, out, "pg_")
	assert.Contains(t, out, ".xlsx\t2 rows\t")

	matches, err := filepath.Glob(filepath.Join(dir, "*", "pg_*.xlsx"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestExportErrors(t *testing.T) {
	cfg := writeConfig(t, fixtureDB(t), t.TempDir())
	_, err := run(t, "--config", cfg, "export", "--app", "market", "-o", "-")
	assert.Error(t, err)
	_, err = run(t, "--config", cfg, "export", "--format", "ods", "-o", "-")
	assert.Error(t, err)
	_, err = run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "export")
	assert.Error(t, err)
}

func TestOpenSourceRejectsUnknownType(t *testing.T) {
	_, err := openSource(context.Background(), config.SourceConfig{Type: "oracle"}, logging.NopLogger{})
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "expdata dev\n", out)
}
