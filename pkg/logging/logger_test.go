package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/expdata"
)

var (
	_ expdata.Logger = (*DefaultLogger)(nil)
	_ expdata.Logger = NopLogger{}
)

func TestDefaultLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "debug")
	l.Info("export finished", "app", "trust", "rows", 12, "error", errors.New("boom"), "dangling")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "export finished", entry["message"])
	assert.Equal(t, "trust", entry["app"])
	assert.Equal(t, float64(12), entry["rows"])
	assert.Equal(t, "boom", entry["error"])
	assert.Contains(t, entry, "dangling")
	assert.Contains(t, entry, "time")
}

func TestDefaultLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn")
	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestDefaultLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "").With("run", "r1")
	l.Error("failed")
	assert.Contains(t, buf.String(), `"run":"r1"`)
	assert.Contains(t, buf.String(), `"level":"error"`)
}
