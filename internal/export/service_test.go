package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/expdata"
	"github.com/user/expdata/internal/config"
	"github.com/user/expdata/pkg/compression"
	"github.com/user/expdata/pkg/filestorage"
	"github.com/user/expdata/pkg/schema"
	"github.com/user/expdata/pkg/source/memory"
)

var fixedDay = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixtures(t *testing.T) *memory.Source {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", "otree.json"))
	require.NoError(t, err)
	defer f.Close()
	src, err := memory.Load(f)
	require.NoError(t, err)
	return src
}

func apps(t *testing.T) []*schema.App {
	t.Helper()
	trust := schema.NewApp("trust")
	require.NoError(t, trust.Custom.Register(&schema.StaticModel{
		M: &schema.Model{Name: "offer", Table: "trust_offer", Fields: []schema.Field{
			{Name: "id", Type: schema.TypeInt},
			{Name: "player", Type: schema.TypeInt, References: schema.Player},
			{Name: "amount", Type: schema.TypeInt},
			{Name: "note", Type: schema.TypeString},
		}},
		Confs: map[expdata.Action]schema.Conf{
			expdata.ActionExportData: {LinkWith: "player", ExcludeFields: []string{"note"}},
			expdata.ActionDataView:   {LinkWith: "player", Fields: []string{"amount"}},
		},
	}))
	return []*schema.App{trust, schema.NewApp("survey")}
}

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	st, err := filestorage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	opts = append([]Option{WithStorage(st), WithClock(func() time.Time { return fixedDay })}, opts...)
	return NewService(fixtures(t), apps(t), opts...)
}

func TestRenderCSV(t *testing.T) {
	svc := newService(t)
	var buf bytes.Buffer
	n, err := svc.Render(context.Background(), Request{Apps: []string{"trust"}, Format: expdata.FormatCSV}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	header := strings.Split(lines[0], ",")
	assert.Equal(t, "code", header[0])
	assert.Contains(t, header, "subsession.group.player.offer.amount")
	assert.Contains(t, header, "subsession.group.player.participant.code")
}

func TestRenderJSONTreeOfSeveralApps(t *testing.T) {
	svc := newService(t)
	var buf bytes.Buffer
	n, err := svc.Render(context.Background(), Request{Format: expdata.FormatJSON}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var doc []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc, 1)
	assert.Equal(t, "s1", doc[0]["code"])
	container, ok := doc[0]["__apps"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, container["__trust"], 2)
	assert.Len(t, container["__survey"], 1)
}

func TestTableOfSeveralAppsStacksApps(t *testing.T) {
	svc := newService(t)
	header, rows, err := svc.Table(context.Background(), KindHierarchical, nil, hierarchySessions())
	require.NoError(t, err)
	assert.Contains(t, header, "apps.trust.round_number")
	assert.Contains(t, header, "apps.survey.round_number")
	assert.Len(t, rows, 6, "five trust rows stacked on one survey row")
}

func TestCustomTable(t *testing.T) {
	svc := newService(t)
	header, rows, err := svc.Table(context.Background(), KindCustom, []string{"trust"}, hierarchySessions())
	require.NoError(t, err)
	assert.Contains(t, header, "participant.code")
	assert.Len(t, rows, 5)

	_, _, err = svc.Table(context.Background(), KindCustom, nil, hierarchySessions())
	assert.Error(t, err)
}

func TestExportStoresCompressedArtifacts(t *testing.T) {
	svc := newService(t, WithCompression(compression.Zstd))
	arts, err := svc.Export(context.Background(), Request{Format: expdata.FormatCSV})
	require.NoError(t, err)
	require.Len(t, arts, 2)

	a := arts[0]
	assert.Equal(t, "trust_2024-03-01.csv.zst", a.Name)
	assert.Equal(t, "text/csv", a.MimeType)
	assert.Equal(t, 5, a.Rows)
	assert.Equal(t, arts[1].RunID, a.RunID)
	assert.Equal(t, "survey_2024-03-01.csv.zst", arts[1].Name)

	raw, err := os.ReadFile(a.URL)
	require.NoError(t, err)
	plain, err := compression.Decompress(compression.Zstd, raw)
	require.NoError(t, err)
	first, err := bufio.NewReader(bytes.NewReader(plain)).ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "code,label,"))

	rc, err := svc.OpenArtifact(context.Background(), a.RunID, a.Name)
	require.NoError(t, err)
	defer rc.Close()
	stored, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, raw, stored)

	_, err = svc.OpenArtifact(context.Background(), "../etc", "passwd")
	assert.Error(t, err)
}

func TestExportJSONIsOneFile(t *testing.T) {
	svc := newService(t)
	arts, err := svc.Export(context.Background(), Request{Format: expdata.FormatJSON})
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, "all_apps_wide_2024-03-01.json", arts[0].Name)
}

func TestExportErrors(t *testing.T) {
	svc := NewService(fixtures(t), apps(t))
	_, err := svc.Export(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoStorage)

	svc = newService(t)
	_, err = svc.Export(context.Background(), Request{Apps: []string{"market"}})
	assert.ErrorIs(t, err, ErrUnknownApp)
}

func TestSessionData(t *testing.T) {
	svc := newService(t)
	tabs, err := svc.SessionData(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, tabs, 2)
	assert.Equal(t, "trust", tabs[0].App)
	assert.Len(t, tabs[0].Rows, 5)
	assert.Contains(t, tabs[0].Columns, "offer.amount")
	assert.Equal(t, "survey", tabs[1].App)

	tabs, err = svc.SessionData(context.Background(), "s2")
	require.NoError(t, err)
	assert.Empty(t, tabs)

	_, err = svc.SessionData(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.Parse([]byte("export: {sibling_mode: stack, compression: lz4, column_order: player_first}\n"))
	require.NoError(t, err)
	svc, err := FromConfig(cfg, fixtures(t), apps(t), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, compression.LZ4, svc.compression)
	assert.Equal(t, cfg.Export.Timeout, svc.timeout)

	cfg.Export.SiblingMode = "zip"
	_, err = FromConfig(cfg, fixtures(t), apps(t), nil, nil)
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindHierarchical, k)
	_, err = ParseKind("wide")
	assert.Error(t, err)
}
