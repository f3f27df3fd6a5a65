// Package export runs data exports of configured apps and stores the
// resulting files.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/expdata"
	"github.com/user/expdata/pkg/compression"
	"github.com/user/expdata/pkg/filestorage"
	"github.com/user/expdata/pkg/flatten"
	"github.com/user/expdata/pkg/hierarchy"
	"github.com/user/expdata/pkg/record"
	"github.com/user/expdata/pkg/schema"
	"github.com/user/expdata/pkg/sink"
	"github.com/user/expdata/pkg/sink/json"
	"github.com/user/expdata/pkg/tabular"
)

var (
	ErrUnknownApp      = errors.New("export: unknown app")
	ErrSessionNotFound = errors.New("export: session not found")
	ErrNoStorage       = errors.New("export: no storage configured")
)

// Kind selects how rows are produced.
type Kind string

const (
	// KindHierarchical flattens the session tree of an app.
	KindHierarchical Kind = "hierarchical"
	// KindCustom left-joins the standard models and the data view custom models.
	KindCustom Kind = "custom"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case "", KindHierarchical:
		return KindHierarchical, nil
	case KindCustom:
		return k, nil
	default:
		return "", fmt.Errorf("export: unknown kind %q", s)
	}
}

// AllAppsPrefix names files that combine every app.
const AllAppsPrefix = "all_apps_wide"

// Request describes one export.
type Request struct {
	// Apps to export; all configured apps if empty.
	Apps     []string
	Kind     Kind
	Format   expdata.Format
	Sessions []string
}

// Artifact is a stored export file.
type Artifact struct {
	RunID     string         `json:"run_id"`
	Name      string         `json:"name"`
	URL       string         `json:"url"`
	Format    expdata.Format `json:"format"`
	MimeType  string         `json:"mime_type"`
	Size      int            `json:"size"`
	Rows      int            `json:"rows"`
	CreatedAt time.Time      `json:"created_at"`
}

// Service produces exports from a data source.
type Service struct {
	src     expdata.DataSource
	apps    []*schema.App
	byName  map[string]*schema.App
	storage filestorage.Storage

	flattenOpts []flatten.Option
	builderOpts []hierarchy.Option
	tabularOpts []tabular.Option
	sinkOpts    sink.Options
	compression compression.Algorithm
	timeout     time.Duration
	now         func() time.Time

	mu     sync.Mutex
	logger expdata.Logger
}

type Option func(*Service)

func WithStorage(st filestorage.Storage) Option {
	return func(s *Service) { s.storage = st }
}

func WithLogger(l expdata.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithFlattenOptions(opts ...flatten.Option) Option {
	return func(s *Service) { s.flattenOpts = append(s.flattenOpts, opts...) }
}

func WithBuilderOptions(opts ...hierarchy.Option) Option {
	return func(s *Service) { s.builderOpts = append(s.builderOpts, opts...) }
}

func WithTabularOptions(opts ...tabular.Option) Option {
	return func(s *Service) { s.tabularOpts = append(s.tabularOpts, opts...) }
}

func WithSinkOptions(o sink.Options) Option {
	return func(s *Service) { s.sinkOpts = o }
}

// WithCompression compresses stored artifacts.
func WithCompression(a compression.Algorithm) Option {
	return func(s *Service) { s.compression = a }
}

// WithTimeout bounds a single export run.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithClock replaces time.Now, e.g. for stable file names in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service for apps in the given order.
func NewService(src expdata.DataSource, apps []*schema.App, opts ...Option) *Service {
	s := &Service{src: src, byName: make(map[string]*schema.App), now: time.Now}
	for _, a := range apps {
		s.apps = append(s.apps, a)
		s.byName[a.Name] = a
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(l expdata.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = l
}

func (s *Service) log(level, msg string, keysAndValues ...any) {
	s.mu.Lock()
	logger := s.logger
	s.mu.Unlock()
	if logger == nil {
		return
	}
	switch level {
	case "DEBUG":
		logger.Debug(msg, keysAndValues...)
	case "INFO":
		logger.Info(msg, keysAndValues...)
	case "WARN":
		logger.Warn(msg, keysAndValues...)
	case "ERROR":
		logger.Error(msg, keysAndValues...)
	}
}

// Source returns the data source of the service.
func (s *Service) Source() expdata.DataSource {
	return s.src
}

// AppNames returns the configured app names in order.
func (s *Service) AppNames() []string {
	out := make([]string, len(s.apps))
	for i, a := range s.apps {
		out[i] = a.Name
	}
	return out
}

// App returns the app called name.
func (s *Service) App(name string) (*schema.App, error) {
	a, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownApp, name)
	}
	return a, nil
}

func (s *Service) resolve(names []string) ([]*schema.App, error) {
	if len(names) == 0 {
		return s.apps, nil
	}
	out := make([]*schema.App, 0, len(names))
	for _, n := range names {
		a, err := s.App(n)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Service) builder() *hierarchy.Builder {
	b := hierarchy.NewBuilder(s.src, s.builderOpts...)
	s.mu.Lock()
	if s.logger != nil {
		b.SetLogger(s.logger)
	}
	s.mu.Unlock()
	return b
}

// Tree returns the hierarchical data of the given apps. A single app yields
// its session tree; several apps are combined by session code.
func (s *Service) Tree(ctx context.Context, apps []string, filter hierarchy.SessionFilter) ([]*flatten.Node, error) {
	resolved, err := s.resolve(apps)
	if err != nil {
		return nil, err
	}
	if len(resolved) == 1 {
		res, err := s.builder().Build(ctx, resolved[0], filter)
		if err != nil {
			return nil, err
		}
		return res.Sessions, nil
	}
	return s.builder().BuildApps(ctx, resolved, filter)
}

// Table returns the header and rows of a flat export. Several apps are only
// supported for the hierarchical kind; the rows of each app follow one
// another within a session.
func (s *Service) Table(ctx context.Context, kind Kind, apps []string, filter hierarchy.SessionFilter) ([]string, [][]any, error) {
	resolved, err := s.resolve(apps)
	if err != nil {
		return nil, nil, err
	}

	if kind == KindCustom {
		if len(resolved) != 1 {
			return nil, nil, fmt.Errorf("export: custom export needs exactly one app, got %d", len(resolved))
		}
		return tabular.CustomExportRows(ctx, s.src, resolved[0], s.tabularOpts...)
	}

	var nodes []*flatten.Node
	if len(resolved) == 1 {
		res, err := s.builder().Build(ctx, resolved[0], filter)
		if err != nil {
			return nil, nil, err
		}
		nodes = res.Sessions
	} else {
		combined, err := s.builder().BuildApps(ctx, resolved, filter)
		if err != nil {
			return nil, nil, err
		}
		nodes = hierarchy.SplitApps(combined)
	}

	tbl, err := flatten.Flatten(nodes, s.flattenOpts...)
	if err != nil {
		return nil, nil, err
	}
	return flatten.Rows(tbl)
}

// Render writes one export to w and returns the number of data rows. A JSON
// hierarchical export writes the session tree; every other combination
// writes a table.
func (s *Service) Render(ctx context.Context, req Request, w io.Writer) (int, error) {
	filter := hierarchy.SessionFilter{Codes: req.Sessions}
	if req.Format == expdata.FormatJSON && req.Kind != KindCustom {
		nodes, err := s.Tree(ctx, req.Apps, filter)
		if err != nil {
			return 0, err
		}
		jw := json.NewWriter(w)
		jw.SetIndent("  ")
		return len(nodes), jw.WriteTree(ctx, nodes)
	}

	header, rows, err := s.Table(ctx, req.Kind, req.Apps, filter)
	if err != nil {
		return 0, err
	}
	tw, err := sink.NewTableWriter(req.Format, w, s.sinkOpts)
	if err != nil {
		return 0, err
	}
	if err := tw.WriteTable(ctx, header, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// FileName returns <prefix>_<YYYY-MM-DD>.<ext>.
func FileName(prefix string, format expdata.Format, date time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, date.Format("2006-01-02"), format.Extension())
}

// Prefix is the file name prefix of an export of apps.
func Prefix(apps []string) string {
	if len(apps) == 0 {
		return AllAppsPrefix
	}
	return strings.Join(apps, "-")
}

// Bytes renders an export into memory.
func (s *Service) Bytes(ctx context.Context, req Request) ([]byte, int, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	var buf bytes.Buffer
	n, err := s.Render(ctx, req, &buf)
	if err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), n, nil
}

// Export renders the request and stores it. Table formats produce one file
// per app; a JSON hierarchical export produces one combined file.
func (s *Service) Export(ctx context.Context, req Request) ([]*Artifact, error) {
	if s.storage == nil {
		return nil, ErrNoStorage
	}
	if req.Format == "" {
		req.Format = expdata.FormatCSV
	}
	if req.Kind == "" {
		req.Kind = KindHierarchical
	}

	var batches []Request
	if req.Format == expdata.FormatJSON && req.Kind == KindHierarchical {
		batches = []Request{req}
	} else {
		apps := req.Apps
		if len(apps) == 0 {
			apps = s.AppNames()
		}
		for _, a := range apps {
			r := req
			r.Apps = []string{a}
			batches = append(batches, r)
		}
	}

	runID := uuid.NewString()
	out := make([]*Artifact, 0, len(batches))
	for _, r := range batches {
		a, err := s.exportOne(ctx, runID, r)
		if err != nil {
			return out, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Service) exportOne(ctx context.Context, runID string, req Request) (*Artifact, error) {
	start := time.Now()
	labels := []string{string(req.Kind), string(req.Format)}
	fail := func(err error) (*Artifact, error) {
		ExportsTotal.WithLabelValues(append(labels, "error")...).Inc()
		s.log("ERROR", "Export failed", "run_id", runID, "apps", req.Apps, "format", req.Format, "error", err)
		return nil, err
	}

	data, rows, err := s.Bytes(ctx, req)
	if err != nil {
		return fail(err)
	}
	data, err = compression.Compress(s.compression, data)
	if err != nil {
		return fail(fmt.Errorf("failed to compress export: %w", err))
	}

	created := s.now()
	name := FileName(Prefix(req.Apps), req.Format, created) + s.compression.Extension()
	key := runID + "/" + name
	url, err := s.storage.Save(ctx, key, bytes.NewReader(data))
	if err != nil {
		return fail(err)
	}

	ExportsTotal.WithLabelValues(append(labels, "ok")...).Inc()
	ExportDurationSeconds.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	if len(req.Apps) == 1 {
		ExportRows.WithLabelValues(req.Apps[0]).Set(float64(rows))
	}
	s.log("INFO", "Export stored", "run_id", runID, "file", name, "rows", rows, "bytes", len(data), "url", url)

	return &Artifact{
		RunID:     runID,
		Name:      name,
		URL:       url,
		Format:    req.Format,
		MimeType:  req.Format.MimeType(),
		Size:      len(data),
		Rows:      rows,
		CreatedAt: created,
	}, nil
}

// OpenArtifact opens a stored file of an earlier run.
func (s *Service) OpenArtifact(ctx context.Context, runID, name string) (io.ReadCloser, error) {
	if s.storage == nil {
		return nil, ErrNoStorage
	}
	if _, err := uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	return s.storage.Open(ctx, runID+"/"+name)
}

// SessionID returns the id of the session with the given code.
func (s *Service) SessionID(ctx context.Context, code string) (any, error) {
	rows, err := s.src.FetchRows(ctx, expdata.Query{Table: schema.SessionTable, Column: "code", Values: []any{code}})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, code)
	}
	return rows[0].Value("id"), nil
}

// SessionData returns the monitor rows of every app for the session with the
// given code. Apps without subsessions in the session yield no rows.
func (s *Service) SessionData(ctx context.Context, code string) ([]*tabular.DataTab, error) {
	id, err := s.SessionID(ctx, code)
	if err != nil {
		return nil, err
	}
	out := make([]*tabular.DataTab, 0, len(s.apps))
	for _, app := range s.apps {
		tab, err := tabular.DataTabRows(ctx, s.src, app, id, s.tabularOpts...)
		if err != nil {
			return nil, err
		}
		if len(tab.Rows) == 0 {
			continue
		}
		out = append(out, tab)
	}
	s.log("DEBUG", "Session data loaded", "session", code, "apps", len(out), "id", record.Key(id))
	return out, nil
}
