package expdata

import (
	"context"

	"github.com/user/expdata/pkg/record"
)

// Query selects rows of a single table. When Column is empty all rows of the
// table are returned; otherwise only rows whose Column value is in Values.
type Query struct {
	Table   string
	Column  string
	Values  []any
	OrderBy string
}

// DataSource is the read-only view of the experiment database the exporters
// work on. Implementations return fully materialized rows whose field order
// matches the column order of the underlying table.
type DataSource interface {
	FetchRows(ctx context.Context, q Query) ([]*record.Record, error)
	// FetchRowsByParent buckets the rows of table whose parentColumn value is
	// in parentIDs by that value. Bucket keys are normalized with record.Key.
	FetchRowsByParent(ctx context.Context, table, parentColumn string, parentIDs []any) (map[string][]*record.Record, error)
	Ping(ctx context.Context) error
	Close() error
}

// TableWriter consumes a header and row-aligned values, e.g. a CSV file.
type TableWriter interface {
	WriteTable(ctx context.Context, header []string, rows [][]any) error
	Close() error
}

// Logger defines the interface for logging in expdata.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Action selects which custom model configuration applies.
type Action string

const (
	ActionExportData Action = "export_data"
	ActionDataView   Action = "data_view"
)

// Format names an export file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// Extension returns the file extension for the format.
func (f Format) Extension() string {
	return string(f)
}

// MimeType returns the content type used when serving a file of this format.
func (f Format) MimeType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "text/csv"
	}
}
