// Package sink selects a table writer for an export format.
package sink

import (
	"fmt"
	"io"

	"github.com/user/expdata"
	"github.com/user/expdata/pkg/sink/csv"
	"github.com/user/expdata/pkg/sink/json"
	"github.com/user/expdata/pkg/sink/parquet"
	"github.com/user/expdata/pkg/sink/xlsx"
)

// Options tune the writers. Zero values select the defaults.
type Options struct {
	Delimiter          rune
	Sheet              string
	ParquetCompression string
}

// ParseFormat validates a format name.
func ParseFormat(s string) (expdata.Format, error) {
	switch f := expdata.Format(s); f {
	case expdata.FormatCSV, expdata.FormatXLSX, expdata.FormatJSON, expdata.FormatParquet:
		return f, nil
	case "":
		return expdata.FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// NewTableWriter returns a writer for format emitting to w.
func NewTableWriter(format expdata.Format, w io.Writer, opts Options) (expdata.TableWriter, error) {
	switch format {
	case expdata.FormatCSV, "":
		return csv.NewWriter(w, opts.Delimiter), nil
	case expdata.FormatXLSX:
		return xlsx.NewWriter(w, opts.Sheet), nil
	case expdata.FormatJSON:
		return json.NewWriter(w), nil
	case expdata.FormatParquet:
		pw := parquet.NewWriter(w)
		if opts.ParquetCompression != "" {
			if err := pw.SetCompression(opts.ParquetCompression); err != nil {
				return nil, err
			}
		}
		return pw, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}
