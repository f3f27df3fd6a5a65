// Package csv writes export tables as comma separated values.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/user/expdata/pkg/record"
)

// Writer implements expdata.TableWriter on top of encoding/csv.
type Writer struct {
	w         *csv.Writer
	closer    io.Closer
	delimiter rune
}

// NewWriter returns a Writer emitting to w. If w is an io.Closer it is closed
// by Close.
func NewWriter(w io.Writer, delimiter rune) *Writer {
	if delimiter == 0 {
		delimiter = ','
	}
	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	out := &Writer{w: cw, delimiter: delimiter}
	if c, ok := w.(io.Closer); ok {
		out.closer = c
	}
	return out
}

func (s *Writer) WriteTable(ctx context.Context, header []string, rows [][]any) error {
	if err := s.w.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	rec := make([]string, len(header))
	for i, row := range rows {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if len(row) != len(header) {
			return fmt.Errorf("row %d has %d values, header has %d", i, len(row), len(header))
		}
		for j, v := range row {
			rec[j] = fmt.Sprint(record.SanitizeForCSV(v))
		}
		if err := s.w.Write(rec); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *Writer) Close() error {
	s.w.Flush()
	if s.closer != nil {
		return s.closer.Close()
	}
	return s.w.Error()
}
