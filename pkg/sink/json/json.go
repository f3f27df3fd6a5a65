// Package json writes exports as JSON documents: the hierarchical tree as an
// array of session objects, or a table in columnwise form.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/user/expdata/pkg/flatten"
)

type Mode string

const (
	// ModeColumns writes {"column": [values...], ...}.
	ModeColumns Mode = "columns"
	// ModeRecords writes [{"column": value, ...}, ...].
	ModeRecords Mode = "records"
)

type Writer struct {
	w      io.Writer
	mode   Mode
	indent string
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, mode: ModeColumns}
}

func (s *Writer) SetMode(mode Mode) {
	s.mode = mode
}

// SetIndent enables pretty printing with the given indent.
func (s *Writer) SetIndent(indent string) {
	s.indent = indent
}

func (s *Writer) encoder() *json.Encoder {
	enc := json.NewEncoder(s.w)
	enc.SetEscapeHTML(false)
	if s.indent != "" {
		enc.SetIndent("", s.indent)
	}
	return enc
}

// WriteTree writes the session nodes as a JSON array.
func (s *Writer) WriteTree(ctx context.Context, nodes []*flatten.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if nodes == nil {
		nodes = []*flatten.Node{}
	}
	if err := s.encoder().Encode(nodes); err != nil {
		return fmt.Errorf("failed to encode tree: %w", err)
	}
	return nil
}

func (s *Writer) WriteTable(ctx context.Context, header []string, rows [][]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tbl, err := flatten.FromRows(header, rows)
	if err != nil {
		return err
	}
	var v any = tbl
	if s.mode == ModeRecords {
		v = records(header, rows)
	}
	if err := s.encoder().Encode(v); err != nil {
		return fmt.Errorf("failed to encode table: %w", err)
	}
	return nil
}

type orderedRow struct {
	header []string
	values []any
}

func (r orderedRow) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, h := range r.header {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, err := json.Marshal(h)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}

func records(header []string, rows [][]any) []orderedRow {
	out := make([]orderedRow, len(rows))
	for i, r := range rows {
		out[i] = orderedRow{header: header, values: r}
	}
	return out
}

func (s *Writer) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
