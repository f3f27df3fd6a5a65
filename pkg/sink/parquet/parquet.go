// Package parquet writes export tables as Parquet files. The schema is
// inferred from the column values.
package parquet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/user/expdata/pkg/record"
)

// Writer implements expdata.TableWriter.
type Writer struct {
	w            io.Writer
	parallelizer int64
	compression  parquet.CompressionCodec
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, parallelizer: 4, compression: parquet.CompressionCodec_SNAPPY}
}

// SetCompression selects the page codec by name (snappy, gzip, zstd, lz4,
// uncompressed).
func (s *Writer) SetCompression(name string) error {
	codec, err := parquet.CompressionCodecFromString(strings.ToUpper(name))
	if err != nil {
		return fmt.Errorf("unsupported parquet compression %q: %w", name, err)
	}
	s.compression = codec
	return nil
}

// ColumnName maps a dotted column key to a parquet field name. Dots are path
// separators in parquet.
func ColumnName(key string) string {
	return strings.ReplaceAll(key, ".", "__")
}

type kind int

const (
	kindNull kind = iota
	kindInt
	kindFloat
	kindBool
	kindString
)

func kindOf(v any) kind {
	switch v.(type) {
	case nil:
		return kindNull
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return kindInt
	case float32, float64:
		if record.IsNull(v) {
			return kindNull
		}
		return kindFloat
	case bool:
		return kindBool
	default:
		return kindString
	}
}

func merge(a, b kind) kind {
	switch {
	case a == b || b == kindNull:
		return a
	case a == kindNull:
		return b
	case (a == kindInt && b == kindFloat) || (a == kindFloat && b == kindInt):
		return kindFloat
	default:
		return kindString
	}
}

func inferKinds(width int, rows [][]any) []kind {
	kinds := make([]kind, width)
	for _, row := range rows {
		for i, v := range row {
			kinds[i] = merge(kinds[i], kindOf(v))
		}
	}
	return kinds
}

type field struct {
	Tag string `json:"Tag"`
}

type schemaDef struct {
	Tag    string  `json:"Tag"`
	Fields []field `json:"Fields"`
}

// Schema returns the JSON schema used by the parquet writer.
func Schema(header []string, rows [][]any) (string, error) {
	kinds := inferKinds(len(header), rows)
	def := schemaDef{Tag: "name=parquet_go_root, repetitiontype=REQUIRED"}
	for i, h := range header {
		var typ string
		switch kinds[i] {
		case kindInt:
			typ = "type=INT64"
		case kindFloat:
			typ = "type=DOUBLE"
		case kindBool:
			typ = "type=BOOLEAN"
		default:
			typ = "type=BYTE_ARRAY, convertedtype=UTF8"
		}
		def.Fields = append(def.Fields, field{Tag: fmt.Sprintf("name=%s, %s, repetitiontype=OPTIONAL", ColumnName(h), typ)})
	}
	b, err := json.Marshal(def)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func cell(k kind, v any) any {
	if record.IsNull(v) {
		return nil
	}
	switch k {
	case kindInt, kindFloat, kindBool:
		return v
	}
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(record.SanitizeForCSV(v))
}

func (s *Writer) WriteTable(ctx context.Context, header []string, rows [][]any) error {
	for i, row := range rows {
		if len(row) != len(header) {
			return fmt.Errorf("row %d has %d values, header has %d", i, len(row), len(header))
		}
	}
	schema, err := Schema(header, rows)
	if err != nil {
		return fmt.Errorf("failed to build parquet schema: %w", err)
	}
	kinds := inferKinds(len(header), rows)
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = ColumnName(h)
	}

	tmpFile, err := os.CreateTemp("", "expdata-*.parquet")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpFileName := tmpFile.Name()
	defer os.Remove(tmpFileName)
	tmpFile.Close()

	fw, err := local.NewLocalFileWriter(tmpFileName)
	if err != nil {
		return fmt.Errorf("failed to create local file writer: %w", err)
	}
	pw, err := writer.NewJSONWriter(schema, fw, s.parallelizer)
	if err != nil {
		fw.Close()
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = s.compression

	for i, row := range rows {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				pw.WriteStop()
				fw.Close()
				return err
			}
		}
		obj := make(map[string]any, len(row))
		for j, v := range row {
			obj[names[j]] = cell(kinds[j], v)
		}
		data, err := json.Marshal(obj)
		if err != nil {
			pw.WriteStop()
			fw.Close()
			return fmt.Errorf("failed to marshal row %d: %w", i, err)
		}
		if err := pw.Write(string(data)); err != nil {
			pw.WriteStop()
			fw.Close()
			return fmt.Errorf("failed to write row %d to parquet: %w", i, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("failed to stop parquet writer: %w", err)
	}
	fw.Close()

	f, err := os.Open(tmpFileName)
	if err != nil {
		return fmt.Errorf("failed to open temp file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(s.w, f); err != nil {
		return fmt.Errorf("failed to copy parquet file: %w", err)
	}
	return nil
}

func (s *Writer) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
