// Package xlsx writes export tables as Excel workbooks.
package xlsx

import (
	"context"
	"fmt"
	"io"
	"time"

	xlsx "github.com/tealeg/xlsx"

	"github.com/user/expdata/pkg/record"
)

// DefaultSheet is used when no sheet name is given.
const DefaultSheet = "data"

// Writer implements expdata.TableWriter. The workbook is built in memory
// and written out by WriteTable.
type Writer struct {
	w     io.Writer
	sheet string
}

func NewWriter(w io.Writer, sheet string) *Writer {
	if sheet == "" {
		sheet = DefaultSheet
	}
	// sheet names are limited to 31 characters
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	return &Writer{w: w, sheet: sheet}
}

func (s *Writer) WriteTable(ctx context.Context, header []string, rows [][]any) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(s.sheet)
	if err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", s.sheet, err)
	}

	hr := sheet.AddRow()
	for _, h := range header {
		hr.AddCell().SetString(h)
	}
	for i, row := range rows {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if len(row) != len(header) {
			return fmt.Errorf("row %d has %d values, header has %d", i, len(row), len(header))
		}
		r := sheet.AddRow()
		for _, v := range row {
			setCell(r.AddCell(), v)
		}
	}

	if err := file.Write(s.w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

func setCell(c *xlsx.Cell, v any) {
	switch x := v.(type) {
	case time.Time:
		c.SetDateTime(x)
		return
	}
	switch x := record.SanitizeForCSV(v).(type) {
	case string:
		c.SetString(x)
	case int:
		c.SetInt(x)
	case int64:
		c.SetInt64(x)
	case float64:
		c.SetFloat(x)
	default:
		c.SetString(fmt.Sprint(x))
	}
}

func (s *Writer) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
