// Package tabular builds wide tables by left-joining the standard entities of
// an app and their linked custom models.
package tabular

import (
	"fmt"

	"github.com/user/expdata/pkg/record"
)

// Wide is a table with named columns and row-aligned values.
type Wide struct {
	Columns []string
	Rows    [][]any
}

// Index returns the position of col or -1.
func (w *Wide) Index(col string) int {
	for i, c := range w.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Column returns the values of col.
func (w *Wide) Column(col string) ([]any, bool) {
	i := w.Index(col)
	if i < 0 {
		return nil, false
	}
	out := make([]any, len(w.Rows))
	for r, row := range w.Rows {
		out[r] = row[i]
	}
	return out, true
}

// Rename changes the name of column from to to. Unknown columns are ignored.
func (w *Wide) Rename(from, to string) {
	if i := w.Index(from); i >= 0 {
		w.Columns[i] = to
	}
}

// Drop removes the named columns.
func (w *Wide) Drop(cols ...string) {
	drop := make(map[string]bool, len(cols))
	for _, c := range cols {
		drop[c] = true
	}
	keep := make([]int, 0, len(w.Columns))
	names := make([]string, 0, len(w.Columns))
	for i, c := range w.Columns {
		if !drop[c] {
			keep = append(keep, i)
			names = append(names, c)
		}
	}
	if len(keep) == len(w.Columns) {
		return
	}
	for r, row := range w.Rows {
		out := make([]any, len(keep))
		for j, i := range keep {
			out[j] = row[i]
		}
		w.Rows[r] = out
	}
	w.Columns = names
}

// Project returns a table with exactly cols in that order. Columns missing
// from w are nil.
func (w *Wide) Project(cols []string) *Wide {
	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i] = w.Index(c)
	}
	out := &Wide{Columns: append([]string(nil), cols...), Rows: make([][]any, len(w.Rows))}
	for r, row := range w.Rows {
		nr := make([]any, len(cols))
		for j, i := range idx {
			if i >= 0 {
				nr[j] = row[i]
			}
		}
		out.Rows[r] = nr
	}
	return out
}

// Map applies fn to every value.
func (w *Wide) Map(fn func(any) any) {
	for _, row := range w.Rows {
		for i, v := range row {
			row[i] = fn(v)
		}
	}
}

// Records returns the rows as ordered records.
func (w *Wide) Records() []*record.Record {
	out := make([]*record.Record, len(w.Rows))
	for i, row := range w.Rows {
		out[i] = record.FromColumns(w.Columns, row)
	}
	return out
}

// leftJoin joins right onto w: every row of w is kept, matched with each
// right row whose rightKey equals its leftKey, or padded with nil.
func (w *Wide) leftJoin(right *Wide, leftKey, rightKey string) error {
	li := w.Index(leftKey)
	if li < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownJoinKey, leftKey)
	}
	ri := right.Index(rightKey)
	if ri < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownJoinKey, rightKey)
	}
	for _, c := range right.Columns {
		if w.Index(c) >= 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateColumn, c)
		}
	}

	idx := make(map[string][][]any, len(right.Rows))
	for _, row := range right.Rows {
		if row[ri] == nil {
			continue
		}
		k := record.Key(row[ri])
		idx[k] = append(idx[k], row)
	}

	width := len(w.Columns) + len(right.Columns)
	rows := make([][]any, 0, len(w.Rows))
	for _, row := range w.Rows {
		var matches [][]any
		if row[li] != nil {
			matches = idx[record.Key(row[li])]
		}
		if len(matches) == 0 {
			out := make([]any, width)
			copy(out, row)
			rows = append(rows, out)
			continue
		}
		for _, m := range matches {
			out := make([]any, 0, width)
			out = append(out, row...)
			out = append(out, m...)
			rows = append(rows, out)
		}
	}
	w.Columns = append(w.Columns, right.Columns...)
	w.Rows = rows
	return nil
}
