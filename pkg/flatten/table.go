package flatten

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Table is the columnwise form of a tree: an ordered mapping from column key
// to a value list. A valid table has value lists of equal length.
type Table struct {
	columns []string
	values  map[string][]any
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{values: make(map[string][]any)}
}

// Columns returns the column keys in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Column returns the values of column key.
func (t *Table) Column(key string) ([]any, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Set stores vals under key. A new key is appended to the column order.
func (t *Table) Set(key string, vals []any) {
	if _, ok := t.values[key]; !ok {
		t.columns = append(t.columns, key)
	}
	t.values[key] = vals
}

// Width returns the number of columns.
func (t *Table) Width() int {
	return len(t.columns)
}

// Len returns the number of rows, i.e. the length of the first column.
func (t *Table) Len() int {
	if len(t.columns) == 0 {
		return 0
	}
	return len(t.values[t.columns[0]])
}

// Validate returns ErrLengthMismatch if two columns differ in length.
func (t *Table) Validate() error {
	if len(t.columns) == 0 {
		return nil
	}
	n := len(t.values[t.columns[0]])
	for _, c := range t.columns[1:] {
		if len(t.values[c]) != n {
			return fmt.Errorf("%w: column %q has %d values, column %q has %d",
				ErrLengthMismatch, t.columns[0], n, c, len(t.values[c]))
		}
	}
	return nil
}

func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range t.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		vals := t.values[c]
		if vals == nil {
			vals = []any{}
		}
		vb, err := json.Marshal(vals)
		if err != nil {
			return nil, fmt.Errorf("failed to encode column %q: %w", c, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Rows zips the value lists of t positionally into rows and returns them with
// the column keys as header. Tables with ragged columns are rejected.
func Rows(t *Table) ([]string, [][]any, error) {
	if err := t.Validate(); err != nil {
		return nil, nil, err
	}
	header := t.Columns()
	n := t.Len()
	rows := make([][]any, n)
	for i := 0; i < n; i++ {
		row := make([]any, len(header))
		for j, c := range header {
			row[j] = t.values[c][i]
		}
		rows[i] = row
	}
	return header, rows, nil
}

// FromRows re-zips rows into a table using header as column keys.
func FromRows(header []string, rows [][]any) (*Table, error) {
	t := NewTable()
	cols := make([][]any, len(header))
	for i := range cols {
		cols[i] = make([]any, 0, len(rows))
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("%w: row %d has %d values for %d columns", ErrLengthMismatch, i, len(row), len(header))
		}
		for j, v := range row {
			cols[j] = append(cols[j], v)
		}
	}
	for i, c := range header {
		if _, dup := t.values[c]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrKeyCollision, c)
		}
		t.Set(c, cols[i])
	}
	return t, nil
}
