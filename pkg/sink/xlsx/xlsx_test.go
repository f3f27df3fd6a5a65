package xlsx

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xlsx "github.com/tealeg/xlsx"
)

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "trust")
	err := w.WriteTable(context.Background(),
		[]string{"session.code", "player.payoff", "player.role"},
		[][]any{
			{"s1", 2.5, "trustor"},
			{"s1", 4.0, nil},
		})
	require.NoError(t, err)

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "trust", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "session.code", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "2.5", sheet.Rows[1].Cells[1].Value)
	assert.Equal(t, "4", sheet.Rows[2].Cells[1].Value)
	assert.Equal(t, "", sheet.Rows[2].Cells[2].Value)
}

func TestSheetNameIsTruncated(t *testing.T) {
	w := NewWriter(&bytes.Buffer{}, "an_app_with_a_really_long_name_here")
	assert.Len(t, w.sheet, 31)
}
