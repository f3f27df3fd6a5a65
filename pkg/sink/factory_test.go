package sink

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/expdata"
)

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("xlsx")
	require.NoError(t, err)
	assert.Equal(t, expdata.FormatXLSX, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, expdata.FormatCSV, f)

	_, err = ParseFormat("ods")
	assert.Error(t, err)
}

func TestNewTableWriter(t *testing.T) {
	for _, f := range []expdata.Format{expdata.FormatCSV, expdata.FormatXLSX, expdata.FormatJSON, expdata.FormatParquet} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewTableWriter(f, &buf, Options{})
			require.NoError(t, err)
			require.NoError(t, w.WriteTable(context.Background(), []string{"a", "b.c"}, [][]any{{1, "x"}, {2, nil}}))
			assert.NotZero(t, buf.Len())
		})
	}

	_, err := NewTableWriter(expdata.FormatParquet, &bytes.Buffer{}, Options{ParquetCompression: "nope"})
	assert.Error(t, err)
}
