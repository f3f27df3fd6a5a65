package compression

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	data := []byte(strings.Repeat("session.code,subsession.round_number,player.payoff\ns1,1,2.5\n", 50))

	for _, algo := range []Algorithm{None, LZ4, Snappy, Zstd} {
		t.Run("algo="+string(algo), func(t *testing.T) {
			compressed, err := Compress(algo, data)
			require.NoError(t, err)
			if algo != None {
				assert.Less(t, len(compressed), len(data))
			}

			out, err := Decompress(algo, compressed)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(data, out))
		})
	}
}

func TestEmptyData(t *testing.T) {
	for _, algo := range []Algorithm{None, LZ4, Snappy, Zstd} {
		compressed, err := Compress(algo, nil)
		require.NoError(t, err)
		out, err := Decompress(algo, compressed)
		require.NoError(t, err)
		assert.Empty(t, out)
	}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, a)
	assert.Equal(t, ".zst", a.Extension())

	a, err = ParseAlgorithm("none")
	require.NoError(t, err)
	assert.Equal(t, None, a)
	assert.Equal(t, "", a.Extension())

	_, err = ParseAlgorithm("brotli")
	assert.Error(t, err)
}
