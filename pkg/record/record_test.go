package record

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordKeepsInsertionOrder(t *testing.T) {
	r := New()
	r.Set("z", 1)
	r.Set("a", 2)
	r.Set("m", 3)
	r.Set("a", 4) // overwrite keeps position

	assert.Equal(t, []string{"z", "a", "m"}, r.Keys())
	assert.Equal(t, []any{1, 4, 3}, r.Values())

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"z":1,"a":4,"m":3}`, string(b))
	assert.Equal(t, `{"z":1,"a":4,"m":3}`, string(b))
}

func TestRecordProject(t *testing.T) {
	r := FromPairs("id", 1, "code", "abc", "extra", true)

	p := r.Project([]string{"code", "missing", "id"})
	assert.Equal(t, []string{"code", "missing", "id"}, p.Keys())
	assert.Equal(t, []any{"abc", nil, 1}, p.Values())
	// the source record is untouched
	assert.Equal(t, 3, r.Len())
}

func TestRecordUnmarshalKeepsOrder(t *testing.T) {
	var r Record
	require.NoError(t, json.Unmarshal([]byte(`{"b":1,"a":"x","c":null}`), &r))
	assert.Equal(t, []string{"b", "a", "c"}, r.Keys())
}

func TestRecordSetSanitizesUUID(t *testing.T) {
	id := uuid.New()
	r := New()
	r.Set("uuid", id)
	r.Set("raw", id[:])
	assert.Equal(t, id.String(), r.Value("uuid"))
	assert.Equal(t, id.String(), r.Value("raw"))
}

func TestKeyNormalizesNumericIDs(t *testing.T) {
	assert.Equal(t, "7", Key(int64(7)))
	assert.Equal(t, "7", Key(7))
	assert.Equal(t, "7", Key(float64(7)))
	assert.Equal(t, "7", Key([]byte("7")))
	assert.Equal(t, "7.5", Key(7.5))
	assert.Equal(t, "", Key(nil))
}

func TestSanitizeForCSV(t *testing.T) {
	ts := time.Date(2021, 2, 3, 4, 5, 6, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, ""},
		{"nan", math.NaN(), ""},
		{"true", true, 1},
		{"false", false, 0},
		{"integer float", 3.0, int64(3)},
		{"fraction", 2.5, 2.5},
		{"newlines", "a\nb\rc", "a b c"},
		{"time", ts, "2021-02-03T04:05:06Z"},
		{"int", int64(4), int64(4)},
		{"map", map[string]any{"k": 1}, `{"k":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeForCSV(tt.in))
		})
	}
}

func TestSanitizeForLive(t *testing.T) {
	assert.Equal(t, "", SanitizeForLive(nil))
	assert.Equal(t, "12", SanitizeForLive(12.0))
	assert.Equal(t, "0.25", SanitizeForLive(0.25))
	assert.Equal(t, "1", SanitizeForLive(true))
	assert.Equal(t, "x", SanitizeForLive("x"))
}
