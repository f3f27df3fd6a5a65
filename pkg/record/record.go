package record

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Record is an ordered mapping from field name to a scalar value. Field order
// is the order in which fields were first set and is kept when the record is
// encoded to JSON.
type Record struct {
	fields *orderedmap.OrderedMap[string, any]
}

// New creates an empty record.
func New() *Record {
	return &Record{fields: orderedmap.New[string, any]()}
}

// FromPairs builds a record from alternating key/value arguments.
// It panics on an odd argument count or a non-string key, so it is meant for
// literals in fixtures and tests.
func FromPairs(keysAndValues ...any) *Record {
	if len(keysAndValues)%2 != 0 {
		panic("record: odd number of arguments to FromPairs")
	}
	r := New()
	for i := 0; i < len(keysAndValues); i += 2 {
		k, ok := keysAndValues[i].(string)
		if !ok {
			panic(fmt.Sprintf("record: key %v is not a string", keysAndValues[i]))
		}
		r.Set(k, keysAndValues[i+1])
	}
	return r
}

// FromColumns builds a record from parallel column and value slices.
func FromColumns(columns []string, values []any) *Record {
	r := New()
	for i, c := range columns {
		var v any
		if i < len(values) {
			v = values[i]
		}
		r.Set(c, v)
	}
	return r
}

// Set stores v under key. An existing key keeps its position.
func (r *Record) Set(key string, v any) {
	r.fields.Set(key, SanitizeValue(v))
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (any, bool) {
	return r.fields.Get(key)
}

// Value returns the value stored under key or nil.
func (r *Record) Value(key string) any {
	v, _ := r.fields.Get(key)
	return v
}

// Has reports whether key is set.
func (r *Record) Has(key string) bool {
	_, ok := r.fields.Get(key)
	return ok
}

// Delete removes key from the record.
func (r *Record) Delete(key string) {
	r.fields.Delete(key)
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil || r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

// Keys returns the field names in order.
func (r *Record) Keys() []string {
	keys := make([]string, 0, r.Len())
	if r.Len() == 0 {
		return keys
	}
	for p := r.fields.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Values returns the field values in key order.
func (r *Record) Values() []any {
	vals := make([]any, 0, r.Len())
	if r.Len() == 0 {
		return vals
	}
	for p := r.fields.Oldest(); p != nil; p = p.Next() {
		vals = append(vals, p.Value)
	}
	return vals
}

// Range calls fn for every field in order until fn returns false.
func (r *Record) Range(fn func(key string, v any) bool) {
	if r.Len() == 0 {
		return
	}
	for p := r.fields.Oldest(); p != nil; p = p.Next() {
		if !fn(p.Key, p.Value) {
			return
		}
	}
}

// Project returns a new record holding exactly the given fields in the given
// order. Fields missing from r are set to nil.
func (r *Record) Project(fields []string) *Record {
	out := New()
	for _, f := range fields {
		out.fields.Set(f, r.Value(f))
	}
	return out
}

// Clone returns a shallow copy of r.
func (r *Record) Clone() *Record {
	out := New()
	r.Range(func(k string, v any) bool {
		out.fields.Set(k, v)
		return true
	})
	return out
}

func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil || r.fields == nil {
		return []byte("null"), nil
	}
	return r.fields.MarshalJSON()
}

func (r *Record) UnmarshalJSON(data []byte) error {
	m := orderedmap.New[string, any]()
	if err := m.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	r.fields = m
	return nil
}

// String renders the record as JSON, mostly for log output.
func (r *Record) String() string {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("<record: %v>", err)
	}
	return string(b)
}

// Key normalizes an identifier value so that ids read through different
// drivers (int64, int32, float64, []byte, string) compare equal when used as
// map keys.
func Key(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int:
		return strconv.Itoa(x)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return Key(float64(x))
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) && math.Abs(x) < 1<<53 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// GroupBy buckets rows by the normalized value of column, keeping row order
// within each bucket.
func GroupBy(rows []*Record, column string) map[string][]*Record {
	out := make(map[string][]*Record)
	for _, r := range rows {
		k := Key(r.Value(column))
		out[k] = append(out[k], r)
	}
	return out
}

// IDs returns the distinct values of column in first-seen order.
func IDs(rows []*Record, column string) []any {
	seen := make(map[string]bool, len(rows))
	var out []any
	for _, r := range rows {
		v := r.Value(column)
		if v == nil {
			continue
		}
		k := Key(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

// Less orders two scalar values. Numbers compare numerically, nil sorts
// first and everything else compares by its key.
func Less(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b != nil
	}
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		return fa < fb
	}
	return Key(a) < Key(b)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, !math.IsNaN(x)
	}
	return 0, false
}
