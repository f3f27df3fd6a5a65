package record

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SanitizeValue converts driver specific types (UUIDs, pointers) into plain
// values before they are stored in a record.
func SanitizeValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
		v = rv.Interface()
	}

	if u, ok := v.(uuid.UUID); ok {
		return u.String()
	}

	// 16 byte binary columns are UUIDs in every backend we read from
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Len() == 16 && rv.Type().Elem().Kind() == reflect.Uint8 {
		var b [16]byte
		for i := 0; i < 16; i++ {
			b[i] = uint8(rv.Index(i).Uint())
		}
		if u, err := uuid.FromBytes(b[:]); err == nil {
			return u.String()
		}
	}

	return v
}

// IsNull reports whether v is nil or a NaN float.
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

// SanitizeForCSV turns a value into something a CSV or spreadsheet cell can
// hold. Nulls and NaN become "", booleans 1/0, integer-valued floats lose
// their fractional part, line breaks in strings become spaces, times are
// rendered as RFC 3339 and nested values as JSON.
func SanitizeForCSV(v any) any {
	v = SanitizeValue(v)
	if IsNull(v) {
		return ""
	}
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		return strings.NewReplacer("\n", " ", "\r", " ").Replace(x)
	case []byte:
		return string(x)
	case float32:
		return trimFloat(float64(x))
	case float64:
		return trimFloat(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return x
	case map[string]any, []any, *Record:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	}
	return v
}

// SanitizeForLive renders a value as a string for the live data monitor.
func SanitizeForLive(v any) string {
	s := SanitizeForCSV(v)
	switch x := s.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// SanitizeRow applies SanitizeForCSV to every value of row in place.
func SanitizeRow(row []any) []any {
	for i, v := range row {
		row[i] = SanitizeForCSV(v)
	}
	return row
}

func trimFloat(f float64) any {
	if math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}
