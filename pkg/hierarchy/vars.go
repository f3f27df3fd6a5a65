package hierarchy

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/tidwall/gjson"
)

// VarsColumn extracts a value from participant vars with a JSONPath
// expression and stores it in the participant field Name.
type VarsColumn struct {
	Name string
	Path string

	expr jp.Expr
}

// ParseVarsColumn compiles path.
func ParseVarsColumn(name, path string) (VarsColumn, error) {
	x, err := jp.ParseString(path)
	if err != nil {
		return VarsColumn{}, fmt.Errorf("invalid jsonpath '%s': %w", path, err)
	}
	return VarsColumn{Name: name, Path: path, expr: x}, nil
}

// Extract returns the single match of the expression, all matches if there
// are several, or nil.
func (c VarsColumn) Extract(vars any) any {
	if c.expr == nil || vars == nil {
		return nil
	}
	res := c.expr.Get(vars)
	switch len(res) {
	case 0:
		return nil
	case 1:
		return res[0]
	default:
		return res
	}
}

// DecodeVars turns the stored participant vars into a nested value. Text
// columns holding JSON are parsed; other values are returned unchanged.
func DecodeVars(v any) any {
	var s string
	switch x := v.(type) {
	case nil:
		return map[string]any{}
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return v
	}
	if s == "" {
		return map[string]any{}
	}
	if !gjson.Valid(s) {
		return s
	}
	return gjson.Parse(s).Value()
}
