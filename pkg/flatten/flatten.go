// Package flatten converts trees of records into columnwise tables and
// columnwise tables into rows.
//
// A tree like
//
//	[{a: 1, __b: [{x: 2}, {x: 3}]}]
//
// becomes the table {a: [1, 1], b.x: [2, 3]}: ancestor leaves are repeated for
// every row produced below them, columns missing in some subtree are filled
// with nil, and all value lists end up with the same length.
package flatten

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrKeyCollision is returned when two leaves, or a leaf and a branch,
	// produce the same column key.
	ErrKeyCollision = errors.New("flatten: column key collision")
	// ErrLengthMismatch is returned for tables whose columns differ in length.
	ErrLengthMismatch = errors.New("flatten: columns have different lengths")
)

// SiblingMode decides how two or more non-empty branches of the same node are
// combined into rows.
type SiblingMode int

const (
	// CrossJoin emits one row per combination of rows of the sibling branches.
	CrossJoin SiblingMode = iota
	// Stack emits the rows of each sibling branch one after another; the
	// columns of the other branches are nil in those rows.
	Stack
)

func (m SiblingMode) String() string {
	if m == Stack {
		return "stack"
	}
	return "cross"
}

// ParseSiblingMode maps a configuration value to a SiblingMode.
func ParseSiblingMode(s string) (SiblingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cross", "crossjoin", "cross_join":
		return CrossJoin, nil
	case "stack":
		return Stack, nil
	default:
		return CrossJoin, fmt.Errorf("flatten: unknown sibling mode %q", s)
	}
}

type options struct {
	glue string
	mode SiblingMode
}

// Option configures Flatten.
type Option func(*options)

// WithGlue sets the separator between the parts of a column key (default ".").
func WithGlue(glue string) Option {
	return func(o *options) { o.glue = glue }
}

// WithSiblingMode sets how sibling branches are combined (default CrossJoin).
func WithSiblingMode(m SiblingMode) Option {
	return func(o *options) { o.mode = m }
}

// Flatten turns a list of sibling nodes into a columnwise table. The column
// set is the union of all column keys in first-seen order and every column
// has one value per row.
func Flatten(nodes []*Node, opts ...Option) (*Table, error) {
	o := options{glue: "."}
	for _, opt := range opts {
		opt(&o)
	}
	b, err := o.list(nodes, "")
	if err != nil {
		return nil, err
	}
	t := NewTable()
	for _, c := range b.cols {
		t.Set(c, b.vals[c])
	}
	return t, t.Validate()
}

const pathSep = "\x00"

// block is a partial result with n rows. Columns absent from vals are nil in
// every row of the block. path holds the key segments a column was built
// from, so "b.x" from a leaf and "b" > "x" from a branch stay apart.
type block struct {
	cols []string
	vals map[string][]any
	path map[string]string
	n    int
}

func newBlock(n int) *block {
	return &block{vals: make(map[string][]any), path: make(map[string]string), n: n}
}

func (b *block) add(col, path string, vals []any) error {
	if _, dup := b.vals[col]; dup {
		return fmt.Errorf("%w: %q", ErrKeyCollision, col)
	}
	b.cols = append(b.cols, col)
	b.vals[col] = vals
	b.path[col] = path
	return nil
}

// stack concatenates blocks vertically over the union of their columns.
func stack(parts []*block) (*block, error) {
	total := 0
	for _, p := range parts {
		total += p.n
	}
	out := newBlock(total)
	for _, p := range parts {
		for _, c := range p.cols {
			if path, ok := out.path[c]; ok {
				if path != p.path[c] {
					return nil, fmt.Errorf("%w: %q", ErrKeyCollision, c)
				}
				continue
			}
			out.cols = append(out.cols, c)
			out.vals[c] = make([]any, 0, total)
			out.path[c] = p.path[c]
		}
	}
	for _, c := range out.cols {
		for _, p := range parts {
			if v, ok := p.vals[c]; ok {
				out.vals[c] = append(out.vals[c], v...)
			} else {
				out.vals[c] = append(out.vals[c], make([]any, p.n)...)
			}
		}
	}
	return out, nil
}

func (o *options) list(nodes []*Node, prefix string) (*block, error) {
	parts := make([]*block, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		bs, err := o.node(n, prefix)
		if err != nil {
			return nil, err
		}
		parts = append(parts, bs...)
	}
	return stack(parts)
}

// node flattens a single node. It returns one block in CrossJoin mode and one
// block per non-empty branch in Stack mode.
func (o *options) node(n *Node, prefix string) ([]*block, error) {
	seen := make(map[string]bool, len(n.entries))
	subs := make(map[string]*block)
	var branchOrder []string

	for _, e := range n.entries {
		if seen[e.key] {
			return nil, fmt.Errorf("%w: %q", ErrKeyCollision, prefix+e.key)
		}
		seen[e.key] = true
		if e.branch == nil || len(e.branch.Nodes) == 0 {
			continue
		}
		sub, err := o.list(e.branch.Nodes, prefix+e.key+o.glue)
		if err != nil {
			return nil, err
		}
		if sub.n == 0 {
			continue
		}
		subs[e.key] = sub
		branchOrder = append(branchOrder, e.key)
	}

	if o.mode == Stack && len(branchOrder) > 1 {
		out := make([]*block, 0, len(branchOrder))
		for _, name := range branchOrder {
			b, err := o.assemble(n, prefix, map[string]*block{name: subs[name]})
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		}
		return out, nil
	}

	b, err := o.assemble(n, prefix, subs)
	if err != nil {
		return nil, err
	}
	return []*block{b}, nil
}

// assemble lays out the leaves of n and the cross product of subs in the key
// order of n.
func (o *options) assemble(n *Node, prefix string, subs map[string]*block) (*block, error) {
	rows := 1
	for _, s := range subs {
		rows *= s.n
	}

	// repeat[name] is how often each row of a branch repeats consecutively;
	// the first branch varies slowest.
	repeat := make(map[string]int, len(subs))
	inner := rows
	for _, e := range n.entries {
		if s, ok := subs[e.key]; ok && e.branch != nil {
			inner /= s.n
			repeat[e.key] = inner
		}
	}

	out := newBlock(rows)
	for _, e := range n.entries {
		if e.branch == nil {
			vals := make([]any, rows)
			for i := range vals {
				vals[i] = e.value
			}
			if err := out.add(prefix+e.key, e.key, vals); err != nil {
				return nil, err
			}
			continue
		}
		s, ok := subs[e.key]
		if !ok {
			continue
		}
		for _, c := range s.cols {
			if err := out.add(c, e.key+pathSep+s.path[c], expand(s.vals[c], s.n, rows, repeat[e.key])); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// expand spreads the n values of a branch column over rows rows so that each
// value repeats rep times in a row and the whole sequence cycles.
func expand(vals []any, n, rows, rep int) []any {
	if n == rows {
		out := make([]any, n)
		copy(out, vals)
		return out
	}
	out := make([]any, 0, rows)
	for len(out) < rows {
		for i := 0; i < n; i++ {
			for r := 0; r < rep; r++ {
				out = append(out, vals[i])
			}
		}
	}
	return out
}
