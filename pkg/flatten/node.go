package flatten

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/user/expdata/pkg/record"
)

// BranchMarker prefixes branch keys in the JSON rendering of a tree.
const BranchMarker = "__"

// Node is one record of a tree together with its named child lists.
// Leaves and branches share one key order, which is the column order
// produced by Flatten.
type Node struct {
	entries []entry
}

type entry struct {
	key    string
	value  any
	branch *Branch
}

// Branch is an ordered list of child nodes under a name. A Single branch holds
// at most one child and renders as an object instead of a list.
type Branch struct {
	Name   string
	Nodes  []*Node
	Single bool
}

// NewNode returns an empty node.
func NewNode() *Node {
	return &Node{}
}

// NodeFromRecord returns a node whose leaves are the fields of r.
func NodeFromRecord(r *record.Record) *Node {
	n := &Node{entries: make([]entry, 0, r.Len())}
	r.Range(func(k string, v any) bool {
		n.entries = append(n.entries, entry{key: k, value: v})
		return true
	})
	return n
}

// SetLeaf sets a scalar field. Setting an existing leaf replaces its value in
// place; a name that is already used by a branch is appended as is and
// reported by Flatten as a collision.
func (n *Node) SetLeaf(key string, v any) *Node {
	for i := range n.entries {
		if n.entries[i].key == key && n.entries[i].branch == nil {
			n.entries[i].value = v
			return n
		}
	}
	n.entries = append(n.entries, entry{key: key, value: v})
	return n
}

// AddBranch appends a branch with the given children and returns it.
func (n *Node) AddBranch(name string, children ...*Node) *Branch {
	b := &Branch{Name: name, Nodes: children}
	n.entries = append(n.entries, entry{key: name, branch: b})
	return b
}

// SetSingle attaches a single child under name, e.g. a player's participant.
func (n *Node) SetSingle(name string, child *Node) *Branch {
	b := n.AddBranch(name)
	b.Single = true
	if child != nil {
		b.Nodes = []*Node{child}
	}
	return b
}

// Leaf returns the value of the leaf key.
func (n *Node) Leaf(key string) (any, bool) {
	for _, e := range n.entries {
		if e.key == key && e.branch == nil {
			return e.value, true
		}
	}
	return nil, false
}

// Branch returns the branch called name.
func (n *Node) Branch(name string) (*Branch, bool) {
	for _, e := range n.entries {
		if e.key == name && e.branch != nil {
			return e.branch, true
		}
	}
	return nil, false
}

// Branches returns all branches in key order.
func (n *Node) Branches() []*Branch {
	var out []*Branch
	for _, e := range n.entries {
		if e.branch != nil {
			out = append(out, e.branch)
		}
	}
	return out
}

// LeafKeys returns the leaf field names in key order.
func (n *Node) LeafKeys() []string {
	var out []string
	for _, e := range n.entries {
		if e.branch == nil {
			out = append(out, e.key)
		}
	}
	return out
}

// Record returns the leaves of n as a record.
func (n *Node) Record() *record.Record {
	r := record.New()
	for _, e := range n.entries {
		if e.branch == nil {
			r.Set(e.key, e.value)
		}
	}
	return r
}

// WithoutBranch returns a copy of n that shares all entries except the branch
// called name.
func (n *Node) WithoutBranch(name string) *Node {
	out := &Node{entries: make([]entry, 0, len(n.entries))}
	for _, e := range n.entries {
		if e.branch != nil && e.key == name {
			continue
		}
		out.entries = append(out.entries, e)
	}
	return out
}

func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range n.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key := e.key
		if e.branch != nil {
			key = BranchMarker + key
		}
		kb, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')

		var vb []byte
		switch {
		case e.branch == nil:
			vb, err = json.Marshal(e.value)
		case e.branch.Single:
			if len(e.branch.Nodes) == 0 {
				vb = []byte("null")
			} else {
				vb, err = json.Marshal(e.branch.Nodes[0])
			}
		default:
			nodes := e.branch.Nodes
			if nodes == nil {
				nodes = []*Node{}
			}
			vb, err = json.Marshal(nodes)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to encode %q: %w", e.key, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (n *Node) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("flatten: node must be a JSON object")
	}
	node, err := decodeNodeBody(dec)
	if err != nil {
		return err
	}
	*n = *node
	return nil
}

// DecodeNodes parses a JSON array of nodes.
func DecodeNodes(data []byte) ([]*Node, error) {
	var nodes []*Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("failed to decode tree: %w", err)
	}
	return nodes, nil
}

// decodeNodeBody reads the members of an object whose '{' was consumed.
func decodeNodeBody(dec *json.Decoder) (*Node, error) {
	n := NewNode()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("flatten: unexpected token %v", tok)
		}

		if !strings.HasPrefix(key, BranchMarker) {
			var v any
			if err := dec.Decode(&v); err != nil {
				return nil, err
			}
			n.entries = append(n.entries, entry{key: key, value: normalizeNumber(v)})
			continue
		}

		name := strings.TrimPrefix(key, BranchMarker)
		tok, err = dec.Token()
		if err != nil {
			return nil, err
		}
		switch tok {
		case json.Delim('['):
			b := n.AddBranch(name)
			b.Nodes = []*Node{}
			for dec.More() {
				t, err := dec.Token()
				if err != nil {
					return nil, err
				}
				if d, ok := t.(json.Delim); !ok || d != '{' {
					return nil, fmt.Errorf("flatten: branch %q must contain objects", name)
				}
				child, err := decodeNodeBody(dec)
				if err != nil {
					return nil, err
				}
				b.Nodes = append(b.Nodes, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
		case json.Delim('{'):
			child, err := decodeNodeBody(dec)
			if err != nil {
				return nil, err
			}
			n.SetSingle(name, child)
		case nil:
			n.SetSingle(name, nil)
		default:
			return nil, fmt.Errorf("flatten: branch %q must be a list or an object", name)
		}
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, err
	}
	return n, nil
}

func normalizeNumber(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, vv := range x {
			x[k] = normalizeNumber(vv)
		}
	case []any:
		for i, vv := range x {
			x[i] = normalizeNumber(vv)
		}
	}
	return v
}
