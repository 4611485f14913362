// Package gen implements Gen, a small nested key-value text format used to
// describe and parameterize assets, and the in-memory Tree it parses into.
//
// A Gen document is a list of entries, one per line or brace-delimited:
//
//	Window{
//	    resizable
//	    title:Main Window
//	    width:800
//	    height:600
//	}
//
// A bare key is a tag (empty value, read as true by GetBool). "key:value" holds a
// value up to the end of the line. A key followed by "{" (optionally with an
// inline value, "key:value{") owns a child tree closed by "}". Lines starting
// with "#" or "//" are comments.
//
// Trees are not synchronized. They are built by Consume/Parse/Load and are
// read-only afterwards in normal use.
package gen

import (
	"strconv"
	"strings"
)

// Value is a single tree node: a raw string payload plus an optional child tree.
type Value struct {
	Value    string
	Children *Tree
}

// IsTag reports whether the node is in tag form: no payload and no children.
func (v *Value) IsTag() bool {
	return v.Value == "" && v.Children == nil
}

// subOnly reports whether the node only carries a subtree.
func (v *Value) subOnly() bool {
	return v.Value == "" && v.Children != nil
}

// Tree maps unique keys to Values. Insertion order is kept for serialization
// but does not take part in equality.
type Tree struct {
	values map[string]*Value
	order  []string
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{values: make(map[string]*Value)}
}

// Keys returns the keys in insertion order.
func (t *Tree) Keys() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of keys.
func (t *Tree) Len() int {
	return len(t.values)
}

// Present reports whether id is a key of the tree.
func (t *Tree) Present(id string) bool {
	_, ok := t.values[id]
	return ok
}

// Get returns the raw node for id.
func (t *Tree) Get(id string) (*Value, bool) {
	v, ok := t.values[id]
	return v, ok
}

// Lookup resolves a dotted path such as "Window.title" through nested trees.
func (t *Tree) Lookup(path string) (*Value, bool) {
	cur := t
	parts := strings.Split(path, ".")
	for i, part := range parts {
		v, ok := cur.values[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		if v.Children == nil {
			return nil, false
		}
		cur = v.Children
	}
	return nil, false
}

// put inserts or replaces id. A replaced key keeps its original position.
func (t *Tree) put(id string, v *Value) {
	if _, exists := t.values[id]; !exists {
		t.order = append(t.order, id)
	}
	t.values[id] = v
}

// SetTag adds id in tag form.
func (t *Tree) SetTag(id string) {
	t.put(id, &Value{})
}

// Set adds id with a leaf value.
func (t *Tree) Set(id, value string) {
	t.put(id, &Value{Value: value})
}

// SetTree adds id with an inline value and a child tree. A nil child is
// replaced by an empty tree.
func (t *Tree) SetTree(id, value string, children *Tree) {
	if children == nil {
		children = New()
	}
	t.put(id, &Value{Value: value, Children: children})
}

// Remove deletes id and everything it owns.
func (t *Tree) Remove(id string) {
	if _, ok := t.values[id]; !ok {
		return
	}
	delete(t.values, id)
	for i, k := range t.order {
		if k == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// RemoveAll empties the tree.
func (t *Tree) RemoveAll() {
	t.values = make(map[string]*Value)
	t.order = nil
}

// SubValues returns the child tree of id, or nil when id is absent or has no
// children. It never fabricates a subtree.
func (t *Tree) SubValues(id string) *Tree {
	v, ok := t.values[id]
	if !ok {
		return nil
	}
	return v.Children
}

// HasSubValues reports whether id owns a child tree.
func (t *Tree) HasSubValues(id string) bool {
	return t.SubValues(id) != nil
}

// leaf returns the payload of id when it can be read as a leaf value.
func (t *Tree) leaf(id string) (*Value, bool) {
	v, ok := t.values[id]
	if !ok || v.subOnly() {
		return nil, false
	}
	return v, true
}

// GetString returns the payload of id verbatim, or fallback when id is absent.
func (t *Tree) GetString(id, fallback string) string {
	v, ok := t.values[id]
	if !ok {
		return fallback
	}
	return v.Value
}

// GetInt returns the payload of id as an int, or fallback when id is absent,
// has no leaf value, or is not an optionally signed decimal integer.
func (t *Tree) GetInt(id string, fallback int) int {
	v, ok := t.leaf(id)
	if !ok {
		return fallback
	}
	n, ok := parseInt(v.Value)
	if !ok {
		return fallback
	}
	return n
}

// GetDouble returns the payload of id as a float64 under the same fallback rules
// as GetInt. Integers are accepted.
func (t *Tree) GetDouble(id string, fallback float64) float64 {
	v, ok := t.leaf(id)
	if !ok {
		return fallback
	}
	f, ok := parseDouble(v.Value)
	if !ok {
		return fallback
	}
	return f
}

// GetBool returns the payload of id as a bool. true/false/1/0 are accepted in
// any case, and a tag reads as true.
func (t *Tree) GetBool(id string, fallback bool) bool {
	v, ok := t.leaf(id)
	if !ok {
		return fallback
	}
	b, ok := parseBool(v)
	if !ok {
		return fallback
	}
	return b
}

// IsInt reports whether GetInt would succeed for id.
func (t *Tree) IsInt(id string) bool {
	v, ok := t.leaf(id)
	if !ok {
		return false
	}
	_, ok = parseInt(v.Value)
	return ok
}

// IsDouble reports whether GetDouble would succeed for id.
func (t *Tree) IsDouble(id string) bool {
	v, ok := t.leaf(id)
	if !ok {
		return false
	}
	_, ok = parseDouble(v.Value)
	return ok
}

// IsBool reports whether GetBool would succeed for id.
func (t *Tree) IsBool(id string) bool {
	v, ok := t.leaf(id)
	if !ok {
		return false
	}
	_, ok = parseBool(v)
	return ok
}

func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	digits := s
	if digits != "" && (digits[0] == '+' || digits[0] == '-') {
		digits = digits[1:]
	}
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseDouble(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	// ParseFloat also accepts "Inf" and "NaN", which are not literals here.
	if !strings.ContainsAny(s, "0123456789") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseBool(v *Value) (bool, bool) {
	if v.IsTag() {
		return true, true
	}
	switch strings.ToLower(strings.TrimSpace(v.Value)) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	}
	return false, false
}

// Equal reports structural equality: same keys, payloads and subtrees,
// regardless of key order.
func (t *Tree) Equal(other *Tree) bool {
	if t == nil || other == nil {
		return t == other
	}
	if len(t.values) != len(other.values) {
		return false
	}
	for k, v := range t.values {
		ov, ok := other.values[k]
		if !ok || v.Value != ov.Value {
			return false
		}
		if (v.Children == nil) != (ov.Children == nil) {
			return false
		}
		if v.Children != nil && !v.Children.Equal(ov.Children) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	out := New()
	for _, k := range t.order {
		v := t.values[k]
		nv := &Value{Value: v.Value}
		if v.Children != nil {
			nv.Children = v.Children.Clone()
		}
		out.put(k, nv)
	}
	return out
}
