package gen

import (
	"bytes"
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

const indentUnit = "    "

// ValueKey holds the inline value of a nested entry in YAML and JSON exports.
const ValueKey = "_value"

// String serializes the tree back into Gen text. Parsing the result yields a
// tree that is Equal to t.
func (t *Tree) String() string {
	var b strings.Builder
	t.write(&b, 0)
	return b.String()
}

func (t *Tree) write(b *strings.Builder, depth int) {
	pad := strings.Repeat(indentUnit, depth)
	for _, k := range t.order {
		v := t.values[k]
		b.WriteString(pad)
		b.WriteString(k)
		if v.Value != "" {
			b.WriteByte(':')
			b.WriteString(v.Value)
		}
		if v.Children == nil {
			b.WriteByte('\n')
			continue
		}
		b.WriteString("{\n")
		v.Children.write(b, depth+1)
		b.WriteString(pad)
		b.WriteString("}\n")
	}
}

// MarshalYAML exports the tree as a YAML mapping. Tags become nulls, leaf
// values become strings, and nested entries become mappings that keep their
// inline value under ValueKey.
func (t *Tree) MarshalYAML() (any, error) {
	return t.yamlNode(), nil
}

func (t *Tree) yamlNode() *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range t.order {
		v := t.values[k]
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}

		var val *yaml.Node
		switch {
		case v.Children != nil:
			val = v.Children.yamlNode()
			if v.Value != "" {
				inline := []*yaml.Node{
					{Kind: yaml.ScalarNode, Tag: "!!str", Value: ValueKey},
					{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Value},
				}
				val.Content = append(inline, val.Content...)
			}
		case v.IsTag():
			val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "~"}
		default:
			val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Value}
		}
		node.Content = append(node.Content, key, val)
	}
	return node
}

// MarshalJSON exports the tree as a JSON object with the same shape as
// MarshalYAML. Key order follows insertion order.
func (t *Tree) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *Tree) writeJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	first := true
	writeKey := func(k string) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		enc, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(enc)
		buf.WriteByte(':')
		return nil
	}

	for _, k := range t.order {
		v := t.values[k]
		if err := writeKey(k); err != nil {
			return err
		}
		switch {
		case v.Children != nil:
			if v.Value == "" {
				if err := v.Children.writeJSON(buf); err != nil {
					return err
				}
				continue
			}
			wrapped := New()
			wrapped.Set(ValueKey, v.Value)
			for _, ck := range v.Children.order {
				wrapped.put(ck, v.Children.values[ck])
			}
			if err := wrapped.writeJSON(buf); err != nil {
				return err
			}
		case v.IsTag():
			buf.WriteString("null")
		default:
			enc, err := json.Marshal(v.Value)
			if err != nil {
				return err
			}
			buf.Write(enc)
		}
	}
	buf.WriteByte('}')
	return nil
}
