package mapping

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a flat YAML mapping, keeping key order. Strings,
// numbers and true are accepted; null and false drop the key.
func (m *Mapping) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null" {
		*m = Mapping{values: map[string]Value{}}
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("mapping: line %d: expected a YAML mapping", node.Line)
	}

	out := Mapping{values: map[string]Value{}}
	for i := 0; i+1 < len(node.Content); i += 2 {
		kn, vn := node.Content[i], node.Content[i+1]
		if kn.Kind != yaml.ScalarNode {
			return fmt.Errorf("mapping: line %d: keys must be scalars", kn.Line)
		}
		if vn.Kind == yaml.AliasNode && vn.Alias != nil {
			vn = vn.Alias
		}
		if vn.Kind != yaml.ScalarNode {
			return fmt.Errorf("mapping: line %d: key %q: nested values are not supported", vn.Line, kn.Value)
		}

		switch vn.ShortTag() {
		case "!!int", "!!float":
			var f float64
			if err := vn.Decode(&f); err != nil {
				return fmt.Errorf("mapping: line %d: key %q: %w", vn.Line, kn.Value, err)
			}
			out.Set(kn.Value, Number(f))
		case "!!bool":
			var b bool
			if err := vn.Decode(&b); err != nil {
				return fmt.Errorf("mapping: line %d: key %q: %w", vn.Line, kn.Value, err)
			}
			if b {
				out.Set(kn.Value, Flag())
			}
		case "!!null":
		default:
			out.Set(kn.Value, String(vn.Value))
		}
	}
	*m = out
	return nil
}

// MarshalYAML encodes the mapping as a YAML mapping in key order.
func (m *Mapping) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	var err error
	m.Range(func(k string, v Value) bool {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		val := &yaml.Node{}
		switch {
		case v.kind == KindNumber && (math.IsNaN(v.n) || math.IsInf(v.n, 0)):
			err = val.Encode(FormatNumber(v.n))
		default:
			err = val.Encode(v.Any())
		}
		if err != nil {
			return false
		}
		node.Content = append(node.Content, key, val)
		return true
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}
