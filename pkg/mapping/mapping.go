// Package mapping provides the ordered key/value structure that hash state is
// parsed into and formatted from.
//
// A Mapping keeps keys in insertion order. Setting an existing key replaces
// its value but keeps its original position. Values are strings, numbers or
// flags (boolean true):
//
//	m := mapping.New(
//	    mapping.KV("page", "home"),
//	    mapping.KV("zoom", 3),
//	    mapping.KV("debug", true),
//	)
//	m.Get("zoom") // Number(3), true
//
// Mapping methods are nil-safe for reads: a nil *Mapping behaves as an empty
// mapping.
package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Entry is a key/value pair used to build a Mapping.
type Entry struct {
	Key   string
	Value Value
}

// KV builds an Entry from a Go value. It panics if v is not a supported
// type (see ValueOf); use it for literals, not for untrusted input.
func KV(key string, v any) Entry {
	val, ok := ValueOf(v)
	if !ok {
		panic(fmt.Sprintf("mapping: unsupported value %T for key %q", v, key))
	}
	return Entry{Key: key, Value: val}
}

// Mapping is an ordered set of unique string keys to values.
type Mapping struct {
	keys   []string
	values map[string]Value
}

// New creates a Mapping from entries. Later duplicates overwrite earlier ones.
func New(entries ...Entry) *Mapping {
	m := &Mapping{values: make(map[string]Value, len(entries))}
	for _, e := range entries {
		m.Set(e.Key, e.Value)
	}
	return m
}

// FromStrings creates a Mapping from a plain string map. Keys are sorted
// since Go maps carry no order.
func FromStrings(src map[string]string) *Mapping {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	m := &Mapping{values: make(map[string]Value, len(src))}
	for _, k := range keys {
		m.Set(k, String(src[k]))
	}
	return m
}

// Len returns the number of keys.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns a copy of the keys in order.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Get returns the value for key.
func (m *Mapping) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Mapping) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores value under key. A new key is appended; an existing key keeps
// its position.
func (m *Mapping) Set(key string, value Value) {
	if m.values == nil {
		m.values = make(map[string]Value)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Delete removes key.
func (m *Mapping) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Range calls fn for each entry in order until fn returns false.
func (m *Mapping) Range(fn func(key string, value Value) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Clone returns a shallow copy. Cloning nil yields an empty Mapping.
func (m *Mapping) Clone() *Mapping {
	out := &Mapping{values: make(map[string]Value, m.Len())}
	m.Range(func(k string, v Value) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// Strings returns the values as plain strings.
func (m *Mapping) Strings() map[string]string {
	out := make(map[string]string, m.Len())
	m.Range(func(k string, v Value) bool {
		out[k] = v.String()
		return true
	})
	return out
}

// String renders the mapping for logs and test output.
func (m *Mapping) String() string {
	var b bytes.Buffer
	b.WriteByte('{')
	i := 0
	m.Range(func(k string, v Value) bool {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %#v", k, v)
		i++
		return true
	})
	b.WriteByte('}')
	return b.String()
}

// MarshalJSON encodes the mapping as a JSON object in key order. Numbers
// become JSON numbers and flags become true. Non-finite numbers are encoded
// as strings.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	var err error
	i := 0
	m.Range(func(k string, v Value) bool {
		if i > 0 {
			b.WriteByte(',')
		}
		i++
		var kb, vb []byte
		if kb, err = json.Marshal(k); err != nil {
			return false
		}
		if vb, err = v.MarshalJSON(); err != nil {
			return false
		}
		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
		return true
	})
	if err != nil {
		return nil, err
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object, keeping key order. Strings,
// numbers and true are accepted; null and false drop the key.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = Mapping{values: map[string]Value{}}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("mapping: expected JSON object, got %v", tok)
	}

	out := Mapping{values: map[string]Value{}}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("mapping: expected object key, got %v", kt)
		}
		vt, err := dec.Token()
		if err != nil {
			return err
		}
		switch val := vt.(type) {
		case string:
			out.Set(key, String(val))
		case json.Number:
			f, err := val.Float64()
			if err != nil {
				return fmt.Errorf("mapping: key %q: %w", key, err)
			}
			out.Set(key, Number(f))
		case bool:
			if val {
				out.Set(key, Flag())
			}
		case nil:
		default:
			return fmt.Errorf("mapping: key %q: nested values are not supported", key)
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

// MarshalJSON encodes a single value.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return json.Marshal(FormatNumber(v.n))
		}
		return json.Marshal(v.n)
	case KindFlag:
		return []byte("true"), nil
	default:
		return json.Marshal(v.s)
	}
}

// Extend copies every entry of each source into dst, overwriting existing
// keys, and returns dst. A nil dst is replaced by a new Mapping.
func Extend(dst *Mapping, sources ...*Mapping) *Mapping {
	if dst == nil {
		dst = New()
	}
	for _, src := range sources {
		src.Range(func(k string, v Value) bool {
			dst.Set(k, v)
			return true
		})
	}
	return dst
}

// Pick returns a new Mapping holding only the listed keys that are present
// in m, in the order of keys.
func Pick(m *Mapping, keys []string) *Mapping {
	out := New()
	for _, k := range keys {
		if v, ok := m.Get(k); ok {
			out.Set(k, v)
		}
	}
	return out
}

// Omit returns a new Mapping without the listed keys, in m's order.
func Omit(m *Mapping, keys []string) *Mapping {
	skip := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		skip[k] = struct{}{}
	}
	out := New()
	m.Range(func(k string, v Value) bool {
		if _, ok := skip[k]; !ok {
			out.Set(k, v)
		}
		return true
	})
	return out
}

// IsEmpty reports whether m is nil or has no keys.
func IsEmpty(m *Mapping) bool {
	return m.Len() == 0
}

// Equal reports whether a and b hold the same keys with strictly equal
// values. Key order is ignored. A nil Mapping equals an empty one.
func Equal(a, b *Mapping) bool {
	if a.Len() != b.Len() {
		return false
	}
	equal := true
	a.Range(func(k string, av Value) bool {
		bv, ok := b.Get(k)
		if !ok || !StrictEqual(av, bv) {
			equal = false
		}
		return equal
	})
	return equal
}
