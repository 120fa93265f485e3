// Package qs encodes and decodes the query-string suffix of a hash fragment.
//
// The format is intentionally small: "&"-separated segments that are either
// "key=value" or a bare "key" (a flag). Values are percent-encoded the way
// encodeURIComponent does it, after which a short substitution table restores
// a few characters for compactness ("%20" becomes "+", "%2C" becomes ",").
//
//	qs.Format(mapping.New(mapping.KV("q", "a b"), mapping.KV("debug", true)), false)
//	// "q=a+b&debug"
//
//	m, ok := qs.Parse("?q=a+b&debug")
//	// {q: "a b", debug: true}, true
package qs

import (
	"sort"
	"strings"

	"github.com/vango-dev/hashsync/pkg/mapping"
)

// DefaultSeparator separates query segments.
const DefaultSeparator = "&"

// DefaultReplacements maps percent-encoded sequences back to the literal
// characters written in their place.
var DefaultReplacements = map[string]string{
	"%20": "+",
	"%2C": ",",
}

// Codec holds the query-string settings. The zero Codec behaves like Default.
type Codec struct {
	// Separator splits segments. Default: "&".
	Separator string

	// Replacements is applied to each percent-encoded triplet after encoding.
	// Default: DefaultReplacements.
	Replacements map[string]string
}

// Default is the codec used by the package-level functions.
var Default = Codec{
	Separator:    DefaultSeparator,
	Replacements: DefaultReplacements,
}

// Parse decodes str with the Default codec.
func Parse(str string) (*mapping.Mapping, bool) {
	return Default.Parse(str)
}

// Format encodes m with the Default codec.
func Format(m *mapping.Mapping, sortKeys bool) string {
	return Default.Format(m, sortKeys)
}

func (c Codec) separator() string {
	if c.Separator == "" {
		return DefaultSeparator
	}
	return c.Separator
}

func (c Codec) replacements() map[string]string {
	if c.Replacements == nil {
		return DefaultReplacements
	}
	return c.Replacements
}

// Parse decodes a query string into a Mapping. It returns false for the
// empty string and for a lone "?". A leading "?" is ignored.
//
// A segment without "=" becomes a flag. Otherwise the segment is split on its
// first "=" and both sides are decoded. Repeated keys keep the last value and
// the first position.
func (c Codec) Parse(str string) (*mapping.Mapping, bool) {
	if str == "" || str == "?" {
		return nil, false
	}
	str = strings.TrimPrefix(str, "?")

	m := mapping.New()
	for _, segment := range strings.Split(str, c.separator()) {
		rawKey, rawValue, hasValue := strings.Cut(segment, "=")
		key := Decode(rawKey)
		if !hasValue {
			m.Set(key, mapping.Flag())
			continue
		}
		m.Set(key, mapping.String(Decode(rawValue)))
	}
	return m, true
}

// Format encodes m as a query string without the leading "?". Empty values
// are skipped and flags are written as bare keys. With sortKeys the keys are
// written in lexicographic order instead of insertion order.
func (c Codec) Format(m *mapping.Mapping, sortKeys bool) string {
	if m == nil {
		return ""
	}

	keys := make([]string, 0, m.Len())
	m.Range(func(k string, v mapping.Value) bool {
		if !v.IsEmpty() {
			keys = append(keys, k)
		}
		return true
	})
	if sortKeys {
		sort.Strings(keys)
	}

	bits := make([]string, 0, len(keys))
	for _, k := range keys {
		v, _ := m.Get(k)
		if v.IsFlag() {
			bits = append(bits, k)
			continue
		}
		bits = append(bits, k+"="+c.Encode(v.String()))
	}
	return strings.Join(bits, c.separator())
}

// Encode percent-encodes s and applies the codec's replacements.
func (c Codec) Encode(s string) string {
	encoded := EncodeComponent(s)
	repl := c.replacements()
	if len(repl) == 0 || !strings.Contains(encoded, "%") {
		return encoded
	}

	var b strings.Builder
	b.Grow(len(encoded))
	for i := 0; i < len(encoded); i++ {
		if encoded[i] == '%' && i+2 < len(encoded) {
			triplet := encoded[i : i+3]
			if r, ok := repl[triplet]; ok {
				b.WriteString(r)
			} else {
				b.WriteString(triplet)
			}
			i += 2
			continue
		}
		b.WriteByte(encoded[i])
	}
	return b.String()
}
