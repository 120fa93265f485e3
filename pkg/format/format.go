// Package format turns mappings into hash strings and back.
//
// A Format is bidirectional: Format renders a Mapping, Parse recovers it, and
// Match reports whether a string has the right shape. Three kinds ship:
//
//   - Template: "{name}" placeholders compiled into an anchored pattern, with
//     optional query-string data for keys that are not placeholders.
//   - Path: the whole pre-"?" string is the "path" key; every other key is a
//     query parameter.
//   - Tile: "{z}/{y}/{x}" with numeric coercion and zoom-derived precision.
//
// Example:
//
//	f := format.MustNew("{section}/{id}", format.WithQuery(format.QueryAll))
//	f.Format(mapping.New(mapping.KV("section", "docs"), mapping.KV("id", "42"), mapping.KV("q", "x")))
//	// "docs/42?q=x"
//	m, ok := f.Parse("docs/42?q=x")
//	// {section: "docs", id: "42", q: "x"}, true
package format

import (
	"strings"

	"github.com/vango-dev/hashsync/pkg/mapping"
	"github.com/vango-dev/hashsync/pkg/qs"
)

// Format converts between a Mapping and its hash-string form.
type Format interface {
	// Format renders m. A nil m is treated as empty.
	Format(m *mapping.Mapping) string

	// Parse recovers a Mapping from s. It returns false when s does not have
	// the format's shape; a failed parse never returns partial data.
	Parse(s string) (*mapping.Mapping, bool)

	// Match reports whether s has the format's shape.
	Match(s string) bool

	// String describes the format (for templates, the template text).
	String() string
}

type queryKind uint8

const (
	queryOff queryKind = iota
	queryAll
	queryKeys
)

// QueryMode selects which keys travel in the query string.
type QueryMode struct {
	kind queryKind
	keys []string
}

var (
	// QueryOff disables the query string.
	QueryOff = QueryMode{kind: queryOff}

	// QueryAll puts every non-placeholder key in the query string.
	QueryAll = QueryMode{kind: queryAll}
)

// QueryKeys restricts the query string to the listed keys.
func QueryKeys(keys ...string) QueryMode {
	cp := make([]string, len(keys))
	copy(cp, keys)
	return QueryMode{kind: queryKeys, keys: cp}
}

// Enabled reports whether the mode uses a query string at all.
func (q QueryMode) Enabled() bool {
	return q.kind != queryOff
}

// Keys returns the allow-list for QueryKeys modes and nil otherwise.
func (q QueryMode) Keys() []string {
	if q.kind != queryKeys {
		return nil
	}
	cp := make([]string, len(q.keys))
	copy(cp, q.keys)
	return cp
}

// String returns "off", "all" or the comma-separated allow-list.
func (q QueryMode) String() string {
	switch q.kind {
	case queryAll:
		return "all"
	case queryKeys:
		return "[" + strings.Join(q.keys, ",") + "]"
	default:
		return "off"
	}
}

// allows reports whether Parse keeps a decoded query key, given the
// placeholder names that are already claimed by the template.
func (q QueryMode) allows(key string, placeholders []string) bool {
	if contains(placeholders, key) {
		return false
	}
	switch q.kind {
	case queryAll:
		return true
	case queryKeys:
		return contains(q.keys, key)
	default:
		return false
	}
}

// Option configures a format.
type Option func(*options)

type options struct {
	query     *QueryMode
	codec     qs.Codec
	precision *Precision
}

// WithQuery sets the query mode.
func WithQuery(q QueryMode) Option {
	return func(o *options) {
		o.query = &q
	}
}

// WithCodec sets the query-string codec. Default: qs.Default.
func WithCodec(c qs.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithPrecision sets the decimal precision of tile coordinates. It only
// affects Tile formats.
func WithPrecision(p Precision) Option {
	return func(o *options) {
		o.precision = &p
	}
}

func buildOptions(opts []Option) options {
	o := options{codec: qs.Default}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// splitQuery splits s at its first "?". ok is false when there is none.
func splitQuery(s string) (head, query string, ok bool) {
	return strings.Cut(s, "?")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
