package format

import (
	"github.com/vango-dev/hashsync/pkg/mapping"
	"github.com/vango-dev/hashsync/pkg/qs"
)

// PathKey is the key that holds the pre-"?" part of a Path format.
const PathKey = "path"

// Path treats the whole string before "?" as the "path" value and every other
// key as a query parameter:
//
//	"foo/bar?q=1" <-> {path: "foo/bar", q: "1"}
type Path struct {
	codec qs.Codec
}

var _ Format = (*Path)(nil)

// NewPath creates a Path format. Only WithCodec is honoured.
func NewPath(opts ...Option) *Path {
	o := buildOptions(opts)
	return &Path{codec: o.codec}
}

// Format writes path, then "?" and the query string if it is non-empty.
func (p *Path) Format(m *mapping.Mapping) string {
	path, _ := m.Get(PathKey)
	query := p.codec.Format(mapping.Omit(m, []string{PathKey}), false)
	if query == "" {
		return path.String()
	}
	return path.String() + "?" + query
}

// Parse splits s at the first "?". The left side is the path; the right side
// is decoded and merged in, so a "path" key inside the query string
// replaces the left side. Parse never fails.
func (p *Path) Parse(s string) (*mapping.Mapping, bool) {
	head, query, hasQuery := splitQuery(s)
	out := mapping.New(mapping.Entry{Key: PathKey, Value: mapping.String(head)})
	if hasQuery {
		if q, ok := p.codec.Parse(query); ok {
			mapping.Extend(out, q)
		}
	}
	return out, true
}

// Match always reports true.
func (p *Path) Match(string) bool {
	return true
}

// String returns "path".
func (p *Path) String() string {
	return "path"
}

// Query is a format whose whole string is a query string:
//
//	"page=home&debug" <-> {page: "home", debug: true}
//
// The empty string parses to an empty mapping.
type Query struct {
	codec qs.Codec
}

var _ Format = (*Query)(nil)

// NewQuery creates a Query format. Only WithCodec is honoured.
func NewQuery(opts ...Option) *Query {
	o := buildOptions(opts)
	return &Query{codec: o.codec}
}

// Format encodes m as a query string without a leading "?".
func (q *Query) Format(m *mapping.Mapping) string {
	return q.codec.Format(m, false)
}

// Parse decodes s. It never fails.
func (q *Query) Parse(s string) (*mapping.Mapping, bool) {
	if m, ok := q.codec.Parse(s); ok {
		return m, true
	}
	return mapping.New(), true
}

// Match always reports true.
func (q *Query) Match(string) bool {
	return true
}

// String returns "query".
func (q *Query) String() string {
	return "query"
}
