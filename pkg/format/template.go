package format

import (
	"regexp"
	"strings"

	"github.com/vango-dev/hashsync/internal/errors"
	"github.com/vango-dev/hashsync/pkg/mapping"
	"github.com/vango-dev/hashsync/pkg/qs"
)

// segment is the capture group substituted for every placeholder. A
// placeholder never spans a "/" or "?".
const segment = `([-\w.]+)`

var (
	placeholderPattern = regexp.MustCompile(`\{([-\w.]+)\}`)
	bracePattern       = regexp.MustCompile(`\{[^{}]*\}`)
)

// Template is a compiled placeholder template. It is immutable; WithQuery
// returns a modified copy.
type Template struct {
	text    string
	keys    []string
	groups  []string
	pattern *regexp.Regexp
	query   QueryMode
	codec   qs.Codec
}

var _ Format = (*Template)(nil)

// New compiles a template. Literal text is matched verbatim and every
// "{name}" becomes a single-segment capture. The whole input must match.
//
// New fails with an H101 error when a brace group is not a valid
// placeholder (for example "{page id}"), and with H100 if the resulting
// pattern does not compile. A name may repeat; every occurrence is filled
// by Format and the last capture wins in Parse.
func New(text string, opts ...Option) (*Template, error) {
	o := buildOptions(opts)

	pattern, keys, groups, err := compile(text)
	if err != nil {
		return nil, err
	}

	t := &Template{
		text:    text,
		keys:    keys,
		groups:  groups,
		pattern: pattern,
		query:   QueryOff,
		codec:   o.codec,
	}
	if o.query != nil {
		t.query = *o.query
	}
	return t, nil
}

// MustNew is like New but panics on error. Use it for templates that are
// program constants.
func MustNew(text string, opts ...Option) *Template {
	t, err := New(text, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// compile returns the anchored pattern, the distinct placeholder names in
// order of first appearance and the name behind each capture group.
func compile(text string) (*regexp.Regexp, []string, []string, error) {
	for _, brace := range bracePattern.FindAllString(text, -1) {
		if !placeholderPattern.MatchString(brace) {
			return nil, nil, nil, errors.New("H101").
				WithDetailf("template %q: %s is not a valid placeholder", text, brace).
				WithSuggestion("Use names made of letters, digits, '_', '-' and '.', e.g. {page_id}")
		}
	}

	var b strings.Builder
	var keys, groups []string
	b.WriteString("^")
	last := 0
	for _, loc := range placeholderPattern.FindAllStringSubmatchIndex(text, -1) {
		key := text[loc[2]:loc[3]]
		if !contains(keys, key) {
			keys = append(keys, key)
		}
		groups = append(groups, key)
		b.WriteString(regexp.QuoteMeta(text[last:loc[0]]))
		b.WriteString(segment)
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(text[last:]))
	b.WriteString("$")

	pattern, err := regexp.Compile(b.String())
	if err != nil {
		return nil, nil, nil, errors.New("H100").WithDetailf("template %q", text).Wrap(err)
	}
	return pattern, keys, groups, nil
}

// Keys returns the distinct placeholder names in order of first appearance.
func (t *Template) Keys() []string {
	cp := make([]string, len(t.keys))
	copy(cp, t.keys)
	return cp
}

// Pattern returns the compiled matching expression.
func (t *Template) Pattern() string {
	return t.pattern.String()
}

// Query returns the query mode.
func (t *Template) Query() QueryMode {
	return t.query
}

// WithQuery returns a copy of t using mode q.
func (t *Template) WithQuery(q QueryMode) *Template {
	cp := *t
	cp.query = q
	return &cp
}

// String returns the template text.
func (t *Template) String() string {
	return t.text
}

// Format substitutes every placeholder with the raw value of its key (the
// empty string when absent). With the query string enabled, every key that
// is not a placeholder is appended after "?" when it produces any output.
// The QueryKeys allow-list only filters what Parse accepts.
func (t *Template) Format(m *mapping.Mapping) string {
	str := placeholderPattern.ReplaceAllStringFunc(t.text, func(match string) string {
		v, _ := m.Get(match[1 : len(match)-1])
		return v.String()
	})
	if !t.query.Enabled() {
		return str
	}

	rest := mapping.New()
	m.Range(func(k string, v mapping.Value) bool {
		if !contains(t.keys, k) {
			rest.Set(k, v)
		}
		return true
	})
	if query := t.codec.Format(rest, false); query != "" {
		return str + "?" + query
	}
	return str
}

// Captures returns one capture per placeholder occurrence, in template
// order, or nil when s does not match. The query string, if enabled, is ignored.
func (t *Template) Captures(s string) []string {
	if t.query.Enabled() {
		s, _, _ = splitQuery(s)
	}
	sub := t.pattern.FindStringSubmatch(s)
	if sub == nil {
		return nil
	}
	return sub[1:]
}

// Match reports whether s matches the template.
func (t *Template) Match(s string) bool {
	return t.Captures(s) != nil
}

// Parse matches s against the template. Query data is decoded first and
// filtered by the query mode, but it is discarded if the template does not
// match: either every placeholder resolves or the parse fails.
func (t *Template) Parse(s string) (*mapping.Mapping, bool) {
	var qdata *mapping.Mapping
	if t.query.Enabled() {
		head, query, _ := splitQuery(s)
		s = head
		if parsed, ok := t.codec.Parse(query); ok {
			qdata = mapping.New()
			parsed.Range(func(k string, v mapping.Value) bool {
				if t.query.allows(k, t.keys) {
					qdata.Set(k, v)
				}
				return true
			})
		}
	}

	sub := t.pattern.FindStringSubmatch(s)
	if sub == nil {
		return nil, false
	}

	out := mapping.New()
	for i, key := range t.groups {
		out.Set(key, mapping.String(sub[i+1]))
	}
	return mapping.Extend(out, qdata), true
}
