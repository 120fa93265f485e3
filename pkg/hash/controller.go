// Package hash keeps a Mapping in sync with a URL hash fragment.
//
// A Controller owns the current data, the active format and a default
// policy. When the hash changes it parses the new value, diffs it against the
// previous data and calls the change callback; Write goes the other way and
// formats the data into the hash.
//
//	loc := hash.NewMemoryLocation("")
//	c := hash.New(loc,
//		hash.WithFormat(format.MustNew("{page}", format.WithQuery(format.QueryAll))),
//		hash.WithOnChange(func(ch hash.Change) { ... }),
//	)
//	c.Enable()
//	c.Check()
//
// A Controller is not safe for concurrent use. Calls and Location
// notifications for one controller must be serialized by its owner;
// separate controllers are independent.
package hash

import (
	"log/slog"
	"strings"

	"github.com/vango-dev/hashsync/pkg/diff"
	"github.com/vango-dev/hashsync/pkg/format"
	"github.com/vango-dev/hashsync/pkg/mapping"
)

// Controller reconciles in-memory data with a Location.
type Controller struct {
	loc Location

	data       *mapping.Mapping
	current    string
	hasCurrent bool

	format   format.Format
	parse    ParseFunc
	def      Default
	onChange func(Change)

	logger   *slog.Logger
	observer Observer
	cancel   func()
}

// New creates a Controller bound to loc. It starts with empty data, the
// Path format, DefaultIdentity and no callback. It does not subscribe to loc
// until Enable is called.
func New(loc Location, opts ...Option) *Controller {
	c := &Controller{
		loc:    loc,
		data:   mapping.New(),
		def:    DefaultIdentity,
		logger: slog.Default(),
	}
	c.SetFormat(format.NewPath())
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Location returns the bound location.
func (c *Controller) Location() Location {
	return c.loc
}

// Data returns the current data. The returned mapping is owned by the
// controller.
func (c *Controller) Data() *mapping.Mapping {
	return c.data
}

// SetData replaces the data without touching the hash. A nil m is stored as
// an empty mapping.
func (c *Controller) SetData(m *mapping.Mapping) {
	if m == nil {
		m = mapping.New()
	}
	c.data = m
}

// Update merges m into the data, key by key.
func (c *Controller) Update(m *mapping.Mapping) {
	mapping.Extend(c.data, m)
}

// Format returns the active format.
func (c *Controller) Format() format.Format {
	return c.format
}

// SetFormat switches the format and adopts its Parse as the parser.
func (c *Controller) SetFormat(f format.Format) {
	if f == nil {
		return
	}
	c.format = f
	c.parse = f.Parse
}

// Parser returns the active parse function.
func (c *Controller) Parser() ParseFunc {
	return c.parse
}

// SetParser replaces the parse function. The format is kept for writing.
func (c *Controller) SetParser(fn ParseFunc) {
	if fn == nil {
		return
	}
	c.parse = fn
}

// Default returns the default policy.
func (c *Controller) Default() Default {
	return c.def
}

// SetDefault replaces the default policy.
func (c *Controller) SetDefault(d Default) {
	c.def = d
}

// OnChange sets the change callback, replacing any previous one.
func (c *Controller) OnChange(fn func(Change)) {
	c.onChange = fn
}

// ClearOnChange removes the change callback.
func (c *Controller) ClearOnChange() {
	c.onChange = nil
}

// Write formats the data into the hash. It never calls the change callback
// itself; an enabled controller observes the resulting hash change like any
// other, and writing an unchanged hash does nothing.
func (c *Controller) Write() {
	s := c.format.Format(c.data)
	if c.observer != nil {
		c.observer.ObserveWrite()
	}
	c.loc.SetHash(s)
}

// Read evaluates the current hash even if no change was signalled.
func (c *Controller) Read() {
	c.change()
}

// Check reconciles on startup. A non-empty hash is read; an empty hash gets
// the current data written to it, after a notification describing the data
// as added to nothing.
func (c *Controller) Check() {
	if c.loc.Hash() != "" {
		c.Read()
		return
	}
	c.notify(Change{
		Previous: nil,
		Data:     c.data,
		Diff:     diff.Compute(nil, c.data),
	})
	c.Write()
}

// URL returns "#" followed by d formatted with the active format. A nil d
// means the current data. With merge, d is layered over a copy of the
// current data.
func (c *Controller) URL(d *mapping.Mapping, merge bool) string {
	if d == nil {
		d = c.data
	}
	if merge {
		d = mapping.Extend(mapping.New(), c.data, d)
	}
	return "#" + c.format.Format(d)
}

// ParseHref parses the fragment of href with the active parser. href may be
// a bare fragment ("#a/b") or a full URL.
func (c *Controller) ParseHref(href string) (*mapping.Mapping, bool) {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[i+1:]
	}
	return c.parse(href)
}

// Enable subscribes to the location. It is a no-op when already enabled.
func (c *Controller) Enable() {
	if c.cancel != nil {
		return
	}
	c.cancel = c.loc.Subscribe(c.change)
}

// Disable unsubscribes from the location. Data is kept.
func (c *Controller) Disable() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
}

// Enabled reports whether the controller is subscribed.
func (c *Controller) Enabled() bool {
	return c.cancel != nil
}

func (c *Controller) change() {
	raw := c.loc.Hash()
	if c.hasCurrent && raw == c.current {
		c.observe(OutcomeSkipped)
		return
	}

	previous := c.data
	parsed, ok := c.parse(strings.TrimPrefix(raw, "#"))
	if !ok {
		c.miss(raw, previous)
		return
	}
	if parsed == nil {
		parsed = mapping.New()
	}

	c.data = parsed
	c.current = raw
	c.hasCurrent = true

	d := diff.Compute(previous, parsed)
	if d == nil {
		c.observe(OutcomeUnchanged)
		return
	}
	c.observe(OutcomeChanged)
	c.notify(Change{Previous: previous, Data: parsed, Diff: d})
}

// miss applies the default policy to a hash that did not parse. A resolved
// value that differs from previous is written back, which starts a new
// change cycle; otherwise nothing changes.
func (c *Controller) miss(raw string, previous *mapping.Mapping) {
	resolved, ok := c.def.Resolve(previous)
	if !ok {
		c.logger.Debug("hash did not parse", "hash", raw)
		c.observe(OutcomeMiss)
		return
	}
	if resolved == nil {
		resolved = mapping.New()
	}
	if mapping.Equal(resolved, previous) {
		c.logger.Debug("hash did not parse, default unchanged", "hash", raw)
		c.observe(OutcomeMiss)
		return
	}

	c.logger.Debug("hash did not parse, writing default", "hash", raw, "data", resolved.String())
	c.observe(OutcomeDefault)
	c.data = resolved
	c.Write()
}

func (c *Controller) notify(ch Change) {
	if c.observer != nil {
		c.observer.ObserveChange(ch.Diff)
	}
	if c.onChange == nil {
		return
	}
	c.logger.Debug("hash change", "keys", len(ch.Diff))
	c.onChange(ch)
}

func (c *Controller) observe(outcome string) {
	if c.observer != nil {
		c.observer.ObserveRead(outcome)
	}
}
