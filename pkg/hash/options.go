package hash

import (
	"log/slog"

	"github.com/vango-dev/hashsync/pkg/diff"
	"github.com/vango-dev/hashsync/pkg/format"
	"github.com/vango-dev/hashsync/pkg/mapping"
)

// ParseFunc recovers a Mapping from a hash string without its leading "#".
// It returns false when the string is not recognised.
type ParseFunc func(s string) (*mapping.Mapping, bool)

// Change is passed to the change callback.
type Change struct {
	// Previous is the data before the change; nil for the synthetic
	// notification sent by Check.
	Previous *mapping.Mapping

	// Data is the new data.
	Data *mapping.Mapping

	// Diff describes the change from Previous to Data. It may be nil.
	Diff diff.Diff
}

type defaultKind uint8

const (
	defaultIdentity defaultKind = iota
	defaultValue
	defaultFunc
	defaultNone
)

// Default is the policy applied when the hash does not parse. It is either a
// constant mapping or a function of the previous data.
type Default struct {
	kind  defaultKind
	value *mapping.Mapping
	fn    func(previous *mapping.Mapping) *mapping.Mapping
}

var (
	// DefaultIdentity resolves to the previous data, so an unparseable hash
	// is ignored. It is the initial policy of a Controller.
	DefaultIdentity = Default{kind: defaultIdentity}

	// NoDefault disables the policy: a miss leaves the controller untouched.
	NoDefault = Default{kind: defaultNone}
)

// DefaultValue always resolves to a copy of m. Later changes to m or to the
// controller's data do not alter the policy.
func DefaultValue(m *mapping.Mapping) Default {
	return Default{kind: defaultValue, value: m.Clone()}
}

// DefaultFunc resolves by calling fn with the previous data.
func DefaultFunc(fn func(previous *mapping.Mapping) *mapping.Mapping) Default {
	return Default{kind: defaultFunc, fn: fn}
}

// Enabled reports whether the policy is set.
func (d Default) Enabled() bool {
	return d.kind != defaultNone
}

// Resolve applies the policy to previous.
func (d Default) Resolve(previous *mapping.Mapping) (*mapping.Mapping, bool) {
	switch d.kind {
	case defaultIdentity:
		return previous, true
	case defaultValue:
		return d.value.Clone(), true
	case defaultFunc:
		if d.fn == nil {
			return previous, true
		}
		return d.fn(previous), true
	default:
		return nil, false
	}
}

// Read outcomes reported to an Observer.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeDefault   = "default"
	OutcomeMiss      = "miss"
	OutcomeSkipped   = "skipped"
)

// Observer receives controller events. pkg/metrics provides a Prometheus
// implementation.
type Observer interface {
	ObserveRead(outcome string)
	ObserveWrite()
	ObserveChange(d diff.Diff)
}

// Option configures a Controller.
type Option func(*Controller)

// WithFormat sets the format. Default: format.NewPath().
func WithFormat(f format.Format) Option {
	return func(c *Controller) {
		c.SetFormat(f)
	}
}

// WithParser sets the parse function independently of the format. Apply it
// after WithFormat, which replaces the parser.
func WithParser(fn ParseFunc) Option {
	return func(c *Controller) {
		c.parse = fn
	}
}

// WithDefault sets the default policy.
func WithDefault(d Default) Option {
	return func(c *Controller) {
		c.def = d
	}
}

// WithOnChange sets the change callback.
func WithOnChange(fn func(Change)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// WithData sets the initial data.
func WithData(m *mapping.Mapping) Option {
	return func(c *Controller) {
		c.SetData(m)
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver sets an event observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}
