// Package hashsync provides the public API for keeping application state in
// the URL hash fragment.
//
// This is the recommended import for most applications:
//
//	import "github.com/vango-dev/hashsync"
//
// Usage:
//
//	loc := hashsync.NewMemoryLocation("#docs/intro")
//	ctrl := hashsync.NewController(loc,
//	    hashsync.WithFormat(hashsync.MustTemplate("{section}/{id}")),
//	    hashsync.WithOnChange(func(ch hashsync.Change) {
//	        log.Println(ch.Diff)
//	    }),
//	)
//	ctrl.Enable()
//	ctrl.Check()
package hashsync

import (
	"github.com/vango-dev/hashsync/pkg/diff"
	"github.com/vango-dev/hashsync/pkg/format"
	"github.com/vango-dev/hashsync/pkg/hash"
	"github.com/vango-dev/hashsync/pkg/mapping"
	"github.com/vango-dev/hashsync/pkg/qs"
)

// =============================================================================
// Data
// =============================================================================

// Mapping is an ordered string-keyed map of scalar values.
type Mapping = mapping.Mapping

// Value is a string, number or flag.
type Value = mapping.Value

// Entry is one key/value pair for NewMapping.
type Entry = mapping.Entry

// NewMapping creates a Mapping from entries, in order.
var NewMapping = mapping.New

// KV builds an Entry. Strings, numbers and true are accepted.
var KV = mapping.KV

// Extend copies the keys of every source into dst, in order.
var Extend = mapping.Extend

// =============================================================================
// Formats
// =============================================================================

// Format converts between a Mapping and a hash string.
type Format = format.Format

// FormatOption configures a format.
type FormatOption = format.Option

// QueryMode selects which keys travel in the query string.
type QueryMode = format.QueryMode

var (
	QueryOff  = format.QueryOff
	QueryAll  = format.QueryAll
	QueryKeys = format.QueryKeys
)

var (
	WithQuery     = format.WithQuery
	WithCodec     = format.WithCodec
	WithPrecision = format.WithPrecision
)

// Template compiles a "{name}" template such as "{section}/{id}".
func Template(text string, opts ...FormatOption) (*format.Template, error) {
	return format.New(text, opts...)
}

// MustTemplate is like Template but panics on error.
func MustTemplate(text string, opts ...FormatOption) *format.Template {
	return format.MustNew(text, opts...)
}

// Path returns the "path?query" format.
func Path(opts ...FormatOption) *format.Path {
	return format.NewPath(opts...)
}

// Query returns the bare query-string format.
func Query(opts ...FormatOption) *format.Query {
	return format.NewQuery(opts...)
}

// Tile returns the "{z}/{y}/{x}" map-tile format.
func Tile(opts ...FormatOption) *format.Tile {
	return format.NewTile(opts...)
}

// QueryCodec holds the query-string separator and substitutions.
type QueryCodec = qs.Codec

// =============================================================================
// Controller
// =============================================================================

// Controller keeps a Mapping and a Location in sync.
type Controller = hash.Controller

// Location is the hash a Controller reads and writes.
type Location = hash.Location

// Change is passed to the change callback.
type Change = hash.Change

// Default is the policy for hashes that do not parse.
type Default = hash.Default

// Option configures a Controller.
type Option = hash.Option

// NewController creates a Controller over loc.
func NewController(loc Location, opts ...Option) *Controller {
	return hash.New(loc, opts...)
}

// NewMemoryLocation returns an in-process Location.
var NewMemoryLocation = hash.NewMemoryLocation

var (
	WithFormat   = hash.WithFormat
	WithParser   = hash.WithParser
	WithDefault  = hash.WithDefault
	WithOnChange = hash.WithOnChange
	WithData     = hash.WithData
	WithLogger   = hash.WithLogger
	WithObserver = hash.WithObserver
)

var (
	DefaultIdentity = hash.DefaultIdentity
	NoDefault       = hash.NoDefault
	DefaultValue    = hash.DefaultValue
	DefaultFunc     = hash.DefaultFunc
)

// =============================================================================
// Diff
// =============================================================================

// Diff maps each changed key to its change.
type Diff = diff.Diff

// Diff ops.
const (
	OpAdd    = diff.OpAdd
	OpRemove = diff.OpRemove
	OpChange = diff.OpChange
)

// Compare returns what changed from a to b, using loose equality.
var Compare = diff.Compute
