package format

import (
	"math"
	"math/big"
	"strings"

	"github.com/vango-dev/hashsync/pkg/mapping"
)

// TileTemplate is the template used by Tile formats.
const TileTemplate = "{z}/{y}/{x}"

// maxPrecision bounds the number of decimals written for a coordinate.
const maxPrecision = 100

// Precision decides how many decimals tile coordinates keep. It is either a
// constant or a function of the zoom level; the zero Precision is
// ZoomPrecision.
type Precision struct {
	fn       func(z float64) int
	constant int
	fixed    bool
}

// ConstantPrecision always uses n decimals.
func ConstantPrecision(n int) Precision {
	return Precision{constant: n, fixed: true}
}

// PrecisionFunc derives the decimals from the zoom level.
func PrecisionFunc(fn func(z float64) int) Precision {
	return Precision{fn: fn}
}

// ZoomPrecision keeps max(0, ceil(log2(z))) decimals: coarse at low zoom,
// finer as the map zooms in.
func ZoomPrecision() Precision {
	return PrecisionFunc(zoomDigits)
}

func zoomDigits(z float64) int {
	d := math.Ceil(math.Log2(z))
	if math.IsNaN(d) || d < 0 {
		return 0
	}
	if d > maxPrecision {
		return maxPrecision
	}
	return int(d)
}

// Digits returns the number of decimals for zoom level z, clamped to
// [0, 100].
func (p Precision) Digits(z float64) int {
	var n int
	switch {
	case p.fixed:
		n = p.constant
	case p.fn != nil:
		n = p.fn(z)
	default:
		n = zoomDigits(z)
	}
	if n < 0 {
		return 0
	}
	if n > maxPrecision {
		return maxPrecision
	}
	return n
}

// Tile is the "{z}/{y}/{x}" map-tile format. Parsed coordinates are numbers,
// and formatting rounds x and y to a zoom-dependent number of decimals:
//
//	NewTile().Format({z: 4, x: 1, y: 2}) // "4/2.00/1.00"
//	NewTile().Parse("4/2.00/1.00")       // {z: 4, y: 2, x: 1}
//
// Other keys travel in the query string (QueryAll unless WithQuery says
// otherwise).
type Tile struct {
	tmpl      *Template
	precision Precision
}

var _ Format = (*Tile)(nil)

// NewTile creates a Tile format. WithQuery, WithCodec and WithPrecision are
// honoured.
func NewTile(opts ...Option) *Tile {
	o := buildOptions(opts)
	q := QueryAll
	if o.query != nil {
		q = *o.query
	}
	t := &Tile{
		tmpl:      MustNew(TileTemplate, WithQuery(q), WithCodec(o.codec)),
		precision: ZoomPrecision(),
	}
	if o.precision != nil {
		t.precision = *o.precision
	}
	return t
}

// Precision returns the precision policy.
func (t *Tile) Precision() Precision {
	return t.precision
}

// WithPrecision returns a copy of t using p.
func (t *Tile) WithPrecision(p Precision) *Tile {
	cp := *t
	cp.precision = p
	return &cp
}

// Query returns the query mode of the underlying template.
func (t *Tile) Query() QueryMode {
	return t.tmpl.Query()
}

// WithQuery returns a copy of t using query mode q.
func (t *Tile) WithQuery(q QueryMode) *Tile {
	cp := *t
	cp.tmpl = t.tmpl.WithQuery(q)
	return &cp
}

// String returns the template text.
func (t *Tile) String() string {
	return t.tmpl.String()
}

// Format rounds x and y when z is set and renders the template. The caller's
// mapping is not modified.
func (t *Tile) Format(m *mapping.Mapping) string {
	if z, ok := m.Get("z"); ok && !z.IsEmpty() {
		digits := t.precision.Digits(z.Float())
		m = m.Clone()
		for _, key := range []string{"x", "y"} {
			m.Set(key, mapping.String(toFixed(coordinate(m, key), digits)))
		}
	}
	return t.tmpl.Format(m)
}

// Match reports whether s has the tile shape. Coordinates are not checked
// for being numeric; Parse is.
func (t *Tile) Match(s string) bool {
	return t.tmpl.Match(s)
}

// Parse matches s and converts z, x and y to numbers. It fails if any of them
// is not numeric.
func (t *Tile) Parse(s string) (*mapping.Mapping, bool) {
	m, ok := t.tmpl.Parse(s)
	if !ok {
		return nil, false
	}
	for _, key := range []string{"z", "x", "y"} {
		v, _ := m.Get(key)
		n := v.Float()
		if math.IsNaN(n) {
			return nil, false
		}
		m.Set(key, mapping.Number(n))
	}
	return m, true
}

// coordinate reads key as a number; a missing key is NaN.
func coordinate(m *mapping.Mapping, key string) float64 {
	v, ok := m.Get(key)
	if !ok {
		return math.NaN()
	}
	return v.Float()
}

// toFixed renders f with the given number of decimals. Exact ties round away
// from zero; strconv rounds them to even, which would disagree with URLs
// produced by a browser.
func toFixed(f float64, digits int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return mapping.FormatNumber(f)
	}

	const prec = 1024
	x := new(big.Float).SetPrec(prec).SetFloat64(math.Abs(f))
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	x.Mul(x, new(big.Float).SetPrec(prec).SetInt(scale))
	x.Add(x, big.NewFloat(0.5))
	n, _ := x.Int(nil)

	s := n.String()
	if digits > 0 {
		if len(s) <= digits {
			s = strings.Repeat("0", digits-len(s)+1) + s
		}
		s = s[:len(s)-digits] + "." + s[len(s)-digits:]
	}
	if f < 0 {
		s = "-" + s
	}
	return s
}
