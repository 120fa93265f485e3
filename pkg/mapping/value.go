package mapping

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type held by a Value.
type Kind uint8

const (
	// KindString is a plain string value.
	KindString Kind = iota

	// KindNumber is a float64 value.
	KindNumber

	// KindFlag is a boolean true. It serializes as a bare query key.
	KindFlag
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindFlag:
		return "flag"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Value is a single Mapping value: a string, a number or a flag (boolean true).
// The zero Value is the empty string.
type Value struct {
	kind Kind
	s    string
	n    float64
}

// String creates a string value.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Number creates a numeric value.
func Number(f float64) Value {
	return Value{kind: KindNumber, n: f}
}

// Int creates a numeric value from an integer.
func Int(i int) Value {
	return Number(float64(i))
}

// Flag creates a boolean-true value.
func Flag() Value {
	return Value{kind: KindFlag}
}

// ValueOf converts a Go value into a Value.
// Supported inputs are string, bool (true only), the integer kinds, float32,
// float64 and Value itself.
func ValueOf(v any) (Value, bool) {
	switch val := v.(type) {
	case Value:
		return val, true
	case string:
		return String(val), true
	case bool:
		if !val {
			return Value{}, false
		}
		return Flag(), true
	case int:
		return Number(float64(val)), true
	case int8:
		return Number(float64(val)), true
	case int16:
		return Number(float64(val)), true
	case int32:
		return Number(float64(val)), true
	case int64:
		return Number(float64(val)), true
	case uint:
		return Number(float64(val)), true
	case uint8:
		return Number(float64(val)), true
	case uint16:
		return Number(float64(val)), true
	case uint32:
		return Number(float64(val)), true
	case uint64:
		return Number(float64(val)), true
	case float32:
		return Number(float64(val)), true
	case float64:
		return Number(val), true
	default:
		return Value{}, false
	}
}

// Kind returns the value's kind.
func (v Value) Kind() Kind {
	return v.kind
}

// IsFlag reports whether v is a flag.
func (v Value) IsFlag() bool {
	return v.kind == KindFlag
}

// IsEmpty reports whether v is the empty string. Numbers and flags are never empty.
func (v Value) IsEmpty() bool {
	return v.kind == KindString && v.s == ""
}

// String returns the textual form used in hash strings.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return FormatNumber(v.n)
	case KindFlag:
		return "true"
	default:
		return v.s
	}
}

// Float converts the value to a number using the same coercion rules a
// browser applies to hash data: strings are trimmed, the empty string is 0,
// hexadecimal and Infinity literals are accepted, anything else is NaN.
// A flag is 1.
func (v Value) Float() float64 {
	switch v.kind {
	case KindNumber:
		return v.n
	case KindFlag:
		return 1
	default:
		return ToNumber(v.s)
	}
}

// Any returns the value as a plain Go value (string, float64 or bool).
func (v Value) Any() any {
	switch v.kind {
	case KindNumber:
		return v.n
	case KindFlag:
		return true
	default:
		return v.s
	}
}

// GoString implements fmt.GoStringer for readable test failures.
func (v Value) GoString() string {
	switch v.kind {
	case KindNumber:
		return "Number(" + FormatNumber(v.n) + ")"
	case KindFlag:
		return "Flag()"
	default:
		return "String(" + strconv.Quote(v.s) + ")"
	}
}

// LooseEqual compares two values the way hash data is compared on change
// detection: a string and a number are equal when the string coerces to the
// number, so String("1") equals Number(1). Two strings compare exactly.
func LooseEqual(a, b Value) bool {
	if a.kind == KindString && b.kind == KindString {
		return a.s == b.s
	}
	if a.kind == KindFlag && b.kind == KindFlag {
		return true
	}
	x, y := a.Float(), b.Float()
	return x == y
}

// StrictEqual compares kind and value. NaN equals NaN here so that Equal is
// reflexive.
func StrictEqual(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNumber:
		return a.n == b.n || (math.IsNaN(a.n) && math.IsNaN(b.n))
	case KindFlag:
		return true
	default:
		return a.s == b.s
	}
}

// FormatNumber renders f the way a browser stringifies numbers.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		// Browsers print 1e-7 where Go prints 1e-07.
		mant, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		if digits == "" {
			digits = "0"
		}
		return mant + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ToNumber coerces a string to a number. See Value.Float.
func ToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	lower := strings.ToLower(s)
	for _, p := range []struct {
		prefix string
		base   int
	}{{"0x", 16}, {"0o", 8}, {"0b", 2}} {
		if strings.HasPrefix(lower, p.prefix) {
			n, err := strconv.ParseUint(s[2:], p.base, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		}
	}
	// ParseFloat accepts forms like "inf", "nan", hex floats and underscores
	// that a browser rejects.
	for _, r := range lower {
		if !strings.ContainsRune("0123456789.e+-", r) {
			return math.NaN()
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return f
		}
		return math.NaN()
	}
	return f
}
