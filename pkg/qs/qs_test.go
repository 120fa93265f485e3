package qs

import (
	"reflect"
	"testing"

	"github.com/vango-dev/hashsync/pkg/mapping"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *mapping.Mapping
	}{
		{"simple", "a=1&b=2", mapping.New(mapping.KV("a", "1"), mapping.KV("b", "2"))},
		{"leading question mark", "?q=x", mapping.New(mapping.KV("q", "x"))},
		{"flag", "debug&q=x", mapping.New(mapping.KV("debug", true), mapping.KV("q", "x"))},
		{"plus is space", "q=a+b", mapping.New(mapping.KV("q", "a b"))},
		{"percent", "q=a%2Bb%20c", mapping.New(mapping.KV("q", "a+b c"))},
		{"first equals splits", "expr=a=b", mapping.New(mapping.KV("expr", "a=b"))},
		{"empty value", "q=", mapping.New(mapping.KV("q", ""))},
		{"malformed escape kept", "q=100%", mapping.New(mapping.KV("q", "100%"))},
		{"encoded key", "my%20key=1", mapping.New(mapping.KV("my key", "1"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.in)
			if !ok {
				t.Fatalf("Parse(%q) failed", tt.in)
			}
			if !mapping.Equal(got, tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	for _, in := range []string{"", "?"} {
		if m, ok := Parse(in); ok || m != nil {
			t.Errorf("Parse(%q) = %v, %v; want nil, false", in, m, ok)
		}
	}
}

func TestParseDuplicateKeys(t *testing.T) {
	got, _ := Parse("a=1&b=2&a=3")
	if keys := got.Keys(); !reflect.DeepEqual(keys, []string{"a", "b"}) {
		t.Errorf("keys: got %v, want [a b]", keys)
	}
	if v, _ := got.Get("a"); v.String() != "3" {
		t.Errorf("a: got %q, want last value 3", v.String())
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		in   *mapping.Mapping
		sort bool
		want string
	}{
		{"nil", nil, false, ""},
		{"empty", mapping.New(), false, ""},
		{"insertion order", mapping.New(mapping.KV("b", "2"), mapping.KV("a", "1")), false, "b=2&a=1"},
		{"sorted", mapping.New(mapping.KV("b", "2"), mapping.KV("a", "1")), true, "a=1&b=2"},
		{"flag", mapping.New(mapping.KV("debug", true), mapping.KV("q", "x")), false, "debug&q=x"},
		{"skips empty", mapping.New(mapping.KV("a", ""), mapping.KV("b", "x")), false, "b=x"},
		{"number", mapping.New(mapping.KV("z", 3), mapping.KV("x", 1.25)), false, "z=3&x=1.25"},
		{"space and comma", mapping.New(mapping.KV("q", "a b,c")), false, "q=a+b,c"},
		{"other escapes stay", mapping.New(mapping.KV("q", "a/b&c=d")), false, "q=a%2Fb%26c%3Dd"},
		{"unreserved", mapping.New(mapping.KV("q", "a-b_c.d!e~f*g'h(i)")), false, "q=a-b_c.d!e~f*g'h(i)"},
		{"utf8", mapping.New(mapping.KV("q", "é")), false, "q=%C3%A9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.in, tt.sort); got != tt.want {
				t.Errorf("Format(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []*mapping.Mapping{
		mapping.New(mapping.KV("q", "hello world"), mapping.KV("tags", "a,b,c")),
		mapping.New(mapping.KV("flag", true), mapping.KV("path", "x/y/z")),
		mapping.New(mapping.KV("z", 4), mapping.KV("ratio", 0.5)),
		mapping.New(mapping.KV("unicode", "日本"), mapping.KV("pct", "100%")),
	}
	for _, in := range inputs {
		back, ok := Parse(Format(in, false))
		if !ok {
			t.Fatalf("round trip of %v failed to parse", in)
		}
		if !reflect.DeepEqual(back.Keys(), in.Keys()) {
			t.Errorf("round trip keys: got %v, want %v", back.Keys(), in.Keys())
		}
		in.Range(func(k string, v mapping.Value) bool {
			got, _ := back.Get(k)
			if !mapping.LooseEqual(got, v) {
				t.Errorf("round trip %s: got %#v, want %#v", k, got, v)
			}
			return true
		})
	}
}

func TestCustomCodec(t *testing.T) {
	c := Codec{Separator: ";", Replacements: map[string]string{"%2F": "/"}}
	m := mapping.New(mapping.KV("path", "a/b c"), mapping.KV("x", "1"))
	got := c.Format(m, false)
	if want := "path=a/b%20c;x=1"; got != want {
		t.Errorf("Format: got %q, want %q", got, want)
	}
	back, _ := c.Parse(got)
	if v, _ := back.Get("path"); v.String() != "a/b c" {
		t.Errorf("Parse path: got %q", v.String())
	}
}
