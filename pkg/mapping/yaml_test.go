package mapping

import (
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestYAMLRoundTrip(t *testing.T) {
	src := "page: home\nzoom: 4\nratio: 1.5\ndebug: true\nhidden: false\nnothing: null\nquoted: \"12\"\n"

	var m Mapping
	if err := yaml.Unmarshal([]byte(src), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got, want := m.Keys(), []string{"page", "zoom", "ratio", "debug", "quoted"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Keys = %v, want %v", got, want)
	}
	if v, _ := m.Get("zoom"); v.Kind() != KindNumber || v.Float() != 4 {
		t.Errorf("zoom = %#v", v)
	}
	if v, _ := m.Get("quoted"); v.Kind() != KindString {
		t.Errorf("quoted scalars stay strings: %#v", v)
	}
	if v, _ := m.Get("debug"); !v.IsFlag() {
		t.Errorf("debug = %#v, want flag", v)
	}

	out, err := yaml.Marshal(&m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := "page: home\nzoom: 4\nratio: 1.5\ndebug: true\nquoted: \"12\"\n"
	if string(out) != want {
		t.Errorf("Marshal =\n%s\nwant\n%s", out, want)
	}
}

func TestYAMLRejectsNested(t *testing.T) {
	var m Mapping
	err := yaml.Unmarshal([]byte("a:\n  b: 1\n"), &m)
	if err == nil || !strings.Contains(err.Error(), "nested") {
		t.Errorf("err = %v, want nested value error", err)
	}
	if err := yaml.Unmarshal([]byte("- a\n- b\n"), &m); err == nil {
		t.Error("a sequence is not a mapping")
	}
}
