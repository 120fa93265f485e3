package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/hashsync/pkg/format"
)

// Duration is a time.Duration written as a string such as "15s". A bare
// number is read as seconds.
type Duration time.Duration

// Seconds returns n seconds as a Duration.
func Seconds(n int) Duration {
	return Duration(time.Duration(n) * time.Second)
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.parse(s)
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a string like \"15s\" or a number of seconds")
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	switch node.ShortTag() {
	case "!!int", "!!float":
		var secs float64
		if err := node.Decode(&secs); err != nil {
			return err
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// QuerySetting is the configured query mode: "off", "all" or a list of keys.
// The zero value means "use the format's default".
type QuerySetting struct {
	Mode string   // "", "off", "all" or "keys"
	Keys []string // for Mode "keys"
}

// IsZero reports whether the setting was left unset.
func (q QuerySetting) IsZero() bool {
	return q.Mode == ""
}

// QueryMode converts the setting for package format. ok is false when the
// setting is unset.
func (q QuerySetting) QueryMode() (mode format.QueryMode, ok bool, err error) {
	switch q.Mode {
	case "":
		return format.QueryOff, false, nil
	case "off":
		return format.QueryOff, true, nil
	case "all":
		return format.QueryAll, true, nil
	case "keys":
		return format.QueryKeys(q.Keys...), true, nil
	default:
		return format.QueryOff, false, fmt.Errorf("format.query must be \"off\", \"all\" or a list of keys; got %q", q.Mode)
	}
}

func (q *QuerySetting) set(mode string) {
	*q = QuerySetting{Mode: strings.ToLower(mode)}
}

// MarshalJSON implements json.Marshaler.
func (q QuerySetting) MarshalJSON() ([]byte, error) {
	if q.Mode == "keys" {
		return json.Marshal(q.Keys)
	}
	return json.Marshal(q.Mode)
}

// UnmarshalJSON implements json.Unmarshaler.
func (q *QuerySetting) UnmarshalJSON(data []byte) error {
	var keys []string
	if err := json.Unmarshal(data, &keys); err == nil {
		*q = QuerySetting{Mode: "keys", Keys: keys}
		return nil
	}
	var mode string
	if err := json.Unmarshal(data, &mode); err != nil {
		return fmt.Errorf("query must be \"off\", \"all\" or a list of keys")
	}
	q.set(mode)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (q QuerySetting) MarshalYAML() (any, error) {
	if q.Mode == "keys" {
		return q.Keys, nil
	}
	return q.Mode, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (q *QuerySetting) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var keys []string
		if err := node.Decode(&keys); err != nil {
			return err
		}
		*q = QuerySetting{Mode: "keys", Keys: keys}
		return nil
	}
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: query must be \"off\", \"all\" or a list of keys", node.Line)
	}
	q.set(node.Value)
	return nil
}
