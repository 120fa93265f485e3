package main

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/hashsync/internal/errors"
)

// encode writes v as indented JSON or as YAML.
func encode(w io.Writer, output string, v any) error {
	switch output {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		// Values without YAML methods go through JSON so their JSON
		// encoding decides the shape.
		if _, ok := v.(yaml.Marshaler); !ok {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			var generic any
			if err := json.Unmarshal(data, &generic); err != nil {
				return err
			}
			v = generic
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return errors.New("H201").WithDetailf("unknown output %q", output).
			WithSuggestion("Use --output=json or --output=yaml")
	}
}

// decodeInto reads a flat JSON or YAML object into v.
func decodeInto(data []byte, v any) error {
	if err := yaml.Unmarshal(data, v); err != nil {
		return errors.New("H400").WithDetail("input must be a flat JSON or YAML object").Wrap(err)
	}
	return nil
}
