package main

import (
	"github.com/spf13/cobra"

	"github.com/vango-dev/hashsync/pkg/diff"
	"github.com/vango-dev/hashsync/pkg/mapping"
)

func diffCmd(g *globals) *cobra.Command {
	var objects bool

	cmd := &cobra.Command{
		Use:   "diff <from> <to>",
		Short: "Show what changed between two states",
		Long: `Parse two hashes with the configured format and print their diff.

Each key maps to {"op": "add"|"remove"|"change", "value": ...}; a change
carries [old, new]. Values are compared loosely, so "1" equals 1.
With --objects the arguments are flat JSON or YAML objects instead.

Examples:
  hashsync diff "#docs?q=a" "#docs?q=b&debug"
  hashsync diff --objects '{"page": "home"}' '{"page": "about"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := diffInputs(g, objects, args[0], args[1])
			if err != nil {
				return err
			}
			d := diff.Compute(from, to)
			if d == nil {
				d = diff.Diff{}
			}
			return encode(cmd.OutOrStdout(), g.output, d)
		},
	}

	cmd.Flags().BoolVar(&objects, "objects", false, "Treat the arguments as JSON or YAML objects")

	return cmd
}

func diffInputs(g *globals, objects bool, a, b string) (*mapping.Mapping, *mapping.Mapping, error) {
	if objects {
		from, to := mapping.New(), mapping.New()
		if err := decodeInto([]byte(a), from); err != nil {
			return nil, nil, err
		}
		if err := decodeInto([]byte(b), to); err != nil {
			return nil, nil, err
		}
		return from, to, nil
	}

	cfg, err := g.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	f, err := cfg.BuildFormat()
	if err != nil {
		return nil, nil, err
	}
	from, err := parseHash(f, a)
	if err != nil {
		return nil, nil, err
	}
	to, err := parseHash(f, b)
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}
