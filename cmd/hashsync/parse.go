package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/hashsync/internal/errors"
	"github.com/vango-dev/hashsync/pkg/format"
	"github.com/vango-dev/hashsync/pkg/mapping"
)

func parseCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <hash|url>",
		Short: "Parse a hash into data",
		Long: `Parse a hash with the configured format and print the data.

A full URL is accepted; everything up to the first "#" is ignored.
The command fails when the hash does not match the format.

Examples:
  hashsync parse "#docs?q=a+b"
  hashsync parse --template "{section}/{id}" "https://example.com/#docs/intro"
  hashsync parse --format tile -o yaml "4/51.5/-0.12"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			f, err := cfg.BuildFormat()
			if err != nil {
				return err
			}
			m, err := parseHash(f, args[0])
			if err != nil {
				return err
			}
			return encode(cmd.OutOrStdout(), g.output, m)
		},
	}
	return cmd
}

// parseHash parses the fragment of s, which may be a bare hash or a URL.
func parseHash(f format.Format, s string) (*mapping.Mapping, error) {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[i+1:]
	}
	m, ok := f.Parse(s)
	if !ok {
		return nil, errors.New("H400").
			WithDetailf("%q does not match the %s format", s, f.String())
	}
	return m, nil
}
