package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/hashsync/pkg/mapping"
)

func formatCmd(g *globals) *cobra.Command {
	var (
		data   string
		prefix bool
	)

	cmd := &cobra.Command{
		Use:   "format [key=value | flag]...",
		Short: "Format data as a hash",
		Long: `Format key/value data with the configured format and print the hash.

Data comes from the arguments, in order, or from --data as a flat JSON
or YAML object ("-" reads standard input). A bare argument is a flag.

Examples:
  hashsync format path=docs q="a b"
  hashsync format --template "{section}/{id}" section=docs id=intro
  echo '{"z": 4, "x": 1.5, "y": -2}' | hashsync format --format tile --data -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := formatInput(cmd.InOrStdin(), data, args)
			if err != nil {
				return err
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			f, err := cfg.BuildFormat()
			if err != nil {
				return err
			}
			hash := f.Format(m)
			if prefix {
				hash = "#" + hash
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "Flat JSON or YAML object to format (\"-\" for stdin)")
	cmd.Flags().BoolVar(&prefix, "hash", false, "Prefix the output with \"#\"")

	return cmd
}

// formatInput builds the mapping to format from --data or the arguments.
func formatInput(stdin io.Reader, data string, args []string) (*mapping.Mapping, error) {
	if data != "" {
		raw := []byte(data)
		if data == "-" {
			var err error
			if raw, err = io.ReadAll(stdin); err != nil {
				return nil, err
			}
		}
		m := mapping.New()
		if err := decodeInto(raw, m); err != nil {
			return nil, err
		}
		return m, nil
	}

	m := mapping.New()
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			m.Set(key, mapping.Flag())
			continue
		}
		m.Set(key, mapping.String(value))
	}
	return m, nil
}
