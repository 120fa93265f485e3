package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/hashsync/internal/config"
	"github.com/vango-dev/hashsync/internal/errors"
)

func initCmd() *cobra.Command {
	var (
		useYAML bool
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a hashsync config file",
		Long: `Create hashsync.json (or hashsync.yaml with --yaml) with default
settings in the given directory, or the current one.

Examples:
  hashsync init
  hashsync init --yaml ./deploy`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if config.Exists(dir) && !force {
				return errors.New("H200").
					WithDetail("A config file already exists in " + dir).
					WithSuggestion("Use --force to overwrite it")
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}

			name := config.ConfigFileName
			if useYAML {
				name = config.YAMLConfigFileName
			}
			path := filepath.Join(dir, name)
			if err := config.New().SaveTo(path); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Created %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useYAML, "yaml", false, "Write hashsync.yaml instead of hashsync.json")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}
