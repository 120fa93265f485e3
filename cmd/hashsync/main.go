package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/hashsync/internal/config"
	"github.com/vango-dev/hashsync/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globals holds the persistent flags shared by every command.
type globals struct {
	configPath string
	kind       string
	template   string
	query      string
	output     string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.Fprint(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "hashsync",
		Short: "Keep application state in the URL hash",
		Long: `hashsync maps key/value state to and from the URL hash fragment.

Commands format data into hashes, parse hashes back into data,
diff two states, and serve a websocket bridge that keeps a
browser tab's location.hash in sync with server-side state.

Configuration is read from hashsync.json or hashsync.yaml in the
current directory or its nearest parent.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(g.logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "Config file (default: hashsync.json or hashsync.yaml in the project root)")
	flags.StringVarP(&g.kind, "format", "f", "", "Format kind: path, query, tile or template")
	flags.StringVarP(&g.template, "template", "t", "", "Template text, e.g. \"{section}/{id}\" (implies --format=template)")
	flags.StringVarP(&g.query, "query", "q", "", "Query mode: off, all or a comma-separated key list")
	flags.StringVarP(&g.output, "output", "o", "json", "Output encoding: json or yaml")
	flags.StringVar(&g.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(
		formatCmd(g),
		parseCmd(g),
		diffCmd(g),
		serveCmd(g),
		initCmd(),
		versionCmd(),
	)
	return rootCmd
}

// loadConfig reads the config file and applies flag overrides. Without a
// --config flag a missing file is not an error.
func (g *globals) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case g.configPath != "":
		cfg, err = config.LoadFile(g.configPath)
	default:
		cfg, err = config.LoadFromWorkingDir()
		if errors.Code(err) == errors.ErrConfigLoad.Code && !configExistsUpwards() {
			cfg, err = config.New(), nil
		}
	}
	if err != nil {
		return nil, err
	}

	if g.template != "" {
		cfg.Format.Kind = config.FormatTemplate
		cfg.Format.Template = g.template
	}
	if g.kind != "" {
		cfg.Format.Kind = g.kind
	}
	if g.query != "" {
		switch q := strings.ToLower(g.query); q {
		case "off", "all":
			cfg.Format.Query = config.QuerySetting{Mode: q}
		default:
			cfg.Format.Query = config.QuerySetting{Mode: "keys", Keys: splitList(g.query)}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configExistsUpwards() bool {
	wd, err := os.Getwd()
	if err != nil {
		return false
	}
	_, err = config.FindProjectRoot(wd)
	return err == nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.New("H201").WithDetailf("unknown log level %q", s).
			WithSuggestion("Use debug, info, warn or error")
	}
	return level, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
