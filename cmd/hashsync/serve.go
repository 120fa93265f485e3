package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/hashsync/internal/config"
	"github.com/vango-dev/hashsync/pkg/metrics"
	"github.com/vango-dev/hashsync/pkg/remote"
	"github.com/vango-dev/hashsync/pkg/server"
)

func serveCmd(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the hash sync server",
		Long: `Start the HTTP API and the websocket bridge.

Browser tabs connect to /ws and report their location.hash; the server
parses it, answers with change notifications and writes hashes back.
Each tab's last state is saved to the configured store.

Examples:
  hashsync serve
  hashsync serve --addr=:8787 --template "{section}/{id}"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			srvConfig, err := serverConfig(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			success(cmd.OutOrStdout(), "Serving %s hashes on http://%s", cfg.Format.Kind, cfg.Server.Addr)
			if cfg.Metrics.Enabled {
				info(cmd.OutOrStdout(), "Metrics at http://%s/metrics", cfg.Server.Addr)
			}
			return server.New(srvConfig).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")

	return cmd
}

// serverConfig translates the file config into server settings.
func serverConfig(cfg *config.Config) (server.Config, error) {
	f, err := cfg.BuildFormat()
	if err != nil {
		return server.Config{}, err
	}
	st, err := openStore(cfg)
	if err != nil {
		return server.Config{}, err
	}
	def := cfg.BuildDefault()

	rc := remote.DefaultConfig()
	rc.MaxMessageBytes = cfg.Server.MaxMessageBytes
	rc.EventsPerSecond = cfg.Server.EventsPerSecond
	rc.Burst = cfg.Server.Burst
	rc.TracerName = cfg.Tracing.TracerName

	sc := server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout.Std(),
		WriteTimeout:    cfg.Server.WriteTimeout.Std(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Std(),
		Format:          f,
		Default:         &def,
		Store:           st,
		Remote:          &rc,
		CheckOrigin:     server.AllowOrigins(cfg.Server.AllowedOrigins),
		Logger:          slog.Default(),
	}
	if cfg.Metrics.Enabled {
		sc.Metrics = metrics.New(metrics.WithNamespace(cfg.Metrics.Namespace))
	}
	if cfg.Tracing.Enabled {
		sc.TracerName = cfg.Tracing.TracerName
	}
	return sc, nil
}
