package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/vango-dev/hashsync/pkg/format"
	"github.com/vango-dev/hashsync/pkg/hash"
	"github.com/vango-dev/hashsync/pkg/metrics"
	"github.com/vango-dev/hashsync/pkg/remote"
	"github.com/vango-dev/hashsync/pkg/store"
)

// Config holds server settings. Zero fields take the values from
// DefaultConfig.
type Config struct {
	// Addr is the listen address.
	// Default: "localhost:8787".
	Addr string

	// ReadTimeout and WriteTimeout bound plain HTTP requests. Websocket
	// connections are hijacked and use Remote's timeouts instead.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 10 seconds.
	ShutdownTimeout time.Duration

	// Format writes and parses hashes for every connection and for the API.
	// Default: format.NewPath().
	Format format.Format

	// Default is the controller policy for unparseable hashes.
	// Default: hash.DefaultIdentity.
	Default *hash.Default

	// Store persists the last data of each connection.
	// Default: an in-memory store.
	Store store.Store

	// Metrics enables /metrics and instrumentation. Nil disables both.
	Metrics *metrics.Collector

	// TracerName enables request spans when non-empty.
	TracerName string

	// Remote configures the websocket bridge.
	// Default: remote.DefaultConfig().
	Remote *remote.Config

	// CheckOrigin validates websocket origins.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// Logger is the server logger.
	// Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	d := hash.DefaultIdentity
	rc := remote.DefaultConfig()
	return Config{
		Addr:            "localhost:8787",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Format:          format.NewPath(),
		Default:         &d,
		Store:           store.NewMemoryStore(),
		Remote:          &rc,
		CheckOrigin:     SameOriginCheck,
		Logger:          slog.Default(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.Format == nil {
		c.Format = d.Format
	}
	if c.Default == nil {
		c.Default = d.Default
	}
	if c.Store == nil {
		c.Store = d.Store
	}
	if c.Remote == nil {
		c.Remote = d.Remote
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = d.CheckOrigin
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	return c
}

// SameOriginCheck accepts requests without an Origin header and requests
// whose Origin host matches the Host header.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// No Origin header (e.g., same-origin request or curl)
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := r.Host
	if host == "" {
		return false
	}
	return originURL.Host == host
}

// AllowOrigins returns an origin check that accepts the listed origins, any
// origin when the list contains "*", and same-origin requests otherwise.
func AllowOrigins(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		if allowed[r.Header.Get("Origin")] {
			return true
		}
		return SameOriginCheck(r)
	}
}
