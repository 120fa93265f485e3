package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/hashsync/pkg/store"
)

// Server is the HTTP and websocket server.
type Server struct {
	config   Config
	store    store.Store
	router   chi.Router
	upgrader websocket.Upgrader
	logger   *slog.Logger

	// ctx is canceled by Shutdown; websocket connections are tied to it
	// because http.Server.Shutdown does not close hijacked connections.
	ctx    context.Context
	cancel context.CancelFunc
	conns  sync.WaitGroup

	mu         sync.Mutex
	httpServer *http.Server
}

// New creates a Server.
func New(config Config) *Server {
	config = config.withDefaults()
	logger := config.Logger.With("component", "server")

	st := config.Store
	if config.Metrics != nil {
		st = store.Observed(st, config.Metrics)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config: config,
		store:  st,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     config.CheckOrigin,
		},
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	if s.config.Metrics != nil {
		r.Use(s.config.Metrics.Middleware)
	}
	if s.config.TracerName != "" {
		r.Use(Tracing(s.config.TracerName))
	}

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/format", s.handleFormatQuery)
		r.Post("/format", s.handleFormatJSON)
		r.Post("/parse", s.handleParse)
		r.Post("/diff", s.handleDiff)
		r.Get("/snapshots", s.handleListSnapshots)
		r.Get("/snapshots/{id}", s.handleGetSnapshot)
		r.Delete("/snapshots/{id}", s.handleDeleteSnapshot)
	})
	r.Get("/ws", s.handleWebSocket)
	if s.config.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.config.Metrics.Handler())
	}
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Store returns the snapshot store, wrapped with metrics when enabled.
func (s *Server) Store() store.Store {
	return s.store
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// ListenAndServe serves on Config.Addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes every websocket connection and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	// Close websocket connections first. Canceling under mu keeps track
	// from adding to conns once Wait may have started.
	s.mu.Lock()
	s.cancel()
	srv := s.httpServer
	s.mu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("websocket connections still open after shutdown timeout")
		return ctx.Err()
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// track registers a websocket connection with conns. It reports false once
// Shutdown has begun.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.conns.Add(1)
	return true
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
