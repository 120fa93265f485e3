package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/vango-dev/hashsync/pkg/hash"
	"github.com/vango-dev/hashsync/pkg/remote"
	"github.com/vango-dev/hashsync/pkg/store"
)

// saveTimeout bounds a snapshot write triggered by a hash change.
const saveTimeout = 5 * time.Second

// handleWebSocket bridges one browser tab. Each connection owns a
// hash.Controller; every change notification is echoed to the tab and saved
// under the connection id. A tab that connects with an empty hash and a
// known session id gets its saved data written back.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.track() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.conns.Done()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		s.config.Metrics.WebSocketError("upgrade")
		return
	}

	rc := *s.config.Remote
	rc.Session = r.URL.Query().Get("session")
	if s.config.Metrics != nil {
		rc.Observer = s.config.Metrics
	}
	if rc.TracerName == "" {
		rc.TracerName = s.config.TracerName
	}

	conn, _, err := remote.Accept(ws, rc, s.logger)
	if err != nil {
		s.logger.Warn("websocket handshake failed", "error", err)
		return
	}

	s.config.Metrics.ConnectionOpened()
	defer s.config.Metrics.ConnectionClosed()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	logger := s.logger.With("session_id", conn.ID())
	opts := []hash.Option{
		hash.WithFormat(s.config.Format),
		hash.WithDefault(*s.config.Default),
		hash.WithLogger(logger),
	}
	if s.config.Metrics != nil {
		opts = append(opts, hash.WithObserver(s.config.Metrics))
	}
	ctrl := hash.New(conn.Location(), opts...)
	ctrl.OnChange(func(ch hash.Change) {
		s.save(ctx, conn, ch)
		if err := conn.SendChange(ch); err != nil {
			logger.Debug("change not delivered", "error", err)
		}
	})

	if conn.Location().Hash() == "" {
		s.restore(ctx, conn.ID(), ctrl, logger)
	}

	ctrl.Enable()
	defer ctrl.Disable()
	if err := conn.Welcome(); err != nil {
		logger.Warn("welcome failed", "error", err)
		conn.Close()
		return
	}
	ctrl.Check()

	if err := conn.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Warn("connection ended", "error", err)
	}
}

// restore loads the saved data for id into ctrl.
func (s *Server) restore(ctx context.Context, id string, ctrl *hash.Controller, logger *slog.Logger) {
	snap, err := s.store.Load(ctx, id)
	switch {
	case err == nil:
		ctrl.SetData(snap.Data)
		logger.Info("session restored", "hash", snap.Hash)
	case store.IsNotFound(err):
	default:
		logger.Warn("session restore failed", "error", err)
	}
}

func (s *Server) save(ctx context.Context, conn *remote.Conn, ch hash.Change) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	snap := store.Snapshot{
		ID:        conn.ID(),
		Hash:      s.config.Format.Format(ch.Data),
		Data:      ch.Data,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.Save(ctx, snap); err != nil {
		s.logger.Warn("snapshot save failed", "session_id", conn.ID(), "error", err)
	}
}
