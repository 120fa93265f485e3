package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/hashsync/internal/errors"
	"github.com/vango-dev/hashsync/pkg/diff"
	"github.com/vango-dev/hashsync/pkg/mapping"
	"github.com/vango-dev/hashsync/pkg/qs"
)

// maxBodyBytes bounds API request bodies.
const maxBodyBytes = 1 << 20

// FormatRequest is the body of POST /api/format.
type FormatRequest struct {
	Data *mapping.Mapping `json:"data"`
}

// FormatResponse is returned by /api/format.
type FormatResponse struct {
	Hash string `json:"hash"`
}

// ParseRequest is the body of POST /api/parse. A leading "#" is ignored.
type ParseRequest struct {
	Hash string `json:"hash"`
}

// ParseResponse is returned by /api/parse. Data is null when OK is false.
type ParseResponse struct {
	Data *mapping.Mapping `json:"data"`
	OK   bool             `json:"ok"`
}

// DiffRequest is the body of POST /api/diff.
type DiffRequest struct {
	A *mapping.Mapping `json:"a"`
	B *mapping.Mapping `json:"b"`
}

// SnapshotList is returned by GET /api/snapshots.
type SnapshotList struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// handleFormatQuery formats the request's own query parameters, in order.
func (s *Server) handleFormatQuery(w http.ResponseWriter, r *http.Request) {
	data, ok := qs.Parse(r.URL.RawQuery)
	if !ok {
		data = mapping.New()
	}
	writeJSON(w, http.StatusOK, FormatResponse{Hash: s.config.Format.Format(data)})
}

func (s *Server) handleFormatJSON(w http.ResponseWriter, r *http.Request) {
	var req FormatRequest
	if !s.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, FormatResponse{Hash: s.config.Format.Format(req.Data)})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if !s.decode(w, r, &req) {
		return
	}
	data, ok := s.config.Format.Parse(strings.TrimPrefix(req.Hash, "#"))
	if !ok {
		data = nil
	}
	writeJSON(w, http.StatusOK, ParseResponse{Data: data, OK: ok})
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	var req DiffRequest
	if !s.decode(w, r, &req) {
		return
	}
	d := diff.Compute(req.A, req.B)
	if d == nil {
		d = diff.Diff{}
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, SnapshotList{IDs: ids})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode reads a JSON body into v. On failure it writes an H400 response
// and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		s.writeError(w, r, errors.New("H400").WithDetail("request body must be a JSON object").Wrap(err))
		return false
	}
	return true
}

// writeError maps coded errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch errors.Code(err) {
	case errors.ErrProtocol.Code, errors.ErrConfigValidation.Code:
		status = http.StatusBadRequest
	case errors.ErrNotFound.Code:
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: errors.FromError(err, errors.ErrStoreIO.Code)})
}

type errorResponse struct {
	Error *errors.Error `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
