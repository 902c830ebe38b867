package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/zsiec/gre2g/internal/blobstore"
	"github.com/zsiec/gre2g/internal/errors"
	"github.com/zsiec/gre2g/internal/logger"
	"github.com/zsiec/gre2g/internal/registry"
	"github.com/zsiec/gre2g/pkg/version"
)

// LevelResponse lists the entry names of one level.
type LevelResponse struct {
	Path    string   `json:"path"`
	Entries []string `json:"entries"`
}

// RunsResponse lists indexing runs, newest first.
type RunsResponse struct {
	Runs  []*registry.Run `json:"runs"`
	Total int             `json:"total"`
}

// handleVersion handles the /version endpoint
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	s.writeJSON(w, r, http.StatusOK, version.GetInfo())
}

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	path := blobstore.SplitPath(mux.Vars(r)["path"])

	names, err := s.store.GetLevelContent(path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, r, http.StatusOK, LevelResponse{Path: blobstore.JoinPath(path), Entries: names})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	path := blobstore.SplitPath(mux.Vars(r)["path"])
	if len(path) == 0 {
		s.writeError(w, r, errors.NewValidationError("file path must not be empty"))
		return
	}

	data, err := s.store.GetFile(path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.WithError(err).Debug("Failed to write file response")
	}
}

// handleListRuns lists runs, optionally filtered by ?status= and capped by ?limit=.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	var limit int
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, r, errors.NewValidationErrorf("invalid limit %q", v))
			return
		}
		limit = n
	}
	status := registry.RunStatus(r.URL.Query().Get("status"))
	switch status {
	case "", registry.StatusRunning, registry.StatusCompleted, registry.StatusFailed:
	default:
		s.writeError(w, r, errors.NewValidationErrorf("invalid status %q", status))
		return
	}

	runs, err := s.runs.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]*registry.Run, 0, len(runs))
	for _, run := range runs {
		if status != "" && run.Status != status {
			continue
		}
		out = append(out, run)
	}
	total := len(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	s.writeJSON(w, r, http.StatusOK, RunsResponse{Runs: out, Total: total})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, run)
}

// writeJSON is a helper to write JSON responses
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).WithError(err).Error("Failed to encode response")
	}
}

// writeError is a helper to write error responses
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.errorHandler.HandleError(w, r, err)
}
