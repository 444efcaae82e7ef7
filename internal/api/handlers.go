// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/clipforge/internal/queue"
)

// submitRequest is the POST /jobs payload.
type submitRequest struct {
	File     queue.FileInfo `json:"file"`
	Metadata queue.Metadata `json:"metadata"`
}

// queueStatus is the GET /queue payload.
type queueStatus struct {
	Paused      bool  `json:"paused"`
	Jobs        int   `json:"jobs"`
	EstimatedMs int64 `json:"estimatedMs,omitempty"`
	HasEstimate bool  `json:"hasEstimate"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.validate.submit(&req); err != nil {
		writeError(w, err)
		return
	}

	job, err := s.mgr.Submit(r.Context(), req.File, req.Metadata)
	switch {
	case errors.Is(err, queue.ErrQueueClosed):
		writeServiceUnavailable(w, err)
		return
	case err != nil:
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":   s.mgr.Jobs(),
		"paused": s.mgr.Paused(),
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.mgr.Get(chi.URLParam(r, "id"))
	if !ok {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleRemoveJob(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	removed, err := s.mgr.Remove(r.Context(), chi.URLParam(r, "id"), force)
	switch {
	case errors.Is(err, queue.ErrJobProcessing):
		writeConflict(w, err)
		return
	case err != nil:
		writeError(w, err)
		return
	case !removed:
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	retried, err := s.mgr.Retry(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !retried {
		if _, ok := s.mgr.Get(id); !ok {
			writeNotFound(w)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"retried": retried})
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, _ *http.Request) {
	eta, ok := s.mgr.EstimatedTimeRemaining()
	writeJSON(w, http.StatusOK, queueStatus{
		Paused:      s.mgr.Paused(),
		Jobs:        len(s.mgr.Jobs()),
		EstimatedMs: eta.Milliseconds(),
		HasEstimate: ok,
	})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Pause(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Resume(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

func (s *Server) handleCancelCurrent(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.CancelCurrent(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (s *Server) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	count, err := s.mgr.ClearCompleted(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": count})
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	count, err := s.mgr.ClearAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": count})
}
