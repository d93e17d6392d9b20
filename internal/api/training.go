package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sschepis/symprime-mentor-ai/internal/model"
	"github.com/sschepis/symprime-mentor-ai/internal/store"
	"github.com/sschepis/symprime-mentor-ai/internal/trainer"
)

// startTrainingRequest is the JSON body for POST /v1/training.
type startTrainingRequest struct {
	EngineID string         `json:"engine_id"`
	Config   trainer.Config `json:"config"`
}

// listSessionsResponse wraps the list response.
type listSessionsResponse struct {
	Sessions []*model.TrainingSession `json:"sessions"`
}

func (s *Server) handleStartTraining(w http.ResponseWriter, r *http.Request) {
	var req startTrainingRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.EngineID == "" {
		s.writeError(w, http.StatusBadRequest, "Engine ID required")
		return
	}

	session, err := s.trainer.Start(r.Context(), s.userID(r), req.EngineID, req.Config)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Engine not found")
		return
	}
	if err != nil {
		s.logger.Error("start training", "engine_id", req.EngineID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to start training")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]*model.TrainingSession{"session": session})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context(), s.userID(r))
	if err != nil {
		s.logger.Error("list sessions", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*model.TrainingSession{}
	}
	s.writeJSON(w, http.StatusOK, listSessionsResponse{Sessions: sessions})
}

func (s *Server) handleGetTrainingSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.GetSession(r.Context(), s.userID(r), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.logger.Error("get session", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}
	s.writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.trainer.Cancel(r.Context(), s.userID(r), chi.URLParam(r, "id"))
	s.writeSessionMutation(w, session, err, "cancel session")
}

func (s *Server) handlePauseSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.trainer.Pause(r.Context(), s.userID(r), chi.URLParam(r, "id"))
	s.writeSessionMutation(w, session, err, "pause session")
}

func (s *Server) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.trainer.Resume(r.Context(), s.userID(r), chi.URLParam(r, "id"))
	s.writeSessionMutation(w, session, err, "resume session")
}

// writeSessionMutation maps trainer lifecycle errors onto HTTP statuses and
// writes the resulting session row.
func (s *Server) writeSessionMutation(w http.ResponseWriter, session *model.TrainingSession, err error, op string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, store.ErrInvalidTransition):
		s.writeError(w, http.StatusConflict, "invalid status transition")
	case err != nil:
		s.logger.Error(op, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to "+op)
	default:
		s.writeJSON(w, http.StatusOK, session)
	}
}
