package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sschepis/symprime-mentor-ai/internal/model"
	"github.com/sschepis/symprime-mentor-ai/internal/realtime"
	"github.com/sschepis/symprime-mentor-ai/internal/store"
	"github.com/sschepis/symprime-mentor-ai/internal/trainer"
)

// createEngineRequest is the JSON body for POST /v1/engines.
type createEngineRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ModelType   string `json:"model_type"`
}

// updateEngineRequest is the JSON body for PUT /v1/engines/{id}. Nil fields
// are left unchanged.
type updateEngineRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ModelType   *string `json:"model_type"`
	Status      *string `json:"status"`
	Version     *string `json:"version"`
}

// listEnginesResponse wraps the list response.
type listEnginesResponse struct {
	Engines []*model.Engine `json:"engines"`
}

func (s *Server) handleCreateEngine(w http.ResponseWriter, r *http.Request) {
	var req createEngineRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.ModelType == "" {
		s.writeError(w, http.StatusBadRequest, "model_type is required")
		return
	}

	now := time.Now().UTC()
	accuracy := 0.0
	engine := &model.Engine{
		ID:          model.NewID(),
		UserID:      s.userID(r),
		Name:        req.Name,
		Description: req.Description,
		ModelType:   req.ModelType,
		Status:      model.EngineActive,
		Accuracy:    &accuracy,
		Version:     model.DefaultEngineVersion,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateEngine(r.Context(), engine); err != nil {
		s.logger.Error("create engine", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create engine")
		return
	}

	s.broker.Publish(trainer.TableEngines, engine.UserID, realtime.Event{
		Type: realtime.EventInsert, Table: trainer.TableEngines, Row: engine,
	})
	s.writeJSON(w, http.StatusCreated, engine)
}

func (s *Server) handleListEngines(w http.ResponseWriter, r *http.Request) {
	engines, err := s.store.ListEngines(r.Context(), s.userID(r))
	if err != nil {
		s.logger.Error("list engines", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list engines")
		return
	}
	if engines == nil {
		engines = []*model.Engine{}
	}
	s.writeJSON(w, http.StatusOK, listEnginesResponse{Engines: engines})
}

func (s *Server) handleGetEngine(w http.ResponseWriter, r *http.Request) {
	engine, err := s.store.GetEngine(r.Context(), s.userID(r), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "engine not found")
		return
	}
	if err != nil {
		s.logger.Error("get engine", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get engine")
		return
	}
	s.writeJSON(w, http.StatusOK, engine)
}

func (s *Server) handleUpdateEngine(w http.ResponseWriter, r *http.Request) {
	var req updateEngineRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	userID := s.userID(r)
	engine, err := s.store.GetEngine(r.Context(), userID, chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "engine not found")
		return
	}
	if err != nil {
		s.logger.Error("get engine for update", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get engine")
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			s.writeError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		engine.Name = *req.Name
	}
	if req.Description != nil {
		engine.Description = *req.Description
	}
	if req.ModelType != nil {
		engine.ModelType = *req.ModelType
	}
	if req.Status != nil {
		if !model.ValidEngineStatus(*req.Status) {
			s.writeError(w, http.StatusBadRequest, "invalid engine status")
			return
		}
		engine.Status = *req.Status
	}
	if req.Version != nil {
		engine.Version = *req.Version
	}

	if err := s.store.UpdateEngine(r.Context(), engine); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "engine not found")
			return
		}
		s.logger.Error("update engine", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update engine")
		return
	}

	s.broker.Publish(trainer.TableEngines, userID, realtime.Event{
		Type: realtime.EventUpdate, Table: trainer.TableEngines, Row: engine,
	})
	s.writeJSON(w, http.StatusOK, engine)
}

func (s *Server) handleDeleteEngine(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	id := chi.URLParam(r, "id")

	if err := s.store.DeleteEngine(r.Context(), userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "engine not found")
			return
		}
		s.logger.Error("delete engine", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete engine")
		return
	}

	s.broker.Publish(trainer.TableEngines, userID, realtime.Event{
		Type: realtime.EventDelete, Table: trainer.TableEngines, Row: map[string]string{"id": id},
	})
	w.WriteHeader(http.StatusNoContent)
}
