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
)

const tableConversations = "conversations"

// defaultMessageLimit caps a message listing when no limit query is given.
const defaultMessageLimit = 100

// createConversationRequest is the JSON body for POST /v1/conversations.
type createConversationRequest struct {
	Title    string `json:"title"`
	EngineID string `json:"engine_id"`
}

// updateConversationRequest is the JSON body for PUT /v1/conversations/{id}.
type updateConversationRequest struct {
	Title string `json:"title"`
}

// appendMessageRequest is the JSON body for POST /v1/conversations/{id}/messages.
type appendMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Title == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	userID := s.userID(r)
	if req.EngineID != "" {
		if _, err := s.store.GetEngine(r.Context(), userID, req.EngineID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.writeError(w, http.StatusNotFound, "engine not found")
				return
			}
			s.logger.Error("check engine", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to create conversation")
			return
		}
	}

	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        model.NewID(),
		UserID:    userID,
		EngineID:  req.EngineID,
		Title:     req.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateConversation(r.Context(), conv); err != nil {
		s.logger.Error("create conversation", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	s.broker.Publish(tableConversations, userID, realtime.Event{
		Type: realtime.EventInsert, Table: tableConversations, Row: conv,
	})
	s.writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.store.ListConversations(r.Context(), s.userID(r))
	if err != nil {
		s.logger.Error("list conversations", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if convs == nil {
		convs = []*model.Conversation{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]*model.Conversation{"conversations": convs})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.GetConversation(r.Context(), s.userID(r), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.logger.Error("get conversation", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get conversation")
		return
	}
	s.writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleUpdateConversation(w http.ResponseWriter, r *http.Request) {
	var req updateConversationRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	userID := s.userID(r)
	conv, err := s.store.GetConversation(r.Context(), userID, chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.logger.Error("get conversation for update", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update conversation")
		return
	}

	conv.Title = req.Title
	if err := s.store.UpdateConversation(r.Context(), conv); err != nil {
		s.logger.Error("update conversation", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update conversation")
		return
	}

	s.broker.Publish(tableConversations, userID, realtime.Event{
		Type: realtime.EventUpdate, Table: tableConversations, Row: conv,
	})
	s.writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	id := chi.URLParam(r, "id")

	if err := s.store.DeleteConversation(r.Context(), userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logger.Error("delete conversation", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}

	s.broker.Publish(tableConversations, userID, realtime.Event{
		Type: realtime.EventDelete, Table: tableConversations, Row: map[string]string{"id": id},
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	convID := chi.URLParam(r, "id")

	if _, err := s.store.GetConversation(r.Context(), userID, convID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logger.Error("get conversation", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	messages, err := s.store.ListMessages(r.Context(), convID)
	if err != nil {
		s.logger.Error("list messages", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if messages == nil {
		messages = []*model.Message{}
	}

	limit := parseIntQuery(r, "limit", defaultMessageLimit)
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	s.writeJSON(w, http.StatusOK, map[string][]*model.Message{"messages": messages})
}

func (s *Server) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	var req appendMessageRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Role != model.RoleUser && req.Role != model.RoleAssistant {
		s.writeError(w, http.StatusBadRequest, "role must be user or assistant")
		return
	}
	if req.Content == "" {
		s.writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	userID := s.userID(r)
	convID := chi.URLParam(r, "id")
	conv, err := s.store.GetConversation(r.Context(), userID, convID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.logger.Error("get conversation", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to append message")
		return
	}

	msg := &model.Message{
		ID:             model.NewID(),
		ConversationID: convID,
		Role:           req.Role,
		Content:        req.Content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.AppendMessage(r.Context(), msg); err != nil {
		s.logger.Error("append message", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to append message")
		return
	}

	// Appending bumps the thread so listings sort by recent activity.
	conv.UpdatedAt = msg.CreatedAt
	if err := s.store.UpdateConversation(r.Context(), conv); err != nil {
		s.logger.Error("touch conversation", "error", err)
	}

	s.broker.Publish(tableConversations, userID, realtime.Event{
		Type: realtime.EventInsert, Table: "messages", Row: msg,
	})
	s.writeJSON(w, http.StatusCreated, msg)
}
