package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sschepis/symprime-mentor-ai/internal/model"
	"github.com/sschepis/symprime-mentor-ai/internal/realtime"
	"github.com/sschepis/symprime-mentor-ai/internal/store"
)

const tableProfiles = "profiles"

// maxAvatarSize caps avatar uploads at 5 MB.
const maxAvatarSize = 5 << 20

// updateProfileRequest is the JSON body for PUT /v1/profile. Nil fields are
// left unchanged.
type updateProfileRequest struct {
	Name         *string `json:"name"`
	Role         *string `json:"role"`
	Subscription *string `json:"subscription"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.store.GetProfile(r.Context(), s.userID(r))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		s.logger.Error("get profile", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	userID := s.userID(r)
	profile, err := s.store.GetProfile(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		s.logger.Error("get profile for update", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			s.writeError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		profile.Name = *req.Name
	}
	if req.Role != nil {
		profile.Role = *req.Role
	}
	if req.Subscription != nil {
		if !model.ValidTier(*req.Subscription) {
			s.writeError(w, http.StatusBadRequest, "invalid subscription tier")
			return
		}
		profile.Subscription = *req.Subscription
	}

	if err := s.store.UpdateProfile(r.Context(), profile); err != nil {
		s.logger.Error("update profile", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	s.broker.Publish(tableProfiles, userID, realtime.Event{
		Type: realtime.EventUpdate, Table: tableProfiles, Row: profile,
	})
	s.writeJSON(w, http.StatusOK, profile)
}

// handleUploadAvatar accepts a multipart upload under the "avatar" field,
// saves the blob, and points the profile at its public URL.
func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarSize)
	if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	userID := s.userID(r)
	profile, err := s.store.GetProfile(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		s.logger.Error("get profile for avatar", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to upload avatar")
		return
	}

	url, err := s.blobs.Save(header.Filename, file)
	if err != nil {
		s.logger.Error("save avatar", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to upload avatar")
		return
	}

	profile.Avatar = url
	if err := s.store.UpdateProfile(r.Context(), profile); err != nil {
		s.logger.Error("update profile avatar", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to upload avatar")
		return
	}

	s.broker.Publish(tableProfiles, userID, realtime.Event{
		Type: realtime.EventUpdate, Table: tableProfiles, Row: profile,
	})
	s.writeJSON(w, http.StatusOK, profile)
}
