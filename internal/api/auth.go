package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sschepis/symprime-mentor-ai/internal/auth"
	"github.com/sschepis/symprime-mentor-ai/internal/store"
)

const minPasswordLength = 6

// signUpRequest is the JSON body for POST /v1/auth/signup.
type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// signInRequest is the JSON body for POST /v1/auth/signin.
type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Email == "" {
		s.writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		s.writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}
	if req.Name == "" {
		req.Name = req.Email
	}

	sess, err := s.auth.SignUp(r.Context(), req.Email, req.Password, req.Name)
	if errors.Is(err, store.ErrEmailTaken) {
		s.writeError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		s.logger.Error("sign up", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to sign up")
		return
	}

	s.writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Email == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	sess, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		s.logger.Error("sign in", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}

	s.writeJSON(w, http.StatusOK, sess)
}

// handleGetSession resolves the current bearer token to its identity and profile.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)

	user, err := s.store.GetUser(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err != nil {
		s.logger.Error("get user", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to resolve session")
		return
	}

	profile, err := s.store.GetProfile(r.Context(), userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("get profile", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to resolve session")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"profile": profile,
	})
}

// handleSignOut acknowledges a sign-out. Tokens are stateless, so teardown is
// client-side; any in-flight training loops keep their own status checks.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
