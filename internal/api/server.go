package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sschepis/symprime-mentor-ai/internal/auth"
	"github.com/sschepis/symprime-mentor-ai/internal/realtime"
	"github.com/sschepis/symprime-mentor-ai/internal/storage"
	"github.com/sschepis/symprime-mentor-ai/internal/store"
	"github.com/sschepis/symprime-mentor-ai/internal/trainer"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second

	maxBodySize = 1 << 20 // 1 MB
)

// Server wraps the chi router and application dependencies.
type Server struct {
	router  *chi.Mux
	store   store.Store
	auth    *auth.Service
	trainer *trainer.Trainer
	broker  *realtime.Broker
	blobs   *storage.BlobStore
	logger  *slog.Logger
	addr    string
}

// NewServer creates and configures a new HTTP server.
func NewServer(addr string, st store.Store, authSvc *auth.Service, tr *trainer.Trainer, broker *realtime.Broker, blobs *storage.BlobStore, logger *slog.Logger) *Server {
	srv := &Server{
		router:  chi.NewRouter(),
		store:   st,
		auth:    authSvc,
		trainer: tr,
		broker:  broker,
		blobs:   blobs,
		logger:  logger,
		addr:    addr,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Client-Info", "Apikey", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())
	s.router.Handle(storage.PublicPrefix+"*", http.StripPrefix(storage.PublicPrefix,
		http.FileServer(http.Dir(s.blobs.Dir()))))

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignUp)
		r.Post("/auth/signin", s.handleSignIn)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)

			r.Get("/auth/session", s.handleGetSession)
			r.Post("/auth/signout", s.handleSignOut)

			r.Route("/engines", func(r chi.Router) {
				r.Post("/", s.handleCreateEngine)
				r.Get("/", s.handleListEngines)
				r.Get("/events", s.handleEngineEvents)
				r.Get("/{id}", s.handleGetEngine)
				r.Put("/{id}", s.handleUpdateEngine)
				r.Delete("/{id}", s.handleDeleteEngine)
			})

			r.Route("/training", func(r chi.Router) {
				r.Post("/", s.handleStartTraining)
				r.Get("/", s.handleListSessions)
				r.Get("/events", s.handleSessionEvents)
				r.Get("/{id}", s.handleGetTrainingSession)
				r.Post("/{id}/cancel", s.handleCancelSession)
				r.Post("/{id}/pause", s.handlePauseSession)
				r.Post("/{id}/resume", s.handleResumeSession)
			})

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", s.handleCreateConversation)
				r.Get("/", s.handleListConversations)
				r.Get("/events", s.handleConversationEvents)
				r.Get("/{id}", s.handleGetConversation)
				r.Put("/{id}", s.handleUpdateConversation)
				r.Delete("/{id}", s.handleDeleteConversation)
				r.Get("/{id}/messages", s.handleListMessages)
				r.Post("/{id}/messages", s.handleAppendMessage)
			})

			r.Get("/profile", s.handleGetProfile)
			r.Put("/profile", s.handleUpdateProfile)
			r.Post("/profile/avatar", s.handleUploadAvatar)

			r.Get("/stats", s.handleGetStats)
		})
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	s.broker.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// userID extracts the authenticated identity from the request context. The
// auth middleware guarantees it is present on protected routes.
func (s *Server) userID(r *http.Request) string {
	id, _ := auth.UserID(r.Context())
	return id
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
