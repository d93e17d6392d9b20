package store

import (
	"context"
	"errors"

	"github.com/sschepis/symprime-mentor-ai/internal/model"
)

// ErrInvalidTransition is returned when a session status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrEmailTaken is returned when signing up with an email that already has an account.
var ErrEmailTaken = errors.New("email already registered")

// ErrNotRunning is returned by AdvanceSession when the session is no longer running.
var ErrNotRunning = errors.New("session not running")

// DashboardStats holds per-user aggregates for the dashboard.
type DashboardStats struct {
	Engines          int            `json:"engines"`
	EnginesByStatus  map[string]int `json:"engines_by_status"`
	Sessions         int            `json:"sessions"`
	SessionsByStatus map[string]int `json:"sessions_by_status"`
	Conversations    int            `json:"conversations"`
	AvgAccuracy      float64        `json:"avg_accuracy"`
}

// Store defines the persistence operations for all SymPrime entities.
// Read and mutation operations that take a userID are owner-scoped: rows
// belonging to other identities behave as if they do not exist.
type Store interface {
	// Identities and profiles.
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateProfile(ctx context.Context, p *model.Profile) error
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, p *model.Profile) error
	AddUserRole(ctx context.Context, userID, role string) error
	HasRole(ctx context.Context, userID, role string) (bool, error)

	// Engines.
	CreateEngine(ctx context.Context, e *model.Engine) error
	GetEngine(ctx context.Context, userID, id string) (*model.Engine, error)
	ListEngines(ctx context.Context, userID string) ([]*model.Engine, error)
	UpdateEngine(ctx context.Context, e *model.Engine) error
	DeleteEngine(ctx context.Context, userID, id string) error

	// Training sessions.
	CreateSession(ctx context.Context, s *model.TrainingSession) error
	GetSession(ctx context.Context, userID, id string) (*model.TrainingSession, error)
	GetSessionByID(ctx context.Context, id string) (*model.TrainingSession, error)
	ListSessions(ctx context.Context, userID string) ([]*model.TrainingSession, error)
	ListRunningSessions(ctx context.Context) ([]*model.TrainingSession, error)
	UpdateSessionStatus(ctx context.Context, id, status string) (*model.TrainingSession, error)
	AdvanceSession(ctx context.Context, id string, progress int, m model.Metrics) error

	// Conversations and messages.
	CreateConversation(ctx context.Context, c *model.Conversation) error
	GetConversation(ctx context.Context, userID, id string) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error)
	UpdateConversation(ctx context.Context, c *model.Conversation) error
	DeleteConversation(ctx context.Context, userID, id string) error
	AppendMessage(ctx context.Context, m *model.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*model.Message, error)

	// Aggregates.
	GetDashboardStats(ctx context.Context, userID string) (*DashboardStats, error)

	Close() error
}
