package model

import "time"

// Engine status constants.
const (
	EngineActive   = "active"
	EngineTraining = "training"
	EnginePaused   = "paused"
	EngineArchived = "archived"
)

// DefaultEngineVersion is assigned to newly created engines.
const DefaultEngineVersion = "v1.0.0"

// ValidEngineStatus reports whether s is a recognized engine status.
func ValidEngineStatus(s string) bool {
	switch s {
	case EngineActive, EngineTraining, EnginePaused, EngineArchived:
		return true
	}
	return false
}

// Engine represents a named, versioned configuration record for a simulated
// trainable model. Every engine is owned by exactly one user.
type Engine struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ModelType   string     `json:"model_type"`
	Status      string     `json:"status"`
	Accuracy    *float64   `json:"accuracy,omitempty"`
	Version     string     `json:"version"`
	LastTrained *time.Time `json:"last_trained,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
