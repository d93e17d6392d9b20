package model

import "time"

// Training session status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// ProgressStep is the fixed progress increment applied per simulation tick.
const ProgressStep = 5

// validTransitions maps each status to the set of statuses it may transition to.
// Pending doubles as "paused": a running session may toggle back to pending and
// resume later without losing progress.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning:   true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusRunning: {
		StatusPending:   true,
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// TerminalStatus reports whether a session status admits no further transitions.
func TerminalStatus(s string) bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Metrics holds the simulated per-tick training metrics.
type Metrics struct {
	Loss         float64 `json:"loss"`
	Accuracy     float64 `json:"accuracy"`
	LearningRate float64 `json:"learning_rate"`
}

// TrainingSession tracks the simulated progress of one training run against an
// engine. Sessions are immutable once they reach a terminal status.
type TrainingSession struct {
	ID           string     `json:"id"`
	EngineID     string     `json:"engine_id"`
	UserID       string     `json:"user_id"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	DatasetSize  *int       `json:"dataset_size,omitempty"`
	Epochs       *int       `json:"epochs,omitempty"`
	LearningRate *float64   `json:"learning_rate,omitempty"`
	BatchSize    *int       `json:"batch_size,omitempty"`
	Metrics      *Metrics   `json:"metrics,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
