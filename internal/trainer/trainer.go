// Package trainer implements the simulated training-session lifecycle. A
// started session advances its progress on a fixed wall-clock interval,
// writing fabricated loss/accuracy/learning-rate metrics until it completes,
// is paused, or is cancelled. No real model training occurs.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sschepis/symprime-mentor-ai/internal/model"
	"github.com/sschepis/symprime-mentor-ai/internal/realtime"
	"github.com/sschepis/symprime-mentor-ai/internal/store"
)

// Realtime table names published by the trainer.
const (
	TableEngines  = "engines"
	TableSessions = "training_sessions"
)

// DefaultTickInterval is the wall-clock delay between progress updates.
const DefaultTickInterval = 2 * time.Second

// Config holds the optional hyperparameters for a training run.
type Config struct {
	Name         string   `json:"name,omitempty"`
	DatasetSize  *int     `json:"dataset_size,omitempty"`
	Epochs       *int     `json:"epochs,omitempty"`
	LearningRate *float64 `json:"learning_rate,omitempty"`
	BatchSize    *int     `json:"batch_size,omitempty"`
}

// Trainer orchestrates simulated training runs against the store.
type Trainer struct {
	store    store.Store
	broker   *realtime.Broker
	logger   *slog.Logger
	interval time.Duration
	wg       sync.WaitGroup
	quit     chan struct{}
	stopOnce sync.Once
}

// New creates a trainer ticking at the given interval.
func New(s store.Store, b *realtime.Broker, logger *slog.Logger, interval time.Duration) *Trainer {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Trainer{
		store:    s,
		broker:   b,
		logger:   logger,
		interval: interval,
		quit:     make(chan struct{}),
	}
}

// Start verifies engine ownership, creates a running session at progress 0,
// flips the engine into the training state, and launches the advance loop.
// Returns store.ErrNotFound when the engine is absent or owned by someone else.
func (t *Trainer) Start(ctx context.Context, userID, engineID string, cfg Config) (*model.TrainingSession, error) {
	engine, err := t.store.GetEngine(ctx, userID, engineID)
	if err != nil {
		return nil, err
	}

	name := cfg.Name
	if name == "" {
		name = engine.Name + " training"
	}

	now := time.Now().UTC()
	session := &model.TrainingSession{
		ID:           model.NewID(),
		EngineID:     engineID,
		UserID:       userID,
		Name:         name,
		Status:       model.StatusRunning,
		Progress:     0,
		DatasetSize:  cfg.DatasetSize,
		Epochs:       cfg.Epochs,
		LearningRate: cfg.LearningRate,
		BatchSize:    cfg.BatchSize,
		StartedAt:    &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := t.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	engine.Status = model.EngineTraining
	if err := t.store.UpdateEngine(ctx, engine); err != nil {
		t.logger.Error("mark engine training", "engine_id", engineID, "error", err)
	} else {
		t.broker.Publish(TableEngines, userID, realtime.Event{
			Type: realtime.EventUpdate, Table: TableEngines, Row: engine,
		})
	}

	t.broker.Publish(TableSessions, userID, realtime.Event{
		Type: realtime.EventInsert, Table: TableSessions, Row: session,
	})

	sessionsStarted.Inc()
	t.launch(session)
	return session, nil
}

// Cancel transitions a session to cancelled and halts its advance loop.
// Cancelling an already-terminal session is an idempotent no-op returning the
// current row.
func (t *Trainer) Cancel(ctx context.Context, userID, sessionID string) (*model.TrainingSession, error) {
	current, err := t.store.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if model.TerminalStatus(current.Status) {
		return current, nil
	}

	session, err := t.store.UpdateSessionStatus(ctx, sessionID, model.StatusCancelled)
	if err != nil {
		return nil, err
	}
	sessionsFinished.WithLabelValues(model.StatusCancelled).Inc()

	t.releaseEngine(ctx, userID, session.EngineID)
	t.broker.Publish(TableSessions, userID, realtime.Event{
		Type: realtime.EventUpdate, Table: TableSessions, Row: session,
	})
	return session, nil
}

// Pause toggles a running session back to pending without altering progress.
// The advance loop keeps ticking but skips writes until Resume.
func (t *Trainer) Pause(ctx context.Context, userID, sessionID string) (*model.TrainingSession, error) {
	return t.toggle(ctx, userID, sessionID, model.StatusPending)
}

// Resume transitions a paused session back to running.
func (t *Trainer) Resume(ctx context.Context, userID, sessionID string) (*model.TrainingSession, error) {
	return t.toggle(ctx, userID, sessionID, model.StatusRunning)
}

func (t *Trainer) toggle(ctx context.Context, userID, sessionID, status string) (*model.TrainingSession, error) {
	if _, err := t.store.GetSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	session, err := t.store.UpdateSessionStatus(ctx, sessionID, status)
	if err != nil {
		return nil, err
	}
	t.broker.Publish(TableSessions, userID, realtime.Event{
		Type: realtime.EventUpdate, Table: TableSessions, Row: session,
	})
	return session, nil
}

// Recover relaunches advance loops for sessions left running by a previous
// process. Sessions whose engine has disappeared are marked failed.
func (t *Trainer) Recover(ctx context.Context) error {
	sessions, err := t.store.ListRunningSessions(ctx)
	if err != nil {
		return fmt.Errorf("list running sessions: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, session := range sessions {
		session := session
		g.Go(func() error {
			if _, err := t.store.GetEngine(ctx, session.UserID, session.EngineID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					if _, err := t.store.UpdateSessionStatus(ctx, session.ID, model.StatusFailed); err != nil {
						t.logger.Error("fail orphaned session", "session_id", session.ID, "error", err)
					}
					return nil
				}
				return err
			}
			t.logger.Info("resuming training session", "session_id", session.ID, "progress", session.Progress)
			t.launch(session)
			return nil
		})
	}
	return g.Wait()
}

// Close stops all advance loops and waits for them to exit.
func (t *Trainer) Close() {
	t.stopOnce.Do(func() { close(t.quit) })
	t.wg.Wait()
}

// launch runs the advance loop in a goroutine. The loop operates on a copy of
// the session to avoid data races with the caller.
func (t *Trainer) launch(session *model.TrainingSession) {
	s := *session
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.run(&s)
	}()
}

// run advances a session on each tick until it reaches a terminal state. The
// current status is re-read before every write: a session cancelled or deleted
// concurrently must never have progress resurrected by a stale timer.
func (t *Trainer) run(session *model.TrainingSession) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.quit:
			return
		case <-ticker.C:
		}

		ctx := context.Background()
		current, err := t.store.GetSessionByID(ctx, session.ID)
		if errors.Is(err, store.ErrNotFound) {
			return
		}
		if err != nil {
			t.logger.Error("read session", "session_id", session.ID, "error", err)
			continue
		}
		if model.TerminalStatus(current.Status) {
			return
		}
		if current.Status != model.StatusRunning {
			continue // Paused; hold progress until resumed.
		}

		progress := current.Progress + model.ProgressStep
		if progress > 100 {
			progress = 100
		}
		metrics := simulateMetrics(progress)

		if err := t.store.AdvanceSession(ctx, session.ID, progress, metrics); err != nil {
			if errors.Is(err, store.ErrNotRunning) {
				continue // Lost the race with a cancel or pause; re-read next tick.
			}
			t.logger.Error("advance session", "session_id", session.ID, "error", err)
			continue
		}
		ticksTotal.Inc()

		current.Progress = progress
		current.Metrics = &metrics
		t.broker.Publish(TableSessions, session.UserID, realtime.Event{
			Type: realtime.EventUpdate, Table: TableSessions, Row: current,
		})

		if progress >= 100 {
			t.complete(ctx, session, metrics)
			return
		}
	}
}

// complete marks the session completed and propagates the final accuracy and
// last-trained timestamp onto the parent engine.
func (t *Trainer) complete(ctx context.Context, session *model.TrainingSession, final model.Metrics) {
	completed, err := t.store.UpdateSessionStatus(ctx, session.ID, model.StatusCompleted)
	if err != nil {
		// A concurrent cancel won the race; leave the session as it is.
		if !errors.Is(err, store.ErrInvalidTransition) {
			t.logger.Error("complete session", "session_id", session.ID, "error", err)
		}
		return
	}
	sessionsFinished.WithLabelValues(model.StatusCompleted).Inc()

	t.broker.Publish(TableSessions, session.UserID, realtime.Event{
		Type: realtime.EventUpdate, Table: TableSessions, Row: completed,
	})

	engine, err := t.store.GetEngine(ctx, session.UserID, session.EngineID)
	if err != nil {
		t.logger.Error("load engine after training", "engine_id", session.EngineID, "error", err)
		return
	}
	now := time.Now().UTC()
	accuracy := math.Round(final.Accuracy*10000) / 100 // store as percent
	engine.Status = model.EngineActive
	engine.Accuracy = &accuracy
	engine.LastTrained = &now
	if err := t.store.UpdateEngine(ctx, engine); err != nil {
		t.logger.Error("update engine after training", "engine_id", engine.ID, "error", err)
		return
	}
	t.broker.Publish(TableEngines, session.UserID, realtime.Event{
		Type: realtime.EventUpdate, Table: TableEngines, Row: engine,
	})
}

// releaseEngine returns an engine to the active state after its training run
// stops early.
func (t *Trainer) releaseEngine(ctx context.Context, userID, engineID string) {
	engine, err := t.store.GetEngine(ctx, userID, engineID)
	if err != nil {
		return
	}
	if engine.Status != model.EngineTraining {
		return
	}
	engine.Status = model.EngineActive
	if err := t.store.UpdateEngine(ctx, engine); err != nil {
		t.logger.Error("release engine", "engine_id", engineID, "error", err)
		return
	}
	t.broker.Publish(TableEngines, userID, realtime.Event{
		Type: realtime.EventUpdate, Table: TableEngines, Row: engine,
	})
}

// simulateMetrics fabricates the per-tick metrics for a given progress value:
// loss decays toward a floor, accuracy climbs toward a ceiling, and the
// learning rate decays geometrically, each with a little noise.
func simulateMetrics(progress int) model.Metrics {
	step := float64(progress)
	return model.Metrics{
		Loss:         1.0 - (step/100)*0.8 + rand.Float64()*0.1,
		Accuracy:     (step/100)*0.95 + rand.Float64()*0.05,
		LearningRate: 0.001 * math.Pow(0.95, step/10),
	}
}
