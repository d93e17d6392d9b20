package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sschepis/symprime-mentor-ai/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeTestEngine(userID string) *model.Engine {
	now := time.Now().UTC().Truncate(time.Second)
	accuracy := 0.0
	return &model.Engine{
		ID:        model.NewID(),
		UserID:    userID,
		Name:      "Test Engine",
		ModelType: "science",
		Status:    model.EngineActive,
		Accuracy:  &accuracy,
		Version:   model.DefaultEngineVersion,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func makeTestSession(userID, engineID, status string) *model.TrainingSession {
	now := time.Now().UTC().Truncate(time.Second)
	epochs := 10
	batch := 32
	return &model.TrainingSession{
		ID:        model.NewID(),
		EngineID:  engineID,
		UserID:    userID,
		Name:      "nightly run",
		Status:    status,
		Progress:  0,
		Epochs:    &epochs,
		BatchSize: &batch,
		StartedAt: &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &model.User{ID: model.NewID(), Email: "a@example.com", PasswordHash: "x", CreatedAt: time.Now().UTC()}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	dup := &model.User{ID: model.NewID(), Email: "a@example.com", PasswordHash: "y", CreatedAt: time.Now().UTC()}
	if err := s.CreateUser(ctx, dup); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("CreateUser duplicate = %v, want ErrEmailTaken", err)
	}

	got, err := s.GetUserByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("ID = %q, want %q", got.ID, u.ID)
	}
}

func TestCreateAndGetEngine(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := makeTestEngine("user-1")

	if err := s.CreateEngine(ctx, e); err != nil {
		t.Fatalf("CreateEngine: %v", err)
	}

	got, err := s.GetEngine(ctx, "user-1", e.ID)
	if err != nil {
		t.Fatalf("GetEngine: %v", err)
	}
	if got.Name != e.Name {
		t.Errorf("Name = %q, want %q", got.Name, e.Name)
	}
	if got.Status != model.EngineActive {
		t.Errorf("Status = %q, want %q", got.Status, model.EngineActive)
	}
	if got.Accuracy == nil || *got.Accuracy != 0 {
		t.Errorf("Accuracy = %v, want 0", got.Accuracy)
	}
	if got.LastTrained != nil {
		t.Errorf("LastTrained = %v, want nil", got.LastTrained)
	}
}

func TestGetEngineOwnerScoping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := makeTestEngine("user-1")
	if err := s.CreateEngine(ctx, e); err != nil {
		t.Fatalf("CreateEngine: %v", err)
	}

	if _, err := s.GetEngine(ctx, "user-2", e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetEngine other owner = %v, want ErrNotFound", err)
	}

	engines, err := s.ListEngines(ctx, "user-2")
	if err != nil {
		t.Fatalf("ListEngines: %v", err)
	}
	if len(engines) != 0 {
		t.Errorf("ListEngines other owner = %d rows, want 0", len(engines))
	}
}

func TestListEnginesNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	var last string
	for i := 0; i < 3; i++ {
		e := makeTestEngine("user-1")
		e.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := s.CreateEngine(ctx, e); err != nil {
			t.Fatalf("CreateEngine[%d]: %v", i, err)
		}
		last = e.ID
	}

	engines, err := s.ListEngines(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListEngines: %v", err)
	}
	if len(engines) != 3 {
		t.Fatalf("len = %d, want 3", len(engines))
	}
	if engines[0].ID != last {
		t.Errorf("first engine = %q, want most recent %q", engines[0].ID, last)
	}
}

func TestDeleteEngineCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := makeTestEngine("user-1")
	if err := s.CreateEngine(ctx, e); err != nil {
		t.Fatalf("CreateEngine: %v", err)
	}
	ts := makeTestSession("user-1", e.ID, model.StatusRunning)
	if err := s.CreateSession(ctx, ts); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	now := time.Now().UTC()
	c := &model.Conversation{ID: model.NewID(), UserID: "user-1", EngineID: e.ID, Title: "chat", CreatedAt: now, UpdatedAt: now}
	if err := s.CreateConversation(ctx, c); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	if err := s.DeleteEngine(ctx, "user-1", e.ID); err != nil {
		t.Fatalf("DeleteEngine: %v", err)
	}

	if _, err := s.GetSession(ctx, "user-1", ts.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("session after engine delete = %v, want ErrNotFound", err)
	}
	got, err := s.GetConversation(ctx, "user-1", c.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.EngineID != "" {
		t.Errorf("conversation engine_id = %q, want detached", got.EngineID)
	}
}

func TestDeleteEngineNotOwned(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := makeTestEngine("user-1")
	if err := s.CreateEngine(ctx, e); err != nil {
		t.Fatalf("CreateEngine: %v", err)
	}
	if err := s.DeleteEngine(ctx, "user-2", e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteEngine other owner = %v, want ErrNotFound", err)
	}
}

func TestUpdateSessionStatusTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := makeTestSession("user-1", "engine-1", model.StatusRunning)
	if err := s.CreateSession(ctx, ts); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Pause.
	paused, err := s.UpdateSessionStatus(ctx, ts.ID, model.StatusPending)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if paused.Status != model.StatusPending {
		t.Errorf("Status = %q, want pending", paused.Status)
	}
	if paused.CompletedAt != nil {
		t.Error("CompletedAt set on pause, want nil")
	}

	// Resume then cancel.
	if _, err := s.UpdateSessionStatus(ctx, ts.ID, model.StatusRunning); err != nil {
		t.Fatalf("resume: %v", err)
	}
	cancelled, err := s.UpdateSessionStatus(ctx, ts.ID, model.StatusCancelled)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.CompletedAt == nil {
		t.Error("CompletedAt nil after cancel, want set")
	}

	// Terminal sessions are immutable.
	if _, err := s.UpdateSessionStatus(ctx, ts.ID, model.StatusRunning); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("restart cancelled = %v, want ErrInvalidTransition", err)
	}
}

func TestAdvanceSessionGuards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := makeTestSession("user-1", "engine-1", model.StatusRunning)
	if err := s.CreateSession(ctx, ts); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	m := model.Metrics{Loss: 0.9, Accuracy: 0.1, LearningRate: 0.001}
	if err := s.AdvanceSession(ctx, ts.ID, 5, m); err != nil {
		t.Fatalf("AdvanceSession: %v", err)
	}

	got, err := s.GetSessionByID(ctx, ts.ID)
	if err != nil {
		t.Fatalf("GetSessionByID: %v", err)
	}
	if got.Progress != 5 {
		t.Errorf("Progress = %d, want 5", got.Progress)
	}
	if got.Metrics == nil || got.Metrics.Loss != 0.9 {
		t.Errorf("Metrics = %+v, want loss 0.9", got.Metrics)
	}

	// Progress never decreases.
	if err := s.AdvanceSession(ctx, ts.ID, 3, m); !errors.Is(err, ErrNotRunning) {
		t.Errorf("backward advance = %v, want ErrNotRunning", err)
	}

	// No writes land after cancellation.
	if _, err := s.UpdateSessionStatus(ctx, ts.ID, model.StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := s.AdvanceSession(ctx, ts.ID, 10, m); !errors.Is(err, ErrNotRunning) {
		t.Errorf("advance after cancel = %v, want ErrNotRunning", err)
	}
	got, _ = s.GetSessionByID(ctx, ts.ID)
	if got.Progress != 5 {
		t.Errorf("Progress after cancelled advance = %d, want 5", got.Progress)
	}
}

func TestListRunningSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	running := makeTestSession("user-1", "engine-1", model.StatusRunning)
	done := makeTestSession("user-2", "engine-2", model.StatusCompleted)
	for _, ts := range []*model.TrainingSession{running, done} {
		if err := s.CreateSession(ctx, ts); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	got, err := s.ListRunningSessions(ctx)
	if err != nil {
		t.Fatalf("ListRunningSessions: %v", err)
	}
	if len(got) != 1 || got[0].ID != running.ID {
		t.Errorf("running sessions = %v, want exactly %q", got, running.ID)
	}
}

func TestDeleteConversationCascadesMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	c := &model.Conversation{ID: model.NewID(), UserID: "user-1", Title: "chat", CreatedAt: now, UpdatedAt: now}
	if err := s.CreateConversation(ctx, c); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	msg := &model.Message{ID: model.NewID(), ConversationID: c.ID, Role: model.RoleUser, Content: "hi", CreatedAt: now}
	if err := s.AppendMessage(ctx, msg); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	if err := s.DeleteConversation(ctx, "user-1", c.ID); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}

	msgs, err := s.ListMessages(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages after delete = %d, want 0", len(msgs))
	}
}

func TestListMessagesChronological(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	c := &model.Conversation{ID: model.NewID(), UserID: "user-1", Title: "chat", CreatedAt: now, UpdatedAt: now}
	if err := s.CreateConversation(ctx, c); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	for i := 0; i < 3; i++ {
		m := &model.Message{
			ID:             model.NewID(),
			ConversationID: c.ID,
			Role:           model.RoleUser,
			Content:        string(rune('a' + i)),
			CreatedAt:      now.Add(time.Duration(i) * time.Second),
		}
		if err := s.AppendMessage(ctx, m); err != nil {
			t.Fatalf("AppendMessage[%d]: %v", i, err)
		}
	}

	msgs, err := s.ListMessages(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	if msgs[0].Content != "a" || msgs[2].Content != "c" {
		t.Errorf("order = [%s %s %s], want chronological", msgs[0].Content, msgs[1].Content, msgs[2].Content)
	}
}

func TestHasRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddUserRole(ctx, "user-1", model.RoleDefault); err != nil {
		t.Fatalf("AddUserRole: %v", err)
	}
	// Granting twice is a no-op.
	if err := s.AddUserRole(ctx, "user-1", model.RoleDefault); err != nil {
		t.Fatalf("AddUserRole repeat: %v", err)
	}

	ok, err := s.HasRole(ctx, "user-1", model.RoleDefault)
	if err != nil {
		t.Fatalf("HasRole: %v", err)
	}
	if !ok {
		t.Error("HasRole = false, want true")
	}
	ok, _ = s.HasRole(ctx, "user-1", model.RoleAdmin)
	if ok {
		t.Error("HasRole(admin) = true, want false")
	}
}

func TestGetDashboardStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e1 := makeTestEngine("user-1")
	acc := 80.0
	e1.Accuracy = &acc
	e2 := makeTestEngine("user-1")
	e2.Status = model.EngineTraining
	e2.Accuracy = nil
	for _, e := range []*model.Engine{e1, e2} {
		if err := s.CreateEngine(ctx, e); err != nil {
			t.Fatalf("CreateEngine: %v", err)
		}
	}
	if err := s.CreateSession(ctx, makeTestSession("user-1", e1.ID, model.StatusCompleted)); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	stats, err := s.GetDashboardStats(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetDashboardStats: %v", err)
	}
	if stats.Engines != 2 {
		t.Errorf("Engines = %d, want 2", stats.Engines)
	}
	if stats.EnginesByStatus[model.EngineTraining] != 1 {
		t.Errorf("training engines = %d, want 1", stats.EnginesByStatus[model.EngineTraining])
	}
	if stats.SessionsByStatus[model.StatusCompleted] != 1 {
		t.Errorf("completed sessions = %d, want 1", stats.SessionsByStatus[model.StatusCompleted])
	}
	if stats.AvgAccuracy != 80 {
		t.Errorf("AvgAccuracy = %v, want 80", stats.AvgAccuracy)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	p := &model.Profile{
		ID:           "user-1",
		Name:         "Ada",
		Email:        "ada@example.com",
		Subscription: model.TierFree,
		JoinedDate:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}

	p.Name = "Ada L."
	p.Subscription = model.TierPro
	if err := s.UpdateProfile(ctx, p); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	got, err := s.GetProfile(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Name != "Ada L." || got.Subscription != model.TierPro {
		t.Errorf("profile = %+v, want updated name and tier", got)
	}
}
