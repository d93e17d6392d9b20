package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sschepis/symprime-mentor-ai/internal/model"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    email        TEXT NOT NULL,
    avatar       TEXT NOT NULL DEFAULT '',
    role         TEXT NOT NULL DEFAULT '',
    subscription TEXT NOT NULL,
    joined_date  DATETIME NOT NULL,
    created_at   DATETIME NOT NULL,
    updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS user_roles (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    role       TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    UNIQUE(user_id, role)
);

CREATE TABLE IF NOT EXISTS engines (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL,
    name         TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    model_type   TEXT NOT NULL,
    status       TEXT NOT NULL,
    accuracy     REAL,
    version      TEXT NOT NULL,
    last_trained DATETIME,
    created_at   DATETIME NOT NULL,
    updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS training_sessions (
    id            TEXT PRIMARY KEY,
    engine_id     TEXT NOT NULL,
    user_id       TEXT NOT NULL,
    name          TEXT NOT NULL,
    status        TEXT NOT NULL,
    progress      INTEGER NOT NULL DEFAULT 0,
    dataset_size  INTEGER,
    epochs        INTEGER,
    learning_rate REAL,
    batch_size    INTEGER,
    metrics       TEXT,
    error_message TEXT NOT NULL DEFAULT '',
    started_at    DATETIME,
    completed_at  DATETIME,
    created_at    DATETIME NOT NULL,
    updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    engine_id  TEXT NOT NULL DEFAULT '',
    title      TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id              TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    role            TEXT NOT NULL,
    content         TEXT NOT NULL,
    created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_engines_user ON engines(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON training_sessions(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_sessions_engine ON training_sessions(engine_id);
CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
`

// ErrNotFound is returned when an entity is absent or not owned by the caller.
var ErrNotFound = errors.New("not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateUser inserts a new identity record.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser retrieves an identity by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail retrieves an identity by email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u := &model.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// CreateProfile inserts the profile record for a new identity.
func (s *SQLiteStore) CreateProfile(ctx context.Context, p *model.Profile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, name, email, avatar, role, subscription, joined_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Email, p.Avatar, p.Role, p.Subscription, p.JoinedDate, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a profile by identity ID.
func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	p := &model.Profile{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, avatar, role, subscription, joined_date, created_at, updated_at
		FROM profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Email, &p.Avatar, &p.Role, &p.Subscription, &p.JoinedDate, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// UpdateProfile overwrites the mutable profile fields.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, p *model.Profile) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET name = ?, email = ?, avatar = ?, role = ?, subscription = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Email, p.Avatar, p.Role, p.Subscription, time.Now().UTC(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return checkAffected(result)
}

// AddUserRole grants an application role to an identity. Granting an
// already-held role is a no-op.
func (s *SQLiteStore) AddUserRole(ctx context.Context, userID, role string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_roles (id, user_id, role, created_at) VALUES (?, ?, ?, ?)`,
		model.NewID(), userID, role, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert user role: %w", err)
	}
	return nil
}

// HasRole reports whether the identity holds the given application role.
func (s *SQLiteStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_roles WHERE user_id = ? AND role = ?`, userID, role,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check role: %w", err)
	}
	return n > 0, nil
}

// CreateEngine inserts a new engine record.
func (s *SQLiteStore) CreateEngine(ctx context.Context, e *model.Engine) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO engines (
			id, user_id, name, description, model_type, status,
			accuracy, version, last_trained, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Name, e.Description, e.ModelType, e.Status,
		e.Accuracy, e.Version, e.LastTrained, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert engine: %w", err)
	}
	return nil
}

// GetEngine retrieves an engine by ID, scoped to its owner.
func (s *SQLiteStore) GetEngine(ctx context.Context, userID, id string) (*model.Engine, error) {
	e := &model.Engine{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, description, model_type, status,
			accuracy, version, last_trained, created_at, updated_at
		FROM engines WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(
		&e.ID, &e.UserID, &e.Name, &e.Description, &e.ModelType, &e.Status,
		&e.Accuracy, &e.Version, &e.LastTrained, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get engine: %w", err)
	}
	return e, nil
}

// ListEngines returns the owner's engines, most recently created first.
func (s *SQLiteStore) ListEngines(ctx context.Context, userID string) ([]*model.Engine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, description, model_type, status,
			accuracy, version, last_trained, created_at, updated_at
		FROM engines WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list engines: %w", err)
	}
	defer rows.Close()

	var engines []*model.Engine
	for rows.Next() {
		e := &model.Engine{}
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Name, &e.Description, &e.ModelType, &e.Status,
			&e.Accuracy, &e.Version, &e.LastTrained, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan engine: %w", err)
		}
		engines = append(engines, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate engines: %w", err)
	}
	return engines, nil
}

// UpdateEngine overwrites the mutable engine fields, scoped to the owner.
func (s *SQLiteStore) UpdateEngine(ctx context.Context, e *model.Engine) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE engines SET name = ?, description = ?, model_type = ?, status = ?,
			accuracy = ?, version = ?, last_trained = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		e.Name, e.Description, e.ModelType, e.Status,
		e.Accuracy, e.Version, e.LastTrained, time.Now().UTC(),
		e.ID, e.UserID,
	)
	if err != nil {
		return fmt.Errorf("update engine: %w", err)
	}
	return checkAffected(result)
}

// DeleteEngine removes an engine along with its training sessions and detaches
// its conversations, in a single transaction.
func (s *SQLiteStore) DeleteEngine(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM engines WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete engine: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM training_sessions WHERE engine_id = ?`, id); err != nil {
		return fmt.Errorf("delete engine sessions: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET engine_id = '' WHERE engine_id = ?`, id); err != nil {
		return fmt.Errorf("detach engine conversations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const sessionColumns = `id, engine_id, user_id, name, status, progress,
	dataset_size, epochs, learning_rate, batch_size, metrics, error_message,
	started_at, completed_at, created_at, updated_at`

// CreateSession inserts a new training session record.
func (s *SQLiteStore) CreateSession(ctx context.Context, ts *model.TrainingSession) error {
	metrics, err := marshalMetrics(ts.Metrics)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO training_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.ID, ts.EngineID, ts.UserID, ts.Name, ts.Status, ts.Progress,
		ts.DatasetSize, ts.Epochs, ts.LearningRate, ts.BatchSize, metrics, ts.ErrorMessage,
		ts.StartedAt, ts.CompletedAt, ts.CreatedAt, ts.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a training session by ID, scoped to its owner.
func (s *SQLiteStore) GetSession(ctx context.Context, userID, id string) (*model.TrainingSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM training_sessions WHERE id = ? AND user_id = ?`, id, userID)
	return scanSession(row)
}

// GetSessionByID retrieves a training session without owner scoping. It is
// used by the trainer's advance loop, which runs outside any request identity.
func (s *SQLiteStore) GetSessionByID(ctx context.Context, id string) (*model.TrainingSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM training_sessions WHERE id = ?`, id)
	return scanSession(row)
}

// ListSessions returns the owner's training sessions, most recently created first.
func (s *SQLiteStore) ListSessions(ctx context.Context, userID string) ([]*model.TrainingSession, error) {
	return s.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM training_sessions
		WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
}

// ListRunningSessions returns every session currently in the running state,
// across all owners. Used to resume advance loops after a restart.
func (s *SQLiteStore) ListRunningSessions(ctx context.Context) ([]*model.TrainingSession, error) {
	return s.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM training_sessions
		WHERE status = ? ORDER BY created_at`, model.StatusRunning)
}

func (s *SQLiteStore) querySessions(ctx context.Context, query string, args ...any) ([]*model.TrainingSession, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.TrainingSession
	for rows.Next() {
		ts, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// UpdateSessionStatus transitions a session to a new status, enforcing the
// transition table. Terminal transitions set completed_at. The updated row is
// returned.
func (s *SQLiteStore) UpdateSessionStatus(ctx context.Context, id, status string) (*model.TrainingSession, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ts, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM training_sessions WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	if !model.ValidTransition(ts.Status, status) {
		return nil, ErrInvalidTransition
	}

	now := time.Now().UTC()
	if model.TerminalStatus(status) {
		_, err = tx.ExecContext(ctx,
			`UPDATE training_sessions SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
			status, now, now, id)
		ts.CompletedAt = &now
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE training_sessions SET status = ?, updated_at = ? WHERE id = ?`,
			status, now, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update session status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	ts.Status = status
	ts.UpdatedAt = now
	return ts, nil
}

// AdvanceSession writes a progress value and tick metrics. The write is
// conditional on the session still being in the running state and on progress
// never decreasing; if the condition fails, ErrNotRunning is returned and
// nothing is written.
func (s *SQLiteStore) AdvanceSession(ctx context.Context, id string, progress int, m model.Metrics) error {
	metrics, err := marshalMetrics(&m)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE training_sessions SET progress = ?, metrics = ?, updated_at = ?
		WHERE id = ? AND status = ? AND progress <= ?`,
		progress, metrics, time.Now().UTC(), id, model.StatusRunning, progress,
	)
	if err != nil {
		return fmt.Errorf("advance session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotRunning
	}
	return nil
}

// CreateConversation inserts a new conversation record.
func (s *SQLiteStore) CreateConversation(ctx context.Context, c *model.Conversation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, engine_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.EngineID, c.Title, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by ID, scoped to its owner.
func (s *SQLiteStore) GetConversation(ctx context.Context, userID, id string) (*model.Conversation, error) {
	c := &model.Conversation{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, engine_id, title, created_at, updated_at
		FROM conversations WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&c.ID, &c.UserID, &c.EngineID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

// ListConversations returns the owner's conversations, most recently created first.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, engine_id, title, created_at, updated_at
		FROM conversations WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*model.Conversation
	for rows.Next() {
		c := &model.Conversation{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.EngineID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return convs, nil
}

// UpdateConversation overwrites the mutable conversation fields (title and
// engine link), scoped to the owner.
func (s *SQLiteStore) UpdateConversation(ctx context.Context, c *model.Conversation) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, engine_id = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		c.Title, c.EngineID, time.Now().UTC(), c.ID, c.UserID,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	return checkAffected(result)
}

// DeleteConversation removes a conversation and its messages in a single
// transaction.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("delete conversation messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// AppendMessage inserts a message. Messages are never updated or deleted
// individually.
func (s *SQLiteStore) AppendMessage(ctx context.Context, m *model.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Content, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages in chronological order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]*model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at
		FROM messages WHERE conversation_id = ? ORDER BY created_at, id`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*model.Message
	for rows.Next() {
		m := &model.Message{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// GetDashboardStats computes the owner's dashboard aggregates.
func (s *SQLiteStore) GetDashboardStats(ctx context.Context, userID string) (*DashboardStats, error) {
	stats := &DashboardStats{
		EnginesByStatus:  make(map[string]int),
		SessionsByStatus: make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM engines WHERE user_id = ? GROUP BY status`, userID)
	if err != nil {
		return nil, fmt.Errorf("engine stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan engine stats: %w", err)
		}
		stats.EnginesByStatus[status] = n
		stats.Engines += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate engine stats: %w", err)
	}

	sessionRows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM training_sessions WHERE user_id = ? GROUP BY status`, userID)
	if err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}
	defer sessionRows.Close()
	for sessionRows.Next() {
		var status string
		var n int
		if err := sessionRows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan session stats: %w", err)
		}
		stats.SessionsByStatus[status] = n
		stats.Sessions += n
	}
	if err := sessionRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session stats: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE user_id = ?`, userID,
	).Scan(&stats.Conversations); err != nil {
		return nil, fmt.Errorf("conversation stats: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(accuracy), 0) FROM engines WHERE user_id = ? AND accuracy IS NOT NULL`, userID,
	).Scan(&stats.AvgAccuracy); err != nil {
		return nil, fmt.Errorf("accuracy stats: %w", err)
	}

	return stats, nil
}

// scanner is the subset of sql.Row/sql.Rows used by scanSession.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*model.TrainingSession, error) {
	ts := &model.TrainingSession{}
	var metrics sql.NullString
	err := row.Scan(
		&ts.ID, &ts.EngineID, &ts.UserID, &ts.Name, &ts.Status, &ts.Progress,
		&ts.DatasetSize, &ts.Epochs, &ts.LearningRate, &ts.BatchSize, &metrics, &ts.ErrorMessage,
		&ts.StartedAt, &ts.CompletedAt, &ts.CreatedAt, &ts.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if metrics.Valid && metrics.String != "" {
		m := &model.Metrics{}
		if err := json.Unmarshal([]byte(metrics.String), m); err != nil {
			return nil, fmt.Errorf("decode metrics: %w", err)
		}
		ts.Metrics = m
	}
	return ts, nil
}

func marshalMetrics(m *model.Metrics) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metrics: %w", err)
	}
	return string(b), nil
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
