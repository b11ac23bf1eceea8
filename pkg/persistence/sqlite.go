package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"assistant/pkg/logx"
)

const timeLayout = time.RFC3339Nano

// SQLiteStore implements UserStore on a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	now    func() time.Time
	logger *logx.Logger
}

// OpenSQLite opens (creating if needed) the database at path and brings its schema up to date.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		path,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initializeSchemaWithMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now, logger: logx.NewLogger("persistence")}
	s.logger.Info("📦 Database initialized: %s (schema v%d)", path, CurrentSchemaVersion)
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func (s *SQLiteStore) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

// ensureUser creates an empty profile for id if none exists.
func (s *SQLiteStore) ensureUser(ctx context.Context, id string) error {
	now := s.stamp()
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO users (id, created_at, updated_at) VALUES (?, ?, ?)", id, now, now)
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", id, err)
	}
	return nil
}

// FindUser implements UserStore.
func (s *SQLiteStore) FindUser(ctx context.Context, id string) (*UserProfile, error) {
	var u UserProfile
	var created, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, assistant_name, preferred_language, created_at, updated_at
		 FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.AssistantName, &u.PreferredLanguage, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user %s: %w", id, err)
	}
	u.CreatedAt = parseTime(created)
	u.UpdatedAt = parseTime(updated)
	return &u, nil
}

// UpsertUser implements UserStore.
func (s *SQLiteStore) UpsertUser(ctx context.Context, u *UserProfile) error {
	if u == nil || u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	lang := u.PreferredLanguage
	if lang == "" {
		lang = "en"
	}
	now := s.stamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, assistant_name, preferred_language, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			assistant_name = excluded.assistant_name,
			preferred_language = excluded.preferred_language,
			updated_at = excluded.updated_at`,
		u.ID, u.Name, u.AssistantName, lang, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}
	return nil
}

// AppendHistory implements UserStore.
func (s *SQLiteStore) AppendHistory(ctx context.Context, id, text string) error {
	if err := s.ensureUser(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO history (user_id, text, created_at) VALUES (?, ?, ?)", id, text, s.stamp())
	if err != nil {
		return fmt.Errorf("failed to append history for %s: %w", id, err)
	}
	return nil
}

// AppendReminder implements UserStore.
func (s *SQLiteStore) AppendReminder(ctx context.Context, id string, r Reminder) error {
	if err := s.ensureUser(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO reminders (user_id, remind_at, message, active, created_at) VALUES (?, ?, ?, ?, ?)",
		id, r.Time.UTC().Format(timeLayout), r.Message, boolToInt(r.Active), s.stamp())
	if err != nil {
		return fmt.Errorf("failed to append reminder for %s: %w", id, err)
	}
	return nil
}

// UpdateAssistantName implements UserStore.
func (s *SQLiteStore) UpdateAssistantName(ctx context.Context, id, name string) error {
	return s.updateColumn(ctx, id, "assistant_name", name)
}

// UpdatePreferredLanguage implements UserStore.
func (s *SQLiteStore) UpdatePreferredLanguage(ctx context.Context, id, code string) error {
	return s.updateColumn(ctx, id, "preferred_language", code)
}

// updateColumn sets one profile column. column is never caller-supplied.
func (s *SQLiteStore) updateColumn(ctx context.Context, id, column, value string) error {
	if err := s.ensureUser(ctx, id); err != nil {
		return err
	}
	//nolint:gosec // column comes from the fixed set above
	query := fmt.Sprintf("UPDATE users SET %s = ?, updated_at = ? WHERE id = ?", column)
	if _, err := s.db.ExecContext(ctx, query, value, s.stamp(), id); err != nil {
		return fmt.Errorf("failed to update %s for %s: %w", column, id, err)
	}
	return nil
}

// History returns the most recent entries for id, newest first.
func (s *SQLiteStore) History(ctx context.Context, id string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT text, created_at FROM history WHERE user_id = ? ORDER BY id DESC LIMIT ?", id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var created string
		if err := rows.Scan(&e.Text, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.CreatedAt = parseTime(created)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	return entries, nil
}

// Reminders returns the reminders for id ordered by time.
func (s *SQLiteStore) Reminders(ctx context.Context, id string) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT remind_at, message, active FROM reminders WHERE user_id = ? ORDER BY remind_at, id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders for %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		var at string
		var active int
		if err := rows.Scan(&at, &r.Message, &active); err != nil {
			return nil, fmt.Errorf("failed to scan reminder row: %w", err)
		}
		r.Time = parseTime(at)
		r.Active = active != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminder rows: %w", err)
	}
	return out, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
