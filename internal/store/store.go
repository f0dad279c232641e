package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const currentVersion = 1

const dateLayout = "2006-01-02"

// Store is the identity-scoped data store. Every row it reads or writes
// belongs to userID; with an empty userID all operations are no-ops that
// return zero values and a nil error.
type Store struct {
	db     *sql.DB
	userID string
	now    func() time.Time
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

// WithUser returns a view of the store scoped to userID. The views share the
// underlying connection; closing any of them closes all.
func (s *Store) WithUser(userID string) *Store {
	c := *s
	c.userID = userID
	return &c
}

// WithClock returns a view that stamps created_at/completed_at with now.
func (s *Store) WithClock(now func() time.Time) *Store {
	c := *s
	c.now = now
	return &c
}

// UserID is the identity the store is scoped to.
func (s *Store) UserID() string { return s.userID }

func (s *Store) anonymous() bool { return s.userID == "" }

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS projects (
		id                        TEXT PRIMARY KEY,
		user_id                   TEXT NOT NULL,
		name                      TEXT NOT NULL,
		completion_criteria_type  TEXT NOT NULL DEFAULT 'manual',
		completion_criteria_value INTEGER,
		progress_value            INTEGER NOT NULL DEFAULT 0,
		status                    TEXT NOT NULL DEFAULT 'active',
		deadline                  TEXT,
		completed_at              TEXT,
		created_at                TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id                    TEXT PRIMARY KEY,
		user_id               TEXT NOT NULL,
		text                  TEXT NOT NULL,
		total_poms            INTEGER,
		completed_poms        INTEGER NOT NULL DEFAULT 0,
		due_date              TEXT,
		completed_at          TEXT,
		project_id            TEXT REFERENCES projects(id) ON DELETE SET NULL,
		tags                  TEXT NOT NULL DEFAULT '[]',
		custom_focus_duration INTEGER,
		custom_break_duration INTEGER,
		task_order            INTEGER,
		comments              TEXT NOT NULL DEFAULT '[]',
		created_at            TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_user    ON tasks(user_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);

	CREATE TABLE IF NOT EXISTS targets (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		name             TEXT NOT NULL,
		tags             TEXT NOT NULL DEFAULT '[]',
		target_minutes   INTEGER NOT NULL,
		progress_minutes INTEGER NOT NULL DEFAULT 0,
		start_date       TEXT,
		completed_at     TEXT,
		created_at       TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS goals (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		target_date  TEXT,
		completed_at TEXT,
		created_at   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS commitments (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		text       TEXT NOT NULL,
		date       TEXT NOT NULL,
		done       INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pomodoro_history (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		task_id          TEXT,
		duration_minutes INTEGER NOT NULL,
		ended_at         TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_user_ended ON pomodoro_history(user_id, ended_at);
	CREATE INDEX IF NOT EXISTS idx_history_task       ON pomodoro_history(task_id);

	CREATE TABLE IF NOT EXISTS daily_logs (
		user_id             TEXT NOT NULL,
		date                TEXT NOT NULL,
		completed_sessions  INTEGER NOT NULL DEFAULT 0,
		total_focus_minutes INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, date)
	);

	CREATE TABLE IF NOT EXISTS settings (
		user_id TEXT NOT NULL,
		key     TEXT NOT NULL,
		value   TEXT NOT NULL,
		PRIMARY KEY (user_id, key)
	);
	`
	_, err := s.db.Exec(ddl)
	return err
}

func newID() string { return uuid.NewString() }

func (s *Store) stamp() string {
	return formatTime(s.now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339, v)
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func scanTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func scanDate(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.ParseInLocation(dateLayout, ns.String, time.Local)
	if err != nil {
		return nil
	}
	return &t
}

func scanInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func scanString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func encodeList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeList(v string) []string {
	var out []string
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return nil
	}
	return out
}

// DayBounds returns the UTC instants bounding the local calendar day date.
func DayBounds(date string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, date, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	return day, day.AddDate(0, 0, 1), nil
}

// DateOf formats t as a local YYYY-MM-DD day key.
func DateOf(t time.Time) string {
	return t.In(time.Local).Format(dateLayout)
}

func exec(ctx context.Context, db *sql.DB, query string, args ...any) (int64, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
