package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/sadopc/pomodash/internal/errors"
)

// Settings keys.
const (
	KeyFocusMinutes      = "focus_minutes"
	KeyBreakMinutes      = "break_minutes"
	KeySessionsPerCycle  = "sessions_per_cycle"
	KeyDailyGoalSessions = "daily_goal_sessions"
)

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	if s.anonymous() {
		return "", nil
	}
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE user_id = ? AND key = ?`, s.userID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get setting %q: %w", key, errors.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if s.anonymous() {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (user_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value`,
		s.userID, key, value,
	)
	return err
}

func (s *Store) GetAllSettings(ctx context.Context) ([]Setting, error) {
	if s.anonymous() {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM settings WHERE user_id = ? ORDER BY key`, s.userID)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var st Setting
		if err := rows.Scan(&st.Key, &st.Value); err != nil {
			return nil, err
		}
		settings = append(settings, st)
	}
	return settings, rows.Err()
}

// GetSettings returns the typed timer preferences. Missing or malformed rows
// fall back to DefaultSettings.
func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	out := DefaultSettings()
	all, err := s.GetAllSettings(ctx)
	if err != nil {
		return out, err
	}
	for _, st := range all {
		n, err := strconv.Atoi(st.Value)
		if err != nil || n <= 0 {
			continue
		}
		switch st.Key {
		case KeyFocusMinutes:
			out.FocusMinutes = n
		case KeyBreakMinutes:
			out.BreakMinutes = n
		case KeySessionsPerCycle:
			out.SessionsPerCycle = n
		case KeyDailyGoalSessions:
			out.DailyGoalSessions = n
		}
	}
	return out, nil
}

// SaveSettings writes every typed preference in one transaction.
func (s *Store) SaveSettings(ctx context.Context, st Settings) error {
	if s.anonymous() {
		return nil
	}
	values := map[string]int{
		KeyFocusMinutes:      st.FocusMinutes,
		KeyBreakMinutes:      st.BreakMinutes,
		KeySessionsPerCycle:  st.SessionsPerCycle,
		KeyDailyGoalSessions: st.DailyGoalSessions,
	}
	for k, v := range values {
		if v <= 0 {
			return fmt.Errorf("%w: setting %s must be positive", errors.ErrInvalidConfig, k)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	defer tx.Rollback()

	for k, v := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (user_id, key, value) VALUES (?, ?, ?)
			 ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value`,
			s.userID, k, strconv.Itoa(v)); err != nil {
			return fmt.Errorf("save setting %s: %w", k, err)
		}
	}
	return tx.Commit()
}
