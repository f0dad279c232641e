package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sadopc/pomodash/internal/errors"
)

// GetDailyLog returns the stored rollup for date. A day without a row reads
// as an empty log.
func (s *Store) GetDailyLog(ctx context.Context, date string) (*DailyLog, error) {
	if s.anonymous() {
		return nil, nil
	}
	log := DailyLog{Date: date}
	err := s.db.QueryRowContext(ctx,
		`SELECT completed_sessions, total_focus_minutes FROM daily_logs WHERE user_id = ? AND date = ?`,
		s.userID, date).Scan(&log.CompletedSessions, &log.TotalFocusMinutes)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get daily log %s: %w", date, err)
	}
	return &log, nil
}

// RecomputeDailyLog derives the rollup for the local day date from
// pomodoro_history and upserts it.
func (s *Store) RecomputeDailyLog(ctx context.Context, date string) (*DailyLog, error) {
	if s.anonymous() {
		return nil, nil
	}
	start, end, err := DayBounds(date)
	if err != nil {
		return nil, err
	}

	log := DailyLog{Date: date}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(duration_minutes), 0) FROM pomodoro_history
		 WHERE user_id = ? AND ended_at >= ? AND ended_at < ?`,
		s.userID, formatTime(start), formatTime(end)).Scan(&log.CompletedSessions, &log.TotalFocusMinutes)
	if err != nil {
		return nil, fmt.Errorf("recompute daily log %s: %w", date, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO daily_logs (user_id, date, completed_sessions, total_focus_minutes) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, date) DO UPDATE SET
			completed_sessions = excluded.completed_sessions,
			total_focus_minutes = excluded.total_focus_minutes`,
		s.userID, date, log.CompletedSessions, log.TotalFocusMinutes)
	if err != nil {
		return nil, fmt.Errorf("upsert daily log %s: %w", date, err)
	}
	return &log, nil
}

// ListDailyLogs returns stored rollups with from <= date <= to, oldest first.
func (s *Store) ListDailyLogs(ctx context.Context, from, to string) ([]DailyLog, error) {
	if s.anonymous() {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, completed_sessions, total_focus_minutes FROM daily_logs
		 WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date`,
		s.userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list daily logs: %w", err)
	}
	defer rows.Close()

	var out []DailyLog
	for rows.Next() {
		var l DailyLog
		if err := rows.Scan(&l.Date, &l.CompletedSessions, &l.TotalFocusMinutes); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
