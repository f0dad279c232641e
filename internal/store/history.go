package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sadopc/pomodash/internal/errors"
)

// AddHistory appends a completed focus session. A zero EndedAt is stamped
// with the store clock.
func (s *Store) AddHistory(ctx context.Context, r HistoryRecord) (*HistoryRecord, error) {
	if s.anonymous() {
		return nil, nil
	}
	if r.DurationMinutes <= 0 {
		return nil, fmt.Errorf("insert history: duration must be positive")
	}
	r.ID = newID()
	if r.EndedAt.IsZero() {
		r.EndedAt = s.now()
	}
	r.EndedAt = parseTime(formatTime(r.EndedAt))
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pomodoro_history (id, user_id, task_id, duration_minutes, ended_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, s.userID, nullString(r.TaskID), r.DurationMinutes, formatTime(r.EndedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}
	return &r, nil
}

func (s *Store) GetHistory(ctx context.Context, id string) (*HistoryRecord, error) {
	if s.anonymous() {
		return nil, nil
	}
	r, err := scanHistory(s.db.QueryRowContext(ctx,
		`SELECT id, task_id, duration_minutes, ended_at FROM pomodoro_history WHERE id = ? AND user_id = ?`,
		id, s.userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get history %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get history %s: %w", id, err)
	}
	return r, nil
}

// ListHistory returns history rows newest first.
func (s *Store) ListHistory(ctx context.Context, f HistoryFilter) ([]HistoryRecord, error) {
	if s.anonymous() {
		return nil, nil
	}
	where, args := historyWhere(s.userID, f)
	query := `SELECT id, task_id, duration_minutes, ended_at FROM pomodoro_history WHERE ` +
		where + ` ORDER BY ended_at DESC, id`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		r, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// SumHistory totals duration_minutes over rows matching f. An empty
// TaskIDs slice with a non-nil (but empty) filter list matches nothing.
func (s *Store) SumHistory(ctx context.Context, f HistoryFilter) (int, error) {
	if s.anonymous() {
		return 0, nil
	}
	if f.TaskIDs != nil && len(f.TaskIDs) == 0 {
		return 0, nil
	}
	where, args := historyWhere(s.userID, f)
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(duration_minutes), 0) FROM pomodoro_history WHERE `+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum history: %w", err)
	}
	return total, nil
}

// DeleteHistory removes a record and returns it so callers can recompute
// whatever was derived from it.
func (s *Store) DeleteHistory(ctx context.Context, id string) (*HistoryRecord, error) {
	if s.anonymous() {
		return nil, nil
	}
	r, err := s.GetHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM pomodoro_history WHERE id = ? AND user_id = ?`, id, s.userID); err != nil {
		return nil, fmt.Errorf("delete history %s: %w", id, err)
	}
	return r, nil
}

func historyWhere(userID string, f HistoryFilter) (string, []any) {
	clauses := []string{"user_id = ?"}
	args := []any{userID}
	if len(f.TaskIDs) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(f.TaskIDs)), ",")
		clauses = append(clauses, "task_id IN ("+marks+")")
		for _, id := range f.TaskIDs {
			args = append(args, id)
		}
	}
	if f.From != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		clauses = append(clauses, "ended_at < ?")
		args = append(args, formatTime(*f.To))
	}
	return strings.Join(clauses, " AND "), args
}

func scanHistory(r rowScanner) (*HistoryRecord, error) {
	var (
		h       HistoryRecord
		taskID  sql.NullString
		endedAt string
	)
	if err := r.Scan(&h.ID, &taskID, &h.DurationMinutes, &endedAt); err != nil {
		return nil, err
	}
	h.TaskID = scanString(taskID)
	h.EndedAt = parseTime(endedAt)
	return &h, nil
}

// TimeRange is a convenience for history filters bounded on both sides.
func TimeRange(from, to time.Time) HistoryFilter {
	return HistoryFilter{From: &from, To: &to}
}
