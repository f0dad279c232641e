package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sadopc/pomodash/internal/errors"
)

const taskColumns = `id, text, total_poms, completed_poms, due_date, completed_at, project_id,
	tags, custom_focus_duration, custom_break_duration, task_order, comments, created_at`

// ValidateTask rejects rows that would make the completion rules ambiguous.
func ValidateTask(t *Task) error {
	if strings.TrimSpace(t.Text) == "" {
		return fmt.Errorf("%w: text is empty", errors.ErrInvalidTask)
	}
	if t.TotalPoms != nil && *t.TotalPoms <= 0 {
		return fmt.Errorf("%w: total_poms must be positive or unset", errors.ErrInvalidTask)
	}
	if t.CompletedPoms < 0 {
		return fmt.Errorf("%w: completed_poms is negative", errors.ErrInvalidTask)
	}
	if t.CustomFocusMinutes != nil && *t.CustomFocusMinutes <= 0 {
		return fmt.Errorf("%w: custom focus duration must be positive", errors.ErrInvalidTask)
	}
	if t.CustomBreakMinutes != nil && *t.CustomBreakMinutes <= 0 {
		return fmt.Errorf("%w: custom break duration must be positive", errors.ErrInvalidTask)
	}
	return nil
}

// CreateTask inserts t and returns the stored row. ID and CreatedAt are
// assigned by the store.
func (s *Store) CreateTask(ctx context.Context, t Task) (*Task, error) {
	if s.anonymous() {
		return nil, nil
	}
	if err := ValidateTask(&t); err != nil {
		return nil, err
	}
	t.ID = newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, text, total_poms, completed_poms, due_date, completed_at, project_id,
			tags, custom_focus_duration, custom_break_duration, task_order, comments, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, s.userID, t.Text, nullInt(t.TotalPoms), t.CompletedPoms, nullDate(t.DueDate),
		nullTime(t.CompletedAt), nullString(t.ProjectID), encodeList(t.Tags),
		nullInt(t.CustomFocusMinutes), nullInt(t.CustomBreakMinutes), nullInt(t.TaskOrder),
		encodeList(t.Comments), s.stamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.GetTask(ctx, t.ID)
}

func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	if s.anonymous() {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, id, s.userID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get task %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// ListTasks returns the user's tasks in display order: manual task_order
// first (ascending), then unordered tasks by creation time.
func (s *Store) ListTasks(ctx context.Context) ([]Task, error) {
	if s.anonymous() {
		return nil, nil
	}
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ?
		 ORDER BY task_order IS NULL, task_order, created_at, rowid`, s.userID)
}

// ListProjectTasks returns every task assigned to projectID.
func (s *Store) ListProjectTasks(ctx context.Context, projectID string) ([]Task, error) {
	if s.anonymous() {
		return nil, nil
	}
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? AND project_id = ?
		 ORDER BY created_at, rowid`, s.userID, projectID)
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// UpdateTask overwrites every mutable column of t.
func (s *Store) UpdateTask(ctx context.Context, t *Task) error {
	if s.anonymous() {
		return nil
	}
	if err := ValidateTask(t); err != nil {
		return err
	}
	n, err := exec(ctx, s.db,
		`UPDATE tasks SET text = ?, total_poms = ?, completed_poms = ?, due_date = ?, completed_at = ?,
			project_id = ?, tags = ?, custom_focus_duration = ?, custom_break_duration = ?,
			task_order = ?, comments = ?
		 WHERE id = ? AND user_id = ?`,
		t.Text, nullInt(t.TotalPoms), t.CompletedPoms, nullDate(t.DueDate), nullTime(t.CompletedAt),
		nullString(t.ProjectID), encodeList(t.Tags), nullInt(t.CustomFocusMinutes),
		nullInt(t.CustomBreakMinutes), nullInt(t.TaskOrder), encodeList(t.Comments),
		t.ID, s.userID,
	)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update task %s: %w", t.ID, errors.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if s.anonymous() {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, s.userID)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// ReorderTasks assigns task_order 0..n-1 following ids.
func (s *Store) ReorderTasks(ctx context.Context, ids []string) error {
	if s.anonymous() {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reorder tasks: %w", err)
	}
	defer tx.Rollback()

	for i, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET task_order = ? WHERE id = ? AND user_id = ?`, i, id, s.userID); err != nil {
			return fmt.Errorf("reorder task %s: %w", id, err)
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (*Task, error) {
	var (
		t                               Task
		totalPoms, focus, brk, order    sql.NullInt64
		dueDate, completedAt, projectID sql.NullString
		tags, comments, createdAt       string
	)
	err := r.Scan(&t.ID, &t.Text, &totalPoms, &t.CompletedPoms, &dueDate, &completedAt, &projectID,
		&tags, &focus, &brk, &order, &comments, &createdAt)
	if err != nil {
		return nil, err
	}
	t.TotalPoms = scanInt(totalPoms)
	t.DueDate = scanDate(dueDate)
	t.CompletedAt = scanTime(completedAt)
	t.ProjectID = scanString(projectID)
	t.Tags = decodeList(tags)
	t.CustomFocusMinutes = scanInt(focus)
	t.CustomBreakMinutes = scanInt(brk)
	t.TaskOrder = scanInt(order)
	t.Comments = decodeList(comments)
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}
