package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sadopc/pomodash/internal/errors"
)

const targetColumns = `id, name, tags, target_minutes, progress_minutes, start_date, completed_at, created_at`

func validateTarget(t *Target) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is empty", errors.ErrInvalidTarget)
	}
	if t.TargetMinutes <= 0 {
		return fmt.Errorf("%w: target minutes must be positive", errors.ErrInvalidTarget)
	}
	if len(t.Tags) == 0 {
		return fmt.Errorf("%w: at least one tag is required", errors.ErrInvalidTarget)
	}
	return nil
}

func (s *Store) CreateTarget(ctx context.Context, t Target) (*Target, error) {
	if s.anonymous() {
		return nil, nil
	}
	if err := validateTarget(&t); err != nil {
		return nil, err
	}
	t.ID = newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO targets (id, user_id, name, tags, target_minutes, progress_minutes, start_date, completed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, s.userID, t.Name, encodeList(t.Tags), t.TargetMinutes, t.ProgressMinutes,
		nullTime(t.StartDate), nullTime(t.CompletedAt), s.stamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert target: %w", err)
	}
	return s.GetTarget(ctx, t.ID)
}

func (s *Store) GetTarget(ctx context.Context, id string) (*Target, error) {
	if s.anonymous() {
		return nil, nil
	}
	t, err := scanTarget(s.db.QueryRowContext(ctx,
		`SELECT `+targetColumns+` FROM targets WHERE id = ? AND user_id = ?`, id, s.userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get target %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get target %s: %w", id, err)
	}
	return t, nil
}

func (s *Store) ListTargets(ctx context.Context) ([]Target, error) {
	if s.anonymous() {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+targetColumns+` FROM targets WHERE user_id = ? ORDER BY created_at, rowid`, s.userID)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var targets []Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, *t)
	}
	return targets, rows.Err()
}

func (s *Store) UpdateTarget(ctx context.Context, t *Target) error {
	if s.anonymous() {
		return nil
	}
	if err := validateTarget(t); err != nil {
		return err
	}
	n, err := exec(ctx, s.db,
		`UPDATE targets SET name = ?, tags = ?, target_minutes = ?, progress_minutes = ?,
			start_date = ?, completed_at = ?
		 WHERE id = ? AND user_id = ?`,
		t.Name, encodeList(t.Tags), t.TargetMinutes, t.ProgressMinutes,
		nullTime(t.StartDate), nullTime(t.CompletedAt), t.ID, s.userID,
	)
	if err != nil {
		return fmt.Errorf("update target %s: %w", t.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update target %s: %w", t.ID, errors.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteTarget(ctx context.Context, id string) error {
	if s.anonymous() {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM targets WHERE id = ? AND user_id = ?`, id, s.userID); err != nil {
		return fmt.Errorf("delete target %s: %w", id, err)
	}
	return nil
}

func scanTarget(r rowScanner) (*Target, error) {
	var (
		t                      Target
		tags, createdAt        string
		startDate, completedAt sql.NullString
	)
	err := r.Scan(&t.ID, &t.Name, &tags, &t.TargetMinutes, &t.ProgressMinutes,
		&startDate, &completedAt, &createdAt)
	if err != nil {
		return nil, err
	}
	t.Tags = decodeList(tags)
	t.StartDate = scanTime(startDate)
	t.CompletedAt = scanTime(completedAt)
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}
