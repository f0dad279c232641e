package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sadopc/pomodash/internal/errors"
)

const projectColumns = `id, name, completion_criteria_type, completion_criteria_value, progress_value,
	status, deadline, completed_at, created_at`

func validateProject(p *Project) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is empty", errors.ErrInvalidProject)
	}
	switch p.CriteriaType {
	case CriteriaManual, CriteriaTaskCount, CriteriaDurationMinutes:
	case "":
		p.CriteriaType = CriteriaManual
	default:
		return fmt.Errorf("%w: unknown criteria %q", errors.ErrInvalidProject, p.CriteriaType)
	}
	switch p.Status {
	case StatusActive, StatusCompleted, StatusDue:
	case "":
		p.Status = StatusActive
	default:
		return fmt.Errorf("%w: unknown status %q", errors.ErrInvalidProject, p.Status)
	}
	if p.CriteriaValue != nil && *p.CriteriaValue <= 0 {
		return fmt.Errorf("%w: criteria value must be positive", errors.ErrInvalidProject)
	}
	return nil
}

func (s *Store) CreateProject(ctx context.Context, p Project) (*Project, error) {
	if s.anonymous() {
		return nil, nil
	}
	if err := validateProject(&p); err != nil {
		return nil, err
	}
	p.ID = newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, user_id, name, completion_criteria_type, completion_criteria_value,
			progress_value, status, deadline, completed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, s.userID, p.Name, p.CriteriaType, nullInt(p.CriteriaValue), p.ProgressValue,
		p.Status, nullDate(p.Deadline), nullTime(p.CompletedAt), s.stamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return s.GetProject(ctx, p.ID)
}

func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	if s.anonymous() {
		return nil, nil
	}
	p, err := scanProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ? AND user_id = ?`, id, s.userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get project %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	if s.anonymous() {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE user_id = ? ORDER BY name, rowid`, s.userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// UpdateProject overwrites the project row, derived columns included.
func (s *Store) UpdateProject(ctx context.Context, p *Project) error {
	if s.anonymous() {
		return nil
	}
	if err := validateProject(p); err != nil {
		return err
	}
	n, err := exec(ctx, s.db,
		`UPDATE projects SET name = ?, completion_criteria_type = ?, completion_criteria_value = ?,
			progress_value = ?, status = ?, deadline = ?, completed_at = ?
		 WHERE id = ? AND user_id = ?`,
		p.Name, p.CriteriaType, nullInt(p.CriteriaValue), p.ProgressValue, p.Status,
		nullDate(p.Deadline), nullTime(p.CompletedAt), p.ID, s.userID,
	)
	if err != nil {
		return fmt.Errorf("update project %s: %w", p.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update project %s: %w", p.ID, errors.ErrNotFound)
	}
	return nil
}

// DeleteProject removes the project; its tasks are detached, not deleted.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if s.anonymous() {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM projects WHERE id = ? AND user_id = ?`, id, s.userID); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return nil
}

func scanProject(r rowScanner) (*Project, error) {
	var (
		p                     Project
		value                 sql.NullInt64
		deadline, completedAt sql.NullString
		createdAt             string
	)
	err := r.Scan(&p.ID, &p.Name, &p.CriteriaType, &value, &p.ProgressValue, &p.Status,
		&deadline, &completedAt, &createdAt)
	if err != nil {
		return nil, err
	}
	p.CriteriaValue = scanInt(value)
	p.Deadline = scanDate(deadline)
	p.CompletedAt = scanTime(completedAt)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}
