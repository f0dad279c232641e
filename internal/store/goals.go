package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

func (s *Store) CreateGoal(ctx context.Context, g Goal) (*Goal, error) {
	if s.anonymous() {
		return nil, nil
	}
	if strings.TrimSpace(g.Title) == "" {
		return nil, fmt.Errorf("insert goal: title is empty")
	}
	g.ID = newID()
	created := s.stamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (id, user_id, title, description, target_date, completed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, s.userID, g.Title, g.Description, nullDate(g.TargetDate), nullTime(g.CompletedAt), created,
	)
	if err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}
	g.CreatedAt = parseTime(created)
	return &g, nil
}

// ListGoals returns open goals first, then completed ones.
func (s *Store) ListGoals(ctx context.Context) ([]Goal, error) {
	if s.anonymous() {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, target_date, completed_at, created_at
		 FROM goals WHERE user_id = ?
		 ORDER BY completed_at IS NOT NULL, target_date IS NULL, target_date, created_at, rowid`, s.userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []Goal
	for rows.Next() {
		var g Goal
		var targetDate, completedAt sql.NullString
		var createdAt string
		if err := rows.Scan(&g.ID, &g.Title, &g.Description, &targetDate, &completedAt, &createdAt); err != nil {
			return nil, err
		}
		g.TargetDate = scanDate(targetDate)
		g.CompletedAt = scanTime(completedAt)
		g.CreatedAt = parseTime(createdAt)
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// CompleteGoal stamps the goal as done at the store clock's now.
func (s *Store) CompleteGoal(ctx context.Context, id string) error {
	if s.anonymous() {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE goals SET completed_at = ? WHERE id = ? AND user_id = ?`, s.stamp(), id, s.userID)
	return err
}

func (s *Store) DeleteGoal(ctx context.Context, id string) error {
	if s.anonymous() {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ? AND user_id = ?`, id, s.userID)
	return err
}

// CreateCommitment records a small promise for a given day.
func (s *Store) CreateCommitment(ctx context.Context, text string, day time.Time) (*Commitment, error) {
	if s.anonymous() {
		return nil, nil
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("insert commitment: text is empty")
	}
	c := Commitment{ID: newID(), Text: text, Date: DateOf(day)}
	created := s.stamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO commitments (id, user_id, text, date, done, created_at) VALUES (?, ?, ?, ?, 0, ?)`,
		c.ID, s.userID, c.Text, c.Date, created,
	)
	if err != nil {
		return nil, fmt.Errorf("insert commitment: %w", err)
	}
	c.CreatedAt = parseTime(created)
	return &c, nil
}

func (s *Store) ListCommitments(ctx context.Context, date string) ([]Commitment, error) {
	if s.anonymous() {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, date, done, created_at FROM commitments
		 WHERE user_id = ? AND date = ? ORDER BY created_at, rowid`, s.userID, date)
	if err != nil {
		return nil, fmt.Errorf("list commitments: %w", err)
	}
	defer rows.Close()

	var out []Commitment
	for rows.Next() {
		var c Commitment
		var done int
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Text, &c.Date, &done, &createdAt); err != nil {
			return nil, err
		}
		c.Done = done == 1
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) SetCommitmentDone(ctx context.Context, id string, done bool) error {
	if s.anonymous() {
		return nil
	}
	v := 0
	if done {
		v = 1
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE commitments SET done = ? WHERE id = ? AND user_id = ?`, v, id, s.userID)
	return err
}

func (s *Store) DeleteCommitment(ctx context.Context, id string) error {
	if s.anonymous() {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM commitments WHERE id = ? AND user_id = ?`, id, s.userID)
	return err
}
