package store

import "time"

// Project completion criteria.
const (
	CriteriaManual          = "manual"
	CriteriaTaskCount       = "task_count"
	CriteriaDurationMinutes = "duration_minutes"
)

// Project statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusDue       = "due"
)

// Task is a unit of work pomodoros are spent on.
//
// TotalPoms nil marks an open-ended (stopwatch) task; otherwise it is the
// positive number of focus sessions after which the task counts as done.
type Task struct {
	ID                 string
	Text               string
	TotalPoms          *int
	CompletedPoms      int
	DueDate            *time.Time
	CompletedAt        *time.Time
	ProjectID          *string
	Tags               []string
	CustomFocusMinutes *int
	CustomBreakMinutes *int
	TaskOrder          *int
	Comments           []string
	CreatedAt          time.Time
}

// Done reports whether the task carries a completion timestamp.
func (t Task) Done() bool { return t.CompletedAt != nil }

// Stopwatch reports whether the task has no session target.
func (t Task) Stopwatch() bool { return t.TotalPoms == nil }

// Clone returns a deep copy so callers can keep a pre-mutation snapshot.
func (t Task) Clone() Task {
	c := t
	c.TotalPoms = cloneInt(t.TotalPoms)
	c.DueDate = cloneTime(t.DueDate)
	c.CompletedAt = cloneTime(t.CompletedAt)
	if t.ProjectID != nil {
		id := *t.ProjectID
		c.ProjectID = &id
	}
	c.CustomFocusMinutes = cloneInt(t.CustomFocusMinutes)
	c.CustomBreakMinutes = cloneInt(t.CustomBreakMinutes)
	c.TaskOrder = cloneInt(t.TaskOrder)
	c.Tags = append([]string(nil), t.Tags...)
	c.Comments = append([]string(nil), t.Comments...)
	return c
}

type Project struct {
	ID            string
	Name          string
	CriteriaType  string
	CriteriaValue *int
	ProgressValue int
	Status        string
	Deadline      *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
}

// Target tracks focus minutes spent on tasks carrying any of its tags.
type Target struct {
	ID              string
	Name            string
	Tags            []string
	TargetMinutes   int
	ProgressMinutes int
	StartDate       *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
}

// EffectiveStart is the instant from which history counts toward the target.
func (t Target) EffectiveStart() time.Time {
	if t.StartDate != nil {
		return *t.StartDate
	}
	return t.CreatedAt
}

type Goal struct {
	ID          string
	Title       string
	Description string
	TargetDate  *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

type Commitment struct {
	ID        string
	Text      string
	Date      string // YYYY-MM-DD
	Done      bool
	CreatedAt time.Time
}

// HistoryRecord is one completed focus session. History is append-only and
// is the source every derived total is recomputed from.
type HistoryRecord struct {
	ID              string
	TaskID          *string
	DurationMinutes int
	EndedAt         time.Time
}

// DailyLog is the per-day rollup of history. Never incremented in place.
type DailyLog struct {
	Date              string // YYYY-MM-DD
	CompletedSessions int
	TotalFocusMinutes int
}

type Setting struct {
	Key   string
	Value string
}

// Settings are the typed per-user timer preferences.
type Settings struct {
	FocusMinutes      int
	BreakMinutes      int
	SessionsPerCycle  int
	DailyGoalSessions int
}

// DefaultSettings mirrors the seeded settings rows.
func DefaultSettings() Settings {
	return Settings{
		FocusMinutes:      25,
		BreakMinutes:      5,
		SessionsPerCycle:  4,
		DailyGoalSessions: 8,
	}
}

// HistoryFilter narrows history queries.
type HistoryFilter struct {
	TaskIDs []string
	From    *time.Time
	To      *time.Time
	Limit   int
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// IntPtr is a convenience for optional integer fields.
func IntPtr(v int) *int { return &v }

// StringPtr is a convenience for optional string fields.
func StringPtr(v string) *string { return &v }

// TimePtr is a convenience for optional time fields.
func TimePtr(v time.Time) *time.Time { return &v }
