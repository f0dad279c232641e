package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sadopc/pomodash/internal/clock"
	"github.com/sadopc/pomodash/internal/errors"
	"github.com/sadopc/pomodash/internal/store"
)

// Store is the slice of the data store the engine reads and writes.
type Store interface {
	GetProject(ctx context.Context, id string) (*store.Project, error)
	ListProjects(ctx context.Context) ([]store.Project, error)
	UpdateProject(ctx context.Context, p *store.Project) error
	ListProjectTasks(ctx context.Context, projectID string) ([]store.Task, error)
	GetTarget(ctx context.Context, id string) (*store.Target, error)
	ListTargets(ctx context.Context) ([]store.Target, error)
	UpdateTarget(ctx context.Context, t *store.Target) error
	GetTask(ctx context.Context, id string) (*store.Task, error)
	ListTasks(ctx context.Context) ([]store.Task, error)
	ListHistory(ctx context.Context, f store.HistoryFilter) ([]store.HistoryRecord, error)
	SumHistory(ctx context.Context, f store.HistoryFilter) (int, error)
	RecomputeDailyLog(ctx context.Context, date string) (*store.DailyLog, error)
}

// Result lists the entities a recalculation touched, changed or not.
type Result struct {
	Projects []store.Project
	Targets  []store.Target
	Daily    *store.DailyLog
}

func (r *Result) merge(o Result) {
	r.Projects = append(r.Projects, o.Projects...)
	r.Targets = append(r.Targets, o.Targets...)
	if o.Daily != nil {
		r.Daily = o.Daily
	}
}

// Engine recalculates derived progress against a Store.
type Engine struct {
	store  Store
	clock  clock.Clock
	logger zerolog.Logger
}

type Option func(*Engine)

func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l.With().Str("component", "progress").Logger() }
}

func NewEngine(s Store, opts ...Option) *Engine {
	e := &Engine{store: s, clock: clock.RealClock{}, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RecalculateProject re-derives one project's progress and status. Manual
// projects are returned unchanged. The row is written only if a derived
// column changed.
func (e *Engine) RecalculateProject(ctx context.Context, id string) (*store.Project, error) {
	p, err := e.store.GetProject(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	if p.CriteriaType == store.CriteriaManual {
		return p, nil
	}

	tasks, err := e.store.ListProjectTasks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("project %s tasks: %w", id, err)
	}
	minutes := 0
	if p.CriteriaType == store.CriteriaDurationMinutes {
		minutes, err = e.store.SumHistory(ctx, store.HistoryFilter{TaskIDs: CompletedTaskIDs(tasks)})
		if err != nil {
			return nil, fmt.Errorf("project %s minutes: %w", id, err)
		}
	}

	progress, _ := ProjectProgress(*p, tasks, minutes)
	next := DeriveStatus(*p, progress, e.clock.Now())
	if !projectChanged(*p, next) {
		return p, nil
	}
	if err := e.store.UpdateProject(ctx, &next); err != nil {
		return nil, err
	}
	e.logger.Debug().Str("project", id).Int("progress", next.ProgressValue).
		Str("status", next.Status).Msg("project recalculated")
	return &next, nil
}

// RecalculateTarget re-derives one target's minutes and completion.
func (e *Engine) RecalculateTarget(ctx context.Context, id string) (*store.Target, error) {
	tg, err := e.store.GetTarget(ctx, id)
	if err != nil || tg == nil {
		return nil, err
	}
	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("target %s tasks: %w", id, err)
	}
	return e.recalculateTarget(ctx, *tg, tasks)
}

func (e *Engine) recalculateTarget(ctx context.Context, tg store.Target, tasks []store.Task) (*store.Target, error) {
	var history []store.HistoryRecord
	if ids := MatchingTaskIDs(tg.Tags, tasks); len(ids) > 0 {
		start := tg.EffectiveStart()
		var err error
		history, err = e.store.ListHistory(ctx, store.HistoryFilter{TaskIDs: ids, From: &start})
		if err != nil {
			return nil, fmt.Errorf("target %s history: %w", tg.ID, err)
		}
	}

	next := ApplyTargetProgress(tg, TargetProgress(tg, tasks, history), e.clock.Now())
	if next.ProgressMinutes == tg.ProgressMinutes && sameTime(next.CompletedAt, tg.CompletedAt) {
		return &tg, nil
	}
	if err := e.store.UpdateTarget(ctx, &next); err != nil {
		return nil, err
	}
	e.logger.Debug().Str("target", tg.ID).Int("minutes", next.ProgressMinutes).Msg("target recalculated")
	return &next, nil
}

// RecalculateAll recomputes every project and target concurrently.
func (e *Engine) RecalculateAll(ctx context.Context) (Result, error) {
	projects, err := e.store.ListProjects(ctx)
	if err != nil {
		return Result{}, err
	}
	targets, err := e.store.ListTargets(ctx)
	if err != nil {
		return Result{}, err
	}
	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		return Result{}, err
	}

	var (
		mu  sync.Mutex
		res Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, p := range projects {
		g.Go(func() error {
			updated, err := e.RecalculateProject(gctx, p.ID)
			if err != nil || updated == nil {
				return err
			}
			mu.Lock()
			res.Projects = append(res.Projects, *updated)
			mu.Unlock()
			return nil
		})
	}
	for _, tg := range targets {
		g.Go(func() error {
			updated, err := e.recalculateTarget(gctx, tg, tasks)
			if err != nil || updated == nil {
				return err
			}
			mu.Lock()
			res.Targets = append(res.Targets, *updated)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

// TaskChanged recalculates everything a task edit can affect: the union of
// the old and new projects and of targets matching the old or new tags.
// Either side may be nil for creation or deletion.
func (e *Engine) TaskChanged(ctx context.Context, before, after *store.Task) (Result, error) {
	var projectIDs []string
	var tags []string
	for _, t := range []*store.Task{before, after} {
		if t == nil {
			continue
		}
		if t.ProjectID != nil {
			projectIDs = appendUnique(projectIDs, *t.ProjectID)
		}
		tags = append(tags, t.Tags...)
	}
	return e.recalculate(ctx, projectIDs, tags)
}

// TaskDeleted recalculates what the deleted task contributed to.
func (e *Engine) TaskDeleted(ctx context.Context, task store.Task) (Result, error) {
	return e.TaskChanged(ctx, &task, nil)
}

// HistoryDeleted recomputes the record's day and, when the record belongs to
// a task that still exists, that task's project and targets.
func (e *Engine) HistoryDeleted(ctx context.Context, rec store.HistoryRecord) (Result, error) {
	var res Result
	daily, err := e.store.RecomputeDailyLog(ctx, store.DateOf(rec.EndedAt))
	if err != nil {
		return res, err
	}
	res.Daily = daily

	if rec.TaskID == nil {
		return res, nil
	}
	task, err := e.store.GetTask(ctx, *rec.TaskID)
	if errors.Is(err, errors.ErrNotFound) || (err == nil && task == nil) {
		return res, nil
	}
	if err != nil {
		return res, err
	}
	more, err := e.TaskChanged(ctx, task, task)
	res.merge(more)
	return res, err
}

func (e *Engine) recalculate(ctx context.Context, projectIDs, tags []string) (Result, error) {
	var res Result
	for _, id := range projectIDs {
		p, err := e.RecalculateProject(ctx, id)
		if errors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return res, err
		}
		if p != nil {
			res.Projects = append(res.Projects, *p)
		}
	}

	if len(tags) == 0 {
		return res, nil
	}
	targets, err := e.store.ListTargets(ctx)
	if err != nil {
		return res, err
	}
	var tasks []store.Task
	for _, tg := range targets {
		if !TagsIntersect(tg.Tags, tags) {
			continue
		}
		if tasks == nil {
			if tasks, err = e.store.ListTasks(ctx); err != nil {
				return res, err
			}
		}
		updated, err := e.recalculateTarget(ctx, tg, tasks)
		if err != nil {
			return res, err
		}
		res.Targets = append(res.Targets, *updated)
	}
	return res, nil
}

func projectChanged(a, b store.Project) bool {
	return a.ProgressValue != b.ProgressValue || a.Status != b.Status || !sameTime(a.CompletedAt, b.CompletedAt)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func appendUnique(s []string, v string) []string {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}
