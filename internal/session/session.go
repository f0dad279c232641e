// Package session coordinates phase completions between the timer, the local
// caches and the store.
//
// Local state is updated optimistically when a phase ends and when the user
// continues; the store write runs afterwards (Persist) and its outcome is
// folded back in with Reconcile. The only compensated write is the task and
// history pair: if the history append fails, the task is restored.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sadopc/pomodash/internal/clock"
	"github.com/sadopc/pomodash/internal/errors"
	"github.com/sadopc/pomodash/internal/progress"
	"github.com/sadopc/pomodash/internal/store"
	"github.com/sadopc/pomodash/internal/timer"
)

// Store is the part of the data store the coordinator writes through.
type Store interface {
	UpdateTask(ctx context.Context, t *store.Task) error
	AddHistory(ctx context.Context, r store.HistoryRecord) (*store.HistoryRecord, error)
	GetDailyLog(ctx context.Context, date string) (*store.DailyLog, error)
	RecomputeDailyLog(ctx context.Context, date string) (*store.DailyLog, error)
}

// Recalculator runs progress triggers after a task changes.
type Recalculator interface {
	TaskChanged(ctx context.Context, before, after *store.Task) (progress.Result, error)
}

// Alert is the sound side of phase transitions.
type Alert interface {
	PhaseStart()
	StartLoop()
	Stop()
}

// Snapshots is the persisted timer slot.
type Snapshots interface {
	Clear(ctx context.Context) error
}

// Completion describes the dialog shown when a phase ends.
type Completion struct {
	// Mode is the phase that just finished.
	Mode timer.Mode
	// Task is the task just focused on (after focus) or the next task to
	// work on (after break). Nil when there is none.
	Task          *store.Task
	NextMode      timer.Mode
	CycleComplete bool
	// AllowComment is true after focus phases only.
	AllowComment bool
	Minutes      int
}

// Message is the dialog headline.
func (c Completion) Message() string {
	switch {
	case c.Mode == timer.Break:
		return "Break over. Ready to focus?"
	case c.CycleComplete:
		return "Full cycle complete! Take a break."
	default:
		return "Focus session complete. Time for a break."
	}
}

// FocusCommit is the store write planned by Continue after a focus phase.
type FocusCommit struct {
	// Before and After are the task rows around the local mutation. Both are
	// nil when the phase had no task.
	Before *store.Task
	After  *store.Task
	Record store.HistoryRecord
}

// PersistResult is the outcome of Persist, applied with Reconcile.
type PersistResult struct {
	Commit     FocusCommit
	History    *store.HistoryRecord
	Daily      *store.DailyLog
	Progress   progress.Result
	RolledBack bool
	Err        error
}

// Coordinator owns the timer machine and the local caches. It is not safe
// for concurrent use, except Persist, which only touches the store.
type Coordinator struct {
	machine   *timer.Machine
	store     Store
	engine    Recalculator
	alert     Alert
	snapshots Snapshots
	clock     clock.Clock
	logger    zerolog.Logger

	settings store.Settings
	tasks    []store.Task
	history  []store.HistoryRecord
	daily    store.DailyLog

	pending       *Completion
	pendingRecord *store.HistoryRecord
}

type Option func(*Coordinator)

func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(co *Coordinator) { co.logger = l.With().Str("component", "session").Logger() }
}

func WithAlert(a Alert) Option {
	return func(co *Coordinator) { co.alert = a }
}

func WithSnapshots(s Snapshots) Option {
	return func(co *Coordinator) { co.snapshots = s }
}

type nopAlert struct{}

func (nopAlert) PhaseStart() {}
func (nopAlert) StartLoop()  {}
func (nopAlert) Stop()       {}

func New(m *timer.Machine, s Store, engine Recalculator, opts ...Option) *Coordinator {
	c := &Coordinator{
		machine:  m,
		store:    s,
		engine:   engine,
		alert:    nopAlert{},
		clock:    clock.RealClock{},
		logger:   zerolog.Nop(),
		settings: store.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.daily = store.DailyLog{Date: store.DateOf(c.clock.Now())}
	return c
}

// Hydrate installs the initial fetch. Unless the timer was restored from a
// snapshot, the idle timer is retargeted to the first incomplete task.
func (c *Coordinator) Hydrate(tasks []store.Task, history []store.HistoryRecord, daily *store.DailyLog, settings store.Settings, restored bool) {
	c.tasks = tasks
	c.history = history
	c.settings = settings
	if daily != nil {
		c.daily = *daily
	}
	if !restored {
		c.machine.SetDuration(c.phaseSeconds(timer.Focus, c.CurrentTask()))
	}
}

func (c *Coordinator) State() timer.State { return c.machine.State() }
func (c *Coordinator) PhaseEnd() *time.Time { return c.machine.PhaseEnd() }
func (c *Coordinator) Settings() store.Settings { return c.settings }
func (c *Coordinator) Daily() store.DailyLog { return c.daily }
func (c *Coordinator) Pending() *Completion { return c.pending }
func (c *Coordinator) Tasks() []store.Task { return c.tasks }
func (c *Coordinator) History() []store.HistoryRecord { return c.history }

// FocusSeconds is the focus duration for the current task.
func (c *Coordinator) FocusSeconds() int {
	return c.phaseSeconds(timer.Focus, c.CurrentTask())
}

// CurrentTask is the first incomplete task in display order.
func (c *Coordinator) CurrentTask() *store.Task {
	for i := range c.tasks {
		if !c.tasks[i].Done() {
			t := c.tasks[i].Clone()
			return &t
		}
	}
	return nil
}

// SetTasks replaces the task cache and retargets an untouched idle focus
// timer.
func (c *Coordinator) SetTasks(tasks []store.Task) {
	c.tasks = tasks
	c.retarget()
}

// SetSettings replaces the timer preferences.
func (c *Coordinator) SetSettings(s store.Settings) {
	c.settings = s
	c.retarget()
}

func (c *Coordinator) retarget() {
	st := c.machine.State()
	if st.Mode == timer.Focus && c.pending == nil {
		c.machine.SetDuration(c.phaseSeconds(timer.Focus, c.CurrentTask()))
	}
}

// Start runs the current phase.
func (c *Coordinator) Start() error {
	if err := c.machine.Start(); err != nil {
		return err
	}
	c.alert.PhaseStart()
	return nil
}

func (c *Coordinator) Pause() {
	c.machine.Stop()
}

// Reset returns to an idle first focus phase. An unacknowledged focus
// completion is discarded along with its optimistic log entry.
func (c *Coordinator) Reset() {
	c.alert.Stop()
	c.discardPending()
	c.machine.Reset(c.phaseSeconds(timer.Focus, c.CurrentTask()))
}

// Skip abandons the current phase without recording it and starts the next.
func (c *Coordinator) Skip() {
	c.alert.Stop()
	c.discardPending()
	st := c.machine.State()
	mode, session := c.next(st)
	c.machine.BeginPhase(mode, session, c.phaseSeconds(mode, c.CurrentTask()))
	c.alert.PhaseStart()
}

// Tick advances the timer. It returns a Completion exactly once per expiry.
func (c *Coordinator) Tick() *Completion {
	if !c.machine.Tick() {
		return nil
	}
	return c.expire()
}

func (c *Coordinator) expire() *Completion {
	c.machine.Stop()
	c.alert.StartLoop()

	st := c.machine.State()
	now := c.clock.Now()
	task := c.CurrentTask()

	comp := &Completion{Mode: st.Mode, Task: task}
	if st.Mode == timer.Focus {
		minutes := c.focusMinutes(task)
		comp.Minutes = minutes
		comp.NextMode = timer.Break
		comp.AllowComment = true
		comp.CycleComplete = st.CurrentSession >= c.settings.SessionsPerCycle

		rec := store.HistoryRecord{ID: "local-" + uuid.NewString(), DurationMinutes: minutes, EndedAt: now}
		if task != nil {
			rec.TaskID = store.StringPtr(task.ID)
		}
		c.rollDay(now)
		c.daily.CompletedSessions++
		c.daily.TotalFocusMinutes += minutes
		c.history = append([]store.HistoryRecord{rec}, c.history...)
		c.pendingRecord = &rec
	} else {
		comp.NextMode = timer.Focus
	}
	c.pending = comp

	c.logger.Info().Str("mode", string(st.Mode)).Int("session", st.CurrentSession).
		Bool("cycle_complete", comp.CycleComplete).Msg("phase complete")
	return comp
}

// Continue acknowledges the completion dialog and starts the next phase
// immediately. After a focus phase the task mutation is applied locally and
// returned as a commit for Persist; after a break the commit is nil.
func (c *Coordinator) Continue(comment string) (*FocusCommit, error) {
	if c.pending == nil {
		return nil, errors.ErrNoPendingCompletion
	}
	c.alert.Stop()

	comp := c.pending
	st := c.machine.State()
	var commit *FocusCommit

	if comp.Mode == timer.Focus && c.pendingRecord != nil {
		commit = &FocusCommit{Record: *c.pendingRecord}
		if comp.Task != nil {
			if i := c.taskIndex(comp.Task.ID); i >= 0 {
				before := c.tasks[i].Clone()
				after := before.Clone()
				after.CompletedPoms++
				if comment != "" {
					after.Comments = append(after.Comments, comment)
				}
				progress.SyncCompletion(&after, c.clock.Now())
				c.tasks[i] = after.Clone()
				commit.Before, commit.After = &before, &after
			}
		}
	}
	c.pending = nil
	c.pendingRecord = nil

	mode, session := c.next(st)
	c.machine.BeginPhase(mode, session, c.phaseSeconds(mode, c.CurrentTask()))
	c.alert.PhaseStart()
	return commit, nil
}

// Persist writes a focus commit: task first, then history. If the history
// append fails the task row is restored to its pre-attempt state. On success
// the day's log is recomputed from history and progress triggers run.
// Persist does not touch the coordinator's caches and may run off the event
// loop.
func (c *Coordinator) Persist(ctx context.Context, commit FocusCommit) PersistResult {
	res := PersistResult{Commit: commit}
	date := store.DateOf(commit.Record.EndedAt)
	log := c.logger.With().Str("date", date).Logger()

	taskWritten := false
	if commit.After != nil {
		if err := c.store.UpdateTask(ctx, commit.After); err != nil {
			log.Warn().Err(err).Str("task", commit.After.ID).Msg("task update failed")
			res.Err = err
		} else {
			taskWritten = true
		}
	}

	rec := commit.Record
	rec.ID = ""
	saved, err := c.store.AddHistory(ctx, rec)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", errors.ErrHistoryWrite, err)
		log.Error().Err(err).Msg("history append failed")
		if taskWritten {
			if rbErr := c.store.UpdateTask(ctx, commit.Before); rbErr != nil {
				log.Error().Err(rbErr).Str("task", commit.Before.ID).Msg("task rollback failed")
			}
		}
		res.RolledBack = commit.Before != nil
		if daily, err := c.store.GetDailyLog(ctx, date); err == nil {
			res.Daily = daily
		}
		return res
	}
	res.History = saved

	daily, err := c.store.RecomputeDailyLog(ctx, date)
	if err != nil {
		log.Warn().Err(err).Msg("daily log recompute failed")
	} else {
		res.Daily = daily
	}

	if c.engine != nil && commit.After != nil && taskWritten {
		p, err := c.engine.TaskChanged(ctx, commit.Before, commit.After)
		if err != nil {
			log.Warn().Err(err).Msg("progress recalculation failed")
		}
		res.Progress = p
	}
	return res
}

// Reconcile folds a PersistResult back into the caches. Only a failed
// history append undoes the optimistic entries; an anonymous store saves
// nothing and reports no error, so the local rows stand.
func (c *Coordinator) Reconcile(res PersistResult) {
	localID := res.Commit.Record.ID

	if res.RolledBack || errors.Is(res.Err, errors.ErrHistoryWrite) {
		c.dropHistory(localID)
		if res.Commit.Before != nil && res.RolledBack {
			if i := c.taskIndex(res.Commit.Before.ID); i >= 0 {
				restored := c.tasks[i]
				restored.CompletedPoms = res.Commit.Before.CompletedPoms
				restored.CompletedAt = res.Commit.Before.CompletedAt
				restored.Comments = append([]string(nil), res.Commit.Before.Comments...)
				c.tasks[i] = restored
			}
		}
		if res.Daily != nil {
			c.adoptDaily(*res.Daily)
		} else if c.daily.Date == store.DateOf(res.Commit.Record.EndedAt) {
			c.daily.CompletedSessions--
			c.daily.TotalFocusMinutes -= res.Commit.Record.DurationMinutes
		}
		c.retarget()
		return
	}

	if res.History != nil {
		for i := range c.history {
			if c.history[i].ID == localID {
				c.history[i] = *res.History
				break
			}
		}
	}
	if res.Daily != nil {
		c.adoptDaily(*res.Daily)
	}
}

// Flush settles an unacknowledged focus completion before shutdown. It
// continues without a comment, so the break is already running in the
// snapshot, and writes the session synchronously. It returns nil when no
// focus completion was pending.
func (c *Coordinator) Flush(ctx context.Context) *PersistResult {
	if c.pending == nil || c.pending.Mode != timer.Focus {
		return nil
	}
	commit, err := c.Continue("")
	if err != nil || commit == nil {
		return nil
	}

	res := c.Persist(ctx, *commit)
	c.Reconcile(res)
	c.logger.Info().Err(res.Err).Msg("flushed pending session")
	return &res
}

// Adopt installs a timer state written by another instance. It is refused
// while this instance is running or has a completion dialog open.
func (c *Coordinator) Adopt(st timer.State, phaseEnd *time.Time) bool {
	if c.machine.Running() || c.pending != nil {
		return false
	}
	c.machine.Load(st, phaseEnd)
	return true
}

// Logout stops everything and clears the persisted snapshot.
func (c *Coordinator) Logout(ctx context.Context) error {
	c.alert.Stop()
	c.pending = nil
	c.pendingRecord = nil
	c.machine.Reset(store.DefaultSettings().FocusMinutes * 60)
	c.machine.Close()
	c.tasks = nil
	c.history = nil
	c.settings = store.DefaultSettings()
	c.daily = store.DailyLog{Date: store.DateOf(c.clock.Now())}
	if c.snapshots == nil {
		return nil
	}
	return c.snapshots.Clear(ctx)
}

// Close releases the alert loop and the wake lock.
func (c *Coordinator) Close() {
	c.alert.Stop()
	c.machine.Close()
}

func (c *Coordinator) next(st timer.State) (timer.Mode, int) {
	if st.Mode == timer.Focus {
		return timer.Break, st.CurrentSession
	}
	session := st.CurrentSession + 1
	if session > c.settings.SessionsPerCycle {
		session = 1
	}
	return timer.Focus, session
}

func (c *Coordinator) phaseSeconds(mode timer.Mode, task *store.Task) int {
	if mode == timer.Break {
		return c.breakMinutes(task) * 60
	}
	return c.focusMinutes(task) * 60
}

// focusMinutes is the effective focus duration for task.
func (c *Coordinator) focusMinutes(task *store.Task) int {
	if task != nil && task.CustomFocusMinutes != nil {
		return *task.CustomFocusMinutes
	}
	return c.settings.FocusMinutes
}

func (c *Coordinator) breakMinutes(task *store.Task) int {
	if task != nil && task.CustomBreakMinutes != nil {
		return *task.CustomBreakMinutes
	}
	return c.settings.BreakMinutes
}

func (c *Coordinator) discardPending() {
	if c.pendingRecord != nil {
		rec := *c.pendingRecord
		c.dropHistory(rec.ID)
		if c.daily.Date == store.DateOf(rec.EndedAt) {
			c.daily.CompletedSessions--
			c.daily.TotalFocusMinutes -= rec.DurationMinutes
		}
	}
	c.pending = nil
	c.pendingRecord = nil
}

func (c *Coordinator) dropHistory(id string) {
	for i := range c.history {
		if c.history[i].ID == id {
			c.history = append(c.history[:i], c.history[i+1:]...)
			return
		}
	}
}

func (c *Coordinator) adoptDaily(d store.DailyLog) {
	if d.Date == c.daily.Date {
		c.daily = d
	}
}

// rollDay starts a fresh local log when the calendar day changed.
func (c *Coordinator) rollDay(now time.Time) {
	today := store.DateOf(now)
	if c.daily.Date == today {
		return
	}
	c.daily = store.DailyLog{Date: today}
	c.history = nil
}

func (c *Coordinator) taskIndex(id string) int {
	for i := range c.tasks {
		if c.tasks[i].ID == id {
			return i
		}
	}
	return -1
}
