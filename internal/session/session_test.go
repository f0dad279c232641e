package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/pomodash/internal/clock"
	pomoerrors "github.com/sadopc/pomodash/internal/errors"
	"github.com/sadopc/pomodash/internal/progress"
	"github.com/sadopc/pomodash/internal/store"
	"github.com/sadopc/pomodash/internal/timer"
)

var epoch = time.Date(2026, 6, 1, 9, 0, 0, 0, time.Local)

type fakeAlert struct {
	starts, loops, stops int
	looping              bool
}

func (a *fakeAlert) PhaseStart() { a.starts++ }

func (a *fakeAlert) StartLoop() {
	a.loops++
	a.looping = true
}

func (a *fakeAlert) Stop() {
	a.stops++
	a.looping = false
}

// flakyStore fails history appends on demand.
type flakyStore struct {
	*store.Store
	failHistory bool
}

func (f *flakyStore) AddHistory(ctx context.Context, r store.HistoryRecord) (*store.HistoryRecord, error) {
	if f.failHistory {
		return nil, errors.New("connection reset")
	}
	return f.Store.AddHistory(ctx, r)
}

type fakeSlot struct{ cleared int }

func (s *fakeSlot) Clear(context.Context) error {
	s.cleared++
	return nil
}

type fixture struct {
	coord *Coordinator
	store *flakyStore
	clock *clock.Manual
	alert *fakeAlert
	slot  *fakeSlot
}

func newFixture(t *testing.T, settings store.Settings) *fixture {
	t.Helper()
	return newFixtureAs(t, settings, "u1")
}

// newFixtureAs is newFixture for another identity; "" is anonymous.
func newFixtureAs(t *testing.T, settings store.Settings, user string) *fixture {
	t.Helper()
	s, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clk := clock.NewManual(epoch)
	fs := &flakyStore{Store: s.WithUser(user)}
	m := timer.New(timer.Default(settings.FocusMinutes*60), timer.WithClock(clk))
	alert := &fakeAlert{}
	slot := &fakeSlot{}
	engine := progress.NewEngine(fs, progress.WithClock(clk))
	c := New(m, fs, engine, WithClock(clk), WithAlert(alert), WithSnapshots(slot))
	return &fixture{coord: c, store: fs, clock: clk, alert: alert, slot: slot}
}

func (f *fixture) hydrate(t *testing.T, restored bool) {
	t.Helper()
	ctx := context.Background()
	tasks, err := f.store.ListTasks(ctx)
	require.NoError(t, err)
	settings, err := f.store.GetSettings(ctx)
	require.NoError(t, err)
	daily, err := f.store.GetDailyLog(ctx, store.DateOf(f.clock.Now()))
	require.NoError(t, err)
	f.coord.Hydrate(tasks, nil, daily, settings, restored)
}

func (f *fixture) task(t *testing.T, task store.Task) *store.Task {
	t.Helper()
	created, err := f.store.CreateTask(context.Background(), task)
	require.NoError(t, err)
	return created
}

// runPhase starts (if idle) and runs the current phase to expiry.
func (f *fixture) runPhase(t *testing.T) *Completion {
	t.Helper()
	st := f.coord.State()
	if !st.IsRunning {
		require.NoError(t, f.coord.Start())
		st = f.coord.State()
	}
	f.clock.Advance(time.Duration(st.TimeRemaining) * time.Second)
	comp := f.coord.Tick()
	require.NotNil(t, comp)
	return comp
}

func defaults() store.Settings { return store.DefaultSettings() }

// ============================================================
// Hydration
// ============================================================

func TestHydrate_UsesFirstIncompleteTaskDuration(t *testing.T) {
	f := newFixture(t, defaults())
	f.task(t, store.Task{Text: "done", TotalPoms: store.IntPtr(1), CompletedPoms: 1, CompletedAt: store.TimePtr(epoch)})
	f.task(t, store.Task{Text: "deep", TotalPoms: store.IntPtr(2), CustomFocusMinutes: store.IntPtr(50)})
	f.hydrate(t, false)

	st := f.coord.State()
	assert.Equal(t, 3000, st.SessionTotalTime)
	assert.Equal(t, 3000, st.TimeRemaining)
}

func TestHydrate_RestoredTimerIsNotClobbered(t *testing.T) {
	f := newFixture(t, defaults())
	f.task(t, store.Task{Text: "deep", TotalPoms: store.IntPtr(2), CustomFocusMinutes: store.IntPtr(50)})

	end := epoch.Add(100 * time.Second)
	f.coord.machine.Load(timer.State{Mode: timer.Focus, CurrentSession: 2, TimeRemaining: 100, SessionTotalTime: 1500, IsRunning: true}, &end)
	f.hydrate(t, true)

	st := f.coord.State()
	assert.Equal(t, 1500, st.SessionTotalTime)
	assert.Equal(t, 100, st.TimeRemaining)
	assert.True(t, st.IsRunning)
}

// ============================================================
// Expiry
// ============================================================

func TestExpire_FocusIsOptimistic(t *testing.T) {
	f := newFixture(t, defaults())
	task := f.task(t, store.Task{Text: "write", TotalPoms: store.IntPtr(4)})
	f.hydrate(t, false)

	comp := f.runPhase(t)
	assert.Equal(t, timer.Focus, comp.Mode)
	assert.Equal(t, timer.Break, comp.NextMode)
	assert.True(t, comp.AllowComment)
	assert.Equal(t, 25, comp.Minutes)
	require.NotNil(t, comp.Task)
	assert.Equal(t, task.ID, comp.Task.ID)

	assert.False(t, f.coord.State().IsRunning)
	assert.Equal(t, 1, f.alert.loops)
	assert.Equal(t, 1, f.coord.Daily().CompletedSessions)
	assert.Equal(t, 25, f.coord.Daily().TotalFocusMinutes)
	require.Len(t, f.coord.History(), 1)

	// Nothing has reached the store yet.
	rows, _ := f.store.ListHistory(context.Background(), store.HistoryFilter{})
	assert.Empty(t, rows)
}

func TestExpire_FiresOnceWhileDialogOpen(t *testing.T) {
	f := newFixture(t, defaults())
	f.hydrate(t, false)
	f.runPhase(t)

	f.clock.Advance(time.Minute)
	assert.Nil(t, f.coord.Tick())
	assert.Nil(t, f.coord.Tick())
	assert.Equal(t, 1, f.alert.loops)
	assert.Equal(t, 1, f.coord.Daily().CompletedSessions)
}

func TestExpire_BreakPreviewsNextTaskWithoutLogging(t *testing.T) {
	f := newFixture(t, defaults())
	next := f.task(t, store.Task{Text: "next", TotalPoms: store.IntPtr(3)})
	f.hydrate(t, false)

	f.runPhase(t)
	commit, err := f.coord.Continue("")
	require.NoError(t, err)
	f.coord.Reconcile(f.coord.Persist(context.Background(), *commit))
	before := f.coord.Daily()

	comp := f.runPhase(t)
	assert.Equal(t, timer.Break, comp.Mode)
	assert.Equal(t, timer.Focus, comp.NextMode)
	assert.False(t, comp.AllowComment)
	require.NotNil(t, comp.Task)
	assert.Equal(t, next.ID, comp.Task.ID)
	assert.Equal(t, before, f.coord.Daily())

	commit, err = f.coord.Continue("ignored")
	require.NoError(t, err)
	assert.Nil(t, commit)
}

func TestCycleComplete(t *testing.T) {
	settings := defaults()
	settings.SessionsPerCycle = 2
	f := newFixture(t, settings)
	require.NoError(t, f.store.SaveSettings(context.Background(), settings))
	f.hydrate(t, false)

	comp := f.runPhase(t)
	assert.False(t, comp.CycleComplete)
	_, err := f.coord.Continue("")
	require.NoError(t, err)
	assert.Equal(t, 1, f.coord.State().CurrentSession)

	f.runPhase(t) // break
	_, err = f.coord.Continue("")
	require.NoError(t, err)
	assert.Equal(t, 2, f.coord.State().CurrentSession)
	assert.Equal(t, timer.Focus, f.coord.State().Mode)

	comp = f.runPhase(t)
	assert.True(t, comp.CycleComplete)
	assert.Equal(t, timer.Break, comp.NextMode)
	assert.Contains(t, comp.Message(), "Full cycle complete")

	_, err = f.coord.Continue("")
	require.NoError(t, err)
	assert.Equal(t, timer.Break, f.coord.State().Mode)

	f.runPhase(t)
	_, err = f.coord.Continue("")
	require.NoError(t, err)
	assert.Equal(t, 1, f.coord.State().CurrentSession, "session wraps after a full cycle")
}

// ============================================================
// Continue
// ============================================================

func TestContinue_WithoutPending(t *testing.T) {
	f := newFixture(t, defaults())
	_, err := f.coord.Continue("")
	assert.ErrorIs(t, err, pomoerrors.ErrNoPendingCompletion)
}

func TestContinue_AutoStartsNextPhaseFromNewFirstTask(t *testing.T) {
	f := newFixture(t, defaults())
	f.task(t, store.Task{Text: "short", TotalPoms: store.IntPtr(1), CustomBreakMinutes: store.IntPtr(10), TaskOrder: store.IntPtr(0)})
	f.task(t, store.Task{Text: "long", TotalPoms: store.IntPtr(3), CustomFocusMinutes: store.IntPtr(50),
		CustomBreakMinutes: store.IntPtr(15), TaskOrder: store.IntPtr(1)})
	f.hydrate(t, false)

	f.runPhase(t)
	commit, err := f.coord.Continue("")
	require.NoError(t, err)
	require.NotNil(t, commit.After)
	assert.NotNil(t, commit.After.CompletedAt, "one pom finishes the short task")

	st := f.coord.State()
	assert.True(t, st.IsRunning, "no idle gap between phases")
	assert.Equal(t, timer.Break, st.Mode)
	assert.Equal(t, 900, st.SessionTotalTime, "break length comes from the next task")
	assert.Equal(t, f.clock.Now().Add(900*time.Second), *f.coord.PhaseEnd())
	assert.Equal(t, 1, f.alert.stops, "alert loop stopped exactly once")

	f.runPhase(t)
	_, err = f.coord.Continue("")
	require.NoError(t, err)
	assert.Equal(t, 3000, f.coord.State().SessionTotalTime)
}

func TestPersist_CompletesTaskAndRecomputesLog(t *testing.T) {
	f := newFixture(t, defaults())
	ctx := context.Background()
	p, err := f.store.CreateProject(ctx, store.Project{Name: "P", CriteriaType: store.CriteriaTaskCount, CriteriaValue: store.IntPtr(1)})
	require.NoError(t, err)
	task := f.task(t, store.Task{Text: "essay", TotalPoms: store.IntPtr(4), CompletedPoms: 3, ProjectID: &p.ID})
	f.hydrate(t, false)

	f.runPhase(t)
	commit, err := f.coord.Continue("finished the draft")
	require.NoError(t, err)

	local := f.coord.Tasks()[0]
	assert.Equal(t, 4, local.CompletedPoms)
	assert.NotNil(t, local.CompletedAt)

	res := f.coord.Persist(ctx, *commit)
	require.NoError(t, res.Err)
	assert.False(t, res.RolledBack)
	require.NotNil(t, res.History)
	require.NotNil(t, res.Daily)
	assert.Equal(t, 1, res.Daily.CompletedSessions)
	assert.Equal(t, 25, res.Daily.TotalFocusMinutes)
	require.Len(t, res.Progress.Projects, 1)
	assert.Equal(t, store.StatusCompleted, res.Progress.Projects[0].Status)

	stored, err := f.store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.CompletedPoms)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, []string{"finished the draft"}, stored.Comments)

	f.coord.Reconcile(res)
	require.Len(t, f.coord.History(), 1)
	assert.Equal(t, res.History.ID, f.coord.History()[0].ID)
	assert.Equal(t, *res.Daily, f.coord.Daily())
}

func TestPersist_HistoryFailureRollsBackTask(t *testing.T) {
	f := newFixture(t, defaults())
	ctx := context.Background()
	task := f.task(t, store.Task{Text: "essay", TotalPoms: store.IntPtr(4), CompletedPoms: 3})
	f.hydrate(t, false)

	f.runPhase(t)
	commit, err := f.coord.Continue("note")
	require.NoError(t, err)
	assert.Equal(t, 4, f.coord.Tasks()[0].CompletedPoms)

	f.store.failHistory = true
	res := f.coord.Persist(ctx, *commit)
	assert.True(t, res.RolledBack)
	assert.ErrorIs(t, res.Err, pomoerrors.ErrHistoryWrite)

	stored, err := f.store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.CompletedPoms)
	assert.Nil(t, stored.CompletedAt)
	assert.Empty(t, stored.Comments)

	f.coord.Reconcile(res)
	local := f.coord.Tasks()[0]
	assert.Equal(t, 3, local.CompletedPoms)
	assert.Nil(t, local.CompletedAt)
	assert.Empty(t, local.Comments)
	assert.Empty(t, f.coord.History())
	assert.Equal(t, 0, f.coord.Daily().CompletedSessions)

	// The timer keeps running regardless of the write outcome.
	assert.True(t, f.coord.State().IsRunning)
}

func TestPersist_WithoutTaskOnlyAppendsHistory(t *testing.T) {
	f := newFixture(t, defaults())
	f.hydrate(t, false)

	comp := f.runPhase(t)
	assert.Nil(t, comp.Task)
	commit, err := f.coord.Continue("")
	require.NoError(t, err)
	assert.Nil(t, commit.After)

	res := f.coord.Persist(context.Background(), *commit)
	require.NoError(t, res.Err)
	require.NotNil(t, res.History)
	assert.Nil(t, res.History.TaskID)
}

func TestPersist_StopwatchTaskNeverCompletes(t *testing.T) {
	f := newFixture(t, defaults())
	f.task(t, store.Task{Text: "inbox", CompletedPoms: 12})
	f.hydrate(t, false)

	f.runPhase(t)
	commit, err := f.coord.Continue("")
	require.NoError(t, err)
	assert.Equal(t, 13, commit.After.CompletedPoms)
	assert.Nil(t, commit.After.CompletedAt)
}

func TestReconcile_AnonymousKeepsLocalSession(t *testing.T) {
	f := newFixtureAs(t, defaults(), "")
	f.hydrate(t, false)

	f.runPhase(t)
	commit, err := f.coord.Continue("")
	require.NoError(t, err)

	res := f.coord.Persist(context.Background(), *commit)
	require.NoError(t, res.Err)
	assert.Nil(t, res.History)
	assert.False(t, res.RolledBack)

	f.coord.Reconcile(res)
	assert.Equal(t, 1, f.coord.Daily().CompletedSessions)
	assert.Equal(t, 25, f.coord.Daily().TotalFocusMinutes)
	require.Len(t, f.coord.History(), 1)
	assert.Equal(t, commit.Record.ID, f.coord.History()[0].ID)
}

func TestReconcile_TaskWriteErrorKeepsHistory(t *testing.T) {
	f := newFixture(t, defaults())
	f.task(t, store.Task{Text: "essay", TotalPoms: store.IntPtr(4)})
	f.hydrate(t, false)

	f.runPhase(t)
	commit, err := f.coord.Continue("")
	require.NoError(t, err)

	res := f.coord.Persist(context.Background(), *commit)
	require.NoError(t, res.Err)
	res.Err = errors.New("task update failed")

	f.coord.Reconcile(res)
	require.Len(t, f.coord.History(), 1)
	assert.Equal(t, res.History.ID, f.coord.History()[0].ID)
	assert.Equal(t, 1, f.coord.Daily().CompletedSessions)
}

// ============================================================
// Shutdown
// ============================================================

func TestFlush_WritesUnacknowledgedFocus(t *testing.T) {
	f := newFixture(t, defaults())
	ctx := context.Background()
	task := f.task(t, store.Task{Text: "essay", TotalPoms: store.IntPtr(2), CompletedPoms: 1})
	f.hydrate(t, false)
	f.runPhase(t)

	res := f.coord.Flush(ctx)
	require.NotNil(t, res)
	require.NoError(t, res.Err)
	require.NotNil(t, res.History)
	assert.True(t, epoch.Add(25*time.Minute).Equal(res.History.EndedAt))

	history, err := f.store.ListHistory(ctx, store.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, task.ID, *history[0].TaskID)

	stored, err := f.store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CompletedPoms)
	assert.NotNil(t, stored.CompletedAt)

	// The dialog is gone and the break is under way.
	assert.Nil(t, f.coord.Pending())
	st := f.coord.State()
	assert.Equal(t, timer.Break, st.Mode)
	assert.True(t, st.IsRunning)
	assert.Equal(t, 300, st.TimeRemaining)
	assert.False(t, f.alert.looping)

	assert.Nil(t, f.coord.Flush(ctx), "nothing left to write")
	history, err = f.store.ListHistory(ctx, store.HistoryFilter{})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestFlush_IgnoresBreakCompletion(t *testing.T) {
	f := newFixture(t, defaults())
	f.hydrate(t, false)
	f.runPhase(t)
	_, err := f.coord.Continue("")
	require.NoError(t, err)

	comp := f.runPhase(t)
	require.Equal(t, timer.Break, comp.Mode)
	assert.Nil(t, f.coord.Flush(context.Background()))
	assert.NotNil(t, f.coord.Pending())
}

// ============================================================
// Controls
// ============================================================

func TestReset_DiscardsUnacknowledgedFocus(t *testing.T) {
	f := newFixture(t, defaults())
	f.hydrate(t, false)
	f.runPhase(t)

	f.coord.Reset()
	assert.Nil(t, f.coord.Pending())
	assert.Equal(t, 0, f.coord.Daily().CompletedSessions)
	assert.Empty(t, f.coord.History())
	assert.Equal(t, timer.Default(1500), f.coord.State())
	assert.False(t, f.alert.looping)
}

func TestSkip_StartsNextPhase(t *testing.T) {
	f := newFixture(t, defaults())
	f.hydrate(t, false)
	require.NoError(t, f.coord.Start())

	f.coord.Skip()
	st := f.coord.State()
	assert.Equal(t, timer.Break, st.Mode)
	assert.True(t, st.IsRunning)
	assert.Equal(t, 300, st.SessionTotalTime)
	assert.Equal(t, 0, f.coord.Daily().CompletedSessions)
}

func TestPauseAndResume(t *testing.T) {
	f := newFixture(t, defaults())
	f.hydrate(t, false)
	require.NoError(t, f.coord.Start())
	assert.ErrorIs(t, f.coord.Start(), pomoerrors.ErrAlreadyRunning)

	f.clock.Advance(60 * time.Second)
	f.coord.Pause()
	assert.Equal(t, 1440, f.coord.State().TimeRemaining)
	require.NoError(t, f.coord.Start())
	assert.Equal(t, 2, f.alert.starts)
}

func TestSetTasks_RetargetsIdleTimer(t *testing.T) {
	f := newFixture(t, defaults())
	f.hydrate(t, false)

	f.coord.SetTasks([]store.Task{{ID: "x", Text: "x", TotalPoms: store.IntPtr(1), CustomFocusMinutes: store.IntPtr(45)}})
	assert.Equal(t, 2700, f.coord.State().SessionTotalTime)

	require.NoError(t, f.coord.Start())
	f.coord.SetTasks(nil)
	assert.Equal(t, 2700, f.coord.State().SessionTotalTime, "running timer is never retargeted")
}

func TestLogout_ClearsSnapshot(t *testing.T) {
	f := newFixture(t, defaults())
	f.task(t, store.Task{Text: "t", TotalPoms: store.IntPtr(2)})
	f.hydrate(t, false)
	require.NoError(t, f.coord.Start())

	require.NoError(t, f.coord.Logout(context.Background()))
	assert.Equal(t, 1, f.slot.cleared)
	assert.False(t, f.coord.State().IsRunning)
	assert.Empty(t, f.coord.Tasks())
}

func TestRestoredOverdueFocusCompletes(t *testing.T) {
	f := newFixture(t, defaults())
	f.hydrate(t, false)

	end := epoch.Add(-10 * time.Minute)
	f.coord.machine.Load(timer.State{Mode: timer.Focus, CurrentSession: 1, TimeRemaining: 30, SessionTotalTime: 1500, IsRunning: true}, &end)
	comp := f.coord.Tick()
	require.NotNil(t, comp)
	assert.Equal(t, timer.Focus, comp.Mode)
}

func TestAdopt_OnlyWhenIdle(t *testing.T) {
	f := newFixture(t, defaults())
	f.hydrate(t, false)

	end := epoch.Add(5 * time.Minute)
	remote := timer.State{Mode: timer.Break, CurrentSession: 2, TimeRemaining: 300, SessionTotalTime: 300, IsRunning: true}
	require.True(t, f.coord.Adopt(remote, &end))
	assert.Equal(t, timer.Break, f.coord.State().Mode)
	assert.True(t, f.coord.State().IsRunning)

	assert.False(t, f.coord.Adopt(timer.Default(1500), nil), "running timer keeps its own state")

	f.clock.Advance(5 * time.Minute)
	require.NotNil(t, f.coord.Tick())
	assert.False(t, f.coord.Adopt(timer.Default(1500), nil), "open dialog blocks adoption")
}
