package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/pomodash/internal/errors"
	"github.com/sadopc/pomodash/internal/export"
	"github.com/sadopc/pomodash/internal/snapshot"
	"github.com/sadopc/pomodash/internal/store"
	"github.com/sadopc/pomodash/internal/timer"
)

// seed opens the test database as u1, runs fn and closes it again.
func seed(t *testing.T, dir string, fn func(ctx context.Context, s *store.Store)) {
	t.Helper()
	db, err := store.New(filepath.Join(dir, "pomodash.db"))
	require.NoError(t, err)
	defer db.Close()
	fn(context.Background(), db.WithUser("u1"))
}

func TestStatus_Defaults(t *testing.T) {
	t.Parallel()

	cfg, _ := writeConfig(t, "u1")
	output, err := execute(t, "--config", cfg, "status")
	require.NoError(t, err)

	assert.Contains(t, output, "Focus 1  25:00  (idle)")
	assert.Contains(t, output, "Today:  0/8 sessions, 0 min focused")
	assert.NotContains(t, output, "Task:")
}

func TestStatus_CurrentTask(t *testing.T) {
	t.Parallel()

	cfg, dir := writeConfig(t, "u1")
	seed(t, dir, func(ctx context.Context, s *store.Store) {
		_, err := s.CreateTask(ctx, store.Task{Text: "Write report", TotalPoms: store.IntPtr(2), CustomFocusMinutes: store.IntPtr(40)})
		require.NoError(t, err)
	})

	output, err := execute(t, "--config", cfg, "status")
	require.NoError(t, err)

	assert.Contains(t, output, "Task:   Write report")
	assert.Contains(t, output, "40:00")
}

func TestStatus_RestoredSnapshot(t *testing.T) {
	t.Parallel()

	cfg, dir := writeConfig(t, "u1")
	data, err := snapshot.Encode(timer.State{
		Mode:             timer.Break,
		CurrentSession:   2,
		TimeRemaining:    180,
		SessionTotalTime: 300,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "timer.json"), data, 0o600))

	output, err := execute(t, "--config", cfg, "status")
	require.NoError(t, err)
	assert.Contains(t, output, "Break 2  03:00  (paused)")

	// status only reads the slot.
	after, err := os.ReadFile(filepath.Join(dir, "timer.json"))
	require.NoError(t, err)
	assert.Equal(t, data, after)
}

func TestStatus_Anonymous(t *testing.T) {
	t.Parallel()

	cfg, _ := writeConfig(t, "")
	output, err := execute(t, "--config", cfg, "status")
	require.NoError(t, err)
	assert.Contains(t, output, "Focus 1  25:00")
}

func TestExport_JSON(t *testing.T) {
	t.Parallel()

	cfg, dir := writeConfig(t, "u1")
	seed(t, dir, func(ctx context.Context, s *store.Store) {
		task, err := s.CreateTask(ctx, store.Task{Text: "Read", TotalPoms: store.IntPtr(1)})
		require.NoError(t, err)
		_, err = s.AddHistory(ctx, store.HistoryRecord{TaskID: &task.ID, DurationMinutes: 25, EndedAt: time.Now()})
		require.NoError(t, err)
	})

	outDir := t.TempDir()
	output, err := execute(t, "--config", cfg, "export", "json", "--dir", outDir)
	require.NoError(t, err)
	assert.Contains(t, output, "Exported to ")

	path := strings.TrimSpace(strings.TrimPrefix(output, "Exported to "))
	assert.Equal(t, outDir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, ".json"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Read")
}

func TestExport_DefaultsToCSV(t *testing.T) {
	t.Parallel()

	cfg, _ := writeConfig(t, "u1")
	outDir := t.TempDir()
	_, err := execute(t, "--config", cfg, "export", "--dir", outDir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(outDir, export.FileName(export.CSV, time.Now())))
	require.NoError(t, err)
}

func TestExport_InvalidFormat(t *testing.T) {
	t.Parallel()

	cfg, _ := writeConfig(t, "u1")
	_, err := execute(t, "--config", cfg, "export", "xml", "--dir", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidExportFormat))
}

func TestRecalc(t *testing.T) {
	t.Parallel()

	cfg, dir := writeConfig(t, "u1")
	seed(t, dir, func(ctx context.Context, s *store.Store) {
		_, err := s.CreateProject(ctx, store.Project{Name: "Thesis", CriteriaType: store.CriteriaManual})
		require.NoError(t, err)
		_, err = s.CreateTarget(ctx, store.Target{Name: "Deep work", Tags: []string{"go"}, TargetMinutes: 600})
		require.NoError(t, err)
	})

	output, err := execute(t, "--config", cfg, "recalc")
	require.NoError(t, err)
	assert.Contains(t, output, "project  Thesis")
	assert.Contains(t, output, "target   Deep work")
	assert.Contains(t, output, "Recalculated 1 project(s), 1 target(s)")
}

func TestRecalc_Empty(t *testing.T) {
	t.Parallel()

	cfg, _ := writeConfig(t, "u1")
	output, err := execute(t, "--config", cfg, "recalc")
	require.NoError(t, err)
	assert.Contains(t, output, "Recalculated 0 project(s), 0 target(s)")
}

func TestLogout_ClearsSnapshot(t *testing.T) {
	t.Parallel()

	cfg, dir := writeConfig(t, "u1")
	slotPath := filepath.Join(dir, "timer.json")
	data, err := snapshot.Encode(timer.State{
		Mode:             timer.Focus,
		CurrentSession:   3,
		TimeRemaining:    600,
		SessionTotalTime: 1500,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(slotPath, data, 0o600))

	output, err := execute(t, "--config", cfg, "logout")
	require.NoError(t, err)
	assert.Contains(t, output, "snapshot cleared")

	_, err = os.Stat(slotPath)
	assert.True(t, os.IsNotExist(err))
}

func TestCoach_NoAPIKey(t *testing.T) {
	t.Parallel()

	cfg, _ := writeConfig(t, "u1")
	_, err := execute(t, "--config", cfg, "coach", "how", "do", "I", "focus?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCoachUnavailable))
}

func TestCoach_RequiresPrompt(t *testing.T) {
	t.Parallel()

	cfg, _ := writeConfig(t, "u1")
	_, err := execute(t, "--config", cfg, "coach")
	require.Error(t, err)
}

func TestGoals(t *testing.T) {
	t.Parallel()

	cfg, dir := writeConfig(t, "u1")
	seed(t, dir, func(ctx context.Context, s *store.Store) {
		_, err := s.CreateGoal(ctx, store.Goal{Title: "Ship v1"})
		require.NoError(t, err)
		_, err = s.CreateCommitment(ctx, "Review PRs", time.Now())
		require.NoError(t, err)
	})

	output, err := execute(t, "--config", cfg, "goals")
	require.NoError(t, err)
	assert.Contains(t, output, "1. [ ] Ship v1")
	assert.Contains(t, output, "1. [ ] Review PRs")
}

func TestGoals_Subcommands(t *testing.T) {
	t.Parallel()

	cfg, _ := writeConfig(t, "u1")

	_, err := execute(t, "--config", cfg, "goals", "add", "Ship", "v1", "--by", "2026-12-01")
	require.NoError(t, err)
	_, err = execute(t, "--config", cfg, "goals", "commit", "Review", "PRs")
	require.NoError(t, err)

	output, err := execute(t, "--config", cfg, "goals")
	require.NoError(t, err)
	assert.Contains(t, output, "1. [ ] Ship v1  (by 2026-12-01)")
	assert.Contains(t, output, "1. [ ] Review PRs")

	_, err = execute(t, "--config", cfg, "goals", "done", "1")
	require.NoError(t, err)
	_, err = execute(t, "--config", cfg, "goals", "check", "1")
	require.NoError(t, err)

	output, err = execute(t, "--config", cfg, "goals")
	require.NoError(t, err)
	assert.Contains(t, output, "1. [x] Ship v1")
	assert.Contains(t, output, "1. [x] Review PRs")

	_, err = execute(t, "--config", cfg, "goals", "rm", "1")
	require.NoError(t, err)
	_, err = execute(t, "--config", cfg, "goals", "drop", "1")
	require.NoError(t, err)

	output, err = execute(t, "--config", cfg, "goals")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(output, "(none)"))
}

func TestGoals_BadPosition(t *testing.T) {
	t.Parallel()

	cfg, _ := writeConfig(t, "u1")
	for _, arg := range []string{"0", "x", "3"} {
		_, err := execute(t, "--config", cfg, "goals", "done", arg)
		require.Error(t, err, arg)
		assert.True(t, errors.Is(err, errors.ErrNotFound), arg)
	}
}

func TestGoals_WritesNeedIdentity(t *testing.T) {
	t.Parallel()

	cfg, _ := writeConfig(t, "")
	_, err := execute(t, "--config", cfg, "goals", "add", "Anything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoIdentity))

	output, err := execute(t, "--config", cfg, "goals")
	require.NoError(t, err)
	assert.Contains(t, output, "(none)")
}

func TestFormatGoals(t *testing.T) {
	t.Parallel()

	done := time.Date(2026, 5, 1, 12, 0, 0, 0, time.Local)
	due := time.Date(2026, 7, 1, 0, 0, 0, 0, time.Local)
	out := formatGoals(
		[]store.Goal{{Title: "Learn Go", TargetDate: &due}, {Title: "Old", CompletedAt: &done}},
		[]store.Commitment{{Text: "Walk", Done: true}},
	)

	assert.Contains(t, out, "1. [ ] Learn Go  (by 2026-07-01)")
	assert.Contains(t, out, "[x] Old")
	assert.Contains(t, out, "[x] Walk")

	empty := formatGoals(nil, nil)
	assert.Equal(t, 2, strings.Count(empty, "(none)"))
}

func TestClock(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "25:00", clock(1500))
	assert.Equal(t, "00:59", clock(59))
	assert.Equal(t, "00:00", clock(-3))
}

func TestRunCommands_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sink strings.Builder
	require.ErrorIs(t, runStatus(ctx, nil, &sink), context.Canceled)
	require.ErrorIs(t, runRecalc(ctx, &sink), context.Canceled)
	require.ErrorIs(t, runLogout(ctx, &sink), context.Canceled)
	require.ErrorIs(t, runGoals(ctx, &sink), context.Canceled)
	require.ErrorIs(t, runCoach(ctx, "hi", 0.7, &sink), context.Canceled)
	require.ErrorIs(t, runExport(ctx, "csv", &exportOptions{}, &sink), context.Canceled)
}
