package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/pomodash/internal/errors"
)

// writeConfig points the store, snapshot and log file into a temp dir.
func writeConfig(t *testing.T, userID string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	content := "user:\n  id: \"" + userID + "\"\n" +
		"store:\n  path: " + filepath.Join(dir, "pomodash.db") + "\n" +
		"snapshot:\n  backend: file\n  path: " + filepath.Join(dir, "timer.json") + "\n" +
		"log:\n  level: warn\n  file: " + filepath.Join(dir, "logs", "pomodash.log") + "\n" +
		"coach:\n  api_key_env: POMODASH_TEST_UNSET_KEY\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path, dir
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(&GlobalFlags{}, BuildInfo{Version: "test"})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootCmd_Help(t *testing.T) {
	t.Parallel()

	output, err := execute(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, output, "pomodash")
	assert.Contains(t, output, "--verbose")
	assert.Contains(t, output, "--quiet")
	assert.Contains(t, output, "--config")
	assert.Contains(t, output, "--version")
	for _, sub := range []string{"status", "export", "recalc", "logout", "coach", "goals"} {
		assert.Contains(t, output, sub)
	}
}

func TestRootCmd_Version(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		info           BuildInfo
		expectContains []string
	}{
		{
			name:           "full version info",
			info:           BuildInfo{Version: "1.0.0", Commit: "abc1234", Date: "2026-01-01"},
			expectContains: []string{"1.0.0", "abc1234", "2026-01-01"},
		},
		{
			name:           "default dev version",
			info:           BuildInfo{},
			expectContains: []string{"dev", "none", "unknown"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cmd := newRootCmd(&GlobalFlags{}, tc.info)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs([]string{"--version"})

			require.NoError(t, cmd.Execute())
			for _, expected := range tc.expectContains {
				assert.Contains(t, buf.String(), expected)
			}
		})
	}
}

func TestRootCmd_VerboseAndQuietConflict(t *testing.T) {
	t.Parallel()

	cfg, _ := writeConfig(t, "u1")
	_, err := execute(t, "--config", cfg, "-v", "-q", "status")
	require.Error(t, err)
}

func TestRootCmd_MissingConfigFile(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "status")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestFormatVersion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "dev (commit: none, built: unknown)", formatVersion(BuildInfo{}))
	assert.Equal(t, "1.2.3 (commit: abc, built: today)",
		formatVersion(BuildInfo{Version: "1.2.3", Commit: "abc", Date: "today"}))
}

func TestStateFrom_Missing(t *testing.T) {
	t.Parallel()

	_, err := stateFrom(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestGetLogger_AfterPreRun(t *testing.T) {
	cfg, _ := writeConfig(t, "u1")
	_, err := execute(t, "--config", cfg, "status")
	require.NoError(t, err)

	logger := GetLogger()
	assert.NotEqual(t, "disabled", logger.GetLevel().String())
}
