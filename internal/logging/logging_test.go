package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		verbose bool
		quiet   bool
		want    zerolog.Level
	}{
		{"default", "", false, false, zerolog.InfoLevel},
		{"configured", "warn", false, false, zerolog.WarnLevel},
		{"upper case", "DEBUG", false, false, zerolog.DebugLevel},
		{"unknown", "chatty", false, false, zerolog.InfoLevel},
		{"verbose wins", "error", true, false, zerolog.DebugLevel},
		{"quiet wins", "debug", false, true, zerolog.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectLevel(tt.level, tt.verbose, tt.quiet))
		})
	}
}

func TestNew_ConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "info", Console: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug().Msg("hidden")
	logger.Info().Str("component", "timer").Msg("started")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"component":"timer"`)
	assert.Contains(t, out, `"message":"started"`)
}

func TestNew_FileOnlyRedacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pomodash.log")
	logger, closer, err := New(Options{Level: "debug", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Info().Str("api_key", "abcdefghijklmnopqrstuvwxyz").Msg("calling sk-abcdefghijklmnopqrstuvwxyz0123")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), RedactedValue)
	assert.NotContains(t, string(data), "sk-abcdefghijklmnopqrstuvwxyz0123")
	assert.NotContains(t, string(data), "abcdefghijklmnopqrstuvwxyz\"")
}

func TestNew_ConsoleAndFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "pomodash.log")
	logger, closer, err := New(Options{Console: &buf, File: path})
	require.NoError(t, err)

	logger.Warn().Msg("both")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "both")
	assert.Contains(t, string(data), "both")
}

func TestNew_UnwritableFileFallsBack(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	var buf bytes.Buffer
	logger, closer, err := New(Options{Console: &buf, File: filepath.Join(blocker, "sub", "x.log")})
	require.Error(t, err)
	require.NotNil(t, closer)

	logger.Info().Msg("still here")
	assert.Contains(t, buf.String(), "still here")
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "plain text", Redact("plain text"))
	assert.Equal(t, "auth "+RedactedValue, Redact("auth Bearer abcdefghijklmnopqrstuvwxyz"))
}
