// Package logging builds the pomodash zerolog logger: a console writer for
// interactive commands, a rotating log file, and redaction of API keys on the
// way to disk.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RedactedValue replaces anything that looks like a credential.
const RedactedValue = "[REDACTED]"

var sensitivePatterns = []*regexp.Regexp{ //nolint:gochecknoglobals // compiled once
	regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`),
	regexp.MustCompile(`(?i)(api[_-]?key)"?\s*[:=]\s*"?[a-zA-Z0-9_-]{16,}"?`),
}

// Options describes where logs go.
type Options struct {
	Level   string
	Verbose bool
	Quiet   bool

	// File is the rotating log file. Empty disables file logging.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Console receives human-facing output. Nil means file only, which is
	// what the TUI uses while it owns the terminal.
	Console io.Writer
}

// New builds a logger from opts. The returned closer flushes and closes the
// log file; it is never nil. A log file that cannot be opened is reported
// through the error, and the logger falls back to the console alone.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level := SelectLevel(opts.Level, opts.Verbose, opts.Quiet)

	var writers []io.Writer
	if opts.Console != nil {
		writers = append(writers, opts.Console)
	}

	var closer io.Closer = nopCloser{}
	var fileErr error
	if opts.File != "" {
		fw, err := newFileWriter(opts)
		if err != nil {
			fileErr = err
		} else {
			writers = append(writers, fw)
			closer = fw
		}
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return logger, closer, fileErr
}

// SelectLevel resolves the effective level. Flags win over the configured
// level; an unknown level falls back to info.
func SelectLevel(level string, verbose, quiet bool) zerolog.Level {
	switch {
	case verbose:
		return zerolog.DebugLevel
	case quiet:
		return zerolog.WarnLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// ConsoleOutput returns a pretty console writer when f is a terminal and
// NO_COLOR is unset, and f itself (JSON lines) otherwise.
func ConsoleOutput(f *os.File) io.Writer {
	if term.IsTerminal(int(f.Fd())) && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{Out: f, TimeFormat: time.Kitchen}
	}
	return f
}

// Redact replaces credential-looking substrings in s.
func Redact(s string) string {
	for _, p := range sensitivePatterns {
		s = p.ReplaceAllString(s, RedactedValue)
	}
	return s
}

type fileWriter struct {
	lj *lumberjack.Logger
}

func newFileWriter(opts Options) (*fileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return &fileWriter{lj: &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}}, nil
}

// Write redacts before hitting disk. It reports len(p) so zerolog does not
// treat a shortened line as a short write.
func (w *fileWriter) Write(p []byte) (int, error) {
	if _, err := w.lj.Write([]byte(Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *fileWriter) Close() error { return w.lj.Close() }

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
