package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/sadopc/pomodash/internal/progress"
	"github.com/sadopc/pomodash/internal/session"
	"github.com/sadopc/pomodash/internal/store"
)

// viewState represents the currently active view.
type viewState int

const (
	viewTimer viewState = iota
	viewTasks
	viewProjects
	viewTargets
	viewReports
	viewSettings
)

var viewNames = []string{"Timer", "Tasks", "Projects", "Targets", "Reports", "Settings"}

// --- Messages ---

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

// persistDoneMsg carries a finished store write back into the event loop.
type persistDoneMsg struct {
	res session.PersistResult
}

// snapshotMsg is a snapshot rewritten by another instance. Empty data means
// the slot was cleared.
type snapshotMsg struct {
	data []byte
}

type tasksChangedMsg struct {
	tasks  []store.Task
	status string
	err    error
}

type progressMsg struct {
	res progress.Result
	err error
}

type settingsSavedMsg struct {
	settings store.Settings
}

type exportDoneMsg struct {
	path string
}

// --- Helpers ---

// formatClock renders seconds as MM:SS; minutes keep growing past an hour.
func formatClock(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func formatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

// truncate cuts s to w terminal cells.
func truncate(s string, w int) string {
	if w <= 0 {
		return ""
	}
	return runewidth.Truncate(s, w, "…")
}

// padRight pads s with spaces to w terminal cells, truncating if needed.
func padRight(s string, w int) string {
	return runewidth.FillRight(truncate(s, w), w)
}

// parseTags splits a comma-separated list, dropping blanks.
func parseTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parseOptionalInt returns nil for blank input.
func parseOptionalInt(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("%q is not a positive number", s)
	}
	return &n, nil
}

// parseOptionalDate parses YYYY-MM-DD as a local date; blank is nil.
func parseOptionalDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return nil, fmt.Errorf("%q is not a YYYY-MM-DD date", s)
	}
	return &d, nil
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}

func validateOptionalInt(s string) error {
	_, err := parseOptionalInt(s)
	return err
}

func validateOptionalDate(s string) error {
	_, err := parseOptionalDate(s)
	return err
}

func itoaPtr(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func datePtr(p *time.Time) string {
	if p == nil {
		return ""
	}
	return p.Local().Format("2006-01-02")
}

func ratio(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	r := float64(done) / float64(total)
	if r > 1 {
		return 1
	}
	return r
}

// timeNow is swapped in tests.
var timeNow = time.Now
