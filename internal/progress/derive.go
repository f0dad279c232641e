// Package progress re-derives project and target progress from source records.
//
// Nothing here increments a stored counter: every value is recomputed from
// tasks and pomodoro history, so running a recalculation twice yields the
// same result.
package progress

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/sadopc/pomodash/internal/store"
)

var folder = cases.Fold()

// NormalizeTag is the canonical form used whenever tags are compared.
func NormalizeTag(tag string) string {
	return folder.String(strings.TrimSpace(tag))
}

// NormalizeTags folds, trims and de-duplicates tags, dropping blanks and
// keeping first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := NormalizeTag(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// TagsIntersect reports whether a and b share a tag after normalization.
func TagsIntersect(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		if n := NormalizeTag(t); n != "" {
			set[n] = true
		}
	}
	for _, t := range b {
		if set[NormalizeTag(t)] {
			return true
		}
	}
	return false
}

// CompletedTaskIDs returns the ids of tasks carrying a completion timestamp.
// The result is non-nil so it can be used as a history filter directly.
func CompletedTaskIDs(tasks []store.Task) []string {
	ids := []string{}
	for _, t := range tasks {
		if t.Done() {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// ProjectProgress computes progress for p from its tasks. completedMinutes is
// the history total over the completed tasks, used by duration criteria.
// ok is false for manual projects, which are never recomputed.
func ProjectProgress(p store.Project, tasks []store.Task, completedMinutes int) (progress int, ok bool) {
	switch p.CriteriaType {
	case store.CriteriaTaskCount:
		return len(CompletedTaskIDs(tasks)), true
	case store.CriteriaDurationMinutes:
		return completedMinutes, true
	default:
		return p.ProgressValue, false
	}
}

// DeriveStatus returns p with progress applied and status derived from it:
// progress at or over the threshold is completed, else a deadline before
// today is due, else active. CompletedAt is stamped on entering completed and
// cleared on leaving it. A nil threshold never completes.
func DeriveStatus(p store.Project, progress int, now time.Time) store.Project {
	p.ProgressValue = progress

	switch {
	case p.CriteriaValue != nil && progress >= *p.CriteriaValue:
		if p.Status != store.StatusCompleted || p.CompletedAt == nil {
			p.CompletedAt = store.TimePtr(now)
		}
		p.Status = store.StatusCompleted
		return p
	case p.Deadline != nil && p.Deadline.Before(startOfDay(now)):
		p.Status = store.StatusDue
	default:
		p.Status = store.StatusActive
	}
	p.CompletedAt = nil
	return p
}

// MatchingTaskIDs returns completed tasks whose tags intersect tags.
func MatchingTaskIDs(tags []string, tasks []store.Task) []string {
	ids := []string{}
	for _, t := range tasks {
		if t.Done() && TagsIntersect(tags, t.Tags) {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// TargetProgress sums history minutes for the target's matching tasks that
// ended at or after the target's effective start.
func TargetProgress(tg store.Target, tasks []store.Task, history []store.HistoryRecord) int {
	ids := make(map[string]bool)
	for _, id := range MatchingTaskIDs(tg.Tags, tasks) {
		ids[id] = true
	}
	start := tg.EffectiveStart()
	total := 0
	for _, h := range history {
		if h.TaskID == nil || !ids[*h.TaskID] || h.EndedAt.Before(start) {
			continue
		}
		total += h.DurationMinutes
	}
	return total
}

// ApplyTargetProgress returns tg with minutes applied; CompletedAt is set
// when the goal is reached (kept if already set) and cleared otherwise.
func ApplyTargetProgress(tg store.Target, minutes int, now time.Time) store.Target {
	tg.ProgressMinutes = minutes
	if minutes >= tg.TargetMinutes {
		if tg.CompletedAt == nil {
			tg.CompletedAt = store.TimePtr(now)
		}
	} else {
		tg.CompletedAt = nil
	}
	return tg
}

// SyncCompletion aligns a countdown task's CompletedAt with its counters,
// in both directions. Stopwatch tasks are left alone. It reports whether the
// task changed.
func SyncCompletion(t *store.Task, now time.Time) bool {
	if t.Stopwatch() {
		return false
	}
	reached := t.CompletedPoms >= *t.TotalPoms
	switch {
	case reached && t.CompletedAt == nil:
		t.CompletedAt = store.TimePtr(now)
		return true
	case !reached && t.CompletedAt != nil:
		t.CompletedAt = nil
		return true
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	l := t.In(time.Local)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.Local)
}
