// Package export writes pomodoro history to CSV, JSON or YAML files.
package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sadopc/pomodash/internal/errors"
	"github.com/sadopc/pomodash/internal/store"
)

type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat accepts csv, json, yaml or yml in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return "", errors.Wrapf(errors.ErrInvalidExportFormat, "%q", s)
}

// Write exports records to path in the given format. tasks resolves task
// names; records whose task is gone are labeled "Unknown".
func Write(format Format, records []store.HistoryRecord, tasks map[string]*store.Task, path string) error {
	switch format {
	case CSV:
		return ToCSV(records, tasks, path)
	case JSON:
		return ToJSON(records, tasks, path)
	case YAML:
		return ToYAML(records, tasks, path)
	}
	return errors.Wrapf(errors.ErrInvalidExportFormat, "%q", format)
}

// Source is the part of the store an export reads.
type Source interface {
	ListHistory(ctx context.Context, f store.HistoryFilter) ([]store.HistoryRecord, error)
	ListTasks(ctx context.Context) ([]store.Task, error)
}

// FileName is the default export file name for the given day.
func FileName(format Format, day time.Time) string {
	return fmt.Sprintf("pomodash-export-%s.%s", day.Format("2006-01-02"), format)
}

// History exports all history from src to dir/FileName and returns the path.
func History(ctx context.Context, src Source, format Format, dir string, now time.Time) (string, error) {
	records, err := src.ListHistory(ctx, store.HistoryFilter{})
	if err != nil {
		return "", err
	}
	tasks, err := src.ListTasks(ctx)
	if err != nil {
		return "", err
	}
	byID := make(map[string]*store.Task, len(tasks))
	for i := range tasks {
		byID[tasks[i].ID] = &tasks[i]
	}
	path := filepath.Join(dir, FileName(format, now))
	if err := Write(format, records, byID, path); err != nil {
		return "", err
	}
	return path, nil
}

// entry is one exported row, shared by the structured formats.
type entry struct {
	ID              string   `json:"id" yaml:"id"`
	TaskID          string   `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	Task            string   `json:"task" yaml:"task"`
	Tags            []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	EndedAt         string   `json:"ended_at" yaml:"ended_at"`
	Date            string   `json:"date" yaml:"date"`
	DurationMinutes int      `json:"duration_minutes" yaml:"duration_minutes"`
	Duration        string   `json:"duration" yaml:"duration"`
}

type document struct {
	ExportedAt   string  `json:"exported_at" yaml:"exported_at"`
	Count        int     `json:"count" yaml:"count"`
	TotalMinutes int     `json:"total_minutes" yaml:"total_minutes"`
	Entries      []entry `json:"entries" yaml:"entries"`
}

func newDocument(records []store.HistoryRecord, tasks map[string]*store.Task) document {
	doc := document{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(records),
	}
	for _, r := range records {
		doc.Entries = append(doc.Entries, newEntry(r, tasks))
		doc.TotalMinutes += r.DurationMinutes
	}
	return doc
}

func newEntry(r store.HistoryRecord, tasks map[string]*store.Task) entry {
	e := entry{
		ID:              r.ID,
		Task:            "Unassigned",
		EndedAt:         r.EndedAt.Local().Format(time.RFC3339),
		Date:            r.EndedAt.Local().Format("2006-01-02"),
		DurationMinutes: r.DurationMinutes,
		Duration:        formatDuration(r.DurationMinutes),
	}
	if r.TaskID != nil {
		e.TaskID = *r.TaskID
		e.Task = "Unknown"
		if t, ok := tasks[*r.TaskID]; ok {
			e.Task = t.Text
			e.Tags = append([]string(nil), t.Tags...)
		}
	}
	return e
}

func formatDuration(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
