package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sadopc/pomodash/internal/store"
)

func ToCSV(records []store.HistoryRecord, tasks map[string]*store.Task, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	// Header
	if err := w.Write([]string{"ID", "Task", "Tags", "Ended", "Date", "Minutes", "Duration"}); err != nil {
		return err
	}

	for _, r := range records {
		e := newEntry(r, tasks)
		row := []string{
			e.ID,
			e.Task,
			strings.Join(e.Tags, ";"),
			e.EndedAt,
			e.Date,
			strconv.Itoa(e.DurationMinutes),
			e.Duration,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
