package export

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sadopc/pomodash/internal/store"
)

func ToJSON(records []store.HistoryRecord, tasks map[string]*store.Task, path string) error {
	data, err := json.MarshalIndent(newDocument(records, tasks), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
