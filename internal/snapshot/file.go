package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/sadopc/pomodash/internal/errors"
)

// FileSlot stores the snapshot in a single file, replaced atomically.
type FileSlot struct {
	path   string
	logger zerolog.Logger

	mu   sync.Mutex
	last []byte
}

func NewFileSlot(path string, logger zerolog.Logger) *FileSlot {
	return &FileSlot{path: path, logger: logger.With().Str("component", "snapshot.file").Logger()}
}

func (f *FileSlot) Path() string { return f.path }

func (f *FileSlot) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, errors.ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read slot: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.ErrSlotEmpty
	}
	return data, nil
}

func (f *FileSlot) Write(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := writeAtomic(f.path, data); err != nil {
		return err
	}
	f.last = append(f.last[:0], data...)
	return nil
}

func (f *FileSlot) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = nil
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear slot: %w", err)
	}
	return nil
}

// Watch reports rewrites of the slot made by other processes. Each value is
// the new blob; an empty value means the slot was cleared. Writes made
// through this FileSlot are not reported. The channel closes when ctx ends.
func (f *FileSlot) Watch(ctx context.Context) (<-chan []byte, error) {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create slot directory: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	out := make(chan []byte, 1)
	go func() {
		defer close(out)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(f.path) {
					continue
				}
				data, changed := f.external(event)
				if !changed {
					continue
				}
				select {
				case out <- data:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Warn().Err(err).Msg("fsnotify error")
			}
		}
	}()
	return out, nil
}

func (f *FileSlot) external(event fsnotify.Event) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if event.Has(fsnotify.Remove) {
		if f.last == nil {
			return nil, false
		}
		f.last = nil
		return []byte{}, true
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return nil, false
	}
	data, err := os.ReadFile(f.path)
	if err != nil || len(data) == 0 || bytes.Equal(data, f.last) {
		return nil, false
	}
	f.last = append([]byte(nil), data...)
	return data, true
}

func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create slot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".pomodash-tmp-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}
