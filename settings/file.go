package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileStore keeps the configuration in a hand-editable YAML file. Absent
// keys fall back to the defaults passed to Get.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file need not exist yet.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Get reads the file over defaults. A missing file is not an error.
func (s *FileStore) Get(_ context.Context, defaults Configuration) (Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.readLocked()
	if err != nil {
		return defaults, err
	}
	return defaults.Apply(p), nil
}

// Set merges p into the file and rewrites it atomically.
func (s *FileStore) Set(_ context.Context, p Partial) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.readLocked()
	if err != nil {
		return err
	}
	merge(&cur, p)

	data, err := yaml.Marshal(cur)
	if err != nil {
		return fmt.Errorf("settings: encode yaml: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("settings: mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("settings: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("settings: rename: %w", err)
	}
	return nil
}

func (s *FileStore) readLocked() (Partial, error) {
	var p Partial
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("settings: read %s: %w", s.path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("settings: parse %s: %w", s.path, err)
	}
	return p, nil
}

func merge(dst *Partial, src Partial) {
	if src.HideReels != nil {
		dst.HideReels = src.HideReels
	}
	if src.HideStories != nil {
		dst.HideStories = src.HideStories
	}
	if src.HideSuggested != nil {
		dst.HideSuggested = src.HideSuggested
	}
	if src.EnableBlacklist != nil {
		dst.EnableBlacklist = src.EnableBlacklist
	}
	if src.BlacklistWords != nil {
		dst.BlacklistWords = src.BlacklistWords
	}
}

// Watch calls onChange after the file is written, created or renamed into
// place, once quiet has passed without further events. The parent directory
// is watched so editors that replace the file are followed. Watch blocks
// until ctx is cancelled.
func (s *FileStore) Watch(ctx context.Context, quiet time.Duration, logger *slog.Logger, onChange func()) error {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings: watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("settings: watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(quiet)
			timerC = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("settings: file watch error", "path", s.path, "error", err)

		case <-timerC:
			timerC = nil
			logger.Info("settings: file changed", "path", s.path)
			onChange()
		}
	}
}
