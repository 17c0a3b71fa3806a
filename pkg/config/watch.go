package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/openfroyo/instrumenta/pkg/engine"
)

// DefaultDebounce is the quiet period after a change before reloading.
const DefaultDebounce = 500 * time.Millisecond

// ReloadFunc receives the tasks loaded after a change.
type ReloadFunc func(ctx context.Context, tasks []*engine.Task) error

// Watcher reloads manifests when they change on disk.
type Watcher struct {
	logger   zerolog.Logger
	debounce time.Duration
}

// NewWatcher creates a watcher. A zero debounce uses DefaultDebounce.
func NewWatcher(logger zerolog.Logger, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		logger:   logger.With().Str("component", "manifest-watcher").Logger(),
		debounce: debounce,
	}
}

// Watch loads paths, calls fn, and calls it again after every change until
// ctx is cancelled. Reload failures are logged and do not stop watching; an
// error from the initial load is returned.
func (w *Watcher) Watch(ctx context.Context, paths []string, fn ReloadFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	for _, path := range paths {
		if err := w.add(watcher, path); err != nil {
			return err
		}
	}

	tasks, err := LoadManifests(paths)
	if err != nil {
		return err
	}
	if err := fn(ctx, tasks); err != nil {
		w.logger.Error().Err(err).Msg("Initial run failed")
	}

	w.logger.Info().Int("paths", len(paths)).Msg("Watching manifests for changes")

	reload := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !IsManifestFile(event.Name) || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Manifest changed")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			tasks, err := LoadManifests(paths)
			if err != nil {
				w.logger.Error().Err(err).Msg("Failed to reload manifests")
				continue
			}
			w.logger.Info().Int("tasks", len(tasks)).Msg("Manifests reloaded")
			if err := fn(ctx, tasks); err != nil {
				w.logger.Error().Err(err).Msg("Run after reload failed")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// add watches a directory tree, or the directory holding a file so that
// editors replacing the file are noticed.
func (w *Watcher) add(watcher *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return engine.NewConfigurationError(fmt.Sprintf("cannot watch %s", path), err)
	}
	if !info.IsDir() {
		return watcher.Add(filepath.Dir(path))
	}
	return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(p)
		}
		return nil
	})
}
