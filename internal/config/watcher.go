package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes on disk.
type Watcher struct {
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	current *Config
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for path. initial is the already loaded config.
func NewWatcher(path string, initial *Config, logger *slog.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: path, logger: logger, current: initial}, nil
}

// Current returns the most recently loaded config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Watch calls onChange with each successfully reloaded config until ctx is
// done. The parent directory is watched so editors that replace the file by
// rename are picked up too. Invalid configs are logged and skipped.
func (w *Watcher) Watch(ctx context.Context, onChange func(*Config)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	target := filepath.Clean(w.path)
	if err := fw.Add(filepath.Dir(target)); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	w.mu.Lock()
	w.watcher = fw
	w.mu.Unlock()

	w.logger.Info("watching config file for changes", slog.String("path", w.path))

	go func() {
		defer fw.Close()

		for {
			select {
			case <-ctx.Done():
				w.logger.Debug("config watch stopped")
				return

			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				w.logger.Info("config file changed, reloading", slog.String("path", event.Name))
				cfg, err := Load(w.path)
				if err != nil {
					w.logger.Error("failed to reload config",
						slog.String("error", err.Error()),
						slog.String("path", w.path))
					continue
				}

				w.mu.Lock()
				w.current = cfg
				w.mu.Unlock()

				onChange(cfg)

			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.logger.Error("config watch error", slog.String("error", err.Error()))
			}
		}
	}()

	return nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
