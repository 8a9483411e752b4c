package config

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of filesystem events most editors
// emit for a single save.
const reloadDebounce = 500 * time.Millisecond

// Manager serves the current configuration and hot-reloads it when the
// file changes. Readers get a consistent snapshot through an atomic
// pointer; a failed reload keeps the previous snapshot in place.
type Manager struct {
	path    string
	logger  *slog.Logger
	current atomic.Pointer[Config]
	watcher *fsnotify.Watcher

	mu          sync.Mutex
	subscribers []func(*Config)
}

// NewManager loads the file at path and returns a manager serving it.
func NewManager(path string, logger *slog.Logger) (*Manager, error) {
	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	m := &Manager{path: path, logger: logger}
	m.current.Store(cfg)
	return m, nil
}

// Get returns the current configuration snapshot. Safe for concurrent
// use; callers must not mutate the returned value.
func (m *Manager) Get() *Config {
	return m.current.Load()
}

// OnChange registers fn to run after each successful reload. Callbacks
// run on the watcher goroutine and should return quickly.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Watch starts watching the configuration file until ctx is cancelled.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(m.path); err != nil {
		_ = w.Close()
		return err
	}

	m.watcher = w
	go m.run(ctx)
	return nil
}

func (m *Manager) run(ctx context.Context) {
	var pending *time.Timer

	for {
		select {
		case <-ctx.Done():
			if pending != nil {
				pending.Stop()
			}
			_ = m.watcher.Close()
			return

		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}

			// Editors that save by renaming a temp file over the target
			// drop the watch with the old inode; re-add the path so
			// later saves are still seen.
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				_ = m.watcher.Add(m.path)
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(reloadDebounce, m.reload)

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error("config watcher error", "error", err)
		}
	}
}

func (m *Manager) reload() {
	cfg, err := LoadFromFile(m.path)
	if err != nil {
		m.logger.Error("config reload failed, keeping previous", "error", err)
		return
	}

	m.current.Store(cfg)
	m.logger.Info("configuration reloaded", "path", m.path)

	m.mu.Lock()
	subs := make([]func(*Config), len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(cfg)
	}
}

// Close stops the watcher. Safe to call even if Watch was never started.
func (m *Manager) Close() error {
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}
