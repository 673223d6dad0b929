package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"go.ntppool.org/tablerank/selector"
)

const (
	defaultReloadInterval = 5 * time.Minute
	errorRetryInterval    = 2 * time.Minute
	debounceInterval      = 100 * time.Millisecond
)

// Manager keeps the selector configuration in sync with the tuning file.
type Manager struct {
	path  string
	log   *slog.Logger
	apply func(selector.Config) error

	reloadInterval time.Duration
	retryInterval  time.Duration

	mu      sync.Mutex
	current selector.Config
}

// NewManager watches the tuning file at path and calls apply with every
// changed, valid configuration.
func NewManager(log *slog.Logger, path string, apply func(selector.Config) error) *Manager {
	return &Manager{
		path:           path,
		log:            log.WithGroup("tuning"),
		apply:          apply,
		reloadInterval: defaultReloadInterval,
		retryInterval:  errorRetryInterval,
		current:        selector.DefaultConfig(),
	}
}

// Load reads the tuning file for startup. A missing file isn't an error;
// the defaults are used.
func (m *Manager) Load() (selector.Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		if !isNotExist(err) {
			return cfg, err
		}
		m.log.Info("no tuning file, using defaults", "path", m.path)
	}

	m.mu.Lock()
	m.current = cfg
	m.mu.Unlock()

	return cfg, nil
}

// Current returns the last loaded configuration.
func (m *Manager) Current() selector.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) reload(ctx context.Context) error {
	cfg, err := Load(m.path)
	if err != nil {
		if isNotExist(err) {
			// keep running with what we have
			m.log.DebugContext(ctx, "tuning file missing", "path", m.path)
			return nil
		}
		return err
	}

	m.mu.Lock()
	changed := cfg != m.current
	m.mu.Unlock()

	if !changed {
		m.log.DebugContext(ctx, "tuning file unchanged")
		return nil
	}

	if err := m.apply(cfg); err != nil {
		return err
	}

	m.mu.Lock()
	m.current = cfg
	m.mu.Unlock()

	m.log.InfoContext(ctx, "tuning reloaded", "path", m.path)
	return nil
}

// Run watches the tuning file until ctx is done. Changes are picked up
// from file system events, with a periodic reload as fallback. A broken
// file is logged and the running configuration stays in place.
func (m *Manager) Run(ctx context.Context) error {
	log := m.log
	dir, fileName := filepath.Dir(m.path), filepath.Base(m.path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WarnContext(ctx, "failed to create file watcher, falling back to timer-only reloading", "err", err)
		watcher = nil
	} else {
		err = watcher.Add(dir)
		if err != nil {
			log.WarnContext(ctx, "failed to watch tuning file directory, falling back to timer-only reloading", "dir", dir, "err", err)
			watcher.Close()
			watcher = nil
		} else {
			log.InfoContext(ctx, "watching tuning file directory for changes", "dir", dir, "file", fileName)
		}
	}
	defer func() {
		if watcher != nil {
			watcher.Close()
		}
	}()

	var debounceTimer *time.Timer

	timer := time.NewTimer(m.reloadInterval)
	defer timer.Stop()

	for {
		var events <-chan fsnotify.Event
		var errs <-chan error
		if watcher != nil {
			events = watcher.Events
			errs = watcher.Errors
		}
		var debounceC <-chan time.Time
		if debounceTimer != nil {
			debounceC = debounceTimer.C
		}

		select {
		case <-debounceC:
			log.DebugContext(ctx, "debounce timer fired, triggering reload")
			debounceTimer = nil

		case event, ok := <-events:
			if !ok {
				log.WarnContext(ctx, "file watcher events channel closed")
				watcher = nil
				break
			}
			// editors and atomic renames show up as Create or Rename
			baseName := filepath.Base(event.Name)
			if baseName != fileName && baseName != fileName+".tmp" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.DebugContext(ctx, "tuning file changed", "event", event.String())
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(debounceInterval)
			continue

		case err, ok := <-errs:
			if !ok {
				log.WarnContext(ctx, "file watcher error channel closed")
				watcher = nil
			} else {
				log.WarnContext(ctx, "file watcher error", "err", err)
			}

		case <-timer.C:
			log.DebugContext(ctx, "timer triggered reload")

		case <-ctx.Done():
			log.InfoContext(ctx, "tuning reloader shutting down")
			return nil
		}

		nextCheck := m.reloadInterval
		if err := m.reload(ctx); err != nil {
			log.WarnContext(ctx, "failed to reload tuning file", "err", err)
			nextCheck = m.retryInterval
		}

		timer.Reset(nextCheck)
	}
}
