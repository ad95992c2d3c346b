package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/tapstack/corefw/telemetry"
)

// Logger is the minimal structured-logging contract Watcher logs through.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Watcher hot-reloads a device-config file, re-running Load on every write
// and publishing a config-reloaded telemetry event with the freshly
// resolved configuration, so an edited device-config is picked up without
// restarting the simulator.
type Watcher struct {
	path    string
	fsw     *fsnotify.Watcher
	bus     *telemetry.Bus
	log     Logger
	onLoad  func(*Resolved)
	mu      sync.Mutex
	current *Resolved
}

// NewWatcher opens path, loads its initial configuration, and starts
// watching its containing directory (watching the file itself misses
// editors that write via rename-and-replace). bus may be nil to disable
// telemetry; onLoad, if non-nil, is called with every successfully
// resolved configuration, including the first.
func NewWatcher(path string, bus *telemetry.Bus, log Logger, onLoad func(*Resolved)) (*Watcher, error) {
	if log == nil {
		log = nopLogger{}
	}
	resolved, err := Load(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: starting watcher: %w", err)
	}
	if err := fsw.Add(dirOf(path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", path, err)
	}

	w := &Watcher{path: path, fsw: fsw, bus: bus, log: log, onLoad: onLoad, current: resolved}
	if onLoad != nil {
		onLoad(resolved)
	}
	return w, nil
}

// Current returns the most recently successfully loaded configuration.
func (w *Watcher) Current() *Resolved {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run blocks, reloading on every write/create event for the watched file
// until ctx is cancelled or Close is called. Reload errors are logged and
// do not stop the watcher: the previous good configuration stays active.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !sameFile(ev.Name, w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload(ctx)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error("config: watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	resolved, err := Load(w.path)
	if err != nil {
		w.log.Warn("config: reload failed, keeping previous configuration", "path", w.path, "error", err)
		return
	}
	w.mu.Lock()
	w.current = resolved
	w.mu.Unlock()

	w.log.Info("config: reloaded", "path", w.path)
	if w.onLoad != nil {
		w.onLoad(resolved)
	}
	if w.bus != nil {
		_ = w.bus.NotifyObservers(ctx, telemetry.NewConfigReloadedEvent(w.path))
	}
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error { return w.fsw.Close() }
