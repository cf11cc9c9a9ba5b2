package target

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher calls a handler when one of the watched files changes. Rapid
// writes are debounced into one call after the file has been quiet.
type Watcher struct {
	watcher    *fsnotify.Watcher
	debounce   time.Duration
	logger     *logrus.Entry
	mu         sync.Mutex
	handlers   map[string]func(path string)
	watchedDir map[string]int
	timers     map[string]*time.Timer
}

// NewWatcher creates a watcher with the given debounce window.
func NewWatcher(debounceMs int, logger *logrus.Entry) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounceMs <= 0 {
		debounceMs = 100
	}
	return &Watcher{
		watcher:    watcher,
		debounce:   time.Duration(debounceMs) * time.Millisecond,
		logger:     logger,
		handlers:   make(map[string]func(string)),
		watchedDir: make(map[string]int),
		timers:     make(map[string]*time.Timer),
	}, nil
}

// Watch registers fn for changes to path. The parent directory is watched
// so that editors replacing the file are noticed.
func (w *Watcher) Watch(path string, fn func(path string)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	// Follow a symlinked file to the directory that actually changes.
	if target, err := filepath.EvalSymlinks(abs); err == nil {
		abs = target
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.handlers[abs]; ok {
		w.handlers[abs] = fn
		return nil
	}
	dir := filepath.Dir(abs)
	if w.watchedDir[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
	}
	w.watchedDir[dir]++
	w.handlers[abs] = fn
	w.logger.Debugf("Watching %s", abs)
	return nil
}

// Unwatch removes the handler for path.
func (w *Watcher) Unwatch(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	if target, err := filepath.EvalSymlinks(abs); err == nil {
		abs = target
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.handlers[abs]; !ok {
		return
	}
	delete(w.handlers, abs)
	if t, ok := w.timers[abs]; ok {
		t.Stop()
		delete(w.timers, abs)
	}
	dir := filepath.Dir(abs)
	w.watchedDir[dir]--
	if w.watchedDir[dir] <= 0 {
		delete(w.watchedDir, dir)
		_ = w.watcher.Remove(dir)
	}
}

// Start processes file events. It blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	defer w.stopTimers()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.handleChange(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

// handleChange restarts the debounce timer of a watched file.
func (w *Watcher) handleChange(name string) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	fn, ok := w.handlers[abs]
	if !ok {
		return
	}
	if t, ok := w.timers[abs]; ok {
		t.Stop()
	}
	w.timers[abs] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, abs)
		w.mu.Unlock()
		w.logger.Infof("File changed: %s", filepath.Base(abs))
		fn(abs)
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	w.stopTimers()
	return w.watcher.Close()
}
