// Package watcher signals when files inside a worktree change, coalescing
// bursts of writes into one notification.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/taskreview/internal/log"
)

// Watcher monitors a directory tree and sends one signal per debounced burst.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	root      string
	debounce  time.Duration
	ignore    []string
	onChange  chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

// Config holds watcher configuration options.
type Config struct {
	Root        string
	DebounceDur time.Duration
	// IgnoreDirs are directory base names that are never watched.
	IgnoreDirs []string
}

// DefaultIgnoreDirs are skipped in every worktree.
var DefaultIgnoreDirs = []string{".git", "node_modules", ".taskreview"}

// DefaultConfig returns the defaults for watching root.
func DefaultConfig(root string) Config {
	return Config{
		Root:        root,
		DebounceDur: 500 * time.Millisecond,
		IgnoreDirs:  DefaultIgnoreDirs,
	}
}

// New creates a watcher for cfg.Root.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if cfg.DebounceDur <= 0 {
		cfg.DebounceDur = 500 * time.Millisecond
	}
	if cfg.IgnoreDirs == nil {
		cfg.IgnoreDirs = DefaultIgnoreDirs
	}

	return &Watcher{
		fsWatcher: fsw,
		root:      cfg.Root,
		debounce:  cfg.DebounceDur,
		ignore:    cfg.IgnoreDirs,
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start registers every directory under the root and begins watching.
// The returned channel receives a signal after each burst of changes.
func (w *Watcher) Start() (<-chan struct{}, error) {
	if err := w.addTree(w.root); err != nil {
		return nil, err
	}
	go w.loop()
	return w.onChange, nil
}

// Stop terminates the watcher. Safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watching directory %s: %w", dir, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			if path == dir {
				return fmt.Errorf("watching directory %s: %w", path, err)
			}
			log.Warn(log.CatWatcher, "cannot watch directory", "path", path, "error", err.Error())
		}
		return nil
	})
}

// ignored reports whether any path element below the root is an ignored name.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for dir := rel; dir != "." && dir != string(filepath.Separator) && dir != ""; dir = filepath.Dir(dir) {
		if slices.Contains(w.ignore, filepath.Base(dir)) {
			return true
		}
	}
	return false
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addTree(event.Name)
				}
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			// Drop if the consumer has not drained the previous signal.
			select {
			case w.onChange <- struct{}{}:
			default:
			}
			log.Debug(log.CatWatcher, "worktree changed", "root", w.root)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn(log.CatWatcher, "watch error", "error", err.Error())

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// isRelevantEvent filters out chmod-only events and ignored directories.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return !w.ignored(event.Name)
}
