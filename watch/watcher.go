// Package watch re-runs a goal when source files change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/flashbuild/errors"
	"github.com/teranos/flashbuild/logger"
)

// RunFunc performs one fresh invocation
type RunFunc func(ctx context.Context) error

// Watcher watches source trees and triggers debounced rebuilds.
// The output root is never watched, so a build cannot trigger itself.
type Watcher struct {
	roots      []string
	outputRoot string
	ignore     map[string]bool
	logger     *zap.SugaredLogger

	watcher *fsnotify.Watcher

	mu             sync.Mutex
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	trigger        chan struct{}

	// errorLog keeps an overflowing event queue from flooding the log
	errorLog rate.Sometimes
}

// New creates a watcher over every directory below root. More trees can be
// added with AddRoot. Directories named in ignore and the output root are skipped.
func New(root, outputRoot string, ignore []string, debounce time.Duration, log *zap.SugaredLogger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", root)
	}
	absOut, err := filepath.Abs(outputRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", outputRoot)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	w := &Watcher{
		outputRoot:     absOut,
		ignore:         make(map[string]bool, len(ignore)),
		logger:         log,
		watcher:        fw,
		debouncePeriod: debounce,
		trigger:        make(chan struct{}, 1),
		errorLog:       rate.Sometimes{First: 1, Interval: 5 * time.Second},
	}
	for _, name := range ignore {
		w.ignore[name] = true
	}

	if err := w.addRoot(absRoot); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// AddRoot watches another tree, such as a board crate kept outside the
// source directory. Trees already covered are not added twice.
func (w *Watcher) AddRoot(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve %s", dir)
	}
	w.mu.Lock()
	covered := w.rootOf(abs) != ""
	w.mu.Unlock()
	if covered {
		return nil
	}
	return w.addRoot(abs)
}

func (w *Watcher) addRoot(abs string) error {
	w.mu.Lock()
	w.roots = append(w.roots, abs)
	w.mu.Unlock()
	return w.addTree(abs)
}

// Roots returns the watched trees
func (w *Watcher) Roots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// rootOf returns the watched tree containing path, or "" when there is none.
// Callers hold mu.
func (w *Watcher) rootOf(path string) string {
	for _, r := range w.roots {
		if path == r || strings.HasPrefix(path, r+string(filepath.Separator)) {
			return r
		}
	}
	return ""
}

// addTree watches dir and its subdirectories
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Directories can vanish while we walk
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.skipped(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return errors.Wrapf(err, "failed to watch %s", path)
		}
		return nil
	})
}

// skipped reports whether path lies in the output root or an ignored directory
func (w *Watcher) skipped(path string) bool {
	if path == w.outputRoot || strings.HasPrefix(path, w.outputRoot+string(filepath.Separator)) {
		return true
	}
	w.mu.Lock()
	root := w.rootOf(path)
	w.mu.Unlock()
	if root == "" {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if w.ignore[part] {
			return true
		}
	}
	return false
}

// isScratchFile matches editor swap and backup files
func isScratchFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, ".#") ||
		strings.HasSuffix(base, ".back1")
}

// Run invokes fn once, then again after every debounced batch of changes,
// until ctx is cancelled. Failures of fn are logged; the loop keeps going.
func (w *Watcher) Run(ctx context.Context, fn RunFunc) error {
	go w.watchLoop(ctx)

	w.runOnce(ctx, fn)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.trigger:
			w.runOnce(ctx, fn)
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context, fn RunFunc) {
	if err := fn(ctx); err != nil && ctx.Err() == nil {
		w.logger.Errorw("Rebuild failed; waiting for changes", logger.FieldError, err)
		return
	}
	w.logger.Infow("Waiting for changes", logger.FieldPath, strings.Join(w.Roots(), ", "))
}

// watchLoop monitors file system events
func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.errorLog.Do(func() {
				w.logger.Warnw("Watcher error", logger.FieldError, err)
			})
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if w.skipped(event.Name) || isScratchFile(event.Name) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	// New directories need their own watch
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warnw("Failed to watch new directory", logger.FieldPath, event.Name, logger.FieldError, err)
			}
		}
	}

	w.logger.Debugw("Change detected", logger.FieldPath, event.Name, "op", event.Op.String())
	w.scheduleRun()
}

// scheduleRun debounces rapid file changes into one trigger
func (w *Watcher) scheduleRun() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, func() {
		select {
		case w.trigger <- struct{}{}:
		default:
			// A run is already pending
		}
	})
}

// Close stops watching
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
