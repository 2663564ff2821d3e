// Package notify implements the producer-to-dispatcher wakeup signal: a
// single well-known file whose mtime producers bump after committing, and a
// debounced fsnotify watcher the dispatcher drains for "scan for new jobs"
// events. Grounded on the teacher's pkg/sync/file_watcher.go, narrowed from
// a directory tree with per-path debounce timers to one file with one
// shared rate limiter.
package notify

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// NotifyAfterCommit touches path, intended to be called immediately after a
// producer's transaction commits successfully. tx is accepted for call-site
// symmetry with the rest of the transactional API even though the touch
// itself happens outside the database.
func NotifyAfterCommit(ctx context.Context, tx *sql.Tx, path string) error {
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		if os.IsNotExist(err) {
			f, createErr := os.Create(path)
			if createErr != nil {
				return fmt.Errorf("notify: create %s: %w", path, createErr)
			}
			return f.Close()
		}
		return fmt.Errorf("notify: touch %s: %w", path, err)
	}
	return nil
}

// Watcher wraps a single-file fsnotify watch, collapsing a burst of writes
// (one per producer commit) into one "rescan" signal via a shared rate
// limiter rather than a per-event debounce timer.
type Watcher struct {
	fsw     *fsnotify.Watcher
	limiter *rate.Limiter
	signals chan struct{}
	errs    chan error
}

// NewWatcher watches path (creating it as an empty file if it does not
// exist yet) and emits on Signals() at most once per debounce
// interval.
func NewWatcher(path string, debounce time.Duration) (*Watcher, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("notify: create watch target %s: %w", path, err)
		}
		f.Close()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("notify: new fsnotify watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("notify: watch %s: %w", path, err)
	}

	w := &Watcher{
		fsw:     fsw,
		limiter: rate.NewLimiter(rate.Every(debounce), 1),
		signals: make(chan struct{}, 1),
		errs:    make(chan error, 1),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.limiter.Allow() {
				continue
			}
			select {
			case w.signals <- struct{}{}:
			default:
			}
			_ = ev
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

// Signals is a "scan for new jobs" channel; the dispatcher drains it and
// rescans until the pending set runs dry.
func (w *Watcher) Signals() <-chan struct{} { return w.signals }

// Errors surfaces fsnotify errors the watcher couldn't deliver inline.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Close stops watching.
func (w *Watcher) Close() error { return w.fsw.Close() }
