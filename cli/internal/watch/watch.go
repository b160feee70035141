// Package watch re-runs migrations when the migration directory changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before the
// callback runs
const DefaultDebounce = 500 * time.Millisecond

// Watcher calls a callback when files matching a pattern change in a directory
type Watcher struct {
	dir      string
	pattern  string
	callback func(context.Context) error
	watcher  *fsnotify.Watcher
	debounce time.Duration
	log      *slog.Logger
}

// NewWatcher watches dir for files whose base name matches pattern
func NewWatcher(dir, pattern string, log *slog.Logger, callback func(context.Context) error) (*Watcher, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	if err := watcher.Add(absDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	return &Watcher{
		dir:      absDir,
		pattern:  pattern,
		callback: callback,
		watcher:  watcher,
		debounce: DefaultDebounce,
		log:      log,
	}, nil
}

// Run blocks until ctx is done, calling the callback once per burst of
// changes. Callback errors are logged and watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()
	var debounceCh <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug("migration changed", "file", event.Name, "op", event.Op.String())
			// Debounce: reset timer on each event
			debounceTimer.Reset(w.debounce)
			debounceCh = debounceTimer.C

		case <-debounceCh:
			debounceCh = nil
			if err := w.callback(ctx); err != nil {
				w.log.Warn("watch callback failed", "error", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)

		case <-ctx.Done():
			debounceTimer.Stop()
			return nil
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	ok, _ := filepath.Match(w.pattern, filepath.Base(event.Name))
	return ok
}
