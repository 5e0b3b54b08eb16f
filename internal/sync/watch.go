package sync

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces editor write bursts into one sync run.
const debounceWindow = 200 * time.Millisecond

// Watch re-runs FileToStore whenever the diagram file changes, until
// ctx is canceled. Each run's outcome is delivered to onRun. The
// parent directory is watched rather than the file itself because
// editors replace files by rename, which drops a file-level watch.
func (e *Engine) Watch(ctx context.Context, opts Options, onRun func(*Report, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(e.depsPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(e.depsPath)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				fire = timer.C
			} else {
				timer.Reset(debounceWindow)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			onRun(nil, err)

		case <-fire:
			timer = nil
			fire = nil
			report, err := e.FileToStore(ctx, opts)
			onRun(report, err)
		}
	}
}
