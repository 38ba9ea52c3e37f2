package results

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/doomedramen/autopwn-sub005/pkg/debug"
)

// watchSettle coalesces bursts of writes into one re-read
const watchSettle = 200 * time.Millisecond

// Watch reports potfile records not yet in index to onNew: first whatever
// the file already holds, then new lines each time the file is written.
// The potfile's directory is watched so the file may be created later.
// Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, index *Index, onNew func([]CrackedRecord)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create potfile watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	refresh := func() {
		records, err := ReadPotfile(path)
		if err != nil {
			if !errors.Is(err, ErrResultStoreUnavailable) {
				debug.Warning("Failed to read potfile: %v", err)
			}
			return
		}
		if fresh := index.Merge(records); len(fresh) > 0 {
			debug.Info("Potfile has %d new records (%d known)", len(fresh), index.Len())
			onNew(fresh)
		}
	}

	refresh()
	debug.Info("Watching potfile %s", path)

	target := filepath.Clean(path)
	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				settle = time.After(watchSettle)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			debug.Warning("Potfile watcher error: %v", err)
		case <-settle:
			settle = nil
			refresh()
		}
	}
}
