package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watch invalidates the cached snapshot whenever the collaborator rewrites
// sessions.json. It returns once the watcher is installed and runs until the
// context is cancelled. Watch errors are logged, never fatal: a broken watcher
// degrades to uncached reads at worst.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory, not the file: collaborators replace the file via
	// rename, which drops a direct file watch.
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch state directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != sessionsFileName {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				log.Debug("Sessions file changed on disk, dropping snapshot", "op", ev.Op.String())
				s.Invalidate()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("Sessions watcher error", "error", err)
			}
		}
	}()

	return nil
}
