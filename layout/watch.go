package layout

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Current holds the active layout and may be swapped while commands run.
type Current struct {
	p atomic.Pointer[Layout]
}

func NewCurrent(l *Layout) *Current {
	c := new(Current)
	c.p.Store(l)
	return c
}

func (c *Current) Load() *Layout { return c.p.Load() }

func (c *Current) Store(l *Layout) { c.p.Store(l) }

// Watch reloads path on every write and stores the result in c. A file that
// fails to load leaves the previous layout active. Watch blocks until ctx is
// done.
func Watch(ctx context.Context, path string, c *Current, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	// editors replace files by rename, so watch the directory
	if err = w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	name := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			l, err := Load(path)
			if err != nil {
				logger.Warn("Layout reload failed, keeping previous layout.", "path", path, "error", err)
				continue
			}
			c.Store(l)
			logger.Info("Layout reloaded.", "path", path)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Layout watcher error.", "error", err)
		}
	}
}
