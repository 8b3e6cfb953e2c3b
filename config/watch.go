package config

import (
	"context"
	"fmt"
	"path/filepath"

	"ghostedit/logger"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the configuration whenever the file at path is written or
// replaced, and sends each valid result on the returned channel. The
// directory is watched rather than the file, since editors often save by
// renaming. Invalid files are logged and skipped. The channel closes when ctx
// is done.
func Watch(ctx context.Context, path string) (<-chan Config, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	out := make(chan Config, 1)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config watch error: %v", err)
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				c, err := loadFrom(path)
				if err != nil {
					logger.Warn("config reload skipped: %v", err)
					continue
				}
				logger.Info("config reloaded from %s", path)
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
