package fonts

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch loads fonts as they appear in dir and unregisters them when they
// are removed, until ctx is cancelled.
func (r *Registry) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	r.logger.Info("fonts watcher: started", slog.String("dir", dir))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("fonts watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !IsFontFile(ev.Name) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if _, err := r.LoadFile(ev.Name); err != nil {
					// Partial writes fail to parse; the next Write event retries.
					r.logger.Debug("fonts watcher: load failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
				}
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				r.Remove(FamilyOf(ev.Name))
				r.logger.Debug("fonts watcher: removed", slog.String("path", ev.Name))
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("fonts watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
