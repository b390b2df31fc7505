// Package reload watches the config file and reports edits.
package reload

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounce is how long the watcher waits for a burst of writes to settle.
const Debounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the directory holding path and calls
// onChange once per settled burst of writes to that file, until ctx is
// cancelled.
//
// The directory is watched rather than the file so that editors that save
// by rename keep being observed.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	logger.Info("reload: watching", slog.String("path", abs))

	var timer *time.Timer
	var fire <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(Debounce)
			fire = timer.C
		} else {
			timer.Reset(Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("reload: stopped")
			return nil

		case <-fire:
			logger.Debug("reload: config changed", slog.String("path", abs))
			onChange()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("reload: error", slog.String("error", watchErr.Error()))
		}
	}
}
