package storage

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called after the ledger file changes on disk. op names
// the file operation that triggered it.
type ChangeCallback func(op string)

// Watch reports on-disk changes to the ledger file until ctx is cancelled.
//
// The backing file is deliberately shareable: other processes may rewrite it
// between requests. The watcher observes the parent directory (watching the
// file itself breaks across the atomic rename) and debounces bursts, so one
// rewrite produces one callback. The store's own writes are reported too.
func (l *Ledger) Watch(ctx context.Context, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(l.path)); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("file", l.path))

	var timer *time.Timer
	var fire <-chan time.Time
	var lastOp string

	schedule := func(op string) {
		lastOp = op
		if timer == nil {
			timer = time.NewTimer(200 * time.Millisecond)
			fire = timer.C
		} else {
			timer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			if cb != nil {
				cb(lastOp)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != l.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			logger.Debug("watcher: ledger changed",
				slog.String("op", ev.Op.String()))
			schedule(ev.Op.String())

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: error", slog.String("error", err.Error()))
		}
	}
}
