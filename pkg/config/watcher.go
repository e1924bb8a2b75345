package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of fsnotify events an editor save
// produces (truncate, write, rename) into a single reload signal.
const reloadDebounce = 500 * time.Millisecond

// WatchSystemConfig watches the given SystemConfig files (system.json in
// production) and returns a channel receiving one signal per debounced
// change; the caller tears down and rebuilds the pipeline on each. The
// watcher goroutine runs until ctx is cancelled, then closes the channel.
func WatchSystemConfig(ctx context.Context, paths ...string) <-chan struct{} {
	reload := make(chan struct{}, 1)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("config: create fsnotify watcher", "error", err)
		return reload
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			slog.Warn("config: cannot resolve watch path", "path", p, "error", err)
			continue
		}
		if err := watcher.Add(abs); err != nil {
			slog.Warn("config: cannot watch system config file", "path", p, "error", err)
		}
	}

	go func() {
		defer watcher.Close()
		defer close(reload)

		var debounce *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				// Write covers in-place saves; Create covers editors that
				// replace system.json wholesale on save.
				if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				changed := ev.Name
				debounce = time.AfterFunc(reloadDebounce, func() {
					slog.Info("config: system configuration changed", "path", changed)
					select {
					case reload <- struct{}{}:
					default:
						// A reload is already pending; the rebuild will
						// re-read the file anyway.
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("config: watcher error", "error", err)
			}
		}
	}()

	return reload
}
