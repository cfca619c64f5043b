package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce batches the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
	log      *zap.Logger
}

func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) { o.debounce = d }
}

func WithLogger(log *zap.Logger) WatchOption {
	return func(o *watchOptions) { o.log = log }
}

// Watch reloads the file at path whenever it changes and passes every valid
// result to onChange. Invalid edits are logged and skipped, so the last good
// config stays in effect. Blocks until ctx ends.
func Watch(ctx context.Context, path string, onChange func(Config), opts ...WatchOption) error {
	o := watchOptions{debounce: DefaultDebounce, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file via rename.
	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

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
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(o.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			o.log.Warn("config watch error", zap.Error(err))
		case <-timer.C:
			cfg, err := Load(target)
			if err != nil {
				o.log.Error("config reload rejected", zap.String("path", target), zap.Error(err))
				continue
			}
			o.log.Info("config reloaded", zap.String("path", target))
			onChange(cfg)
		}
	}
}
