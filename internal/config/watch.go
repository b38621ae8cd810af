package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"roomsync/server/internal/telemetry"
)

// Watch reloads path whenever it changes, re-applies the environment
// overrides read through lookup and hands every valid result to onChange. A
// nil lookup reads the process environment. The parent directory is watched
// so editors that replace the file are picked up too. Watch returns once the
// watcher is running; it stops when ctx is cancelled.
func Watch(ctx context.Context, path string, lookup func(string) (string, bool), logger telemetry.Logger, onChange func(Config)) error {
	if path == "" || onChange == nil {
		return nil
	}
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: start watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(abs)
				if err == nil {
					for _, envErr := range cfg.ApplyEnv(lookup) {
						logger.Printf("ignoring environment override: %v", envErr)
					}
					err = cfg.Validate()
				}
				if err != nil {
					logger.Printf("ignoring config change in %s: %v", abs, err)
					continue
				}
				logger.Printf("config reloaded from %s", abs)
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Printf("config watcher error: %v", err)
			}
		}
	}()
	return nil
}
