package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/ssungk/ehttpd/pkg/httpd"
)

// watchConfig reloads path whenever it changes and applies the new request
// buffer limits to srv. Other settings need a restart.
func watchConfig(ctx context.Context, path string, srv *httpd.Server, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer watcher.Close()

	// 편집기가 rename으로 저장하는 경우를 위해 디렉터리를 감시
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}

	logger.Info("Watching config", "path", abs)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reloadLimits(abs, srv, logger)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watcher error", "error", err)
		}
	}
}

func reloadLimits(path string, srv *httpd.Server, logger *slog.Logger) {
	cfg, err := loadConfig(path)
	if err != nil {
		logger.Warn("Config reload failed, keeping current limits", "error", err)
		return
	}
	if cfg.BufferLimits() == srv.BufferLimits() {
		return
	}
	if err := srv.SetBufferLimits(cfg.BufferLimits()); err != nil {
		logger.Warn("Config reload rejected", "error", err)
	}
}
