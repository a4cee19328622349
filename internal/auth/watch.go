package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDefault is the debounce interval for file events. The atomic
// rename writeback shows up as create+rename bursts; one callback per
// burst is enough.
const debounceDefault = 200 * time.Millisecond

// pollDefault is the polling interval when fsnotify is unavailable.
const pollDefault = 5 * time.Second

// WatchConfig configures a credential file watcher.
type WatchConfig struct {
	Path     string // credential file to watch, default DefaultPath()
	PollMode bool   // fall back to polling instead of fsnotify
	// OnChange receives the freshly loaded credentials after every change.
	// nil means the file became unreadable or lost its access token.
	OnChange func(*Credentials)
}

// Watch observes the credential file and reports every change until ctx is
// cancelled. The initial state is reported once before watching starts.
func Watch(ctx context.Context, cfg WatchConfig) error {
	if cfg.OnChange == nil {
		return fmt.Errorf("OnChange callback is required")
	}
	path := cfg.Path
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return fmt.Errorf("resolve credential path: %w", err)
		}
		path = p
	}

	cfg.OnChange(Load(path))

	if cfg.PollMode {
		return pollWatch(ctx, path, cfg.OnChange)
	}
	return fsWatch(ctx, path, cfg.OnChange)
}

// fsWatch watches the containing directory: the refresher replaces the
// file by rename, so watching the file inode directly would go stale
// after the first refresh.
func fsWatch(ctx context.Context, path string, onChange func(*Credentials)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	slog.Info("watching credentials", "mode", "fsnotify", "path", path)

	base := filepath.Base(path)
	var mu sync.Mutex
	var pending *time.Timer

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if pending != nil {
				pending.Stop()
			}
			mu.Unlock()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			mu.Lock()
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(debounceDefault, func() {
				onChange(Load(path))
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

// pollWatch stats the file on an interval and reports mtime changes.
func pollWatch(ctx context.Context, path string, onChange func(*Credentials)) error {
	slog.Info("watching credentials", "mode", "poll", "path", path, "interval", pollDefault)

	var lastMod time.Time
	if info, err := os.Stat(path); err == nil {
		lastMod = info.ModTime()
	}

	ticker := time.NewTicker(pollDefault)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			info, err := os.Stat(path)
			switch {
			case err != nil:
				if !lastMod.IsZero() {
					lastMod = time.Time{}
					onChange(nil)
				}
			case info.ModTime() != lastMod:
				lastMod = info.ModTime()
				onChange(Load(path))
			}
		}
	}
}
