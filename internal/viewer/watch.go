package viewer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 100 * time.Millisecond

// watcher broadcasts when PNG files in the charts directory change. Bursts
// of events, such as a full run rewriting every chart, collapse into one
// broadcast.
type watcher struct {
	fs       *fsnotify.Watcher
	dir      string
	notifier *Notifier
	logger   *slog.Logger
}

func newWatcher(dir string, n *Notifier, logger *slog.Logger) (*watcher, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create charts directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &watcher{fs: fsw, dir: dir, notifier: n, logger: logger}, nil
}

// run processes events until ctx is cancelled.
func (w *watcher) run(ctx context.Context) error {
	defer func() { _ = w.fs.Close() }()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !isChartEvent(event) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				gen := w.notifier.Broadcast()
				w.logger.Debug("chart changed", "file", filepath.Base(name), "generation", gen)
			})

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func isChartEvent(event fsnotify.Event) bool {
	if !strings.EqualFold(filepath.Ext(event.Name), ".png") {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}
