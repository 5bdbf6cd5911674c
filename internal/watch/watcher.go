// Package watch is the notification collaborator: it subscribes to OS
// file events for one side folder and forwards recognized playlist
// changes to the sync engine. All debounce and self-suppression logic
// lives in the engine; the watcher only filters and translates events.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/legandy/playlistsync/internal/playlist"
	"github.com/legandy/playlistsync/internal/sync"
)

// Notifier is the engine surface the watcher drives. Extracted for
// testability.
type Notifier interface {
	FileChanged(name string, side sync.Side)
	FileRemoved(name string, side sync.Side)
}

// Watcher monitors one side folder for playlist file events.
type Watcher struct {
	dir      string
	side     sync.Side
	notifier Notifier
	logger   *slog.Logger
}

// New creates a watcher for the given side folder.
func New(dir string, side sync.Side, n Notifier, logger *slog.Logger) *Watcher {
	return &Watcher{
		dir:      dir,
		side:     side,
		notifier: n,
		logger:   logger,
	}
}

// Watch blocks delivering events until the context is cancelled. The
// side folders are flat, so the watch is non-recursive.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	w.logger.Info("file watcher started",
		slog.String("side", string(w.side)),
		slog.String("dir", w.dir),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}

			w.handle(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}

			w.logger.Warn("watcher error",
				slog.String("side", string(w.side)),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if !relevant(name) {
		return
	}

	switch {
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		w.logger.Debug("change detected",
			slog.String("side", string(w.side)),
			slog.String("file", name),
		)
		w.notifier.FileChanged(name, w.side)

	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		// Rename fires on the old path; the new path arrives as a
		// separate create event.
		w.notifier.FileRemoved(name, w.side)
	}
}

// relevant filters events down to real playlist files, dropping hidden
// files, editor temp files, and anything without a playlist extension.
func relevant(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}

	if strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".swp") {
		return false
	}

	return playlist.IsPlaylistFile(name)
}
