package sync

import (
	gosync "sync"
	"time"
)

// SuppressionWindow tracks per-path "ignore changes until" deadlines.
// After the engine writes a destination file, that side's watcher fires
// for the path it just wrote; without this window the two sides would
// bounce the same change back and forth forever. Keying by absolute
// destination path keeps unrelated playlists unaffected.
type SuppressionWindow struct {
	mu    gosync.Mutex
	until map[string]time.Time

	now func() time.Time
}

// NewSuppressionWindow creates an empty window registry.
func NewSuppressionWindow() *SuppressionWindow {
	return &SuppressionWindow{
		until: make(map[string]time.Time),
		now:   time.Now,
	}
}

// Arm suppresses change notifications for path for the given duration.
// An existing later deadline is kept; an earlier one is extended.
func (w *SuppressionWindow) Arm(path string, d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	deadline := w.now().Add(d)
	if existing, ok := w.until[path]; ok && existing.After(deadline) {
		return
	}

	w.until[path] = deadline
}

// IsSuppressed reports whether path is inside an active window. Expired
// entries are cleaned up lazily on lookup.
func (w *SuppressionWindow) IsSuppressed(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	deadline, ok := w.until[path]
	if !ok {
		return false
	}

	if w.now().After(deadline) {
		delete(w.until, path)
		return false
	}

	return true
}
