package sync

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	gosync "sync"
	"time"

	syncerrors "github.com/legandy/playlistsync/internal/errors"
	"github.com/legandy/playlistsync/internal/playlist"
)

const (
	backupDirPerm  = fs.FileMode(0o755)
	backupFilePerm = fs.FileMode(0o644)

	// backupTimeFormat names snapshots with millisecond resolution so
	// rapid successive changes never collide. Lexical order equals
	// chronological order, which the pruner relies on.
	backupTimeFormat = "2006-01-02_15-04-05.000"
)

// BackupStore writes timestamped copies of superseded playlist versions
// under <root>/<identity>/ and prunes beyond the retention limit,
// oldest first.
type BackupStore struct {
	root       string
	baseDir    string
	maxBackups int
	logger     *slog.Logger

	mu gosync.Mutex

	// lastFingerprint remembers the newest snapshot per identity so a
	// no-op re-trigger never produces a redundant backup. Seeded from
	// disk on first touch of an identity.
	lastFingerprint map[playlist.Identity]string

	now func() time.Time
}

// NewBackupStore creates the store rooted at dir, creating the
// directory if needed. A dir that cannot be created is fatal. baseDir
// is the folder snapshot lines are fingerprinted against when the
// redundancy check reseeds from disk; it must match the base the
// conversion stage fingerprints with (the phone folder).
func NewBackupStore(dir, baseDir string, maxBackups int, logger *slog.Logger) (*BackupStore, error) {
	if err := os.MkdirAll(dir, backupDirPerm); err != nil {
		return nil, fmt.Errorf("%w: creating backup dir: %v", syncerrors.ErrStoreUnavailable, err)
	}

	return &BackupStore{
		root:            dir,
		baseDir:         baseDir,
		maxBackups:      maxBackups,
		logger:          logger,
		lastFingerprint: make(map[playlist.Identity]string),
		now:             time.Now,
	}, nil
}

// Snapshot writes a timestamped copy of v, the version being
// superseded, so backups form a rollback chain. The snapshot is skipped
// when v is fingerprint-identical to the immediately preceding backup.
func (b *BackupStore) Snapshot(id playlist.Identity, v *playlist.Version) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	dir := filepath.Join(b.root, string(id))

	last, seeded := b.lastFingerprint[id]
	if !seeded {
		last = b.seedFromDisk(dir)
		b.lastFingerprint[id] = last
	}

	if last != "" && last == v.Fingerprint {
		b.logger.Debug("skipping redundant backup", slog.String("identity", string(id)))
		return nil
	}

	if err := os.MkdirAll(dir, backupDirPerm); err != nil {
		return fmt.Errorf("creating backup dir for %s: %w", id, err)
	}

	name := b.snapshotName(dir)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(v.Content()), backupFilePerm); err != nil {
		return fmt.Errorf("writing backup %s: %w", path, err)
	}

	b.lastFingerprint[id] = v.Fingerprint
	b.logger.Info("backup created",
		slog.String("identity", string(id)),
		slog.String("file", name),
	)

	return b.prune(id, dir)
}

// Entries lists the snapshot file names for an identity, oldest first.
func (b *BackupStore) Entries(id playlist.Identity) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(b.root, string(id)))
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("listing backups for %s: %w", id, err)
	}

	names := make([]string, 0, len(entries))

	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".m3u") {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}

// snapshotName picks a timestamped file name that does not collide with
// an existing snapshot, disambiguating sub-millisecond bursts with a
// numeric suffix that preserves lexical ordering.
func (b *BackupStore) snapshotName(dir string) string {
	stamp := b.now().Format(backupTimeFormat)

	name := stamp + ".m3u"
	for i := 1; ; i++ {
		if _, err := os.Stat(filepath.Join(dir, name)); os.IsNotExist(err) {
			return name
		}

		name = fmt.Sprintf("%s_%03d.m3u", stamp, i)
	}
}

// seedFromDisk fingerprints the newest existing snapshot so the
// redundancy check survives restarts. Returns "" when there is none.
func (b *BackupStore) seedFromDisk(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		return ""
	}

	newest := ""

	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".m3u") && e.Name() > newest {
			newest = e.Name()
		}
	}

	if newest == "" {
		return ""
	}

	data, err := os.ReadFile(filepath.Join(dir, newest))
	if err != nil {
		return ""
	}

	return playlist.Fingerprint(playlist.SplitLines(string(data)), b.baseDir)
}

// prune evicts the oldest snapshots beyond the retention limit.
func (b *BackupStore) prune(id playlist.Identity, dir string) error {
	names, err := b.Entries(id)
	if err != nil {
		return err
	}

	for _, name := range names[:max(0, len(names)-b.maxBackups)] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("removing old backup %s: %w", name, err)
		}

		b.logger.Debug("old backup deleted",
			slog.String("identity", string(id)),
			slog.String("file", name),
		)
	}

	return nil
}
