package sync

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legandy/playlistsync/internal/playlist"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBackupStore(t *testing.T, maxBackups int) *BackupStore {
	t.Helper()

	b, err := NewBackupStore(filepath.Join(t.TempDir(), "Backups"), "", maxBackups, discardLogger())
	require.NoError(t, err)

	return b
}

func backupVersion(tracks ...string) *playlist.Version {
	return playlist.NewVersion("mix", tracks, playlist.OriginConversion, "")
}

func TestSnapshot_WritesTimestampedCopy(t *testing.T) {
	b := testBackupStore(t, 5)

	require.NoError(t, b.Snapshot("mix", backupVersion("a.mp3")))

	names, err := b.Entries("mix")
	require.NoError(t, err)
	require.Len(t, names, 1)

	data, err := os.ReadFile(filepath.Join(b.root, "mix", names[0]))
	require.NoError(t, err)
	assert.Equal(t, "a.mp3\n", string(data))
}

func TestSnapshot_SkipsRedundantBackup(t *testing.T) {
	b := testBackupStore(t, 5)

	require.NoError(t, b.Snapshot("mix", backupVersion("a.mp3")))
	require.NoError(t, b.Snapshot("mix", backupVersion("a.mp3")))

	names, err := b.Entries("mix")
	require.NoError(t, err)
	assert.Len(t, names, 1, "identical consecutive versions must not duplicate backups")
}

func TestSnapshot_RedundancyCheckSurvivesRestart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Backups")

	b1, err := NewBackupStore(dir, "", 5, discardLogger())
	require.NoError(t, err)
	require.NoError(t, b1.Snapshot("mix", backupVersion("a.mp3")))

	// A fresh store over the same directory re-fingerprints the newest
	// snapshot instead of starting blind.
	b2, err := NewBackupStore(dir, "", 5, discardLogger())
	require.NoError(t, err)
	require.NoError(t, b2.Snapshot("mix", backupVersion("a.mp3")))

	names, err := b2.Entries("mix")
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestSnapshot_RestartSeedMatchesConversionBase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Backups")
	phoneDir := filepath.Join("/", "music", "phone")

	// An escaping line fingerprints by resolving against the base
	// folder; the reseed must use the same base or the dedup check
	// fails after a restart.
	v := playlist.NewVersion("mix", []string{"../shared/a.mp3"}, playlist.OriginConversion, phoneDir)

	b1, err := NewBackupStore(dir, phoneDir, 5, discardLogger())
	require.NoError(t, err)
	require.NoError(t, b1.Snapshot("mix", v))

	b2, err := NewBackupStore(dir, phoneDir, 5, discardLogger())
	require.NoError(t, err)
	require.NoError(t, b2.Snapshot("mix", v))

	names, err := b2.Entries("mix")
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestSnapshot_RetentionEvictsOldestFirst(t *testing.T) {
	const maxBackups = 3

	b := testBackupStore(t, maxBackups)

	// Distinct timestamps so names are deterministic and ordered.
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	var contents []string

	for i := 0; i < 7; i++ {
		tracks := []string{"a.mp3"}
		for j := 0; j < i; j++ {
			tracks = append(tracks, "b.mp3")
		}

		v := backupVersion(tracks...)
		contents = append(contents, v.Content())
		require.NoError(t, b.Snapshot("mix", v))

		now = now.Add(time.Second)
	}

	names, err := b.Entries("mix")
	require.NoError(t, err)
	require.Len(t, names, maxBackups)

	// The survivors are the most recent snapshots, oldest first.
	for i, name := range names {
		data, err := os.ReadFile(filepath.Join(b.root, "mix", name))
		require.NoError(t, err)
		assert.Equal(t, contents[len(contents)-maxBackups+i], string(data))
	}
}

func TestSnapshot_SubMillisecondBurstDoesNotCollide(t *testing.T) {
	b := testBackupStore(t, 10)

	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	require.NoError(t, b.Snapshot("mix", backupVersion("a.mp3")))
	require.NoError(t, b.Snapshot("mix", backupVersion("b.mp3")))
	require.NoError(t, b.Snapshot("mix", backupVersion("c.mp3")))

	names, err := b.Entries("mix")
	require.NoError(t, err)
	assert.Len(t, names, 3)
}

func TestEntries_NoBackupsYet(t *testing.T) {
	b := testBackupStore(t, 5)

	names, err := b.Entries("unknown")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSnapshot_IdentitiesAreIsolated(t *testing.T) {
	b := testBackupStore(t, 5)

	require.NoError(t, b.Snapshot("mix", backupVersion("a.mp3")))
	require.NoError(t, b.Snapshot("workout", playlist.NewVersion("workout", []string{"c.mp3"}, playlist.OriginConversion, "")))

	mixNames, err := b.Entries("mix")
	require.NoError(t, err)
	workoutNames, err := b.Entries("workout")
	require.NoError(t, err)

	assert.Len(t, mixNames, 1)
	assert.Len(t, workoutNames, 1)
}
