// Package state persists sync history in a bbolt database. The playlist
// files themselves remain the authoritative on-disk state (the engine
// rebuilds its baseline by re-fingerprinting the conversion folder at
// startup); this store is the queryable record of what was synced when,
// and of conflicts that were auto-resolved.
package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	syncerrors "github.com/legandy/playlistsync/internal/errors"
)

const (
	// stateDirPerm is the permission mode for the data directory.
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	syncBucket     = []byte("sync")
	conflictBucket = []byte("conflicts")
)

// SyncRecord is the persisted history entry for one identity: the last
// accepted fingerprint and where it came from.
type SyncRecord struct {
	Identity    string `json:"identity"`
	Fingerprint string `json:"fingerprint"`
	Origin      string `json:"origin"`
	SyncTime    int64  `json:"synctime"`
}

// ConflictRecord describes a startup conflict that was auto-resolved by
// the most-recently-modified policy.
type ConflictRecord struct {
	Identity         string `json:"identity"`
	Winner           string `json:"winner"`
	PCFingerprint    string `json:"pc_fingerprint"`
	PhoneFingerprint string `json:"phone_fingerprint"`
	LinesAdded       int    `json:"lines_added"`
	LinesRemoved     int    `json:"lines_removed"`
	ResolvedAt       int64  `json:"resolved_at"`
}

// Store wraps a bbolt database holding sync history.
type Store struct {
	db *bolt.DB
}

// Open opens the history database at the given path, creating it and
// its parent directory if needed. Failures here are fatal at startup.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("%w: creating state directory: %v", syncerrors.ErrStoreUnavailable, err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("%w: opening history db: %v", syncerrors.ErrStoreUnavailable, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(syncBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucketIfNotExists(conflictBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initializing history db: %v", syncerrors.ErrStoreUnavailable, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SyncRecord returns the history entry for an identity, or nil if the
// identity has never synced.
func (s *Store) SyncRecord(identity string) (*SyncRecord, error) {
	var rec *SyncRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(syncBucket).Get([]byte(identity))
		if v == nil {
			return nil
		}

		rec = &SyncRecord{}

		return json.Unmarshal(v, rec)
	})

	return rec, err
}

// SetSyncRecord persists the history entry for an identity.
func (s *Store) SetSyncRecord(rec SyncRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		return tx.Bucket(syncBucket).Put([]byte(rec.Identity), data)
	})
}

// DeleteSyncRecord removes the history entry for an identity that has
// disappeared from both sides.
func (s *Store) DeleteSyncRecord(identity string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(syncBucket).Delete([]byte(identity))
	})
}

// AppendConflict records an auto-resolved conflict.
func (s *Store) AppendConflict(rec ConflictRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		key := conflictKey(rec.Identity, rec.ResolvedAt)

		return tx.Bucket(conflictBucket).Put(key, data)
	})
}

// Conflicts returns the recorded conflicts for an identity, oldest first.
func (s *Store) Conflicts(identity string) ([]ConflictRecord, error) {
	var recs []ConflictRecord

	prefix := append([]byte(identity), 0)

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(conflictBucket).Cursor()

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec ConflictRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}

			recs = append(recs, rec)
		}

		return nil
	})

	return recs, err
}

// conflictKey orders conflict entries per identity by resolution time.
// The timestamp is zero-padded so byte order matches numeric order, and
// the NUL separator cannot occur in a file-name-derived identity, so
// prefix scans for one identity never bleed into a longer one.
func conflictKey(identity string, resolvedAt int64) []byte {
	return []byte(fmt.Sprintf("%s\x00%020d", identity, resolvedAt))
}
