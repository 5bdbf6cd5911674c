package sync

import (
	gosync "sync"

	"github.com/legandy/playlistsync/internal/playlist"
)

// ConversionRecord is the per-identity baseline held by the stage: the
// last accepted fingerprint and the last written converted version.
type ConversionRecord struct {
	Fingerprint string
	Version     *playlist.Version
}

// ConversionStage holds the canonical, already-converted copy of each
// playlist. It is the diffing baseline for both sides and the source
// for backup and push operations. The stage never touches the watched
// side folders; callers supply already-read versions.
type ConversionStage struct {
	mu      gosync.RWMutex
	records map[playlist.Identity]ConversionRecord
}

// NewConversionStage creates an empty stage.
func NewConversionStage() *ConversionStage {
	return &ConversionStage{
		records: make(map[playlist.Identity]ConversionRecord),
	}
}

// CurrentFingerprint returns the stored fingerprint for an identity.
// The second return is false when the identity has no record yet.
func (s *ConversionStage) CurrentFingerprint(id playlist.Identity) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return "", false
	}

	return rec.Fingerprint, true
}

// Record returns the stored converted version for an identity, or nil.
func (s *ConversionStage) Record(id playlist.Identity) *playlist.Version {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.records[id].Version
}

// Commit atomically replaces the record for an identity with a newly
// accepted converted version.
func (s *ConversionStage) Commit(id playlist.Identity, v *playlist.Version) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[id] = ConversionRecord{Fingerprint: v.Fingerprint, Version: v}
}

// Drop removes the record for an identity that has disappeared from
// both watched sides.
func (s *ConversionStage) Drop(id playlist.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
}

// Identities returns every identity with a record, in no defined order.
func (s *ConversionStage) Identities() []playlist.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]playlist.Identity, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}

	return ids
}
