package playlist

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"path/filepath"
	"strings"
)

// Fingerprint hashes the semantic content of a playlist: its track-path
// lines, canonicalized to relative slash-separated form, in order.
// Directives, comments, blank lines, line-ending style, and trailing
// whitespace do not contribute, so a cosmetic re-save by an external
// editor hashes identically while a reorder of tracks does not.
//
// baseDir is the folder absolute lines are made relative to. Both sides
// of the same playlist hash to the same value when each is fingerprinted
// against its own base folder.
func Fingerprint(lines []string, baseDir string) string {
	h := sha256.New()

	for _, line := range lines {
		if !IsTrackLine(line) {
			continue
		}

		h.Write([]byte(canonicalTrack(line, baseDir)))
		h.Write([]byte{'\n'})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// canonicalTrack reduces a track line to the single canonical path form
// hashed by Fingerprint: base-relative for tracks under baseDir,
// absolute for tracks outside it. Escaping ..-relative lines resolve to
// their absolute form so both sides of an outside-base track agree.
func canonicalTrack(line, baseDir string) string {
	p := strings.TrimSpace(line)

	if !filepath.IsAbs(p) {
		p = filepath.Clean(filepath.FromSlash(p))
		if baseDir != "" && escapes(p) {
			p = filepath.Join(baseDir, p)
		}
	}

	if filepath.IsAbs(p) && baseDir != "" {
		if rel, err := filepath.Rel(baseDir, p); err == nil && !escapes(rel) {
			p = rel
		}
	}

	return path.Clean(filepath.ToSlash(p))
}
