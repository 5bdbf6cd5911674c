// Package playlist implements the leaf pieces of the sync core: playlist
// identities, immutable version snapshots, the path codec that translates
// track lines between the absolute and relative conventions, and the
// content fingerprint used for change detection.
package playlist

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Identity is the side-independent name of a playlist: its base file
// name without extension, Unicode NFC normalized and lower-cased, with
// any _vN export suffix stripped. The same logical playlist resolves to
// the same identity on both sides and in the conversion stage.
type Identity string

// versionSuffixRe matches trailing _vN export markers some players
// append when re-exporting a playlist, e.g. "roadtrip_v2".
var versionSuffixRe = regexp.MustCompile(`(_v\d+)+$`)

// IdentityOf derives the identity for a playlist file name or path.
func IdentityOf(name string) Identity {
	base := filepath.Base(name)

	ext := filepath.Ext(base)
	if isPlaylistExt(ext) {
		base = strings.TrimSuffix(base, ext)
	}

	base = versionSuffixRe.ReplaceAllString(base, "")
	// macOS stores file names NFD-decomposed; fold both forms onto one
	// identity so the two sides never diverge on accented names.
	base = norm.NFC.String(base)

	return Identity(strings.ToLower(base))
}

// FileName returns the canonical on-disk file name for the identity.
// Both sides and the conversion stage use the normalized .m3u extension.
func (id Identity) FileName() string {
	return string(id) + ".m3u"
}

// IsPlaylistFile reports whether name has a recognized playlist extension.
func IsPlaylistFile(name string) bool {
	return isPlaylistExt(filepath.Ext(name))
}

// IsVersionedExport reports whether name carries a _vN suffix before
// its extension. Versioned exports are correlated to their base
// identity but never used as sync sources.
func IsVersionedExport(name string) bool {
	base := filepath.Base(name)

	ext := filepath.Ext(base)
	if isPlaylistExt(ext) {
		base = strings.TrimSuffix(base, ext)
	}

	return versionSuffixRe.MatchString(base)
}

func isPlaylistExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".m3u", ".m3u8":
		return true
	}

	return false
}
