package playlist

import (
	"fmt"
	"os"
	"strings"

	syncerrors "github.com/legandy/playlistsync/internal/errors"
)

// Origin tags which collaborator produced a playlist version.
type Origin string

const (
	OriginPC         Origin = "pc"
	OriginPhone      Origin = "smartphone"
	OriginConversion Origin = "conversion"
)

// Version is an immutable snapshot of a playlist: its identity, the raw
// line sequence (track paths mixed with directives), the content
// fingerprint, and where it came from.
type Version struct {
	Identity    Identity
	Lines       []string
	Fingerprint string
	Origin      Origin
}

// NewVersion builds a snapshot and fingerprints it. baseDir is the
// folder absolute track lines are made relative to before hashing; pass
// the owning side's base folder, or "" for already-relative content.
func NewVersion(id Identity, lines []string, origin Origin, baseDir string) *Version {
	return &Version{
		Identity:    id,
		Lines:       lines,
		Fingerprint: Fingerprint(lines, baseDir),
		Origin:      origin,
	}
}

// LoadVersion reads a playlist file into a snapshot. Read failures wrap
// ErrSourceUnreadable so callers can classify them.
func LoadVersion(path string, origin Origin, baseDir string) (*Version, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", syncerrors.ErrSourceUnreadable, path, err)
	}

	return NewVersion(IdentityOf(path), SplitLines(string(data)), origin, baseDir), nil
}

// Content renders the version back to file form with a trailing newline.
func (v *Version) Content() string {
	if len(v.Lines) == 0 {
		return ""
	}

	return strings.Join(v.Lines, "\n") + "\n"
}

// TrackCount returns the number of track-path lines.
func (v *Version) TrackCount() int {
	n := 0

	for _, line := range v.Lines {
		if IsTrackLine(line) {
			n++
		}
	}

	return n
}

// IsTrackLine reports whether a playlist line denotes a track path
// rather than a directive, comment, or blank line.
func IsTrackLine(line string) bool {
	trimmed := strings.TrimSpace(line)

	return trimmed != "" && !strings.HasPrefix(trimmed, "#")
}

// SplitLines splits file content into lines, tolerating CRLF endings
// and dropping a single trailing empty line left by the final newline.
func SplitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSuffix(content, "\n")

	if content == "" {
		return nil
	}

	return strings.Split(content, "\n")
}
