package playlist

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	syncerrors "github.com/legandy/playlistsync/internal/errors"
)

// Codec converts single track-path lines between the absolute
// convention of the pc side and the relative convention of the
// smartphone side. Non-track lines always pass through unchanged, and
// lines already in the target convention are idempotent.
type Codec struct {
	// AllowEscapes permits ..-relative results for tracks outside the
	// base folder. When false such lines pass through unchanged and the
	// call returns an ErrPathOutsideBase warning.
	AllowEscapes bool
}

// ToRelative rewrites an absolute track line relative to baseDir, using
// forward slashes. The returned line is always usable; a non-nil error
// is a per-line warning, not a failure.
func (c Codec) ToRelative(line, baseDir string) (string, error) {
	if !IsTrackLine(line) {
		return line, nil
	}

	p := strings.TrimSpace(line)
	if !filepath.IsAbs(p) {
		// Already relative; normalize separators only.
		return path.Clean(filepath.ToSlash(p)), nil
	}

	rel, err := filepath.Rel(baseDir, p)
	if err != nil {
		return line, fmt.Errorf("%w: %s: %v", syncerrors.ErrPathOutsideBase, p, err)
	}

	if escapes(rel) && !c.AllowEscapes {
		return line, fmt.Errorf("%w: %s", syncerrors.ErrPathOutsideBase, p)
	}

	return filepath.ToSlash(rel), nil
}

// ToAbsolute rewrites a relative track line against baseDir in the
// platform's native separator form. Already-absolute lines are cleaned
// and passed through.
func (c Codec) ToAbsolute(line, baseDir string) (string, error) {
	if !IsTrackLine(line) {
		return line, nil
	}

	p := strings.TrimSpace(line)
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}

	return filepath.Join(baseDir, filepath.FromSlash(p)), nil
}

// RelativeLines rewrites every line of a playlist to the relative
// convention. Outside-base warnings are collected rather than aborting
// the conversion; affected lines are passed through unchanged.
func (c Codec) RelativeLines(lines []string, baseDir string) ([]string, []error) {
	return c.convertLines(lines, baseDir, c.ToRelative)
}

// AbsoluteLines rewrites every line of a playlist to the absolute
// convention.
func (c Codec) AbsoluteLines(lines []string, baseDir string) ([]string, []error) {
	return c.convertLines(lines, baseDir, c.ToAbsolute)
}

func (c Codec) convertLines(lines []string, baseDir string, convert func(string, string) (string, error)) ([]string, []error) {
	out := make([]string, len(lines))

	var warnings []error

	for i, line := range lines {
		converted, err := convert(line, baseDir)
		if err != nil {
			warnings = append(warnings, err)
		}

		out[i] = converted
	}

	return out, warnings
}

// NormalizeExtension maps the .m3u8 extension to .m3u, matching case
// insensitively. Other extensions are untouched.
func NormalizeExtension(filename string) string {
	ext := filepath.Ext(filename)
	if strings.EqualFold(ext, ".m3u8") {
		return strings.TrimSuffix(filename, ext) + ".m3u"
	}

	return filename
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
