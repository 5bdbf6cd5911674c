package playlist

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncerrors "github.com/legandy/playlistsync/internal/errors"
)

func TestToRelative_AbsoluteUnderBase(t *testing.T) {
	c := Codec{}

	got, err := c.ToRelative("/music/pc/rock/a.mp3", "/music/pc")
	require.NoError(t, err)
	assert.Equal(t, "rock/a.mp3", got)
}

func TestToRelative_AlreadyRelative_Idempotent(t *testing.T) {
	c := Codec{}

	got, err := c.ToRelative("rock/a.mp3", "/music/pc")
	require.NoError(t, err)
	assert.Equal(t, "rock/a.mp3", got)
}

func TestToRelative_DirectivePassesThrough(t *testing.T) {
	c := Codec{}

	for _, line := range []string{"#EXTM3U", "#EXTINF:123,Artist - Title", "", "   "} {
		got, err := c.ToRelative(line, "/music/pc")
		require.NoError(t, err)
		assert.Equal(t, line, got)
	}
}

func TestToRelative_OutsideBase_EscapesDisallowed(t *testing.T) {
	c := Codec{AllowEscapes: false}

	got, err := c.ToRelative("/other/a.mp3", "/music/pc")
	require.ErrorIs(t, err, syncerrors.ErrPathOutsideBase)
	// The line passes through unchanged; the error is a warning.
	assert.Equal(t, "/other/a.mp3", got)
}

func TestToRelative_OutsideBase_EscapesAllowed(t *testing.T) {
	c := Codec{AllowEscapes: true}

	got, err := c.ToRelative("/music/other/a.mp3", "/music/pc")
	require.NoError(t, err)
	assert.Equal(t, "../other/a.mp3", got)
}

func TestToAbsolute_RelativeLine(t *testing.T) {
	c := Codec{}

	got, err := c.ToAbsolute("rock/a.mp3", "/music/pc")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/music/pc", "rock", "a.mp3"), got)
}

func TestToAbsolute_AlreadyAbsolute_Idempotent(t *testing.T) {
	c := Codec{}

	got, err := c.ToAbsolute("/music/pc/a.mp3", "/music/pc")
	require.NoError(t, err)
	assert.Equal(t, "/music/pc/a.mp3", got)
}

func TestCodec_RoundTrip(t *testing.T) {
	c := Codec{}
	base := "/music/pc"

	lines := []string{
		"/music/pc/a.mp3",
		"/music/pc/rock/b.mp3",
		"#EXTM3U",
	}

	for _, line := range lines {
		rel, err := c.ToRelative(line, base)
		require.NoError(t, err)

		abs, err := c.ToAbsolute(rel, base)
		require.NoError(t, err)

		want, err := c.ToAbsolute(line, base)
		require.NoError(t, err)
		assert.Equal(t, want, abs, "round trip changed %q", line)
	}
}

func TestRelativeLines_CollectsWarnings(t *testing.T) {
	c := Codec{}

	lines := []string{"#EXTM3U", "/music/pc/a.mp3", "/elsewhere/b.mp3"}

	got, warnings := c.RelativeLines(lines, "/music/pc")
	assert.Equal(t, []string{"#EXTM3U", "a.mp3", "/elsewhere/b.mp3"}, got)
	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], syncerrors.ErrPathOutsideBase)
}

func TestNormalizeExtension(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"m3u8 lowered", "party.m3u8", "party.m3u"},
		{"m3u8 upper case", "Party.M3U8", "Party.m3u"},
		{"m3u untouched", "party.m3u", "party.m3u"},
		{"other extension untouched", "notes.txt", "notes.txt"},
		{"no extension untouched", "party", "party"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeExtension(tt.in))
		})
	}
}
