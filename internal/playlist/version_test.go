package playlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"unix endings", "a.mp3\nb.mp3\n", []string{"a.mp3", "b.mp3"}},
		{"windows endings", "a.mp3\r\nb.mp3\r\n", []string{"a.mp3", "b.mp3"}},
		{"no trailing newline", "a.mp3\nb.mp3", []string{"a.mp3", "b.mp3"}},
		{"empty file", "", nil},
		{"blank line preserved", "a.mp3\n\nb.mp3\n", []string{"a.mp3", "", "b.mp3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitLines(tt.in))
		})
	}
}

func TestIsTrackLine(t *testing.T) {
	assert.True(t, IsTrackLine("a.mp3"))
	assert.True(t, IsTrackLine("  rock/a.mp3  "))
	assert.False(t, IsTrackLine("#EXTM3U"))
	assert.False(t, IsTrackLine("  # comment"))
	assert.False(t, IsTrackLine(""))
	assert.False(t, IsTrackLine("   "))
}

func TestVersion_Content(t *testing.T) {
	v := NewVersion("mix", []string{"#EXTM3U", "a.mp3"}, OriginPhone, "")
	assert.Equal(t, "#EXTM3U\na.mp3\n", v.Content())

	empty := NewVersion("mix", nil, OriginPhone, "")
	assert.Equal(t, "", empty.Content())
}

func TestVersion_TrackCount(t *testing.T) {
	v := NewVersion("mix", []string{"#EXTM3U", "a.mp3", "", "b.mp3"}, OriginPhone, "")
	assert.Equal(t, 2, v.TrackCount())
}

func TestLoadVersion_ReadsFileAndFingerprints(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Mix_v2.m3u")
	require.NoError(t, os.WriteFile(path, []byte("#EXTM3U\r\na.mp3\r\n"), 0o644))

	v, err := LoadVersion(path, OriginPhone, dir)
	require.NoError(t, err)

	assert.Equal(t, Identity("mix"), v.Identity)
	assert.Equal(t, []string{"#EXTM3U", "a.mp3"}, v.Lines)
	assert.Equal(t, OriginPhone, v.Origin)
	assert.Equal(t, Fingerprint([]string{"a.mp3"}, ""), v.Fingerprint)
}
