package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSuppressionWindow_ArmAndExpire(t *testing.T) {
	w := NewSuppressionWindow()

	now := time.Now()
	w.now = func() time.Time { return now }

	w.Arm("/phone/mix.m3u", 2*time.Second)
	assert.True(t, w.IsSuppressed("/phone/mix.m3u"))

	now = now.Add(3 * time.Second)
	assert.False(t, w.IsSuppressed("/phone/mix.m3u"))

	// Expired entry was cleaned up lazily; re-checking stays false.
	assert.False(t, w.IsSuppressed("/phone/mix.m3u"))
}

func TestSuppressionWindow_AbsentPathNotSuppressed(t *testing.T) {
	w := NewSuppressionWindow()
	assert.False(t, w.IsSuppressed("/phone/unknown.m3u"))
}

func TestSuppressionWindow_KeyedPerPath(t *testing.T) {
	w := NewSuppressionWindow()

	now := time.Now()
	w.now = func() time.Time { return now }

	w.Arm("/phone/mix.m3u", time.Second)

	assert.True(t, w.IsSuppressed("/phone/mix.m3u"))
	assert.False(t, w.IsSuppressed("/phone/other.m3u"))
}

func TestSuppressionWindow_ArmExtendsButNeverShortens(t *testing.T) {
	w := NewSuppressionWindow()

	now := time.Now()
	w.now = func() time.Time { return now }

	w.Arm("/phone/mix.m3u", 10*time.Second)
	w.Arm("/phone/mix.m3u", time.Second)

	now = now.Add(5 * time.Second)
	assert.True(t, w.IsSuppressed("/phone/mix.m3u"), "shorter re-arm must not shorten the window")

	w.Arm("/phone/mix.m3u", 10*time.Second)
	now = now.Add(9 * time.Second)
	assert.True(t, w.IsSuppressed("/phone/mix.m3u"), "re-arm must extend the window")
}
