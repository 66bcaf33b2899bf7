package keyframes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func version(ref string) Version {
	return Version{Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), ImageRef: ref}
}

func TestAppendAdvancesSelection(t *testing.T) {
	s := NewStore()
	key := ShotKey("scene1", "shot1")

	_, ok := s.Selected(key)
	assert.False(t, ok)

	s.Append(key, version("kf_v1.png"))
	sel, ok := s.Selected(key)
	require.True(t, ok)
	assert.Equal(t, "kf_v1.png", sel.ImageRef)

	s.Append(key, version("kf_v2.png"))
	sel, _ = s.Selected(key)
	assert.Equal(t, "kf_v2.png", sel.ImageRef)

	h, ok := s.History(key)
	require.True(t, ok)
	assert.Len(t, h.Versions, 2)
	assert.Equal(t, 1, h.SelectedVersionIndex)
}

func TestPinHoldsSelectionAcrossAppends(t *testing.T) {
	s := NewStore()
	key := ShotKey("scene1", "shot2")

	s.Append(key, version("kf_v1.png"))
	s.Append(key, version("kf_v2.png"))
	require.NoError(t, s.Pin(key, 0))

	s.Append(key, version("kf_v3.png"))
	sel, ok := s.Selected(key)
	require.True(t, ok)
	assert.Equal(t, "kf_v1.png", sel.ImageRef, "pinned selection must not advance")

	s.Unpin(key)
	s.Append(key, version("kf_v4.png"))
	sel, _ = s.Selected(key)
	assert.Equal(t, "kf_v4.png", sel.ImageRef)
}

func TestPinValidatesIndex(t *testing.T) {
	s := NewStore()
	key := ShotKey("scene1", "shot3")

	err := s.Pin(key, 0)
	assert.ErrorContains(t, err, "no keyframe history")

	s.Append(key, version("kf_v1.png"))
	assert.ErrorContains(t, s.Pin(key, 1), "out of range")
	assert.ErrorContains(t, s.Pin(key, -1), "out of range")
	assert.NoError(t, s.Pin(key, 0))
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := NewStore()
	key := ShotKey("scene2", "shot1")
	s.Append(key, version("kf_v1.png"))

	h, ok := s.History(key)
	require.True(t, ok)
	h.Versions[0].ImageRef = "mutated.png"

	sel, _ := s.Selected(key)
	assert.Equal(t, "kf_v1.png", sel.ImageRef)
}
