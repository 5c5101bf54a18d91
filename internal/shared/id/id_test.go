package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedIDPrefixes(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		prefix string
	}{
		{"frame", NewFrameID().String(), "frm_"},
		{"bundle", NewBundleID().String(), "bdl_"},
		{"stream", NewStreamID().String(), "cam_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, len(tt.id) > len(tt.prefix))
			assert.Equal(t, tt.prefix, tt.id[:len(tt.prefix)])
			assert.True(t, IsValid(tt.id))
		})
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[FrameID]bool)
	for i := 0; i < 1000; i++ {
		id := NewFrameID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestIsValidRejectsGarbage(t *testing.T) {
	assert.False(t, IsValid("not-an-id"))
	assert.False(t, IsValid("frm_notaulid"))
	assert.False(t, IsValid("xyz_01ARZ3NDEKTSV4RRFFQ69G5FAV"))
	assert.False(t, IsValid(""))
}

func TestTimestamp(t *testing.T) {
	id := NewBundleID()
	ts, err := Timestamp(id.String())
	require.NoError(t, err)
	assert.False(t, ts.IsZero())

	_, err = Timestamp("noprefix")
	assert.Error(t, err)
}
