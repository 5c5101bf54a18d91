package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionstack/multicam/internal/shared/id"
)

func testFrame(cam int, ts int64) *Frame {
	return &Frame{
		ID:                id.NewFrameID(),
		CameraIndex:       cam,
		Timestamp:         ts,
		HardwareTimestamp: InvalidHardwareTimestamp,
	}
}

func TestNewBundlePanicsOnBadSlotCount(t *testing.T) {
	assert.Panics(t, func() { NewBundle(0, 100) })
	assert.Panics(t, func() { NewBundle(-1, 100) })
}

func TestBundleFillToCompletion(t *testing.T) {
	b := NewBundle(3, 1000)
	assert.Equal(t, int64(1000), b.AnchorTimestamp())
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 0, b.NumSet())
	assert.False(t, b.IsComplete())

	for i := 0; i < 3; i++ {
		displaced := b.SetFrame(i, testFrame(i, 1000+int64(i)))
		assert.Nil(t, displaced)
	}
	assert.True(t, b.IsComplete())
	assert.Equal(t, 3, b.NumSet())
}

func TestBundleOverwriteReturnsDisplaced(t *testing.T) {
	b := NewBundle(2, 1000)
	first := testFrame(0, 1000)
	second := testFrame(0, 1001)

	require.Nil(t, b.SetFrame(0, first))
	displaced := b.SetFrame(0, second)

	assert.Same(t, first, displaced)
	assert.Same(t, second, b.Frame(0))
	// Overwriting does not change the fill count.
	assert.Equal(t, 1, b.NumSet())
	assert.False(t, b.IsComplete())
}

func TestBundleSetFrameNilPanics(t *testing.T) {
	b := NewBundle(1, 0)
	assert.Panics(t, func() { b.SetFrame(0, nil) })
}

func TestBundleAnchorIndependentOfLaterFrames(t *testing.T) {
	b := NewBundle(2, 1000)
	b.SetFrame(1, testFrame(1, 1040))
	assert.Equal(t, int64(1000), b.AnchorTimestamp())
}

func TestFeaturesNumKeypoints(t *testing.T) {
	var f *Features
	assert.Equal(t, 0, f.NumKeypoints())
	assert.Equal(t, 0, (&Features{}).NumKeypoints())
}
