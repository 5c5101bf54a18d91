package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRigValidation(t *testing.T) {
	_, err := NewRig("empty", nil)
	assert.Error(t, err)

	cam := testCamera(t, Distortion{})
	_, err = NewRig("holey", []*Camera{cam, nil})
	assert.Error(t, err)
}

func TestRigSlotsPreserveOrder(t *testing.T) {
	a := testCamera(t, Distortion{})
	b := testCamera(t, Distortion{})

	rig, err := NewRig("stereo", []*Camera{a, b})
	require.NoError(t, err)

	assert.Equal(t, 2, rig.NumCameras())
	assert.Same(t, a, rig.Camera(0))
	assert.Same(t, b, rig.Camera(1))
}

func TestRigCamerasReturnsCopy(t *testing.T) {
	rig, err := DefaultRig("test", 3)
	require.NoError(t, err)

	cams := rig.Cameras()
	cams[0] = nil
	assert.NotNil(t, rig.Camera(0))
}

func TestDefaultRig(t *testing.T) {
	_, err := DefaultRig("test", 0)
	assert.Error(t, err)

	rig, err := DefaultRig("test", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, rig.NumCameras())
	for i := 0; i < 4; i++ {
		assert.Equal(t, 640, rig.Camera(i).Width())
	}
}

func TestParseRig(t *testing.T) {
	doc := []byte(`
label: front-rig
cameras:
  - label: cam0
    width: 752
    height: 480
    intrinsics: {fx: 458.6, fy: 457.3, cx: 367.2, cy: 248.4}
    distortion: {k1: -0.28, k2: 0.07, p1: 0.0002, p2: 0.00002}
  - label: cam1
    width: 752
    height: 480
    intrinsics: {fx: 457.5, fy: 456.2, cx: 379.9, cy: 255.2}
`)

	rig, err := ParseRig(doc)
	require.NoError(t, err)
	assert.Equal(t, "front-rig", rig.Label())
	require.Equal(t, 2, rig.NumCameras())

	cam0 := rig.Camera(0)
	assert.Equal(t, "cam0", cam0.Label())
	assert.Equal(t, 752, cam0.Width())
	assert.InDelta(t, -0.28, cam0.Distortion().K1, 1e-9)

	// cam1 carries no distortion block.
	assert.True(t, rig.Camera(1).Distortion().IsZero())
}

func TestParseRigErrors(t *testing.T) {
	_, err := ParseRig([]byte("cameras: ["))
	assert.Error(t, err)

	// A camera with invalid geometry fails rig construction.
	_, err = ParseRig([]byte(`
label: bad
cameras:
  - label: cam0
    width: 0
    height: 480
    intrinsics: {fx: 400, fy: 400, cx: 320, cy: 240}
`))
	assert.Error(t, err)

	// No cameras at all.
	_, err = ParseRig([]byte("label: empty\ncameras: []\n"))
	assert.Error(t, err)
}
