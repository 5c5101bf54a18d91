// Package frame defines the data model of the aggregation engine: raw
// images, per-camera frames, and synchronized multi-camera bundles.
package frame

import (
	"gonum.org/v1/gonum/mat"

	"github.com/visionstack/multicam/internal/camera"
	"github.com/visionstack/multicam/internal/shared/id"
)

// Image is a single-channel raw image. Pix is shared by reference
// between producer stages; holders must treat it as read-only.
type Image struct {
	Width  int
	Height int
	Stride int
	Pix    []byte
}

// NewImage allocates a zeroed image with a tight stride.
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Stride: width,
		Pix:    make([]byte, width*height),
	}
}

// At returns the pixel value at (x, y). Bounds are the caller's
// responsibility.
func (im *Image) At(x, y int) byte {
	return im.Pix[y*im.Stride+x]
}

// Set writes the pixel value at (x, y).
func (im *Image) Set(x, y int, v byte) {
	im.Pix[y*im.Stride+x] = v
}

// Clone returns a deep copy of the image.
func (im *Image) Clone() *Image {
	pix := make([]byte, len(im.Pix))
	copy(pix, im.Pix)
	return &Image{Width: im.Width, Height: im.Height, Stride: im.Stride, Pix: pix}
}

// Features holds the detector/extractor output channels of a frame.
// Keypoints is a 2xK matrix of image coordinates (columns are
// keypoints); Scales, Scores and Descriptors are parallel to its
// columns.
type Features struct {
	Keypoints   *mat.Dense
	Scales      []float64
	Scores      []float64
	Descriptors [][]byte
}

// NumKeypoints returns the number of detected keypoints.
func (f *Features) NumKeypoints() int {
	if f == nil || f.Keypoints == nil {
		return 0
	}
	_, k := f.Keypoints.Dims()
	return k
}

// InvalidHardwareTimestamp marks frames whose camera did not supply a
// hardware stamp.
const InvalidHardwareTimestamp int64 = -1

// Frame is one camera's output for one capture instant. Timestamp is
// the system capture time in integer nanoseconds and is the
// authoritative key for bundle matching. Once a frame is handed to the
// aggregation engine it is owned by the bundle that holds it.
type Frame struct {
	ID          id.FrameID
	CameraIndex int

	// Timestamp is the host capture time in nanoseconds.
	Timestamp int64
	// HardwareTimestamp is the camera clock stamp, or
	// InvalidHardwareTimestamp when the camera has none.
	HardwareTimestamp int64

	// Camera is the calibration the frame data is expressed in (the
	// producer's output camera).
	Camera *camera.Camera

	Image    *Image
	Features *Features
}
