package pipeline

import (
	"github.com/visionstack/multicam/internal/camera"
	"github.com/visionstack/multicam/internal/frame"
)

// Null is a pass-through producer: the output image is the input
// image, and input and output calibrations are the same camera.
type Null struct {
	cameras
	copyImage bool
}

// NewNull creates a pass-through producer for the given camera. When
// copyImage is set the produced frame holds a deep copy of the input
// image; otherwise the image is shared by reference and the caller
// must not modify it after submission.
func NewNull(cam *camera.Camera, copyImage bool) *Null {
	return &Null{
		cameras:   cameras{input: cam, output: cam},
		copyImage: copyImage,
	}
}

// Process implements Producer.
func (n *Null) Process(img *frame.Image, systemStamp, hardwareStamp int64) (*frame.Frame, error) {
	if img == nil {
		return nil, ErrNilImage
	}

	f := newFrame(n.output, systemStamp, hardwareStamp)
	if n.copyImage {
		f.Image = img.Clone()
	} else {
		f.Image = img
	}
	return f, nil
}
