package pipeline

import (
	"fmt"

	"github.com/visionstack/multicam/internal/frame"
)

// Detector is the feature detection/extraction capability a Detect
// producer delegates to. Implementations operate on the already
// geometry-corrected image and express keypoints in the output camera.
type Detector interface {
	Detect(img *frame.Image) (*frame.Features, error)
}

// Detect chains an inner producer with a detector: the inner producer
// settles the image geometry (pass-through or undistortion), then the
// detector fills the frame's feature channels.
type Detect struct {
	cameras
	inner    Producer
	detector Detector
}

// NewDetect wraps inner with the given detector.
func NewDetect(inner Producer, detector Detector) (*Detect, error) {
	if inner == nil {
		return nil, fmt.Errorf("pipeline: detect requires an inner producer")
	}
	if detector == nil {
		return nil, fmt.Errorf("pipeline: detect requires a detector")
	}
	return &Detect{
		cameras:  cameras{input: inner.InputCamera(), output: inner.OutputCamera()},
		inner:    inner,
		detector: detector,
	}, nil
}

// Process implements Producer.
func (d *Detect) Process(img *frame.Image, systemStamp, hardwareStamp int64) (*frame.Frame, error) {
	f, err := d.inner.Process(img, systemStamp, hardwareStamp)
	if err != nil {
		return nil, err
	}

	features, err := d.detector.Detect(f.Image)
	if err != nil {
		return nil, fmt.Errorf("pipeline: detection failed: %w", err)
	}
	f.Features = features
	return f, nil
}
