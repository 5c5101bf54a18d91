// Package pipeline defines the frame producer boundary: processors
// that turn one raw camera image into one frame.
//
// A producer carries two camera calibrations. The input camera
// describes the raw image as it comes off the sensor; the output
// camera describes the image and keypoints in the produced frame.
// Undistorting producers differ between the two, pass-through producers
// share one camera for both.
//
// Producers must be safe to call concurrently for different cameras.
// The aggregation engine never calls one producer concurrently with
// itself.
package pipeline

import (
	"errors"

	"github.com/visionstack/multicam/internal/camera"
	"github.com/visionstack/multicam/internal/frame"
	"github.com/visionstack/multicam/internal/shared/id"
)

// ErrNilImage is returned when a producer receives a nil image.
var ErrNilImage = errors.New("pipeline: nil image")

// Producer turns a raw image with capture timestamps into a frame.
type Producer interface {
	// Process builds a frame from the image. systemStamp is the host
	// capture time in nanoseconds and becomes the frame's matching
	// timestamp; hardwareStamp is the camera clock stamp or
	// frame.InvalidHardwareTimestamp.
	Process(img *frame.Image, systemStamp, hardwareStamp int64) (*frame.Frame, error)

	// InputCamera is the calibration of the raw image.
	InputCamera() *camera.Camera
	// OutputCamera is the calibration of the produced frame.
	OutputCamera() *camera.Camera
}

// cameras implements the calibration accessors shared by all producers.
type cameras struct {
	input  *camera.Camera
	output *camera.Camera
}

func (c cameras) InputCamera() *camera.Camera  { return c.input }
func (c cameras) OutputCamera() *camera.Camera { return c.output }

// newFrame builds the frame envelope every producer starts from: ID,
// stamps and output calibration filled, content left to the producer.
// The camera slot index is assigned by the aggregation engine, which is
// the only party that knows it.
func newFrame(output *camera.Camera, systemStamp, hardwareStamp int64) *frame.Frame {
	return &frame.Frame{
		ID:                id.NewFrameID(),
		Timestamp:         systemStamp,
		HardwareTimestamp: hardwareStamp,
		Camera:            output,
	}
}
