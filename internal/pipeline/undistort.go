package pipeline

import (
	"fmt"
	"math"

	"github.com/visionstack/multicam/internal/camera"
	"github.com/visionstack/multicam/internal/frame"
)

// Undistort remaps raw images from a distorted input camera into the
// geometry of an undistorted output camera. The pixel lookup table is
// computed once at construction; Process is a nearest-neighbor remap.
type Undistort struct {
	cameras
	// lookup holds, for each output pixel, the flat index of the source
	// pixel in the input image, or -1 where the output pixel sees
	// nothing.
	lookup []int32
}

// NewUndistort creates an undistorting producer between the two
// calibrations.
func NewUndistort(input, output *camera.Camera) (*Undistort, error) {
	if input == nil || output == nil {
		return nil, fmt.Errorf("pipeline: undistort requires both cameras")
	}

	u := &Undistort{
		cameras: cameras{input: input, output: output},
		lookup:  make([]int32, output.Width()*output.Height()),
	}

	for oy := 0; oy < output.Height(); oy++ {
		for ox := 0; ox < output.Width(); ox++ {
			idx := oy*output.Width() + ox
			u.lookup[idx] = -1

			x, y, z := output.Backproject(float64(ox), float64(oy))
			su, sv, ok := input.Project(x, y, z)
			if !ok {
				continue
			}
			sx := int(math.Round(su))
			sy := int(math.Round(sv))
			if !input.IsVisible(float64(sx), float64(sy)) {
				continue
			}
			u.lookup[idx] = int32(sy*input.Width() + sx)
		}
	}

	return u, nil
}

// Process implements Producer.
func (u *Undistort) Process(img *frame.Image, systemStamp, hardwareStamp int64) (*frame.Frame, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	if img.Width != u.input.Width() || img.Height != u.input.Height() {
		return nil, fmt.Errorf("pipeline: image size %dx%d does not match input camera %dx%d",
			img.Width, img.Height, u.input.Width(), u.input.Height())
	}

	out := frame.NewImage(u.output.Width(), u.output.Height())
	for oy := 0; oy < out.Height; oy++ {
		for ox := 0; ox < out.Width; ox++ {
			src := u.lookup[oy*out.Width+ox]
			if src < 0 {
				continue
			}
			sx := int(src) % img.Width
			sy := int(src) / img.Width
			out.Set(ox, oy, img.At(sx, sy))
		}
	}

	f := newFrame(u.output, systemStamp, hardwareStamp)
	f.Image = out
	return f, nil
}
