// Package camera models pinhole cameras with radial-tangential
// distortion and fixed N-camera rigs.
//
// A Camera is immutable after construction. Frame producers and rigs
// share Camera values by pointer; wiring validation in the aggregator
// compares those pointers, so the same physical camera must be
// represented by the same *Camera everywhere.
package camera

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// Distortion holds radial-tangential distortion coefficients.
type Distortion struct {
	K1 float64
	K2 float64
	P1 float64
	P2 float64
}

// IsZero reports whether all coefficients are zero.
func (d Distortion) IsZero() bool {
	return d == Distortion{}
}

// Camera is an immutable pinhole camera calibration.
type Camera struct {
	id     uuid.UUID
	label  string
	width  int
	height int

	intrinsics *mat.Dense // 3x3 K
	fx, fy     float64
	cx, cy     float64
	dist       Distortion
}

// New creates a camera from image geometry and pinhole intrinsics.
func New(label string, width, height int, fx, fy, cx, cy float64, dist Distortion) (*Camera, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("camera %q: invalid image size %dx%d", label, width, height)
	}
	if fx <= 0 || fy <= 0 {
		return nil, fmt.Errorf("camera %q: invalid focal length (%g, %g)", label, fx, fy)
	}

	return &Camera{
		id:     uuid.New(),
		label:  label,
		width:  width,
		height: height,
		intrinsics: mat.NewDense(3, 3, []float64{
			fx, 0, cx,
			0, fy, cy,
			0, 0, 1,
		}),
		fx: fx, fy: fy,
		cx: cx, cy: cy,
		dist: dist,
	}, nil
}

// ID returns the camera's unique identity.
func (c *Camera) ID() uuid.UUID { return c.id }

// Label returns the human-readable camera name.
func (c *Camera) Label() string { return c.label }

// Width returns the image width in pixels.
func (c *Camera) Width() int { return c.width }

// Height returns the image height in pixels.
func (c *Camera) Height() int { return c.height }

// Distortion returns the distortion coefficients.
func (c *Camera) Distortion() Distortion { return c.dist }

// Intrinsics returns a copy of the 3x3 intrinsic matrix K.
func (c *Camera) Intrinsics() *mat.Dense {
	out := mat.NewDense(3, 3, nil)
	out.Copy(c.intrinsics)
	return out
}

// Project maps a point in the camera frame to image coordinates.
// Returns ok=false for points at or behind the image plane.
func (c *Camera) Project(x, y, z float64) (u, v float64, ok bool) {
	if z <= 0 {
		return 0, 0, false
	}
	nx, ny := x/z, y/z
	dx, dy := c.distort(nx, ny)

	var px mat.VecDense
	px.MulVec(c.intrinsics, mat.NewVecDense(3, []float64{dx, dy, 1}))
	return px.AtVec(0), px.AtVec(1), true
}

// Backproject maps image coordinates to a unit bearing vector in the
// camera frame.
func (c *Camera) Backproject(u, v float64) (x, y, z float64) {
	dx := (u - c.cx) / c.fx
	dy := (v - c.cy) / c.fy
	nx, ny := c.undistort(dx, dy)

	norm := math.Sqrt(nx*nx + ny*ny + 1)
	return nx / norm, ny / norm, 1 / norm
}

// IsVisible reports whether pixel (u, v) lies inside the image.
func (c *Camera) IsVisible(u, v float64) bool {
	return u >= 0 && v >= 0 && u < float64(c.width) && v < float64(c.height)
}

// distort applies radial-tangential distortion to normalized image
// coordinates.
func (c *Camera) distort(nx, ny float64) (float64, float64) {
	if c.dist.IsZero() {
		return nx, ny
	}
	r2 := nx*nx + ny*ny
	radial := 1 + c.dist.K1*r2 + c.dist.K2*r2*r2
	dx := nx*radial + 2*c.dist.P1*nx*ny + c.dist.P2*(r2+2*nx*nx)
	dy := ny*radial + c.dist.P1*(r2+2*ny*ny) + 2*c.dist.P2*nx*ny
	return dx, dy
}

// undistort inverts the distortion model by fixed-point iteration. The
// coefficients of calibrated cameras are small, so a handful of
// iterations converges well below a hundredth of a pixel.
func (c *Camera) undistort(dx, dy float64) (float64, float64) {
	if c.dist.IsZero() {
		return dx, dy
	}
	nx, ny := dx, dy
	for i := 0; i < 8; i++ {
		ex, ey := c.distort(nx, ny)
		nx += dx - ex
		ny += dy - ey
	}
	return nx, ny
}
