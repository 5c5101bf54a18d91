package camera

import (
	"fmt"

	"github.com/google/uuid"
)

// Rig is an ordered, fixed set of cameras. The slot index of a camera
// in the rig is the camera index used throughout the aggregation
// engine.
type Rig struct {
	id      uuid.UUID
	label   string
	cameras []*Camera
}

// NewRig creates a rig from an ordered camera list.
func NewRig(label string, cameras []*Camera) (*Rig, error) {
	if len(cameras) == 0 {
		return nil, fmt.Errorf("rig %q: no cameras", label)
	}
	for i, c := range cameras {
		if c == nil {
			return nil, fmt.Errorf("rig %q: camera %d is nil", label, i)
		}
	}

	owned := make([]*Camera, len(cameras))
	copy(owned, cameras)
	return &Rig{id: uuid.New(), label: label, cameras: owned}, nil
}

// DefaultRig builds an n-camera rig of identical distortion-free VGA
// pinhole cameras. Used by tests and the synthetic source.
func DefaultRig(label string, n int) (*Rig, error) {
	if n <= 0 {
		return nil, fmt.Errorf("rig %q: camera count %d must be positive", label, n)
	}
	cameras := make([]*Camera, n)
	for i := range cameras {
		cam, err := New(fmt.Sprintf("%s-cam%d", label, i), 640, 480, 400, 400, 320, 240, Distortion{})
		if err != nil {
			return nil, err
		}
		cameras[i] = cam
	}
	return NewRig(label, cameras)
}

// ID returns the rig's unique identity.
func (r *Rig) ID() uuid.UUID { return r.id }

// Label returns the human-readable rig name.
func (r *Rig) Label() string { return r.label }

// NumCameras returns the number of camera slots.
func (r *Rig) NumCameras() int { return len(r.cameras) }

// Camera returns the camera at the given slot. Panics if the slot is
// out of range; slot indices are fixed at construction and an invalid
// one is a programming error.
func (r *Rig) Camera(slot int) *Camera { return r.cameras[slot] }

// Cameras returns a copy of the camera list.
func (r *Rig) Cameras() []*Camera {
	out := make([]*Camera, len(r.cameras))
	copy(out, r.cameras)
	return out
}
