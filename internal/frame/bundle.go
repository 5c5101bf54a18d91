package frame

import (
	"fmt"
	"time"

	"github.com/visionstack/multicam/internal/shared/id"
)

// Bundle collects the per-camera frames that share one synchronized
// capture instant. It is created when the first of its frames arrives;
// the anchor timestamp is that frame's timestamp and never changes.
//
// A bundle is not safe for concurrent mutation; the aggregation engine
// only touches it under the table lock, and ownership transfers to the
// consumer on retrieval.
type Bundle struct {
	id        id.BundleID
	anchor    int64
	createdAt time.Time
	frames    []*Frame
	numSet    int
}

// NewBundle creates an empty bundle with n camera slots anchored at the
// given timestamp.
func NewBundle(n int, anchor int64) *Bundle {
	if n <= 0 {
		panic(fmt.Sprintf("frame: bundle slot count %d must be positive", n))
	}
	return &Bundle{
		id:        id.NewBundleID(),
		anchor:    anchor,
		createdAt: time.Now(),
		frames:    make([]*Frame, n),
	}
}

// ID returns the bundle identity.
func (b *Bundle) ID() id.BundleID { return b.id }

// AnchorTimestamp returns the timestamp that keys and orders this
// bundle. Fixed at creation.
func (b *Bundle) AnchorTimestamp() int64 { return b.anchor }

// CreatedAt returns the wall-clock instant the bundle was created.
func (b *Bundle) CreatedAt() time.Time { return b.createdAt }

// Len returns the number of camera slots.
func (b *Bundle) Len() int { return len(b.frames) }

// NumSet returns the number of filled slots.
func (b *Bundle) NumSet() int { return b.numSet }

// IsComplete reports whether every slot is filled.
func (b *Bundle) IsComplete() bool { return b.numSet == len(b.frames) }

// Frame returns the frame in the given slot, or nil when unset. Panics
// on an out-of-range slot.
func (b *Bundle) Frame(slot int) *Frame { return b.frames[slot] }

// SetFrame stores f in its slot and returns the frame it displaced, or
// nil for a first fill. Slots are only ever overwritten, never
// cleared; displacement is the duplicate-arrival anomaly the caller is
// expected to log.
func (b *Bundle) SetFrame(slot int, f *Frame) (displaced *Frame) {
	if f == nil {
		panic("frame: SetFrame called with nil frame")
	}
	displaced = b.frames[slot]
	b.frames[slot] = f
	if displaced == nil {
		b.numSet++
	}
	return displaced
}

// Frames returns the slot array. The returned slice is the bundle's
// own storage; consumers receive it only after ownership transfer.
func (b *Bundle) Frames() []*Frame { return b.frames }
