package aggregator

import (
	"sort"

	"github.com/visionstack/multicam/internal/frame"
)

// tableEntry pairs a bundle with its anchor timestamp. The anchor is
// duplicated out of the bundle so search never chases a pointer.
type tableEntry struct {
	anchor int64
	bundle *frame.Bundle
}

// bundleTable is the synchronization core: two anchor-ordered
// collections, one of partially filled bundles and one of completed
// bundles awaiting retrieval. It is not goroutine-safe; the Aggregator
// serializes access under its lock, and every insert must see a
// consistent snapshot of the pending list to make a correct
// nearest-neighbor decision.
type bundleTable struct {
	numCameras  int
	toleranceNs int64

	pending   []tableEntry // ordered by anchor, ascending
	completed []tableEntry // ordered by anchor, ascending
}

func newBundleTable(numCameras int, toleranceNs int64) *bundleTable {
	return &bundleTable{numCameras: numCameras, toleranceNs: toleranceNs}
}

// insertResult reports what an insert did.
type insertResult struct {
	// bundle is the bundle the frame landed in.
	bundle *frame.Bundle
	// completed is set when this insert filled the last open slot and
	// the bundle moved to the completed table.
	completed bool
	// displaced is the frame overwritten by a same-camera duplicate,
	// nil in the normal case.
	displaced *frame.Frame
}

// insert places f into the pending bundle whose anchor is nearest its
// timestamp, or into a fresh bundle when the nearest is farther than
// the tolerance. Matching examines only the predecessor of the
// timestamp and the single entry at or after it; ties go to the
// predecessor because it is examined first and never displaced by an
// equal difference.
func (t *bundleTable) insert(slot int, f *frame.Frame) insertResult {
	target := f.Timestamp

	var idx int
	if len(t.pending) == 0 {
		idx = t.createPending(target)
	} else {
		i := sort.Search(len(t.pending), func(k int) bool {
			return t.pending[k].anchor >= target
		})
		// Step back to the predecessor when there is one.
		if i > 0 {
			i--
		}
		best := i
		minDiff := abs64(t.pending[i].anchor - target)
		if j := i + 1; j < len(t.pending) {
			if d := abs64(t.pending[j].anchor - target); d < minDiff {
				best = j
				minDiff = d
			}
		}

		if minDiff > t.toleranceNs {
			idx = t.createPending(target)
		} else {
			idx = best
		}
	}

	entry := t.pending[idx]
	displaced := entry.bundle.SetFrame(slot, f)

	if !entry.bundle.IsComplete() {
		return insertResult{bundle: entry.bundle, displaced: displaced}
	}

	t.pending = append(t.pending[:idx], t.pending[idx+1:]...)
	t.pushCompleted(entry)
	return insertResult{bundle: entry.bundle, completed: true, displaced: displaced}
}

// createPending adds a fresh bundle anchored at the given timestamp
// and returns its index in the pending list.
func (t *bundleTable) createPending(anchor int64) int {
	i := sort.Search(len(t.pending), func(k int) bool {
		return t.pending[k].anchor > anchor
	})
	entry := tableEntry{anchor: anchor, bundle: frame.NewBundle(t.numCameras, anchor)}
	t.pending = append(t.pending, tableEntry{})
	copy(t.pending[i+1:], t.pending[i:])
	t.pending[i] = entry
	return i
}

// pushCompleted inserts a completed entry keeping anchor order. Out of
// order completions happen when workers finish late-submitted older
// frames after newer ones.
func (t *bundleTable) pushCompleted(e tableEntry) {
	i := sort.Search(len(t.completed), func(k int) bool {
		return t.completed[k].anchor > e.anchor
	})
	t.completed = append(t.completed, tableEntry{})
	copy(t.completed[i+1:], t.completed[i:])
	t.completed[i] = e
}

// popOldestCompleted removes and returns the oldest completed bundle,
// or nil when none exists.
func (t *bundleTable) popOldestCompleted() *frame.Bundle {
	if len(t.completed) == 0 {
		return nil
	}
	b := t.completed[0].bundle
	t.completed = append(t.completed[:0], t.completed[1:]...)
	return b
}

// popLatestAndEvict removes and returns the newest completed bundle,
// discards all other completed bundles, and evicts every pending
// bundle anchored at or before the returned bundle: no later frame can
// plausibly still belong to those. Returns the number of pending
// bundles evicted.
func (t *bundleTable) popLatestAndEvict() (*frame.Bundle, int) {
	if len(t.completed) == 0 {
		return nil, 0
	}

	last := t.completed[len(t.completed)-1]
	t.completed = t.completed[:0]

	i := sort.Search(len(t.pending), func(k int) bool {
		return t.pending[k].anchor > last.anchor
	})
	evicted := i
	t.pending = append(t.pending[:0], t.pending[i:]...)

	return last.bundle, evicted
}

func (t *bundleTable) pendingLen() int   { return len(t.pending) }
func (t *bundleTable) completedLen() int { return len(t.completed) }

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
