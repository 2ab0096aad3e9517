package timeline

import "sort"

// backwardScanLimit bounds the linear backward scan after a clock jump
// before falling back to a full binary re-search.
const backwardScanLimit = 8

// Cursor answers time queries against a timeline. The common case is a
// strictly increasing query sequence, which it serves in O(1) amortized
// by remembering the last position; a clock that jumps backward
// (seek, restart) is tolerated via a bounded backward scan and then a
// full re-search.
//
// A Cursor is owned by a single ticking goroutine and is not safe for
// concurrent use.
type Cursor struct {
	tl  *Timeline
	idx int
}

// NewCursor creates a cursor positioned at the start of the timeline.
func NewCursor(tl *Timeline) *Cursor {
	return &Cursor{tl: tl}
}

// Reset rewinds the cursor to the start.
func (c *Cursor) Reset() {
	c.idx = 0
}

// EventAt returns the event whose [StartMs, EndMs) window contains t, or
// nil when t falls in a gap between events, before the first event, or
// after the last.
func (c *Cursor) EventAt(t float64) *TimedEvent {
	if c.tl == nil || len(c.tl.Events) == 0 {
		return nil
	}
	evs := c.tl.Events
	n := len(evs)
	if c.idx > n-1 {
		c.idx = n - 1
	}

	// Clock jumped backward: scan back a bounded number of events, then
	// give up and re-search.
	if t < evs[c.idx].StartMs {
		steps := 0
		for c.idx > 0 && t < evs[c.idx].StartMs && steps < backwardScanLimit {
			c.idx--
			steps++
		}
		if c.idx > 0 && t < evs[c.idx].StartMs {
			c.idx = sort.Search(n, func(i int) bool { return evs[i].EndMs > t })
			if c.idx > n-1 {
				c.idx = n - 1
			}
		}
	}

	// Forward advance, the steady-state path.
	for c.idx < n-1 && evs[c.idx].EndMs <= t {
		c.idx++
	}

	if evs[c.idx].contains(t) {
		return &evs[c.idx]
	}
	return nil
}

// EventAfter returns the next event starting strictly after t and within
// lookaheadMs of it, used to pre-shape the mouth before a sound begins.
// It does not move the cursor.
func (c *Cursor) EventAfter(t, lookaheadMs float64) *TimedEvent {
	if c.tl == nil || len(c.tl.Events) == 0 || lookaheadMs <= 0 {
		return nil
	}
	evs := c.tl.Events
	n := len(evs)

	j := sort.Search(n, func(i int) bool { return evs[i].StartMs > t })
	if j >= n {
		return nil
	}
	if evs[j].StartMs-t > lookaheadMs {
		return nil
	}
	return &evs[j]
}
