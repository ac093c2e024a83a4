package mrf

import "sync/atomic"

// Tracker records which pixels changed label so that later iterations can
// skip regions that are already stable, and counts the changes of the
// current iteration.
//
// The flags are double buffered: ShouldExamine reads the flags written
// during the previous iteration while RecordChange writes the current one.
// Swap exchanges the two at the iteration barrier. Different pixels may be
// recorded from different goroutines; the change count is atomic.
type Tracker struct {
	nb      *neighborhood
	prev    []bool
	next    []bool
	changed atomic.Int64
}

func newTracker(nb *neighborhood) *Tracker {
	t := &Tracker{
		nb:   nb,
		prev: make([]bool, nb.total),
		next: make([]bool, nb.total),
	}
	// Nothing has been examined yet, so every pixel counts as changed.
	for i := range t.prev {
		t.prev[i] = true
	}
	return t
}

// ShouldExamine reports whether pixel index, at coord, changed in the
// previous iteration or has a neighbour that did. If neither holds its
// energy cannot have moved and the pixel can be skipped exactly.
func (t *Tracker) ShouldExamine(index int, coord []int) bool {
	if t.prev[index] {
		return true
	}
	interior := t.nb.interior(coord)
	for k := range t.nb.neighbors {
		nb := &t.nb.neighbors[k]
		if !interior && !t.nb.inBounds(coord, nb) {
			continue
		}
		if t.prev[index+nb.delta] {
			return true
		}
	}
	return false
}

// RecordChange sets the current-iteration flag of pixel index and counts
// it when changed is true. Every pixel must be recorded once per iteration.
func (t *Tracker) RecordChange(index int, changed bool) {
	t.next[index] = changed
	if changed {
		t.changed.Add(1)
	}
}

// Reset clears the change count at the start of an iteration.
func (t *Tracker) Reset() {
	t.changed.Store(0)
}

// ErrorCount returns the number of changes recorded since the last Reset.
func (t *Tracker) ErrorCount() int {
	return int(t.changed.Load())
}

// Swap makes the flags recorded this iteration the ones ShouldExamine reads
// next, and returns the iteration's change count.
func (t *Tracker) Swap() int {
	t.prev, t.next = t.next, t.prev
	return t.ErrorCount()
}
