package mrf

import "math"

// LabelVolume holds the per-pixel class labels being refined and the
// per-pixel, per-class distances the classifier produced for them.
//
// Labels are double buffered. Label reads the snapshot committed at the end
// of the previous iteration while SetLabel writes the pending buffer; Commit
// publishes the pending buffer. Distances never change once seeded.
type LabelVolume struct {
	grid
	numClasses int

	labels    []int
	pending   []int
	initial   []int
	distances []float64
}

// NewLabelVolume allocates a volume of the given size for numClasses
// classes. Every label starts at class 0 and every distance at zero.
func NewLabelVolume(size []int, numClasses int) (*LabelVolume, error) {
	if numClasses < 1 {
		return nil, configErrorf("number of classes must be at least 1, got %d", numClasses)
	}
	g, err := newGrid(size)
	if err != nil {
		return nil, err
	}
	return &LabelVolume{
		grid:       g,
		numClasses: numClasses,
		labels:     make([]int, g.total),
		pending:    make([]int, g.total),
		initial:    make([]int, g.total),
		distances:  make([]float64, g.total*numClasses),
	}, nil
}

// Size returns a copy of the volume extent.
func (v *LabelVolume) Size() []int {
	return append([]int(nil), v.size...)
}

// Len returns the number of pixels.
func (v *LabelVolume) Len() int {
	return v.total
}

// NumberOfClasses returns the class count the volume was built for.
func (v *LabelVolume) NumberOfClasses() int {
	return v.numClasses
}

// Label returns the committed label of pixel index.
func (v *LabelVolume) Label(index int) int {
	return v.labels[index]
}

// SetLabel writes the pending label of pixel index. It becomes visible to
// Label after Commit. class must lie in [0, NumberOfClasses).
func (v *LabelVolume) SetLabel(index, class int) {
	v.pending[index] = class
}

// Commit publishes the pending labels. The previous snapshot becomes the
// next pending buffer, so callers must write every pixel they expect to keep
// before the following Commit.
func (v *LabelVolume) Commit() {
	v.labels, v.pending = v.pending, v.labels
}

// Distance returns the cached classifier distance of pixel index to class.
func (v *LabelVolume) Distance(index, class int) float64 {
	return v.distances[index*v.numClasses+class]
}

// distanceRow returns the distances of one pixel without copying.
func (v *LabelVolume) distanceRow(index int) []float64 {
	base := index * v.numClasses
	return v.distances[base : base+v.numClasses]
}

// SetDistances stores the distance vector of pixel index and seeds its
// label, in both buffers, with the closest class. Ties go to the lowest
// class index.
func (v *LabelVolume) SetDistances(index int, distances []float64) error {
	if len(distances) != v.numClasses {
		return dataErrorf("pixel %d: classifier returned %d distances, want %d", index, len(distances), v.numClasses)
	}
	for c, d := range distances {
		if math.IsNaN(d) {
			return dataErrorf("pixel %d: distance to class %d is NaN", index, c)
		}
	}
	copy(v.distanceRow(index), distances)

	best := argmin(distances)
	v.labels[index] = best
	v.pending[index] = best
	v.initial[index] = best
	return nil
}

// SetInitialLabels replaces the seeded labels with a caller-supplied
// initial labelling. The slice must cover the whole volume and every value
// must be a valid class.
func (v *LabelVolume) SetInitialLabels(labels []int) error {
	if len(labels) != v.total {
		return dataErrorf("initial label image has %d pixels, volume has %d", len(labels), v.total)
	}
	for i, l := range labels {
		if l < 0 || l >= v.numClasses {
			return dataErrorf("initial label %d at pixel %d outside [0, %d)", l, i, v.numClasses)
		}
	}
	copy(v.labels, labels)
	copy(v.pending, labels)
	copy(v.initial, labels)
	return nil
}

// Labels returns a copy of the committed labels.
func (v *LabelVolume) Labels() []int {
	return append([]int(nil), v.labels...)
}

// InitialLabels returns a copy of the labels the volume was seeded with,
// before any iteration ran.
func (v *LabelVolume) InitialLabels() []int {
	return append([]int(nil), v.initial...)
}

func argmin(values []float64) int {
	best := 0
	for c := 1; c < len(values); c++ {
		if values[c] < values[best] {
			best = c
		}
	}
	return best
}
