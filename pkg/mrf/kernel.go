package mrf

import "math"

// Default weights used by DefaultKernel. They follow the classic 3x3x3 MRF
// table: neighbours in the same slice pull hardest, the voxel directly
// above or below pulls a little less, and the remaining through-plane
// neighbours pull least.
const (
	InPlaneWeight             = 1.7
	ThroughPlaneWeight        = 1.5
	ThroughPlaneOffAxisWeight = 1.3
)

// Kernel is a fixed-radius neighbourhood weight table. Weights are stored
// flat with dimension 0 varying fastest, the same ordering used for voxel
// indices. The centre weight is kept but never used: a pixel does not vote
// on itself.
type Kernel struct {
	radius  []int
	extent  []int
	strides []int
	weights []float64
}

// NewKernel builds a kernel for the given per-dimension radius. The number
// of weights must equal the product of (2r+1) over all dimensions and every
// weight must be finite and non-negative.
func NewKernel(radius []int, weights []float64) (*Kernel, error) {
	if len(radius) == 0 {
		return nil, configErrorf("neighborhood radius must have at least one dimension")
	}

	extent := make([]int, len(radius))
	strides := make([]int, len(radius))
	size := 1
	for d, r := range radius {
		if r < 0 {
			return nil, configErrorf("neighborhood radius[%d] is negative (%d)", d, r)
		}
		extent[d] = 2*r + 1
		strides[d] = size
		size *= extent[d]
	}

	if len(weights) != size {
		return nil, configErrorf("kernel for radius %v needs %d weights, got %d", radius, size, len(weights))
	}

	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, configErrorf("weight %d is %v, weights must be finite and non-negative", i, w)
		}
	}

	k := &Kernel{
		radius:  append([]int(nil), radius...),
		extent:  extent,
		strides: strides,
		weights: append([]float64(nil), weights...),
	}
	return k, nil
}

// DefaultKernel returns the radius-1 kernel used when no weights are
// configured. Offsets that move only within dimensions 0 and 1 get
// InPlaneWeight; offsets that keep the in-plane position but change slice
// get ThroughPlaneWeight; every other offset gets ThroughPlaneOffAxisWeight.
// For three dimensions this is the familiar table
//
//	1.3 1.3 1.3   1.7 1.7 1.7   1.3 1.3 1.3
//	1.3 1.5 1.3   1.7 0.0 1.7   1.3 1.5 1.3
//	1.3 1.3 1.3   1.7 1.7 1.7   1.3 1.3 1.3
func DefaultKernel(dims int) *Kernel {
	if dims < 1 {
		dims = 1
	}

	radius := make([]int, dims)
	size := 1
	for d := range radius {
		radius[d] = 1
		size *= 3
	}

	weights := make([]float64, size)
	offset := make([]int, dims)
	for i := range weights {
		rem := i
		for d := 0; d < dims; d++ {
			offset[d] = rem%3 - 1
			rem /= 3
		}
		weights[i] = defaultWeight(offset)
	}

	// Cannot fail: the table is built to the radius.
	k, _ := NewKernel(radius, weights)
	return k
}

func defaultWeight(offset []int) float64 {
	inPlane := false
	throughPlane := false
	for d, o := range offset {
		if o == 0 {
			continue
		}
		if d < 2 {
			inPlane = true
		} else {
			throughPlane = true
		}
	}

	switch {
	case !inPlane && !throughPlane:
		return 0
	case !throughPlane:
		return InPlaneWeight
	case !inPlane:
		return ThroughPlaneWeight
	default:
		return ThroughPlaneOffAxisWeight
	}
}

// Radius returns a copy of the per-dimension radius.
func (k *Kernel) Radius() []int {
	return append([]int(nil), k.radius...)
}

// Dims returns the number of dimensions the kernel spans.
func (k *Kernel) Dims() int {
	return len(k.radius)
}

// Len returns the number of entries in the table, centre included.
func (k *Kernel) Len() int {
	return len(k.weights)
}

// Weights returns a copy of the flat weight table.
func (k *Kernel) Weights() []float64 {
	return append([]float64(nil), k.weights...)
}

// Weight returns the weight for a relative offset. Offsets outside the
// radius, or with the wrong number of dimensions, weigh zero.
func (k *Kernel) Weight(offset []int) float64 {
	if len(offset) != len(k.radius) {
		return 0
	}
	idx := 0
	for d, o := range offset {
		if o < -k.radius[d] || o > k.radius[d] {
			return 0
		}
		idx += (o + k.radius[d]) * k.strides[d]
	}
	return k.weights[idx]
}

// MatchesRadius reports whether the kernel was built for exactly this radius.
func (k *Kernel) MatchesRadius(radius []int) bool {
	if len(radius) != len(k.radius) {
		return false
	}
	for d := range radius {
		if radius[d] != k.radius[d] {
			return false
		}
	}
	return true
}

// offsetAt decodes flat table position i into a relative offset.
func (k *Kernel) offsetAt(i int, offset []int) {
	for d := len(k.radius) - 1; d >= 0; d-- {
		offset[d] = i/k.strides[d] - k.radius[d]
		i %= k.strides[d]
	}
}
