package mrf

// grid describes the spatial layout of a volume. Index i maps to the
// coordinate whose dimension 0 varies fastest.
type grid struct {
	size    []int
	strides []int
	total   int
}

func newGrid(size []int) (grid, error) {
	if len(size) == 0 {
		return grid{}, configErrorf("volume must have at least one dimension")
	}
	g := grid{
		size:    append([]int(nil), size...),
		strides: make([]int, len(size)),
		total:   1,
	}
	for d, s := range size {
		if s <= 0 {
			return grid{}, configErrorf("volume size[%d] must be positive, got %d", d, s)
		}
		g.strides[d] = g.total
		g.total *= s
	}
	return g, nil
}

func (g grid) coord(index int, coord []int) {
	for d := len(g.size) - 1; d >= 0; d-- {
		coord[d] = index / g.strides[d]
		index %= g.strides[d]
	}
}

func (g grid) sameSize(size []int) bool {
	if len(size) != len(g.size) {
		return false
	}
	for d := range size {
		if size[d] != g.size[d] {
			return false
		}
	}
	return true
}

// neighbor is one non-centre kernel position resolved against a grid.
type neighbor struct {
	offset []int
	delta  int
	weight float64
}

// neighborhood resolves a kernel against a grid once so the sweep can walk
// neighbours by flat index. Pixels closer than the radius to an edge take
// the slow path and skip offsets that land outside the volume; nothing is
// padded or mirrored.
type neighborhood struct {
	grid
	radius    []int
	neighbors []neighbor
}

func newNeighborhood(g grid, k *Kernel) *neighborhood {
	n := &neighborhood{
		grid:   g,
		radius: k.Radius(),
	}

	offset := make([]int, k.Dims())
	for i := 0; i < k.Len(); i++ {
		k.offsetAt(i, offset)
		center := true
		delta := 0
		for d, o := range offset {
			if o != 0 {
				center = false
			}
			delta += o * g.strides[d]
		}
		if center {
			continue
		}
		n.neighbors = append(n.neighbors, neighbor{
			offset: append([]int(nil), offset...),
			delta:  delta,
			weight: k.weights[i],
		})
	}
	return n
}

// interior reports whether every neighbour of coord lies inside the grid.
func (n *neighborhood) interior(coord []int) bool {
	for d, c := range coord {
		if c-n.radius[d] < 0 || c+n.radius[d] >= n.size[d] {
			return false
		}
	}
	return true
}

func (n *neighborhood) inBounds(coord []int, nb *neighbor) bool {
	for d, c := range coord {
		p := c + nb.offset[d]
		if p < 0 || p >= n.size[d] {
			return false
		}
	}
	return true
}
