package viewer

// Viewport selects the visible window into the lattice plane. Offsets
// wrap toroidally, matching the topology, so panning never hits an edge.
type Viewport struct {
	// OffsetX, OffsetY is the world coordinate drawn at the screen origin.
	OffsetX, OffsetY int
	// SliceZ is the lattice z-plane currently shown.
	SliceZ int

	worldW, worldH, depth int
}

// NewViewport creates a viewport over a worldW x worldH plane with depth
// stacked z-slices, starting at origin and the given slice.
func NewViewport(worldW, worldH, depth, sliceZ int) *Viewport {
	v := &Viewport{worldW: worldW, worldH: worldH, depth: depth}
	v.SliceZ = wrapCoord(sliceZ, depth)
	return v
}

// Pan moves the viewport by the given cell deltas, wrapping around the
// world boundaries.
func (v *Viewport) Pan(dx, dy int) {
	v.OffsetX = wrapCoord(v.OffsetX+dx, v.worldW)
	v.OffsetY = wrapCoord(v.OffsetY+dy, v.worldH)
}

// PanSlice moves the visible z-plane, wrapping through the depth.
func (v *Viewport) PanSlice(dz int) {
	v.SliceZ = wrapCoord(v.SliceZ+dz, v.depth)
}

// Reset returns the viewport to the origin and the first slice.
func (v *Viewport) Reset() {
	v.OffsetX, v.OffsetY = 0, 0
	v.SliceZ = 0
}

// Cell maps a world coordinate on the current plane to a screen cell.
// The result always lands in [0, worldW) x [0, worldH); the caller clips
// against the actual screen size.
func (v *Viewport) Cell(x, y int) (cx, cy int) {
	return wrapCoord(x-v.OffsetX, v.worldW), wrapCoord(y-v.OffsetY, v.worldH)
}

// wrapCoord computes the positive modulo (Go's % can return negative).
func wrapCoord(x, m int) int {
	if m <= 0 {
		return 0
	}
	r := x % m
	if r < 0 {
		r += m
	}
	return r
}
