// Package substrate implements the discrete space, the gamma field and
// the collision resolver that together form the simulation substrate.
package substrate

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"
)

// TopologyKind selects the neighbor structure of the space.
type TopologyKind uint8

const (
	Lattice6 TopologyKind = iota
	Lattice18
	Lattice26
	FCC
	SmallWorld
)

// String returns the kind name used in logs.
func (k TopologyKind) String() string {
	switch k {
	case Lattice6:
		return "lattice6"
	case Lattice18:
		return "lattice18"
	case Lattice26:
		return "lattice26"
	case FCC:
		return "fcc"
	case SmallWorld:
		return "smallworld"
	}
	return "unknown"
}

// ParseTopologyKind maps a config string to a TopologyKind.
func ParseTopologyKind(s string) (TopologyKind, error) {
	switch s {
	case "lattice6":
		return Lattice6, nil
	case "lattice18":
		return Lattice18, nil
	case "lattice26":
		return Lattice26, nil
	case "fcc":
		return FCC, nil
	case "smallworld":
		return SmallWorld, nil
	}
	return 0, fmt.Errorf("topology: unknown kind %q", s)
}

// Space is the static discrete topology: per-node neighbor sets plus
// distance and dimensionality queries. It is immutable after construction;
// both field diffusion and entity movement read the same adjacency.
type Space struct {
	kind TopologyKind

	// Toroidal lattice dimensions; zero for graph topologies.
	X, Y, Z int

	nbr [][]int32
	dim []int8 // per-node local dimensionality
}

// latticeOffsets returns the neighbor offset set for a lattice kind.
func latticeOffsets(kind TopologyKind) [][3]int {
	var offs [][3]int
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nz := abs(dx) + abs(dy) + abs(dz)
				if nz == 0 {
					continue
				}
				switch kind {
				case Lattice6:
					if nz == 1 {
						offs = append(offs, [3]int{dx, dy, dz})
					}
				case Lattice18:
					if nz <= 2 {
						offs = append(offs, [3]int{dx, dy, dz})
					}
				case Lattice26:
					offs = append(offs, [3]int{dx, dy, dz})
				case FCC:
					// 12 equidistant edge-diagonal neighbors
					if nz == 2 {
						offs = append(offs, [3]int{dx, dy, dz})
					}
				}
			}
		}
	}
	return offs
}

// NewLattice builds a toroidal lattice topology of the given kind.
// FCC keeps only even-parity sites (edge-diagonal hops preserve coordinate
// parity, so the full cubic grid would split into two disconnected
// sublattices); its dimensions must be even so the wrap preserves parity.
func NewLattice(kind TopologyKind, x, y, z int) (*Space, error) {
	if kind == SmallWorld {
		return nil, fmt.Errorf("topology: NewLattice called with graph kind")
	}
	if x < 2 || y < 2 || z < 2 {
		return nil, fmt.Errorf("topology: lattice dimensions must be at least 2, got %dx%dx%d", x, y, z)
	}
	if kind == FCC && (x%2 != 0 || y%2 != 0 || z%2 != 0) {
		return nil, fmt.Errorf("topology: fcc dimensions must be even, got %dx%dx%d", x, y, z)
	}

	offs := latticeOffsets(kind)
	n := x * y * z
	if kind == FCC {
		n /= 2
	}
	s := &Space{kind: kind, X: x, Y: y, Z: z, nbr: make([][]int32, n), dim: make([]int8, n)}

	rank := int8(offsetRank(offs))
	for i := 0; i < n; i++ {
		cx, cy, cz := s.Coords(int32(i))
		nbrs := make([]int32, 0, len(offs))
		for _, o := range offs {
			nx := mod(cx+o[0], x)
			ny := mod(cy+o[1], y)
			nz := mod(cz+o[2], z)
			j := s.Index(nx, ny, nz)
			if j != int32(i) && !contains(nbrs, j) {
				nbrs = append(nbrs, j)
			}
		}
		s.nbr[i] = nbrs
		s.dim[i] = rank
	}
	return s, nil
}

// NewSmallWorld builds a Watts-Strogatz style topology: a ring where each
// node connects to k neighbors on each side, with each edge rewired to a
// random target with probability beta. The result must be connected;
// a disconnected graph is a setup error.
func NewSmallWorld(n, k int, beta float64, rng *rand.Rand) (*Space, error) {
	if n < 4 {
		return nil, fmt.Errorf("topology: ring size must be at least 4, got %d", n)
	}
	if k < 1 || 2*k >= n {
		return nil, fmt.Errorf("topology: ring degree %d invalid for ring size %d", k, n)
	}
	if beta < 0 || beta > 1 {
		return nil, fmt.Errorf("topology: rewire probability must be in [0,1], got %v", beta)
	}

	g := simple.NewUndirectedGraph()
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < n; i++ {
		for d := 1; d <= k; d++ {
			j := (i + d) % n
			if beta > 0 && rng.Float64() < beta {
				// Rewire the far endpoint; keep retrying on self-loops
				// and duplicates so the degree sum is preserved.
				for tries := 0; tries < 16; tries++ {
					cand := rng.Intn(n)
					if cand != i && !g.HasEdgeBetween(int64(i), int64(cand)) {
						j = cand
						break
					}
				}
			}
			if i != j && !g.HasEdgeBetween(int64(i), int64(j)) {
				g.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node(j)})
			}
		}
	}

	if cc := topo.ConnectedComponents(g); len(cc) != 1 {
		return nil, fmt.Errorf("topology: small-world graph is disconnected (%d components)", len(cc))
	}

	s := &Space{kind: SmallWorld, nbr: make([][]int32, n), dim: make([]int8, n)}
	for i := 0; i < n; i++ {
		it := g.From(int64(i))
		nbrs := make([]int32, 0, it.Len())
		for it.Next() {
			nbrs = append(nbrs, int32(it.Node().ID()))
		}
		s.nbr[i] = nbrs
	}
	for i := 0; i < n; i++ {
		s.dim[i] = int8(s.growthDimension(int32(i)))
	}
	return s, nil
}

// Kind returns the topology kind.
func (s *Space) Kind() TopologyKind { return s.kind }

// NodeCount returns the number of nodes.
func (s *Space) NodeCount() int { return len(s.nbr) }

// Neighbors returns the neighbor set of a node. Callers must not mutate it.
func (s *Space) Neighbors(n int32) []int32 { return s.nbr[n] }

// Degree returns the number of neighbors of a node.
func (s *Space) Degree(n int32) int { return len(s.nbr[n]) }

// Index maps lattice coordinates to a node id. For FCC only even-parity
// sites exist; passing an odd-parity coordinate is a programming error.
func (s *Space) Index(x, y, z int) int32 {
	if s.kind == FCC {
		return int32((z*s.Y+y)*(s.X/2) + x/2)
	}
	return int32((z*s.Y+y)*s.X + x)
}

// Coords maps a node id back to lattice coordinates. Only meaningful for
// lattice kinds; graph topologies report a ring layout (n, 0, 0).
func (s *Space) Coords(n int32) (x, y, z int) {
	if s.kind == SmallWorld {
		return int(n), 0, 0
	}
	i := int(n)
	if s.kind == FCC {
		half := s.X / 2
		xh := i % half
		i /= half
		y = i % s.Y
		z = i / s.Y
		x = 2*xh + (y+z)%2
		return x, y, z
	}
	x = i % s.X
	i /= s.X
	y = i % s.Y
	z = i / s.Y
	return x, y, z
}

// LocalDimensionality returns the number of independent directions
// available at a node. Lattice kinds report the exact rank of their
// neighbor offset set; graph kinds report a ball-growth estimate.
// Nodes with fewer than 3 independent directions cannot sustain
// orbit-like bound dynamics.
func (s *Space) LocalDimensionality(n int32) int { return int(s.dim[n]) }

// OrbitCapable reports whether persistent bound dynamics are possible at
// a node, i.e. at least 3 independent directions exist there.
func (s *Space) OrbitCapable(n int32) bool { return s.dim[n] >= 3 }

// HopDistance returns the minimum hop count between two nodes.
// Co-located nodes are distance 0: the collision case.
func (s *Space) HopDistance(a, b int32) int {
	if a == b {
		return 0
	}
	switch s.kind {
	case Lattice6:
		dx, dy, dz := s.torusDelta(a, b)
		return dx + dy + dz
	case Lattice26:
		dx, dy, dz := s.torusDelta(a, b)
		return max3(dx, dy, dz)
	case Lattice18:
		dx, dy, dz := s.torusDelta(a, b)
		che := max3(dx, dy, dz)
		man := dx + dy + dz
		half := (man + 1) / 2
		if half > che {
			return half
		}
		return che
	default:
		return s.bfsDistance(a, b)
	}
}

// bfsDistance walks breadth-first from a until b is found.
func (s *Space) bfsDistance(a, b int32) int {
	dist := -1
	bf := traverse.BreadthFirst{}
	bf.Walk(adjGraph{s}, simple.Node(a), func(n graph.Node, d int) bool {
		if n.ID() == int64(b) {
			dist = d
			return true
		}
		return false
	})
	return dist
}

// growthDimension estimates local dimensionality from neighborhood ball
// growth: dim ~ log2(|B4| / |B2|). Exact for large regular lattices,
// approximate elsewhere; clamped to [1, 6].
func (s *Space) growthDimension(n int32) int {
	var b2, b4 int
	bf := traverse.BreadthFirst{}
	bf.Walk(adjGraph{s}, simple.Node(n), func(_ graph.Node, d int) bool {
		if d <= 2 {
			b2++
		}
		if d <= 4 {
			b4++
		}
		// Stop once the walk reaches depth 5: breadth-first order means
		// every depth-4 node has been counted by then.
		return d > 4
	})
	if b2 == 0 {
		return 1
	}
	est := int(math.Round(math.Log2(float64(b4) / float64(b2))))
	if est < 1 {
		est = 1
	}
	if est > 6 {
		est = 6
	}
	return est
}

// torusDelta returns per-axis minimal wrapped distances between two nodes.
func (s *Space) torusDelta(a, b int32) (dx, dy, dz int) {
	ax, ay, az := s.Coords(a)
	bx, by, bz := s.Coords(b)
	dx = wrapDelta(ax, bx, s.X)
	dy = wrapDelta(ay, by, s.Y)
	dz = wrapDelta(az, bz, s.Z)
	return dx, dy, dz
}

// adjGraph adapts the neighbor lists to gonum's graph interfaces for
// BFS traversal and connectivity checks.
type adjGraph struct {
	s *Space
}

func (g adjGraph) Node(id int64) graph.Node {
	if id < 0 || id >= int64(g.s.NodeCount()) {
		return nil
	}
	return simple.Node(id)
}

func (g adjGraph) Nodes() graph.Nodes {
	return iterator.NewImplicitNodes(0, g.s.NodeCount(), func(i int) graph.Node {
		return simple.Node(i)
	})
}

func (g adjGraph) From(id int64) graph.Nodes {
	nbrs := g.s.nbr[id]
	return iterator.NewImplicitNodes(0, len(nbrs), func(i int) graph.Node {
		return simple.Node(nbrs[i])
	})
}

func (g adjGraph) HasEdgeBetween(xid, yid int64) bool {
	for _, m := range g.s.nbr[xid] {
		if int64(m) == yid {
			return true
		}
	}
	return false
}

func (g adjGraph) Edge(uid, vid int64) graph.Edge {
	if !g.HasEdgeBetween(uid, vid) {
		return nil
	}
	return simple.Edge{F: simple.Node(uid), T: simple.Node(vid)}
}

func (g adjGraph) EdgeBetween(xid, yid int64) graph.Edge { return g.Edge(xid, yid) }

// offsetRank computes the rank of a set of integer offset vectors by
// Gaussian elimination, i.e. how many perpendicular directions they span.
func offsetRank(offs [][3]int) int {
	rows := make([][3]float64, len(offs))
	for i, o := range offs {
		rows[i] = [3]float64{float64(o[0]), float64(o[1]), float64(o[2])}
	}
	rank := 0
	for col := 0; col < 3 && rank < len(rows); col++ {
		pivot := -1
		for r := rank; r < len(rows); r++ {
			if math.Abs(rows[r][col]) > 1e-9 {
				pivot = r
				break
			}
		}
		if pivot < 0 {
			continue
		}
		rows[rank], rows[pivot] = rows[pivot], rows[rank]
		for r := rank + 1; r < len(rows); r++ {
			f := rows[r][col] / rows[rank][col]
			for c := col; c < 3; c++ {
				rows[r][c] -= f * rows[rank][c]
			}
		}
		rank++
	}
	return rank
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func mod(v, m int) int {
	v %= m
	if v < 0 {
		v += m
	}
	return v
}

func wrapDelta(a, b, size int) int {
	d := abs(a - b)
	if w := size - d; w < d {
		return w
	}
	return d
}

func max3(a, b, c int) int {
	if b > a {
		a = b
	}
	if c > a {
		a = c
	}
	return a
}

func contains(s []int32, v int32) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
