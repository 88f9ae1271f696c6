package substrate

import (
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/floats"
)

// NormalizationLaw selects how the field is kept bounded after spreading.
// The source material describes all three as if interchangeable; they are
// not, so the law is explicit configuration and every removal is ledgered.
type NormalizationLaw uint8

const (
	// LawCap clamps each node to the cell capacity ("ledger" law, default).
	LawCap NormalizationLaw = iota
	// LawDecay applies a per-tick exponential decay to every node.
	LawDecay
	// LawRenorm rescales the whole field whenever its total exceeds a
	// global ceiling.
	LawRenorm
)

// ParseNormalizationLaw maps a config string to a law.
func ParseNormalizationLaw(s string) (NormalizationLaw, error) {
	switch s {
	case "cap":
		return LawCap, nil
	case "decay":
		return LawDecay, nil
	case "renorm":
		return LawRenorm, nil
	}
	return 0, fmt.Errorf("field: unknown normalization law %q", s)
}

// Field is the per-node scalar gamma value, double buffered: reads during
// a tick see the previous phase's values, writes land in the back buffer,
// and Spread swaps. No history beyond the current buffer is kept.
type Field struct {
	space *Space

	cur  []float64
	next []float64

	diffusion float64
	capacity  float64
	law       NormalizationLaw
	decayRate float64
	ceiling   float64

	// Vented accumulates all energy removed by the normalization law.
	// The conservation check is entities + field + Vented == initial total.
	Vented float64
}

// FieldParams configures a Field.
type FieldParams struct {
	Diffusion     float64
	CellCapacity  float64
	Law           NormalizationLaw
	DecayRate     float64
	RenormCeiling float64 // 0 = NodeCount * CellCapacity / 2
}

// NewField creates a zeroed gamma field over the given space.
func NewField(space *Space, p FieldParams) *Field {
	n := space.NodeCount()
	ceiling := p.RenormCeiling
	if ceiling <= 0 {
		ceiling = float64(n) * p.CellCapacity / 2
	}
	return &Field{
		space:     space,
		cur:       make([]float64, n),
		next:      make([]float64, n),
		diffusion: p.Diffusion,
		capacity:  p.CellCapacity,
		law:       p.Law,
		decayRate: p.DecayRate,
		ceiling:   ceiling,
	}
}

// Gamma returns the current gamma value at a node.
func (f *Field) Gamma(n int32) float64 { return f.cur[n] }

// SetGamma overwrites the gamma value at a node. Setup and tests only.
func (f *Field) SetGamma(n int32, v float64) { f.cur[n] = v }

// Capacity returns the per-node energy capacity.
func (f *Field) Capacity() float64 { return f.capacity }

// Total returns the summed gamma over all nodes.
func (f *Field) Total() float64 { return floats.Sum(f.cur) }

// Deposit adds energy to a single node's gamma. Used by the scheduler's
// deposit phase; overflow and drain energy must go through
// DistributeOverflow or DepositAlongPath instead, never here.
func (f *Field) Deposit(n int32, amount float64) {
	f.cur[n] += amount
}

// Drain removes up to amount from a node's gamma and returns what was
// actually available. Excitation draws its overlap energy through this.
func (f *Field) Drain(n int32, amount float64) float64 {
	take := amount
	if take > f.cur[n] {
		take = f.cur[n]
	}
	f.cur[n] -= take
	return take
}

// DistributeOverflow spreads energy evenly over the neighbors of a node.
// A single-point deposit next to an entity produces a gradient singularity
// and runaway velocities, so vented energy always lands on a full ring.
func (f *Field) DistributeOverflow(n int32, amount float64) {
	nbrs := f.space.Neighbors(n)
	share := amount / float64(len(nbrs))
	for _, m := range nbrs {
		f.cur[m] += share
	}
}

// DepositAlongPath spreads drained kinetic energy across the two endpoints
// of a hop. When the entity did not move (from < 0), the energy goes onto
// the node's neighbor ring instead of the occupied node itself.
func (f *Field) DepositAlongPath(from, to int32, amount float64) {
	if from < 0 || from == to {
		f.DistributeOverflow(to, amount)
		return
	}
	f.cur[from] += amount / 2
	f.cur[to] += amount / 2
}

// Spread performs one self-subtracting transport step: every node sends
// diffusion * gamma split evenly to its neighbors and keeps the rest.
// Each transported quantum leaves the source, so the step conserves the
// field total exactly; only the normalization law removes energy.
func (f *Field) Spread() {
	for i := range f.next {
		f.next[i] = 0
	}
	for i, g := range f.cur {
		if g == 0 {
			continue
		}
		nbrs := f.space.nbr[i]
		out := f.diffusion * g
		f.next[i] += g - out
		share := out / float64(len(nbrs))
		for _, m := range nbrs {
			f.next[m] += share
		}
	}
	f.normalize(f.next)
	f.cur, f.next = f.next, f.cur
}

// normalize applies the configured law to a buffer, ledgering removals.
func (f *Field) normalize(buf []float64) {
	switch f.law {
	case LawCap:
		for i, g := range buf {
			if g > f.capacity {
				f.Vented += g - f.capacity
				buf[i] = f.capacity
			}
		}
	case LawDecay:
		if f.decayRate <= 0 {
			return
		}
		keep := 1 - f.decayRate
		for i, g := range buf {
			buf[i] = g * keep
			f.Vented += g * f.decayRate
		}
	case LawRenorm:
		total := floats.Sum(buf)
		if total <= f.ceiling || total == 0 {
			return
		}
		scale := f.ceiling / total
		floats.Scale(scale, buf)
		f.Vented += total - f.ceiling
	}
}

// SteepestNeighbor returns the neighbor with the lowest gamma and the
// gradient magnitude toward it. Returns (-1, 0) when no neighbor lies
// below the current node, i.e. the entity sits in a local minimum.
func (f *Field) SteepestNeighbor(n int32) (int32, float64) {
	best := int32(-1)
	low := f.cur[n]
	for _, m := range f.space.nbr[n] {
		if g := f.cur[m]; g < low {
			low = g
			best = m
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, f.cur[n] - low
}

// SeedNoise initializes the field from normalized simplex noise over the
// lattice coordinates, scaled to [0, amplitude].
func (f *Field) SeedNoise(seed int64, scale, amplitude float64) {
	noise := opensimplex.NewNormalized(seed)
	for i := range f.cur {
		x, y, z := f.space.Coords(int32(i))
		v := noise.Eval3(float64(x)/scale, float64(y)/scale, float64(z)/scale)
		f.cur[i] = v * amplitude
	}
}

// CheckFinite reports the first non-finite gamma value found. A non-finite
// field is unrecoverable: the caller must halt the run.
func (f *Field) CheckFinite() error {
	if !floats.HasNaN(f.cur) {
		finite := true
		for _, g := range f.cur {
			if math.IsInf(g, 0) {
				finite = false
				break
			}
		}
		if finite {
			return nil
		}
	}
	for i, g := range f.cur {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return fmt.Errorf("field: non-finite gamma %v at node %d", g, i)
		}
	}
	return fmt.Errorf("field: non-finite gamma detected")
}
