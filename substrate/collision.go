package substrate

import (
	"math"

	"github.com/jerry-samek/tick-frame-space-sub003/components"
)

// Regime classifies the outcome of two patterns occupying the same node.
type Regime uint8

const (
	RegimeMerge Regime = iota
	RegimeExplosion
	RegimeExcitation
)

// String returns the regime name used in logs and telemetry.
func (r Regime) String() string {
	switch r {
	case RegimeMerge:
		return "merge"
	case RegimeExplosion:
		return "explosion"
	case RegimeExcitation:
		return "excitation"
	}
	return "unknown"
}

// Body is the collision-time view of a pattern entity.
type Body struct {
	Energy  float64
	Kind    components.Kind
	Species uint8
	Mode    int32
	Phase   float64
}

// Outcome describes a resolved collision. Exactly one of the regime
// sections is populated.
type Outcome struct {
	Regime  Regime
	KTotal  float64
	Overlap float64

	// Merge: the surviving composite. Energy is exactly E_A + E_B.
	Merged *Body

	// Excitation: both bodies persist, updated in place; Absorbed is the
	// overlap energy actually drawn from the local gamma value.
	Absorbed float64

	// Explosion: both bodies destroyed. NodeDeposit went into the node's
	// gamma; OverflowVented is the remainder, either already distributed
	// over the neighbor ring or left for the caller to carry away as
	// photon-like patterns (see ResolveParams.KeepOverflow).
	NodeDeposit    float64
	OverflowVented float64
}

// ResolveParams tunes the resolver.
type ResolveParams struct {
	// MergeEpsilon is the overlap factor below which two patterns count
	// as non-overlapping.
	MergeEpsilon float64
	// KeepOverflow leaves explosion overflow in the outcome instead of
	// distributing it over the neighbor ring, so the caller can spawn
	// photon-like carriers.
	KeepOverflow bool
}

// TypeCompatibility returns the k_type factor for a pair of patterns:
// matter-antimatter 1.0, same kind and species 0.5, anything else 0.0.
func TypeCompatibility(a, b *Body) float64 {
	if (a.Kind == components.KindMatter && b.Kind == components.KindAntimatter) ||
		(a.Kind == components.KindAntimatter && b.Kind == components.KindMatter) {
		return 1.0
	}
	if a.Kind == b.Kind && a.Species == b.Species {
		return 0.5
	}
	return 0.0
}

// OverlapFactor computes the combined overlap factor k_total from type
// compatibility, energy resonance, mode interference and phase alignment.
func OverlapFactor(a, b *Body) float64 {
	kType := TypeCompatibility(a, b)
	if kType == 0 {
		return 0
	}

	avg := (a.Energy + b.Energy) / 2
	rel := (a.Energy - b.Energy) / avg
	kRes := math.Exp(-rel * rel)

	dm := a.Mode - b.Mode
	if dm < 0 {
		dm = -dm
	}
	kMode := 1 / (1 + float64(dm))

	kPhase := math.Cos(a.Phase - b.Phase)
	if kPhase < 0 {
		kPhase = 0
	}

	return math.Sqrt(kType*kRes) * kMode * kPhase
}

// OverlapEnergy returns k_total and E_overlap = k_total * sqrt(E_A * E_B).
func OverlapEnergy(a, b *Body) (kTotal, eOverlap float64) {
	kTotal = OverlapFactor(a, b)
	return kTotal, kTotal * math.Sqrt(a.Energy*b.Energy)
}

// Classify determines the collision regime without side effects.
// The regime boundary is deterministic: at exactly the cell capacity the
// explosion regime wins.
func Classify(a, b *Body, capacity, mergeEpsilon float64) (Regime, float64, float64) {
	kTotal, eOverlap := OverlapEnergy(a, b)
	total := a.Energy + b.Energy + eOverlap
	switch {
	case total >= capacity:
		return RegimeExplosion, kTotal, eOverlap
	case kTotal <= mergeEpsilon:
		return RegimeMerge, kTotal, eOverlap
	default:
		return RegimeExcitation, kTotal, eOverlap
	}
}

// Resolve classifies and applies a two-body collision at the given node.
//
// Merge creates one composite carrying E_A + E_B exactly. Excitation draws
// the overlap energy from the node's gamma (clamped to what is there) and
// splits the pooled energy evenly, incrementing both modes. Explosion
// destroys both bodies, fills the node's remaining headroom up to the cell
// capacity and vents the rest across the neighbor ring, never into a
// single node.
// In every regime the combined entity+field total is unchanged.
func Resolve(f *Field, node int32, a, b *Body, p ResolveParams) Outcome {
	regime, kTotal, eOverlap := Classify(a, b, f.Capacity(), p.MergeEpsilon)
	out := Outcome{Regime: regime, KTotal: kTotal, Overlap: eOverlap}

	switch regime {
	case RegimeMerge:
		hi, lo := a, b
		if b.Energy > a.Energy {
			hi, lo = b, a
		}
		mode := hi.Mode
		if lo.Mode > mode {
			mode = lo.Mode
		}
		out.Merged = &Body{
			Energy:  a.Energy + b.Energy,
			Kind:    components.KindComposite,
			Species: hi.Species,
			Mode:    mode,
			Phase:   circularMean(a.Phase, a.Energy, b.Phase, b.Energy),
		}

	case RegimeExcitation:
		absorbed := f.Drain(node, eOverlap)
		pooled := a.Energy + b.Energy + absorbed
		a.Energy = pooled / 2
		b.Energy = pooled / 2
		a.Mode++
		b.Mode++
		out.Absorbed = absorbed

	case RegimeExplosion:
		total := a.Energy + b.Energy
		headroom := f.Capacity() - f.Gamma(node)
		if headroom < 0 {
			headroom = 0
		}
		keep := total
		if keep > headroom {
			keep = headroom
		}
		f.Deposit(node, keep)
		overflow := total - keep
		out.NodeDeposit = keep
		out.OverflowVented = overflow
		if overflow > 0 && !p.KeepOverflow {
			f.DistributeOverflow(node, overflow)
		}
		a.Energy = 0
		b.Energy = 0
	}
	return out
}

// circularMean returns the energy-weighted mean of two phases in [0, 2pi).
func circularMean(p1, w1, p2, w2 float64) float64 {
	s := w1*math.Sin(p1) + w2*math.Sin(p2)
	c := w1*math.Cos(p1) + w2*math.Cos(p2)
	m := math.Atan2(s, c)
	if m < 0 {
		m += 2 * math.Pi
	}
	return m
}
