// Package components defines ECS components for pattern entities.
package components

// Kind tags a pattern for overlap-compatibility rules.
type Kind uint8

const (
	KindMatter Kind = iota
	KindAntimatter
	KindPhoton
	KindComposite
)

// String returns the kind name used in logs and telemetry.
func (k Kind) String() string {
	switch k {
	case KindMatter:
		return "matter"
	case KindAntimatter:
		return "antimatter"
	case KindPhoton:
		return "photon"
	case KindComposite:
		return "composite"
	}
	return "unknown"
}

// Locus is an entity's position: exactly one node at a time.
type Locus struct {
	Node int32
}

// Kinetic holds motion state. Speed is in hops per tick; Progress
// accumulates sub-hop motion so slow entities still advance. LastHop
// is the node the entity moved from on its most recent hop (-1 before
// the first hop), used to spread drain deposits along the path.
type Kinetic struct {
	Speed    float64
	Progress float64
	LastHop  int32
}

// Energy holds an entity's scalar energy and liveness.
type Energy struct {
	Value float64
	Alive bool
}

// Wave holds the internal discrete mode and continuous phase in [0, 2pi).
type Wave struct {
	Mode  int32
	Phase float64
}

// Pattern identifies an entity and its collision-compatibility tags.
type Pattern struct {
	ID      uint32
	Kind    Kind
	Species uint8
}
