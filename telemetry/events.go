// Package telemetry provides run statistics, collision logging, CSV
// output and per-phase performance tracking.
package telemetry

// CollisionEvent is one resolved collision, written to collisions.csv.
type CollisionEvent struct {
	Tick    int32   `csv:"tick"`
	Node    int32   `csv:"node"`
	Regime  string  `csv:"regime"`
	AID     uint32  `csv:"a_id"`
	BID     uint32  `csv:"b_id"`
	AKind   string  `csv:"a_kind"`
	BKind   string  `csv:"b_kind"`
	KTotal  float64 `csv:"k_total"`
	Overlap float64 `csv:"overlap"`

	// Energy accounting for the conservation check
	EnergyBefore   float64 `csv:"energy_before"`
	EnergyAfter    float64 `csv:"energy_after"`
	FieldAbsorbed  float64 `csv:"field_absorbed"`
	NodeDeposit    float64 `csv:"node_deposit"`
	OverflowVented float64 `csv:"overflow_vented"`
}
