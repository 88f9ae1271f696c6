package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a tick window, one row of
// telemetry.csv.
type WindowStats struct {
	WindowStartTick int32 `csv:"-"`
	WindowEndTick   int32 `csv:"window_end"`

	// Population at window end
	EntityCount     int `csv:"entities"`
	MatterCount     int `csv:"matter"`
	AntimatterCount int `csv:"antimatter"`
	PhotonCount     int `csv:"photons"`
	CompositeCount  int `csv:"composites"`

	// Events during window
	Merges      int `csv:"merges"`
	Explosions  int `csv:"explosions"`
	Excitations int `csv:"excitations"`
	Annihilated int `csv:"annihilated"`
	Spawned     int `csv:"spawned"`
	Hops        int `csv:"hops"`

	// Entity energy distribution at window end
	EnergyMean float64 `csv:"energy_mean"`
	EnergyStd  float64 `csv:"energy_std"`
	EnergyP10  float64 `csv:"energy_p10"`
	EnergyP50  float64 `csv:"energy_p50"`
	EnergyP90  float64 `csv:"energy_p90"`

	// Conservation ledger: entity + field + vented must stay constant
	EntityTotal float64 `csv:"entity_total"`
	FieldTotal  float64 `csv:"field_total"`
	Vented      float64 `csv:"vented"`
	DrainTotal  float64 `csv:"drain_total"`
	LedgerTotal float64 `csv:"ledger_total"`
}

// ComputeEnergyStats fills the energy distribution fields from a sample
// of entity energies.
func (w *WindowStats) ComputeEnergyStats(energies []float64) {
	if len(energies) == 0 {
		return
	}
	sorted := append([]float64(nil), energies...)
	sort.Float64s(sorted)

	w.EnergyMean = stat.Mean(sorted, nil)
	if len(sorted) > 1 {
		w.EnergyStd = stat.StdDev(sorted, nil)
	}
	w.EnergyP10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	w.EnergyP50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	w.EnergyP90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
}

// Log writes the window stats as a structured slog record.
func (w *WindowStats) Log() {
	slog.Info("window stats",
		"window_end", w.WindowEndTick,
		"entities", w.EntityCount,
		"merges", w.Merges,
		"explosions", w.Explosions,
		"excitations", w.Excitations,
		"hops", w.Hops,
		"energy_mean", w.EnergyMean,
		"entity_total", w.EntityTotal,
		"field_total", w.FieldTotal,
		"vented", w.Vented,
		"ledger_total", w.LedgerTotal,
	)
}
