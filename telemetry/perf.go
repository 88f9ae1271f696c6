package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for the simulation tick.
const (
	PhaseDeposit   = "deposit"
	PhaseSpread    = "spread"
	PhaseMotion    = "motion"
	PhaseCollision = "collision"
	PhaseTelemetry = "telemetry"
)

// perfPhases is the fixed phase order for reporting.
var perfPhases = []string{PhaseDeposit, PhaseSpread, PhaseMotion, PhaseCollision, PhaseTelemetry}

// PerfRecord is one perf.csv row: average per-phase durations in
// microseconds over a reporting window.
type PerfRecord struct {
	WindowEndTick int32   `csv:"window_end"`
	TickUs        float64 `csv:"tick_us"`
	DepositUs     float64 `csv:"deposit_us"`
	SpreadUs      float64 `csv:"spread_us"`
	MotionUs      float64 `csv:"motion_us"`
	CollisionUs   float64 `csv:"collision_us"`
	TelemetryUs   float64 `csv:"telemetry_us"`
}

// PerfCollector tracks per-phase timings over a rolling window of ticks.
type PerfCollector struct {
	windowSize int
	ticks      int
	totals     map[string]time.Duration
	tickTotal  time.Duration

	tickStart  time.Time
	phaseStart time.Time
	lastPhase  string
}

// NewPerfCollector creates a perf collector averaging over windowSize ticks.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 100
	}
	return &PerfCollector{
		windowSize: windowSize,
		totals:     make(map[string]time.Duration),
	}
}

// StartTick begins timing a new simulation tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.lastPhase = ""
}

// StartPhase begins timing a phase, closing the previous one.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	if p.lastPhase != "" {
		p.totals[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndTick closes the current tick. Returns true when the window is full
// and a record should be emitted.
func (p *PerfCollector) EndTick() bool {
	now := time.Now()
	if p.lastPhase != "" {
		p.totals[p.lastPhase] += now.Sub(p.phaseStart)
		p.lastPhase = ""
	}
	p.tickTotal += now.Sub(p.tickStart)
	p.ticks++
	return p.ticks >= p.windowSize
}

// Record produces the averaged PerfRecord for the window and resets it.
func (p *PerfCollector) Record(windowEnd int32) PerfRecord {
	n := float64(p.ticks)
	if n == 0 {
		n = 1
	}
	us := func(phase string) float64 {
		return float64(p.totals[phase].Microseconds()) / n
	}
	rec := PerfRecord{
		WindowEndTick: windowEnd,
		TickUs:        float64(p.tickTotal.Microseconds()) / n,
		DepositUs:     us(PhaseDeposit),
		SpreadUs:      us(PhaseSpread),
		MotionUs:      us(PhaseMotion),
		CollisionUs:   us(PhaseCollision),
		TelemetryUs:   us(PhaseTelemetry),
	}

	p.ticks = 0
	p.tickTotal = 0
	for _, ph := range perfPhases {
		delete(p.totals, ph)
	}
	return rec
}

// Log writes the record as a structured slog record.
func (r PerfRecord) Log() {
	slog.Info("perf",
		"window_end", r.WindowEndTick,
		"tick_us", r.TickUs,
		"deposit_us", r.DepositUs,
		"spread_us", r.SpreadUs,
		"motion_us", r.MotionUs,
		"collision_us", r.CollisionUs,
		"telemetry_us", r.TelemetryUs,
	)
}
