package sim

import (
	"math"
	"reflect"
	"testing"

	"github.com/jerry-samek/tick-frame-space-sub003/config"
)

// testConfig returns a small, quiet configuration that individual tests
// adjust before building a Sim.
func testConfig() *config.Config {
	return &config.Config{
		Run: config.RunConfig{TickLimit: 100, LogInterval: 1000},
		Topology: config.TopologyConfig{
			Kind: "lattice6", X: 8, Y: 8, Z: 8,
		},
		Field: config.FieldConfig{
			DepositRate:  0.02,
			Diffusion:    0.15,
			CellCapacity: 30,
			Law:          "cap",
		},
		Motion: config.MotionConfig{
			StepGain:   0.5,
			DrainCoeff: 0.01,
			MaxSpeed:   1,
		},
		Collision: config.CollisionConfig{
			MergeEpsilon: 0.05,
		},
		Telemetry: config.TelemetryConfig{WindowTicks: 50},
	}
}

func newTestSim(t *testing.T, cfg *config.Config, seed int64) *Sim {
	t.Helper()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	s, err := NewSim(cfg, Options{Seed: seed, OutputDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewSim: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDeterminism(t *testing.T) {
	cfg := testConfig()
	cfg.Field.SeedNoise = true
	cfg.Field.NoiseScale = 4
	cfg.Field.NoiseAmplitude = 2
	cfg.Patterns = []config.PatternConfig{
		{X: 2, Y: 2, Z: 2, Energy: 12, Kind: "matter", Species: 1},
		{X: 3, Y: 2, Z: 2, Energy: 12, Kind: "matter", Species: 1},
		{X: 6, Y: 6, Z: 6, Energy: 8, Kind: "antimatter", Species: 1},
	}

	run := func() *Sim {
		s := newTestSim(t, cfg, 99)
		for i := 0; i < 60; i++ {
			if err := s.Step(); err != nil {
				t.Fatalf("tick %d: %v", i, err)
			}
		}
		return s
	}

	a := run()
	b := run()

	if a.Field().Total() != b.Field().Total() {
		t.Errorf("field totals diverged: %v vs %v", a.Field().Total(), b.Field().Total())
	}
	if a.Field().Vented != b.Field().Vented {
		t.Errorf("vented totals diverged: %v vs %v", a.Field().Vented, b.Field().Vented)
	}
	ea, eb := a.Entities(), b.Entities()
	if !reflect.DeepEqual(ea, eb) {
		t.Errorf("entity states diverged after 60 ticks:\n%+v\nvs\n%+v", ea, eb)
	}
}

func TestOneHopPerTick(t *testing.T) {
	cfg := testConfig()
	cfg.Field.SeedNoise = true
	cfg.Field.NoiseScale = 3
	cfg.Field.NoiseAmplitude = 5
	cfg.Motion.StepGain = 2 // well past any gradient, pinned by max_speed
	cfg.Patterns = []config.PatternConfig{
		{X: 1, Y: 1, Z: 1, Energy: 10, Kind: "matter", Species: 1},
		{X: 5, Y: 3, Z: 7, Energy: 10, Kind: "matter", Species: 2},
	}
	s := newTestSim(t, cfg, 7)

	prev := map[uint32]int32{}
	for _, e := range s.Entities() {
		prev[e.ID] = e.Node
	}
	for i := 0; i < 40; i++ {
		if err := s.Step(); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		cur := map[uint32]int32{}
		for _, e := range s.Entities() {
			cur[e.ID] = e.Node
			if from, ok := prev[e.ID]; ok {
				if d := s.Space().HopDistance(from, e.Node); d > 1 {
					t.Fatalf("tick %d: entity %d jumped %d hops", i, e.ID, d)
				}
			}
		}
		prev = cur
	}
}

func TestColocatedPairExcitesFirstTick(t *testing.T) {
	cfg := testConfig()
	cfg.Field.DepositRate = 0
	cfg.Field.Diffusion = 0
	cfg.Field.CellCapacity = 50
	cfg.Motion.StepGain = 0
	cfg.Motion.DrainCoeff = 0
	cfg.Patterns = []config.PatternConfig{
		{X: 4, Y: 4, Z: 4, Energy: 12, Kind: "matter", Species: 1},
		{X: 4, Y: 4, Z: 4, Energy: 12, Kind: "matter", Species: 1},
	}
	s := newTestSim(t, cfg, 1)

	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	// Distance zero resolves in the tick it occurs. On a flat field there
	// is nothing to absorb, so both survive with the same energy and an
	// incremented mode.
	es := s.Entities()
	if len(es) != 2 {
		t.Fatalf("alive = %d, want 2 after excitation", len(es))
	}
	for _, e := range es {
		if e.Mode != 1 {
			t.Errorf("entity %d mode = %d, want 1", e.ID, e.Mode)
		}
		if math.Abs(e.Energy-12) > 1e-12 {
			t.Errorf("entity %d energy = %v, want 12", e.ID, e.Energy)
		}
	}
	if s.State() != StateRunning {
		t.Errorf("state = %v, want still running", s.State())
	}
}

func TestMergeCollapsesPair(t *testing.T) {
	cfg := testConfig()
	cfg.Field.DepositRate = 0
	cfg.Field.CellCapacity = 50
	cfg.Motion.StepGain = 0
	// Cross-species matter pair: zero overlap, below capacity, merges.
	cfg.Patterns = []config.PatternConfig{
		{X: 4, Y: 4, Z: 4, Energy: 8, Kind: "matter", Species: 1},
		{X: 4, Y: 4, Z: 4, Energy: 8, Kind: "matter", Species: 2},
	}
	s := newTestSim(t, cfg, 1)

	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	es := s.Entities()
	if len(es) != 1 {
		t.Fatalf("alive = %d, want 1 composite", len(es))
	}
	if es[0].Kind != "composite" {
		t.Errorf("kind = %q, want composite", es[0].Kind)
	}
	if es[0].Energy != 16 {
		t.Errorf("composite energy = %v, want exactly 16", es[0].Energy)
	}
}

func TestExplosionSpawnsPhotons(t *testing.T) {
	cfg := testConfig()
	cfg.Field.DepositRate = 0
	cfg.Field.Diffusion = 0
	cfg.Field.CellCapacity = 15
	cfg.Motion.StepGain = 0
	cfg.Collision.PhotonSpawn = true
	cfg.Collision.PhotonCount = 6
	cfg.Patterns = []config.PatternConfig{
		{X: 4, Y: 4, Z: 4, Energy: 15, Kind: "matter", Species: 1},
		{X: 4, Y: 4, Z: 4, Energy: 15, Kind: "antimatter", Species: 1},
	}
	s := newTestSim(t, cfg, 1)

	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	node := s.Space().Index(4, 4, 4)
	if got := s.Field().Gamma(node); got != 15 {
		t.Errorf("blast node gamma = %v, want capacity 15", got)
	}

	es := s.Entities()
	if len(es) != 6 {
		t.Fatalf("alive = %d, want 6 photons", len(es))
	}
	ring := s.Space().Neighbors(node)
	for _, e := range es {
		if e.Kind != "photon" {
			t.Errorf("entity %d kind = %q, want photon", e.ID, e.Kind)
		}
		if math.Abs(e.Energy-2.5) > 1e-12 {
			t.Errorf("photon %d energy = %v, want 15/6", e.ID, e.Energy)
		}
		found := false
		for _, m := range ring {
			if e.Node == m {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("photon %d spawned at %d, outside the blast ring", e.ID, e.Node)
		}
	}
}

func TestConservationLedger(t *testing.T) {
	cfg := testConfig()
	cfg.Field.SeedNoise = true
	cfg.Field.NoiseScale = 4
	cfg.Field.NoiseAmplitude = 1
	cfg.Collision.PhaseRate = 0.01
	cfg.Patterns = []config.PatternConfig{
		{X: 2, Y: 2, Z: 2, Energy: 12, Kind: "matter", Species: 1},
		{X: 3, Y: 2, Z: 2, Energy: 12, Kind: "matter", Species: 1},
		{X: 6, Y: 6, Z: 6, Energy: 10, Kind: "antimatter", Species: 1},
		{X: 1, Y: 6, Z: 3, Energy: 5, Kind: "matter", Species: 2},
	}
	s := newTestSim(t, cfg, 42)

	initial := s.EntityTotal() + s.Field().Total()
	for i := 0; i < 150; i++ {
		if err := s.Step(); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	ledger := s.EntityTotal() + s.Field().Total() + s.Field().Vented
	if diff := math.Abs(ledger - initial); diff > 1e-6*initial {
		t.Errorf("ledger drifted by %v over 150 ticks (initial %v)", diff, initial)
	}
}

func TestNonFiniteFieldHaltsRun(t *testing.T) {
	cfg := testConfig()
	cfg.Patterns = []config.PatternConfig{
		{X: 2, Y: 2, Z: 2, Energy: 5, Kind: "matter", Species: 1},
	}
	s := newTestSim(t, cfg, 1)

	s.Field().SetGamma(0, math.NaN())
	err := s.Step()
	if err == nil {
		t.Fatal("Step accepted a NaN field")
	}
	if s.State() != StateTerminated {
		t.Errorf("state = %v, want terminated", s.State())
	}
	if s.Err() == nil {
		t.Error("Err() = nil after fatal halt")
	}
	// A terminated run refuses further ticks.
	if err := s.Step(); err == nil {
		t.Error("Step after termination returned nil")
	}
}

func TestDissolutionReturnsEnergyToField(t *testing.T) {
	cfg := testConfig()
	cfg.Field.DepositRate = 0
	cfg.Field.Diffusion = 0
	cfg.Motion.StepGain = 0
	cfg.Patterns = []config.PatternConfig{
		{X: 4, Y: 4, Z: 4, Energy: 1e-12, Kind: "matter", Species: 1},
	}
	s := newTestSim(t, cfg, 1)

	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := s.AliveCount(); got != 0 {
		t.Errorf("alive = %d, want 0 after dissolution", got)
	}
	if diff := math.Abs(s.Field().Total() - 1e-12); diff > 1e-18 {
		t.Errorf("field total = %v, want the dissolved 1e-12", s.Field().Total())
	}
}

func TestWrapPhase(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{2 * math.Pi, 0},
		{3 * math.Pi, math.Pi},
		{-math.Pi / 2, 3 * math.Pi / 2},
	}
	for _, c := range cases {
		if got := wrapPhase(c.in); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("wrapPhase(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestPatternValidation(t *testing.T) {
	cfg := testConfig()
	cfg.Patterns = []config.PatternConfig{
		{X: 20, Y: 0, Z: 0, Energy: 5, Kind: "matter", Species: 1},
	}
	if _, err := NewSim(cfg, Options{Seed: 1, OutputDir: t.TempDir()}); err == nil {
		t.Error("NewSim accepted out-of-range pattern coordinates")
	}

	cfg = testConfig()
	cfg.Topology.Kind = "fcc"
	cfg.Patterns = []config.PatternConfig{
		{X: 1, Y: 0, Z: 0, Energy: 5, Kind: "matter", Species: 1},
	}
	if _, err := NewSim(cfg, Options{Seed: 1, OutputDir: t.TempDir()}); err == nil {
		t.Error("NewSim accepted an odd-parity fcc site")
	}
}
