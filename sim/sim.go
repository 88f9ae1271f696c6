// Package sim drives the synchronous tick loop over the substrate:
// deposit, spread, motion, collision resolution and telemetry, in a
// fixed order with no cross-tick overlap.
package sim

import (
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/jerry-samek/tick-frame-space-sub003/components"
	"github.com/jerry-samek/tick-frame-space-sub003/config"
	"github.com/jerry-samek/tick-frame-space-sub003/substrate"
	"github.com/jerry-samek/tick-frame-space-sub003/telemetry"
)

// RunState is the trivial run state machine: Running until the tick limit
// or an unrecoverable numeric failure, then Terminated.
type RunState uint8

const (
	StateRunning RunState = iota
	StateTerminated
)

// Options holds run-level settings not covered by the config file.
type Options struct {
	Seed      int64
	OutputDir string
	MaxTicks  int // 0 = config run.tick_limit
}

// Sim holds the complete simulation state: the topology, the gamma field
// and the pattern entities. Nothing else is carried between ticks.
type Sim struct {
	cfg  *config.Config
	opts Options

	world  *ecs.World
	mapper *ecs.Map5[
		components.Locus,
		components.Kinetic,
		components.Energy,
		components.Wave,
		components.Pattern,
	]
	filter *ecs.Filter5[
		components.Locus,
		components.Kinetic,
		components.Energy,
		components.Wave,
		components.Pattern,
	]

	locMap  *ecs.Map1[components.Locus]
	kinMap  *ecs.Map1[components.Kinetic]
	enMap   *ecs.Map1[components.Energy]
	waveMap *ecs.Map1[components.Wave]
	patMap  *ecs.Map1[components.Pattern]

	space *substrate.Space
	field *substrate.Field

	collector *telemetry.Collector
	output    *telemetry.OutputManager
	perf      *telemetry.PerfCollector

	par *parallelState

	resolve  substrate.ResolveParams
	maxTicks int

	tick       int32
	nextID     uint32
	aliveCount int
	state      RunState
	fatalErr   error

	// initialTotal anchors the conservation ledger.
	initialTotal float64
}

// NewSim builds a simulation from the given configuration.
func NewSim(cfg *config.Config, opts Options) (*Sim, error) {
	space, err := buildSpace(cfg, opts.Seed)
	if err != nil {
		return nil, err
	}

	law, err := substrate.ParseNormalizationLaw(cfg.Field.Law)
	if err != nil {
		return nil, err
	}

	field := substrate.NewField(space, substrate.FieldParams{
		Diffusion:     cfg.Field.Diffusion,
		CellCapacity:  cfg.Field.CellCapacity,
		Law:           law,
		DecayRate:     cfg.Field.DecayRate,
		RenormCeiling: cfg.Field.RenormCeiling,
	})
	if cfg.Field.SeedNoise {
		field.SeedNoise(opts.Seed, cfg.Field.NoiseScale, cfg.Field.NoiseAmplitude)
	}

	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := output.WriteConfig(cfg); err != nil {
		return nil, err
	}

	maxTicks := opts.MaxTicks
	if maxTicks <= 0 {
		maxTicks = cfg.Run.TickLimit
	}

	world := ecs.NewWorld()
	s := &Sim{
		cfg:   cfg,
		opts:  opts,
		world: world,
		mapper: ecs.NewMap5[
			components.Locus,
			components.Kinetic,
			components.Energy,
			components.Wave,
			components.Pattern,
		](world),
		filter: ecs.NewFilter5[
			components.Locus,
			components.Kinetic,
			components.Energy,
			components.Wave,
			components.Pattern,
		](world),
		locMap:  ecs.NewMap1[components.Locus](world),
		kinMap:  ecs.NewMap1[components.Kinetic](world),
		enMap:   ecs.NewMap1[components.Energy](world),
		waveMap: ecs.NewMap1[components.Wave](world),
		patMap:  ecs.NewMap1[components.Pattern](world),

		space:     space,
		field:     field,
		collector: telemetry.NewCollector(cfg.Telemetry.WindowTicks),
		output:    output,
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.WindowTicks),
		par:       newParallelState(),

		resolve: substrate.ResolveParams{
			MergeEpsilon: cfg.Collision.MergeEpsilon,
			KeepOverflow: cfg.Collision.PhotonSpawn,
		},
		maxTicks: maxTicks,
	}

	if err := s.spawnInitialPatterns(); err != nil {
		output.Close()
		return nil, err
	}

	s.initialTotal = s.EntityTotal() + s.field.Total()
	return s, nil
}

// buildSpace constructs the topology named by the config.
func buildSpace(cfg *config.Config, seed int64) (*substrate.Space, error) {
	kind, err := substrate.ParseTopologyKind(cfg.Topology.Kind)
	if err != nil {
		return nil, err
	}
	if kind == substrate.SmallWorld {
		// Topology generation uses its own stream so run seeding stays
		// independent of graph construction.
		rng := rand.New(rand.NewSource(seed + 1))
		return substrate.NewSmallWorld(cfg.Topology.RingSize, cfg.Topology.RingDegree,
			cfg.Topology.RewireProb, rng)
	}
	return substrate.NewLattice(kind, cfg.Topology.X, cfg.Topology.Y, cfg.Topology.Z)
}

// Tick returns the current tick number.
func (s *Sim) Tick() int32 { return s.tick }

// State returns the run state.
func (s *Sim) State() RunState { return s.state }

// Err returns the fatal error that terminated the run, if any.
func (s *Sim) Err() error { return s.fatalErr }

// AliveCount returns the number of living entities.
func (s *Sim) AliveCount() int { return s.aliveCount }

// Space returns the topology.
func (s *Sim) Space() *substrate.Space { return s.space }

// Field returns the gamma field.
func (s *Sim) Field() *substrate.Field { return s.field }

// EntityTotal returns the summed energy of all living entities.
func (s *Sim) EntityTotal() float64 {
	var total float64
	query := s.filter.Query()
	for query.Next() {
		_, _, en, _, _ := query.Get()
		if en.Alive {
			total += en.Value
		}
	}
	return total
}

// Entities returns the state of all living entities, ordered by ID.
func (s *Sim) Entities() []telemetry.EntityState {
	out := make([]telemetry.EntityState, 0, s.aliveCount)
	query := s.filter.Query()
	for query.Next() {
		loc, kin, en, wave, pat := query.Get()
		if !en.Alive {
			continue
		}
		out = append(out, telemetry.EntityState{
			ID:      pat.ID,
			Kind:    pat.Kind.String(),
			Species: pat.Species,
			Node:    loc.Node,
			Speed:   kin.Speed,
			Energy:  en.Value,
			Mode:    wave.Mode,
			Phase:   wave.Phase,
		})
	}
	sortEntityStates(out)
	return out
}

// Run executes ticks until the limit is reached or the run terminates.
func (s *Sim) Run() error {
	for s.state == StateRunning && int(s.tick) < s.maxTicks {
		if err := s.Step(); err != nil {
			return err
		}
	}
	return s.fatalErr
}

// Close releases output resources.
func (s *Sim) Close() error {
	return s.output.Close()
}

func sortEntityStates(es []telemetry.EntityState) {
	// Insertion sort: entity lists are small and usually nearly ordered.
	for i := 1; i < len(es); i++ {
		for j := i; j > 0 && es[j].ID < es[j-1].ID; j-- {
			es[j], es[j-1] = es[j-1], es[j]
		}
	}
}
