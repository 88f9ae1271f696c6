// Package config provides configuration loading and access for the simulator.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Run       RunConfig       `yaml:"run"`
	Topology  TopologyConfig  `yaml:"topology"`
	Field     FieldConfig     `yaml:"field"`
	Motion    MotionConfig    `yaml:"motion"`
	Collision CollisionConfig `yaml:"collision"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Viewer    ViewerConfig    `yaml:"viewer"`
	Patterns  []PatternConfig `yaml:"patterns"`
}

// RunConfig holds run-control parameters.
type RunConfig struct {
	TickLimit        int `yaml:"tick_limit"`
	LogInterval      int `yaml:"log_interval"`      // ticks between state log records (0 = every tick)
	SnapshotInterval int `yaml:"snapshot_interval"` // ticks between field snapshots (0 = disabled)
}

// TopologyConfig selects and sizes the discrete space.
type TopologyConfig struct {
	Kind string `yaml:"kind"` // lattice6, lattice18, lattice26, fcc, smallworld

	// Lattice / FCC dimensions (toroidal)
	X int `yaml:"x"`
	Y int `yaml:"y"`
	Z int `yaml:"z"`

	// Small-world parameters
	RingSize   int     `yaml:"ring_size"`
	RingDegree int     `yaml:"ring_degree"`  // neighbors per side before rewiring
	RewireProb float64 `yaml:"rewire_prob"`
}

// FieldConfig holds gamma-field parameters.
type FieldConfig struct {
	DepositRate   float64 `yaml:"deposit_rate"`   // fraction of entity energy deposited per tick
	Diffusion     float64 `yaml:"diffusion"`      // fraction of node gamma transported to neighbors per tick
	CellCapacity  float64 `yaml:"cell_capacity"`
	Law           string  `yaml:"law"`            // cap, decay, renorm
	DecayRate     float64 `yaml:"decay_rate"`     // per-tick exponential decay (law: decay)
	RenormCeiling float64 `yaml:"renorm_ceiling"` // global ceiling (law: renorm; 0 = nodes*capacity/2)

	// Optional simplex-noise seeding of the initial field
	SeedNoise      bool    `yaml:"seed_noise"`
	NoiseScale     float64 `yaml:"noise_scale"`
	NoiseAmplitude float64 `yaml:"noise_amplitude"`
}

// MotionConfig holds entity motion parameters.
type MotionConfig struct {
	StepGain   float64 `yaml:"step_gain"`   // overdamped gain on the local gradient
	DrainCoeff float64 `yaml:"drain_coeff"` // kinetic drain coefficient (|grad| * v^3)
	MaxSpeed   float64 `yaml:"max_speed"`   // hops per tick, hard causality cap
}

// CollisionConfig holds collision-resolution parameters.
type CollisionConfig struct {
	MergeEpsilon float64 `yaml:"merge_epsilon"` // overlap factor below which patterns pass as non-overlapping
	PhotonSpawn  bool    `yaml:"photon_spawn"`  // explosion overflow leaves as photon entities
	PhotonCount  int     `yaml:"photon_count"`
	PhaseRate    float64 `yaml:"phase_rate"` // phase advance per unit energy per tick
}

// TelemetryConfig holds stats-window and snapshot parameters.
type TelemetryConfig struct {
	WindowTicks    int  `yaml:"window_ticks"`
	FieldSnapshots bool `yaml:"field_snapshots"`
}

// ViewerConfig holds live terminal viewer parameters.
type ViewerConfig struct {
	TicksPerSecond int `yaml:"ticks_per_second"`
	SliceZ         int `yaml:"slice_z"` // lattice z-plane shown by the viewer
}

// PatternConfig describes one initial entity.
type PatternConfig struct {
	// Lattice coordinates; Node is used instead for graph topologies.
	X    int `yaml:"x"`
	Y    int `yaml:"y"`
	Z    int `yaml:"z"`
	Node int `yaml:"node"`

	Energy  float64 `yaml:"energy"`
	Kind    string  `yaml:"kind"` // matter, antimatter, photon
	Species int     `yaml:"species"`
	Mode    int     `yaml:"mode"`
	Phase   float64 `yaml:"phase"`
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the simulator cannot run.
// Setup errors are reported here, never discovered mid-run.
func (c *Config) Validate() error {
	switch c.Topology.Kind {
	case "lattice6", "lattice18", "lattice26", "fcc":
		if c.Topology.X < 2 || c.Topology.Y < 2 || c.Topology.Z < 2 {
			return fmt.Errorf("topology: lattice dimensions must be at least 2, got %dx%dx%d",
				c.Topology.X, c.Topology.Y, c.Topology.Z)
		}
	case "smallworld":
		if c.Topology.RingSize < 4 {
			return fmt.Errorf("topology: ring_size must be at least 4, got %d", c.Topology.RingSize)
		}
		if c.Topology.RingDegree < 1 || c.Topology.RingDegree*2 >= c.Topology.RingSize {
			return fmt.Errorf("topology: ring_degree %d invalid for ring_size %d",
				c.Topology.RingDegree, c.Topology.RingSize)
		}
		if c.Topology.RewireProb < 0 || c.Topology.RewireProb > 1 {
			return fmt.Errorf("topology: rewire_prob must be in [0,1], got %v", c.Topology.RewireProb)
		}
	default:
		return fmt.Errorf("topology: unknown kind %q", c.Topology.Kind)
	}

	if c.Field.CellCapacity <= 0 {
		return fmt.Errorf("field: cell_capacity must be positive, got %v", c.Field.CellCapacity)
	}
	if c.Field.DepositRate < 0 {
		return fmt.Errorf("field: deposit_rate must be non-negative, got %v", c.Field.DepositRate)
	}
	if c.Field.Diffusion < 0 || c.Field.Diffusion > 1 {
		return fmt.Errorf("field: diffusion must be in [0,1], got %v", c.Field.Diffusion)
	}
	switch c.Field.Law {
	case "cap", "decay", "renorm":
	default:
		return fmt.Errorf("field: unknown law %q (want cap, decay or renorm)", c.Field.Law)
	}
	if c.Field.Law == "decay" && (c.Field.DecayRate < 0 || c.Field.DecayRate >= 1) {
		return fmt.Errorf("field: decay_rate must be in [0,1), got %v", c.Field.DecayRate)
	}

	if c.Motion.MaxSpeed <= 0 || c.Motion.MaxSpeed > 1 {
		return fmt.Errorf("motion: max_speed must be in (0,1], got %v", c.Motion.MaxSpeed)
	}
	if c.Motion.StepGain < 0 {
		return fmt.Errorf("motion: step_gain must be non-negative, got %v", c.Motion.StepGain)
	}
	if c.Motion.DrainCoeff < 0 {
		return fmt.Errorf("motion: drain_coeff must be non-negative, got %v", c.Motion.DrainCoeff)
	}

	if c.Collision.MergeEpsilon < 0 {
		return fmt.Errorf("collision: merge_epsilon must be non-negative, got %v", c.Collision.MergeEpsilon)
	}
	if c.Collision.PhotonSpawn && c.Collision.PhotonCount < 1 {
		return fmt.Errorf("collision: photon_count must be at least 1 when photon_spawn is set")
	}

	if c.Telemetry.WindowTicks < 1 {
		return fmt.Errorf("telemetry: window_ticks must be at least 1, got %d", c.Telemetry.WindowTicks)
	}

	for i, p := range c.Patterns {
		if p.Energy <= 0 {
			return fmt.Errorf("patterns[%d]: energy must be positive, got %v", i, p.Energy)
		}
		switch p.Kind {
		case "matter", "antimatter", "photon":
		default:
			return fmt.Errorf("patterns[%d]: unknown kind %q", i, p.Kind)
		}
		if p.Phase < 0 {
			return fmt.Errorf("patterns[%d]: phase must be non-negative, got %v", i, p.Phase)
		}
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
