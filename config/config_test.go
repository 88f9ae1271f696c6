package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load defaults: %v", err)
	}
	if cfg.Topology.Kind == "" {
		t.Error("defaults missing topology kind")
	}
	if cfg.Field.CellCapacity <= 0 {
		t.Errorf("defaults cell_capacity = %v", cfg.Field.CellCapacity)
	}
	if cfg.Run.TickLimit <= 0 {
		t.Errorf("defaults tick_limit = %d", cfg.Run.TickLimit)
	}
	if len(cfg.Patterns) == 0 {
		t.Error("defaults define no initial patterns")
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.yaml")
	override := []byte("field:\n  diffusion: 0.33\ntopology:\n  kind: lattice6\n  x: 8\n  y: 8\n  z: 8\n")
	if err := os.WriteFile(path, override, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Field.Diffusion != 0.33 {
		t.Errorf("diffusion = %v, want the override 0.33", cfg.Field.Diffusion)
	}
	if cfg.Topology.Kind != "lattice6" || cfg.Topology.X != 8 {
		t.Errorf("topology = %+v, want the override", cfg.Topology)
	}
	// Untouched sections keep their defaults.
	defaults, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Field.CellCapacity != defaults.Field.CellCapacity {
		t.Errorf("cell_capacity = %v, want default %v",
			cfg.Field.CellCapacity, defaults.Field.CellCapacity)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load accepted a missing file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown topology", func(c *Config) { c.Topology.Kind = "hexgrid" }},
		{"tiny lattice", func(c *Config) { c.Topology.Kind = "lattice6"; c.Topology.X = 1 }},
		{"tiny ring", func(c *Config) { c.Topology.Kind = "smallworld"; c.Topology.RingSize = 2 }},
		{"degree too high", func(c *Config) {
			c.Topology.Kind = "smallworld"
			c.Topology.RingSize = 8
			c.Topology.RingDegree = 4
		}},
		{"rewire prob above one", func(c *Config) {
			c.Topology.Kind = "smallworld"
			c.Topology.RingSize = 64
			c.Topology.RingDegree = 2
			c.Topology.RewireProb = 1.5
		}},
		{"zero capacity", func(c *Config) { c.Field.CellCapacity = 0 }},
		{"negative deposit rate", func(c *Config) { c.Field.DepositRate = -0.1 }},
		{"diffusion above one", func(c *Config) { c.Field.Diffusion = 1.2 }},
		{"unknown law", func(c *Config) { c.Field.Law = "clamp" }},
		{"decay rate of one", func(c *Config) { c.Field.Law = "decay"; c.Field.DecayRate = 1 }},
		{"zero max speed", func(c *Config) { c.Motion.MaxSpeed = 0 }},
		{"superluminal max speed", func(c *Config) { c.Motion.MaxSpeed = 1.5 }},
		{"negative merge epsilon", func(c *Config) { c.Collision.MergeEpsilon = -0.01 }},
		{"photon spawn without count", func(c *Config) {
			c.Collision.PhotonSpawn = true
			c.Collision.PhotonCount = 0
		}},
		{"zero telemetry window", func(c *Config) { c.Telemetry.WindowTicks = 0 }},
		{"pattern zero energy", func(c *Config) { c.Patterns[0].Energy = 0 }},
		{"pattern unknown kind", func(c *Config) { c.Patterns[0].Kind = "tachyon" }},
	}
	for _, c := range cases {
		cfg := valid()
		c.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate accepted the config", c.name)
		}
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("defaults failed validation: %v", err)
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Field.Diffusion = 0.123

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back.Field.Diffusion != 0.123 {
		t.Errorf("diffusion = %v after round trip, want 0.123", back.Field.Diffusion)
	}
}
