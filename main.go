package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/jerry-samek/tick-frame-space-sub003/config"
	"github.com/jerry-samek/tick-frame-space-sub003/sim"
	"github.com/jerry-samek/tick-frame-space-sub003/viewer"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	view := flag.Bool("view", false, "Run with the live terminal viewer")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = config tick_limit)")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	// JSON structured logs; stderr in viewer mode so records do not fight
	// the terminal UI for stdout.
	logOut := os.Stdout
	if *view {
		logOut = os.Stderr
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(logOut, nil)))

	s, err := sim.NewSim(cfg, sim.Options{
		Seed:      rngSeed,
		OutputDir: *outputDir,
		MaxTicks:  *maxTicks,
	})
	if err != nil {
		slog.Error("failed to build simulation", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	slog.Info("starting simulation",
		"seed", rngSeed,
		"topology", cfg.Topology.Kind,
		"nodes", s.Space().NodeCount(),
		"entities", s.AliveCount(),
		"max_ticks", *maxTicks,
	)

	if *view {
		v, err := viewer.New(s, cfg)
		if err != nil {
			slog.Error("failed to start viewer", "error", err)
			os.Exit(1)
		}
		if err := v.Run(); err != nil {
			slog.Error("run terminated", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := s.Run(); err != nil {
		slog.Error("run terminated", "error", err)
		os.Exit(1)
	}

	slog.Info("run complete",
		"tick", s.Tick(),
		"entities", s.AliveCount(),
		"entity_total", s.EntityTotal(),
		"field_total", s.Field().Total(),
		"vented", s.Field().Vented,
	)
}
