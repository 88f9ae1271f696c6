// Package main searches field and motion coefficients for trajectories
// with minimal numerical jitter, using CMA-ES over headless runs.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/jerry-samek/tick-frame-space-sub003/config"
	"github.com/jerry-samek/tick-frame-space-sub003/sim"
)

// ParamSpec defines one tunable parameter and its search bounds.
type ParamSpec struct {
	Name string
	Min  float64
	Max  float64
	Def  float64
}

// specs is the searched parameter vector.
var specs = []ParamSpec{
	{Name: "field.diffusion", Min: 0.01, Max: 0.5, Def: 0.15},
	{Name: "motion.step_gain", Min: 0.05, Max: 2.0, Def: 0.5},
	{Name: "motion.drain_coeff", Min: 0.0, Max: 0.1, Def: 0.01},
}

// denormalize maps [0,1] search coordinates to raw parameter values.
func denormalize(x []float64) []float64 {
	raw := make([]float64, len(specs))
	for i, s := range specs {
		v := x[i]
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		raw[i] = s.Min + v*(s.Max-s.Min)
	}
	return raw
}

// normalize maps raw parameter values to [0,1] search coordinates.
func normalize(raw []float64) []float64 {
	x := make([]float64, len(specs))
	for i, s := range specs {
		x[i] = (raw[i] - s.Min) / (s.Max - s.Min)
	}
	return x
}

// apply writes a raw parameter vector into a config.
func apply(cfg *config.Config, raw []float64) {
	cfg.Field.Diffusion = raw[0]
	cfg.Motion.StepGain = raw[1]
	cfg.Motion.DrainCoeff = raw[2]
}

// evaluate runs one headless simulation and returns its mean per-tick
// speed jitter. Terminated (non-finite) runs return a large penalty.
func evaluate(cfg *config.Config, seed int64, maxTicks int) float64 {
	s, err := sim.NewSim(cfg, sim.Options{Seed: seed, MaxTicks: maxTicks})
	if err != nil {
		return 1e9
	}
	defer s.Close()

	prev := make(map[uint32]float64)
	var jitterSum float64
	var samples int

	for s.State() == sim.StateRunning {
		if err := s.Step(); err != nil {
			return 1e9
		}
		for _, e := range s.Entities() {
			if last, ok := prev[e.ID]; ok {
				jitterSum += math.Abs(e.Speed - last)
				samples++
			}
			prev[e.ID] = e.Speed
		}
	}

	if samples == 0 {
		return 1e6 // everything annihilated; nothing to measure
	}
	return jitterSum / float64(samples)
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	maxTicks := flag.Int("max-ticks", 2000, "Simulation ticks per evaluation run")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 100, "Maximum number of evaluations")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	baseCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}

	logFile, err := os.Create(filepath.Join(*outputDir, "sweep_log.csv"))
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	logWriter := csv.NewWriter(logFile)
	defer logWriter.Flush()

	header := []string{"eval", "fitness"}
	for _, s := range specs {
		header = append(header, s.Name)
	}
	logWriter.Write(header)

	evalCount := 0
	bestFitness := math.Inf(1)
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := denormalize(x)
			cfg := *baseCfg
			apply(&cfg, raw)

			var total float64
			for _, seed := range evalSeeds {
				total += evaluate(&cfg, seed, *maxTicks)
			}
			fitness := total / float64(len(evalSeeds))

			evalCount++
			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = append([]float64(nil), raw...)
			}

			row := []string{strconv.Itoa(evalCount), fmt.Sprintf("%.6f", fitness)}
			for _, v := range raw {
				row = append(row, fmt.Sprintf("%.6f", v))
			}
			logWriter.Write(row)
			logWriter.Flush()

			fmt.Printf("Eval %d/%d: jitter=%.6f (best=%.6f) | elapsed: %s\n",
				evalCount, *maxEvals, fitness, bestFitness,
				time.Since(startTime).Round(time.Second))

			return fitness
		},
	}

	initX := make([]float64, len(specs))
	defaults := make([]float64, len(specs))
	for i, s := range specs {
		defaults[i] = s.Def
	}
	copy(initX, normalize(defaults))

	settings := &optimize.Settings{FuncEvaluations: *maxEvals}
	method := &optimize.CmaEsChol{InitStepSize: 0.3}

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}
	if bestParams == nil && result != nil {
		bestParams = denormalize(result.X)
	}
	if bestParams == nil {
		log.Fatalf("no parameter vector was evaluated; nothing to report")
	}

	fmt.Printf("\nSweep complete after %d evaluations in %s\n",
		evalCount, time.Since(startTime).Round(time.Second))
	fmt.Printf("Best jitter: %.6f\n", bestFitness)
	for i, s := range specs {
		fmt.Printf("  %s: %.6f\n", s.Name, bestParams[i])
	}

	bestCfg := *baseCfg
	apply(&bestCfg, bestParams)
	outPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(outPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("Best config saved to: %s\n", outPath)
	}
}
