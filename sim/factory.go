package sim

import (
	"fmt"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/jerry-samek/tick-frame-space-sub003/components"
	"github.com/jerry-samek/tick-frame-space-sub003/config"
	"github.com/jerry-samek/tick-frame-space-sub003/substrate"
)

// parseKind maps a config pattern kind to a component Kind.
func parseKind(s string) (components.Kind, error) {
	switch s {
	case "matter":
		return components.KindMatter, nil
	case "antimatter":
		return components.KindAntimatter, nil
	case "photon":
		return components.KindPhoton, nil
	}
	return 0, fmt.Errorf("pattern: unknown kind %q", s)
}

// resolveNode maps a pattern config entry to a node id on the topology.
func (s *Sim) resolveNode(p config.PatternConfig, idx int) (int32, error) {
	if s.space.Kind() == substrate.SmallWorld {
		if p.Node < 0 || p.Node >= s.space.NodeCount() {
			return 0, fmt.Errorf("patterns[%d]: node %d out of range [0,%d)", idx, p.Node, s.space.NodeCount())
		}
		return int32(p.Node), nil
	}
	if p.X < 0 || p.X >= s.space.X || p.Y < 0 || p.Y >= s.space.Y || p.Z < 0 || p.Z >= s.space.Z {
		return 0, fmt.Errorf("patterns[%d]: coordinates (%d,%d,%d) outside %dx%dx%d lattice",
			idx, p.X, p.Y, p.Z, s.space.X, s.space.Y, s.space.Z)
	}
	if s.space.Kind() == substrate.FCC && (p.X+p.Y+p.Z)%2 != 0 {
		return 0, fmt.Errorf("patterns[%d]: coordinates (%d,%d,%d) are not an fcc site (odd parity)",
			idx, p.X, p.Y, p.Z)
	}
	return s.space.Index(p.X, p.Y, p.Z), nil
}

// spawnInitialPatterns creates the configured starting entities.
// Co-located entities are allowed here: the first tick's collision phase
// resolves them, which is itself one of the documented scenarios.
func (s *Sim) spawnInitialPatterns() error {
	for i, p := range s.cfg.Patterns {
		node, err := s.resolveNode(p, i)
		if err != nil {
			return err
		}
		kind, err := parseKind(p.Kind)
		if err != nil {
			return fmt.Errorf("patterns[%d]: %w", i, err)
		}
		s.spawnEntity(node, p.Energy, kind, uint8(p.Species), int32(p.Mode), wrapPhase(p.Phase))
	}
	return nil
}

// spawnEntity creates one pattern entity at a node.
func (s *Sim) spawnEntity(node int32, energy float64, kind components.Kind, species uint8, mode int32, phase float64) ecs.Entity {
	id := s.nextID
	s.nextID++

	loc := components.Locus{Node: node}
	kin := components.Kinetic{LastHop: -1}
	en := components.Energy{Value: energy, Alive: true}
	wave := components.Wave{Mode: mode, Phase: phase}
	pat := components.Pattern{ID: id, Kind: kind, Species: species}

	entity := s.mapper.NewEntity(&loc, &kin, &en, &wave, &pat)
	s.aliveCount++
	return entity
}

// removeEntity destroys an entity. Must not be called while a query over
// the entity filter is live.
func (s *Sim) removeEntity(entity ecs.Entity) {
	s.mapper.Remove(entity)
	s.aliveCount--
}

// wrapPhase normalizes a phase into [0, 2pi).
func wrapPhase(p float64) float64 {
	p = math.Mod(p, 2*math.Pi)
	if p < 0 {
		p += 2 * math.Pi
	}
	return p
}
