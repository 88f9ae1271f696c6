package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/mlange-42/ark/ecs"

	"github.com/jerry-samek/tick-frame-space-sub003/components"
	"github.com/jerry-samek/tick-frame-space-sub003/substrate"
	"github.com/jerry-samek/tick-frame-space-sub003/telemetry"
)

// dissolveThreshold is the energy below which an entity dissolves back
// into the field instead of persisting as a numerical ghost.
const dissolveThreshold = 1e-9

// Step advances the simulation by exactly one tick. The phase order is
// fixed: deposits from previous-tick positions, field spread, entity
// motion against the just-updated field, collision resolution, telemetry.
// Tick N+1 never begins before tick N fully completes.
func (s *Sim) Step() error {
	if s.state != StateRunning {
		return s.fatalErr
	}

	s.perf.StartTick()

	s.perf.StartPhase(telemetry.PhaseDeposit)
	s.depositPhase()

	s.perf.StartPhase(telemetry.PhaseSpread)
	s.field.Spread()

	s.perf.StartPhase(telemetry.PhaseMotion)
	s.motionPhase()

	s.perf.StartPhase(telemetry.PhaseCollision)
	s.collisionPhase()

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	s.tick++
	if err := s.checkFinite(); err != nil {
		s.fail(err)
		return s.fatalErr
	}
	s.flushTelemetry()

	if s.perf.EndTick() {
		rec := s.perf.Record(s.tick)
		rec.Log()
		if err := s.output.WritePerf(rec); err != nil {
			s.fail(fmt.Errorf("perf output: %w", err))
			return s.fatalErr
		}
	}

	if int(s.tick) >= s.maxTicks {
		s.state = StateTerminated
	}
	return nil
}

// depositPhase transfers each entity's field imprint into its current
// node, based on positions from the previous tick.
func (s *Sim) depositPhase() {
	rate := s.cfg.Field.DepositRate
	if rate <= 0 {
		return
	}
	query := s.filter.Query()
	for query.Next() {
		loc, _, en, _, _ := query.Get()
		if !en.Alive {
			continue
		}
		amt := rate * en.Value
		en.Value -= amt
		s.field.Deposit(loc.Node, amt)
	}
}

// motionPhase moves every entity at most one hop along the steepest
// descent of the just-updated field. Intents are computed against an
// immutable snapshot, then applied serially: the barrier between read
// and write keeps the tick synchronous regardless of worker count.
func (s *Sim) motionPhase() {
	s.par.snapshots = s.par.snapshots[:0]
	query := s.filter.Query()
	for query.Next() {
		loc, kin, en, wave, pat := query.Get()
		if !en.Alive {
			continue
		}
		s.par.snapshots = append(s.par.snapshots, entitySnap{
			Entity:   query.Entity(),
			ID:       pat.ID,
			Kind:     pat.Kind,
			Node:     loc.Node,
			LastHop:  kin.LastHop,
			Progress: kin.Progress,
			Energy:   en.Value,
			Phase:    wave.Phase,
		})
	}

	s.par.computeIntents(s.computeMotion)

	var dissolved []ecs.Entity
	for i := range s.par.snapshots {
		snap := &s.par.snapshots[i]
		in := &s.par.intents[i]

		loc := s.locMap.Get(snap.Entity)
		kin := s.kinMap.Get(snap.Entity)
		en := s.enMap.Get(snap.Entity)
		wave := s.waveMap.Get(snap.Entity)

		from := int32(-1)
		if in.Target >= 0 {
			from = loc.Node
			kin.LastHop = loc.Node
			loc.Node = in.Target
			s.collector.RecordHop()
		}
		kin.Speed = in.Speed
		kin.Progress = in.Progress
		wave.Phase = in.Phase

		if in.Drain > 0 {
			take := in.Drain
			if take > en.Value {
				take = en.Value
			}
			en.Value -= take
			s.field.DepositAlongPath(from, loc.Node, take)
			s.collector.RecordDrain(take)
		}

		if en.Value < dissolveThreshold {
			// Dissolve: the remainder returns to the field over the
			// neighbor ring, never as a point source.
			if en.Value > 0 {
				s.field.DistributeOverflow(loc.Node, en.Value)
			}
			en.Value = 0
			en.Alive = false
			dissolved = append(dissolved, snap.Entity)
			s.collector.RecordAnnihilation()
		}
	}
	for _, e := range dissolved {
		s.removeEntity(e)
	}
}

// computeMotion derives one entity's motion intent. Pure with respect to
// simulation state: reads only the snapshot, the field and the topology.
func (s *Sim) computeMotion(snap *entitySnap, out *intent) {
	out.Target = -1
	out.Phase = wrapPhase(snap.Phase + s.cfg.Collision.PhaseRate*snap.Energy)

	if snap.Kind == components.KindPhoton {
		// Photons are ballistic energy carriers: one hop per tick away
		// from where they came, direction fixed by a deterministic mix
		// of identity and tick so worker scheduling cannot perturb it.
		nbrs := s.space.Neighbors(snap.Node)
		pick := int(mix(snap.ID, s.tick) % uint32(len(nbrs)))
		if nbrs[pick] == snap.LastHop && len(nbrs) > 1 {
			pick = (pick + 1) % len(nbrs)
		}
		out.Target = nbrs[pick]
		out.Speed = 1
		out.Progress = 0
		return
	}

	best, grad := s.field.SteepestNeighbor(snap.Node)
	speed := s.cfg.Motion.StepGain * grad
	if speed > s.cfg.Motion.MaxSpeed {
		speed = s.cfg.Motion.MaxSpeed
	}
	out.Speed = speed

	progress := snap.Progress + speed
	if best >= 0 && progress >= 1 {
		out.Target = best
		progress -= 1
	}
	if progress > 1 {
		// No banking hops: causality allows one hop per tick.
		progress = 1
	}
	out.Progress = progress

	if speed > 0 {
		out.Drain = s.cfg.Motion.DrainCoeff * grad * speed * speed * speed
	}
}

// occupant is one entity's location during collision detection.
type occupant struct {
	entity ecs.Entity
	id     uint32
	node   int32
}

// collisionPhase detects co-located entities and resolves them pairwise
// in ID order. Co-location always resolves in the same tick it occurs:
// the next tick never sees an unresolved distance-zero pair.
func (s *Sim) collisionPhase() {
	occ := make([]occupant, 0, s.aliveCount)
	query := s.filter.Query()
	for query.Next() {
		loc, _, en, _, pat := query.Get()
		if !en.Alive {
			continue
		}
		occ = append(occ, occupant{entity: query.Entity(), id: pat.ID, node: loc.Node})
	}
	sort.Slice(occ, func(i, j int) bool {
		if occ[i].node != occ[j].node {
			return occ[i].node < occ[j].node
		}
		return occ[i].id < occ[j].id
	})

	for lo := 0; lo < len(occ); {
		hi := lo + 1
		for hi < len(occ) && occ[hi].node == occ[lo].node {
			hi++
		}
		if hi-lo >= 2 {
			s.resolveGroup(occ[lo].node, occ[lo:hi])
		}
		lo = hi
	}
}

// resolveGroup folds a co-located group through the resolver: the two
// lowest-ID occupants resolve first and any merge survivor re-enters the
// fold, so three-way pileups reduce deterministically.
func (s *Sim) resolveGroup(node int32, group []occupant) {
	working := append([]occupant(nil), group...)

	for len(working) >= 2 {
		a, b := working[0], working[1]

		aBody := s.bodyOf(a.entity)
		bBody := s.bodyOf(b.entity)
		before := aBody.Energy + bBody.Energy

		out := substrate.Resolve(s.field, node, &aBody, &bBody, s.resolve)

		ev := telemetry.CollisionEvent{
			Tick:           s.tick,
			Node:           node,
			Regime:         out.Regime.String(),
			AID:            a.id,
			BID:            b.id,
			AKind:          aBody.Kind.String(),
			BKind:          bBody.Kind.String(),
			KTotal:         out.KTotal,
			Overlap:        out.Overlap,
			EnergyBefore:   before,
			FieldAbsorbed:  out.Absorbed,
			NodeDeposit:    out.NodeDeposit,
			OverflowVented: out.OverflowVented,
		}

		switch out.Regime {
		case substrate.RegimeMerge:
			s.removeEntity(a.entity)
			s.removeEntity(b.entity)
			m := out.Merged
			e := s.spawnEntity(node, m.Energy, m.Kind, m.Species, m.Mode, m.Phase)
			s.collector.RecordSpawn()
			ev.EnergyAfter = m.Energy
			// The composite takes the pair's place in the fold.
			working = append([]occupant{{entity: e, id: s.nextID - 1, node: node}}, working[2:]...)

		case substrate.RegimeExcitation:
			s.writeBody(a.entity, &aBody)
			s.writeBody(b.entity, &bBody)
			ev.EnergyAfter = aBody.Energy + bBody.Energy
			// The excited pair persists at the node; it is resolved for
			// this tick and leaves the fold.
			working = working[2:]

		case substrate.RegimeExplosion:
			s.removeEntity(a.entity)
			s.removeEntity(b.entity)
			s.collector.RecordAnnihilation()
			s.collector.RecordAnnihilation()
			ev.EnergyAfter = 0
			if out.OverflowVented > 0 && s.cfg.Collision.PhotonSpawn {
				s.spawnPhotons(node, out.OverflowVented)
			}
			working = working[2:]
		}

		s.collector.RecordCollision(out.Regime, ev)
	}
}

// bodyOf reads an entity's collision-time view.
func (s *Sim) bodyOf(e ecs.Entity) substrate.Body {
	en := s.enMap.Get(e)
	wave := s.waveMap.Get(e)
	pat := s.patMap.Get(e)
	return substrate.Body{
		Energy:  en.Value,
		Kind:    pat.Kind,
		Species: pat.Species,
		Mode:    wave.Mode,
		Phase:   wave.Phase,
	}
}

// writeBody applies a mutated collision body back onto an entity.
func (s *Sim) writeBody(e ecs.Entity, b *substrate.Body) {
	s.enMap.Get(e).Value = b.Energy
	wave := s.waveMap.Get(e)
	wave.Mode = b.Mode
	wave.Phase = b.Phase
}

// spawnPhotons carries explosion overflow away on degenerate photon-like
// patterns, one per neighbor so the energy never lands on a single node.
func (s *Sim) spawnPhotons(node int32, overflow float64) {
	nbrs := s.space.Neighbors(node)
	n := s.cfg.Collision.PhotonCount
	if n > len(nbrs) {
		n = len(nbrs)
	}
	share := overflow / float64(n)
	for i := 0; i < n; i++ {
		e := s.spawnEntity(nbrs[i], share, components.KindPhoton, 0, 0, 0)
		s.kinMap.Get(e).LastHop = node
		s.collector.RecordSpawn()
	}
}

// checkFinite halts the run on any non-finite field or entity value.
// Continuing with corrupted state would silently poison every later tick.
func (s *Sim) checkFinite() error {
	if err := s.field.CheckFinite(); err != nil {
		return err
	}
	query := s.filter.Query()
	for query.Next() {
		_, kin, en, _, pat := query.Get()
		if math.IsNaN(en.Value) || math.IsInf(en.Value, 0) {
			query.Close()
			return fmt.Errorf("entity %d: non-finite energy %v", pat.ID, en.Value)
		}
		if math.IsNaN(kin.Speed) || math.IsInf(kin.Speed, 0) {
			query.Close()
			return fmt.Errorf("entity %d: non-finite speed %v", pat.ID, kin.Speed)
		}
	}
	return nil
}

// mix hashes an entity id and tick into a deterministic direction seed.
func mix(id uint32, tick int32) uint32 {
	h := id*2654435761 ^ uint32(tick)*2246822519
	h ^= h >> 13
	h *= 2654435761
	h ^= h >> 16
	return h
}
