package sim

import (
	"log/slog"

	"github.com/jerry-samek/tick-frame-space-sub003/components"
	"github.com/jerry-samek/tick-frame-space-sub003/telemetry"
)

// flushTelemetry writes collision events, window stats, periodic field
// snapshots and the periodic state log record.
func (s *Sim) flushTelemetry() {
	if evs := s.collector.DrainEvents(); len(evs) > 0 {
		if err := s.output.WriteCollisions(evs); err != nil {
			slog.Warn("collision output failed", "error", err)
		}
	}

	if s.collector.ShouldFlush(s.tick) {
		stats := s.collector.Flush(s.tick)
		s.fillStats(&stats)
		stats.Log()
		if err := s.output.WriteTelemetry(stats); err != nil {
			slog.Warn("telemetry output failed", "error", err)
		}
	}

	if iv := s.cfg.Run.SnapshotInterval; iv > 0 && int(s.tick)%iv == 0 && s.output.Dir() != "" {
		if _, err := telemetry.WriteSnapshot(s.output.Dir(), s.buildSnapshot("")); err != nil {
			slog.Warn("snapshot failed", "error", err)
		}
	}

	if iv := s.cfg.Run.LogInterval; iv > 0 && int(s.tick)%iv == 0 {
		s.logState()
	}
}

// fillStats completes a window record with population, energy and the
// conservation ledger. LedgerTotal should stay within floating-point
// noise of the initial total for the whole run.
func (s *Sim) fillStats(stats *telemetry.WindowStats) {
	var energies []float64
	query := s.filter.Query()
	for query.Next() {
		_, _, en, _, pat := query.Get()
		if !en.Alive {
			continue
		}
		stats.EntityCount++
		switch pat.Kind {
		case components.KindMatter:
			stats.MatterCount++
		case components.KindAntimatter:
			stats.AntimatterCount++
		case components.KindPhoton:
			stats.PhotonCount++
		case components.KindComposite:
			stats.CompositeCount++
		}
		energies = append(energies, en.Value)
	}
	stats.ComputeEnergyStats(energies)

	stats.EntityTotal = s.EntityTotal()
	stats.FieldTotal = s.field.Total()
	stats.Vented = s.field.Vented
	stats.LedgerTotal = stats.EntityTotal + stats.FieldTotal + stats.Vented
}

// logState emits a per-interval structured record of the run state.
func (s *Sim) logState() {
	slog.Info("tick state",
		"tick", s.tick,
		"entities", s.aliveCount,
		"entity_total", s.EntityTotal(),
		"field_total", s.field.Total(),
		"vented", s.field.Vented,
	)
}

// fail terminates the run on an unrecoverable error, dumping the full
// tick state for diagnosis.
func (s *Sim) fail(err error) {
	s.state = StateTerminated
	s.fatalErr = err
	slog.Error("fatal simulation error", "tick", s.tick, "error", err)

	dir := s.output.Dir()
	if dir == "" {
		dir = "."
	}
	if path, werr := telemetry.WriteSnapshot(dir, s.buildSnapshot(err.Error())); werr != nil {
		slog.Error("state dump failed", "error", werr)
	} else {
		slog.Info("state dump written", "path", path)
	}
}

// buildSnapshot captures the complete current state: the gamma field plus
// all entities, which is everything the substrate carries between ticks.
func (s *Sim) buildSnapshot(reason string) *telemetry.Snapshot {
	gamma := make([]float64, s.space.NodeCount())
	for i := range gamma {
		gamma[i] = s.field.Gamma(int32(i))
	}
	return &telemetry.Snapshot{
		Version:   telemetry.SnapshotVersion,
		Seed:      s.opts.Seed,
		Tick:      s.tick,
		Topology:  s.space.Kind().String(),
		NodeCount: s.space.NodeCount(),
		Gamma:     gamma,
		Entities:  s.Entities(),
		Reason:    reason,
	}
}
