package telemetry

import (
	"math"
	"testing"

	"github.com/jerry-samek/tick-frame-space-sub003/substrate"
)

func TestCollectorWindow(t *testing.T) {
	c := NewCollector(10)

	c.RecordCollision(substrate.RegimeMerge, CollisionEvent{Tick: 1})
	c.RecordCollision(substrate.RegimeMerge, CollisionEvent{Tick: 2})
	c.RecordCollision(substrate.RegimeExplosion, CollisionEvent{Tick: 3})
	c.RecordCollision(substrate.RegimeExcitation, CollisionEvent{Tick: 4})
	c.RecordAnnihilation()
	c.RecordAnnihilation()
	c.RecordSpawn()
	c.RecordHop()
	c.RecordHop()
	c.RecordHop()
	c.RecordDrain(0.5)
	c.RecordDrain(0.25)

	if c.ShouldFlush(9) {
		t.Error("flushed before the window filled")
	}
	if !c.ShouldFlush(10) {
		t.Error("did not flush at window boundary")
	}

	stats := c.Flush(10)
	if stats.WindowStartTick != 0 || stats.WindowEndTick != 10 {
		t.Errorf("window = [%d, %d], want [0, 10]", stats.WindowStartTick, stats.WindowEndTick)
	}
	if stats.Merges != 2 || stats.Explosions != 1 || stats.Excitations != 1 {
		t.Errorf("regime counts = %d/%d/%d, want 2/1/1",
			stats.Merges, stats.Explosions, stats.Excitations)
	}
	if stats.Annihilated != 2 || stats.Spawned != 1 || stats.Hops != 3 {
		t.Errorf("annihilated/spawned/hops = %d/%d/%d, want 2/1/3",
			stats.Annihilated, stats.Spawned, stats.Hops)
	}
	if stats.DrainTotal != 0.75 {
		t.Errorf("drain total = %v, want 0.75", stats.DrainTotal)
	}

	// Flush resets the counters and advances the window.
	next := c.Flush(20)
	if next.Merges != 0 || next.Hops != 0 || next.DrainTotal != 0 {
		t.Errorf("counters survived a flush: %+v", next)
	}
	if next.WindowStartTick != 10 {
		t.Errorf("window start = %d, want 10", next.WindowStartTick)
	}
}

func TestDrainEvents(t *testing.T) {
	c := NewCollector(10)
	c.RecordCollision(substrate.RegimeMerge, CollisionEvent{Tick: 5, Node: 3})

	evs := c.DrainEvents()
	if len(evs) != 1 || evs[0].Node != 3 {
		t.Fatalf("drained events = %+v", evs)
	}
	if got := c.DrainEvents(); len(got) != 0 {
		t.Errorf("second drain returned %d events, want 0", len(got))
	}
}

func TestComputeEnergyStats(t *testing.T) {
	var w WindowStats
	w.ComputeEnergyStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})

	if math.Abs(w.EnergyMean-5) > 1e-12 {
		t.Errorf("mean = %v, want 5", w.EnergyMean)
	}
	if w.EnergyStd <= 0 {
		t.Errorf("std = %v, want positive", w.EnergyStd)
	}
	if w.EnergyP10 > w.EnergyP50 || w.EnergyP50 > w.EnergyP90 {
		t.Errorf("quantiles out of order: %v / %v / %v", w.EnergyP10, w.EnergyP50, w.EnergyP90)
	}

	var empty WindowStats
	empty.ComputeEnergyStats(nil)
	if empty.EnergyMean != 0 || empty.EnergyP50 != 0 {
		t.Errorf("empty sample produced stats: %+v", empty)
	}
}
