package telemetry

import "github.com/jerry-samek/tick-frame-space-sub003/substrate"

// Collector accumulates events within tick windows and produces WindowStats.
type Collector struct {
	windowTicks     int32
	windowStartTick int32

	merges      int
	explosions  int
	excitations int
	annihilated int
	spawned     int
	hops        int
	drainTotal  float64

	events []CollisionEvent
}

// NewCollector creates a stats collector flushing every windowTicks ticks.
func NewCollector(windowTicks int) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{windowTicks: int32(windowTicks)}
}

// RecordCollision records a resolved collision event.
func (c *Collector) RecordCollision(regime substrate.Regime, ev CollisionEvent) {
	switch regime {
	case substrate.RegimeMerge:
		c.merges++
	case substrate.RegimeExplosion:
		c.explosions++
	case substrate.RegimeExcitation:
		c.excitations++
	}
	c.events = append(c.events, ev)
}

// RecordAnnihilation records an entity destroyed by a collision.
func (c *Collector) RecordAnnihilation() { c.annihilated++ }

// RecordSpawn records an entity created by a collision (composite or photon).
func (c *Collector) RecordSpawn() { c.spawned++ }

// RecordHop records one entity moving one hop.
func (c *Collector) RecordHop() { c.hops++ }

// RecordDrain records kinetic energy drained into the field.
func (c *Collector) RecordDrain(amount float64) { c.drainTotal += amount }

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowTicks
}

// DrainEvents returns buffered collision events and clears the buffer.
func (c *Collector) DrainEvents() []CollisionEvent {
	evs := c.events
	c.events = nil
	return evs
}

// Flush produces a WindowStats with this window's counters and resets
// them for the next window. Population and energy fields are filled by
// the caller, which owns the entity store.
func (c *Collector) Flush(currentTick int32) WindowStats {
	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		Merges:          c.merges,
		Explosions:      c.explosions,
		Excitations:     c.excitations,
		Annihilated:     c.annihilated,
		Spawned:         c.spawned,
		Hops:            c.hops,
		DrainTotal:      c.drainTotal,
	}

	c.windowStartTick = currentTick
	c.merges = 0
	c.explosions = 0
	c.excitations = 0
	c.annihilated = 0
	c.spawned = 0
	c.hops = 0
	c.drainTotal = 0

	return stats
}
