package sim

import (
	"runtime"
	"sync"

	"github.com/mlange-42/ark/ecs"

	"github.com/jerry-samek/tick-frame-space-sub003/components"
)

// parallelThreshold is the minimum entity count to use parallel intent
// computation. Below this, single-threaded is faster than the dispatch
// overhead.
const parallelThreshold = 64

// entitySnap captures read-only state for the motion phase. Workers read
// only snapshots and the already-spread field, so the phase is a pure
// read-then-write barrier: no entity observes another's partial update.
type entitySnap struct {
	Entity   ecs.Entity
	ID       uint32
	Kind     components.Kind
	Node     int32
	LastHop  int32
	Progress float64
	Energy   float64
	Phase    float64
}

// intent captures computed motion outputs, applied serially after the
// parallel phase completes.
type intent struct {
	Target   int32 // -1 = stay
	Speed    float64
	Progress float64
	Drain    float64
	Phase    float64
}

// parallelState holds reusable buffers for the motion phase.
type parallelState struct {
	snapshots  []entitySnap
	intents    []intent
	numWorkers int
}

func newParallelState() *parallelState {
	return &parallelState{
		numWorkers: runtime.GOMAXPROCS(0),
		snapshots:  make([]entitySnap, 0, 256),
		intents:    make([]intent, 0, 256),
	}
}

// computeIntents fills p.intents from p.snapshots using compute. The
// chunked dispatch is a barrier: it returns only when every intent is
// final.
func (p *parallelState) computeIntents(compute func(snap *entitySnap, out *intent)) {
	n := len(p.snapshots)
	p.intents = p.intents[:0]
	if cap(p.intents) < n {
		p.intents = make([]intent, n)
	}
	p.intents = p.intents[:n]

	if n < parallelThreshold || p.numWorkers < 2 {
		for i := range p.snapshots {
			compute(&p.snapshots[i], &p.intents[i])
		}
		return
	}

	chunk := (n + p.numWorkers - 1) / p.numWorkers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				compute(&p.snapshots[i], &p.intents[i])
			}
		}(start, end)
	}
	wg.Wait()
}
