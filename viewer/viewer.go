// Package viewer renders the running simulation in the terminal: the
// gamma field as a shaded plane and pattern entities as glyphs.
package viewer

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/jerry-samek/tick-frame-space-sub003/components"
	"github.com/jerry-samek/tick-frame-space-sub003/config"
	"github.com/jerry-samek/tick-frame-space-sub003/sim"
	"github.com/jerry-samek/tick-frame-space-sub003/substrate"
)

// kindGlyphs maps pattern kinds to display runes.
var kindGlyphs = map[string]rune{
	components.KindMatter.String():     'm',
	components.KindAntimatter.String(): 'a',
	components.KindPhoton.String():     '*',
	components.KindComposite.String():  'C',
}

// Viewer drives a tcell screen showing one tick per frame.
type Viewer struct {
	screen tcell.Screen
	sim    *sim.Sim
	cfg    *config.Config
	vp     *Viewport

	paused bool
}

// New creates a viewer over a simulation.
func New(s *sim.Sim, cfg *config.Config) (*Viewer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("creating screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("initializing screen: %w", err)
	}
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack))
	screen.Clear()

	space := s.Space()
	var vp *Viewport
	if space.Kind() == substrate.SmallWorld {
		vp = NewViewport(space.NodeCount(), 1, 1, 0)
	} else {
		vp = NewViewport(space.X, space.Y, space.Z, cfg.Viewer.SliceZ)
	}
	return &Viewer{screen: screen, sim: s, cfg: cfg, vp: vp}, nil
}

// Run steps the simulation at the configured rate until the run ends or
// the user quits. Keys: q/Esc quit, space pause, s single-step, arrows
// pan, [ and ] change the z-slice, r resets the viewport.
func (v *Viewer) Run() error {
	defer v.screen.Fini()

	events := make(chan tcell.Event, 8)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	tps := v.cfg.Viewer.TicksPerSecond
	if tps < 1 {
		tps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(tps))
	defer ticker.Stop()

	for v.sim.State() == sim.StateRunning {
		select {
		case ev := <-events:
			switch e := ev.(type) {
			case *tcell.EventKey:
				switch {
				case e.Key() == tcell.KeyEscape || e.Rune() == 'q':
					return nil
				case e.Rune() == ' ':
					v.paused = !v.paused
				case e.Rune() == 's':
					if v.paused {
						if err := v.sim.Step(); err != nil {
							return err
						}
					}
				case e.Key() == tcell.KeyLeft:
					v.vp.Pan(-1, 0)
				case e.Key() == tcell.KeyRight:
					v.vp.Pan(1, 0)
				case e.Key() == tcell.KeyUp:
					v.vp.Pan(0, -1)
				case e.Key() == tcell.KeyDown:
					v.vp.Pan(0, 1)
				case e.Rune() == '[':
					v.vp.PanSlice(-1)
				case e.Rune() == ']':
					v.vp.PanSlice(1)
				case e.Rune() == 'r':
					v.vp.Reset()
				}
				v.draw()
			case *tcell.EventResize:
				v.screen.Sync()
			}
		case <-ticker.C:
			if v.paused {
				continue
			}
			if err := v.sim.Step(); err != nil {
				return err
			}
			v.draw()
		}
	}
	return v.sim.Err()
}

// draw renders the field slice, the entities and a status line.
func (v *Viewer) draw() {
	v.screen.Clear()

	space := v.sim.Space()
	field := v.sim.Field()
	capacity := field.Capacity()
	w, h := v.screen.Size()

	// Field plane, one node per cell
	for n := 0; n < space.NodeCount(); n++ {
		cx, cy, ok := v.cellFor(space, int32(n), w, h)
		if !ok {
			continue
		}
		shade := field.Gamma(int32(n)) / capacity
		if shade > 1 {
			shade = 1
		}
		bg := tcell.NewRGBColor(int32(20+shade*90), int32(20+shade*60), int32(40+shade*215))
		v.screen.SetContent(cx, cy, ' ', nil, tcell.StyleDefault.Background(bg))
	}

	// Entities over the field
	for _, e := range v.sim.Entities() {
		cx, cy, ok := v.cellFor(space, e.Node, w, h)
		if !ok {
			continue
		}
		glyph, found := kindGlyphs[e.Kind]
		if !found {
			glyph = '?'
		}
		style := tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
		if e.Kind == components.KindAntimatter.String() {
			style = style.Foreground(tcell.ColorRed)
		}
		v.screen.SetContent(cx, cy, glyph, nil, style)
	}

	status := fmt.Sprintf(" tick %d | entities %d | field %.2f | vented %.2f | z=%d ",
		v.sim.Tick(), v.sim.AliveCount(), field.Total(), field.Vented, v.vp.SliceZ)
	if v.paused {
		status += "[paused] "
	}
	for i, r := range status {
		if i >= w {
			break
		}
		v.screen.SetContent(i, h-1, r, nil, tcell.StyleDefault.Foreground(tcell.ColorYellow))
	}

	v.screen.Show()
}

// cellFor maps a node to a screen cell through the viewport: the visible
// z-slice of a lattice, or a wrapped row-major layout for graph topologies.
func (v *Viewer) cellFor(space *substrate.Space, n int32, w, h int) (int, int, bool) {
	if space.Kind() == substrate.SmallWorld {
		idx, _ := v.vp.Cell(int(n), 0)
		x := idx % w
		y := idx / w
		if y >= h-1 {
			return 0, 0, false
		}
		return x, y, true
	}
	x, y, z := space.Coords(n)
	if z != v.vp.SliceZ {
		return 0, 0, false
	}
	cx, cy := v.vp.Cell(x, y)
	if cx >= w || cy >= h-1 {
		return 0, 0, false
	}
	return cx, cy, true
}
