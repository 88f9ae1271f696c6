package viewer

import "testing"

func TestNewViewport(t *testing.T) {
	v := NewViewport(32, 32, 16, 8)
	if v.OffsetX != 0 || v.OffsetY != 0 {
		t.Errorf("expected origin offsets, got (%d, %d)", v.OffsetX, v.OffsetY)
	}
	if v.SliceZ != 8 {
		t.Errorf("expected slice 8, got %d", v.SliceZ)
	}
}

func TestPanWraps(t *testing.T) {
	v := NewViewport(32, 32, 16, 0)

	v.Pan(-1, -1)
	if v.OffsetX != 31 || v.OffsetY != 31 {
		t.Errorf("expected wrap to (31, 31), got (%d, %d)", v.OffsetX, v.OffsetY)
	}
	v.Pan(2, 2)
	if v.OffsetX != 1 || v.OffsetY != 1 {
		t.Errorf("expected (1, 1), got (%d, %d)", v.OffsetX, v.OffsetY)
	}
	v.Pan(64, 0)
	if v.OffsetX != 1 {
		t.Errorf("full-world pan should be a no-op, got offset %d", v.OffsetX)
	}
}

func TestPanSliceWraps(t *testing.T) {
	v := NewViewport(32, 32, 16, 15)
	v.PanSlice(1)
	if v.SliceZ != 0 {
		t.Errorf("expected slice wrap to 0, got %d", v.SliceZ)
	}
	v.PanSlice(-1)
	if v.SliceZ != 15 {
		t.Errorf("expected slice wrap to 15, got %d", v.SliceZ)
	}
}

func TestCellMapping(t *testing.T) {
	v := NewViewport(32, 32, 16, 0)

	cx, cy := v.Cell(5, 7)
	if cx != 5 || cy != 7 {
		t.Errorf("unpanned cell = (%d, %d), want (5, 7)", cx, cy)
	}

	v.Pan(10, 10)
	cx, cy = v.Cell(5, 7)
	if cx != 27 || cy != 29 {
		t.Errorf("panned cell = (%d, %d), want wrapped (27, 29)", cx, cy)
	}
}

func TestReset(t *testing.T) {
	v := NewViewport(32, 32, 16, 4)
	v.Pan(5, 9)
	v.PanSlice(3)
	v.Reset()
	if v.OffsetX != 0 || v.OffsetY != 0 || v.SliceZ != 0 {
		t.Errorf("reset left state (%d, %d, slice %d)", v.OffsetX, v.OffsetY, v.SliceZ)
	}
}
