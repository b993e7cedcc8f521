package grid

import (
	"math"
	"testing"

	"github.com/starford/gridsplit/internal/geom"
)

func TestEqualShapes(t *testing.T) {
	for cols := 1; cols <= MaxCells; cols++ {
		for rows := 1; rows <= MaxCells; rows++ {
			l := Equal(cols, rows, 1200, 800)
			if len(l.Vertical) != cols-1 || len(l.Horizontal) != rows-1 {
				t.Fatalf("%dx%d: got %d/%d lines", cols, rows, len(l.Vertical), len(l.Horizontal))
			}
			for i, v := range l.Vertical {
				want := 1200.0 / float64(cols) * float64(i+1)
				if math.Abs(v-want) > 1e-9 || v <= 0 || v >= 1200 {
					t.Errorf("%dx%d vertical[%d] = %v, want %v", cols, rows, i, v, want)
				}
			}
			for i, h := range l.Horizontal {
				want := 800.0 / float64(rows) * float64(i+1)
				if math.Abs(h-want) > 1e-9 {
					t.Errorf("%dx%d horizontal[%d] = %v, want %v", cols, rows, i, h, want)
				}
			}
		}
	}
}

func TestAddLineEqualRedistributes(t *testing.T) {
	m := New(PolicyEqual, 3, 1, 1200, 800)
	m.AddLine(Vertical)
	got := m.Lines().Vertical
	want := []float64{300, 600, 900}
	if len(got) != len(want) {
		t.Fatalf("lines = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %v, want %v", i, got[i], want[i])
		}
	}
	m.RemoveLine(Vertical)
	m.RemoveLine(Vertical)
	if got := m.Lines().Vertical; len(got) != 1 || got[0] != 600 {
		t.Errorf("after removals = %v, want [600]", got)
	}
}

func TestAddLineFreeInsertsAtWidestGap(t *testing.T) {
	m := New(PolicyFree, 2, 1, 1000, 500)
	m.DragLine(Vertical, 0, 200)
	m.AddLine(Vertical)
	got := m.Lines().Vertical
	if len(got) != 2 || got[0] != 200 || got[1] != 600 {
		t.Fatalf("lines = %v, want [200 600]", got)
	}
	m.RemoveLine(Vertical)
	if got := m.Lines().Vertical; len(got) != 1 || got[0] != 200 {
		t.Errorf("after remove = %v, want [200]", got)
	}
}

func TestAddLineCapped(t *testing.T) {
	m := New(PolicyEqual, MaxCells, 1, 1000, 500)
	m.AddLine(Vertical)
	if cols, _ := m.Shape(); cols != MaxCells {
		t.Errorf("cols = %d, want %d", cols, MaxCells)
	}
}

func TestRemoveLineEmptyIsNoop(t *testing.T) {
	m := New(PolicyEqual, 1, 1, 100, 100)
	m.RemoveLine(Horizontal)
	if _, rows := m.Shape(); rows != 1 {
		t.Errorf("rows = %d", rows)
	}
}

func TestDragLineClamps(t *testing.T) {
	m := New(PolicyFree, 2, 2, 400, 300)
	tests := []struct {
		axis Axis
		pos  float64
		want float64
	}{
		{Vertical, -50, 10},
		{Vertical, 395, 390},
		{Vertical, 123, 123},
		{Horizontal, 1000, 290},
		{Horizontal, 3, 10},
	}
	for _, tt := range tests {
		if !m.DragLine(tt.axis, 0, tt.pos) {
			t.Fatalf("drag %s rejected", tt.axis)
		}
		l := m.Lines()
		got := l.Vertical[0]
		if tt.axis == Horizontal {
			got = l.Horizontal[0]
		}
		if got != tt.want {
			t.Errorf("drag %s to %v = %v, want %v", tt.axis, tt.pos, got, tt.want)
		}
	}
	if m.DragLine(Vertical, 5, 100) {
		t.Error("out of range index accepted")
	}
	if m.DragLine(Vertical, 0, math.NaN()) {
		t.Error("NaN position accepted")
	}
}

func TestHitTest(t *testing.T) {
	m := New(PolicyFree, 2, 2, 400, 300)
	axis, idx, ok := m.HitTest(geom.Pt(205, 20), 10)
	if !ok || axis != Vertical || idx != 0 {
		t.Errorf("hit = %v %v %v", axis, idx, ok)
	}
	axis, _, ok = m.HitTest(geom.Pt(20, 146), 10)
	if !ok || axis != Horizontal {
		t.Errorf("hit = %v %v", axis, ok)
	}
	if _, _, ok := m.HitTest(geom.Pt(20, 20), 10); ok {
		t.Error("unexpected hit")
	}
}

func TestSetPolicyEqualRelayouts(t *testing.T) {
	m := New(PolicyFree, 3, 1, 900, 100)
	m.DragLine(Vertical, 0, 50)
	m.SetPolicy(PolicyEqual)
	got := m.Lines().Vertical
	if got[0] != 300 || got[1] != 600 {
		t.Errorf("lines = %v", got)
	}
}

func TestLinesCloneIsIndependent(t *testing.T) {
	m := New(PolicyEqual, 3, 1, 900, 100)
	l := m.Lines()
	l.Vertical[0] = 1
	if m.Lines().Vertical[0] != 300 {
		t.Error("Lines leaked internal storage")
	}
}

func TestLookupPreset(t *testing.T) {
	p, ok := LookupPreset("vertical3")
	if !ok || p.Cols != 3 || p.Rows != 1 {
		t.Errorf("preset = %+v %v", p, ok)
	}
	if _, ok := LookupPreset("nope"); ok {
		t.Error("unknown preset found")
	}
}
