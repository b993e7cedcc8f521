package snap

import (
	"testing"

	"github.com/starford/gridsplit/internal/geom"
)

func TestTextSnapThreshold(t *testing.T) {
	// 200px wide box in a 1000px frame: centered start is 400.
	tests := []struct {
		name  string
		start float64
		want  float64
		snaps bool
	}{
		{"29px right of center", 429, 400, true},
		{"29px left of center", 371, 400, true},
		{"31px right of center", 431, 431, false},
		{"exactly centered", 400, 400, true},
		{"near left edge ignored", 5, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, ok := Text.Axis(tt.start, 200, 1000)
			if ok != tt.snaps {
				t.Fatalf("snapped = %v, want %v", ok, tt.snaps)
			}
			if got != tt.want {
				t.Errorf("start = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCellSnapFirstTargetWins(t *testing.T) {
	// A 100px box whose start is 10px from 0 and whose end is 10px from the
	// center of a 220px cell: target 0 is visited first.
	got, target, ok := Cell.Axis(10, 100, 220)
	if !ok {
		t.Fatal("expected snap")
	}
	if target != 0 || got != 0 {
		t.Errorf("got start=%v target=%v, want 0/0", got, target)
	}
}

func TestCellSnapEndToCenter(t *testing.T) {
	// Box end at 262 is 12px from the 250 center of a 500px cell.
	got, target, ok := Cell.Axis(162, 100, 500)
	if !ok || target != 250 || got != 150 {
		t.Errorf("got start=%v target=%v ok=%v, want 150/250/true", got, target, ok)
	}
}

func TestCellSnapNoMatch(t *testing.T) {
	if _, _, ok := Cell.Axis(100, 50, 500); ok {
		t.Error("unexpected snap")
	}
}

func TestBoxGuides(t *testing.T) {
	box, guides := Cell.Box(geom.Rect{X: 3, Y: 240, Width: 100, Height: 20}, geom.Size{Width: 500, Height: 500})
	if box.X != 0 {
		t.Errorf("x = %v, want 0", box.X)
	}
	// The box center already sits on 250; the closer reference wins.
	if box.Y != 240 {
		t.Errorf("y = %v, want 240", box.Y)
	}
	if len(guides) != 2 {
		t.Fatalf("guides = %v, want 2", guides)
	}
	if guides[0] != (Guide{Axis: AxisX, Pos: 0}) || guides[1] != (Guide{Axis: AxisY, Pos: 250}) {
		t.Errorf("guides = %+v", guides)
	}
}
