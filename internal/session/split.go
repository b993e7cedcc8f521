package session

import (
	"image"

	"github.com/starford/gridsplit/internal/crop"
	"github.com/starford/gridsplit/internal/geom"
	"github.com/starford/gridsplit/internal/grid"
	"github.com/starford/gridsplit/internal/imageio"
	"github.com/starford/gridsplit/internal/overlay"
	"github.com/starford/gridsplit/internal/region"
	"github.com/starford/gridsplit/internal/snap"
)

// SplitMode selects what pointer events edit.
type SplitMode string

const (
	ModeGrid SplitMode = "grid"
	ModeCrop SplitMode = "crop"
)

type lineDrag struct {
	active bool
	axis   grid.Axis
	index  int
}

// SplitSession edits one source image split into a grid.
type SplitSession struct {
	Source   imageio.Image
	Crop     *crop.Model
	Grid     *grid.Model
	Overlays *overlay.Set
	Margin   int
	Output   imageio.Output
	Mode     SplitMode

	line lineDrag
}

// SplitOptions seeds a new split session.
type SplitOptions struct {
	Cols, Rows int
	Policy     grid.Policy
	Margin     int
	Output     imageio.Output
	Measurer   overlay.Measurer
}

// NewSplit starts a session over src.
func NewSplit(src imageio.Image, opts SplitOptions) *SplitSession {
	w, h := float64(src.Width), float64(src.Height)
	if opts.Policy == "" {
		opts.Policy = grid.PolicyEqual
	}
	return &SplitSession{
		Source:   src,
		Crop:     crop.New(w, h),
		Grid:     grid.New(opts.Policy, opts.Cols, opts.Rows, w, h),
		Overlays: overlay.NewSet(geom.Size{Width: w, Height: h}, opts.Measurer),
		Margin:   max(0, opts.Margin),
		Output:   opts.Output.Normalize("split"),
		Mode:     ModeGrid,
	}
}

// LoadImage replaces the source. Crop and lines are reset and overlays are
// cleared; the grid keeps its shape.
func (s *SplitSession) LoadImage(src imageio.Image) {
	w, h := float64(src.Width), float64(src.Height)
	s.Source = src
	s.Crop = crop.New(w, h)
	s.Grid.Reframe(w, h)
	s.Overlays.Clear()
	s.Overlays.SetFrame(geom.Size{Width: w, Height: h})
	s.Mode = ModeGrid
	s.line = lineDrag{}
}

// Frame is the effective frame: the applied crop or the full image.
func (s *SplitSession) Frame() geom.Rect {
	if r, ok := s.Crop.Applied(); ok {
		return r
	}
	return geom.Rect{Width: float64(s.Source.Width), Height: float64(s.Source.Height)}
}

// SetGrid lays out an equal cols×rows grid over the frame.
func (s *SplitSession) SetGrid(cols, rows int) {
	f := s.Frame()
	s.Grid.InitializeEqual(cols, rows, f.Width, f.Height)
}

// StartCrop switches pointer routing to the crop rectangle, seeding the
// draft from an applied crop.
func (s *SplitSession) StartCrop() {
	s.Mode = ModeCrop
	s.Crop.Edit()
}

// ApplyCrop commits the draft and reframes lines and overlays. It reports
// false, leaving everything unchanged, for a missing or zero-size draft.
func (s *SplitSession) ApplyCrop() bool {
	if !s.Crop.Apply() {
		return false
	}
	s.reframe()
	s.Mode = ModeGrid
	return true
}

// CancelCrop drops the draft and the applied crop, restoring the full frame.
func (s *SplitSession) CancelCrop() {
	s.Crop.Cancel()
	s.reframe()
	s.Mode = ModeGrid
}

func (s *SplitSession) reframe() {
	f := s.Frame()
	s.Grid.Reframe(f.Width, f.Height)
	s.Overlays.SetFrame(f.Size())
}

// Pointer routes one pointer event. In crop mode it drives the crop
// rectangle in full-image coordinates. In grid mode coordinates are made
// frame-relative; overlays are tried first, then grid lines.
func (s *SplitSession) Pointer(ev Pointer) {
	if s.Mode == ModeCrop {
		switch ev.Kind {
		case PointerDown:
			s.Crop.PointerDown(ev.point(), crop.HandleTolerance*ev.ratio())
		case PointerMove:
			s.Crop.PointerMove(ev.point())
		case PointerUp:
			s.Crop.PointerUp()
		}
		return
	}

	f := s.Frame()
	p := ev.point().Sub(geom.Pt(f.X, f.Y))
	switch ev.Kind {
	case PointerDown:
		s.line = lineDrag{}
		if routeOverlay(s.Overlays, p, ev.ratio()) {
			return
		}
		if axis, i, ok := s.Grid.HitTest(p, LineTolerance*ev.ratio()); ok {
			s.line = lineDrag{active: true, axis: axis, index: i}
		}
	case PointerMove:
		switch {
		case s.Overlays.Dragging():
			s.Overlays.PointerMove(p)
		case s.line.active:
			pos := p.X
			if s.line.axis == grid.Horizontal {
				pos = p.Y
			}
			s.Grid.DragLine(s.line.axis, s.line.index, pos)
		}
	case PointerUp:
		s.Overlays.PointerUp()
		s.line = lineDrag{}
	}
}

// Regions decomposes the current frame.
func (s *SplitSession) Regions() []region.Region {
	return region.Decompose(s.Grid.Lines(), s.Frame(), s.Margin)
}

// SplitView is the derived state of a split session.
type SplitView struct {
	Image           image.Image     `json:"-"`
	Name            string          `json:"name"`
	Source          geom.Size       `json:"source"`
	Frame           geom.Rect       `json:"frame"`
	Mode            SplitMode       `json:"mode"`
	CropState       crop.State      `json:"crop_state"`
	Draft           *geom.Rect      `json:"draft,omitempty"`
	Policy          grid.Policy     `json:"policy"`
	Cols            int             `json:"cols"`
	Rows            int             `json:"rows"`
	Lines           grid.Lines      `json:"lines"`
	Margin          int             `json:"margin"`
	Regions         []region.Region `json:"regions"`
	Overlays        []OverlayView   `json:"overlays"`
	SelectedOverlay int             `json:"selected_overlay"`
	Guides          []snap.Guide    `json:"guides"`
	Output          imageio.Output  `json:"output"`
}

// View recomputes the derived state. The result shares no mutable memory
// with the session.
func (s *SplitSession) View() SplitView {
	cols, rows := s.Grid.Shape()
	sel, ok := s.Overlays.Selected()
	if !ok {
		sel = -1
	}
	v := SplitView{
		Image:           s.Source.Pixels,
		Name:            s.Source.Name,
		Source:          geom.Size{Width: float64(s.Source.Width), Height: float64(s.Source.Height)},
		Frame:           s.Frame(),
		Mode:            s.Mode,
		CropState:       s.Crop.State(),
		Policy:          s.Grid.Policy(),
		Cols:            cols,
		Rows:            rows,
		Lines:           s.Grid.Lines(),
		Margin:          s.Margin,
		Regions:         s.Regions(),
		Overlays:        overlayViews(s.Overlays),
		SelectedOverlay: sel,
		Guides:          s.Overlays.Guides(),
		Output:          s.Output,
	}
	if d, ok := s.Crop.Draft(); ok {
		v.Draft = &d
	}
	return v
}
