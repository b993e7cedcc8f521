package session

import (
	"image"

	"github.com/starford/gridsplit/internal/geom"
	"github.com/starford/gridsplit/internal/imageio"
	"github.com/starford/gridsplit/internal/merge"
	"github.com/starford/gridsplit/internal/overlay"
	"github.com/starford/gridsplit/internal/snap"
)

// BackgroundAuto picks the dominant color of the first loaded image.
const BackgroundAuto = "auto"

// MergeSession composes images into a grid canvas.
type MergeSession struct {
	Grid       *merge.Model
	Overlays   *overlay.Set
	Background string
	Output     imageio.Output
}

// MergeOptions seeds a new merge session.
type MergeOptions struct {
	Cols, Rows    int
	Width, Height int
	Background    string
	Output        imageio.Output
	Measurer      overlay.Measurer
}

// NewMerge returns an empty merge session.
func NewMerge(opts MergeOptions) *MergeSession {
	g := merge.New(opts.Cols, opts.Rows, opts.Width, opts.Height)
	w, h := g.CanvasSize()
	bg := opts.Background
	if bg == "" {
		bg = "#ffffff"
	}
	return &MergeSession{
		Grid:       g,
		Overlays:   overlay.NewSet(geom.Size{Width: float64(w), Height: float64(h)}, opts.Measurer),
		Background: bg,
		Output:     opts.Output.Normalize("merged"),
	}
}

// SetCanvasSize resizes the canvas and the overlay frame.
func (s *MergeSession) SetCanvasSize(w, h int) {
	s.Grid.SetCanvasSize(w, h)
	cw, ch := s.Grid.CanvasSize()
	s.Overlays.SetFrame(geom.Size{Width: float64(cw), Height: float64(ch)})
}

// Load puts src into cell index.
func (s *MergeSession) Load(index int, src imageio.Image) bool {
	return s.Grid.Load(index, src.Pixels, src.Name)
}

// Reset drops every cell image and overlay.
func (s *MergeSession) Reset() {
	s.Grid.Clear()
	s.Overlays.Clear()
}

// Pointer routes one pointer event in canvas coordinates: overlays first,
// then the cell under the pointer.
func (s *MergeSession) Pointer(ev Pointer) {
	p := ev.point()
	switch ev.Kind {
	case PointerDown:
		if routeOverlay(s.Overlays, p, ev.ratio()) {
			s.Grid.Select(-1)
			return
		}
		s.Grid.PointerDown(p)
	case PointerMove:
		if s.Overlays.Dragging() {
			s.Overlays.PointerMove(p)
			return
		}
		s.Grid.PointerMove(p)
	case PointerUp:
		s.Overlays.PointerUp()
		s.Grid.PointerUp()
	}
}

// CellView is one visible cell.
type CellView struct {
	Index int              `json:"index"`
	Rect  geom.Rect        `json:"rect"`
	Image *merge.CellImage `json:"image,omitempty"`
}

// MergeView is the derived state of a merge session.
type MergeView struct {
	Width           int            `json:"width"`
	Height          int            `json:"height"`
	Cols            int            `json:"cols"`
	Rows            int            `json:"rows"`
	Cells           []CellView     `json:"cells"`
	Hidden          int            `json:"hidden"`
	SelectedCell    int            `json:"selected_cell"`
	Overlays        []OverlayView  `json:"overlays"`
	SelectedOverlay int            `json:"selected_overlay"`
	Guides          []snap.Guide   `json:"guides"`
	Background      string         `json:"background"`
	Output          imageio.Output `json:"output"`
}

// Occupied reports whether any visible cell holds an image.
func (v MergeView) Occupied() bool {
	return v.FirstImage() != nil
}

// FirstImage returns the image of the lowest occupied visible cell.
func (v MergeView) FirstImage() image.Image {
	for _, c := range v.Cells {
		if c.Image != nil {
			return c.Image.Image
		}
	}
	return nil
}

// View recomputes the derived state.
func (s *MergeSession) View() MergeView {
	w, h := s.Grid.CanvasSize()
	cols, rows := s.Grid.Shape()
	v := MergeView{
		Width:           w,
		Height:          h,
		Cols:            cols,
		Rows:            rows,
		Cells:           make([]CellView, 0, s.Grid.CellCount()),
		SelectedCell:    -1,
		SelectedOverlay: -1,
		Overlays:        overlayViews(s.Overlays),
		Guides:          append(s.Grid.Guides(), s.Overlays.Guides()...),
		Background:      s.Background,
		Output:          s.Output,
	}
	for i := 0; i < s.Grid.CellCount(); i++ {
		r, _ := s.Grid.CellRect(i)
		cv := CellView{Index: i, Rect: r}
		if c, ok := s.Grid.Cell(i); ok {
			cv.Image = &c
		}
		v.Cells = append(v.Cells, cv)
	}
	v.Hidden = s.Grid.Stored() - len(s.Grid.Occupied())
	if i, ok := s.Grid.Selected(); ok {
		v.SelectedCell = i
	}
	if i, ok := s.Overlays.Selected(); ok {
		v.SelectedOverlay = i
	}
	return v
}
