// Package merge models the merge canvas: a cols×rows grid of cells, each
// optionally holding an image with a cell-local transform.
//
// Cell identity is the index row*cols+col. Reshaping the grid never moves
// images between indexes, so an index may land on a different row and column
// after a reshape, and indexes past the new cell count stay stored but hidden
// until the grid grows again.
package merge

import (
	"image"
	"math"
	"slices"

	"github.com/starford/gridsplit/internal/geom"
	"github.com/starford/gridsplit/internal/snap"
)

const (
	MinGrid   = 1
	MaxGrid   = 10
	MinCanvas = 100
	MaxCanvas = 4096
)

// Transform places an image inside its cell. X and Y are the top-left
// corner in cell-local pixels, Scale is strictly positive.
type Transform struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
}

// CellImage is an image loaded into a cell.
type CellImage struct {
	Image     image.Image `json:"-"`
	Name      string      `json:"name"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	Transform Transform   `json:"transform"`
}

// Box returns the scaled image rectangle in cell-local coordinates.
func (c CellImage) Box() geom.Rect {
	return geom.Rect{
		X:      c.Transform.X,
		Y:      c.Transform.Y,
		Width:  float64(c.Width) * c.Transform.Scale,
		Height: float64(c.Height) * c.Transform.Scale,
	}
}

type dragState struct {
	active   bool
	index    int
	start    geom.Point
	startPos geom.Point
}

// Model is the merge grid of one session.
type Model struct {
	cols, rows    int
	width, height int
	cells         map[int]*CellImage
	selected      int
	drag          dragState
	guides        []snap.Guide
}

// New returns an empty cols×rows grid on a w×h canvas.
func New(cols, rows, w, h int) *Model {
	m := &Model{cells: map[int]*CellImage{}, selected: -1}
	m.SetGrid(cols, rows)
	m.SetCanvasSize(w, h)
	return m
}

// SetGrid changes the grid shape. Cell images keep their indexes.
func (m *Model) SetGrid(cols, rows int) {
	m.cols = geom.ClampInt(cols, MinGrid, MaxGrid)
	m.rows = geom.ClampInt(rows, MinGrid, MaxGrid)
	if m.selected >= m.cols*m.rows {
		m.selected = -1
	}
}

// Shape returns the grid columns and rows.
func (m *Model) Shape() (cols, rows int) {
	return m.cols, m.rows
}

// SetCanvasSize changes the output canvas, clamped to [MinCanvas, MaxCanvas].
// Transforms are kept as they are.
func (m *Model) SetCanvasSize(w, h int) {
	m.width = geom.ClampInt(w, MinCanvas, MaxCanvas)
	m.height = geom.ClampInt(h, MinCanvas, MaxCanvas)
}

// CanvasSize returns the canvas dimensions.
func (m *Model) CanvasSize() (w, h int) {
	return m.width, m.height
}

// CellCount is cols*rows.
func (m *Model) CellCount() int {
	return m.cols * m.rows
}

// CellSize returns the size of one cell.
func (m *Model) CellSize() geom.Size {
	return geom.Size{Width: float64(m.width) / float64(m.cols), Height: float64(m.height) / float64(m.rows)}
}

// CellRect returns the canvas rectangle of cell index.
func (m *Model) CellRect(index int) (geom.Rect, bool) {
	if index < 0 || index >= m.CellCount() {
		return geom.Rect{}, false
	}
	s := m.CellSize()
	col, row := index%m.cols, index/m.cols
	return geom.Rect{X: float64(col) * s.Width, Y: float64(row) * s.Height, Width: s.Width, Height: s.Height}, true
}

// CellAt returns the cell containing canvas point p.
func (m *Model) CellAt(p geom.Point) (int, bool) {
	if p.X < 0 || p.Y < 0 || p.X >= float64(m.width) || p.Y >= float64(m.height) {
		return -1, false
	}
	s := m.CellSize()
	col := min(int(p.X/s.Width), m.cols-1)
	row := min(int(p.Y/s.Height), m.rows-1)
	return row*m.cols + col, true
}

// Cell returns the image stored at index, visible or not.
func (m *Model) Cell(index int) (CellImage, bool) {
	c, ok := m.cells[index]
	if !ok {
		return CellImage{}, false
	}
	return *c, true
}

// Occupied returns the sorted indexes holding an image that lie inside the
// current grid.
func (m *Model) Occupied() []int {
	out := make([]int, 0, len(m.cells))
	for i := range m.cells {
		if i < m.CellCount() {
			out = append(out, i)
		}
	}
	slices.Sort(out)
	return out
}

// Stored returns the number of stored images, including hidden ones.
func (m *Model) Stored() int {
	return len(m.cells)
}

// Load puts img into cell index with a cover fit. It reports whether the
// index is inside the grid.
func (m *Model) Load(index int, img image.Image, name string) bool {
	if _, ok := m.CellRect(index); !ok || img == nil {
		return false
	}
	b := img.Bounds()
	if b.Empty() {
		return false
	}
	m.cells[index] = &CellImage{Image: img, Name: name, Width: b.Dx(), Height: b.Dy()}
	m.Fill(index)
	m.selected = index
	return true
}

// Center keeps the scale and centers the image in its cell.
func (m *Model) Center(index int) bool {
	c, ok := m.cells[index]
	if !ok {
		return false
	}
	cell := m.CellSize()
	box := c.Box()
	c.Transform.X = (cell.Width - box.Width) / 2
	c.Transform.Y = (cell.Height - box.Height) / 2
	return true
}

// Fill scales the image to cover its cell and centers it.
func (m *Model) Fill(index int) bool {
	return m.fitWith(index, math.Max)
}

// Fit scales the image to fit inside its cell and centers it.
func (m *Model) Fit(index int) bool {
	return m.fitWith(index, math.Min)
}

func (m *Model) fitWith(index int, pick func(a, b float64) float64) bool {
	c, ok := m.cells[index]
	if !ok {
		return false
	}
	cell := m.CellSize()
	c.Transform.Scale = pick(cell.Width/float64(c.Width), cell.Height/float64(c.Height))
	return m.Center(index)
}

// SetScale rescales the image about its current visual center. Non-positive
// or non-finite scales are rejected.
func (m *Model) SetScale(index int, scale float64) bool {
	c, ok := m.cells[index]
	if !ok || !geom.Finite(scale) || scale <= 0 {
		return false
	}
	center := c.Box().Center()
	c.Transform.Scale = scale
	box := c.Box()
	c.Transform.X = center.X - box.Width/2
	c.Transform.Y = center.Y - box.Height/2
	return true
}

// Remove empties cell index.
func (m *Model) Remove(index int) bool {
	if _, ok := m.cells[index]; !ok {
		return false
	}
	delete(m.cells, index)
	if m.drag.index == index {
		m.drag = dragState{}
		m.guides = nil
	}
	return true
}

// Clear empties every cell.
func (m *Model) Clear() {
	clear(m.cells)
	m.selected = -1
	m.drag = dragState{}
	m.guides = nil
}

// Selected returns the selected cell.
func (m *Model) Selected() (int, bool) {
	return m.selected, m.selected >= 0
}

// Select marks a cell as selected; out-of-range indexes clear the selection.
func (m *Model) Select(index int) {
	if index < 0 || index >= m.CellCount() {
		index = -1
	}
	m.selected = index
}

// BeginDrag starts moving the image of cell index from canvas point p.
func (m *Model) BeginDrag(index int, p geom.Point) bool {
	c, ok := m.cells[index]
	if !ok || index >= m.CellCount() {
		return false
	}
	m.selected = index
	m.drag = dragState{active: true, index: index, start: p, startPos: geom.Pt(c.Transform.X, c.Transform.Y)}
	return true
}

// Drag translates the dragged image by delta in cell-local space, then
// snaps its edges and center to the cell's edges and center.
func (m *Model) Drag(delta geom.Point) {
	if !m.drag.active {
		return
	}
	c := m.cells[m.drag.index]
	box := c.Box()
	box.X = m.drag.startPos.X + delta.X
	box.Y = m.drag.startPos.Y + delta.Y

	var guides []snap.Guide
	box, guides = snap.Cell.Box(box, m.CellSize())
	c.Transform.X, c.Transform.Y = box.X, box.Y

	origin, _ := m.CellRect(m.drag.index)
	m.guides = m.guides[:0]
	for _, g := range guides {
		if g.Axis == snap.AxisX {
			g.Pos += origin.X
		} else {
			g.Pos += origin.Y
		}
		m.guides = append(m.guides, g)
	}
}

// PointerDown selects the cell under p and starts a drag if it holds an image.
func (m *Model) PointerDown(p geom.Point) {
	index, ok := m.CellAt(p)
	if !ok {
		m.selected = -1
		return
	}
	m.selected = index
	m.BeginDrag(index, p)
}

// PointerMove continues a drag.
func (m *Model) PointerMove(p geom.Point) {
	if m.drag.active {
		m.Drag(p.Sub(m.drag.start))
	}
}

// PointerUp ends the drag and clears the guides.
func (m *Model) PointerUp() {
	m.drag = dragState{}
	m.guides = nil
}

// Dragging reports whether a cell image is being moved.
func (m *Model) Dragging() bool {
	return m.drag.active
}

// Guides returns the active snap guides in canvas coordinates.
func (m *Model) Guides() []snap.Guide {
	return append([]snap.Guide{}, m.guides...)
}
