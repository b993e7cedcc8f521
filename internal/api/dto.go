package api

import (
	"github.com/starford/gridsplit/internal/editservice"
	"github.com/starford/gridsplit/internal/export"
	"github.com/starford/gridsplit/internal/grid"
	"github.com/starford/gridsplit/internal/session"
)

// SplitResponse is a split session and its derived state.
type SplitResponse struct {
	ID string `json:"id" example:"3f0c2a9e-..." validate:"required"`
	session.SplitView
}

// MergeResponse is a merge session and its derived state.
// EffectiveBackground resolves "auto" to a concrete color.
type MergeResponse struct {
	ID string `json:"id" example:"3f0c2a9e-..." validate:"required"`
	session.MergeView
	EffectiveBackground string `json:"effective_background" example:"#ffffff"`
}

// OverlayResponse is returned after adding an overlay.
type OverlayResponse struct {
	Index   int `json:"index" example:"0"`
	Session any `json:"session"`
}

// GridRequest reshapes a grid. A preset wins over cols and rows.
type GridRequest struct {
	Preset string `json:"preset,omitempty" example:"cross4"`
	Cols   int    `json:"cols" example:"3"`
	Rows   int    `json:"rows" example:"2"`
}

// PolicyRequest switches the line placement policy.
type PolicyRequest struct {
	Policy string `json:"policy" example:"equal" validate:"required"`
}

// LineRequest moves one grid line.
type LineRequest struct {
	Pos float64 `json:"pos" example:"120"`
}

// MarginRequest sets the gap between split pieces.
type MarginRequest struct {
	Margin int `json:"margin" example:"10"`
}

// CanvasRequest resizes the merge canvas.
type CanvasRequest struct {
	Width      int    `json:"width" example:"1200"`
	Height     int    `json:"height" example:"1200"`
	Background string `json:"background,omitempty" example:"#ffffff"`
}

// ScaleRequest zooms a merge cell.
type ScaleRequest struct {
	Scale float64 `json:"scale" example:"1.5" validate:"required"`
}

// ExportRequest starts an export.
type ExportRequest struct {
	Upscale int `json:"upscale" example:"2"`
}

// PresetsResponse lists the built-in grid shapes.
type PresetsResponse struct {
	Presets []grid.Preset `json:"presets" validate:"required"`
	Default string        `json:"default" example:"cross4"`
}

// FontsResponse lists the loaded font families.
type FontsResponse struct {
	Families []string `json:"families" validate:"required"`
}

// JobResponse is an export job snapshot.
type JobResponse = export.Status

// NewMergeRequest is the optional body of POST /merge.
type NewMergeRequest = editservice.MergeParams
