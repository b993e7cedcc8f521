package editservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/gridsplit/internal/apperr"
	"github.com/starford/gridsplit/internal/export"
	"github.com/starford/gridsplit/internal/imageio"
	"github.com/starford/gridsplit/internal/models"
	"github.com/starford/gridsplit/internal/render"
	"github.com/starford/gridsplit/internal/session"
)

// Cell actions.
const (
	CellCenter = "center"
	CellFill   = "fill"
	CellFit    = "fit"
)

// MergeParams seeds a merge session. Zero fields take the configured
// defaults.
type MergeParams struct {
	Cols       int    `json:"cols"`
	Rows       int    `json:"rows"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Background string `json:"background"`
}

func (s *Service) mergeOptions(p MergeParams) session.MergeOptions {
	pick := func(v, def int) int {
		if v > 0 {
			return v
		}
		return def
	}
	bg := p.Background
	if bg == "" {
		bg = s.cfg.MergeBackground
	}
	return session.MergeOptions{
		Cols:       pick(p.Cols, s.cfg.MergeCols),
		Rows:       pick(p.Rows, s.cfg.MergeRows),
		Width:      pick(p.Width, s.cfg.MergeWidth),
		Height:     pick(p.Height, s.cfg.MergeHeight),
		Background: bg,
		Output:     s.cfg.Output,
		Measurer:   s.measurer(),
	}
}

// CreateMerge starts an empty merge session.
func (s *Service) CreateMerge(p MergeParams) (string, session.MergeView, error) {
	ms := session.NewMerge(s.mergeOptions(p))
	id := newID()
	s.mu.Lock()
	s.merges[id] = &mergeEntry{s: ms, touched: s.now()}
	s.mu.Unlock()

	v := ms.View()
	s.logger.Info("merge session created",
		slog.String("id", id),
		slog.Int("cols", v.Cols),
		slog.Int("rows", v.Rows),
	)
	return id, v, nil
}

// GetMerge returns the current view.
func (s *Service) GetMerge(id string) (session.MergeView, error) {
	return s.withMerge(id, false, nil)
}

// DeleteMerge drops the session and cancels its running exports.
func (s *Service) DeleteMerge(id string) error {
	s.mu.Lock()
	_, ok := s.merges[id]
	delete(s.merges, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("merge session %s: %w", id, apperr.ErrNotFound)
	}
	s.runner.CancelSession(id)
	s.publish("deleted", ModeMerge, id)
	return nil
}

// SetMergeGrid reshapes the grid. Cells keep their indices.
func (s *Service) SetMergeGrid(id string, cols, rows int) (session.MergeView, error) {
	return s.withMerge(id, true, func(ms *session.MergeSession) error {
		ms.Grid.SetGrid(cols, rows)
		return nil
	})
}

// SetCanvas resizes the canvas and, when background is not empty, changes
// the background.
func (s *Service) SetCanvas(id string, w, h int, background string) (session.MergeView, error) {
	return s.withMerge(id, true, func(ms *session.MergeSession) error {
		ms.SetCanvasSize(w, h)
		if background != "" {
			ms.Background = background
		}
		return nil
	})
}

// SetMergeOutput replaces the encoding settings.
func (s *Service) SetMergeOutput(id string, out imageio.Output) (session.MergeView, error) {
	return s.withMerge(id, true, func(ms *session.MergeSession) error {
		ms.Output = out.Normalize("merged")
		return nil
	})
}

// LoadCell puts img into cell index with a cover fit.
func (s *Service) LoadCell(id string, index int, img imageio.Image) (session.MergeView, error) {
	return s.withMerge(id, true, func(ms *session.MergeSession) error {
		if !ms.Load(index, img) {
			return fmt.Errorf("cell %d: %w", index, apperr.ErrNotFound)
		}
		return nil
	})
}

// RemoveCell empties cell index.
func (s *Service) RemoveCell(id string, index int) (session.MergeView, error) {
	return s.withMerge(id, true, func(ms *session.MergeSession) error {
		if !ms.Grid.Remove(index) {
			return fmt.Errorf("cell %d: %w", index, apperr.ErrNotFound)
		}
		return nil
	})
}

// CellAction runs center, fill or fit on an occupied cell.
func (s *Service) CellAction(id string, index int, action string) (session.MergeView, error) {
	return s.withMerge(id, true, func(ms *session.MergeSession) error {
		var ok bool
		switch action {
		case CellCenter:
			ok = ms.Grid.Center(index)
		case CellFill:
			ok = ms.Grid.Fill(index)
		case CellFit:
			ok = ms.Grid.Fit(index)
		default:
			return fmt.Errorf("cell action %q: %w", action, apperr.ErrNotFound)
		}
		if !ok {
			return fmt.Errorf("cell %d: %w", index, apperr.ErrNotFound)
		}
		return nil
	})
}

// SetCellScale zooms an occupied cell about its visual center.
func (s *Service) SetCellScale(id string, index int, scale float64) (session.MergeView, error) {
	return s.withMerge(id, true, func(ms *session.MergeSession) error {
		if !ms.Grid.SetScale(index, scale) {
			return fmt.Errorf("cell %d: %w", index, apperr.ErrNotFound)
		}
		return nil
	})
}

// ResetMerge empties every cell and removes all overlays.
func (s *Service) ResetMerge(id string) (session.MergeView, error) {
	return s.withMerge(id, true, func(ms *session.MergeSession) error {
		ms.Reset()
		return nil
	})
}

// MergePointer routes one pointer event in canvas coordinates.
func (s *Service) MergePointer(id string, ev session.Pointer) (session.MergeView, error) {
	if err := checkPointer(ev); err != nil {
		return session.MergeView{}, err
	}
	return s.withMerge(id, true, func(ms *session.MergeSession) error {
		ms.Pointer(ev)
		return nil
	})
}

// MergePreview renders the interactive preview as PNG.
func (s *Service) MergePreview(id string) ([]byte, error) {
	v, err := s.GetMerge(id)
	if err != nil {
		return nil, err
	}
	img, err := s.renderer.PreviewMerge(v)
	if err != nil {
		return nil, fmt.Errorf("preview merge %s: %w", id, err)
	}
	return imageio.EncodeBytes(img, imageio.Output{Format: imageio.PNG})
}

// ExportMerge starts a background bake of the canvas at upscale u. It
// fails with apperr.ErrEmptyExport when no visible cell holds an image.
func (s *Service) ExportMerge(ctx context.Context, id string, u int) (export.Status, error) {
	v, err := s.GetMerge(id)
	if err != nil {
		return export.Status{}, err
	}
	if !v.Occupied() {
		return export.Status{}, fmt.Errorf("export merge %s: %w", id, apperr.ErrEmptyExport)
	}
	if err := s.awaitFonts(ctx, v.Overlays); err != nil {
		return export.Status{}, err
	}
	v, err = s.GetMerge(id)
	if err != nil {
		return export.Status{}, err
	}
	st, err := s.runner.Start(export.Spec{
		SessionID:   id,
		Mode:        ModeMerge,
		ArchiveName: export.MergeArchive,
		Tasks:       []export.Task{s.mergeTask(v, u)},
	})
	if err != nil {
		return export.Status{}, fmt.Errorf("export merge %s: %w", id, err)
	}
	return st, nil
}

func (s *Service) mergeTask(v session.MergeView, u int) export.Task {
	return func(ctx context.Context) (models.Artifact, error) {
		if err := ctx.Err(); err != nil {
			return models.Artifact{}, err
		}
		img, err := s.renderer.BakeMerge(v, u)
		if err != nil {
			return models.Artifact{}, err
		}
		data, err := imageio.EncodeBytes(img, v.Output)
		if err != nil {
			return models.Artifact{}, err
		}
		return models.NewArtifact(v.Output.FileName(0), v.Output.Format.MIME(), data), nil
	}
}

// MergeBackground resolves the effective background color of a view.
func MergeBackground(v session.MergeView) string {
	c := render.Background(v.Background, v.FirstImage())
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
