package editservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/gridsplit/internal/apperr"
	"github.com/starford/gridsplit/internal/export"
	"github.com/starford/gridsplit/internal/geom"
	"github.com/starford/gridsplit/internal/grid"
	"github.com/starford/gridsplit/internal/imageio"
	"github.com/starford/gridsplit/internal/models"
	"github.com/starford/gridsplit/internal/region"
	"github.com/starford/gridsplit/internal/session"
)

// Crop actions.
const (
	CropStart  = "start"
	CropApply  = "apply"
	CropCancel = "cancel"
)

func lookupPreset(id string) (grid.Preset, error) {
	p, ok := grid.LookupPreset(id)
	if !ok {
		return grid.Preset{}, fmt.Errorf("preset %q: %w", id, apperr.ErrNotFound)
	}
	return p, nil
}

// CreateSplit starts a split session over img using preset, or the
// configured default when preset is empty.
func (s *Service) CreateSplit(img imageio.Image, preset string) (string, session.SplitView, error) {
	if preset == "" {
		preset = s.cfg.SplitPreset
	}
	p, err := lookupPreset(preset)
	if err != nil {
		return "", session.SplitView{}, err
	}
	ss := session.NewSplit(img, session.SplitOptions{
		Cols:     p.Cols,
		Rows:     p.Rows,
		Policy:   s.cfg.SplitPolicy,
		Output:   s.cfg.Output,
		Measurer: s.measurer(),
	})

	id := newID()
	s.mu.Lock()
	s.splits[id] = &splitEntry{s: ss, touched: s.now()}
	s.mu.Unlock()

	s.logger.Info("split session created",
		slog.String("id", id),
		slog.String("image", img.Name),
		slog.Int("width", img.Width),
		slog.Int("height", img.Height),
	)
	return id, ss.View(), nil
}

// GetSplit returns the current view.
func (s *Service) GetSplit(id string) (session.SplitView, error) {
	return s.withSplit(id, false, nil)
}

// DeleteSplit drops the session and cancels its running exports.
func (s *Service) DeleteSplit(id string) error {
	s.mu.Lock()
	_, ok := s.splits[id]
	delete(s.splits, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("split session %s: %w", id, apperr.ErrNotFound)
	}
	s.runner.CancelSession(id)
	s.publish("deleted", ModeSplit, id)
	return nil
}

// ReplaceSplitImage loads a new source, resetting crop, lines and overlays.
func (s *Service) ReplaceSplitImage(id string, img imageio.Image) (session.SplitView, error) {
	return s.withSplit(id, true, func(ss *session.SplitSession) error {
		ss.LoadImage(img)
		return nil
	})
}

// SetSplitGrid lays out an equal cols×rows grid.
func (s *Service) SetSplitGrid(id string, cols, rows int) (session.SplitView, error) {
	return s.withSplit(id, true, func(ss *session.SplitSession) error {
		ss.SetGrid(cols, rows)
		return nil
	})
}

// ApplySplitPreset lays out the grid of a named preset.
func (s *Service) ApplySplitPreset(id, preset string) (session.SplitView, error) {
	p, err := lookupPreset(preset)
	if err != nil {
		return session.SplitView{}, err
	}
	return s.SetSplitGrid(id, p.Cols, p.Rows)
}

// SetSplitPolicy switches the line placement policy.
func (s *Service) SetSplitPolicy(id, policy string) (session.SplitView, error) {
	p, err := grid.ParsePolicy(policy)
	if err != nil {
		return session.SplitView{}, fmt.Errorf("%w: %v", apperr.ErrInvalidGeometry, err)
	}
	return s.withSplit(id, true, func(ss *session.SplitSession) error {
		ss.Grid.SetPolicy(p)
		return nil
	})
}

// AddLine adds one line on axis.
func (s *Service) AddLine(id, axis string) (session.SplitView, error) {
	a, err := parseAxis(axis)
	if err != nil {
		return session.SplitView{}, err
	}
	return s.withSplit(id, true, func(ss *session.SplitSession) error {
		ss.Grid.AddLine(a)
		return nil
	})
}

// RemoveLine removes one line on axis.
func (s *Service) RemoveLine(id, axis string) (session.SplitView, error) {
	a, err := parseAxis(axis)
	if err != nil {
		return session.SplitView{}, err
	}
	return s.withSplit(id, true, func(ss *session.SplitSession) error {
		ss.Grid.RemoveLine(a)
		return nil
	})
}

// DragLine moves one line to pos in frame coordinates.
func (s *Service) DragLine(id, axis string, index int, pos float64) (session.SplitView, error) {
	a, err := parseAxis(axis)
	if err != nil {
		return session.SplitView{}, err
	}
	return s.withSplit(id, true, func(ss *session.SplitSession) error {
		if !ss.Grid.DragLine(a, index, pos) {
			return fmt.Errorf("%s line %d: %w", a, index, apperr.ErrNotFound)
		}
		return nil
	})
}

func parseAxis(s string) (grid.Axis, error) {
	a, err := grid.ParseAxis(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrInvalidGeometry, err)
	}
	return a, nil
}

// SetMargin sets the gap between pieces, clamped to [0, margin_max].
func (s *Service) SetMargin(id string, margin int) (session.SplitView, error) {
	margin = geom.ClampInt(margin, 0, s.cfg.MarginMax)
	return s.withSplit(id, true, func(ss *session.SplitSession) error {
		ss.Margin = margin
		return nil
	})
}

// SetSplitOutput replaces the encoding settings.
func (s *Service) SetSplitOutput(id string, out imageio.Output) (session.SplitView, error) {
	return s.withSplit(id, true, func(ss *session.SplitSession) error {
		ss.Output = out.Normalize("split")
		return nil
	})
}

// CropAction runs start, apply or cancel. Applying a missing or zero-size
// draft leaves the session unchanged.
func (s *Service) CropAction(id, action string) (session.SplitView, error) {
	switch action {
	case CropStart, CropApply, CropCancel:
	default:
		return session.SplitView{}, fmt.Errorf("crop action %q: %w", action, apperr.ErrNotFound)
	}
	return s.withSplit(id, true, func(ss *session.SplitSession) error {
		switch action {
		case CropStart:
			ss.StartCrop()
		case CropApply:
			ss.ApplyCrop()
		case CropCancel:
			ss.CancelCrop()
		}
		return nil
	})
}

// SplitPointer routes one pointer event.
func (s *Service) SplitPointer(id string, ev session.Pointer) (session.SplitView, error) {
	if err := checkPointer(ev); err != nil {
		return session.SplitView{}, err
	}
	return s.withSplit(id, true, func(ss *session.SplitSession) error {
		ss.Pointer(ev)
		return nil
	})
}

func checkPointer(ev session.Pointer) error {
	switch ev.Kind {
	case session.PointerDown, session.PointerMove, session.PointerUp:
	default:
		return fmt.Errorf("%w: pointer kind %q", apperr.ErrInvalidGeometry, ev.Kind)
	}
	if !geom.Finite(ev.X) || !geom.Finite(ev.Y) {
		return fmt.Errorf("%w: pointer coordinates", apperr.ErrInvalidGeometry)
	}
	return nil
}

// SplitRegions returns the current decomposition.
func (s *Service) SplitRegions(id string) ([]region.Region, error) {
	v, err := s.GetSplit(id)
	if err != nil {
		return nil, err
	}
	return v.Regions, nil
}

// SplitPreview renders the interactive preview as PNG.
func (s *Service) SplitPreview(id string) ([]byte, error) {
	v, err := s.GetSplit(id)
	if err != nil {
		return nil, err
	}
	img, err := s.renderer.PreviewSplit(v)
	if err != nil {
		return nil, fmt.Errorf("preview split %s: %w", id, err)
	}
	return imageio.EncodeBytes(img, imageio.Output{Format: imageio.PNG})
}

// ExportSplit starts a background bake of every region at upscale u.
func (s *Service) ExportSplit(ctx context.Context, id string, u int) (export.Status, error) {
	v, err := s.GetSplit(id)
	if err != nil {
		return export.Status{}, err
	}
	if err := s.awaitFonts(ctx, v.Overlays); err != nil {
		return export.Status{}, err
	}
	// Re-read: fonts that arrived while waiting change the measured boxes.
	v, err = s.GetSplit(id)
	if err != nil {
		return export.Status{}, err
	}
	st, err := s.runner.Start(export.Spec{
		SessionID:   id,
		Mode:        ModeSplit,
		ArchiveName: export.SplitArchive,
		Tasks:       s.splitTasks(v, u),
	})
	if err != nil {
		return export.Status{}, fmt.Errorf("export split %s: %w", id, err)
	}
	return st, nil
}

func (s *Service) splitTasks(v session.SplitView, u int) []export.Task {
	tasks := make([]export.Task, len(v.Regions))
	for i, reg := range v.Regions {
		tasks[i] = func(ctx context.Context) (models.Artifact, error) {
			if err := ctx.Err(); err != nil {
				return models.Artifact{}, err
			}
			img, err := s.renderer.BakeRegion(v, reg, u)
			if err != nil {
				return models.Artifact{}, fmt.Errorf("bake %s: %w", reg.Name, err)
			}
			data, err := imageio.EncodeBytes(img, v.Output)
			if err != nil {
				return models.Artifact{}, err
			}
			a := models.NewArtifact(v.Output.FileName(i), v.Output.Format.MIME(), data)
			a.Region = reg.Name
			return a, nil
		}
	}
	return tasks
}
