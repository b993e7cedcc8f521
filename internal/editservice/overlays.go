package editservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/gridsplit/internal/apperr"
	"github.com/starford/gridsplit/internal/overlay"
	"github.com/starford/gridsplit/internal/session"
)

// NewOverlay is the request to add a text overlay.
type NewOverlay struct {
	Content    string  `json:"content"`
	FontSize   float64 `json:"font_size"`
	FontFamily string  `json:"font_family"`
}

func (n NewOverlay) withDefaults(fallback string) NewOverlay {
	if n.FontSize <= 0 {
		n.FontSize = overlay.DefaultFontSize
	}
	if strings.TrimSpace(n.FontFamily) == "" {
		n.FontFamily = fallback
	}
	return n
}

// AddOverlay adds an overlay to a session of mode and returns the view and
// the new index. A family that is not loaded yet renders with the fallback
// face until it arrives; the font.loaded hook then asks for a redraw.
func (s *Service) AddOverlay(mode, id string, n NewOverlay) (any, int, error) {
	n = n.withDefaults(s.cfg.DefaultFamily)
	if !s.fonts.Has(n.FontFamily) {
		s.logger.Debug("overlay font pending", slog.String("family", n.FontFamily), slog.String("id", id))
	}
	index := -1
	add := func(set *overlay.Set) error {
		index = set.Add(n.Content, n.FontSize, n.FontFamily)
		return nil
	}
	v, err := s.overlayOp(mode, id, add)
	return v, index, err
}

// UpdateOverlay patches overlay index.
func (s *Service) UpdateOverlay(mode, id string, index int, p overlay.Patch) (any, error) {
	return s.overlayOp(mode, id, func(set *overlay.Set) error {
		if !set.Update(index, p) {
			return fmt.Errorf("overlay %d: %w", index, apperr.ErrNotFound)
		}
		return nil
	})
}

// RemoveOverlay deletes overlay index.
func (s *Service) RemoveOverlay(mode, id string, index int) (any, error) {
	return s.overlayOp(mode, id, func(set *overlay.Set) error {
		if !set.Remove(index) {
			return fmt.Errorf("overlay %d: %w", index, apperr.ErrNotFound)
		}
		return nil
	})
}

func (s *Service) overlayOp(mode, id string, fn func(*overlay.Set) error) (any, error) {
	switch mode {
	case ModeSplit:
		return s.withSplit(id, true, func(ss *session.SplitSession) error { return fn(ss.Overlays) })
	case ModeMerge:
		return s.withMerge(id, true, func(ms *session.MergeSession) error { return fn(ms.Overlays) })
	}
	return nil, fmt.Errorf("mode %q: %w", mode, apperr.ErrNotFound)
}

// awaitFonts gives every pending overlay family up to FontWait to load
// before a bake. Families still missing bake with the fallback face.
func (s *Service) awaitFonts(ctx context.Context, overlays []session.OverlayView) error {
	seen := map[string]bool{}
	for _, o := range overlays {
		k := strings.ToLower(o.FontFamily)
		if seen[k] || s.fonts.Has(o.FontFamily) {
			continue
		}
		seen[k] = true

		wctx, cancel := context.WithTimeout(ctx, s.cfg.FontWait)
		ok := s.fonts.EnsureLoaded(wctx, o.FontFamily)
		cancel()
		if err := ctx.Err(); err != nil {
			return err
		}
		if !ok {
			s.logger.Warn("font not available, using fallback", slog.String("family", o.FontFamily))
		}
	}
	return nil
}
