package editservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/gridsplit/internal/apperr"
	"github.com/starford/gridsplit/internal/export"
	"github.com/starford/gridsplit/internal/geom"
	"github.com/starford/gridsplit/internal/grid"
	"github.com/starford/gridsplit/internal/imageio"
	"github.com/starford/gridsplit/internal/merge"
	"github.com/starford/gridsplit/internal/models"
	"github.com/starford/gridsplit/internal/overlay"
	"github.com/starford/gridsplit/internal/session"
	"github.com/starford/gridsplit/internal/storage"
)

// TextSpec places one overlay in a one-shot request. Nil style fields keep
// the overlay defaults.
type TextSpec struct {
	Content     string   `json:"content"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	FontSize    float64  `json:"font_size"`
	FontFamily  string   `json:"font_family"`
	Color       *string  `json:"color,omitempty"`
	StrokeColor *string  `json:"stroke_color,omitempty"`
	StrokeWidth *float64 `json:"stroke_width,omitempty"`
	HasStroke   *bool    `json:"has_stroke,omitempty"`
}

// Validate checks the placement.
func (t TextSpec) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Content, validation.Required),
		validation.Field(&t.FontSize, validation.Min(0.0)),
		validation.Field(&t.X, validation.By(finite)),
		validation.Field(&t.Y, validation.By(finite)),
	)
}

func finite(v any) error {
	f, _ := v.(float64)
	if !geom.Finite(f) {
		return errors.New("must be a finite number")
	}
	return nil
}

// SplitRequest describes a one-shot split.
type SplitRequest struct {
	Image      imageio.Image
	Preset     string         `json:"preset"`
	Cols       int            `json:"cols"`
	Rows       int            `json:"rows"`
	Vertical   []float64      `json:"vertical"`
	Horizontal []float64      `json:"horizontal"`
	Crop       *geom.Rect     `json:"crop,omitempty"`
	Margin     int            `json:"margin"`
	Upscale    int            `json:"upscale"`
	Output     imageio.Output `json:"output"`
	Texts      []TextSpec     `json:"texts"`
}

// Validate rejects malformed geometry. Interactive edits clamp instead.
func (r SplitRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Image, validation.By(func(any) error {
			if r.Image.Pixels == nil || r.Image.Width < 1 || r.Image.Height < 1 {
				return errors.New("is required")
			}
			return nil
		})),
		validation.Field(&r.Preset, validation.By(func(any) error {
			if _, ok := grid.LookupPreset(r.Preset); r.Preset != "" && !ok {
				return errors.New("unknown preset")
			}
			return nil
		})),
		validation.Field(&r.Cols, validation.Min(0), validation.Max(grid.MaxCells)),
		validation.Field(&r.Rows, validation.Min(0), validation.Max(grid.MaxCells)),
		validation.Field(&r.Vertical, validation.Length(0, grid.MaxCells-1), validation.Each(validation.By(finite))),
		validation.Field(&r.Horizontal, validation.Length(0, grid.MaxCells-1), validation.Each(validation.By(finite))),
		validation.Field(&r.Crop, validation.By(func(any) error {
			if r.Crop == nil {
				return nil
			}
			c := *r.Crop
			if c.Width <= 0 || c.Height <= 0 || c.X < 0 || c.Y < 0 ||
				c.Right() > float64(r.Image.Width) || c.Bottom() > float64(r.Image.Height) {
				return errors.New("must be a non-empty rectangle inside the image")
			}
			return nil
		})),
		validation.Field(&r.Margin, validation.Min(0)),
		validation.Field(&r.Upscale, validation.Min(0)),
		validation.Field(&r.Texts),
	)
}

// MergeRequest describes a one-shot merge. Images fill cells in row-major
// order.
type MergeRequest struct {
	Images     []imageio.Image
	Cols       int            `json:"cols"`
	Rows       int            `json:"rows"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	Background string         `json:"background"`
	Fit        string         `json:"fit"`
	Upscale    int            `json:"upscale"`
	Output     imageio.Output `json:"output"`
	Texts      []TextSpec     `json:"texts"`
}

// Validate rejects malformed requests.
func (r MergeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Images, validation.Required, validation.By(func(any) error {
			cols, rows := max(r.Cols, 1), max(r.Rows, 1)
			if r.Cols > 0 && r.Rows > 0 && len(r.Images) > cols*rows {
				return fmt.Errorf("at most %d images fit a %dx%d grid", cols*rows, cols, rows)
			}
			return nil
		})),
		validation.Field(&r.Cols, validation.Min(0), validation.Max(merge.MaxGrid)),
		validation.Field(&r.Rows, validation.Min(0), validation.Max(merge.MaxGrid)),
		validation.Field(&r.Width, validation.When(r.Width != 0, validation.Min(merge.MinCanvas), validation.Max(merge.MaxCanvas))),
		validation.Field(&r.Height, validation.When(r.Height != 0, validation.Min(merge.MinCanvas), validation.Max(merge.MaxCanvas))),
		validation.Field(&r.Fit, validation.In("", CellCenter, CellFill, CellFit)),
		validation.Field(&r.Upscale, validation.Min(0)),
		validation.Field(&r.Texts),
	)
}

// Result is the outcome of a one-shot request.
type Result struct {
	Job         export.Status     `json:"job"`
	ArchiveName string            `json:"archive_name"`
	Artifacts   []models.Artifact `json:"artifacts"`
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", apperr.ErrInvalidGeometry, err)
}

// Split bakes req without keeping a session. The job still runs on the
// export runner, so it reports progress like an interactive export.
func (s *Service) Split(ctx context.Context, req SplitRequest) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, invalid(err)
	}
	// Explicit shape or lines win over the preset; a missing axis is one piece.
	cols, rows := req.Cols, req.Rows
	if n := len(req.Vertical); n > 0 {
		cols = n + 1
	}
	if n := len(req.Horizontal); n > 0 {
		rows = n + 1
	}
	if cols == 0 && rows == 0 {
		id := req.Preset
		if id == "" {
			id = s.cfg.SplitPreset
		}
		p, err := lookupPreset(id)
		if err != nil {
			return Result{}, err
		}
		cols, rows = p.Cols, p.Rows
	}
	cols, rows = max(cols, 1), max(rows, 1)

	ss := session.NewSplit(req.Image, session.SplitOptions{
		Cols:     cols,
		Rows:     rows,
		Policy:   grid.PolicyFree,
		Margin:   min(req.Margin, s.cfg.MarginMax),
		Output:   mergeOutput(s.cfg.Output, req.Output),
		Measurer: s.measurer(),
	})
	if req.Crop != nil {
		c := *req.Crop
		ss.StartCrop()
		ss.Crop.Begin(geom.Pt(c.X, c.Y))
		ss.Crop.GrowTo(geom.Pt(c.Right(), c.Bottom()))
		ss.ApplyCrop()
	}
	for i, x := range req.Vertical {
		ss.Grid.DragLine(grid.Vertical, i, x)
	}
	for i, y := range req.Horizontal {
		ss.Grid.DragLine(grid.Horizontal, i, y)
	}
	s.placeTexts(ss.Overlays, req.Texts)

	v := ss.View()
	if err := s.awaitFonts(ctx, v.Overlays); err != nil {
		return Result{}, err
	}
	v = ss.View()
	return s.runBatch(ctx, export.Spec{
		Mode:        ModeSplit,
		ArchiveName: export.SplitArchive,
		Tasks:       s.splitTasks(v, req.Upscale),
	})
}

// Merge composes req without keeping a session.
func (s *Service) Merge(ctx context.Context, req MergeRequest) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, invalid(err)
	}
	cols, rows := req.Cols, req.Rows
	if cols == 0 || rows == 0 {
		cols, rows = autoShape(len(req.Images), cols, rows)
	}
	ms := session.NewMerge(s.mergeOptions(MergeParams{
		Cols:       cols,
		Rows:       rows,
		Width:      req.Width,
		Height:     req.Height,
		Background: req.Background,
	}))
	ms.Output = mergeOutput(s.cfg.Output, req.Output).Normalize("merged")
	for i, img := range req.Images {
		if !ms.Load(i, img) {
			return Result{}, invalid(fmt.Errorf("image %d does not fit the grid", i))
		}
		switch req.Fit {
		case CellFit:
			ms.Grid.Fit(i)
		case CellCenter:
			ms.Grid.Center(i)
		}
	}
	s.placeTexts(ms.Overlays, req.Texts)

	v := ms.View()
	if err := s.awaitFonts(ctx, v.Overlays); err != nil {
		return Result{}, err
	}
	v = ms.View()
	if !v.Occupied() {
		return Result{}, apperr.ErrEmptyExport
	}
	return s.runBatch(ctx, export.Spec{
		Mode:        ModeMerge,
		ArchiveName: export.MergeArchive,
		Tasks:       []export.Task{s.mergeTask(v, req.Upscale)},
	})
}

// autoShape picks the smallest near-square grid holding n images when a
// dimension is missing.
func autoShape(n, cols, rows int) (int, int) {
	n = max(n, 1)
	switch {
	case cols > 0:
		return cols, min((n+cols-1)/cols, merge.MaxGrid)
	case rows > 0:
		return min((n+rows-1)/rows, merge.MaxGrid), rows
	}
	c := 1
	for c*c < n {
		c++
	}
	return min(c, merge.MaxGrid), min((n+c-1)/c, merge.MaxGrid)
}

func (s *Service) placeTexts(set *overlay.Set, texts []TextSpec) {
	for _, t := range texts {
		n := NewOverlay{Content: t.Content, FontSize: t.FontSize, FontFamily: t.FontFamily}.withDefaults(s.cfg.DefaultFamily)
		i := set.Add(n.Content, n.FontSize, n.FontFamily)
		x, y := t.X, t.Y
		set.Update(i, overlay.Patch{
			X:           &x,
			Y:           &y,
			Color:       t.Color,
			StrokeColor: t.StrokeColor,
			StrokeWidth: t.StrokeWidth,
			HasStroke:   t.HasStroke,
		})
	}
	set.Select(-1)
}

func mergeOutput(def, req imageio.Output) imageio.Output {
	out := def
	if req.Format != "" {
		out.Format = req.Format
	}
	if req.Quality != 0 {
		out.Quality = req.Quality
	}
	if req.BaseName != "" {
		out.BaseName = req.BaseName
	}
	return out
}

func (s *Service) runBatch(ctx context.Context, spec export.Spec) (Result, error) {
	spec.SessionID = "batch-" + newID()
	st, err := s.runner.Start(spec)
	if err != nil {
		return Result{}, err
	}
	st, err = s.runner.Wait(ctx, st.ID)
	if err != nil {
		_ = s.runner.Cancel(st.ID)
		return Result{Job: st}, err
	}
	switch st.State {
	case export.Completed:
	case export.Cancelled:
		return Result{Job: st}, context.Canceled
	default:
		return Result{Job: st}, fmt.Errorf("%s job %s failed: %s", spec.Mode, st.ID, st.Error)
	}
	artifacts, archive, err := s.runner.Artifacts(st.ID)
	if err != nil {
		return Result{Job: st}, err
	}
	st.Artifacts = nil
	return Result{Job: st, ArchiveName: archive, Artifacts: artifacts}, nil
}

// Saved lists what SaveResult wrote, relative to the store root.
type Saved struct {
	Dir     string   `json:"dir"`
	Files   []string `json:"files"`
	Archive string   `json:"archive,omitempty"`
	Regions []string `json:"regions,omitempty"`
	JobID   string   `json:"job_id"`
}

// SaveResult writes the artifacts of res under dir, plus their zip archive
// when withArchive is set.
func SaveResult(store storage.Provider, dir string, res Result, withArchive bool) (Saved, error) {
	out := Saved{Dir: dir, JobID: res.Job.ID}
	if _, err := store.Save(dir, res.Artifacts); err != nil {
		return out, err
	}
	for _, a := range res.Artifacts {
		out.Files = append(out.Files, path.Join(dir, a.Name))
		if a.Region != "" {
			out.Regions = append(out.Regions, a.Region)
		}
	}
	if !withArchive {
		return out, nil
	}
	var buf bytes.Buffer
	if err := export.WriteZip(&buf, res.Artifacts); err != nil {
		return out, err
	}
	out.Archive = path.Join(dir, res.ArchiveName)
	if err := store.Write(out.Archive, buf.Bytes()); err != nil {
		return out, err
	}
	return out, nil
}
