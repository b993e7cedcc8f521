package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gridsplit/internal/editservice"
	"github.com/starford/gridsplit/internal/grid"
	"github.com/starford/gridsplit/internal/imageio"
	"github.com/starford/gridsplit/internal/overlay"
	"github.com/starford/gridsplit/internal/session"
)

// Handler holds API route handlers.
type Handler struct {
	svc       *editservice.Service
	maxUpload int64
}

// NewHandler creates a new Handler. maxUpload <= 0 selects DefaultMaxUpload.
func NewHandler(svc *editservice.Service, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &Handler{svc: svc, maxUpload: maxUpload}
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(name+" must be an integer"))
		return 0, false
	}
	return v, true
}

func (h *Handler) writeSplit(w http.ResponseWriter, status int, id string, v session.SplitView, err error) {
	if err != nil {
		writeError(w, "split", err)
		return
	}
	writeJSON(w, status, SplitResponse{ID: id, SplitView: v})
}

func (h *Handler) writeMerge(w http.ResponseWriter, status int, id string, v session.MergeView, err error) {
	if err != nil {
		writeError(w, "merge", err)
		return
	}
	writeJSON(w, status, MergeResponse{ID: id, MergeView: v, EffectiveBackground: editservice.MergeBackground(v)})
}

// sessionBody wraps a view returned by a mode-agnostic operation.
func sessionBody(id string, v any) any {
	switch v := v.(type) {
	case session.SplitView:
		return SplitResponse{ID: id, SplitView: v}
	case session.MergeView:
		return MergeResponse{ID: id, MergeView: v, EffectiveBackground: editservice.MergeBackground(v)}
	}
	return v
}

// ListPresets handles GET /api/presets.
//
//	@Summary		List built-in grid presets
//	@Tags			presets
//	@Produce		json
//	@Success		200	{object}	PresetsResponse
//	@Security		BearerAuth
//	@Router			/presets [get]
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PresetsResponse{Presets: grid.Presets, Default: grid.DefaultPreset})
}

// ListFonts handles GET /api/fonts.
func (h *Handler) ListFonts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FontsResponse{Families: h.svc.Fonts().Families()})
}

// CreateSplit handles POST /api/split.
//
//	@Summary		Start a split session from an uploaded image
//	@Tags			split
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Source image"
//	@Param			preset	formData	string	false	"Grid preset id"
//	@Success		201		{object}	SplitResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/split [post]
func (h *Handler) CreateSplit(w http.ResponseWriter, r *http.Request) {
	img, ok := h.readImage(w, r)
	if !ok {
		return
	}
	id, v, err := h.svc.CreateSplit(img, r.FormValue("preset"))
	h.writeSplit(w, http.StatusCreated, id, v, err)
}

// GetSplit handles GET /api/split/{id}.
func (h *Handler) GetSplit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, err := h.svc.GetSplit(id)
	h.writeSplit(w, http.StatusOK, id, v, err)
}

// DeleteSplit handles DELETE /api/split/{id}.
//
//	@Summary		End a split session and cancel its exports
//	@Tags			split
//	@Param			id	path	string	true	"Session id"
//	@Success		204	"Session deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/split/{id} [delete]
func (h *Handler) DeleteSplit(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteSplit(chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete split", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReplaceSplitImage handles PUT /api/split/{id}/image.
func (h *Handler) ReplaceSplitImage(w http.ResponseWriter, r *http.Request) {
	img, ok := h.readImage(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	v, err := h.svc.ReplaceSplitImage(id, img)
	h.writeSplit(w, http.StatusOK, id, v, err)
}

// SetSplitGrid handles PUT /api/split/{id}/grid.
//
//	@Summary		Lay out an equal grid or apply a preset
//	@Tags			split
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Session id"
//	@Param			body	body		GridRequest	true	"Grid shape"
//	@Success		200		{object}	SplitResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/split/{id}/grid [put]
func (h *Handler) SetSplitGrid(w http.ResponseWriter, r *http.Request) {
	var req GridRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	id := chi.URLParam(r, "id")
	var (
		v   session.SplitView
		err error
	)
	if req.Preset != "" {
		v, err = h.svc.ApplySplitPreset(id, req.Preset)
	} else {
		v, err = h.svc.SetSplitGrid(id, req.Cols, req.Rows)
	}
	h.writeSplit(w, http.StatusOK, id, v, err)
}

// SetSplitPolicy handles PUT /api/split/{id}/policy.
func (h *Handler) SetSplitPolicy(w http.ResponseWriter, r *http.Request) {
	var req PolicyRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	id := chi.URLParam(r, "id")
	v, err := h.svc.SetSplitPolicy(id, req.Policy)
	h.writeSplit(w, http.StatusOK, id, v, err)
}

// AddLine handles POST /api/split/{id}/lines/{axis}.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, err := h.svc.AddLine(id, chi.URLParam(r, "axis"))
	h.writeSplit(w, http.StatusOK, id, v, err)
}

// RemoveLine handles DELETE /api/split/{id}/lines/{axis}.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, err := h.svc.RemoveLine(id, chi.URLParam(r, "axis"))
	h.writeSplit(w, http.StatusOK, id, v, err)
}

// DragLine handles PUT /api/split/{id}/lines/{axis}/{index}.
func (h *Handler) DragLine(w http.ResponseWriter, r *http.Request) {
	index, ok := intParam(w, r, "index")
	if !ok {
		return
	}
	var req LineRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	id := chi.URLParam(r, "id")
	v, err := h.svc.DragLine(id, chi.URLParam(r, "axis"), index, req.Pos)
	h.writeSplit(w, http.StatusOK, id, v, err)
}

// SetMargin handles PUT /api/split/{id}/margin.
func (h *Handler) SetMargin(w http.ResponseWriter, r *http.Request) {
	var req MarginRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	id := chi.URLParam(r, "id")
	v, err := h.svc.SetMargin(id, req.Margin)
	h.writeSplit(w, http.StatusOK, id, v, err)
}

// SetSplitOutput handles PUT /api/split/{id}/output.
func (h *Handler) SetSplitOutput(w http.ResponseWriter, r *http.Request) {
	var req imageio.Output
	if !decodeJSON(w, r, &req, false) {
		return
	}
	id := chi.URLParam(r, "id")
	v, err := h.svc.SetSplitOutput(id, req)
	h.writeSplit(w, http.StatusOK, id, v, err)
}

// CropAction handles POST /api/split/{id}/crop/{action}.
//
//	@Summary		Start, apply or cancel the crop rectangle
//	@Tags			split
//	@Produce		json
//	@Param			id		path		string	true	"Session id"
//	@Param			action	path		string	true	"Crop action"	Enums(start, apply, cancel)
//	@Success		200		{object}	SplitResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/split/{id}/crop/{action} [post]
func (h *Handler) CropAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, err := h.svc.CropAction(id, chi.URLParam(r, "action"))
	h.writeSplit(w, http.StatusOK, id, v, err)
}

// SplitPointer handles POST /api/split/{id}/pointer.
func (h *Handler) SplitPointer(w http.ResponseWriter, r *http.Request) {
	var ev session.Pointer
	if !decodeJSON(w, r, &ev, false) {
		return
	}
	id := chi.URLParam(r, "id")
	v, err := h.svc.SplitPointer(id, ev)
	h.writeSplit(w, http.StatusOK, id, v, err)
}

// SplitRegions handles GET /api/split/{id}/regions.
func (h *Handler) SplitRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.svc.SplitRegions(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "split regions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"regions": regions})
}

// SplitPreview handles GET /api/split/{id}/preview.
func (h *Handler) SplitPreview(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.SplitPreview(chi.URLParam(r, "id"))
	writePNG(w, data, err)
}

func writePNG(w http.ResponseWriter, data []byte, err error) {
	if err != nil {
		writeError(w, "preview", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ExportSplit handles POST /api/split/{id}/export.
//
//	@Summary		Bake every region in the background
//	@Tags			split
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Session id"
//	@Param			body	body		ExportRequest	false	"Upscale factor"
//	@Success		202		{object}	JobResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/split/{id}/export [post]
func (h *Handler) ExportSplit(w http.ResponseWriter, r *http.Request) {
	req := ExportRequest{Upscale: 1}
	if !decodeJSON(w, r, &req, true) {
		return
	}
	st, err := h.svc.ExportSplit(r.Context(), chi.URLParam(r, "id"), req.Upscale)
	if err != nil {
		writeError(w, "export split", err)
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

// AddOverlay handles POST /api/{mode}/{id}/overlays.
//
//	@Summary		Add a text overlay
//	@Tags			overlays
//	@Accept			json
//	@Produce		json
//	@Param			mode	path		string					true	"Session mode"	Enums(split, merge)
//	@Param			id		path		string					true	"Session id"
//	@Param			body	body		editservice.NewOverlay	true	"Overlay"
//	@Success		201		{object}	OverlayResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/{mode}/{id}/overlays [post]
func (h *Handler) AddOverlay(mode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req editservice.NewOverlay
		if !decodeJSON(w, r, &req, false) {
			return
		}
		id := chi.URLParam(r, "id")
		v, index, err := h.svc.AddOverlay(mode, id, req)
		if err != nil {
			writeError(w, "add overlay", err)
			return
		}
		writeJSON(w, http.StatusCreated, OverlayResponse{Index: index, Session: sessionBody(id, v)})
	}
}

// UpdateOverlay handles PATCH /api/{mode}/{id}/overlays/{index}.
func (h *Handler) UpdateOverlay(mode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := intParam(w, r, "index")
		if !ok {
			return
		}
		var p overlay.Patch
		if !decodeJSON(w, r, &p, false) {
			return
		}
		id := chi.URLParam(r, "id")
		v, err := h.svc.UpdateOverlay(mode, id, index, p)
		if err != nil {
			writeError(w, "update overlay", err)
			return
		}
		writeJSON(w, http.StatusOK, sessionBody(id, v))
	}
}

// RemoveOverlay handles DELETE /api/{mode}/{id}/overlays/{index}.
func (h *Handler) RemoveOverlay(mode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := intParam(w, r, "index")
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		v, err := h.svc.RemoveOverlay(mode, id, index)
		if err != nil {
			writeError(w, "remove overlay", err)
			return
		}
		writeJSON(w, http.StatusOK, sessionBody(id, v))
	}
}
