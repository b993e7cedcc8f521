package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gridsplit/internal/imageio"
	"github.com/starford/gridsplit/internal/session"
)

// CreateMerge handles POST /api/merge.
//
//	@Summary		Start an empty merge session
//	@Tags			merge
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NewMergeRequest	false	"Grid and canvas"
//	@Success		201		{object}	MergeResponse
//	@Security		BearerAuth
//	@Router			/merge [post]
func (h *Handler) CreateMerge(w http.ResponseWriter, r *http.Request) {
	var req NewMergeRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	id, v, err := h.svc.CreateMerge(req)
	h.writeMerge(w, http.StatusCreated, id, v, err)
}

// GetMerge handles GET /api/merge/{id}.
func (h *Handler) GetMerge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, err := h.svc.GetMerge(id)
	h.writeMerge(w, http.StatusOK, id, v, err)
}

// DeleteMerge handles DELETE /api/merge/{id}.
func (h *Handler) DeleteMerge(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteMerge(chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete merge", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetMergeGrid handles PUT /api/merge/{id}/grid. Presets are split-only.
func (h *Handler) SetMergeGrid(w http.ResponseWriter, r *http.Request) {
	var req GridRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	id := chi.URLParam(r, "id")
	v, err := h.svc.SetMergeGrid(id, req.Cols, req.Rows)
	h.writeMerge(w, http.StatusOK, id, v, err)
}

// SetCanvas handles PUT /api/merge/{id}/canvas.
func (h *Handler) SetCanvas(w http.ResponseWriter, r *http.Request) {
	var req CanvasRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	id := chi.URLParam(r, "id")
	v, err := h.svc.SetCanvas(id, req.Width, req.Height, req.Background)
	h.writeMerge(w, http.StatusOK, id, v, err)
}

// SetMergeOutput handles PUT /api/merge/{id}/output.
func (h *Handler) SetMergeOutput(w http.ResponseWriter, r *http.Request) {
	var req imageio.Output
	if !decodeJSON(w, r, &req, false) {
		return
	}
	id := chi.URLParam(r, "id")
	v, err := h.svc.SetMergeOutput(id, req)
	h.writeMerge(w, http.StatusOK, id, v, err)
}

// ResetMerge handles POST /api/merge/{id}/reset.
func (h *Handler) ResetMerge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, err := h.svc.ResetMerge(id)
	h.writeMerge(w, http.StatusOK, id, v, err)
}

// LoadCell handles PUT /api/merge/{id}/cells/{index}.
//
//	@Summary		Put an uploaded image into a cell
//	@Tags			merge
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			id		path		string	true	"Session id"
//	@Param			index	path		int		true	"Cell index, row*cols+col"
//	@Param			file	formData	file	true	"Cell image"
//	@Success		200		{object}	MergeResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/merge/{id}/cells/{index} [put]
func (h *Handler) LoadCell(w http.ResponseWriter, r *http.Request) {
	index, ok := intParam(w, r, "index")
	if !ok {
		return
	}
	img, ok := h.readImage(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	v, err := h.svc.LoadCell(id, index, img)
	h.writeMerge(w, http.StatusOK, id, v, err)
}

// RemoveCell handles DELETE /api/merge/{id}/cells/{index}.
func (h *Handler) RemoveCell(w http.ResponseWriter, r *http.Request) {
	index, ok := intParam(w, r, "index")
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	v, err := h.svc.RemoveCell(id, index)
	h.writeMerge(w, http.StatusOK, id, v, err)
}

// CellAction handles POST /api/merge/{id}/cells/{index}/{action}.
func (h *Handler) CellAction(w http.ResponseWriter, r *http.Request) {
	index, ok := intParam(w, r, "index")
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	v, err := h.svc.CellAction(id, index, chi.URLParam(r, "action"))
	h.writeMerge(w, http.StatusOK, id, v, err)
}

// SetCellScale handles PUT /api/merge/{id}/cells/{index}/scale.
func (h *Handler) SetCellScale(w http.ResponseWriter, r *http.Request) {
	index, ok := intParam(w, r, "index")
	if !ok {
		return
	}
	var req ScaleRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	id := chi.URLParam(r, "id")
	v, err := h.svc.SetCellScale(id, index, req.Scale)
	h.writeMerge(w, http.StatusOK, id, v, err)
}

// MergePointer handles POST /api/merge/{id}/pointer.
func (h *Handler) MergePointer(w http.ResponseWriter, r *http.Request) {
	var ev session.Pointer
	if !decodeJSON(w, r, &ev, false) {
		return
	}
	id := chi.URLParam(r, "id")
	v, err := h.svc.MergePointer(id, ev)
	h.writeMerge(w, http.StatusOK, id, v, err)
}

// MergePreview handles GET /api/merge/{id}/preview.
func (h *Handler) MergePreview(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.MergePreview(chi.URLParam(r, "id"))
	writePNG(w, data, err)
}

// ExportMerge handles POST /api/merge/{id}/export.
//
//	@Summary		Bake the canvas in the background
//	@Tags			merge
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Session id"
//	@Param			body	body		ExportRequest	false	"Upscale factor"
//	@Success		202		{object}	JobResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse	"No visible cell holds an image"
//	@Security		BearerAuth
//	@Router			/merge/{id}/export [post]
func (h *Handler) ExportMerge(w http.ResponseWriter, r *http.Request) {
	req := ExportRequest{Upscale: 1}
	if !decodeJSON(w, r, &req, true) {
		return
	}
	st, err := h.svc.ExportMerge(r.Context(), chi.URLParam(r, "id"), req.Upscale)
	if err != nil {
		writeError(w, "export merge", err)
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}
