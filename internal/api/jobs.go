package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gridsplit/internal/apperr"
	"github.com/starford/gridsplit/internal/export"
)

// JobHandler serves export jobs and their artifacts.
type JobHandler struct {
	runner *export.Runner
}

// NewJobHandler creates a handler over runner.
func NewJobHandler(runner *export.Runner) *JobHandler {
	return &JobHandler{runner: runner}
}

// Get handles GET /api/jobs/{id}.
//
//	@Summary		Get export job progress
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job id"
//	@Success		200	{object}	JobResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/jobs/{id} [get]
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.runner.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get job", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Cancel handles DELETE /api/jobs/{id}.
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.runner.Cancel(chi.URLParam(r, "id")); err != nil {
		writeError(w, "cancel job", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Archive handles GET /api/jobs/{id}/archive.
//
//	@Summary		Download every artifact of a completed job as a zip
//	@Tags			jobs
//	@Produce		application/zip
//	@Param			id	path		string	true	"Job id"
//	@Success		200	{file}		binary
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse	"Job has not completed"
//	@Security		BearerAuth
//	@Router			/jobs/{id}/archive [get]
func (h *JobHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	artifacts, name, err := h.runner.Artifacts(id)
	if err != nil {
		writeError(w, "job archive", err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if err := export.WriteZip(w, artifacts); err != nil {
		slog.Error("write archive failed", slog.String("job", id), slog.String("error", err.Error()))
	}
}

// File handles GET /api/jobs/{id}/files/{name}.
func (h *JobHandler) File(w http.ResponseWriter, r *http.Request) {
	artifacts, _, err := h.runner.Artifacts(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "job file", err)
		return
	}
	name := chi.URLParam(r, "name")
	a, ok := export.Find(artifacts, name)
	if !ok {
		writeError(w, "job file", fmt.Errorf("file %s: %w", name, apperr.ErrNotFound))
		return
	}
	w.Header().Set("Content-Type", a.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Name))
	w.Header().Set("ETag", strconv.Quote(a.Checksum))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}
