package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gridsplit/internal/editservice"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// AuthEnabled controls whether Bearer token auth is enforced.
	AuthEnabled bool
	Token       string
	// SSE, if non-nil, is mounted at GET /events inside the auth group.
	SSE       http.Handler
	MaxUpload int64
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *editservice.Service, opts RouterOptions) chi.Router {
	h := NewHandler(svc, opts.MaxUpload)
	jh := NewJobHandler(svc.Runner())

	r := chi.NewRouter()
	r.Use(AuthMiddleware(opts.AuthEnabled, opts.Token))

	r.Get("/presets", h.ListPresets)
	r.Get("/fonts", h.ListFonts)

	r.Route("/split", func(r chi.Router) {
		r.Post("/", h.CreateSplit)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSplit)
			r.Delete("/", h.DeleteSplit)
			r.Put("/image", h.ReplaceSplitImage)
			r.Put("/grid", h.SetSplitGrid)
			r.Put("/policy", h.SetSplitPolicy)
			r.Post("/lines/{axis}", h.AddLine)
			r.Delete("/lines/{axis}", h.RemoveLine)
			r.Put("/lines/{axis}/{index}", h.DragLine)
			r.Put("/margin", h.SetMargin)
			r.Put("/output", h.SetSplitOutput)
			r.Post("/crop/{action}", h.CropAction)
			r.Post("/pointer", h.SplitPointer)
			r.Get("/regions", h.SplitRegions)
			r.Get("/preview", h.SplitPreview)
			r.Post("/export", h.ExportSplit)
			r.Post("/overlays", h.AddOverlay(editservice.ModeSplit))
			r.Patch("/overlays/{index}", h.UpdateOverlay(editservice.ModeSplit))
			r.Delete("/overlays/{index}", h.RemoveOverlay(editservice.ModeSplit))
		})
	})

	r.Route("/merge", func(r chi.Router) {
		r.Post("/", h.CreateMerge)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetMerge)
			r.Delete("/", h.DeleteMerge)
			r.Put("/grid", h.SetMergeGrid)
			r.Put("/canvas", h.SetCanvas)
			r.Put("/output", h.SetMergeOutput)
			r.Post("/reset", h.ResetMerge)
			r.Put("/cells/{index}", h.LoadCell)
			r.Delete("/cells/{index}", h.RemoveCell)
			r.Put("/cells/{index}/scale", h.SetCellScale)
			r.Post("/cells/{index}/{action}", h.CellAction)
			r.Post("/pointer", h.MergePointer)
			r.Get("/preview", h.MergePreview)
			r.Post("/export", h.ExportMerge)
			r.Post("/overlays", h.AddOverlay(editservice.ModeMerge))
			r.Patch("/overlays/{index}", h.UpdateOverlay(editservice.ModeMerge))
			r.Delete("/overlays/{index}", h.RemoveOverlay(editservice.ModeMerge))
		})
	})

	r.Route("/jobs/{id}", func(r chi.Router) {
		r.Get("/", jh.Get)
		r.Delete("/", jh.Cancel)
		r.Get("/archive", jh.Archive)
		r.Get("/files/{name}", jh.File)
	})

	// SSE endpoint (protected by same auth middleware).
	if opts.SSE != nil {
		r.Get("/events", opts.SSE.ServeHTTP)
	}

	return r
}
