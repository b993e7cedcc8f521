package api

import (
	"fmt"
	"net/http"

	"github.com/starford/gridsplit/internal/imageio"
)

// DefaultMaxUpload bounds multipart image uploads.
const DefaultMaxUpload = 50 << 20 // 50 MB

// readImage decodes the multipart "file" field. It writes the error
// response itself and reports false on failure.
func (h *Handler) readImage(w http.ResponseWriter, r *http.Request) (imageio.Image, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return imageio.Image{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return imageio.Image{}, false
	}
	defer file.Close()

	img, err := imageio.Decode(file, header.Filename)
	if err != nil {
		writeError(w, "decode upload", fmt.Errorf("%s: %w", header.Filename, err))
		return imageio.Image{}, false
	}
	return img, true
}
