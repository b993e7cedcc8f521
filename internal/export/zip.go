package export

import (
	"archive/zip"
	"fmt"
	"io"
	"time"

	"github.com/starford/gridsplit/internal/models"
)

// Archive names offered for download.
const (
	SplitArchive = "split_images.zip"
	MergeArchive = "merged_image.zip"
)

// WriteZip bundles artifacts into one zip stream. Images are already
// compressed, so entries are stored rather than deflated.
func WriteZip(w io.Writer, artifacts []models.Artifact) error {
	zw := zip.NewWriter(w)
	for _, a := range artifacts {
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     a.Name,
			Method:   zip.Store,
			Modified: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("zip %s: %w", a.Name, err)
		}
		if _, err := f.Write(a.Data); err != nil {
			return fmt.Errorf("zip %s: %w", a.Name, err)
		}
	}
	return zw.Close()
}

// Find returns the artifact called name.
func Find(artifacts []models.Artifact, name string) (models.Artifact, bool) {
	for _, a := range artifacts {
		if a.Name == name {
			return a, true
		}
	}
	return models.Artifact{}, false
}
