// Package testutil provides shared test helpers: loggers, fonts, sample
// images and output directories.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"testing"

	"github.com/starford/gridsplit/internal/fonts"
	"github.com/starford/gridsplit/internal/imageio"
	"github.com/starford/gridsplit/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// Fonts returns a registry holding only the fallback family.
func Fonts(t *testing.T) *fonts.Registry {
	t.Helper()
	reg, err := fonts.NewRegistry(Logger())
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

// Gradient returns a w×h image where every pixel has a distinct color.
func Gradient(w, h int) imageio.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	return imageio.Image{Pixels: img, Name: "gradient.png", Format: "png", Width: w, Height: h}
}

// Solid returns a w×h image filled with c.
func Solid(w, h int, c color.Color) imageio.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return imageio.Image{Pixels: img, Name: "solid.png", Format: "png", Width: w, Height: h}
}

// PNG encodes img for upload tests.
func PNG(t *testing.T, img imageio.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.Pixels); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// OutputDir creates a temporary output directory with a storage.Provider.
func OutputDir(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}
