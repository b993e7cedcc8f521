// Package imageio decodes source images and encodes output pieces.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register webp decoding

	"github.com/starford/gridsplit/internal/apperr"
)

// Image is a decoded, immutable source raster.
type Image struct {
	Pixels image.Image
	Name   string
	Format string
	Width  int
	Height int
}

// Decode reads an image in any registered format, applying EXIF
// orientation. Failures wrap apperr.ErrDecode.
func Decode(r io.Reader, name string) (Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Image{}, fmt.Errorf("%w: read: %v", apperr.ErrDecode, err)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", apperr.ErrDecode, err)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", apperr.ErrDecode, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return Image{}, fmt.Errorf("%w: empty image", apperr.ErrDecode)
	}
	return Image{Pixels: img, Name: name, Format: format, Width: b.Dx(), Height: b.Dy()}, nil
}

// Format is an output encoding.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	WEBP Format = "webp"
)

// ParseFormat accepts jpeg, jpg, png and webp in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WEBP, nil
	}
	return "", fmt.Errorf("imageio: unknown format %q", s)
}

// Ext is the file extension without the dot.
func (f Format) Ext() string {
	if f == JPEG {
		return "jpg"
	}
	return string(f)
}

// MIME is the content type.
func (f Format) MIME() string {
	return "image/" + string(f)
}

const (
	MinQuality     = 10
	MaxQuality     = 100
	DefaultQuality = 92
)

// Output holds the encoding settings of a session.
type Output struct {
	Format   Format `json:"format"`
	Quality  int    `json:"quality"`
	BaseName string `json:"base_name"`
}

// Normalize fills defaults and clamps quality into [MinQuality, MaxQuality].
func (o Output) Normalize(defaultBase string) Output {
	f, err := ParseFormat(string(o.Format))
	if err != nil {
		f = PNG
	}
	o.Format = f
	switch {
	case o.Quality == 0:
		o.Quality = DefaultQuality
	case o.Quality < MinQuality:
		o.Quality = MinQuality
	case o.Quality > MaxQuality:
		o.Quality = MaxQuality
	}
	o.BaseName = strings.TrimSpace(o.BaseName)
	if o.BaseName == "" || strings.ContainsAny(o.BaseName, `/\`) {
		o.BaseName = defaultBase
	}
	return o
}

// FileName returns {base}_{index+1}.{ext}.
func (o Output) FileName(index int) string {
	return fmt.Sprintf("%s_%d.%s", o.BaseName, index+1, o.Format.Ext())
}

// Encode writes img in the output format. Quality only affects jpeg and webp.
func Encode(w io.Writer, img image.Image, o Output) error {
	var err error
	switch o.Format {
	case JPEG:
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(o.Quality))
	case WEBP:
		err = webp.Encode(w, img, &webp.Options{Quality: float32(o.Quality)})
	default:
		err = imaging.Encode(w, img, imaging.PNG)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", o.Format, err)
	}
	return nil
}

// EncodeBytes encodes img into a new buffer.
func EncodeBytes(img image.Image, o Output) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, o); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
