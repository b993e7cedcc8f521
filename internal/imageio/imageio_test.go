package imageio

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/starford/gridsplit/internal/apperr"
)

func solid(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	return img
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, f := range []Format{PNG, JPEG} {
		t.Run(string(f), func(t *testing.T) {
			data, err := EncodeBytes(solid(30, 20), Output{Format: f, Quality: 80})
			if err != nil {
				t.Fatal(err)
			}
			img, err := Decode(bytes.NewReader(data), "x")
			if err != nil {
				t.Fatal(err)
			}
			if img.Width != 30 || img.Height != 20 || img.Format != string(f) {
				t.Fatalf("decoded %dx%d %s", img.Width, img.Height, img.Format)
			}
		})
	}
}

func TestDecodeFailure(t *testing.T) {
	_, err := Decode(strings.NewReader("not an image"), "x")
	if !errors.Is(err, apperr.ErrDecode) {
		t.Fatalf("err = %v", err)
	}
}

func TestOutputNaming(t *testing.T) {
	tests := []struct {
		in    Output
		index int
		want  string
	}{
		{Output{Format: JPEG}, 0, "split_1.jpg"},
		{Output{Format: "JPG", BaseName: "photo"}, 2, "photo_3.jpg"},
		{Output{Format: WEBP, BaseName: "  "}, 9, "split_10.webp"},
		{Output{Format: "gif", BaseName: "a/b"}, 1, "split_2.png"},
	}
	for _, tt := range tests {
		o := tt.in.Normalize("split")
		if got := o.FileName(tt.index); got != tt.want {
			t.Errorf("%+v: got %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeQuality(t *testing.T) {
	tests := map[int]int{0: DefaultQuality, 3: MinQuality, 55: 55, 400: MaxQuality}
	for in, want := range tests {
		if got := (Output{Quality: in}).Normalize("x").Quality; got != want {
			t.Errorf("quality %d: got %d, want %d", in, got, want)
		}
	}
}
