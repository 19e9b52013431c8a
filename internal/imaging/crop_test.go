package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/ironsheep/carpart-tools/internal/detection"
)

// newQuadrantImage returns an image with red top-left, green top-right,
// blue bottom-left and white bottom-right quadrants.
func newQuadrantImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.RGBA
			switch {
			case x < width/2 && y < height/2:
				c = color.RGBA{255, 0, 0, 255}
			case x >= width/2 && y < height/2:
				c = color.RGBA{0, 255, 0, 255}
			case x < width/2:
				c = color.RGBA{0, 0, 255, 255}
			default:
				c = color.RGBA{255, 255, 255, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestPixelRect(t *testing.T) {
	bounds := image.Rect(0, 0, 200, 100)

	tests := []struct {
		name   string
		region detection.Region
		want   image.Rectangle
	}{
		{"centred", detection.Region{X: 0.5, Y: 0.5, Width: 0.5, Height: 0.5}, image.Rect(50, 25, 150, 75)},
		{"full frame", detection.Region{X: 0.5, Y: 0.5, Width: 1, Height: 1}, image.Rect(0, 0, 200, 100)},
		{"clamped at edge", detection.Region{X: 0.875, Y: 0.5, Width: 0.5, Height: 0.25}, image.Rect(125, 37, 200, 63)},
		{"placeholder at origin", detection.Region{Width: 0.125, Height: 0.125}, image.Rect(0, 0, 13, 7)},
		{"outside", detection.Region{X: 2, Y: 2, Width: 0.1, Height: 0.1}, image.Rectangle{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PixelRect(tt.region, bounds)
			if tt.want.Empty() {
				if !got.Empty() {
					t.Errorf("got %v, want empty", got)
				}
				return
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPixelRect_OffsetBounds(t *testing.T) {
	bounds := image.Rect(10, 20, 110, 120)
	got := PixelRect(detection.Region{X: 0.5, Y: 0.5, Width: 0.25, Height: 0.25}, bounds)
	want := image.Rect(47, 57, 73, 83)
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCropRegion(t *testing.T) {
	img := newQuadrantImage(100, 100)
	region := detection.Region{Class: detection.Wheel, X: 0.75, Y: 0.25, Width: 0.5, Height: 0.5}

	result, err := CropRegion(img, region, 1.0)
	if err != nil {
		t.Fatalf("CropRegion failed: %v", err)
	}
	if result.Width != 50 || result.Height != 50 {
		t.Errorf("dimensions: got %dx%d, want 50x50", result.Width, result.Height)
	}
	if result.Class != "Wheel" {
		t.Errorf("Class: got %s, want Wheel", result.Class)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}

	raw, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to decode png: %v", err)
	}
	r, g, b, _ := decoded.At(10, 10).RGBA()
	if r>>8 != 0 || g>>8 != 255 || b>>8 != 0 {
		t.Errorf("crop should be the green quadrant, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestCropRegion_Scale(t *testing.T) {
	img := newQuadrantImage(100, 100)
	region := detection.Region{X: 0.5, Y: 0.5, Width: 0.5, Height: 0.5}

	tests := []struct {
		scale float64
		want  int
	}{
		{2.0, 100},
		{0.5, 25},
		{0, 50},
		{-1, 50},
	}
	for _, tt := range tests {
		result, err := CropRegion(img, region, tt.scale)
		if err != nil {
			t.Fatalf("CropRegion(scale=%v) failed: %v", tt.scale, err)
		}
		if result.Width != tt.want || result.Height != tt.want {
			t.Errorf("scale %v: got %dx%d, want %dx%d", tt.scale, result.Width, result.Height, tt.want, tt.want)
		}
	}
}

func TestCropRegion_Outside(t *testing.T) {
	img := newQuadrantImage(50, 50)
	_, err := CropRegion(img, detection.Region{X: 3, Y: 3, Width: 0.1, Height: 0.1}, 1)
	if err == nil {
		t.Error("CropRegion should fail for a region outside the image")
	}
}
