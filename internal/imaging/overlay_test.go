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

// createInMemoryImage creates an in-memory test image
func createInMemoryImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func decodeOverlay(t *testing.T, result *OverlayResult) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode png: %v", err)
	}
	return img
}

func TestOverlayRegions(t *testing.T) {
	gray := color.RGBA{128, 128, 128, 255}
	img := createInMemoryImage(200, 100, gray)
	regions := []detection.Region{
		{Class: detection.Wheel, X: 0.5, Y: 0.5, Width: 0.5, Height: 0.5},
		{Class: detection.Door, X: 2, Y: 2, Width: 0.1, Height: 0.1}, // outside
	}

	result, err := OverlayRegions(img, regions, 2)
	if err != nil {
		t.Fatalf("OverlayRegions failed: %v", err)
	}

	if result.Width != 200 || result.Height != 100 {
		t.Errorf("dimensions: got %dx%d, want 200x100", result.Width, result.Height)
	}
	if result.Regions != 1 {
		t.Errorf("Regions: got %d, want 1", result.Regions)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}

	out := decodeOverlay(t, result)
	wheel := ClassColors[detection.Wheel]

	// Wheel box spans (50,25)-(150,75); the right edge is two pixels wide.
	for _, x := range []int{148, 149} {
		r, g, b, _ := out.At(x, 60).RGBA()
		if uint8(r>>8) != wheel.R || uint8(g>>8) != wheel.G || uint8(b>>8) != wheel.B {
			t.Errorf("edge pixel (%d,60) = (%d,%d,%d), want wheel color", x, r>>8, g>>8, b>>8)
		}
	}

	// Inside and outside the box the photo is untouched.
	for _, p := range []image.Point{{100, 60}, {10, 90}, {160, 50}} {
		r, g, b, _ := out.At(p.X, p.Y).RGBA()
		if uint8(r>>8) != 128 || uint8(g>>8) != 128 || uint8(b>>8) != 128 {
			t.Errorf("pixel %v = (%d,%d,%d), want gray", p, r>>8, g>>8, b>>8)
		}
	}
}

func TestOverlayRegions_Selection(t *testing.T) {
	img := createInMemoryImage(64, 64, color.White)
	sel := detection.Select(nil, detection.ModeImage)

	result, err := OverlayRegions(img, SelectionRegions(sel), 0)
	if err != nil {
		t.Fatalf("OverlayRegions failed: %v", err)
	}

	// Placeholders sit at the origin and still map to a corner box.
	if result.Regions != detection.NumClasses {
		t.Errorf("Regions: got %d, want %d", result.Regions, detection.NumClasses)
	}
}

func TestOverlayRegions_DoesNotModifySource(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 20, 20))
	regions := []detection.Region{{Class: detection.Light, X: 0.5, Y: 0.5, Width: 1, Height: 1}}

	if _, err := OverlayRegions(src, regions, 3); err != nil {
		t.Fatalf("OverlayRegions failed: %v", err)
	}
	if src.RGBAAt(0, 0) != (color.RGBA{}) {
		t.Error("source image was modified")
	}
}

func TestClassColors(t *testing.T) {
	seen := make(map[color.RGBA]detection.Class)
	for _, c := range detection.Classes() {
		col := ClassColors[c]
		if col.A != 255 {
			t.Errorf("%s color is not opaque: %v", c, col)
		}
		if prev, dup := seen[col]; dup {
			t.Errorf("%s and %s share color %v", prev, c, col)
		}
		seen[col] = c
	}
	if _, dup := seen[unknownClassColor]; dup {
		t.Error("unknown class color collides with a class color")
	}
}

func TestDrawLabel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))

	fg := color.RGBA{255, 255, 255, 255}
	bg := color.RGBA{0, 0, 0, 255}
	drawLabel(img, 10, 10, "Wheel", fg, bg)

	// Verify something was drawn (not empty)
	hasWhite := false
	hasBlack := false
	for y := 10; y < 25; y++ {
		for x := 10; x < 47; x++ {
			c := img.RGBAAt(x, y)
			if c.R > 200 {
				hasWhite = true
			}
			if c.A == 255 && c.R < 50 {
				hasBlack = true
			}
		}
	}

	if !hasWhite {
		t.Error("label should have white pixels (text)")
	}
	if !hasBlack {
		t.Error("label should have dark pixels (background)")
	}
}

func TestDrawLabel_BoundsCheck(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))

	fg := color.RGBA{255, 255, 255, 255}
	bg := color.RGBA{0, 0, 0, 180}

	// These should not panic even if label extends past bounds
	drawLabel(img, 15, 15, "Sideglass", fg, bg)
	drawLabel(img, 0, 0, "", fg, bg)
	drawLabel(img, -5, -5, "Door", fg, bg)
}
