package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/carpart-tools/internal/detection"
)

// CropResult contains a cropped region encoded as base64 PNG.
type CropResult struct {
	Class       string          `json:"class"`
	Bounds      image.Rectangle `json:"bounds"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	ImageBase64 string          `json:"image_base64"`
	MimeType    string          `json:"mime_type"`
}

// PixelRect converts a normalized region (centre, size) into a pixel
// rectangle inside bounds.
//
// The rectangle is clamped to the image. A placeholder region at the origin
// maps to a small box in the top-left corner. An empty rectangle is returned
// when the region lies entirely outside the image.
func PixelRect(r detection.Region, bounds image.Rectangle) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())

	x1 := int(math.Floor((r.X - r.Width/2) * w))
	y1 := int(math.Floor((r.Y - r.Height/2) * h))
	x2 := int(math.Ceil((r.X + r.Width/2) * w))
	y2 := int(math.Ceil((r.Y + r.Height/2) * h))

	rect := image.Rect(x1, y1, x2, y2).Add(bounds.Min)
	return rect.Intersect(bounds)
}

// CropRegion extracts the pixels covered by a normalized region.
//
// Parameters:
//   - img: The source photo.
//   - r: Region in normalized coordinates (as produced by detection.Select).
//   - scale: Optional resize factor applied to the crop; values <= 0 or 1.0
//     leave the crop at native resolution.
//
// Returns an error when the region does not overlap the image.
func CropRegion(img image.Image, r detection.Region, scale float64) (*CropResult, error) {
	rect := PixelRect(r, img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("region %s lies outside image bounds %v", r, img.Bounds())
	}

	cropped := imaging.Crop(img, rect)

	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		if newWidth < 1 {
			newWidth = 1
		}
		if newHeight < 1 {
			newHeight = 1
		}
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}

	return &CropResult{
		Class:       r.Class.String(),
		Bounds:      rect,
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
