package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/carpart-tools/internal/detection"
)

// OverlayResult contains the photo with region outlines drawn on it
type OverlayResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Regions     int    `json:"regions"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// ClassColors is the outline color of each class, indexed by detection.Class.
var ClassColors = [detection.NumClasses]color.RGBA{
	detection.Light:     {R: 0xFF, G: 0xD6, B: 0x0A, A: 0xFF},
	detection.Wheel:     {R: 0xFF, G: 0x3B, B: 0x30, A: 0xFF},
	detection.Glass:     {R: 0x0A, G: 0x84, B: 0xFF, A: 0xFF},
	detection.Door:      {R: 0x30, G: 0xD1, B: 0x58, A: 0xFF},
	detection.SideGlass: {R: 0xBF, G: 0x5A, B: 0xF2, A: 0xFF},
}

var unknownClassColor = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

// OverlayRegions outlines each region on a copy of img and labels it with
// its class name. Regions that fall outside the image are skipped.
func OverlayRegions(img image.Image, regions []detection.Region, lineWidth int) (*OverlayResult, error) {
	if lineWidth < 1 {
		lineWidth = 1
	}
	bounds := img.Bounds()

	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	drawn := 0
	for _, r := range regions {
		rect := PixelRect(r, bounds)
		if rect.Empty() {
			continue
		}
		c := unknownClassColor
		if r.Class.Valid() {
			c = ClassColors[r.Class]
		}
		drawBox(result, rect, lineWidth, c)
		drawLabel(result, rect.Min.X, rect.Min.Y, r.Class.String(), color.RGBA{0, 0, 0, 255}, c)
		drawn++
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, result); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &OverlayResult{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Regions:     drawn,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// SelectionRegions returns the regions of a selection in class order.
func SelectionRegions(sel detection.Selection) []detection.Region {
	regions := sel.Regions()
	return regions[:]
}

// drawBox strokes the inside edge of rect with the given thickness
func drawBox(img *image.RGBA, rect image.Rectangle, width int, c color.RGBA) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+width),
		image.Rect(rect.Min.X, rect.Max.Y-width, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+width, rect.Max.Y),
		image.Rect(rect.Max.X-width, rect.Min.Y, rect.Max.X, rect.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(rect), src, image.Point{}, draw.Over)
	}
}

// drawLabel draws text on a filled background with its top-left corner at
// (x, y), clipped to the image.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Height

	box := image.Rect(x, y, x+width+2, y+height+2).Intersect(img.Bounds())
	draw.Draw(img, box, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x + 1), Y: fixed.I(y + 1 + face.Ascent)},
	}
	d.DrawString(text)
}
