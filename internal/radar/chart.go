package radar

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"golang.org/x/image/font/gofont/goregular"
)

// AxisMax is the value drawn on the outer ring of the chart.
const AxisMax = 100.0

// Bounds on Chart.Size in pixels. The upper bound caps the RGBA canvas at
// 64 MiB.
const (
	MinChartSize = 100
	MaxChartSize = 4096
)

var labelFont *truetype.Font

func init() {
	var err error
	labelFont, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Point is a vertex of the radar polygon in image pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AxisAngle returns the angle of axis i of n in radians, measured clockwise
// from twelve o'clock. Axes are evenly spaced over the full circle.
func AxisAngle(i, n int) float64 {
	return 2 * math.Pi * float64(i) / float64(n)
}

// Vertices returns the closed radar polygon for values around (cx, cy).
//
// The first axis points straight up and the rest follow clockwise. Values
// are mapped linearly from [0, AxisMax] onto [0, radius]; anything outside
// that range is drawn at the centre or on the rim. The returned slice has
// len(values)+1 points, the last repeating the first.
func Vertices(values []float64, radius, cx, cy float64) []Point {
	pts := make([]Point, 0, len(values)+1)
	for i, v := range values {
		r := math.Max(0, math.Min(v, AxisMax)) / AxisMax * radius
		theta := AxisAngle(i, len(values))
		pts = append(pts, Point{
			X: cx + r*math.Sin(theta),
			Y: cy - r*math.Cos(theta),
		})
	}
	if len(pts) > 0 {
		pts = append(pts, pts[0])
	}
	return pts
}

// Chart renders score vectors as a filled radar polygon on a polar grid.
//
// Colors are hex strings ("#1aaf6c"). The zero value is not usable; start
// from DefaultChart.
type Chart struct {
	Size       int    `yaml:"size" json:"size"`
	LineColor  string `yaml:"line_color" json:"line_color"`
	FillColor  string `yaml:"fill_color" json:"fill_color"`
	GridColor  string `yaml:"grid_color" json:"grid_color"`
	SpineColor string `yaml:"spine_color" json:"spine_color"`
	FaceColor  string `yaml:"face_color" json:"face_color"`
	LabelColor string `yaml:"label_color" json:"label_color"`
	Title      string `yaml:"title" json:"title"`
}

// DefaultChart returns a 700x700 chart in the green-on-grey style.
func DefaultChart() Chart {
	return Chart{
		Size:       700,
		LineColor:  "#1aaf6c",
		FillColor:  "#1aaf6c",
		GridColor:  "#AAAAAA",
		SpineColor: "#222222",
		FaceColor:  "#FAFAFA",
		LabelColor: "#222222",
	}
}

type palette struct {
	line, fill, grid, spine, face, label colorful.Color
}

func (c Chart) palette() (palette, error) {
	var p palette
	fields := []struct {
		name string
		hex  string
		dst  *colorful.Color
	}{
		{"line", c.LineColor, &p.line},
		{"fill", c.FillColor, &p.fill},
		{"grid", c.GridColor, &p.grid},
		{"spine", c.SpineColor, &p.spine},
		{"face", c.FaceColor, &p.face},
		{"label", c.LabelColor, &p.label},
	}
	for _, f := range fields {
		col, err := colorful.Hex(f.hex)
		if err != nil {
			return palette{}, errors.Wrapf(err, "invalid %s color %q", f.name, f.hex)
		}
		*f.dst = col
	}
	return p, nil
}

// Render draws the scores and returns the chart image.
func (c Chart) Render(scores Scores) (image.Image, error) {
	if c.Size < MinChartSize || c.Size > MaxChartSize {
		return nil, errors.Errorf("chart size must be between %d and %d pixels, got %d",
			MinChartSize, MaxChartSize, c.Size)
	}
	p, err := c.palette()
	if err != nil {
		return nil, err
	}

	size := float64(c.Size)
	scale := size / 700
	cx, cy := size/2, size/2
	radius := size * 0.36
	labels := Labels()
	n := len(labels)

	dc := gg.NewContext(c.Size, c.Size)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.DrawCircle(cx, cy, radius)
	dc.SetRGB(p.face.R, p.face.G, p.face.B)
	dc.Fill()

	// Rings and spokes
	dc.SetLineWidth(1 * scale)
	dc.SetRGB(p.grid.R, p.grid.G, p.grid.B)
	for v := 20.0; v < AxisMax; v += 20 {
		dc.DrawCircle(cx, cy, radius*v/AxisMax)
		dc.Stroke()
	}
	for i := 0; i < n; i++ {
		theta := AxisAngle(i, n)
		dc.DrawLine(cx, cy, cx+radius*math.Sin(theta), cy-radius*math.Cos(theta))
		dc.Stroke()
	}
	dc.SetRGB(p.spine.R, p.spine.G, p.spine.B)
	dc.DrawCircle(cx, cy, radius)
	dc.Stroke()

	// Radial tick labels sit midway between the first two axes.
	dc.SetFontFace(truetype.NewFace(labelFont, &truetype.Options{Size: 8 * scale}))
	dc.SetRGB(p.label.R, p.label.G, p.label.B)
	tickTheta := AxisAngle(1, 2*n)
	for v := 20.0; v <= AxisMax; v += 20 {
		r := radius * v / AxisMax
		dc.DrawStringAnchored(fmt.Sprintf("%.0f", v), cx+r*math.Sin(tickTheta), cy-r*math.Cos(tickTheta), 0.5, 0.5)
	}

	// Score polygon
	values := scores[:]
	pts := Vertices(values, radius, cx, cy)
	dc.MoveTo(pts[0].X, pts[0].Y)
	for _, pt := range pts[1:] {
		dc.LineTo(pt.X, pt.Y)
	}
	dc.ClosePath()
	dc.SetRGBA(p.fill.R, p.fill.G, p.fill.B, 0.25)
	dc.FillPreserve()
	dc.SetRGB(p.line.R, p.line.G, p.line.B)
	dc.SetLineWidth(1 * scale)
	dc.Stroke()

	// Axis labels, pushed outward and aligned away from the circle.
	dc.SetFontFace(truetype.NewFace(labelFont, &truetype.Options{Size: 12 * scale}))
	dc.SetRGB(p.label.R, p.label.G, p.label.B)
	for i, label := range labels {
		theta := AxisAngle(i, n)
		r := radius + 14*scale
		x, y := cx+r*math.Sin(theta), cy-r*math.Cos(theta)
		dc.DrawStringAnchored(label, x, y, labelAnchor(theta), 0.5)
	}

	if c.Title != "" {
		dc.SetFontFace(truetype.NewFace(labelFont, &truetype.Options{Size: 16 * scale}))
		dc.DrawStringAnchored(c.Title, cx, 24*scale, 0.5, 0.5)
	}

	return dc.Image(), nil
}

// labelAnchor returns the horizontal anchor for an axis label: centred on
// the vertical axis, left-aligned on the right half, right-aligned on the left.
func labelAnchor(theta float64) float64 {
	const eps = 1e-9
	switch {
	case math.Abs(theta) < eps || math.Abs(theta-math.Pi) < eps:
		return 0.5
	case theta > 0 && theta < math.Pi:
		return 0
	default:
		return 1
	}
}

// WritePNG renders the chart and writes it to w as PNG.
func (c Chart) WritePNG(w io.Writer, scores Scores) error {
	img, err := c.Render(scores)
	if err != nil {
		return err
	}
	dc := gg.NewContextForImage(img)
	return dc.EncodePNG(w)
}

// SavePNG renders the chart to a PNG file.
func (c Chart) SavePNG(path string, scores Scores) error {
	img, err := c.Render(scores)
	if err != nil {
		return err
	}
	if err := gg.SavePNG(path, img); err != nil {
		return errors.Wrapf(err, "failed to save chart to %s", path)
	}
	return nil
}

// ChartResult is a rendered chart ready for JSON transport.
type ChartResult struct {
	Labels      []string  `json:"labels"`
	Values      []float64 `json:"values"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	ImageBase64 string    `json:"image_base64"`
	MimeType    string    `json:"mime_type"`
}

// Encode renders the chart as a base64 PNG alongside its labels and values.
func (c Chart) Encode(scores Scores) (*ChartResult, error) {
	var buf bytes.Buffer
	if err := c.WritePNG(&buf, scores); err != nil {
		return nil, errors.Wrap(err, "failed to encode chart")
	}
	return &ChartResult{
		Labels:      Labels(),
		Values:      append([]float64(nil), scores[:]...),
		Width:       c.Size,
		Height:      c.Size,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
