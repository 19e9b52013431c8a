package imaging

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/transform"
)

// ToTensorData converts a photo into the regressor's input layout.
//
// The image is resized to size x size with bilinear filtering, alpha is
// dropped, and the RGB channels are written channel-major (CHW) as float64
// in [0, 1]:
//
//	out[c*size*size + y*size + x]
//
// The returned slice has 3*size*size elements.
func ToTensorData(img image.Image, size int) ([]float64, error) {
	if size <= 0 {
		return nil, fmt.Errorf("tensor size must be positive, got %d", size)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("cannot convert empty image")
	}

	resized := transform.Resize(img, size, size, transform.Linear)

	plane := size * size
	out := make([]float64, 3*plane)
	b := resized.Bounds()
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := resized.PixOffset(x+b.Min.X, y+b.Min.Y)
			px := resized.Pix[off : off+4 : off+4]
			i := y*size + x
			out[i] = float64(px[0]) / 255
			out[plane+i] = float64(px[1]) / 255
			out[2*plane+i] = float64(px[2]) / 255
		}
	}
	return out, nil
}

// LoadTensorData loads path through the cache and converts it with ToTensorData.
func LoadTensorData(cache *ImageCache, path string, size int) ([]float64, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}
	return ToTensorData(img, size)
}
