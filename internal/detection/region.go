package detection

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Class is the semantic label the upstream detector assigns to a region.
//
// The numeric values follow the detector's label order and must not change:
//
//	0 = Light, 1 = Wheel, 2 = Glass, 3 = Door, 4 = SideGlass
type Class int

// Detector label order.
const (
	Light Class = iota
	Wheel
	Glass
	Door
	SideGlass
)

// NumClasses is the number of classes the selector emits one region for.
const NumClasses = 5

var classNames = [NumClasses]string{"Light", "Wheel", "Glass", "Door", "Sideglass"}

// Classes returns every class in label order.
func Classes() []Class {
	return []Class{Light, Wheel, Glass, Door, SideGlass}
}

// Valid reports whether c is one of the five known classes.
func (c Class) Valid() bool {
	return c >= Light && c <= SideGlass
}

// String returns the chart label for the class ("Light", "Wheel", ...).
func (c Class) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Class(%d)", int(c))
	}
	return classNames[c]
}

// ParseClass resolves a class from its label (case-insensitive) or its numeric id.
func ParseClass(s string) (Class, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "side-glass", "side_glass", "sglass":
		return SideGlass, nil
	}
	for i, n := range classNames {
		if strings.ToLower(n) == name {
			return Class(i), nil
		}
	}
	var id int
	if _, err := fmt.Sscanf(name, "%d", &id); err == nil && Class(id).Valid() {
		return Class(id), nil
	}
	return 0, errors.Errorf("unknown region class %q", s)
}

// ParseClassValues resolves the keys of a name-keyed map with ParseClass.
// Two keys naming the same class are rejected, since map order would
// otherwise decide which value wins.
func ParseClassValues(named map[string]float64) (map[Class]float64, error) {
	out := make(map[Class]float64, len(named))
	var seen [NumClasses]string
	for name, v := range named {
		c, err := ParseClass(name)
		if err != nil {
			return nil, err
		}
		if seen[c] != "" {
			first, second := seen[c], name
			if second < first {
				first, second = second, first
			}
			return nil, errors.Errorf("%q and %q both name class %s", first, second, c)
		}
		seen[c] = name
		out[c] = v
	}
	return out, nil
}

// Region is one detected bounding box in normalized (YOLO-style) coordinates.
//
// X and Y are the box centre as a fraction of the image width and height, so
// (0,0) is the top-left corner and Y grows downward. Width and Height are
// fractions of the image dimensions as well.
type Region struct {
	Class  Class   `json:"class"`
	X      float64 `json:"x_center"`
	Y      float64 `json:"y_center"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	// Area is Width*Height, populated by WithArea. HasArea records whether
	// it has been derived so it is never computed twice.
	Area    float64 `json:"area"`
	HasArea bool    `json:"-"`
}

// WithArea returns a copy of r with Area populated.
//
// A region whose area has already been derived is returned unchanged, so
// calling WithArea any number of times yields the same value.
func (r Region) WithArea() Region {
	if r.HasArea {
		return r
	}
	r.Area = r.Width * r.Height
	r.HasArea = true
	return r
}

func (r Region) String() string {
	return fmt.Sprintf("%s (%.4f, %.4f) %.4fx%.4f area=%.6f", r.Class, r.X, r.Y, r.Width, r.Height, r.Area)
}

// placeholder builds a fixed-geometry region anchored at the origin.
func placeholder(c Class, size float64) Region {
	return Region{Class: c, Width: size, Height: size}
}
