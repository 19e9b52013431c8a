package radar

import (
	"github.com/pkg/errors"

	"github.com/ironsheep/carpart-tools/internal/detection"
)

// IdealAreas holds the "perfect picture" area of each class, indexed by
// detection.Class. Areas are fractions of the image area.
type IdealAreas [detection.NumClasses]float64

// DefaultIdealAreas are the reference areas for a well-framed front
// driver-side shot.
var DefaultIdealAreas = IdealAreas{
	detection.Light:     0.03,
	detection.Wheel:     0.07,
	detection.Glass:     0.09,
	detection.Door:      0.04,
	detection.SideGlass: 0.0075,
}

// Validate rejects non-positive reference areas, which would divide by zero.
func (ia IdealAreas) Validate() error {
	for i, a := range ia {
		if a <= 0 {
			return errors.Errorf("ideal area for %s must be > 0, got %v", detection.Class(i), a)
		}
	}
	return nil
}

// Scores is the quality score of each class as a percentage of its ideal
// area, indexed by detection.Class. Values are unclamped.
type Scores [detection.NumClasses]float64

// Labels returns the chart labels in the fixed axis order.
func Labels() []string {
	labels := make([]string, 0, detection.NumClasses)
	for _, c := range detection.Classes() {
		labels = append(labels, c.String())
	}
	return labels
}

// Map returns the scores keyed by label.
func (s Scores) Map() map[string]float64 {
	m := make(map[string]float64, len(s))
	for i, v := range s {
		m[detection.Class(i).String()] = v
	}
	return m
}

// Score converts a selection into percentage scores: area / ideal * 100.
//
// Areas are taken from the selection (derived if missing). No rounding or
// clamping is applied; an oversized region scores above 100.
func Score(sel detection.Selection, ideal IdealAreas) Scores {
	var s Scores
	for i, r := range sel.Regions() {
		s[i] = r.WithArea().Area / ideal[i] * 100
	}
	return s
}
