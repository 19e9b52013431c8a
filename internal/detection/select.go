package detection

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Mode selects which variant of the relative-position heuristic to run.
type Mode int

const (
	// ModeImage is the strict variant used for still photos. The windshield
	// is the glass vertically closest to the light.
	ModeImage Mode = iota

	// ModeVideo is the lenient variant used once per video frame. Absent
	// classes fall back to per-class defaults and the windshield is the
	// glass horizontally closest to the light.
	ModeVideo
)

func (m Mode) String() string {
	if m == ModeVideo {
		return "video"
	}
	return "image"
}

// ParseMode accepts "image" (or "img") and "video" (or "vid").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "image", "img":
		return ModeImage, nil
	case "video", "vid":
		return ModeVideo, nil
	default:
		return 0, errors.Errorf("unknown selection mode %q (want image or video)", s)
	}
}

// Placeholders substituted when no detection satisfies the selection rule.
// They are values, never shared mutable state.
var (
	imagePlaceholders = map[Class]Region{
		Wheel:     placeholder(Wheel, 0.075),
		Glass:     placeholder(Glass, 0.075),
		Door:      placeholder(Door, 0.075),
		SideGlass: placeholder(SideGlass, 0.075),
	}
	videoDefaults = map[Class]Region{
		Wheel:     placeholder(Wheel, 0.075),
		Glass:     placeholder(Glass, 0.075),
		Door:      placeholder(Door, 0.05),
		SideGlass: placeholder(SideGlass, 0.035),
	}
)

// Placeholder returns the region substituted for class c in the given mode.
// The light never needs one: PickLargest pads it.
func Placeholder(c Class, mode Mode) Region {
	if mode == ModeVideo {
		return videoDefaults[c]
	}
	return imagePlaceholders[c]
}

// Selection holds the one representative region chosen per class.
// Every region in a Selection has its area populated.
type Selection struct {
	Light     Region `json:"light"`
	Wheel     Region `json:"wheel"`
	Glass     Region `json:"glass"`
	Door      Region `json:"door"`
	SideGlass Region `json:"side_glass"`
}

// Regions returns the selection ordered by class id.
func (s Selection) Regions() [NumClasses]Region {
	return [NumClasses]Region{s.Light, s.Wheel, s.Glass, s.Door, s.SideGlass}
}

// Get returns the selected region for class c.
func (s Selection) Get(c Class) (Region, bool) {
	if !c.Valid() {
		return Region{}, false
	}
	return s.Regions()[c], true
}

// Select picks the front driver-side regions from one detection set.
//
// The reference is the largest light. Relative to it:
//   - wheel, door and side glass: the candidate right of the light
//     (larger x) with the smallest x
//   - glass (windshield): a candidate above the light (smaller y); in
//     ModeImage the one with the smallest |dy|, in ModeVideo the smallest |dx|
//
// A class with no qualifying candidate gets its placeholder for the mode.
// Missing detections are never an error; an empty set yields a full
// Selection of placeholders.
func Select(regions []Region, mode Mode) Selection {
	light := PickLargest(Light, 1, regions)[0]

	rightOfLight := func(r Region) bool { return r.X > light.X }
	aboveLight := func(r Region) bool { return r.Y < light.Y }
	nearestX := func(r Region) float64 { return r.X }

	glassDistance := func(r Region) float64 { return math.Abs(r.Y - light.Y) }
	if mode == ModeVideo {
		glassDistance = func(r Region) float64 { return math.Abs(r.X - light.X) }
	}

	return Selection{
		Light:     light.WithArea(),
		Wheel:     nearest(regions, Wheel, rightOfLight, nearestX, Placeholder(Wheel, mode)),
		Glass:     nearest(regions, Glass, aboveLight, glassDistance, Placeholder(Glass, mode)),
		Door:      nearest(regions, Door, rightOfLight, nearestX, Placeholder(Door, mode)),
		SideGlass: nearest(regions, SideGlass, rightOfLight, nearestX, Placeholder(SideGlass, mode)),
	}
}

// SelectFile parses a detector output file and runs Select on it.
func SelectFile(path string, mode Mode) (Selection, error) {
	regions, err := ParseFile(path)
	if err != nil {
		return Selection{}, err
	}
	return Select(regions, mode), nil
}

// nearest filters regions of class c by keep and returns the one minimising
// distance, or fallback when none qualify. Ties go to the earliest region.
func nearest(regions []Region, c Class, keep func(Region) bool, distance func(Region) float64, fallback Region) Region {
	candidates := lo.Filter(regions, func(r Region, _ int) bool {
		return r.Class == c && keep(r)
	})
	if len(candidates) == 0 {
		return fallback.WithArea()
	}
	best := lo.MinBy(candidates, func(a, b Region) bool {
		return distance(a) < distance(b)
	})
	return best.WithArea()
}
