// Package detection turns object-detector output into one representative
// region per car part.
//
// The upstream detector writes one text file per image or video frame, one
// detection per line:
//
//	<class_id> <x_center> <y_center> <width> <height>
//
// All geometry is normalized to the image size (YOLO convention), with the
// origin at the top-left corner and Y increasing downward.
//
// # Classes
//
// The class ids follow the detector's label order:
//
//	0 Light, 1 Wheel, 2 Glass, 3 Door, 4 Sideglass
//
// # Selection Heuristic
//
// The largest light is the reference point. The wheel, door and side glass
// picked are the ones immediately to the right of that light; the glass
// picked is the windshield above it. See Select for the exact rules and the
// difference between ModeImage and ModeVideo.
//
// # Missing Detections
//
// Absent classes are not errors. PickLargest pads with a small dummy region
// and Select substitutes a fixed placeholder, so a frame with partial or no
// detections still produces a complete Selection. Only malformed input rows
// fail, with a *ParseError.
//
// # Concurrency
//
// Every function is pure apart from the initial file read. Parsing and
// selecting different files concurrently needs no synchronization.
package detection
