// Package radar scores how well a picture frames the front driver side of a
// car and draws the result as a radar chart.
//
// Each class picked by detection.Select is compared with an ideal area:
//
//	score = area / ideal * 100
//
// A score of 100 means the part fills exactly the ideal fraction of the frame.
// Scores are not clamped; the chart simply draws values above 100 on its rim.
//
// # Chart Layout
//
// Axes are ordered Light, Wheel, Glass, Door, Sideglass, start at twelve
// o'clock and run clockwise. The polygon is closed by repeating its first
// vertex and the radial axis is fixed to 0-100.
//
// # Video
//
// ScoreFrames scores a clip's per-frame detection files in parallel and
// Summarize reduces the result to per-class statistics.
package radar
