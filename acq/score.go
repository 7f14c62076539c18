package acq

import "math"

// InvalidScore is the sentinel returned for rectangles that cannot plausibly
// contain the tracked entity: degenerate (zero area) or insufficiently square
// ones. It is routed through the normal validity check instead of an error.
const InvalidScore = 1000

// Boxes whose short/long side ratio is at or below this are rejected outright.
const squarenessThreshold = 0.99

// AcquisitionScore rates how likely a bounding box is to actually contain the
// object or robot that is tracked, based on the squareness of the rectangle
// and its closeness to the calibrated area. Lower is better; 0 means a
// perfect square of exactly the calibrated area.
//
// Based off formula in
// https://users.cs.cf.ac.uk/Paul.Rosin/resources/papers/squareness-JMIV-postprint.pdf
func AcquisitionScore(rect Rectangle, calibratedArea float64) float64 {
	area := rect.Width * rect.Height
	if area == 0 {
		return InvalidScore
	}
	long, short := rect.Width, rect.Height
	if short > long {
		long, short = short, long
	}
	if short/long <= squarenessThreshold {
		return InvalidScore
	}
	t := long / short
	return math.Abs(area-calibratedArea) / math.Max(area, calibratedArea) * t
}
