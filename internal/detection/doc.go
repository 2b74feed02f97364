// Package detection finds answer bubbles in a binary ink mask.
//
// The mask is the output of imaging.Binarize: ink is foreground (non-zero),
// paper is background (zero). Detection reports every bubble it can see,
// filled or not, as a centre and radius.
//
// # Detectors
//
// Two implementations sit behind the Detector interface:
//
//   - hough: a pure Go circular Hough transform (always available)
//   - opencv: cv::HoughCircles via gocv (build with -tags gocv)
//
// New selects one from Params.Method.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// # Determinism
//
// The hough detector returns the same circles in the same order for the same
// mask and Params. Results are sorted by (Y, X).
//
// # Limitations
//
// Detection is tuned for printed bubbles on clean scans. Heavy skew, strong
// perspective or bubbles far outside [MinRadius, MaxRadius] produce poor
// results. An empty result is valid and not an error.
package detection
