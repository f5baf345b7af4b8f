package facematch

import "github.com/kozaktomas/visagium/internal/constants"

// BBoxWidth returns the width of a [x1, y1, x2, y2] box, or 0 if malformed.
func BBoxWidth(bbox []float64) float64 {
	if len(bbox) != 4 || bbox[2] < bbox[0] {
		return 0
	}
	return bbox[2] - bbox[0]
}

// IsLargeEnough reports whether a detection is big enough to be trusted.
// frameWidth may be 0 when unknown, in which case only the absolute pixel
// minimum applies.
func IsLargeEnough(bbox []float64, frameWidth int) bool {
	w := BBoxWidth(bbox)
	if w < constants.MinFaceWidthPx {
		return false
	}
	if frameWidth > 0 && w/float64(frameWidth) < constants.MinFaceWidthRel {
		return false
	}
	return true
}

// ConvertPixelBBoxToRelative converts pixel bbox to relative (0-1) coordinates.
// Input bbox is [x1, y1, x2, y2] in pixels, output is [x1, y1, x2, y2] in relative coords.
func ConvertPixelBBoxToRelative(bbox []float64, width, height int) []float64 {
	if len(bbox) != 4 || width <= 0 || height <= 0 {
		return bbox
	}
	return []float64{
		bbox[0] / float64(width),
		bbox[1] / float64(height),
		bbox[2] / float64(width),
		bbox[3] / float64(height),
	}
}
