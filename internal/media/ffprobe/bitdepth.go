package ffprobe

import "strings"

var (
	highBitDepthPixFmtMarkers  = []string{"p10", "p12", "p14", "p16", "yuv420p10", "yuv444p10", "yuv422p10", "rgb48"}
	highBitDepthProfileMarkers = []string{"10", "12", "main10", "high 10"}
)

// IsHighBitDepth reports whether a video stream carries more than 8 bits per
// sample. Either the pixel format or the profile matching is sufficient.
func IsHighBitDepth(pixFmt, profile string) bool {
	pixFmt = strings.ToLower(pixFmt)
	profile = strings.ToLower(profile)
	for _, marker := range highBitDepthPixFmtMarkers {
		if strings.Contains(pixFmt, marker) {
			return true
		}
	}
	for _, marker := range highBitDepthProfileMarkers {
		if strings.Contains(profile, marker) {
			return true
		}
	}
	return false
}
