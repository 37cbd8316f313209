package exporter

import (
	"math"
	"strconv"
)

// formatFloat formats a float64 with the shortest representation that
// round-trips, so the same value always produces the same text
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatOptionalFloat formats f, or returns an empty cell for NaN and Inf
func formatOptionalFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return formatFloat(f)
}
