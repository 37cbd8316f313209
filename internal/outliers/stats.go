package outliers

import "math"

// Mean returns the arithmetic mean of values, or NaN for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStdDev returns the sample standard deviation (denominator N-1).
// Fewer than two values yield 0.
func SampleStdDev(values []float64, mean float64) float64 {
	if len(values) <= 1 {
		return 0
	}

	sumSquaredDeviations := 0.0
	for _, v := range values {
		deviation := v - mean
		sumSquaredDeviations += deviation * deviation
	}

	return math.Sqrt(sumSquaredDeviations / float64(len(values)-1))
}

// PercentDeviation returns deviation as a percentage of mean. It is NaN when
// the mean is zero.
func PercentDeviation(deviation, mean float64) float64 {
	if mean == 0 {
		return math.NaN()
	}
	return deviation / mean * 100
}
