package scoring

import "math"

// Normalize scales value from [lo, hi] into [0, 1], clamping values outside
// the range. With inverse set, lower raw values score higher. A degenerate
// range carries no information and yields 0.5.
func Normalize(value, lo, hi float64, inverse bool) float64 {
	if hi == lo {
		return 0.5
	}
	n := clamp((value-lo)/(hi-lo), 0, 1)
	if inverse {
		return 1 - n
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// roundImpact rounds a factor impact to one decimal place, ties to even.
func roundImpact(v float64) float64 {
	return math.RoundToEven(v*10) / 10
}
