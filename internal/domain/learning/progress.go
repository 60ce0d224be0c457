package learning

import "math"

// CompletionPercent converts completed/total lesson counts into the 0..100
// value stored on an enrollment. Rounding is half-up; the clamp keeps a stale
// denormalized total from ever pushing progress past 100.
func CompletionPercent(completedLessons, totalLessons int) int {
	if totalLessons <= 0 || completedLessons <= 0 {
		return 0
	}
	return clampPercent(roundHalfUp(100 * float64(completedLessons) / float64(totalLessons)))
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
