package domain

import "math"

// DefaultMET is used when the catalog does not publish a metabolic equivalent.
const DefaultMET = 3.5

// EstimateCalories returns round(MET * weightKg * durationMin/60).
// Non-positive inputs contribute nothing.
func EstimateCalories(met, weightKg, durationMin float64) int {
	if met <= 0 {
		met = DefaultMET
	}
	if weightKg <= 0 || durationMin <= 0 {
		return 0
	}
	return int(math.Round(met * weightKg * (durationMin / 60)))
}
