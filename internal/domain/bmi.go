package domain

import "math"

// BMIClass buckets a body mass index.
type BMIClass string

const (
	BMIUnderweight     BMIClass = "underweight"
	BMINormal          BMIClass = "normal"
	BMIOverweight      BMIClass = "overweight"
	BMIModerateObesity BMIClass = "moderate_obesity"
	BMISevereObesity   BMIClass = "severe_obesity"
	BMIMorbidObesity   BMIClass = "morbid_obesity"
)

// ComputeBMI returns weight / height² with height given in centimetres,
// rounded to one decimal. It returns 0 when either value is unknown.
func ComputeBMI(weightKg, heightCm float64) float64 {
	if weightKg <= 0 || heightCm <= 0 {
		return 0
	}
	m := heightCm / 100
	return math.Round(weightKg/(m*m)*10) / 10
}

// ClassifyBMI maps a BMI value to its WHO bucket.
func ClassifyBMI(bmi float64) BMIClass {
	switch {
	case bmi < 18.5:
		return BMIUnderweight
	case bmi < 25:
		return BMINormal
	case bmi < 30:
		return BMIOverweight
	case bmi < 35:
		return BMIModerateObesity
	case bmi < 40:
		return BMISevereObesity
	default:
		return BMIMorbidObesity
	}
}
