package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateCalories(t *testing.T) {
	tests := []struct {
		name     string
		met      float64
		weight   float64
		duration float64
		want     int
	}{
		{name: "published met", met: 5, weight: 70, duration: 30, want: 175},
		{name: "missing met falls back", met: 0, weight: 80, duration: 60, want: 280},
		{name: "rounds half up", met: 3, weight: 1, duration: 30, want: 2},
		{name: "no weight", met: 6, weight: 0, duration: 45, want: 0},
		{name: "no duration", met: 6, weight: 80, duration: 0, want: 0},
		{name: "negative inputs", met: 6, weight: -10, duration: 30, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, EstimateCalories(tc.met, tc.weight, tc.duration))
		})
	}
}

func TestComputeBMI(t *testing.T) {
	require.Equal(t, 25.0, ComputeBMI(81, 180))
	require.Equal(t, 22.9, ComputeBMI(70, 175))
	require.Zero(t, ComputeBMI(0, 180))
	require.Zero(t, ComputeBMI(70, 0))
}

func TestClassifyBMI(t *testing.T) {
	cases := map[float64]BMIClass{
		17.9: BMIUnderweight,
		18.5: BMINormal,
		24.9: BMINormal,
		25:   BMIOverweight,
		30:   BMIModerateObesity,
		35:   BMISevereObesity,
		40:   BMIMorbidObesity,
		52.3: BMIMorbidObesity,
	}
	for bmi, want := range cases {
		require.Equal(t, want, ClassifyBMI(bmi), "bmi %.1f", bmi)
	}
}

func TestUserBMIRequiresHeightAndWeight(t *testing.T) {
	height, weight := 180.0, 81.0

	_, _, ok := User{Height: &height}.BMI()
	require.False(t, ok)

	bmi, class, ok := User{Height: &height, Weight: &weight}.BMI()
	require.True(t, ok)
	require.Equal(t, 25.0, bmi)
	require.Equal(t, BMIOverweight, class)
}

func TestPublicMessage(t *testing.T) {
	require.Equal(t, "workout not found", PublicMessage(NotFound("workout")))
	require.Equal(t, "name is required", PublicMessage(Validation("name is required")))
	require.Empty(t, PublicMessage(ErrConflict))
}
