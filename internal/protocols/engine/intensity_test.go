package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdjustIntensity(t *testing.T) {
	luteal := "Luteal"
	lowerLuteal := "luteal"
	follicular := "Follicular"

	tests := []struct {
		name    string
		base    float64
		phase   *string
		uniform bool
		want    float64
	}{
		{name: "in range", base: 0.45, want: 0.45},
		{name: "NaN", base: math.NaN(), want: 0},
		{name: "positive infinity", base: math.Inf(1), want: 0},
		{name: "negative infinity", base: math.Inf(-1), want: 0},
		{name: "negative", base: -0.3, want: 0},
		{name: "above one", base: 1.7, want: 1},
		{name: "luteal caps", base: 0.9, phase: &luteal, want: 0.6},
		{name: "luteal keeps lower base", base: 0.4, phase: &luteal, want: 0.4},
		{name: "luteal caps above one", base: 1.7, phase: &luteal, want: 0.6},
		{name: "luteal negative", base: -0.3, phase: &luteal, want: 0},
		{name: "luteal NaN", base: math.NaN(), phase: &luteal, want: 0},
		{name: "other phase", base: 0.9, phase: &follicular, want: 0.9},
		{name: "lower-case luteal is exact match only", base: 0.9, phase: &lowerLuteal, want: 0.9},
		{name: "lower-case luteal with uniform matching", base: 0.9, phase: &lowerLuteal, uniform: true, want: 0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adjustIntensity(tt.base, tt.phase, tt.uniform)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestClampUnitBounds(t *testing.T) {
	assert.Equal(t, 0.0, clampUnit(0))
	assert.Equal(t, 1.0, clampUnit(1))
	assert.Equal(t, 1.0, clampUnit(math.MaxFloat64))
	assert.Equal(t, 0.0, clampUnit(-math.SmallestNonzeroFloat64))
}
