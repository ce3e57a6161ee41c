package engine

import (
	"math"
	"strings"
)

const lutealIntensityCap = 0.6

func adjustIntensity(base float64, phase *string, uniformPhase bool) float64 {
	level := base
	if isLuteal(phase, uniformPhase) {
		level = math.Min(level, lutealIntensityCap)
	}
	return clampUnit(level)
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func isLuteal(phase *string, uniform bool) bool {
	if phase == nil {
		return false
	}
	if uniform {
		return strings.EqualFold(*phase, "luteal")
	}
	return *phase == "Luteal"
}

func isMenstrual(phase *string) bool {
	return phase != nil && strings.EqualFold(*phase, "menstrual")
}
