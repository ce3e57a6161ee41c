package engine

import (
	"math"
	"strings"
)

// AdherenceTag is the user tag that marks GLP-1 medication adherence.
const AdherenceTag = "glp1"

type normalizedSignal struct {
	stress    float64
	score     *int
	adherence bool
	phase     *string
}

func normalizeSignal(signal DailySignal, cyclePhase string, meta UserMetadata) normalizedSignal {
	return normalizedSignal{
		stress:    signal.Stress,
		score:     DerivedScore(signal),
		adherence: AdherenceFlagged(meta),
		phase:     normalizePhase(cyclePhase),
	}
}

// DerivedScore rounds Overall, falling back to LIS, and returns nil when
// neither is a finite number.
func DerivedScore(signal DailySignal) *int {
	raw := signal.Overall
	if raw == nil {
		raw = signal.LIS
	}
	if raw == nil || math.IsNaN(*raw) || math.IsInf(*raw, 0) {
		return nil
	}
	// half rounds up, so -2.5 becomes -2
	rounded := int(math.Floor(*raw + 0.5))
	return &rounded
}

// AdherenceFlagged reports whether the metadata mandates a strength focus.
func AdherenceFlagged(meta UserMetadata) bool {
	if meta.IsGLP1 != nil && *meta.IsGLP1 {
		return true
	}
	for _, tag := range meta.Tags {
		if strings.EqualFold(strings.TrimSpace(tag), AdherenceTag) {
			return true
		}
	}
	return false
}

// normalizePhase keeps the raw label; phase checks downstream compare against it directly.
func normalizePhase(phase string) *string {
	if phase == "" {
		return nil
	}
	return &phase
}
