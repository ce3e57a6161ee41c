package engine

import "time"

// Category is the top-level grouping used for catalog organization and 28-day balancing.
type Category string

const (
	CategoryStrength Category = "Strength"
	CategoryMobility Category = "Mobility"
	CategoryCardio   Category = "Cardio"
)

// categoryOrder is the enumeration order; it also breaks deficit ties.
var categoryOrder = []Category{CategoryStrength, CategoryMobility, CategoryCardio}

// Categories returns the categories in enumeration order.
func Categories() []Category {
	return append([]Category(nil), categoryOrder...)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryStrength, CategoryMobility, CategoryCardio:
		return true
	default:
		return false
	}
}

// Instruction is one numbered step of a protocol.
type Instruction struct {
	Step     int    `json:"step" yaml:"step"`
	Action   string `json:"action" yaml:"action"`
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`
	Notes    string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Template is an immutable catalog entry.
type Template struct {
	Title            string        `json:"title"`
	Category         Category      `json:"category"`
	FocusArea        string        `json:"focusArea"`
	Coach            string        `json:"coach"`
	DurationMinutes  int           `json:"durationMinutes"`
	BaseIntensity    float64       `json:"baseIntensity"`
	Instructions     []Instruction `json:"instructions"`
	ClinicalEvidence []string      `json:"clinicalEvidence,omitempty"`
}

// HistoryEntry is a snapshot of a previously generated recommendation.
type HistoryEntry struct {
	CreatedAt    time.Time     `json:"createdAt"`
	Title        string        `json:"title"`
	FocusArea    string        `json:"focusArea"`
	Instructions []Instruction `json:"instructions"`
}

// DailySignal carries the day's context. Stress is required; Overall and LIS
// only feed the provenance score.
type DailySignal struct {
	Stress  float64  `json:"stress"`
	Overall *float64 `json:"overall,omitempty"`
	LIS     *float64 `json:"lis,omitempty"`
}

// UserMetadata carries the user-level flags the engine looks at.
type UserMetadata struct {
	IsGLP1 *bool    `json:"isGLP1,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// Recommendation is the single activity produced per invocation.
type Recommendation struct {
	Title                  string        `json:"title"`
	IntensityLevel         float64       `json:"intensityLevel"`
	DurationMinutes        int           `json:"durationMinutes"`
	FocusArea              string        `json:"focusArea"`
	Coach                  string        `json:"coach"`
	Instructions           []Instruction `json:"instructions"`
	ClinicalEvidence       []string      `json:"clinicalEvidence"`
	DerivedFromSignalScore *int          `json:"derivedFromSignalScore"`
	DerivedFromCyclePhase  *string       `json:"derivedFromCyclePhase"`
}

// Options are the optional inputs of a generation call. A zero Now means the
// engine clock is used.
type Options struct {
	History []HistoryEntry
	Now     time.Time
}

// Rule names the branch of the priority list that produced a recommendation.
type Rule string

const (
	RuleStressOverride    Rule = "stress_override"
	RuleAdherenceOverride Rule = "adherence_override"
	RulePhaseBias         Rule = "phase_bias"
	RuleCategoryTarget    Rule = "category_target"
)

// Decision explains how a recommendation was chosen.
type Decision struct {
	Rule             Rule     `json:"rule"`
	TargetCategory   Category `json:"targetCategory"`
	Category         Category `json:"category"`
	VarietyFallback  bool     `json:"varietyFallback"`
	AdherenceFlagged bool     `json:"adherenceFlagged"`
}
