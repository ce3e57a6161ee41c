package engine

import (
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStressOverrideIgnoresHistory(t *testing.T) {
	e := newTestEngine(t)
	reset := e.Catalog().StressReset()

	histories := map[string][]HistoryEntry{
		"empty":          nil,
		"reset_recently": {historyFor(reset, daysAgo(1))},
	}
	for name, history := range histories {
		t.Run(name, func(t *testing.T) {
			rec, decision := e.Decide(DailySignal{Stress: 85}, "Follicular", UserMetadata{}, Options{History: history})
			assert.Equal(t, StressResetTitle, rec.Title)
			assert.Equal(t, reset.FocusArea, rec.FocusArea)
			assert.Equal(t, RuleStressOverride, decision.Rule)
		})
	}
}

func TestStressOverrideBeatsAdherenceAndAppliesLutealCap(t *testing.T) {
	e := newTestEngine(t)
	rec, decision := e.Decide(DailySignal{Stress: 81}, "Luteal", UserMetadata{IsGLP1: boolPtr(true)}, Options{})
	assert.Equal(t, StressResetTitle, rec.Title)
	assert.Equal(t, RuleStressOverride, decision.Rule)
	assert.LessOrEqual(t, rec.IntensityLevel, 0.6)
}

func TestStressThresholdIsExclusive(t *testing.T) {
	e := newTestEngine(t)
	_, decision := e.Decide(DailySignal{Stress: 80}, "Follicular", UserMetadata{}, Options{})
	assert.NotEqual(t, RuleStressOverride, decision.Rule)
}

func TestAdherenceOverrideAlwaysStrength(t *testing.T) {
	e := newTestEngine(t)
	// A strength-heavy history would otherwise push the planner away from Strength.
	var history []HistoryEntry
	for i, tpl := range e.Catalog().Templates(CategoryStrength) {
		history = append(history, historyFor(tpl, daysAgo(float64(10+i))))
	}
	for _, meta := range []UserMetadata{
		{IsGLP1: boolPtr(true)},
		{Tags: []string{"  GLP1 "}},
	} {
		rec, decision := e.Decide(DailySignal{Stress: 40}, "menstrual", meta, Options{History: history})
		assert.Equal(t, CategoryStrength, categoryOfTitle(t, e, rec.Title))
		assert.Equal(t, RuleAdherenceOverride, decision.Rule)
		assert.True(t, decision.AdherenceFlagged)
	}
}

func TestAdherenceOverrideSkipsRecentStrength(t *testing.T) {
	e := newTestEngine(t)
	strength := e.Catalog().Templates(CategoryStrength)
	history := []HistoryEntry{historyFor(strength[0], daysAgo(1))}

	rec := e.Generate(DailySignal{Stress: 10}, "Follicular", UserMetadata{IsGLP1: boolPtr(true)}, Options{History: history})
	assert.Equal(t, strength[1].Title, rec.Title)
}

func TestPhaseBiasSelectsMobility(t *testing.T) {
	e := newTestEngine(t)
	for _, phase := range []string{"Luteal", "menstrual", "MENSTRUAL", "Menstrual"} {
		t.Run(phase, func(t *testing.T) {
			rec, decision := e.Decide(DailySignal{Stress: 30}, phase, UserMetadata{}, Options{})
			assert.Equal(t, CategoryMobility, categoryOfTitle(t, e, rec.Title))
			assert.Equal(t, RulePhaseBias, decision.Rule)
		})
	}
}

func TestLutealCheckIsCaseSensitiveByDefault(t *testing.T) {
	e := newTestEngine(t)
	_, decision := e.Decide(DailySignal{Stress: 30}, "luteal", UserMetadata{}, Options{})
	assert.Equal(t, RuleCategoryTarget, decision.Rule)

	uniform := newTestEngine(t, WithUniformPhaseMatching())
	_, decision = uniform.Decide(DailySignal{Stress: 30}, "luteal", UserMetadata{}, Options{})
	assert.Equal(t, RulePhaseBias, decision.Rule)
}

func TestVarietyAvoidsMostRecentTitle(t *testing.T) {
	e := newTestEngine(t)
	mobility := e.Catalog().Templates(CategoryMobility)
	history := []HistoryEntry{historyFor(mobility[0], daysAgo(2))}

	rec := e.Generate(DailySignal{Stress: 20}, "Luteal", UserMetadata{}, Options{History: history})
	assert.NotEqual(t, mobility[0].Title, rec.Title)
	assert.Equal(t, CategoryMobility, categoryOfTitle(t, e, rec.Title))
}

func TestVarietyMatchesPrimaryInstructions(t *testing.T) {
	e := newTestEngine(t)
	mobility := e.Catalog().Templates(CategoryMobility)
	renamed := HistoryEntry{
		CreatedAt: daysAgo(1),
		Title:     "Something Else Entirely",
		FocusArea: "Hormonal Balance",
		Instructions: []Instruction{
			{Step: 2, Action: "LOW LUNGE, with side bend!"},
			{Step: 1, Action: "CAT-COW with   slow breathing."},
		},
	}
	require.Equal(t, "Hormonal Balance Yoga Flow", mobility[0].Title)

	rec := e.Generate(DailySignal{Stress: 20}, "Luteal", UserMetadata{}, Options{History: []HistoryEntry{renamed}})
	assert.NotEqual(t, mobility[0].Title, rec.Title)
}

func TestVarietyFallsBackAcrossCategories(t *testing.T) {
	e := newTestEngine(t)
	var history []HistoryEntry
	// Four mobility templates plus the first strength template fill the five-entry window.
	for i, tpl := range e.Catalog().Templates(CategoryMobility) {
		history = append(history, historyFor(tpl, daysAgo(float64(i)+0.5)))
	}
	history = append(history, historyFor(e.Catalog().Templates(CategoryStrength)[0], daysAgo(5)))

	rec, decision := e.Decide(DailySignal{Stress: 20}, "Luteal", UserMetadata{}, Options{History: history})
	assert.Equal(t, CategoryStrength, decision.Category)
	assert.Equal(t, e.Catalog().Templates(CategoryStrength)[1].Title, rec.Title)
	assert.False(t, decision.VarietyFallback)
}

func TestConcreteScenarioA(t *testing.T) {
	e := newTestEngine(t)
	history := []HistoryEntry{historyFor(e.Catalog().StressReset(), daysAgo(0.1))}
	rec := e.Generate(DailySignal{Stress: 85}, "Follicular", UserMetadata{}, Options{History: history})
	assert.Equal(t, "Nervous System Reset", rec.Title)
}

func TestConcreteScenarioB(t *testing.T) {
	e := newTestEngine(t)
	rec := e.Generate(DailySignal{Stress: 10}, "Luteal", UserMetadata{IsGLP1: boolPtr(false)}, Options{})
	assert.Equal(t, CategoryMobility, categoryOfTitle(t, e, rec.Title))
	assert.LessOrEqual(t, rec.IntensityLevel, 0.6)
}

func TestConcreteScenarioC(t *testing.T) {
	e := newTestEngine(t)
	rec := e.Generate(DailySignal{Stress: 10}, "Follicular", UserMetadata{IsGLP1: boolPtr(true)}, Options{})
	first := e.Catalog().Templates(CategoryStrength)[0]
	assert.Equal(t, first.Title, rec.Title)
	assert.Equal(t, first.BaseIntensity, rec.IntensityLevel)
}

func TestConcreteScenarioD(t *testing.T) {
	e := newTestEngine(t)
	cardio := e.Catalog().Templates(CategoryCardio)
	var history []HistoryEntry
	for i := 0; i < 10; i++ {
		history = append(history, historyFor(cardio[i%len(cardio)], daysAgo(float64(i*2)+1)))
	}

	rec, decision := e.Decide(DailySignal{Stress: 10}, "Follicular", UserMetadata{}, Options{History: history})
	assert.Equal(t, RuleCategoryTarget, decision.Rule)
	assert.Equal(t, CategoryStrength, decision.TargetCategory)
	assert.Equal(t, CategoryStrength, categoryOfTitle(t, e, rec.Title))
}

func TestLutealCapAppliesOnAdherencePath(t *testing.T) {
	e := newTestEngine(t)
	rec := e.Generate(DailySignal{Stress: 10}, "Luteal", UserMetadata{IsGLP1: boolPtr(true)}, Options{})
	assert.Equal(t, 0.6, rec.IntensityLevel)
}

func TestProvenanceFields(t *testing.T) {
	e := newTestEngine(t)

	rec := e.Generate(DailySignal{Stress: 10, Overall: floatPtr(72.5), LIS: floatPtr(10)}, "Follicular", UserMetadata{}, Options{})
	require.NotNil(t, rec.DerivedFromSignalScore)
	assert.Equal(t, 73, *rec.DerivedFromSignalScore)
	require.NotNil(t, rec.DerivedFromCyclePhase)
	assert.Equal(t, "Follicular", *rec.DerivedFromCyclePhase)

	rec = e.Generate(DailySignal{Stress: 10, LIS: floatPtr(41.2)}, "", UserMetadata{}, Options{})
	require.NotNil(t, rec.DerivedFromSignalScore)
	assert.Equal(t, 41, *rec.DerivedFromSignalScore)
	assert.Nil(t, rec.DerivedFromCyclePhase)

	rec = e.Generate(DailySignal{Stress: 10, Overall: floatPtr(math.NaN())}, "", UserMetadata{}, Options{})
	assert.Nil(t, rec.DerivedFromSignalScore)
}

func TestGenerateIsDeterministic(t *testing.T) {
	e := newTestEngine(t)
	history := []HistoryEntry{
		historyFor(e.Catalog().Templates(CategoryCardio)[0], daysAgo(1)),
		historyFor(e.Catalog().Templates(CategoryStrength)[0], daysAgo(3)),
	}
	signal := DailySignal{Stress: 35, Overall: floatPtr(64)}
	opts := Options{History: history, Now: fixedNow}

	first := e.Generate(signal, "Ovulatory", UserMetadata{}, opts)
	second := e.Generate(signal, "Ovulatory", UserMetadata{}, opts)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("replay mismatch (-first +second):\n%s", diff)
	}
}

func TestGenerateDoesNotMutateInputs(t *testing.T) {
	e := newTestEngine(t)
	history := []HistoryEntry{
		historyFor(e.Catalog().Templates(CategoryCardio)[1], daysAgo(4)),
		historyFor(e.Catalog().Templates(CategoryCardio)[0], daysAgo(1)),
	}
	snapshot := append([]HistoryEntry(nil), history...)
	before := e.Catalog().All()

	rec := e.Generate(DailySignal{Stress: 10}, "Follicular", UserMetadata{}, Options{History: history})
	rec.Instructions[0].Action = "mutated"

	if diff := cmp.Diff(snapshot, history); diff != "" {
		t.Fatalf("history mutated:\n%s", diff)
	}
	if diff := cmp.Diff(before, e.Catalog().All()); diff != "" {
		t.Fatalf("catalog mutated:\n%s", diff)
	}
}

func TestIntensityAlwaysWithinUnitRange(t *testing.T) {
	e := newTestEngine(t)
	phases := []string{"", "Luteal", "luteal", "menstrual", "Follicular"}
	stresses := []float64{-10, 0, 50, 80, 81, 100, 250}
	for _, phase := range phases {
		for _, stress := range stresses {
			for _, glp := range []bool{false, true} {
				rec := e.Generate(DailySignal{Stress: stress}, phase, UserMetadata{IsGLP1: boolPtr(glp)}, Options{})
				assert.GreaterOrEqual(t, rec.IntensityLevel, 0.0)
				assert.LessOrEqual(t, rec.IntensityLevel, 1.0)
			}
		}
	}
}

func TestGenerateConcurrentCallers(t *testing.T) {
	e := newTestEngine(t)
	history := []HistoryEntry{historyFor(e.Catalog().Templates(CategoryStrength)[0], daysAgo(1))}
	want := e.Generate(DailySignal{Stress: 10}, "Follicular", UserMetadata{}, Options{History: history})

	var wg sync.WaitGroup
	results := make([]Recommendation, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Generate(DailySignal{Stress: 10}, "Follicular", UserMetadata{}, Options{History: history})
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("concurrent result mismatch:\n%s", diff)
		}
	}
}

func TestNewRequiresCatalog(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}
