package protocols

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellness-backend/internal/protocols/engine"
	"wellness-backend/internal/shared/lock"
)

func TestGenerateDailyCreatesThenReuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.GenerateDaily(ctx, "user-1", stressInput(40))
	require.NoError(t, err)
	assert.True(t, first.Created)
	require.NotNil(t, first.Decision)
	assert.Equal(t, "2025-03-14", first.Protocol.Day)
	assert.Equal(t, "Foundational Strength Circuit", first.Protocol.Title)
	assert.Equal(t, engine.RuleCategoryTarget, first.Protocol.Rule)
	assert.Equal(t, engine.CategoryStrength, first.Protocol.Category)
	assert.Equal(t, "2025.1", first.Protocol.CatalogVersion)
	assert.NotEmpty(t, first.Protocol.ID)

	second, err := f.svc.GenerateDaily(ctx, "user-1", stressInput(95))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Nil(t, second.Decision)
	assert.Equal(t, first.Protocol.ID, second.Protocol.ID)
	assert.Equal(t, first.Protocol.Title, second.Protocol.Title)
}

func TestGenerateDailyForceReplacesDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.GenerateDaily(ctx, "user-1", stressInput(40))
	require.NoError(t, err)

	in := stressInput(92)
	in.Force = true
	forced, err := f.svc.GenerateDaily(ctx, "user-1", in)
	require.NoError(t, err)
	assert.True(t, forced.Created)
	assert.NotEqual(t, first.Protocol.ID, forced.Protocol.ID)
	assert.Equal(t, engine.StressResetTitle, forced.Protocol.Title)
	assert.Equal(t, engine.RuleStressOverride, forced.Protocol.Rule)

	all, err := f.repo.ListByUser(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, forced.Protocol.ID, all[0].ID)
}

func TestGenerateDailyUsesPriorDaysAsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GenerateDaily(ctx, "user-1", stressInput(40))
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	next, err := f.svc.GenerateDaily(ctx, "user-1", stressInput(40))
	require.NoError(t, err)
	assert.True(t, next.Created)
	assert.Equal(t, "2025-03-15", next.Protocol.Day)
	assert.Equal(t, engine.CategoryMobility, next.Protocol.Category)
	assert.Equal(t, "Hormonal Balance Yoga Flow", next.Protocol.Title)
}

func TestGenerateDailyStoredMetadataTriggersAdherence(t *testing.T) {
	f := newFixture(t)
	f.setGLP1(t, "user-1")

	res, err := f.svc.GenerateDaily(context.Background(), "user-1", stressInput(40))
	require.NoError(t, err)
	assert.Equal(t, engine.RuleAdherenceOverride, res.Protocol.Rule)
	assert.Equal(t, engine.CategoryStrength, res.Protocol.Category)
	assert.True(t, res.Decision.AdherenceFlagged)
}

func TestGenerateDailyRequestMetadataOverridesStoredFlag(t *testing.T) {
	f := newFixture(t)
	f.setGLP1(t, "user-1")

	in := stressInput(40)
	in.Metadata = engine.UserMetadata{IsGLP1: boolPtr(false)}
	res, err := f.svc.GenerateDaily(context.Background(), "user-1", in)
	require.NoError(t, err)
	assert.Equal(t, engine.RuleCategoryTarget, res.Protocol.Rule)
}

func TestGenerateDailyRequestTagsAreMerged(t *testing.T) {
	f := newFixture(t)

	in := stressInput(40)
	in.Metadata = engine.UserMetadata{Tags: []string{" GLP1 "}}
	res, err := f.svc.GenerateDaily(context.Background(), "user-1", in)
	require.NoError(t, err)
	assert.Equal(t, engine.RuleAdherenceOverride, res.Protocol.Rule)
}

func TestGenerateDailyCarriesProvenance(t *testing.T) {
	f := newFixture(t)

	in := GenerateInput{
		Signal:     engine.DailySignal{Stress: 30, Overall: floatPtr(71.5)},
		CyclePhase: "Luteal",
	}
	res, err := f.svc.GenerateDaily(context.Background(), "user-1", in)
	require.NoError(t, err)
	assert.Equal(t, engine.RulePhaseBias, res.Protocol.Rule)
	require.NotNil(t, res.Protocol.DerivedFromSignalScore)
	assert.Equal(t, 72, *res.Protocol.DerivedFromSignalScore)
	require.NotNil(t, res.Protocol.DerivedFromCyclePhase)
	assert.Equal(t, "Luteal", *res.Protocol.DerivedFromCyclePhase)
	assert.LessOrEqual(t, res.Protocol.IntensityLevel, 0.6)
}

func TestGenerateDailyRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GenerateDaily(ctx, " ", stressInput(10))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.GenerateDaily(ctx, "user-1", stressInput(math.NaN()))
	assert.ErrorIs(t, err, ErrInvalidInput)

	in := stressInput(10)
	in.Day = "14/03/2025"
	_, err = f.svc.GenerateDaily(ctx, "user-1", in)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGenerateDailyReportsLockContention(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release, err := f.locker.Acquire(ctx, lock.DayKey("user-1", "2025-03-14"), time.Minute)
	require.NoError(t, err)
	defer release()

	_, err = f.svc.GenerateDaily(ctx, "user-1", stressInput(10))
	assert.ErrorIs(t, err, ErrInProgress)
}

func TestGenerateDailyExplicitDay(t *testing.T) {
	f := newFixture(t)

	in := stressInput(10)
	in.Day = "2025-03-10"
	res, err := f.svc.GenerateDaily(context.Background(), "user-1", in)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", res.Protocol.Day)

	_, err = f.svc.Today(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPreviewDoesNotPersist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, decision, err := f.svc.Preview(ctx, "user-1", stressInput(85))
	require.NoError(t, err)
	assert.Empty(t, p.ID)
	assert.Equal(t, engine.StressResetTitle, p.Title)
	assert.Equal(t, engine.RuleStressOverride, decision.Rule)

	_, err = f.svc.Today(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistoryPagesNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.GenerateDaily(ctx, "user-1", stressInput(20))
		require.NoError(t, err)
		f.clock.Advance(24 * time.Hour)
	}

	page, err := f.svc.History(ctx, "user-1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "2025-03-16", page[0].Day)
	assert.Equal(t, "2025-03-15", page[1].Day)

	rest, err := f.svc.History(ctx, "user-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "2025-03-14", rest[0].Day)
}

func TestGenerateDailyBackfilledDayIsDatedByItsDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	backfill := stressInput(40)
	backfill.CyclePhase = "Luteal"
	backfill.Day = "2025-02-20"
	old, err := f.svc.GenerateDaily(ctx, "user-1", backfill)
	require.NoError(t, err)
	require.Equal(t, "Hormonal Balance Yoga Flow", old.Protocol.Title)
	assert.Equal(t, time.Date(2025, time.February, 20, 23, 59, 59, 999999999, time.UTC), old.Protocol.OccurredAt())

	today := stressInput(40)
	today.CyclePhase = "Luteal"
	res, err := f.svc.GenerateDaily(ctx, "user-1", today)
	require.NoError(t, err)
	assert.Equal(t, "Hormonal Balance Yoga Flow", res.Protocol.Title, "a protocol for a day three weeks ago must not count as recent")
	assert.False(t, res.Protocol.VarietyFallback)
}

func TestGenerateDailyBackfilledYesterdayStillCountsAsRecent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	backfill := stressInput(40)
	backfill.CyclePhase = "Luteal"
	backfill.Day = "2025-03-13"
	_, err := f.svc.GenerateDaily(ctx, "user-1", backfill)
	require.NoError(t, err)

	today := stressInput(40)
	today.CyclePhase = "Luteal"
	res, err := f.svc.GenerateDaily(ctx, "user-1", today)
	require.NoError(t, err)
	assert.Equal(t, "Nervous System Reset", res.Protocol.Title)
}

func TestOccurredAt(t *testing.T) {
	sameDay := Protocol{Day: "2025-03-14", CreatedAt: day1}
	assert.Equal(t, day1, sameDay.OccurredAt())

	backfilled := Protocol{Day: "2025-03-01", CreatedAt: day1}
	assert.Equal(t, "2025-03-01", DayOf(backfilled.OccurredAt()))
	assert.Equal(t, "2025-03-01", DayOf(backfilled.HistoryEntry().CreatedAt))
}
