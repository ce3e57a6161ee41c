package protocols

import (
	"time"

	"wellness-backend/internal/protocols/engine"
)

// DayLayout is the calendar-day key format protocols are stored under.
const DayLayout = "2006-01-02"

// Protocol is a persisted daily recommendation plus its provenance.
type Protocol struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Day    string `json:"day"`
	engine.Recommendation
	Category        engine.Category `json:"category"`
	Rule            engine.Rule     `json:"rule"`
	VarietyFallback bool            `json:"varietyFallback"`
	CatalogVersion  string          `json:"catalogVersion"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// HistoryEntry snapshots the protocol in the shape the engine reads. The entry
// is dated by the day it was generated for, not by when the row was written.
func (p Protocol) HistoryEntry() engine.HistoryEntry {
	return engine.HistoryEntry{
		CreatedAt:    p.OccurredAt(),
		Title:        p.Title,
		FocusArea:    p.FocusArea,
		Instructions: append([]engine.Instruction(nil), p.Instructions...),
	}
}

// OccurredAt is CreatedAt when it falls on Day, otherwise the last instant of
// Day. Backfilled protocols are created long after the day they cover.
func (p Protocol) OccurredAt() time.Time {
	if p.Day == "" || DayOf(p.CreatedAt) == p.Day {
		return p.CreatedAt
	}
	start, err := time.Parse(DayLayout, p.Day)
	if err != nil {
		return p.CreatedAt
	}
	return endOfDay(start)
}

func endOfDay(start time.Time) time.Time {
	return start.Add(24*time.Hour - time.Nanosecond)
}

// DayOf returns the UTC calendar day of t.
func DayOf(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

func cloneProtocol(p Protocol) Protocol {
	p.Instructions = append([]engine.Instruction(nil), p.Instructions...)
	p.ClinicalEvidence = append([]string(nil), p.ClinicalEvidence...)
	if p.DerivedFromSignalScore != nil {
		score := *p.DerivedFromSignalScore
		p.DerivedFromSignalScore = &score
	}
	if p.DerivedFromCyclePhase != nil {
		phase := *p.DerivedFromCyclePhase
		p.DerivedFromCyclePhase = &phase
	}
	return p
}
