package engine

import (
	"errors"
	"time"
)

// Engine turns a day's signals and recent history into one recommendation.
// Same inputs and same clock produce the same output; an Engine holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	catalog      *Catalog
	clock        func() time.Time
	uniformPhase bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used when Options.Now is zero.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithUniformPhaseMatching compares the luteal phase case-insensitively, like menstrual.
func WithUniformPhaseMatching() Option {
	return func(e *Engine) {
		e.uniformPhase = true
	}
}

// New builds an Engine over a loaded catalog.
func New(catalog *Catalog, opts ...Option) (*Engine, error) {
	if catalog == nil {
		return nil, errors.New("engine: catalog is required")
	}
	e := &Engine{catalog: catalog, clock: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Catalog returns the catalog the engine selects from.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Generate returns the recommendation for the given day.
func (e *Engine) Generate(signal DailySignal, cyclePhase string, meta UserMetadata, opts Options) Recommendation {
	rec, _ := e.Decide(signal, cyclePhase, meta, opts)
	return rec
}

// Decide is Generate plus the trace of the rule that produced the pick.
func (e *Engine) Decide(signal DailySignal, cyclePhase string, meta UserMetadata, opts Options) (Recommendation, Decision) {
	if opts.Now.IsZero() {
		opts.Now = e.clock()
	}
	sig := normalizeSignal(signal, cyclePhase, meta)
	tpl, decision := e.resolve(sig, opts)

	rec := Recommendation{
		Title:                  tpl.Title,
		IntensityLevel:         adjustIntensity(tpl.BaseIntensity, sig.phase, e.uniformPhase),
		DurationMinutes:        tpl.DurationMinutes,
		FocusArea:              tpl.FocusArea,
		Coach:                  tpl.Coach,
		Instructions:           append([]Instruction{}, tpl.Instructions...),
		ClinicalEvidence:       append([]string{}, tpl.ClinicalEvidence...),
		DerivedFromSignalScore: sig.score,
		DerivedFromCyclePhase:  sig.phase,
	}
	return rec, decision
}
