package engine

// stressOverrideThreshold is exclusive: a stress of exactly 80 does not fire.
const stressOverrideThreshold = 80

var searchOrder = map[Category][]Category{
	CategoryStrength: {CategoryStrength, CategoryMobility, CategoryCardio},
	CategoryMobility: {CategoryMobility, CategoryStrength, CategoryCardio},
	CategoryCardio:   {CategoryCardio, CategoryStrength, CategoryMobility},
}

// resolve walks the priority list; the first matching rule wins.
func (e *Engine) resolve(sig normalizedSignal, opts Options) (Template, Decision) {
	decision := Decision{AdherenceFlagged: sig.adherence}

	if sig.stress > stressOverrideThreshold {
		tpl := e.catalog.stressReset
		decision.Rule = RuleStressOverride
		decision.TargetCategory = tpl.Category
		decision.Category = tpl.Category
		return tpl, decision
	}

	recent := newRecentSet(opts.History, opts.Now)

	if sig.adherence {
		tpl, fallback, _ := recent.pick(e.catalog.byCategory[CategoryStrength])
		decision.Rule = RuleAdherenceOverride
		decision.TargetCategory = CategoryStrength
		decision.Category = CategoryStrength
		decision.VarietyFallback = fallback
		return tpl, decision
	}

	var target Category
	if isLuteal(sig.phase, e.uniformPhase) || isMenstrual(sig.phase) {
		target = CategoryMobility
		decision.Rule = RulePhaseBias
	} else {
		target = targetCategory(opts.History, opts.Now)
		decision.Rule = RuleCategoryTarget
	}
	decision.TargetCategory = target

	var (
		selected Template
		found    bool
	)
	for _, cat := range searchOrder[target] {
		tpl, fallback, ok := recent.pick(e.catalog.byCategory[cat])
		if !ok {
			continue
		}
		selected, found = tpl, true
		decision.Category = cat
		decision.VarietyFallback = fallback
		if !fallback {
			break
		}
	}
	if !found {
		// unreachable with a validated catalog
		selected = e.catalog.byCategory[CategoryCardio][0]
		decision.Category = CategoryCardio
		decision.VarietyFallback = true
	}
	return selected, decision
}
