package engine

import (
	"strings"
	"time"
)

const planningWindow = 28 * 24 * time.Hour

var targetRatio = map[Category]float64{
	CategoryStrength: 0.4,
	CategoryMobility: 0.3,
	CategoryCardio:   0.3,
}

var focusAreaCategory = map[string]Category{
	"Sarcopenia Prevention": CategoryStrength,
	"Bone Density":          CategoryStrength,
	"Nervous System Reset":  CategoryMobility,
	"Hormonal Balance":      CategoryMobility,
	"Metabolic":             CategoryCardio,
}

// Categorize maps a focus area to its category, falling back to title keywords
// and finally Cardio.
func Categorize(focusArea, title string) Category {
	if cat, ok := focusAreaCategory[strings.TrimSpace(focusArea)]; ok {
		return cat
	}
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "strength") || strings.Contains(lower, "resistance"):
		return CategoryStrength
	case strings.Contains(lower, "mobility") || strings.Contains(lower, "yoga") || strings.Contains(lower, "breath"):
		return CategoryMobility
	default:
		return CategoryCardio
	}
}

// targetCategory returns the category furthest below its share of the last 28 days.
func targetCategory(history []HistoryEntry, now time.Time) Category {
	cutoff := now.Add(-planningWindow)
	counts := make(map[Category]float64, len(categoryOrder))
	total := 0
	for _, entry := range history {
		if entry.CreatedAt.Before(cutoff) {
			continue
		}
		counts[Categorize(entry.FocusArea, entry.Title)]++
		total++
	}

	best := categoryOrder[0]
	bestDeficit := 0.0
	for i, cat := range categoryOrder {
		// +1 counts today's pending pick
		deficit := targetRatio[cat]*float64(total+1) - counts[cat]
		if i == 0 || deficit > bestDeficit {
			best, bestDeficit = cat, deficit
		}
	}
	return best
}
