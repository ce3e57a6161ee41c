package engine

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

const (
	recentEntryLimit = 5
	recentWindow     = 7 * 24 * time.Hour
)

// recentSet holds the signatures of the recent window.
type recentSet struct {
	titles    map[string]struct{}
	primaries map[string]struct{}
}

func newRecentSet(history []HistoryEntry, now time.Time) recentSet {
	set := recentSet{
		titles:    make(map[string]struct{}),
		primaries: make(map[string]struct{}),
	}
	cutoff := now.Add(-recentWindow)
	for _, entry := range latestEntries(history, recentEntryLimit) {
		if entry.CreatedAt.Before(cutoff) {
			continue
		}
		if title := normalizeText(entry.Title); title != "" {
			set.titles[title] = struct{}{}
		}
		if primary := primarySignature(entry.Instructions); primary != "" {
			set.primaries[primary] = struct{}{}
		}
	}
	return set
}

// latestEntries sorts a copy of history newest first and keeps at most limit entries.
func latestEntries(history []HistoryEntry, limit int) []HistoryEntry {
	sorted := append([]HistoryEntry(nil), history...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func (r recentSet) collides(tpl Template) bool {
	if _, ok := r.titles[normalizeText(tpl.Title)]; ok {
		return true
	}
	primary := primarySignature(tpl.Instructions)
	if primary == "" {
		return false
	}
	_, ok := r.primaries[primary]
	return ok
}

// pick returns the first candidate outside the recent window. When every
// candidate collides it returns the first one with fallback set.
func (r recentSet) pick(candidates []Template) (tpl Template, fallback bool, ok bool) {
	if len(candidates) == 0 {
		return Template{}, false, false
	}
	for _, c := range candidates {
		if !r.collides(c) {
			return c, false, true
		}
	}
	return candidates[0], true, true
}

// primarySignature fingerprints the first two steps ordered by step number.
func primarySignature(instructions []Instruction) string {
	if len(instructions) == 0 {
		return ""
	}
	steps := append([]Instruction(nil), instructions...)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Step < steps[j].Step
	})
	if len(steps) > 2 {
		steps = steps[:2]
	}
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		parts = append(parts, normalizeText(s.Action))
	}
	return strings.Join(parts, "|")
}

// normalizeText lower-cases, drops punctuation and collapses whitespace.
func normalizeText(s string) string {
	var b strings.Builder
	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return b.String()
}
