package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	cases := map[string]string{
		"  Zone 2   Metabolic Walk ": "zone 2 metabolic walk",
		"Child's pose!":              "childs pose",
		"90/90 hip switches":         "9090 hip switches",
		"\tTabs\nand\nnewlines":      "tabs and newlines",
		"...":                        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeText(in), "input %q", in)
	}
}

func TestPrimarySignatureOrdersBySteps(t *testing.T) {
	a := []Instruction{{Step: 3, Action: "c"}, {Step: 1, Action: "A"}, {Step: 2, Action: "b."}}
	b := []Instruction{{Step: 1, Action: "a"}, {Step: 2, Action: "B"}}
	assert.Equal(t, "a|b", primarySignature(a))
	assert.Equal(t, primarySignature(a), primarySignature(b))
	assert.Equal(t, "", primarySignature(nil))
}

func TestRecentSetWindow(t *testing.T) {
	tpl := func(title string) Template {
		return Template{Title: title, Instructions: []Instruction{{Step: 1, Action: title + " step"}}}
	}
	history := []HistoryEntry{
		historyFor(tpl("Old"), daysAgo(8)),
		historyFor(tpl("One"), daysAgo(1)),
		historyFor(tpl("Two"), daysAgo(2)),
		historyFor(tpl("Three"), daysAgo(3)),
		historyFor(tpl("Four"), daysAgo(4)),
		historyFor(tpl("Five"), daysAgo(5)),
		historyFor(tpl("Six"), daysAgo(6)),
	}
	set := newRecentSet(history, fixedNow)

	assert.True(t, set.collides(tpl("one")))
	assert.True(t, set.collides(tpl("Five")))
	assert.False(t, set.collides(tpl("Six")), "sixth most recent entry is outside the five-entry cap")
	assert.False(t, set.collides(tpl("Old")), "entries older than seven days are ignored")
}

func TestRecentSetPickFallsBackToFirst(t *testing.T) {
	a := Template{Title: "A", Instructions: []Instruction{{Step: 1, Action: "x"}}}
	b := Template{Title: "B", Instructions: []Instruction{{Step: 1, Action: "y"}}}
	set := newRecentSet([]HistoryEntry{historyFor(a, daysAgo(1)), historyFor(b, daysAgo(2))}, fixedNow)

	got, fallback, ok := set.pick([]Template{a, b})
	assert.True(t, ok)
	assert.True(t, fallback)
	assert.Equal(t, "A", got.Title)

	_, _, ok = set.pick(nil)
	assert.False(t, ok)
}
