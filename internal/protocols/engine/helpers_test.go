package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	e, err := New(catalog, append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
	require.NoError(t, err)
	return e
}

func historyFor(tpl Template, createdAt time.Time) HistoryEntry {
	return HistoryEntry{
		CreatedAt:    createdAt,
		Title:        tpl.Title,
		FocusArea:    tpl.FocusArea,
		Instructions: append([]Instruction(nil), tpl.Instructions...),
	}
}

func categoryOfTitle(t *testing.T, e *Engine, title string) Category {
	t.Helper()
	for _, tpl := range e.Catalog().All() {
		if tpl.Title == title {
			return tpl.Category
		}
	}
	t.Fatalf("title %q not in catalog", title)
	return ""
}

func boolPtr(v bool) *bool { return &v }

func floatPtr(v float64) *float64 { return &v }

func daysAgo(n float64) time.Time {
	return fixedNow.Add(-time.Duration(n * float64(24*time.Hour)))
}
