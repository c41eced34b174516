package params

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTime_Idempotent(t *testing.T) {
	loc, err := time.LoadLocation("UTC")
	require.NoError(t, err)
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, loc)

	first := NormalizeTime("show me last 30 days of sales", now, loc)
	second := NormalizeTime("show me last 30 days of sales", now, loc)

	assert.True(t, first.Start.Equal(second.Start))
	assert.True(t, first.End.Equal(second.End))
	assert.Equal(t, now.AddDate(0, 0, -30), first.Start)
}

func TestNormalizeTime_RecognizedPhrases(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, loc)

	cases := map[string]TimeWindow{
		"today":         {Start: time.Date(2026, 7, 31, 0, 0, 0, 0, loc), End: now},
		"YESTERDAY":     {Start: time.Date(2026, 7, 30, 0, 0, 0, 0, loc), End: time.Date(2026, 7, 31, 0, 0, 0, 0, loc)},
		"past week":     {Start: now.AddDate(0, 0, -7), End: now},
		"this month":    {Start: time.Date(2026, 7, 1, 0, 0, 0, 0, loc), End: now},
		"q1 projection": {Start: time.Date(2026, 1, 1, 0, 0, 0, 0, loc), End: time.Date(2026, 4, 1, 0, 0, 0, 0, loc)},
	}

	for phrase, want := range cases {
		got := NormalizeTime(phrase, now, loc)
		assert.True(t, want.Start.Equal(got.Start), "phrase %q start", phrase)
		assert.True(t, want.End.Equal(got.End), "phrase %q end", phrase)
	}
}

func TestNormalizeTime_DefaultsToLast7Days(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, loc)
	got := NormalizeTime("how are things going", now, loc)
	assert.Equal(t, now.AddDate(0, 0, -7), got.Start)
	assert.Equal(t, now, got.End)
}

func TestParseNumbersUnits(t *testing.T) {
	got := ParseNumbersUnits("reorder top 14 days horizon at 20% margin, 5 units")
	assert.InDelta(t, 14, got["days"], 0.001)
	assert.InDelta(t, 0.20, got["percent"], 0.001)
	assert.InDelta(t, 5, got["qty"], 0.001)
}

func TestParseNumbersUnits_Deterministic(t *testing.T) {
	prompt := "10 pcs and 3 days and 50 percent"
	first := ParseNumbersUnits(prompt)
	second := ParseNumbersUnits(prompt)
	assert.Equal(t, first, second)
}

func TestResolveSKUs_OrderedDedup(t *testing.T) {
	aliases := []Alias{
		{Phrase: "iphone", SKUs: []string{"APPL-IPH-001", "APPL-IPH-002"}},
		{Phrase: "case", SKUs: []string{"APPL-IPH-001"}},
	}
	got := ResolveSKUs("need the iphone case restocked", aliases)
	assert.Equal(t, []string{"APPL-IPH-001", "APPL-IPH-002"}, got)
}
