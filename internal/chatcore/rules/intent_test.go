package rules

import (
	"testing"

	"github.com/pinggolf/inventory-chat-core/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_DefaultsThenValidatePasses(t *testing.T) {
	p := Params{}
	p.Defaults()
	assert.Equal(t, 10, p.N)
	assert.Equal(t, 14, p.HorizonDays)
	assert.Equal(t, "7d", p.Period)
	assert.NoError(t, p.Validate())
}

func TestParams_ValidateRejectsOutOfRangeValues(t *testing.T) {
	p := Params{N: 51, HorizonDays: 14, Period: "7d"}
	require.ErrorIs(t, p.Validate(), apperr.ErrValidation)

	p = Params{N: 10, HorizonDays: 0, Period: "7d"}
	require.ErrorIs(t, p.Validate(), apperr.ErrValidation)

	p = Params{N: 10, HorizonDays: 31, Period: "7d"}
	require.ErrorIs(t, p.Validate(), apperr.ErrValidation)

	p = Params{N: 10, HorizonDays: 14, Period: "bogus"}
	require.ErrorIs(t, p.Validate(), apperr.ErrValidation)
}

func TestRegistry_RegisterReplacesKeywords(t *testing.T) {
	r := NewRegistry()
	r.Register(Definition{IntentSlowMovers, []string{"stale"}})
	r.Register(Definition{IntentSlowMovers, []string{"slow mover"}})

	all := r.GetAll()
	assert.Len(t, all, 1)
	assert.Equal(t, []string{"slow mover"}, all[0].Keywords)

	def, ok := r.GetByName(IntentSlowMovers)
	assert.True(t, ok)
	assert.Equal(t, []string{"slow mover"}, def.Keywords)

	_, ok = r.GetByName(IntentWeekInReview)
	assert.False(t, ok)
}

func TestResolve_NoKeywordMatchIsUnresolved(t *testing.T) {
	reg := DefaultRegistry()
	res := Resolve(reg, "what's the weather like today")
	assert.Equal(t, IntentUnresolved, res.Intent)
	assert.Equal(t, float64(0), res.Confidence)
}

func TestResolve_TopNAndMarginKeyword(t *testing.T) {
	reg := DefaultRegistry()
	res := Resolve(reg, "show me the top 5 skus by margin")
	assert.Equal(t, IntentTopSKUsByMargin, res.Intent)
	assert.Equal(t, 5, res.Params.N)
	assert.Equal(t, "rules", res.Source)
}

func TestResolve_HorizonDaysExtraction(t *testing.T) {
	reg := DefaultRegistry()
	res := Resolve(reg, "what's my stockout risk over the next 21 days")
	assert.Equal(t, IntentStockoutRisk, res.Intent)
	assert.Equal(t, 21, res.Params.HorizonDays)
}

func TestResolve_QuarterlyRewrittenToAnnualOnYearlyWord(t *testing.T) {
	reg := DefaultRegistry()
	res := Resolve(reg, "give me the quarter forecast for annual revenue in 2025")
	assert.Equal(t, IntentAnnualBreakdown, res.Intent)
	assert.Equal(t, 2025, res.Params.TargetYear)
}

func TestResolve_QuarterlyStaysQuarterlyWithoutYearlyWord(t *testing.T) {
	reg := DefaultRegistry()
	res := Resolve(reg, "what's the quarterly forecast projection for 2025")
	assert.Equal(t, IntentQuarterlyForecast, res.Intent)
	assert.Equal(t, 2025, res.Params.TargetYear)
}

func TestResolve_ConfidenceScalesWithHitCountAndCaps(t *testing.T) {
	reg := DefaultRegistry()
	res := Resolve(reg, "restock reorder replenish purchase order now please")
	assert.Equal(t, IntentReorderSuggestions, res.Intent)
	assert.LessOrEqual(t, res.Confidence, 1.0)
	assert.Greater(t, res.Confidence, 0.4)
}
