package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyBand_Boundaries(t *testing.T) {
	assert.Equal(t, BandHigh, ClassifyBand(7.0))
	assert.Equal(t, BandMedium, ClassifyBand(7.0001))
	assert.Equal(t, BandMedium, ClassifyBand(14.0))
	assert.Equal(t, BandLow, ClassifyBand(14.0001))
	assert.Equal(t, BandLow, ClassifyBand(30.0))
	assert.Equal(t, BandNone, ClassifyBand(30.0001))
}

func TestAssess_ReorderPointUpgrade(t *testing.T) {
	// velocity low enough to land in "none", but on_hand <= reorder_point
	// bumps it to "medium".
	a := Assess("p1", "SKU-1", 100, 1, 20) // 100 days -> none, on_hand(100) > reorder_point(20): stays none
	assert.Equal(t, BandNone, a.Band)

	b := Assess("p2", "SKU-2", 10, 0.2, 50) // 50 days -> none, on_hand(10) <= reorder_point(50): bump to medium
	assert.Equal(t, BandNone, ClassifyBand(b.DaysToStockout))
	assert.Equal(t, BandMedium, b.Band)
}

func TestAssess_LowBandUnchangedByBump(t *testing.T) {
	a := Assess("p3", "SKU-3", 20, 1, 50) // 20 days -> low, on_hand(20) <= reorder_point(50)
	assert.Equal(t, BandLow, a.Band)
}

func TestAssess_ZeroVelocity(t *testing.T) {
	a := Assess("p4", "SKU-4", 100, 0, 20) // velocity 0, on_hand(100) > reorder_point(20) -> none
	assert.Equal(t, BandNone, a.Band)
	assert.Equal(t, float64(0), a.DaysToStockout)

	b := Assess("p5", "SKU-5", 5, 0, 20) // velocity 0, on_hand(5) <= reorder_point(20) -> medium
	assert.Equal(t, BandMedium, b.Band)
}

func TestSort_BandThenDays(t *testing.T) {
	items := []Assessment{
		{ProductID: "a", Band: BandLow, DaysToStockout: 25},
		{ProductID: "b", Band: BandHigh, DaysToStockout: 5},
		{ProductID: "c", Band: BandHigh, DaysToStockout: 2},
		{ProductID: "d", Band: BandMedium, DaysToStockout: 10},
	}
	Sort(items)
	ids := []string{items[0].ProductID, items[1].ProductID, items[2].ProductID, items[3].ProductID}
	assert.Equal(t, []string{"c", "b", "d", "a"}, ids)
}

func TestFilterWithinHorizon(t *testing.T) {
	items := []Assessment{
		{ProductID: "a", Velocity: 1, DaysToStockout: 5},
		{ProductID: "b", Velocity: 1, DaysToStockout: 40},
		{ProductID: "c", Velocity: 0, Band: BandMedium},
		{ProductID: "d", Velocity: 0, Band: BandNone},
	}
	got := FilterWithinHorizon(items, 14)
	var ids []string
	for _, a := range got {
		ids = append(ids, a.ProductID)
	}
	assert.ElementsMatch(t, []string{"a", "c"}, ids)
}
