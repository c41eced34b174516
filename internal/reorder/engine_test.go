package reorder

import (
	"database/sql"
	"testing"
	"time"

	"github.com/pinggolf/inventory-chat-core/internal/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func decimalPtr(v float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(v), Valid: true}
}

func TestEvaluate_ZeroVelocityAboveReorderPointIsDropped(t *testing.T) {
	row := db.ReorderInputsRow{
		ProductID: "p1", SKU: "SKU-1", OnHand: 100, ReorderPoint: 10, PackSize: 1, LeadTimeDays: 7, MOQ: 1,
	}
	rec := Evaluate(row, StrategyLatest, 0, time.Now())
	assert.True(t, rec.Dropped)
	assert.Contains(t, rec.Reasons, ReasonZeroVelocitySkip)
}

func TestEvaluate_MOQEnforced(t *testing.T) {
	row := db.ReorderInputsRow{
		ProductID: "p2", SKU: "SKU-2", OnHand: 0, ReorderPoint: 0, PackSize: 1, LeadTimeDays: 7, MOQ: 50,
		V7d: decimalPtr(1),
	}
	rec := Evaluate(row, StrategyLatest, 14, time.Now())
	assert.False(t, rec.Dropped)
	assert.Equal(t, 50, rec.Quantity)
	assert.Contains(t, rec.Reasons, ReasonMOQEnforced)
}

func TestEvaluate_BelowReorderPointCombinesLeadTimeMOQAndPackReasons(t *testing.T) {
	row := db.ReorderInputsRow{
		ProductID: "p9", SKU: "SKU-9", OnHand: 0, ReorderPoint: 5, PackSize: 12, MOQ: 20, LeadTimeDays: 7,
		V7d: decimalPtr(1), // demand = 1*14 = 14, raw_shortfall = 14 > 0
	}
	rec := Evaluate(row, StrategyLatest, 14, time.Now())
	assert.False(t, rec.Dropped)
	assert.Contains(t, rec.Reasons, ReasonBelowReorderPoint)
	assert.Contains(t, rec.Reasons, ReasonLeadTimeRisk)
	assert.Contains(t, rec.Reasons, ReasonMOQEnforced)
	assert.Contains(t, rec.Reasons, ReasonPackRounded)
}

func TestEvaluate_IncomingCoverageReasonWhenIncomingPositive(t *testing.T) {
	row := db.ReorderInputsRow{
		ProductID: "p10", SKU: "SKU-10", OnHand: 0, ReorderPoint: 0, PackSize: 1, MOQ: 1, LeadTimeDays: 7,
		V7d: decimalPtr(1), Incoming30d: 2,
	}
	rec := Evaluate(row, StrategyLatest, 14, time.Now())
	assert.Contains(t, rec.Reasons, ReasonIncomingCoverage)
}

func TestEvaluate_ZeroVelocityBelowReorderPointAddsNoVelocityReasonWithoutDropping(t *testing.T) {
	row := db.ReorderInputsRow{
		ProductID: "p11", SKU: "SKU-11", OnHand: 0, ReorderPoint: 10, PackSize: 1, MOQ: 1, LeadTimeDays: 7,
	}
	rec := Evaluate(row, StrategyLatest, 14, time.Now())
	assert.False(t, rec.Dropped)
	assert.Contains(t, rec.Reasons, ReasonNoVelocity)
	assert.Contains(t, rec.Reasons, ReasonBelowReorderPoint)
}

func TestEvaluate_PackRounding(t *testing.T) {
	row := db.ReorderInputsRow{
		ProductID: "p3", SKU: "SKU-3", OnHand: 0, ReorderPoint: 0, PackSize: 12, LeadTimeDays: 7, MOQ: 1,
		V7d: decimalPtr(2), // demand = 2*14=28
	}
	rec := Evaluate(row, StrategyLatest, 14, time.Now())
	assert.False(t, rec.Dropped)
	assert.Equal(t, 0, rec.Quantity%12)
	assert.Contains(t, rec.Reasons, ReasonPackRounded)
}

func TestEvaluate_MaxStockDaysCap(t *testing.T) {
	row := db.ReorderInputsRow{
		ProductID: "p4", SKU: "SKU-4", OnHand: 0, ReorderPoint: 0, PackSize: 1, LeadTimeDays: 7, MOQ: 1,
		V7d:          decimalPtr(10), // demand = 10*14=140
		MaxStockDays: sql.NullInt32{Int32: 5, Valid: true},
	}
	rec := Evaluate(row, StrategyLatest, 14, time.Now())
	assert.False(t, rec.Dropped)
	assert.LessOrEqual(t, rec.Quantity, 50) // velocity*max_stock_days
	assert.Contains(t, rec.Reasons, ReasonCappedByMaxDays)
}

func TestEvaluate_ConservativeStrategyPicksMinimum(t *testing.T) {
	row := db.ReorderInputsRow{
		ProductID: "p5", SKU: "SKU-5", OnHand: 0, ReorderPoint: 0, PackSize: 1, LeadTimeDays: 7, MOQ: 1,
		V7d: decimalPtr(10), V30d: decimalPtr(3),
	}
	velocity, source := selectVelocity(row, StrategyConservative)
	assert.Equal(t, 3.0, velocity)
	assert.Equal(t, db.VelocitySource30d, source)
}

func TestGroupIntoDraftPOs_LineTotals(t *testing.T) {
	recs := []Recommendation{
		{ProductID: "p1", SKU: "SKU-1", Quantity: 10, SupplierID: "sup-1", UnitCost: decimalPtr(2.5)},
		{ProductID: "p2", SKU: "SKU-2", Quantity: 5, SupplierID: "sup-1", UnitCost: decimalPtr(4)},
		{ProductID: "p3", SKU: "SKU-3", Dropped: true, SupplierID: "sup-1"},
	}
	pos := GroupIntoDraftPOs(recs, map[string]int{"sup-1": 10}, "PO", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Len(t, pos, 1)
	assert.Len(t, pos[0].Items, 2)
	assert.True(t, pos[0].TotalAmount.Equal(decimal.NewFromFloat(45)))
	assert.Equal(t, time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC), pos[0].EstimatedDelivery)
}

func TestSafetyStockDaysOf_UsesMartValueOverDefault(t *testing.T) {
	row := db.ReorderInputsRow{ProductID: "p6", SafetyStockDays: 10}
	assert.Equal(t, 10, safetyStockDaysOf(row))

	zeroRow := db.ReorderInputsRow{ProductID: "p7"}
	assert.Equal(t, 3, safetyStockDaysOf(zeroRow))
}

func TestEvaluate_HorizonUsesMartSafetyStockDaysWhenNotOverridden(t *testing.T) {
	row := db.ReorderInputsRow{
		ProductID: "p8", SKU: "SKU-8", OnHand: 0, ReorderPoint: 0, PackSize: 1,
		LeadTimeDays: 7, MOQ: 1, SafetyStockDays: 14,
		V7d: decimalPtr(2),
	}
	rec := Evaluate(row, StrategyLatest, 0, time.Now())
	assert.Equal(t, float64(21*2), rec.Explanation.Calculations["demand"])
}
