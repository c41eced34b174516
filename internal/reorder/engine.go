// Package reorder implements the per-product reorder recommendation
// algorithm and the supplier-grouped draft-PO builder (component C6).
// Structured around the go-coffee AutoReorderService's recommendation
// pipeline (velocity selection, shortfall, MOQ, supplier grouping), with
// step order and guardrails rewritten to this spec's exact rules.
package reorder

import (
	"fmt"
	"math"
	"time"

	"github.com/pinggolf/inventory-chat-core/internal/db"
	"github.com/shopspring/decimal"
)

// Strategy selects which positive velocity candidate to prefer.
type Strategy string

const (
	StrategyLatest       Strategy = "latest"
	StrategyConservative Strategy = "conservative"
)

// Reason is a machine-readable tag describing an adjustment applied
// during recommendation computation.
type Reason string

const (
	ReasonBelowReorderPoint Reason = "BELOW_REORDER_POINT"
	ReasonLeadTimeRisk      Reason = "LEAD_TIME_RISK"
	ReasonIncomingCoverage  Reason = "INCOMING_COVERAGE"
	ReasonMOQEnforced       Reason = "MOQ_ENFORCED"
	ReasonPackRounded       Reason = "PACK_ROUNDED"
	ReasonCappedByMaxDays   Reason = "CAPPED_BY_MAX_DAYS"
	ReasonZeroVelocitySkip  Reason = "ZERO_VELOCITY_SKIPPED"
	ReasonNoVelocity        Reason = "NO_VELOCITY"
)

// Explanation captures the inputs, intermediate values, and the logic
// path a recommendation took, for the UI's query explainer.
type Explanation struct {
	Inputs       map[string]interface{} `json:"inputs"`
	Calculations map[string]interface{} `json:"calculations"`
	LogicPath    []string                `json:"logic_path"`
}

// Recommendation is the per-product output of Evaluate. A Recommendation
// with Dropped=true means the guardrails excluded this product entirely.
type Recommendation struct {
	ProductID        string              `json:"product_id"`
	SKU              string              `json:"sku"`
	Dropped          bool                `json:"dropped"`
	Quantity         int                 `json:"recommended_quantity"`
	VelocitySource   db.VelocitySource   `json:"velocity_source"`
	Velocity         float64             `json:"velocity"`
	Reasons          []Reason            `json:"reasons"`
	Adjustments      []string            `json:"adjustments"`
	Explanation      Explanation         `json:"explanation"`
	DaysCoverCurrent *float64            `json:"days_cover_current,omitempty"`
	DaysCoverAfter   *float64            `json:"days_cover_after,omitempty"`
	UnitCost         decimal.NullDecimal `json:"unit_cost"`
	SupplierID       string              `json:"supplier_id,omitempty"`
}

func positiveVelocities(row db.ReorderInputsRow) []struct {
	value  float64
	source db.VelocitySource
} {
	var out []struct {
		value  float64
		source db.VelocitySource
	}
	if row.V7d.Valid {
		if v, _ := row.V7d.Decimal.Float64(); v > 0 {
			out = append(out, struct {
				value  float64
				source db.VelocitySource
			}{v, db.VelocitySource7d})
		}
	}
	if row.V30d.Valid {
		if v, _ := row.V30d.Decimal.Float64(); v > 0 {
			out = append(out, struct {
				value  float64
				source db.VelocitySource
			}{v, db.VelocitySource30d})
		}
	}
	if row.V56d.Valid {
		if v, _ := row.V56d.Decimal.Float64(); v > 0 {
			out = append(out, struct {
				value  float64
				source db.VelocitySource
			}{v, db.VelocitySource56d})
		}
	}
	return out
}

// selectVelocity implements step 1: "latest" picks the first positive
// candidate in v7/v30/v56 priority order; "conservative" picks the
// minimum of the positive candidates. No positive candidate -> 0/"none".
func selectVelocity(row db.ReorderInputsRow, strategy Strategy) (float64, db.VelocitySource) {
	candidates := positiveVelocities(row)
	if len(candidates) == 0 {
		return 0, db.VelocitySourceNone
	}

	if strategy == StrategyConservative {
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.value < best.value {
				best = c
			}
		}
		return best.value, best.source
	}

	return candidates[0].value, candidates[0].source
}

// Evaluate runs the full per-product reorder algorithm (steps 1-10) on a
// single reorder-inputs row. overrideHorizonDays of 0 means "no override".
func Evaluate(row db.ReorderInputsRow, strategy Strategy, overrideHorizonDays int, now time.Time) Recommendation {
	rec := Recommendation{ProductID: row.ProductID, SKU: row.SKU}
	if row.SupplierID.Valid {
		rec.SupplierID = row.SupplierID.String
	}
	rec.UnitCost = row.UnitCost

	explanation := Explanation{
		Inputs: map[string]interface{}{
			"on_hand":        row.OnHand,
			"reorder_point":  row.ReorderPoint,
			"pack_size":      row.PackSize,
			"lead_time_days": row.LeadTimeDays,
			"moq":            row.MOQ,
			"strategy":       strategy,
		},
		Calculations: map[string]interface{}{},
	}

	// Step 1: velocity selection
	velocity, source := selectVelocity(row, strategy)
	rec.Velocity = velocity
	rec.VelocitySource = source
	explanation.LogicPath = append(explanation.LogicPath, fmt.Sprintf("velocity=%.4f source=%s", velocity, source))

	// Step 2: horizon
	horizonDays := overrideHorizonDays
	if horizonDays == 0 {
		horizonDays = row.LeadTimeDays + safetyStockDaysOf(row)
		if horizonDays < 7 {
			horizonDays = 7
		}
	}
	explanation.Calculations["horizon_days"] = horizonDays

	// Step 3: demand forecast
	demand := 0.0
	if velocity > 0 {
		demand = velocity * float64(horizonDays)
	}
	explanation.Calculations["demand"] = demand

	// Step 4: incoming
	incoming := row.Incoming30d
	if horizonDays > 30 {
		incoming = row.Incoming60d
	}
	explanation.Calculations["incoming"] = incoming

	// Step 5: raw shortfall
	raw := demand - float64(row.OnHand+incoming)
	qty := math.Max(0, raw)
	explanation.Calculations["raw_shortfall"] = raw

	var reasons []Reason
	var adjustments []string

	// Step 6: reorder bump
	if row.OnHand < row.ReorderPoint {
		bumped := float64(row.ReorderPoint - row.OnHand)
		if bumped > qty {
			adjustments = append(adjustments, fmt.Sprintf("raised qty from %.0f to %.0f (below reorder point)", qty, bumped))
			qty = bumped
		}
		reasons = append(reasons, ReasonBelowReorderPoint)
	}

	if raw > 0 {
		reasons = append(reasons, ReasonLeadTimeRisk)
	}
	if incoming > 0 {
		reasons = append(reasons, ReasonIncomingCoverage)
	}

	// Step 7: MOQ
	if qty > 0 && qty < float64(row.MOQ) {
		adjustments = append(adjustments, fmt.Sprintf("raised qty from %.0f to %d (MOQ)", qty, row.MOQ))
		qty = float64(row.MOQ)
		reasons = append(reasons, ReasonMOQEnforced)
	}

	// Step 8: pack rounding
	if qty > 0 && row.PackSize > 1 {
		rounded := math.Ceil(qty/float64(row.PackSize)) * float64(row.PackSize)
		if rounded != qty {
			adjustments = append(adjustments, fmt.Sprintf("rounded qty from %.0f to %.0f (pack size %d)", qty, rounded, row.PackSize))
		}
		qty = rounded
		reasons = append(reasons, ReasonPackRounded)
	}

	// Step 9: max-stock cap
	if row.MaxStockDays.Valid && velocity > 0 {
		cap := velocity*float64(row.MaxStockDays.Int32) - float64(row.OnHand+incoming)
		if cap < 0 {
			cap = 0
		}
		if qty > cap {
			adjustments = append(adjustments, fmt.Sprintf("capped qty from %.0f to %.0f (max stock days %d)", qty, cap, row.MaxStockDays.Int32))
			qty = cap
			reasons = append(reasons, ReasonCappedByMaxDays)
		}
	}

	finalQty := int(math.Round(qty))

	// Step 10: guardrails
	moqForced := false
	for _, r := range reasons {
		if r == ReasonMOQEnforced {
			moqForced = true
		}
	}
	if velocity == 0 {
		if row.OnHand >= row.ReorderPoint {
			rec.Dropped = true
			rec.Reasons = []Reason{ReasonZeroVelocitySkip}
			rec.Explanation = explanation
			return rec
		}
		reasons = append(reasons, ReasonNoVelocity)
	}
	if finalQty < 1 && !moqForced {
		rec.Dropped = true
		rec.Explanation = explanation
		return rec
	}

	rec.Quantity = finalQty
	rec.Reasons = reasons
	rec.Adjustments = adjustments
	rec.Explanation = explanation

	if velocity > 0 {
		current := float64(row.OnHand) / velocity
		after := float64(row.OnHand+incoming+finalQty) / velocity
		rec.DaysCoverCurrent = &current
		rec.DaysCoverAfter = &after
	}

	return rec
}

// safetyStockDaysOf reads the mart's safety_stock_days column. A row
// built without it (e.g. a hand-built test fixture) falls back to 3,
// matching the products table's own column default.
func safetyStockDaysOf(row db.ReorderInputsRow) int {
	if row.SafetyStockDays <= 0 {
		return 3
	}
	return row.SafetyStockDays
}

// DraftPO is one supplier-grouped draft purchase order assembled from
// surviving recommendations.
type DraftPO struct {
	PONumber         string
	SupplierID       string
	Items            []DraftPOItem
	TotalAmount      decimal.Decimal
	EstimatedDelivery time.Time
}

// DraftPOItem is one line of a DraftPO.
type DraftPOItem struct {
	ProductID string
	SKU       string
	Quantity  int
	UnitCost  decimal.Decimal
	LineTotal decimal.Decimal
}

// GroupIntoDraftPOs buckets surviving (non-dropped) recommendations by
// supplier, generating one draft PO per supplier with sequential PO
// numbers and computed line/PO totals.
func GroupIntoDraftPOs(recs []Recommendation, leadTimeDaysBySupplier map[string]int, poNumberPrefix string, now time.Time) []DraftPO {
	bySupplier := make(map[string][]Recommendation)
	var order []string
	for _, r := range recs {
		if r.Dropped || r.SupplierID == "" {
			continue
		}
		if _, seen := bySupplier[r.SupplierID]; !seen {
			order = append(order, r.SupplierID)
		}
		bySupplier[r.SupplierID] = append(bySupplier[r.SupplierID], r)
	}

	var pos []DraftPO
	for i, supplierID := range order {
		recs := bySupplier[supplierID]
		po := DraftPO{
			PONumber:   fmt.Sprintf("%s-%03d", poNumberPrefix, i+1),
			SupplierID: supplierID,
			TotalAmount: decimal.Zero,
		}
		for _, r := range recs {
			item := DraftPOItem{ProductID: r.ProductID, SKU: r.SKU, Quantity: r.Quantity}
			if r.UnitCost.Valid {
				item.UnitCost = r.UnitCost.Decimal
				item.LineTotal = r.UnitCost.Decimal.Mul(decimal.NewFromInt(int64(r.Quantity)))
				po.TotalAmount = po.TotalAmount.Add(item.LineTotal)
			}
			po.Items = append(po.Items, item)
		}
		leadDays := leadTimeDaysBySupplier[supplierID]
		po.EstimatedDelivery = now.AddDate(0, 0, leadDays)
		pos = append(pos, po)
	}

	return pos
}
