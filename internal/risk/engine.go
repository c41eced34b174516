// Package risk implements the stockout-risk banding used by the
// stockout_risk handler, the analytics stockout-risk endpoint, and the
// daily alert digest (component C7).
package risk

import "sort"

// Band is a stockout-risk severity bucket.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
	BandNone   Band = "none"
)

// bandPriority orders bands for the sort contract: high < medium < low < none.
var bandPriority = map[Band]int{
	BandHigh:   0,
	BandMedium: 1,
	BandLow:    2,
	BandNone:   3,
}

// ClassifyBand assigns a risk band from days-to-stockout, per the table:
// <=7 high, <=14 medium, <=30 low, >30 none.
func ClassifyBand(daysToStockout float64) Band {
	switch {
	case daysToStockout <= 7:
		return BandHigh
	case daysToStockout <= 14:
		return BandMedium
	case daysToStockout <= 30:
		return BandLow
	default:
		return BandNone
	}
}

// Assessment is one product's computed stockout risk.
type Assessment struct {
	ProductID       string
	SKU             string
	OnHand          int
	Velocity        float64 // 0 when no positive velocity candidate exists
	DaysToStockout  float64
	Band            Band
}

// Assess computes days-to-stockout and risk band for one product, given
// on-hand, the first non-null positive velocity candidate (v7 ?? v30 per
// the handler contract), and the product's reorder point. Velocity==0
// means no positive velocity was available.
func Assess(productID, sku string, onHand int, velocity float64, reorderPoint int) Assessment {
	a := Assessment{ProductID: productID, SKU: sku, OnHand: onHand, Velocity: velocity}

	if velocity <= 0 {
		a.DaysToStockout = 0
		a.Band = BandNone
		// Records with velocity==0 and on_hand>reorder_point are
		// classified none (explicit in the spec); on_hand<=reorder_point
		// with velocity==0 gets the same bump to medium, applied here.
		if onHand <= reorderPoint {
			a.Band = BandMedium
		}
		return a
	}

	a.DaysToStockout = float64(onHand) / velocity
	a.Band = ClassifyBand(a.DaysToStockout)

	// Reorder-point upgrade: on_hand <= reorder_point and band is "none"
	// bumps to "medium"; "low" is unchanged by the bump.
	if onHand <= reorderPoint && a.Band == BandNone {
		a.Band = BandMedium
	}

	return a
}

// FilterWithinHorizon keeps only assessments whose days-to-stockout falls
// within horizonDays (velocity==0 records, having DaysToStockout==0, are
// only kept when their band was upgraded to medium by the reorder-point
// rule — a genuine "no velocity but below reorder point" risk).
func FilterWithinHorizon(assessments []Assessment, horizonDays int) []Assessment {
	var out []Assessment
	for _, a := range assessments {
		if a.Velocity <= 0 {
			if a.Band == BandMedium {
				out = append(out, a)
			}
			continue
		}
		if a.DaysToStockout <= float64(horizonDays) {
			out = append(out, a)
		}
	}
	return out
}

// Sort orders assessments per the sort contract: ascending by band
// priority, then ascending by days-to-stockout.
func Sort(assessments []Assessment) {
	sort.SliceStable(assessments, func(i, j int) bool {
		pi, pj := bandPriority[assessments[i].Band], bandPriority[assessments[j].Band]
		if pi != pj {
			return pi < pj
		}
		return assessments[i].DaysToStockout < assessments[j].DaysToStockout
	})
}
