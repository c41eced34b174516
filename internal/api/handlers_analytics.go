package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pinggolf/inventory-chat-core/internal/apperr"
	"github.com/pinggolf/inventory-chat-core/internal/db"
	"github.com/pinggolf/inventory-chat-core/internal/reorder"
	"github.com/pinggolf/inventory-chat-core/internal/risk"
	"github.com/shopspring/decimal"
)

// handleAnalytics is the org-wide digest: inventory counts plus trailing
// sales totals over the requested window.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	orgID := orgIDFromContext(r)
	days, err := queryInt(r, "days", 7, 1, 90)
	if err != nil {
		writeError(w, err)
		return
	}
	now := s.clock.Now()

	products, err := s.db.ListProducts(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}
	onHand, err := s.db.OnHandForAll(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}

	var outOfStock, lowStock, totalUnits int
	for _, p := range products {
		units := onHand[p.ID]
		totalUnits += units
		if units <= 0 {
			outOfStock++
		} else if units <= p.ReorderPoint {
			lowStock++
		}
	}

	revenue, margin, unitsSold := decimal.Zero, decimal.Zero, 0
	rows, err := s.db.SalesDailyRange(r.Context(), orgID, now.AddDate(0, 0, -days), now, nil)
	if err != nil && !errors.Is(err, apperr.ErrDataUnavailable) {
		writeError(w, err)
		return
	}
	for _, row := range rows {
		revenue = revenue.Add(row.GrossRevenue)
		margin = margin.Add(row.GrossMargin)
		unitsSold += row.UnitsSold
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"window_days":     days,
		"total_skus":      len(products),
		"out_of_stock":    outOfStock,
		"low_stock":       lowStock,
		"total_units":     totalUnits,
		"revenue":         revenue.String(),
		"gross_margin":    margin.String(),
		"units_sold":      unitsSold,
		"data_as_of":      now.Format(time.RFC3339),
	})
}

// handleAnalyticsSales returns the sales_daily mart rows for the
// requested window, optionally narrowed to a product category. The mart
// is aggregated past per-order channel detail, so channel is accepted
// for forward compatibility but not yet filterable at this granularity.
func (s *Server) handleAnalyticsSales(w http.ResponseWriter, r *http.Request) {
	orgID := orgIDFromContext(r)
	now := s.clock.Now()

	start, end, err := dateRangeParams(r, now)
	if err != nil {
		writeError(w, err)
		return
	}
	category := queryString(r, "product_category", "")

	var skus []string
	if category != "" {
		products, err := s.db.ListProducts(r.Context(), orgID)
		if err != nil {
			writeError(w, err)
			return
		}
		for _, p := range products {
			if p.Category == category {
				skus = append(skus, p.SKU)
			}
		}
		if len(skus) == 0 {
			writeJSON(w, http.StatusOK, map[string]interface{}{"rows": []interface{}{}})
			return
		}
	}

	rows, err := s.db.SalesDailyRange(r.Context(), orgID, start, end, skus)
	if err != nil {
		if errors.Is(err, apperr.ErrDataUnavailable) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"rows": []interface{}{}})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"rows": rows})
}

func dateRangeParams(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	layout := "2006-01-02"
	if sd := queryString(r, "start_date", ""); sd != "" {
		if ed := queryString(r, "end_date", ""); ed != "" {
			start, errS := time.Parse(layout, sd)
			end, errE := time.Parse(layout, ed)
			if errS == nil && errE == nil {
				return start, end.AddDate(0, 0, 1), nil
			}
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date/end_date must be YYYY-MM-DD", apperr.ErrValidation)
		}
	}
	days, err := queryInt(r, "days", 30, 1, 365)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return now.AddDate(0, 0, -days), now, nil
}

// handleStockoutRisk runs the risk engine (C7) over every product's
// current on-hand and velocity, banding and sorting the result.
func (s *Server) handleStockoutRisk(w http.ResponseWriter, r *http.Request) {
	orgID := orgIDFromContext(r)
	horizonDays, err := queryInt(r, "days", 14, 7, 120)
	if err != nil {
		writeError(w, err)
		return
	}
	strategy := reorder.Strategy(queryString(r, "velocity_strategy", string(reorder.StrategyLatest)))
	if strategy != reorder.StrategyLatest && strategy != reorder.StrategyConservative {
		writeError(w, fmt.Errorf("%w: velocity_strategy must be latest or conservative", apperr.ErrValidation))
		return
	}

	inputs, err := s.db.ReorderInputs(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}

	var assessments []risk.Assessment
	for _, in := range inputs {
		velocity := firstVelocityCandidate(in, strategy)
		assessments = append(assessments, risk.Assess(in.ProductID, in.SKU, in.OnHand, velocity, in.ReorderPoint))
	}

	within := risk.FilterWithinHorizon(assessments, horizonDays)
	risk.Sort(within)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"horizon_days": horizonDays,
		"strategy":     strategy,
		"assessments":  within,
	})
}

// firstVelocityCandidate mirrors the reorder engine's velocity selection
// (v7/v30/v56, "latest" takes the first positive candidate,
// "conservative" the minimum of the positive candidates) so the risk
// assessment uses the same velocity a reorder suggestion would.
func firstVelocityCandidate(row db.ReorderInputsRow, strategy reorder.Strategy) float64 {
	type candidate struct{ value float64 }
	var candidates []candidate
	if row.V7d.Valid {
		if v, _ := row.V7d.Decimal.Float64(); v > 0 {
			candidates = append(candidates, candidate{v})
		}
	}
	if row.V30d.Valid {
		if v, _ := row.V30d.Decimal.Float64(); v > 0 {
			candidates = append(candidates, candidate{v})
		}
	}
	if row.V56d.Valid {
		if v, _ := row.V56d.Decimal.Float64(); v > 0 {
			candidates = append(candidates, candidate{v})
		}
	}
	if len(candidates) == 0 {
		return 0
	}
	if strategy == reorder.StrategyConservative {
		best := candidates[0].value
		for _, c := range candidates[1:] {
			if c.value < best {
				best = c.value
			}
		}
		return best
	}
	return candidates[0].value
}
