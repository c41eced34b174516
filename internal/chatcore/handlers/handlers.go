// Package handlers implements the eight typed intent handlers that
// execute analytic queries against the store and the sales-daily mart
// (component C5), held in a fixed intent-to-handler Registry.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pinggolf/inventory-chat-core/internal/apperr"
	"github.com/pinggolf/inventory-chat-core/internal/chatcore/rules"
	"github.com/pinggolf/inventory-chat-core/internal/db"
	"github.com/pinggolf/inventory-chat-core/internal/risk"
	"github.com/shopspring/decimal"
)

// Result is the common output shape every handler returns.
type Result struct {
	Columns    []string        `json:"columns"`
	Rows       []map[string]any `json:"rows"`
	SQL        string          `json:"sql"`
	Definition string          `json:"definition"`
}

// Handler executes one intent's query.
type Handler func(ctx context.Context, q *db.Queries, orgID string, p rules.Params, now time.Time) (Result, error)

// Registry maps intents to handlers. The set is fixed by NewRegistry;
// handlers are looked up with GetByName.
type Registry struct {
	byIntent map[rules.Intent]Handler
}

// NewRegistry builds the registry with the closed set of eight handlers.
func NewRegistry() *Registry {
	return &Registry{byIntent: map[rules.Intent]Handler{
		rules.IntentTopSKUsByMargin:    TopSKUsByMargin,
		rules.IntentStockoutRisk:       StockoutRisk,
		rules.IntentWeekInReview:       WeekInReview,
		rules.IntentReorderSuggestions: ReorderSuggestionsLight,
		rules.IntentSlowMovers:         SlowMovers,
		rules.IntentProductDetail:      ProductDetail,
		rules.IntentQuarterlyForecast:  QuarterlyForecast,
		rules.IntentAnnualBreakdown:    AnnualBreakdown,
	}}
}

// GetByName returns the handler for an intent, ok=false if unregistered.
func (r *Registry) GetByName(intent rules.Intent) (Handler, bool) {
	h, ok := r.byIntent[intent]
	return h, ok
}

// TopSKUsByMargin sums gross margin per SKU over the last N days
// (N taken from p.Period: 1 for 1d, 30 for 30d, 7 otherwise), limited to
// p.N, ordered descending.
func TopSKUsByMargin(ctx context.Context, q *db.Queries, orgID string, p rules.Params, now time.Time) (Result, error) {
	days := periodDays(p.Period)
	since := now.AddDate(0, 0, -days)

	rows, err := q.SalesDailyRange(ctx, orgID, since, now, nil)
	definition := fmt.Sprintf("Sum of gross margin per SKU over the last %d days, sales_daily mart", days)
	if err != nil {
		if !isDataUnavailable(err) {
			return Result{}, err
		}
		return topSKUsByMarginFallback(ctx, q, orgID, p, since, definition+" (fallback approximation)")
	}

	type agg struct {
		sku    string
		margin decimal.Decimal
	}
	byS := map[string]*agg{}
	var order []string
	for _, r := range rows {
		a, ok := byS[r.SKU]
		if !ok {
			a = &agg{sku: r.SKU, margin: decimal.Zero}
			byS[r.SKU] = a
			order = append(order, r.SKU)
		}
		a.margin = a.margin.Add(r.GrossMargin)
	}

	var aggs []*agg
	for _, sku := range order {
		aggs = append(aggs, byS[sku])
	}
	sort.SliceStable(aggs, func(i, j int) bool { return aggs[i].margin.GreaterThan(aggs[j].margin) })
	if len(aggs) > p.N {
		aggs = aggs[:p.N]
	}

	var out []map[string]any
	for _, a := range aggs {
		out = append(out, map[string]any{"sku": a.sku, "gross_margin": a.margin.String()})
	}

	return Result{
		Columns:    []string{"sku", "gross_margin"},
		Rows:       out,
		SQL:        "SELECT sku, SUM(gross_margin) FROM sales_daily WHERE org_id=$1 AND sale_date>=$2 GROUP BY sku ORDER BY SUM(gross_margin) DESC LIMIT $3",
		Definition: definition,
	}, nil
}

func topSKUsByMarginFallback(ctx context.Context, q *db.Queries, orgID string, p rules.Params, since time.Time, definition string) (Result, error) {
	sales, err := q.OrderItemSalesSince(ctx, orgID, since)
	if err != nil {
		return Result{}, err
	}
	products, err := q.ListProducts(ctx, orgID)
	if err != nil {
		return Result{}, err
	}
	skuByID := map[string]string{}
	for _, prod := range products {
		skuByID[prod.ID] = prod.SKU
	}

	type agg struct {
		sku    string
		margin decimal.Decimal
	}
	var aggs []agg
	for productID, s := range sales {
		aggs = append(aggs, agg{sku: skuByID[productID], margin: s.Margin})
	}
	sort.SliceStable(aggs, func(i, j int) bool { return aggs[i].margin.GreaterThan(aggs[j].margin) })
	if len(aggs) > p.N {
		aggs = aggs[:p.N]
	}

	var out []map[string]any
	for _, a := range aggs {
		out = append(out, map[string]any{"sku": a.sku, "gross_margin": a.margin.String()})
	}
	return Result{
		Columns:    []string{"sku", "gross_margin"},
		Rows:       out,
		SQL:        "SELECT product_id, SUM(quantity*(unit_price-unit_cost)) FROM order_items JOIN orders ... GROUP BY product_id",
		Definition: definition,
	}, nil
}

// StockoutRisk computes on-hand per product, selects velocity v7??v30,
// bands per C7, filters to horizon_days, sorts by band then days.
func StockoutRisk(ctx context.Context, q *db.Queries, orgID string, p rules.Params, now time.Time) (Result, error) {
	inputs, err := q.ReorderInputs(ctx, orgID)
	definition := "Per-product on-hand / velocity(v7??v30) stockout risk, reorder_inputs mart"
	if err != nil {
		return Result{}, err
	}

	var assessments []risk.Assessment
	for _, row := range inputs {
		v := firstPositive(row.V7d, row.V30d)
		a := risk.Assess(row.ProductID, row.SKU, row.OnHand, v, row.ReorderPoint)
		assessments = append(assessments, a)
	}

	assessments = risk.FilterWithinHorizon(assessments, p.HorizonDays)
	risk.Sort(assessments)

	var out []map[string]any
	for _, a := range assessments {
		out = append(out, map[string]any{
			"sku": a.SKU, "on_hand": a.OnHand, "velocity": a.Velocity,
			"days_to_stockout": a.DaysToStockout, "band": string(a.Band),
		})
	}

	return Result{
		Columns:    []string{"sku", "on_hand", "velocity", "days_to_stockout", "band"},
		Rows:       out,
		SQL:        "SELECT sku, on_hand, v7d, v30d FROM reorder_inputs WHERE org_id=$1",
		Definition: definition,
	}, nil
}

// WeekInReview computes daily revenue/units/margin for the last 7 days.
func WeekInReview(ctx context.Context, q *db.Queries, orgID string, p rules.Params, now time.Time) (Result, error) {
	since := now.AddDate(0, 0, -7)
	rows, err := q.SalesDailyRange(ctx, orgID, since, now, nil)
	definition := "Daily revenue/units/margin for the last 7 days, sales_daily mart"
	if err != nil {
		return Result{}, err
	}

	type day struct {
		revenue, margin decimal.Decimal
		units           int
	}
	byDate := map[string]*day{}
	var order []string
	for _, r := range rows {
		key := r.SaleDate.Format("2006-01-02")
		d, ok := byDate[key]
		if !ok {
			d = &day{revenue: decimal.Zero, margin: decimal.Zero}
			byDate[key] = d
			order = append(order, key)
		}
		d.revenue = d.revenue.Add(r.GrossRevenue)
		d.margin = d.margin.Add(r.GrossMargin)
		d.units += r.UnitsSold
	}
	sort.Strings(order)

	var out []map[string]any
	for _, key := range order {
		d := byDate[key]
		out = append(out, map[string]any{
			"date": key, "revenue": d.revenue.String(), "units": d.units, "margin": d.margin.String(),
		})
	}

	return Result{
		Columns:    []string{"date", "revenue", "units", "margin"},
		Rows:       out,
		SQL:        "SELECT sale_date, SUM(gross_revenue), SUM(units_sold), SUM(gross_margin) FROM sales_daily WHERE org_id=$1 AND sale_date>=$2 GROUP BY sale_date",
		Definition: definition,
	}, nil
}

// ReorderSuggestionsLight is the chat-path light variant:
// suggested_qty = max(0, v30*30 - on_hand) where v30>0, sorted desc. The
// full engine (with MOQ/pack/cap/guardrails) lives in internal/reorder
// and is used by the purchasing API, not the chat handler (see
// DESIGN.md's chat-path-reorder-simplicity decision).
func ReorderSuggestionsLight(ctx context.Context, q *db.Queries, orgID string, p rules.Params, now time.Time) (Result, error) {
	inputs, err := q.ReorderInputs(ctx, orgID)
	definition := "suggested_qty = max(0, v30*30 - on_hand) for v30>0, reorder_inputs mart"
	if err != nil {
		return Result{}, err
	}

	type sugg struct {
		sku string
		qty float64
	}
	var suggestions []sugg
	for _, row := range inputs {
		if !row.V30d.Valid {
			continue
		}
		v30, _ := row.V30d.Decimal.Float64()
		if v30 <= 0 {
			continue
		}
		qty := v30*30 - float64(row.OnHand)
		if qty < 0 {
			qty = 0
		}
		suggestions = append(suggestions, sugg{sku: row.SKU, qty: qty})
	}
	sort.SliceStable(suggestions, func(i, j int) bool { return suggestions[i].qty > suggestions[j].qty })

	var out []map[string]any
	for _, s := range suggestions {
		out = append(out, map[string]any{"sku": s.sku, "suggested_qty": s.qty})
	}

	return Result{
		Columns:    []string{"sku", "suggested_qty"},
		Rows:       out,
		SQL:        "SELECT sku, v30d, on_hand FROM reorder_inputs WHERE org_id=$1",
		Definition: definition,
	}, nil
}

// SlowMovers returns products with on_hand>0 and low units sold over
// the requested period, ascending by units_sold then descending by
// on_hand, limited to p.N.
func SlowMovers(ctx context.Context, q *db.Queries, orgID string, p rules.Params, now time.Time) (Result, error) {
	days := periodDays(p.Period)
	since := now.AddDate(0, 0, -days)
	salesRows, err := q.SalesDailyRange(ctx, orgID, since, now, nil)
	definition := fmt.Sprintf("Products with on_hand>0 and low units sold over %d days, sales_daily mart", days)
	if err != nil {
		return Result{}, err
	}

	units := map[string]int{}
	for _, r := range salesRows {
		units[r.SKU] += r.UnitsSold
	}

	inputs, err := q.ReorderInputs(ctx, orgID)
	if err != nil {
		return Result{}, err
	}

	type row struct {
		sku           string
		onHand, units int
	}
	var slow []row
	for _, in := range inputs {
		if in.OnHand <= 0 {
			continue
		}
		slow = append(slow, row{sku: in.SKU, onHand: in.OnHand, units: units[in.SKU]})
	}
	sort.SliceStable(slow, func(i, j int) bool {
		if slow[i].units != slow[j].units {
			return slow[i].units < slow[j].units
		}
		return slow[i].onHand > slow[j].onHand
	})
	if len(slow) > p.N {
		slow = slow[:p.N]
	}

	var out []map[string]any
	for _, s := range slow {
		out = append(out, map[string]any{"sku": s.sku, "on_hand": s.onHand, "units_sold": s.units})
	}

	return Result{
		Columns:    []string{"sku", "on_hand", "units_sold"},
		Rows:       out,
		SQL:        "SELECT sku, on_hand, units_sold FROM reorder_inputs JOIN sales_daily ON ...",
		Definition: definition,
	}, nil
}

// ProductDetail looks up a product by SKU or case-insensitive name and
// returns on_hand, units_sold_7d/30d, revenue_30d, margin_30d.
func ProductDetail(ctx context.Context, q *db.Queries, orgID string, p rules.Params, now time.Time) (Result, error) {
	product, err := q.GetProductBySKUOrName(ctx, orgID, p.Query)
	if err != nil {
		return Result{}, err
	}

	onHand, err := q.OnHand(ctx, orgID, product.ID)
	if err != nil {
		return Result{}, err
	}

	since30 := now.AddDate(0, 0, -30)
	rows, err := q.SalesDailyRange(ctx, orgID, since30, now, []string{product.SKU})
	var units7d, units30d int
	revenue30d, margin30d := decimal.Zero, decimal.Zero
	if err == nil {
		since7 := now.AddDate(0, 0, -7)
		for _, r := range rows {
			units30d += r.UnitsSold
			revenue30d = revenue30d.Add(r.GrossRevenue)
			margin30d = margin30d.Add(r.GrossMargin)
			if !r.SaleDate.Before(since7) {
				units7d += r.UnitsSold
			}
		}
	} else if !isDataUnavailable(err) {
		return Result{}, err
	}

	out := []map[string]any{{
		"sku": product.SKU, "name": product.Name, "on_hand": onHand,
		"units_sold_7d": units7d, "units_sold_30d": units30d,
		"revenue_30d": revenue30d.String(), "margin_30d": margin30d.String(),
	}}

	return Result{
		Columns:    []string{"sku", "name", "on_hand", "units_sold_7d", "units_sold_30d", "revenue_30d", "margin_30d"},
		Rows:       out,
		SQL:        "SELECT ... FROM products p LEFT JOIN sales_daily sd ON ... WHERE p.org_id=$1 AND (p.sku=$2 OR lower(p.name)=lower($2))",
		Definition: "Single-product lookup by SKU or case-insensitive name with rolling sales metrics",
	}, nil
}

// QuarterlyForecast computes the last four quarters from the mart; if
// the current quarter has partial data, projects linearly to a 90-day
// quarter.
func QuarterlyForecast(ctx context.Context, q *db.Queries, orgID string, p rules.Params, now time.Time) (Result, error) {
	var out []map[string]any
	for i := 3; i >= 0; i-- {
		qStart, qEnd, label := quarterBounds(now, -i)
		rows, err := q.SalesDailyRange(ctx, orgID, qStart, qEnd, nil)
		if err != nil {
			if isDataUnavailable(err) {
				continue
			}
			return Result{}, err
		}

		units, revenue, margin := sumRows(rows)
		confidence := "medium"

		if i == 0 && now.Before(qEnd) {
			elapsedDays := now.Sub(qStart).Hours() / 24
			if elapsedDays > 0 {
				factor := 90.0 / elapsedDays
				units = int(float64(units) * factor)
				revenue = revenue.Mul(decimal.NewFromFloat(factor))
				margin = margin.Mul(decimal.NewFromFloat(factor))
			}
			confidence = "low"
		}

		out = append(out, map[string]any{
			"quarter_label":      label,
			"projected_revenue":  revenue.String(),
			"projected_units":    units,
			"projected_margin":   margin.String(),
			"confidence":         confidence,
		})
	}

	return Result{
		Columns:    []string{"quarter_label", "projected_revenue", "projected_units", "projected_margin", "confidence"},
		Rows:       out,
		SQL:        "SELECT sale_date, units_sold, gross_revenue, gross_margin FROM sales_daily WHERE org_id=$1 AND sale_date BETWEEN $2 AND $3",
		Definition: "Last four quarters from sales_daily, current partial quarter projected linearly to 90 days",
	}, nil
}

// AnnualBreakdown returns per-quarter sums for a target year, with
// margin_percentage = margin/revenue*100.
func AnnualBreakdown(ctx context.Context, q *db.Queries, orgID string, p rules.Params, now time.Time) (Result, error) {
	year := p.TargetYear
	if year == 0 {
		year = now.Year()
	}

	var out []map[string]any
	for quarter := 1; quarter <= 4; quarter++ {
		start := time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, now.Location())
		end := start.AddDate(0, 3, 0)
		rows, err := q.SalesDailyRange(ctx, orgID, start, end, nil)
		if err != nil {
			if isDataUnavailable(err) {
				continue
			}
			return Result{}, err
		}
		units, revenue, margin := sumRows(rows)
		marginPct := decimal.Zero
		if !revenue.IsZero() {
			marginPct = margin.Div(revenue).Mul(decimal.NewFromInt(100))
		}
		out = append(out, map[string]any{
			"quarter": fmt.Sprintf("Q%d %d", quarter, year), "units": units,
			"revenue": revenue.String(), "margin": margin.String(), "margin_percentage": marginPct.String(),
		})
	}

	return Result{
		Columns:    []string{"quarter", "units", "revenue", "margin", "margin_percentage"},
		Rows:       out,
		SQL:        "SELECT sale_date, units_sold, gross_revenue, gross_margin FROM sales_daily WHERE org_id=$1 AND EXTRACT(year FROM sale_date)=$2",
		Definition: fmt.Sprintf("Per-quarter sums for %d, sales_daily mart", year),
	}, nil
}

func sumRows(rows []db.SalesDailyMartRow) (units int, revenue, margin decimal.Decimal) {
	revenue, margin = decimal.Zero, decimal.Zero
	for _, r := range rows {
		units += r.UnitsSold
		revenue = revenue.Add(r.GrossRevenue)
		margin = margin.Add(r.GrossMargin)
	}
	return
}

func quarterBounds(now time.Time, quartersAgo int) (time.Time, time.Time, string) {
	monthIdx := int(now.Month()-1) / 3
	anchor := time.Date(now.Year(), time.Month(monthIdx*3+1), 1, 0, 0, 0, 0, now.Location())
	start := anchor.AddDate(0, 3*quartersAgo, 0)
	end := start.AddDate(0, 3, 0)
	q := (int(start.Month())-1)/3 + 1
	return start, end, fmt.Sprintf("Q%d %d", q, start.Year())
}

func periodDays(period string) int {
	switch period {
	case "1d":
		return 1
	case "30d":
		return 30
	default:
		return 7
	}
}

func firstPositive(a, b decimal.NullDecimal) float64 {
	if a.Valid {
		if v, _ := a.Decimal.Float64(); v > 0 {
			return v
		}
	}
	if b.Valid {
		if v, _ := b.Decimal.Float64(); v > 0 {
			return v
		}
	}
	return 0
}

func isDataUnavailable(err error) bool {
	return errors.Is(err, apperr.ErrDataUnavailable)
}
