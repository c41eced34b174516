// Package snapshot builds the business-context text block used to ground
// the open-chat variant (component C10). Grounded in the teacher's
// context_service.go pattern: assemble independent sections, and let any
// one section's failure degrade gracefully without failing the whole
// snapshot.
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pinggolf/inventory-chat-core/internal/db"
	"github.com/shopspring/decimal"
)

// Section is one named, independently-degradable piece of the snapshot.
type Section struct {
	Title     string
	Body      string
	Available bool
}

// Build assembles the full snapshot for an org as of now. Each section's
// data source is queried independently; a failure in one section yields
// Available=false for that section only, not an error for the whole call.
func Build(ctx context.Context, q *db.Queries, orgName, orgID string, now time.Time) []Section {
	var sections []Section

	sections = append(sections, companyOverview(orgName))
	sections = append(sections, inventoryCounts(ctx, q, orgID))
	sections = append(sections, sevenDaySales(ctx, q, orgID, now))
	sections = append(sections, topBottomSKUs(ctx, q, orgID, now))
	sections = append(sections, slowMoversSection(ctx, q, orgID, now))
	sections = append(sections, reorderSuggestionsSection(ctx, q, orgID))
	sections = append(sections, highRiskSection(ctx, q, orgID))
	sections = append(sections, todaysMovementsSection(ctx, q, orgID, now))

	return sections
}

// Render joins available sections into the grounding text block fed to
// the open-chat LLM prompt.
func Render(sections []Section) string {
	var b strings.Builder
	for _, s := range sections {
		if !s.Available {
			continue
		}
		b.WriteString(s.Title)
		b.WriteString(":\n")
		b.WriteString(s.Body)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

func companyOverview(orgName string) Section {
	return Section{Title: "Company overview", Body: fmt.Sprintf("Organization: %s", orgName), Available: true}
}

func inventoryCounts(ctx context.Context, q *db.Queries, orgID string) Section {
	const title = "Inventory counts"

	products, err := q.ListProducts(ctx, orgID)
	if err != nil {
		return Section{Title: title, Available: false}
	}
	onHandByProduct, err := q.OnHandForAll(ctx, orgID)
	if err != nil {
		return Section{Title: title, Available: false}
	}

	totalSKUs := len(products)
	var outOfStock, lowStock, totalUnits int
	for _, p := range products {
		onHand := onHandByProduct[p.ID]
		totalUnits += onHand
		if onHand <= 0 {
			outOfStock++
		} else if onHand <= p.ReorderPoint {
			lowStock++
		}
	}

	body := fmt.Sprintf("%d total SKUs, %d out-of-stock, %d low-stock, %d total units",
		totalSKUs, outOfStock, lowStock, totalUnits)
	return Section{Title: title, Body: body, Available: true}
}

func sevenDaySales(ctx context.Context, q *db.Queries, orgID string, now time.Time) Section {
	const title = "7-day sales"

	rows, err := q.SalesDailyRange(ctx, orgID, now.AddDate(0, 0, -7), now, nil)
	if err != nil {
		return Section{Title: title, Available: false}
	}

	revenue, margin, units := decimal.Zero, decimal.Zero, 0
	for _, r := range rows {
		revenue = revenue.Add(r.GrossRevenue)
		margin = margin.Add(r.GrossMargin)
		units += r.UnitsSold
	}

	body := fmt.Sprintf("revenue=%s, units=%d, margin=%s", revenue.String(), units, margin.String())
	return Section{Title: title, Body: body, Available: true}
}

type skuMargin struct {
	sku    string
	margin decimal.Decimal
}

func topBottomSKUs(ctx context.Context, q *db.Queries, orgID string, now time.Time) Section {
	const title = "Top/bottom 3 SKUs by 30-day margin"

	rows, err := q.SalesDailyRange(ctx, orgID, now.AddDate(0, 0, -30), now, nil)
	if err != nil {
		return Section{Title: title, Available: false}
	}

	byS := map[string]*skuMargin{}
	var order []string
	for _, r := range rows {
		a, ok := byS[r.SKU]
		if !ok {
			a = &skuMargin{sku: r.SKU, margin: decimal.Zero}
			byS[r.SKU] = a
			order = append(order, r.SKU)
		}
		a.margin = a.margin.Add(r.GrossMargin)
	}
	var aggs []*skuMargin
	for _, sku := range order {
		aggs = append(aggs, byS[sku])
	}
	sort.SliceStable(aggs, func(i, j int) bool { return aggs[i].margin.GreaterThan(aggs[j].margin) })

	top := limitDesc(aggs, 3)
	bottom := limitAsc(aggs, 3)

	body := fmt.Sprintf("Top: %s | Bottom: %s", formatAggs(top), formatAggs(bottom))
	return Section{Title: title, Body: body, Available: true}
}

func formatAggs(aggs []*skuMargin) string {
	var parts []string
	for _, a := range aggs {
		parts = append(parts, fmt.Sprintf("%s(%s)", a.sku, a.margin.String()))
	}
	return strings.Join(parts, ", ")
}

func limitDesc(aggs []*skuMargin, n int) []*skuMargin {
	if len(aggs) > n {
		return aggs[:n]
	}
	return aggs
}

func limitAsc(aggs []*skuMargin, n int) []*skuMargin {
	reversed := make([]*skuMargin, len(aggs))
	for i, a := range aggs {
		reversed[len(aggs)-1-i] = a
	}
	if len(reversed) > n {
		return reversed[:n]
	}
	return reversed
}

func slowMoversSection(ctx context.Context, q *db.Queries, orgID string, now time.Time) Section {
	const title = "Slow movers"

	inputs, err := q.ReorderInputs(ctx, orgID)
	if err != nil {
		return Section{Title: title, Available: false}
	}

	rows, err := q.SalesDailyRange(ctx, orgID, now.AddDate(0, 0, -30), now, nil)
	units := map[string]int{}
	if err == nil {
		for _, r := range rows {
			units[r.SKU] += r.UnitsSold
		}
	}

	var slow []string
	for _, in := range inputs {
		if in.OnHand > 0 && units[in.SKU] < 5 {
			slow = append(slow, in.SKU)
		}
	}

	return Section{Title: title, Body: fmt.Sprintf("%d products (on-hand>0, low 30d sales)", len(slow)), Available: true}
}

func reorderSuggestionsSection(ctx context.Context, q *db.Queries, orgID string) Section {
	const title = "Reorder suggestions (30-day cover)"

	inputs, err := q.ReorderInputs(ctx, orgID)
	if err != nil {
		return Section{Title: title, Available: false}
	}

	count := 0
	for _, in := range inputs {
		if !in.V30d.Valid {
			continue
		}
		v30, _ := in.V30d.Decimal.Float64()
		if v30 > 0 && v30*30-float64(in.OnHand) > 0 {
			count++
		}
	}

	return Section{Title: title, Body: fmt.Sprintf("%d products need reorder to reach 30-day cover", count), Available: true}
}

func highRiskSection(ctx context.Context, q *db.Queries, orgID string) Section {
	const title = "High stockout-risk count (<=7d cover)"

	inputs, err := q.ReorderInputs(ctx, orgID)
	if err != nil {
		return Section{Title: title, Available: false}
	}

	count := 0
	for _, in := range inputs {
		v := firstPositive(in)
		if v > 0 && float64(in.OnHand)/v <= 7 {
			count++
		}
	}

	return Section{Title: title, Body: fmt.Sprintf("%d", count), Available: true}
}

func firstPositive(row db.ReorderInputsRow) float64 {
	if row.V7d.Valid {
		if v, _ := row.V7d.Decimal.Float64(); v > 0 {
			return v
		}
	}
	if row.V30d.Valid {
		if v, _ := row.V30d.Decimal.Float64(); v > 0 {
			return v
		}
	}
	return 0
}

func todaysMovementsSection(ctx context.Context, q *db.Queries, orgID string, now time.Time) Section {
	const title = "Today's inventory movements"

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	n, err := q.TodayMovementCount(ctx, orgID, dayStart, dayEnd)
	if err != nil {
		return Section{Title: title, Available: false}
	}
	return Section{Title: title, Body: fmt.Sprintf("%d", n), Available: true}
}
