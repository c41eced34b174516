// Package rules implements the closed intent set, typed parameter models,
// and the keyword-scoring resolver (component C2). The registry shape
// (Register/GetAll/GetByName guarded by a mutex) mirrors the teacher's
// DetectorRegistry pattern, repurposed from anomaly detectors to intent
// definitions.
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/pinggolf/inventory-chat-core/internal/apperr"
)

// Intent is the closed set of analytic intents the core can resolve to.
type Intent string

const (
	IntentTopSKUsByMargin     Intent = "top_skus_by_margin"
	IntentStockoutRisk        Intent = "stockout_risk"
	IntentWeekInReview        Intent = "week_in_review"
	IntentReorderSuggestions  Intent = "reorder_suggestions"
	IntentSlowMovers          Intent = "slow_movers"
	IntentProductDetail       Intent = "product_detail"
	IntentQuarterlyForecast   Intent = "quarterly_forecast"
	IntentAnnualBreakdown     Intent = "annual_breakdown"
	IntentUnresolved          Intent = "unresolved"
)

// Params is the typed, bounds-validated parameter bag for a resolved
// intent. Zero values are replaced by Defaults(); out-of-range values are
// rejected by Validate() rather than silently clamped.
type Params struct {
	N           int    // top_skus_by_margin, slow_movers: result count, bounds [1,50]
	HorizonDays int    // stockout_risk, reorder_suggestions: bounds [7,30]
	Period      string // generic period token, one of {1d,7d,30d}
	TargetYear  int    // quarterly_forecast, annual_breakdown
	Query       string // product_detail: SKU or name lookup
}

// Defaults fills zero fields with the intent's documented defaults.
func (p *Params) Defaults() {
	if p.N == 0 {
		p.N = 10
	}
	if p.HorizonDays == 0 {
		p.HorizonDays = 14
	}
	if p.Period == "" {
		p.Period = "7d"
	}
}

// Validate rejects Params falling outside their documented bounds as a
// 422 ValidationError. Call Defaults() first so legitimately-zero fields
// have been filled in.
func (p *Params) Validate() error {
	if p.N < 1 || p.N > 50 {
		return fmt.Errorf("%w: n must be between 1 and 50", apperr.ErrValidation)
	}
	if p.HorizonDays < 7 || p.HorizonDays > 30 {
		return fmt.Errorf("%w: horizon_days must be between 7 and 30", apperr.ErrValidation)
	}
	switch p.Period {
	case "1d", "7d", "30d":
	default:
		return fmt.Errorf("%w: period must be one of 1d, 7d, 30d", apperr.ErrValidation)
	}
	return nil
}

// Resolution is the result of the rules resolver.
type Resolution struct {
	Intent     Intent
	Params     Params
	Confidence float64
	Source     string // "rules"
	Reasons    []string
}

// Definition pairs an intent with its static keyword list for scoring.
type Definition struct {
	Intent   Intent
	Keywords []string
}

// Registry holds the static intent definitions, mirroring the teacher's
// DetectorRegistry: Register at init time, GetAll/GetByName at resolve
// time, all guarded by a single mutex.
type Registry struct {
	mu    sync.RWMutex
	defs  []Definition
	byKey map[Intent]Definition
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[Intent]Definition)}
}

// Register adds an intent definition. Re-registering the same intent
// replaces its keyword list.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKey[def.Intent]; !exists {
		r.defs = append(r.defs, def)
	} else {
		for i, d := range r.defs {
			if d.Intent == def.Intent {
				r.defs[i] = def
			}
		}
	}
	r.byKey[def.Intent] = def
}

// GetAll returns all registered definitions in registration order.
func (r *Registry) GetAll() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// GetByName returns a definition by intent, ok=false if unregistered.
func (r *Registry) GetByName(intent Intent) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byKey[intent]
	return d, ok
}

// DefaultRegistry builds the registry with the documented closed set and
// its static keyword lists.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Definition{IntentTopSKUsByMargin, []string{"top", "margin", "best seller", "profitable"}})
	r.Register(Definition{IntentStockoutRisk, []string{"stockout", "stock out", "risk", "running out", "out of stock"}})
	r.Register(Definition{IntentWeekInReview, []string{"week in review", "weekly", "this week", "last week"}})
	r.Register(Definition{IntentReorderSuggestions, []string{"reorder", "restock", "replenish", "purchase order"}})
	r.Register(Definition{IntentSlowMovers, []string{"slow mover", "slow moving", "not selling", "stale"}})
	r.Register(Definition{IntentProductDetail, []string{"detail", "tell me about", "lookup", "sku"}})
	r.Register(Definition{IntentQuarterlyForecast, []string{"quarter", "quarterly", "forecast", "projection"}})
	r.Register(Definition{IntentAnnualBreakdown, []string{"annual", "yearly", "year", "revenue"}})
	return r
}

var (
	reTopN        = regexp.MustCompile(`(?i)top\s+(\d+)`)
	reHorizonDays = regexp.MustCompile(`(?i)(\d+)\s*day`)
	reYear        = regexp.MustCompile(`\b(20\d{2})\b`)
)

// Resolve runs the keyword-scoring algorithm (C2 steps 1-7): lowercase,
// count keyword hits per intent, pick the top scorer, populate params via
// regex normalizers, apply the quarterly->annual rewrite, and compute
// confidence.
func Resolve(reg *Registry, prompt string) Resolution {
	p := strings.ToLower(prompt)

	type hit struct {
		intent Intent
		count  int
	}
	var hits []hit
	for _, def := range reg.GetAll() {
		count := 0
		for _, kw := range def.Keywords {
			if strings.Contains(p, kw) {
				count++
			}
		}
		if count > 0 {
			hits = append(hits, hit{def.Intent, count})
		}
	}

	if len(hits) == 0 {
		return Resolution{Intent: IntentUnresolved, Confidence: 0, Source: "rules"}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].count > hits[j].count })
	candidate := hits[0].intent
	hitCount := hits[0].count

	var params Params
	reasons := []string{"keyword match"}

	if m := reTopN.FindStringSubmatch(p); m != nil {
		if n := atoiSafe(m[1]); n > 0 {
			params.N = n
		}
	}
	if m := reHorizonDays.FindStringSubmatch(p); m != nil {
		if d := atoiSafe(m[1]); d > 0 {
			params.HorizonDays = d
		}
	}
	var year int
	if m := reYear.FindStringSubmatch(p); m != nil {
		year = atoiSafe(m[1])
		params.TargetYear = year
	}

	if year > 0 && candidate == IntentQuarterlyForecast {
		yearlyWords := []string{"revenue", "annual", "yearly", "year"}
		for _, w := range yearlyWords {
			if strings.Contains(p, w) {
				candidate = IntentAnnualBreakdown
				break
			}
		}
	}

	params.Defaults()

	confidence := 0.4 + 0.2*float64(hitCount)
	if confidence > 1.0 {
		confidence = 1.0
	}

	return Resolution{
		Intent:     candidate,
		Params:     params,
		Confidence: confidence,
		Source:     "rules",
		Reasons:    reasons,
	}
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
