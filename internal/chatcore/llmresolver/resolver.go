// Package llmresolver implements the LLM-backed intent fallback
// (component C3), invoked when the rules resolver's confidence is below
// LowConfidenceThreshold, plus the arbitration logic between the two
// sources.
package llmresolver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pinggolf/inventory-chat-core/internal/chatcore/rules"
	"github.com/pinggolf/inventory-chat-core/internal/llm"
)

// LowConfidenceThreshold is the rules-confidence cutoff below which the
// LLM fallback is consulted.
const LowConfidenceThreshold = 0.55

const systemPrompt = `You classify inventory/sales analytics questions into exactly one intent.
Respond with ONLY valid JSON of the shape:
{"intent": "<one of the allowed intents>", "params": {}, "confidence": <0..1>, "reasons": ["..."]}
Allowed intents: top_skus_by_margin, stockout_risk, week_in_review, reorder_suggestions, slow_movers, product_detail, quarterly_forecast, annual_breakdown, unresolved.
Do not include any text outside the JSON object.`

var allowedIntents = map[rules.Intent]bool{
	rules.IntentTopSKUsByMargin:    true,
	rules.IntentStockoutRisk:       true,
	rules.IntentWeekInReview:       true,
	rules.IntentReorderSuggestions: true,
	rules.IntentSlowMovers:         true,
	rules.IntentProductDetail:      true,
	rules.IntentQuarterlyForecast:  true,
	rules.IntentAnnualBreakdown:    true,
	rules.IntentUnresolved:         true,
}

type llmOutput struct {
	Intent     string         `json:"intent"`
	Params     map[string]any `json:"params"`
	Confidence float64        `json:"confidence"`
	Reasons    []string       `json:"reasons"`
}

// Resolve asks the LLM client to classify prompt, returning a
// rules.Resolution with Source="llm". Returns IntentUnresolved on any
// failure (unreachable, unparseable, sentinel output, or an intent
// outside the closed set) rather than propagating an error, since the
// caller always has the rules resolution to fall back to.
func Resolve(ctx context.Context, client *llm.Client, prompt string) rules.Resolution {
	result, err := client.Chat(ctx, systemPrompt, prompt, true)
	if err != nil {
		return unresolved()
	}

	var parsed llmOutput
	if err := json.Unmarshal([]byte(extractJSONObject(result.Content)), &parsed); err != nil {
		return unresolved()
	}

	intent := rules.Intent(parsed.Intent)
	if !allowedIntents[intent] {
		return unresolved()
	}

	p := rules.Params{}
	if n, ok := parsed.Params["n"].(float64); ok {
		p.N = int(n)
	}
	if h, ok := parsed.Params["horizon_days"].(float64); ok {
		p.HorizonDays = int(h)
	}
	if y, ok := parsed.Params["target_year"].(float64); ok {
		p.TargetYear = int(y)
	}
	if q, ok := parsed.Params["query"].(string); ok {
		p.Query = q
	}
	if per, ok := parsed.Params["period"].(string); ok {
		p.Period = per
	}
	p.Defaults()

	return rules.Resolution{
		Intent:     intent,
		Params:     p,
		Confidence: parsed.Confidence,
		Source:     "llm",
		Reasons:    parsed.Reasons,
	}
}

func unresolved() rules.Resolution {
	return rules.Resolution{Intent: rules.IntentUnresolved, Confidence: 0, Source: "llm"}
}

// extractJSONObject trims any leading/trailing prose a model may add
// despite the json_object instruction, isolating the outermost { ... }.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// Arbitrate applies the C3 arbitration rule: keep rules if its confidence
// already clears the threshold; otherwise adopt the LLM result if it
// resolved to a real intent with higher confidence than rules (or rules
// found nothing); otherwise keep rules.
func Arbitrate(rulesRes, llmRes rules.Resolution) rules.Resolution {
	if rulesRes.Confidence >= LowConfidenceThreshold {
		return rulesRes
	}
	llmValid := llmRes.Intent != rules.IntentUnresolved && allowedIntents[llmRes.Intent]
	if llmValid && (rulesRes.Intent == rules.IntentUnresolved || llmRes.Confidence > rulesRes.Confidence) {
		return llmRes
	}
	return rulesRes
}
