package api

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/pinggolf/inventory-chat-core/internal/apperr"
	"github.com/pinggolf/inventory-chat-core/internal/chatcore/composer"
	"github.com/pinggolf/inventory-chat-core/internal/chatcore/handlers"
	"github.com/pinggolf/inventory-chat-core/internal/chatcore/llmresolver"
	"github.com/pinggolf/inventory-chat-core/internal/chatcore/router"
	"github.com/pinggolf/inventory-chat-core/internal/chatcore/rules"
	"github.com/pinggolf/inventory-chat-core/internal/chatcore/snapshot"
)

type paramsOverride struct {
	N           *int    `json:"n"`
	HorizonDays *int    `json:"horizon_days"`
	Period      *string `json:"period"`
	TargetYear  *int    `json:"target_year"`
	Query       *string `json:"query"`
}

func (o paramsOverride) apply(p *rules.Params) {
	if o.N != nil {
		p.N = *o.N
	}
	if o.HorizonDays != nil {
		p.HorizonDays = *o.HorizonDays
	}
	if o.Period != nil {
		p.Period = *o.Period
	}
	if o.TargetYear != nil {
		p.TargetYear = *o.TargetYear
	}
	if o.Query != nil {
		p.Query = *o.Query
	}
}

type chatQueryRequest struct {
	Prompt string         `json:"prompt"`
	Intent string         `json:"intent,omitempty"`
	Params paramsOverride `json:"params"`
}

type chat2QueryRequest struct {
	Message string         `json:"message"`
	Intent  string         `json:"intent,omitempty"`
	Options paramsOverride `json:"options"`
}

var standardFollowUps = []string{"Want more detail on any of these?", "Should I check a different time period?"}

// resolveIntent implements the C2->C3 handoff shared by both chat
// endpoints: an explicit intent short-circuits resolution entirely;
// otherwise the rules resolver runs first and the LLM fallback is
// consulted only below the confidence threshold and only when enabled.
// The final, override-applied Params are validated once here; an
// out-of-range n/horizon_days/period (whether NLU-extracted or passed
// explicitly in the request body) is a 422 ValidationError, not a clamp.
func (s *Server) resolveIntent(ctx context.Context, prompt, explicitIntent string, override paramsOverride) (rules.Resolution, error) {
	var resolution rules.Resolution
	if explicitIntent != "" {
		if _, ok := s.rulesReg.GetByName(rules.Intent(explicitIntent)); ok {
			p := rules.Params{}
			p.Defaults()
			resolution = rules.Resolution{Intent: rules.Intent(explicitIntent), Params: p, Confidence: 1.0, Source: "explicit"}
		} else {
			resolution = rules.Resolution{Intent: rules.IntentUnresolved, Source: "explicit"}
		}
	} else {
		rulesRes := rules.Resolve(s.rulesReg, prompt)
		resolution = rulesRes
		if rulesRes.Confidence < llmresolver.LowConfidenceThreshold && s.cfg.ChatLLMFallbackEnabled {
			llmRes := llmresolver.Resolve(ctx, s.llmClient, prompt)
			resolution = llmresolver.Arbitrate(rulesRes, llmRes)
		}
	}

	override.apply(&resolution.Params)
	if resolution.Intent == rules.IntentUnresolved {
		return resolution, nil
	}
	if err := resolution.Params.Validate(); err != nil {
		return rules.Resolution{}, err
	}
	return resolution, nil
}

var sqlTablePattern = regexp.MustCompile(`(?i)(?:FROM|JOIN)\s+([a-z_][a-z0-9_]*)`)

// tablesFromSQL extracts the distinct table names referenced by a
// handler's illustrative SQL string, for the BI/MIXED provenance block.
func tablesFromSQL(sql string) []string {
	matches := sqlTablePattern.FindAllStringSubmatch(sql, -1)
	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		t := strings.ToLower(m[1])
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func resultToCard(result handlers.Result) composer.Card {
	return composer.Card{Type: "table", Data: map[string]interface{}{
		"columns": result.Columns,
		"rows":    result.Rows,
	}}
}

// runIntent executes the resolved intent's handler and composes a BI
// response. Returns composer.NoAnswer when the intent is unresolved or
// unregistered rather than an error, since "couldn't answer" is itself a
// valid, contract-shaped response.
func (s *Server) runIntent(ctx context.Context, orgID string, resolution rules.Resolution) (composer.Response, error) {
	if resolution.Intent == rules.IntentUnresolved {
		return composer.NoAnswer("I couldn't match that to a known inventory or sales question.", standardFollowUps)
	}

	handler, ok := s.handlerReg.GetByName(resolution.Intent)
	if !ok {
		return composer.NoAnswer("That question type isn't supported yet.", standardFollowUps)
	}

	result, err := handler(ctx, s.db, orgID, resolution.Params, s.clock.Now())
	if err != nil {
		return composer.Response{}, err
	}

	answer := fmt.Sprintf("%s (%d rows)", result.Definition, len(result.Rows))
	return composer.BI(answer, []composer.Card{resultToCard(result)}, tablesFromSQL(result.SQL), "", "", resolution.Confidence, standardFollowUps)
}

// handleChatQuery is the C2/C3/C5-only chat endpoint: always resolves to
// an intent (or NO_ANSWER), never routes to RAG/OPEN.
func (s *Server) handleChatQuery(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.ChatEnabled {
		writeError(w, fmt.Errorf("%w: chat is disabled", apperr.ErrForbidden))
		return
	}

	var req chatQueryRequest
	if err := decodeJSON(r, &req); err != nil || req.Prompt == "" {
		writeError(w, fmt.Errorf("%w: prompt is required", apperr.ErrValidation))
		return
	}

	orgID := orgIDFromContext(r)
	resolution, err := s.resolveIntent(r.Context(), req.Prompt, req.Intent, req.Params)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.runIntent(r.Context(), orgID, resolution)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleChat2Query is the full C4 hybrid router entrypoint: RAG/OPEN/BI/
// MIXED/NO_ANSWER, gated behind HYBRID_CHAT_ENABLED.
func (s *Server) handleChat2Query(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.HybridChatEnabled {
		writeError(w, fmt.Errorf("%w: hybrid chat is disabled", apperr.ErrForbidden))
		return
	}

	var req chat2QueryRequest
	if err := decodeJSON(r, &req); err != nil || req.Message == "" {
		writeError(w, fmt.Errorf("%w: message is required", apperr.ErrValidation))
		return
	}

	ctx := r.Context()
	orgID := orgIDFromContext(r)

	var explicitIntent rules.Intent
	if req.Intent != "" {
		if _, ok := s.rulesReg.GetByName(rules.Intent(req.Intent)); ok {
			explicitIntent = rules.Intent(req.Intent)
		}
	}

	decision := router.Classify(ctx, s.embedCache, s.exemplars, req.Message, explicitIntent, s.cfg.HybridRouterEmbeddings)
	if explicitIntent == "" && decision.Route == router.RouteOpen && s.cfg.HybridRouterLLMTiebreak {
		decision = router.Tiebreak(ctx, s.llmClient, req.Message)
	}

	var resp composer.Response
	var err error
	switch decision.Route {
	case router.RouteBI:
		var resolution rules.Resolution
		resolution, err = s.resolveIntentFromDecision(ctx, req.Message, decision, req.Options)
		if err == nil {
			resp, err = s.runIntent(ctx, orgID, resolution)
		}
	case router.RouteMixed:
		resp, err = s.composeMixed(ctx, orgID, req.Message, decision, req.Options)
	case router.RouteRAG:
		resp, err = s.composeRAG(ctx, req.Message, decision.Confidence)
	default:
		resp, err = s.composeOpen(ctx, orgID, req.Message, decision.Confidence)
	}

	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) resolveIntentFromDecision(ctx context.Context, message string, decision router.Decision, override paramsOverride) (rules.Resolution, error) {
	resolution, err := s.resolveIntent(ctx, message, string(decision.Intent), override)
	if err != nil {
		return rules.Resolution{}, err
	}
	if resolution.Confidence < decision.Confidence {
		resolution.Confidence = decision.Confidence
	}
	return resolution, nil
}

// composeMixed runs the BI-side handler and the RAG-side retriever
// together. Mixed requires a non-empty data.tables provenance, so when
// the BI side comes up empty this degrades to a pure RAG (or NO_ANSWER)
// response rather than returning an invalid MIXED shape.
func (s *Server) composeMixed(ctx context.Context, orgID, message string, decision router.Decision, override paramsOverride) (composer.Response, error) {
	resolution, err := s.resolveIntentFromDecision(ctx, message, decision, override)
	if err != nil {
		return composer.Response{}, err
	}

	var cards []composer.Card
	var tables []string
	if resolution.Intent != rules.IntentUnresolved {
		if handler, ok := s.handlerReg.GetByName(resolution.Intent); ok {
			result, err := handler(ctx, s.db, orgID, resolution.Params, s.clock.Now())
			if err == nil {
				cards = append(cards, resultToCard(result))
				tables = tablesFromSQL(result.SQL)
			}
		}
	}

	snippets, docIDs := s.retrieveSnippets(ctx, message)

	if len(tables) == 0 {
		if len(snippets) == 0 {
			return composer.NoAnswer("I don't have enough data or documentation to answer that.", standardFollowUps)
		}
		return composer.RAG(strings.Join(snippets, "\n\n"), snippets, docIDs, decision.Confidence, standardFollowUps)
	}

	for _, sn := range snippets {
		cards = append(cards, composer.Card{Type: "citation", Data: sn})
	}
	return composer.Mixed("Here's what the data and documentation both say about that.", cards, docIDs, tables, decision.Confidence, standardFollowUps)
}

func (s *Server) retrieveSnippets(ctx context.Context, message string) ([]string, []string) {
	if s.ragStore == nil {
		return nil, nil
	}
	results, err := s.ragStore.Query(ctx, message, s.cfg.RAGTopK)
	if err != nil {
		return nil, nil
	}
	var texts, ids []string
	for _, r := range results {
		texts = append(texts, r.Text)
		ids = append(ids, r.DocumentID)
	}
	return texts, ids
}

func (s *Server) composeRAG(ctx context.Context, message string, confidence float64) (composer.Response, error) {
	texts, docIDs := s.retrieveSnippets(ctx, message)
	if len(texts) == 0 {
		return composer.NoAnswer("I couldn't find anything in the documentation for that.", standardFollowUps)
	}
	answer := strings.Join(texts, "\n\n")
	return composer.RAG(answer, texts, docIDs, confidence, standardFollowUps)
}

func (s *Server) composeOpen(ctx context.Context, orgID, message string, confidence float64) (composer.Response, error) {
	answer := "I don't have a grounded answer for that right now."
	if s.llmClient != nil {
		grounding := s.businessSnapshotText(ctx, orgID)
		const system = "You are a helpful assistant for a retail inventory and sales operation. Use the business context below if relevant. Be concise."
		prompt := message
		if grounding != "" {
			prompt = grounding + "\n\nQuestion: " + message
		}
		if result, err := s.llmClient.Chat(ctx, system, prompt, false); err == nil {
			answer = result.Content
		}
	}
	return composer.Open(answer, confidence)
}

// businessSnapshotText grounds the open-chat variant in current org data.
// Falls back to the org id when the organization lookup fails rather than
// dropping the whole snapshot.
func (s *Server) businessSnapshotText(ctx context.Context, orgID string) string {
	orgName := orgID
	if org, err := s.db.GetOrganization(ctx, orgID); err == nil {
		orgName = org.Name
	}
	sections := snapshot.Build(ctx, s.db, orgName, orgID, s.clock.Now())
	return snapshot.Render(sections)
}
