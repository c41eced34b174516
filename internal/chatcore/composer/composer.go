// Package composer assembles the unified chat response contract and
// validates it against a hand-rolled schema before returning it
// (component C9). No JSON-schema library exists anywhere in the example
// corpus (see DESIGN.md), so the validation here uses the standard
// library only.
package composer

import (
	"fmt"

	"github.com/pinggolf/inventory-chat-core/internal/chatcore/router"
)

// Card is one UI card in a response's optional cards list.
type Card struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Provenance identifies the data tables and/or documents that produced
// an answer.
type Provenance struct {
	Docs *DocsProvenance `json:"docs,omitempty"`
	Data *DataProvenance `json:"data,omitempty"`
}

// DocsProvenance names the documents a RAG/MIXED answer drew from.
type DocsProvenance struct {
	DocumentIDs []string `json:"document_ids"`
}

// DataProvenance names the tables a BI/MIXED answer drew from, plus an
// optional query id and freshness timestamp.
type DataProvenance struct {
	Tables      []string `json:"tables"`
	QueryID     string   `json:"query_id,omitempty"`
	RefreshedAt string   `json:"refreshed_at,omitempty"`
}

// Response is the fixed, schema-validated shape every chat endpoint
// returns.
type Response struct {
	Route      router.Route `json:"route"`
	Answer     string       `json:"answer"`
	Cards      []Card       `json:"cards,omitempty"`
	Provenance Provenance   `json:"provenance"`
	Confidence float64      `json:"confidence"`
	FollowUps  []string     `json:"follow_ups"`
}

// Validate checks Response against the required-fields contract: route,
// answer, provenance, confidence, and follow_ups are required; cards is
// optional. A validation failure here is always a server bug and must
// surface as 5xx, never a silently empty answer.
func Validate(r Response) error {
	switch r.Route {
	case router.RouteRAG, router.RouteOpen, router.RouteBI, router.RouteMixed, router.RouteNoAnswer:
	default:
		return fmt.Errorf("invalid route %q", r.Route)
	}
	if r.Answer == "" {
		return fmt.Errorf("answer is required")
	}
	if r.FollowUps == nil {
		return fmt.Errorf("follow_ups is required (may be empty slice, not nil)")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %.4f out of [0,1]", r.Confidence)
	}
	if r.Route == router.RouteRAG || r.Route == router.RouteMixed {
		if r.Provenance.Docs == nil {
			return fmt.Errorf("%s response requires provenance.docs", r.Route)
		}
	}
	if r.Route == router.RouteBI || r.Route == router.RouteMixed {
		if r.Provenance.Data == nil || len(r.Provenance.Data.Tables) == 0 {
			return fmt.Errorf("%s response requires provenance.data.tables", r.Route)
		}
	}
	return nil
}

// RAG builds the RAG variant: cards[0] is the citations card with up to
// 10 snippets, provenance.docs populated.
func RAG(answer string, snippets []string, docIDs []string, confidence float64, followUps []string) (Response, error) {
	if len(snippets) > 10 {
		snippets = snippets[:10]
	}
	r := Response{
		Route:  router.RouteRAG,
		Answer: answer,
		Cards: []Card{
			{Type: "citations", Data: snippets},
		},
		Provenance: Provenance{Docs: &DocsProvenance{DocumentIDs: docIDs}},
		Confidence: confidence,
		FollowUps:  orEmpty(followUps),
	}
	return r, Validate(r)
}

// Open builds the OPEN variant: plain answer, fixed follow-ups.
func Open(answer string, confidence float64) (Response, error) {
	r := Response{
		Route:      router.RouteOpen,
		Answer:     answer,
		Provenance: Provenance{},
		Confidence: confidence,
		FollowUps:  []string{"What else would you like to know?", "Want a summary of this week's sales?"},
	}
	return r, Validate(r)
}

// BI builds the BI variant: the analytic payload embedded as a card,
// provenance.data.tables listing source tables.
func BI(answer string, cards []Card, tables []string, queryID, refreshedAt string, confidence float64, followUps []string) (Response, error) {
	r := Response{
		Route:  router.RouteBI,
		Answer: answer,
		Cards:  cards,
		Provenance: Provenance{
			Data: &DataProvenance{Tables: tables, QueryID: queryID, RefreshedAt: refreshedAt},
		},
		Confidence: confidence,
		FollowUps:  orEmpty(followUps),
	}
	return r, Validate(r)
}

// Mixed builds the MIXED variant: a synthesis string plus both
// provenance sections.
func Mixed(answer string, cards []Card, docIDs, tables []string, confidence float64, followUps []string) (Response, error) {
	r := Response{
		Route:  router.RouteMixed,
		Answer: answer,
		Cards:  cards,
		Provenance: Provenance{
			Docs: &DocsProvenance{DocumentIDs: docIDs},
			Data: &DataProvenance{Tables: tables},
		},
		Confidence: confidence,
		FollowUps:  orEmpty(followUps),
	}
	return r, Validate(r)
}

// NoAnswer builds the NO_ANSWER variant: a reason string and tailored
// follow-ups.
func NoAnswer(reason string, followUps []string) (Response, error) {
	r := Response{
		Route:      router.RouteNoAnswer,
		Answer:     reason,
		Provenance: Provenance{},
		Confidence: 0,
		FollowUps:  orEmpty(followUps),
	}
	return r, Validate(r)
}

func orEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
