// Package router classifies a chat message into one of {RAG, OPEN, BI,
// MIXED, NO_ANSWER} (component C4), combining a static doc-keyword score
// with an embedding-similarity score against cached exemplar sets.
package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"strings"
	"sync"

	"github.com/pinggolf/inventory-chat-core/internal/chatcore/rules"
	"github.com/pinggolf/inventory-chat-core/internal/llm"
)

// Route is one of the five possible routing decisions.
type Route string

const (
	RouteRAG       Route = "RAG"
	RouteOpen      Route = "OPEN"
	RouteBI        Route = "BI"
	RouteMixed     Route = "MIXED"
	RouteNoAnswer  Route = "NO_ANSWER"
)

const (
	ragConfidenceThreshold  = 0.25
	openConfidenceThreshold = 0.20
	openFallbackConfidence  = 0.3
)

var docKeywords = []string{"policy", "return policy", "warranty", "shipping", "how do i", "documentation", "manual"}

// Decision is the router's output for one message.
type Decision struct {
	Route      Route
	Confidence float64
	Intent     rules.Intent // set only when the caller supplied/resolved one
}

// ExemplarSet holds category -> example phrases used to seed embedding
// similarity scoring.
type ExemplarSet struct {
	DocQnA   []string
	OpenChat []string
}

// EmbeddingCache caches exemplar embeddings by a hash of the exemplar set
// so repeated requests don't re-embed the same fixed strings.
type EmbeddingCache struct {
	client *llm.Client

	mu    sync.RWMutex
	hash  string
	docQnA   [][]float64
	openChat [][]float64
}

// NewEmbeddingCache builds an empty cache bound to an LLM client.
func NewEmbeddingCache(client *llm.Client) *EmbeddingCache {
	return &EmbeddingCache{client: client}
}

func hashExemplars(set ExemplarSet) string {
	h := sha256.New()
	for _, s := range set.DocQnA {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	for _, s := range set.OpenChat {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// warm ensures the cache holds embeddings for the current exemplar set,
// re-embedding only when the set's hash changes.
func (c *EmbeddingCache) warm(ctx context.Context, set ExemplarSet) error {
	want := hashExemplars(set)

	c.mu.RLock()
	if c.hash == want {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hash == want {
		return nil
	}

	docEmb, err := embedAll(ctx, c.client, set.DocQnA)
	if err != nil {
		return err
	}
	openEmb, err := embedAll(ctx, c.client, set.OpenChat)
	if err != nil {
		return err
	}

	c.docQnA = docEmb
	c.openChat = openEmb
	c.hash = want
	return nil
}

func embedAll(ctx context.Context, client *llm.Client, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for _, t := range texts {
		v, err := client.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func maxSimilarity(v []float64, set [][]float64) float64 {
	best := 0.0
	for _, e := range set {
		if sim := cosineSimilarity(v, e); sim > best {
			best = sim
		}
	}
	return best
}

// Classify scores the prompt and returns a routing decision. When
// explicitIntent is non-empty the caller has already resolved an intent
// (via C2/C3) and the route is forced to BI/MIXED accordingly; otherwise
// only RAG/OPEN are reachable through scoring.
func Classify(ctx context.Context, cache *EmbeddingCache, set ExemplarSet, prompt string, explicitIntent rules.Intent, embeddingsEnabled bool) Decision {
	p := strings.ToLower(prompt)

	docScore := keywordScore(p, docKeywords)

	var docEmbScore, openEmbScore float64
	if embeddingsEnabled && cache != nil {
		if err := cache.warm(ctx, set); err == nil {
			if v, err := cache.client.Embed(ctx, prompt); err == nil {
				docEmbScore = maxSimilarity(v, cache.docQnA)
				openEmbScore = maxSimilarity(v, cache.openChat)
			}
		}
	}

	ragConfidence := 0.6*docScore + 0.4*docEmbScore
	openConfidence := 0.4 * openEmbScore

	var route Route
	var confidence float64
	switch {
	case ragConfidence >= ragConfidenceThreshold:
		route, confidence = RouteRAG, ragConfidence
	case openConfidence >= openConfidenceThreshold:
		route, confidence = RouteOpen, openConfidence
	default:
		route, confidence = RouteOpen, openFallbackConfidence
	}

	if explicitIntent != "" && explicitIntent != rules.IntentUnresolved {
		if route == RouteRAG {
			return Decision{Route: RouteMixed, Confidence: confidence, Intent: explicitIntent}
		}
		return Decision{Route: RouteBI, Confidence: confidence, Intent: explicitIntent}
	}

	return Decision{Route: route, Confidence: confidence}
}

func keywordScore(prompt string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(prompt, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

// TiebreakJSON is the strict shape the LLM tiebreaker must return.
type TiebreakJSON struct {
	Route  string `json:"route"`
	Reason string `json:"reason"`
}

// Tiebreak invokes the LLM to choose between RAG and OPEN when neither
// threshold was met. Invalid or unparseable output collapses to OPEN.
func Tiebreak(ctx context.Context, client *llm.Client, prompt string) Decision {
	const system = `Choose exactly one route for this message: RAG or OPEN.
Respond with ONLY JSON: {"route": "RAG"|"OPEN", "reason": "..."}`

	result, err := client.Chat(ctx, system, prompt, true)
	if err != nil {
		return Decision{Route: RouteOpen, Confidence: openFallbackConfidence}
	}

	start := strings.Index(result.Content, "{")
	end := strings.LastIndex(result.Content, "}")
	var parsed TiebreakJSON
	if start < 0 || end < start || json.Unmarshal([]byte(result.Content[start:end+1]), &parsed) != nil {
		return Decision{Route: RouteOpen, Confidence: openFallbackConfidence}
	}

	switch Route(parsed.Route) {
	case RouteRAG:
		return Decision{Route: RouteRAG, Confidence: ragConfidenceThreshold}
	case RouteOpen:
		return Decision{Route: RouteOpen, Confidence: openFallbackConfidence}
	default:
		return Decision{Route: RouteOpen, Confidence: openFallbackConfidence}
	}
}
