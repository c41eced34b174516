// Package ragstore defines the narrow document-retriever interface the
// chat core consumes for the RAG/MIXED routes. The vector-store
// implementation itself (embeddings-backed similarity search over a real
// document corpus) is an explicit non-goal; MemoryStore is a process-local
// stand-in with the same contract, loaded from RAG_PERSIST_DIR when one is
// configured and empty otherwise (degrading every RAG query to zero
// snippets rather than failing).
package ragstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Snippet is one retrieved passage with its originating document id.
type Snippet struct {
	DocumentID string
	Text       string
	Score      float64
}

// Document is one entry in the retrievable corpus.
type Document struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Store retrieves the top-K snippets relevant to a query.
type Store interface {
	Query(ctx context.Context, query string, topK int) ([]Snippet, error)
	Healthy(ctx context.Context) bool
}

// MemoryStore scores documents by keyword overlap, the same scoring shape
// router.keywordScore uses for doc-intent classification. Thread-safe and
// process-global per the spec's vector-store-client contract.
type MemoryStore struct {
	mu   sync.RWMutex
	docs []Document
}

// NewMemoryStore builds a store over an in-process document slice.
func NewMemoryStore(docs []Document) *MemoryStore {
	return &MemoryStore{docs: docs}
}

// LoadMemoryStoreFromDir reads every *.json file in dir as a Document and
// returns a MemoryStore over them. A missing or empty dir yields an empty
// store, not an error, since RAG gracefully degrades when content isn't
// configured (RAG_STORE=memory, RAG_PERSIST_DIR unset is a valid deploy).
func LoadMemoryStoreFromDir(dir string) (*MemoryStore, error) {
	if dir == "" {
		return NewMemoryStore(nil), nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return NewMemoryStore(nil), nil
		}
		return nil, err
	}

	var docs []Document
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return NewMemoryStore(docs), nil
}

// Query scores every document by fraction of query terms it contains and
// returns the top-K by descending score, breaking ties by document order.
func (m *MemoryStore) Query(_ context.Context, query string, topK int) ([]Snippet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 || len(m.docs) == 0 {
		return nil, nil
	}

	type scored struct {
		doc   Document
		score float64
	}
	var candidates []scored
	for _, d := range m.docs {
		lower := strings.ToLower(d.Text)
		hits := 0
		for _, t := range terms {
			if strings.Contains(lower, t) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		candidates = append(candidates, scored{doc: d, score: float64(hits) / float64(len(terms))})
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	out := make([]Snippet, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Snippet{DocumentID: c.doc.ID, Text: c.doc.Text, Score: c.score})
	}
	return out, nil
}

// Healthy always reports true: an in-process store can't be unreachable.
func (m *MemoryStore) Healthy(context.Context) bool { return true }
