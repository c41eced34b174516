package ragstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Query_EmptyQueryOrCorpus(t *testing.T) {
	store := NewMemoryStore([]Document{{ID: "d1", Text: "return policy details"}})
	snippets, err := store.Query(context.Background(), "", 5)
	require.NoError(t, err)
	assert.Empty(t, snippets)

	empty := NewMemoryStore(nil)
	snippets, err = empty.Query(context.Background(), "return policy", 5)
	require.NoError(t, err)
	assert.Empty(t, snippets)
}

func TestMemoryStore_Query_RanksByKeywordOverlap(t *testing.T) {
	store := NewMemoryStore([]Document{
		{ID: "low", Text: "warranty replacement process"},
		{ID: "high", Text: "our return policy allows returns within 30 days"},
		{ID: "none", Text: "completely unrelated content"},
	})

	snippets, err := store.Query(context.Background(), "return policy", 5)
	require.NoError(t, err)
	require.NotEmpty(t, snippets)
	assert.Equal(t, "high", snippets[0].DocumentID)
	for _, s := range snippets {
		assert.NotEqual(t, "none", s.DocumentID)
	}
}

func TestMemoryStore_Query_RespectsTopK(t *testing.T) {
	store := NewMemoryStore([]Document{
		{ID: "a", Text: "shipping shipping shipping"},
		{ID: "b", Text: "shipping"},
		{ID: "c", Text: "shipping documentation"},
	})
	snippets, err := store.Query(context.Background(), "shipping", 2)
	require.NoError(t, err)
	assert.Len(t, snippets, 2)
}

func TestMemoryStore_Healthy_AlwaysTrue(t *testing.T) {
	assert.True(t, NewMemoryStore(nil).Healthy(context.Background()))
}

func TestLoadMemoryStoreFromDir_EmptyDirNameYieldsEmptyStore(t *testing.T) {
	store, err := LoadMemoryStoreFromDir("")
	require.NoError(t, err)
	snippets, err := store.Query(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, snippets)
}

func TestLoadMemoryStoreFromDir_MissingDirYieldsEmptyStoreNotError(t *testing.T) {
	store, err := LoadMemoryStoreFromDir(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	snippets, err := store.Query(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, snippets)
}

func TestLoadMemoryStoreFromDir_LoadsJSONDocsAndSkipsOthers(t *testing.T) {
	dir := t.TempDir()

	doc := Document{ID: "policy-1", Text: "our return policy allows returns within 30 days"}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.json"), raw, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "malformed.json"), []byte("{not valid json"), 0o644))

	store, err := LoadMemoryStoreFromDir(dir)
	require.NoError(t, err)

	snippets, err := store.Query(context.Background(), "return policy", 5)
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, "policy-1", snippets[0].DocumentID)
}
