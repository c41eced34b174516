package composer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRAG_TruncatesSnippetsAndValidates(t *testing.T) {
	snippets := make([]string, 15)
	for i := range snippets {
		snippets[i] = "snippet"
	}
	r, err := RAG("here is what the docs say", snippets, []string{"doc-1"}, 0.6, nil)
	require.NoError(t, err)
	assert.Len(t, r.Cards[0].Data.([]string), 10)
	assert.NoError(t, Validate(r))
}

func TestValidate_RejectsMissingAnswer(t *testing.T) {
	r := Response{Route: "OPEN", FollowUps: []string{}}
	err := Validate(r)
	assert.Error(t, err)
}

func TestValidate_RejectsBIWithoutTables(t *testing.T) {
	r := Response{Route: "BI", Answer: "x", FollowUps: []string{}, Provenance: Provenance{}}
	err := Validate(r)
	assert.Error(t, err)
}

func TestValidate_RejectsOutOfRangeConfidence(t *testing.T) {
	r := Response{Route: "OPEN", Answer: "x", FollowUps: []string{}, Confidence: 1.5}
	err := Validate(r)
	assert.Error(t, err)
}

func TestNoAnswer_Valid(t *testing.T) {
	r, err := NoAnswer("I don't have data for that", []string{"Try asking about stockout risk"})
	require.NoError(t, err)
	assert.Equal(t, "NO_ANSWER", string(r.Route))
}
