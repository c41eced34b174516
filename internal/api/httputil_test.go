package api

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pinggolf/inventory-chat-core/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON_SetsContentTypeAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, map[string]string{"ok": "yes"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())
}

func TestWriteError_MapsSentinelToStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, fmt.Errorf("%w: missing field", apperr.ErrValidation))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing field")
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"n": 5, "bogus": true}`))
	var v struct {
		N int `json:"n"`
	}
	err := decodeJSON(req, &v)
	require.Error(t, err)
}

func TestDecodeJSON_AcceptsKnownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"n": 5}`))
	var v struct {
		N int `json:"n"`
	}
	require.NoError(t, decodeJSON(req, &v))
	assert.Equal(t, 5, v.N)
}

func TestQueryInt_RejectsOutOfRangeAndNonNumeric(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?n=500", nil)
	_, err := queryInt(req, "n", 10, 1, 50)
	require.ErrorIs(t, err, apperr.ErrValidation)

	req = httptest.NewRequest(http.MethodGet, "/?n=not-a-number", nil)
	_, err = queryInt(req, "n", 10, 1, 50)
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestQueryInt_DefaultsOnMissingAndPassesThroughInRange(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	n, err := queryInt(req, "n", 10, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	req = httptest.NewRequest(http.MethodGet, "/?n=5", nil)
	n, err = queryInt(req, "n", 10, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestQueryBool_DefaultsOnMissingOrInvalid(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?flag=true", nil)
	assert.True(t, queryBool(req, "flag", false))

	req = httptest.NewRequest(http.MethodGet, "/?flag=nonsense", nil)
	assert.False(t, queryBool(req, "flag", false))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, queryBool(req, "flag", true))
}

func TestQueryString_DefaultsOnMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?period=30d", nil)
	assert.Equal(t, "30d", queryString(req, "period", "7d"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "7d", queryString(req, "period", "7d"))
}
