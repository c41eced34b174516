package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pinggolf/inventory-chat-core/internal/auth"
	"github.com/pinggolf/inventory-chat-core/internal/clock"
	"github.com/pinggolf/inventory-chat-core/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServerWithToken(t *testing.T, cfg *config.Config) (*Server, string) {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg.AlertCronToken = "cron-secret"
	now := time.Now()
	authMgr := auth.NewManager("secret", 15, 7, clock.FixedClock{At: now})
	pair, err := authMgr.IssueTokenPair("user-1", "org-1", "owner")
	require.NoError(t, err)
	s := NewServer(cfg, nil, zerolog.Nop(), clock.FixedClock{At: now}, authMgr, nil, nil, nil)
	return s, pair.AccessToken
}

func authedRequest(method, target, token string, body *bytes.Buffer) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestHandleReorderSuggestions_RejectsHorizonDaysOverrideBoundaries(t *testing.T) {
	s, token := testServerWithToken(t, nil)

	for _, v := range []string{"0", "366"} {
		req := authedRequest(http.MethodGet, "/api/v1/purchasing/reorder-suggestions?horizon_days_override="+v, token, nil)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "horizon_days_override=%s", v)
	}
}

func TestHandleReorderSuggestions_RejectsUnknownStrategy(t *testing.T) {
	s, token := testServerWithToken(t, nil)

	req := authedRequest(http.MethodGet, "/api/v1/purchasing/reorder-suggestions?strategy=bogus", token, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleDraftPO_RejectsEmptyProductIDs(t *testing.T) {
	s, token := testServerWithToken(t, nil)

	body := bytes.NewBufferString(`{"strategy":"latest"}`)
	req := authedRequest(http.MethodPost, "/api/v1/purchasing/reorder-suggestions/draft-po", token, body)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleDraftPO_RejectsLegacyFieldNames(t *testing.T) {
	s, token := testServerWithToken(t, nil)

	body := bytes.NewBufferString(`{"velocity_strategy":"latest","po_number_prefix":"PO"}`)
	req := authedRequest(http.MethodPost, "/api/v1/purchasing/reorder-suggestions/draft-po", token, body)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleDraftPO_RejectsOutOfRangeHorizonDaysOverride(t *testing.T) {
	s, token := testServerWithToken(t, nil)

	body := bytes.NewBufferString(`{"product_ids":["p1"],"horizon_days_override":0}`)
	req := authedRequest(http.MethodPost, "/api/v1/purchasing/reorder-suggestions/draft-po", token, body)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleChatQuery_RejectsOutOfRangeNOverride(t *testing.T) {
	s, token := testServerWithToken(t, &config.Config{ChatEnabled: true})

	body := bytes.NewBufferString(`{"prompt":"top skus by margin last week","params":{"n":51}}`)
	req := authedRequest(http.MethodPost, "/api/v1/chat/query", token, body)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
