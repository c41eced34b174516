package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pinggolf/inventory-chat-core/internal/auth"
	"github.com/pinggolf/inventory-chat-core/internal/clock"
	"github.com/pinggolf/inventory-chat-core/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func testServer() *Server {
	cfg := &config.Config{AlertCronToken: "cron-secret"}
	authMgr := auth.NewManager("secret", 15, 7, clock.FixedClock{At: time.Now()})
	return NewServer(cfg, nil, zerolog.Nop(), clock.FixedClock{At: time.Now()}, authMgr, nil, nil, nil)
}

func TestHandleHealthz_ReturnsOK(t *testing.T) {
	s := testServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProtectedRoute_RejectsMissingAuth(t *testing.T) {
	s := testServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInternalRoute_RejectsMissingCronToken(t *testing.T) {
	s := testServer()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/run-daily-alerts", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
