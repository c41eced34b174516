package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pinggolf/inventory-chat-core/internal/auth"
	"github.com/pinggolf/inventory-chat-core/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoOrgHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(orgIDFromContext(r)))
	})
}

func TestRequireBearerAuth_MissingHeaderIsUnauthorized(t *testing.T) {
	mgr := auth.NewManager("secret", 15, 7, clock.FixedClock{At: time.Now()})
	handler := RequireBearerAuth(mgr)(echoOrgHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireBearerAuth_InvalidTokenIsUnauthorized(t *testing.T) {
	mgr := auth.NewManager("secret", 15, 7, clock.FixedClock{At: time.Now()})
	handler := RequireBearerAuth(mgr)(echoOrgHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireBearerAuth_RefreshTokenRejectedOnAccessRoute(t *testing.T) {
	now := time.Now()
	mgr := auth.NewManager("secret", 15, 7, clock.FixedClock{At: now})
	pair, err := mgr.IssueTokenPair("user-1", "org-1", "owner")
	require.NoError(t, err)

	handler := RequireBearerAuth(mgr)(echoOrgHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireBearerAuth_ValidAccessTokenInjectsOrgID(t *testing.T) {
	now := time.Now()
	mgr := auth.NewManager("secret", 15, 7, clock.FixedClock{At: now})
	pair, err := mgr.IssueTokenPair("user-1", "org-42", "owner")
	require.NoError(t, err)

	handler := RequireBearerAuth(mgr)(echoOrgHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "org-42", rec.Body.String())
}

func TestRequireCronToken_RejectsMismatchAndAcceptsMatch(t *testing.T) {
	handler := RequireCronToken("cron-secret")(echoOrgHandler())

	req := httptest.NewRequest(http.MethodPost, "/internal/alerts/run", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/internal/alerts/run", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/internal/alerts/run", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerToken_RequiresBearerPrefix(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", bearerToken(req))

	req.Header.Set("Authorization", "Token abc")
	assert.Equal(t, "", bearerToken(req))

	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", bearerToken(req))
}
