package alerts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestSendEmail_NotConfiguredFailsClosed(t *testing.T) {
	result := sendEmail(EmailConfig{}, Digest{OrgID: "org1", HighCount: 2})
	assert.False(t, result.Success)
	assert.Equal(t, "email", result.Channel)
	assert.Contains(t, result.Error, "not configured")
}

func TestSendWebhook_NotConfiguredFailsClosed(t *testing.T) {
	result := sendWebhook(context.Background(), http.DefaultClient, "", "", Digest{OrgID: "org1"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not configured")
}

func TestSendWebhook_SignsPayloadAndSucceeds(t *testing.T) {
	var gotSignature string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	digest := Digest{OrgID: "org1", HighCount: 3, MediumCount: 1}
	result := sendWebhook(context.Background(), server.Client(), server.URL, "super-secret", digest)

	require.True(t, result.Success)
	assert.NotEmpty(t, gotSignature)
	assert.Contains(t, string(gotBody), "org1")
}

func TestSendWebhook_NonSuccessStatusFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	result := sendWebhook(context.Background(), server.Client(), server.URL, "", Digest{OrgID: "org1"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "status 500")
}

func TestSign_DeterministicAndKeyed(t *testing.T) {
	payload := []byte(`{"org_id":"org1"}`)
	sigA := sign("secret-a", payload)
	sigB := sign("secret-b", payload)
	assert.NotEqual(t, sigA, sigB)
	assert.Equal(t, sigA, sign("secret-a", payload))
}

func TestIdempotencyKey_IsStableAndScopedByOrgAndDay(t *testing.T) {
	now := mustParseTime(t, "2026-07-31T00:00:00Z")
	tomorrow := mustParseTime(t, "2026-08-01T00:00:00Z")

	assert.Equal(t, idempotencyKey("org1", now), idempotencyKey("org1", now))
	assert.NotEqual(t, idempotencyKey("org1", now), idempotencyKey("org2", now))
	assert.NotEqual(t, idempotencyKey("org1", now), idempotencyKey("org1", tomorrow))
}
