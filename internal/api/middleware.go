package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/pinggolf/inventory-chat-core/internal/apperr"
	"github.com/pinggolf/inventory-chat-core/internal/auth"
)

type contextKey string

const (
	ctxKeyOrgID contextKey = "org_id"
	ctxKeyUserID contextKey = "user_id"
	ctxKeyRole   contextKey = "role"
)

// RequireBearerAuth verifies the Authorization: Bearer <access_token>
// header and injects org/user/role into the request context. Every
// handler downstream reads org id from context, never from a query
// param, so cross-org reads fail closed by construction.
func RequireBearerAuth(mgr *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, apperr.ErrAuth)
				return
			}

			claims, err := mgr.Verify(token)
			if err != nil || claims.Kind != "access" {
				writeError(w, apperr.ErrAuth)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyOrgID, claims.OrgID)
			ctx = context.WithValue(ctx, ctxKeyUserID, claims.UserID)
			ctx = context.WithValue(ctx, ctxKeyRole, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCronToken authenticates the internal daily-alerts trigger with
// a shared bearer token, distinct from user JWTs.
func RequireCronToken(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" || token != expected {
				writeError(w, apperr.ErrAuth)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

func orgIDFromContext(r *http.Request) string {
	v, _ := r.Context().Value(ctxKeyOrgID).(string)
	return v
}
