// Package auth issues and verifies the bearer access/refresh JWTs used by
// the HTTP API. Unlike the teacher's OAuth2 cookie-session flow (which
// proxied a third-party identity provider), this service is its own
// issuer: callers exchange credentials once at /auth/login and carry the
// resulting access token on every subsequent request.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pinggolf/inventory-chat-core/internal/apperr"
	"github.com/pinggolf/inventory-chat-core/internal/clock"
)

// Claims are the registered + custom fields carried on both token kinds.
type Claims struct {
	UserID string `json:"uid"`
	OrgID  string `json:"org_id"`
	Role   string `json:"role"`
	Kind   string `json:"kind"` // "access" or "refresh"
	jwt.RegisteredClaims
}

// Manager issues and verifies JWTs signed with a single shared secret.
type Manager struct {
	secret        []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	clock         clock.Clock
}

// NewManager builds a Manager. accessMinutes/refreshDays come directly from
// config (ACCESS_MINUTES / REFRESH_DAYS).
func NewManager(secret string, accessMinutes, refreshDays int, c clock.Clock) *Manager {
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  time.Duration(accessMinutes) * time.Minute,
		refreshTTL: time.Duration(refreshDays) * 24 * time.Hour,
		clock:      c,
	}
}

// TokenPair is the response shape for /auth/login and /auth/refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// IssueTokenPair creates a fresh access+refresh pair for a user.
func (m *Manager) IssueTokenPair(userID, orgID, role string) (*TokenPair, error) {
	access, err := m.sign(userID, orgID, role, "access", m.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := m.sign(userID, orgID, role, "refresh", m.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// RefreshAccessToken verifies a refresh token and issues a new pair
// (rotating the refresh token, matching common refresh-token-rotation
// practice).
func (m *Manager) RefreshAccessToken(refreshToken string) (*TokenPair, error) {
	claims, err := m.Verify(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.Kind != "refresh" {
		return nil, fmt.Errorf("%w: not a refresh token", apperr.ErrAuth)
	}
	return m.IssueTokenPair(claims.UserID, claims.OrgID, claims.Role)
}

// Verify parses and validates a token, returning its claims.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.clock.Now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token: %v", apperr.ErrAuth, err)
	}
	return claims, nil
}

func (m *Manager) sign(userID, orgID, role, kind string, ttl time.Duration) (string, error) {
	now := m.clock.Now()
	claims := Claims{
		UserID: userID,
		OrgID:  orgID,
		Role:   role,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}
