package api

import (
	"fmt"
	"net/http"

	"github.com/pinggolf/inventory-chat-core/internal/apperr"
	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// handleLogin exchanges email+password for an access/refresh token pair.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, fmt.Errorf("%w: email and password are required", apperr.ErrValidation))
		return
	}

	user, err := s.db.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, fmt.Errorf("%w: invalid credentials", apperr.ErrAuth))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, fmt.Errorf("%w: invalid credentials", apperr.ErrAuth))
		return
	}

	pair, err := s.authMgr.IssueTokenPair(user.ID, user.OrgID, user.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// handleRefresh rotates a refresh token for a fresh access/refresh pair.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, fmt.Errorf("%w: refresh_token is required", apperr.ErrValidation))
		return
	}

	pair, err := s.authMgr.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}
