// Package apperr defines the error taxonomy shared across the API: each
// sentinel maps to one HTTP status so handlers can wrap a cause with
// fmt.Errorf("%w", ...) and let one central translator pick the status.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrAuth covers missing/invalid tokens, insufficient role, or a wrong
	// cron token.
	ErrAuth = errors.New("auth error")
	// ErrForbidden covers a disabled feature flag gating an otherwise
	// authenticated request (e.g. HYBRID_CHAT_ENABLED=false).
	ErrForbidden = errors.New("forbidden")
	// ErrValidation covers request body or intent param-model violations.
	ErrValidation = errors.New("validation error")
	// ErrNotFound covers an org-scoped entity that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict covers state-machine violations (e.g. deleting a non-draft PO).
	ErrConflict = errors.New("conflict")
	// ErrUpstream covers LLM/vector-store unreachable or timed out.
	ErrUpstream = errors.New("upstream error")
	// ErrDataUnavailable covers a missing/empty analytics mart, triggering
	// the base-table fallback path.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrInternal covers unexpected failures, including composer schema
	// validation failures, which are always a server bug.
	ErrInternal = errors.New("internal error")
)

// ToHTTPStatus maps an error to the HTTP status it should surface as.
// Unrecognized errors are treated as internal (500).
func ToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, ErrDataUnavailable):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
