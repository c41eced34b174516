package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pinggolf/inventory-chat-core/internal/apperr"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an apperr sentinel to its HTTP status, per §7's Error
// Handling Design, and writes a flat {"error": "..."} body.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.ToHTTPStatus(err), errorBody{Error: err.Error()})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// queryInt parses an integer query parameter, returning def when absent.
// A present value outside [min,max], or that doesn't parse, is a 422
// ValidationError rather than a silent clamp.
func queryInt(r *http.Request, key string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", apperr.ErrValidation, key)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%w: %s must be between %d and %d", apperr.ErrValidation, key, min, max)
	}
	return n, nil
}

func queryBool(r *http.Request, key string, def bool) bool {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

func queryString(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}
