package api

import (
	"net/http"
	"strings"

	"github.com/pinggolf/inventory-chat-core/internal/reorder"
)

// handleRunDailyAlerts triggers the daily stockout-alert scheduler (C8).
// Authentication is enforced by RequireCronToken at the router level.
func (s *Server) handleRunDailyAlerts(w http.ResponseWriter, r *http.Request) {
	strategy := reorder.Strategy(queryString(r, "strategy", string(reorder.StrategyLatest)))
	channelsParam := queryString(r, "channels", "email,webhook")

	var channels []string
	for _, c := range strings.Split(channelsParam, ",") {
		if c = strings.TrimSpace(c); c != "" {
			channels = append(channels, c)
		}
	}

	summary, err := s.scheduler.Run(r.Context(), strategy, channels)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
