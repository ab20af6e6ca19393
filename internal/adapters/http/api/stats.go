package api

import (
	"net/http"
)

// StatsProvider reports the game service's runtime counters: sessions held,
// queued and in-flight resolutions, workers and the last BTC price.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	statsProvider StatsProvider
}

// NewStatsHandler creates a stats handler over the game service.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

// HandleStats writes the game service stats as JSON. A missing provider
// reports the service as not started.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	if h.statsProvider == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"started": false})
		return
	}
	writeJSON(w, http.StatusOK, h.statsProvider.GetStats())
}
