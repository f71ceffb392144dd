package handlers

import (
	"log/slog"
	"net/http"
)

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	scans := h.scanner.Stats()
	response := map[string]any{
		"scans":        scans,
		"success_rate": scans.SuccessRate(),
		"sessions":     h.sessionStore.Len(),
	}
	if h.cache != nil {
		cacheStats, err := h.cache.Stats(r.Context())
		if err != nil {
			slog.Warn("Unable to read cache stats", "err", err)
		} else {
			response["cache"] = cacheStats
		}
	}
	h.writeJSON(w, response)
}
