package handlers

import "net/http"

// DashboardHandler serves the caller's channel dashboard.
type DashboardHandler struct {
	Dashboard DashboardService
}

// Stats handles GET /api/v1/dashboard/stats.
func (h DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Dashboard.Stats(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, stats, "Channel stats fetched successfully")
}

// Videos handles GET /api/v1/dashboard/videos.
func (h DashboardHandler) Videos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.Dashboard.Videos(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, videos, "Channel videos fetched successfully")
}
