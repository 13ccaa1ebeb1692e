package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/apperr"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	Store HealthChecker
}

// Handle implements GET /healthz. With a store configured it is also pinged.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Store.Ping(ctx); err != nil {
			writeError(w, r, apperr.Wrapf(apperr.DependencyFailure, "handlers.health", err, "store unreachable"))
			return
		}
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"}, "Everything is O.K.")
}
