package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
)

// maxJSONBody bounds request bodies that are not uploads.
const maxJSONBody = 16 << 10

// envelope wraps every response body.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := envelope{StatusCode: status, Data: data, Message: message, Success: status < http.StatusBadRequest}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidInput:
		return http.StatusBadRequest
	case apperr.Unauthenticated:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.RateLimited:
		return http.StatusTooManyRequests
	case apperr.DependencyFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err in the envelope. Client errors log at Warn, the rest at Error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := statusFor(apperr.KindOf(err))

	logger := logging.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.Int("status", status), slog.Any("error", err))
	} else {
		logger.Warn("request returned client error", slog.Int("status", status), slog.Any("error", err))
	}
	respondJSON(ctx, w, status, nil, apperr.Message(err))
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperr.Wrapf(apperr.InvalidInput, op, err, "request body too large")
		case errors.Is(err, io.EOF):
			return apperr.Wrapf(apperr.InvalidInput, op, err, "request body is required")
		default:
			return apperr.Wrapf(apperr.InvalidInput, op, err, "invalid request body")
		}
	}
	return nil
}

// actorFrom returns the authenticated user, or "" on anonymous requests.
func actorFrom(r *http.Request) string {
	id, _ := auth.ActorFromContext(r.Context())
	return id
}
