package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
)

// TokenVerifier resolves an access token to a user id.
type TokenVerifier interface {
	Verify(accessToken string) (string, error)
}

// AccessCookie is the cookie consulted when no Authorization header is sent.
const AccessCookie = "accessToken"

// Authenticate puts the user behind a valid bearer token into the request context. Requests
// without a token are rejected with Unauthenticated.
func Authenticate(verifier TokenVerifier, onError ErrorWriter) func(http.Handler) http.Handler {
	return authenticate(verifier, true, onError)
}

// OptionalAuth is Authenticate for public routes: a missing token passes through anonymously,
// but a present and invalid one is still rejected.
func OptionalAuth(verifier TokenVerifier, onError ErrorWriter) func(http.Handler) http.Handler {
	return authenticate(verifier, false, onError)
}

func authenticate(verifier TokenVerifier, required bool, onError ErrorWriter) func(http.Handler) http.Handler {
	const op = "middleware.authenticate"
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if required {
					onError(w, r, apperr.E(apperr.Unauthenticated, op, "unauthorized request"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				logging.FromContext(r.Context()).Warn("access token rejected", slog.Any("error", err))
				onError(w, r, apperr.Wrapf(apperr.Unauthenticated, op, err, "invalid access token"))
				return
			}

			ctx := auth.WithActor(r.Context(), userID)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With(slog.String("user_id", userID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(AccessCookie); err == nil {
		return c.Value
	}
	return ""
}
