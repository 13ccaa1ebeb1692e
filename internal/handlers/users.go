package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/service"
)

// RefreshCookie carries the refresh token for browser clients.
const RefreshCookie = "refreshToken"

// UserHandler implements account and session endpoints.
type UserHandler struct {
	Users     UserService
	UploadDir string
}

// Register handles POST /api/v1/users/register (multipart: avatar, coverImage).
func (h UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.register"
	files, err := spool(w, r, op, h.UploadDir, "avatar", "coverImage")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer files.cleanup()

	if files.path("avatar") == "" {
		writeError(w, r, apperr.E(apperr.InvalidInput, op, "avatar file is required"))
		return
	}

	user, err := h.Users.Register(r.Context(), service.RegisterInput{
		FullName:   r.FormValue("fullName"),
		Email:      r.FormValue("email"),
		Username:   r.FormValue("username"),
		Password:   r.FormValue("password"),
		Avatar:     files.path("avatar"),
		CoverImage: files.path("coverImage"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusCreated, user, "User registered successfully")
}

// Login handles POST /api/v1/users/login.
func (h UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if err := decodeJSON(w, r, "handlers.login", &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.Users.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	setSessionCookies(w, res.SessionTokens)
	respondJSON(r.Context(), w, http.StatusOK, res, "User logged in successfully")
}

// Logout handles POST /api/v1/users/logout.
func (h UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Users.Logout(r.Context(), actorFrom(r)); err != nil {
		writeError(w, r, err)
		return
	}
	clearSessionCookies(w)
	respondJSON(r.Context(), w, http.StatusOK, struct{}{}, "User logged out")
}

// Refresh handles POST /api/v1/users/refresh-token. The token is read from the cookie first,
// then from the JSON body.
func (h UserHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(RefreshCookie); err == nil {
		token = c.Value
	}
	if token == "" && r.ContentLength != 0 {
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeJSON(w, r, "handlers.refresh", &req); err != nil {
			writeError(w, r, err)
			return
		}
		token = req.RefreshToken
	}

	tokens, err := h.Users.Refresh(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	setSessionCookies(w, tokens)
	respondJSON(r.Context(), w, http.StatusOK, tokens, "Access token refreshed")
}

// ChangePassword handles POST /api/v1/users/change-password.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req service.PasswordChange
	if err := decodeJSON(w, r, "handlers.change_password", &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Users.ChangePassword(r.Context(), actorFrom(r), req); err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, struct{}{}, "Password changed successfully")
}

// Current handles GET /api/v1/users/current-user.
func (h UserHandler) Current(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.Current(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, user, "Current user fetched successfully")
}

// UpdateAccount handles PATCH /api/v1/users/update-account.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req service.AccountUpdate
	if err := decodeJSON(w, r, "handlers.update_account", &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.Users.UpdateAccount(r.Context(), actorFrom(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, user, "Account details updated successfully")
}

// UpdateAvatar handles PATCH /api/v1/users/avatar (multipart: avatar).
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "avatar", h.Users.UpdateAvatar, "Avatar updated successfully")
}

// UpdateCover handles PATCH /api/v1/users/cover-image (multipart: coverImage).
func (h UserHandler) UpdateCover(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "coverImage", h.Users.UpdateCover, "Cover image updated successfully")
}

func (h UserHandler) replaceImage(w http.ResponseWriter, r *http.Request, field string,
	update func(ctx context.Context, actorID, path string) (models.PublicUser, error), message string) {
	op := "handlers.update_" + field
	files, err := spool(w, r, op, h.UploadDir, field)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer files.cleanup()

	if files.path(field) == "" {
		writeError(w, r, apperr.E(apperr.InvalidInput, op, field+" file is missing"))
		return
	}
	user, err := update(r.Context(), actorFrom(r), files.path(field))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, user, message)
}

// Channel handles GET /api/v1/users/c/{username}.
func (h UserHandler) Channel(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Users.Channel(r.Context(), chi.URLParam(r, "username"), actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, profile, "User channel fetched successfully")
}

// History handles GET /api/v1/users/history.
func (h UserHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.Users.History(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, history, "Watch history fetched successfully")
}

func setSessionCookies(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, sessionCookie(middleware.AccessCookie, tokens.AccessToken, tokens.AccessExpiresAt))
	http.SetCookie(w, sessionCookie(RefreshCookie, tokens.RefreshToken, tokens.RefreshExpiresAt))
}

func clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessCookie, RefreshCookie} {
		c := sessionCookie(name, "", time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func sessionCookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}
