package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/paginate"
	"github.com/vidtube/backend/internal/relations"
)

// LikeHandler toggles and lists likes.
type LikeHandler struct {
	Likes LikeService
}

type toggleFunc func(ctx context.Context, actorID, targetID string) (relations.Result, error)

// toggle runs fn on the target named by param and reports whether the edge now exists.
func toggle(w http.ResponseWriter, r *http.Request, fn toggleFunc, param, added, removed string) {
	res, err := fn(r.Context(), actorFrom(r), chi.URLParam(r, param))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Created {
		respondJSON(r.Context(), w, http.StatusCreated, res, added)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, res, removed)
}

// ToggleVideo handles POST /api/v1/likes/toggle/v/{videoId}.
func (h LikeHandler) ToggleVideo(w http.ResponseWriter, r *http.Request) {
	toggle(w, r, h.Likes.ToggleVideo, "videoId", "Video liked", "Video unliked")
}

// ToggleComment handles POST /api/v1/likes/toggle/c/{commentId}.
func (h LikeHandler) ToggleComment(w http.ResponseWriter, r *http.Request) {
	toggle(w, r, h.Likes.ToggleComment, "commentId", "Comment liked", "Comment unliked")
}

// ToggleTweet handles POST /api/v1/likes/toggle/t/{tweetId}.
func (h LikeHandler) ToggleTweet(w http.ResponseWriter, r *http.Request) {
	toggle(w, r, h.Likes.ToggleTweet, "tweetId", "Tweet liked", "Tweet unliked")
}

// LikedVideos handles GET /api/v1/likes/videos?page&limit.
func (h LikeHandler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.Likes.LikedVideos(r.Context(), actorFrom(r), paginate.Parse(q.Get("page"), q.Get("limit")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, page, "Liked videos fetched successfully")
}

// SubscriptionHandler toggles and lists channel subscriptions.
type SubscriptionHandler struct {
	Subscriptions SubscriptionService
}

// Toggle handles POST /api/v1/subscriptions/c/{channelId}.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	toggle(w, r, h.Subscriptions.Toggle, "channelId", "Subscribed successfully", "Unsubscribed successfully")
}

// Subscribers handles GET /api/v1/subscriptions/c/{channelId}?page&limit.
func (h SubscriptionHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.Subscriptions.Subscribers(r.Context(), chi.URLParam(r, "channelId"), paginate.Parse(q.Get("page"), q.Get("limit")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, page, "Subscribers fetched successfully")
}

// SubscribedTo handles GET /api/v1/subscriptions/u/{subscriberId}?page&limit.
func (h SubscriptionHandler) SubscribedTo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.Subscriptions.SubscribedTo(r.Context(), chi.URLParam(r, "subscriberId"), paginate.Parse(q.Get("page"), q.Get("limit")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, page, "Subscribed channels fetched successfully")
}
