package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/paginate"
	"github.com/vidtube/backend/internal/service"
)

// CommentHandler serves comments on videos.
type CommentHandler struct {
	Comments CommentService
}

// List handles GET /api/v1/comments/{videoId}?page&limit.
func (h CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.Comments.List(r.Context(), chi.URLParam(r, "videoId"), actorFrom(r), paginate.Parse(q.Get("page"), q.Get("limit")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, page, "Comments fetched successfully")
}

// Add handles POST /api/v1/comments/{videoId}.
func (h CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req service.ContentInput
	if err := decodeJSON(w, r, "handlers.add_comment", &req); err != nil {
		writeError(w, r, err)
		return
	}
	comment, err := h.Comments.Add(r.Context(), actorFrom(r), chi.URLParam(r, "videoId"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusCreated, comment, "Comment added successfully")
}

// Update handles PATCH /api/v1/comments/c/{commentId}.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.ContentInput
	if err := decodeJSON(w, r, "handlers.update_comment", &req); err != nil {
		writeError(w, r, err)
		return
	}
	comment, err := h.Comments.Update(r.Context(), actorFrom(r), chi.URLParam(r, "commentId"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, comment, "Comment updated successfully")
}

// Delete handles DELETE /api/v1/comments/c/{commentId}.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	comment, err := h.Comments.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "commentId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, comment, "Comment deleted successfully")
}

// TweetHandler serves tweets.
type TweetHandler struct {
	Tweets TweetService
}

// Create handles POST /api/v1/tweets.
func (h TweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.ContentInput
	if err := decodeJSON(w, r, "handlers.create_tweet", &req); err != nil {
		writeError(w, r, err)
		return
	}
	tweet, err := h.Tweets.Create(r.Context(), actorFrom(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusCreated, tweet, "Tweet created successfully")
}

// ListByUser handles GET /api/v1/tweets/user/{userId}?page&limit.
func (h TweetHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.Tweets.ListByUser(r.Context(), chi.URLParam(r, "userId"), actorFrom(r), paginate.Parse(q.Get("page"), q.Get("limit")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, page, "Tweets fetched successfully")
}

// Update handles PATCH /api/v1/tweets/{tweetId}.
func (h TweetHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.ContentInput
	if err := decodeJSON(w, r, "handlers.update_tweet", &req); err != nil {
		writeError(w, r, err)
		return
	}
	tweet, err := h.Tweets.Update(r.Context(), actorFrom(r), chi.URLParam(r, "tweetId"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, tweet, "Tweet updated successfully")
}

// Delete handles DELETE /api/v1/tweets/{tweetId}.
func (h TweetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tweet, err := h.Tweets.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "tweetId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, tweet, "Tweet deleted successfully")
}
