package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/paginate"
	"github.com/vidtube/backend/internal/service"
	"github.com/vidtube/backend/internal/views"
)

// VideoHandler provides endpoints for uploading and watching videos.
type VideoHandler struct {
	Videos    VideoService
	UploadDir string
}

// Feed handles GET /api/v1/videos?page&limit&query&sortBy&sortType&userId.
func (h VideoHandler) Feed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.Videos.Feed(r.Context(), views.FeedQuery{
		OwnerID:  q.Get("userId"),
		Query:    q.Get("query"),
		SortBy:   q.Get("sortBy"),
		SortType: q.Get("sortType"),
	}, paginate.Parse(q.Get("page"), q.Get("limit")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, page, "Videos fetched successfully")
}

// Publish handles POST /api/v1/videos (multipart: videoFile, thumbnail).
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.publish_video"
	files, err := spool(w, r, op, h.UploadDir, "videoFile", "thumbnail")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer files.cleanup()

	if files.path("videoFile") == "" || files.path("thumbnail") == "" {
		writeError(w, r, apperr.E(apperr.InvalidInput, op, "video file and thumbnail are required"))
		return
	}
	published, _ := strconv.ParseBool(r.FormValue("isPublished"))

	video, err := h.Videos.Publish(r.Context(), actorFrom(r), service.PublishInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		VideoFile:   files.path("videoFile"),
		Thumbnail:   files.path("thumbnail"),
		Published:   published,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusCreated, video, "Video published successfully")
}

// Get handles GET /api/v1/videos/{videoId}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Videos.Get(r.Context(), chi.URLParam(r, "videoId"), actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, detail, "Video fetched successfully")
}

// Update handles PATCH /api/v1/videos/{videoId} (multipart: optional thumbnail).
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	files, err := spool(w, r, "handlers.update_video", h.UploadDir, "thumbnail")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer files.cleanup()

	video, err := h.Videos.Update(r.Context(), actorFrom(r), chi.URLParam(r, "videoId"), service.VideoUpdate{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Thumbnail:   files.path("thumbnail"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, video, "Video updated successfully")
}

// Delete handles DELETE /api/v1/videos/{videoId}.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	video, err := h.Videos.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "videoId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, video, "Video deleted successfully")
}

// TogglePublish handles PATCH /api/v1/videos/toggle/publish/{videoId}.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	video, err := h.Videos.TogglePublish(r.Context(), actorFrom(r), chi.URLParam(r, "videoId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]bool{"isPublished": video.IsPublished}, "Video publish status toggled")
}
