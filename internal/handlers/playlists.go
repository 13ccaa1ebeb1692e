package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/service"
)

// PlaylistHandler serves playlists.
type PlaylistHandler struct {
	Playlists PlaylistService
}

// Create handles POST /api/v1/playlist.
func (h PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.PlaylistInput
	if err := decodeJSON(w, r, "handlers.create_playlist", &req); err != nil {
		writeError(w, r, err)
		return
	}
	playlist, err := h.Playlists.Create(r.Context(), actorFrom(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusCreated, playlist, "Playlist created successfully")
}

// Get handles GET /api/v1/playlist/{playlistId}.
func (h PlaylistHandler) Get(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.Playlists.Get(r.Context(), chi.URLParam(r, "playlistId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, playlist, "Playlist fetched successfully")
}

// ListByUser handles GET /api/v1/playlist/user/{userId}.
func (h PlaylistHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.Playlists.ListByUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, playlists, "User playlists fetched successfully")
}

// Update handles PATCH /api/v1/playlist/{playlistId}.
func (h PlaylistHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.PlaylistInput
	if err := decodeJSON(w, r, "handlers.update_playlist", &req); err != nil {
		writeError(w, r, err)
		return
	}
	playlist, err := h.Playlists.Update(r.Context(), actorFrom(r), chi.URLParam(r, "playlistId"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, playlist, "Playlist updated successfully")
}

// Delete handles DELETE /api/v1/playlist/{playlistId}.
func (h PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.Playlists.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "playlistId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, playlist, "Playlist deleted successfully")
}

// AddVideo handles PATCH /api/v1/playlist/add/{videoId}/{playlistId}.
func (h PlaylistHandler) AddVideo(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.Playlists.AddVideo(r.Context(), actorFrom(r), chi.URLParam(r, "playlistId"), chi.URLParam(r, "videoId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, playlist, "Video added to playlist")
}

// RemoveVideo handles PATCH /api/v1/playlist/remove/{videoId}/{playlistId}.
func (h PlaylistHandler) RemoveVideo(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.Playlists.RemoveVideo(r.Context(), actorFrom(r), chi.URLParam(r, "playlistId"), chi.URLParam(r, "videoId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, playlist, "Video removed from playlist")
}
