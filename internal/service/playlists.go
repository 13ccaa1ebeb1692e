package service

import (
	"context"
	"errors"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/cascade"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/ownership"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/validation"
	"github.com/vidtube/backend/internal/views"
)

// PlaylistInput names and describes a playlist.
type PlaylistInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

// Playlists manages user playlists.
type Playlists struct {
	playlists *repositories.PlaylistRepository
	videos    *repositories.VideoRepository
	users     *repositories.UserRepository
	views     *views.Composer
	guard     *ownership.Guard
	cascade   *cascade.Coordinator
}

// NewPlaylists constructs the playlist service.
func NewPlaylists(d Deps) *Playlists {
	return &Playlists{
		playlists: repositories.NewPlaylistRepository(d.Store),
		videos:    repositories.NewVideoRepository(d.Store),
		users:     repositories.NewUserRepository(d.Store),
		views:     views.NewComposer(d.Store),
		guard:     ownership.NewGuard(d.Store),
		cascade:   cascade.NewCoordinator(d.Store, d.Assets),
	}
}

func (in PlaylistInput) validate(op string) (PlaylistInput, error) {
	in.Name, in.Description = clean(in.Name), clean(in.Description)
	return in, validation.Struct(op, in)
}

// Create makes an empty playlist owned by actorID.
func (s *Playlists) Create(ctx context.Context, actorID string, in PlaylistInput) (models.Playlist, error) {
	const op = "playlists.create"
	if err := requireActor(op, actorID); err != nil {
		return models.Playlist{}, err
	}
	in, err := in.validate(op)
	if err != nil {
		return models.Playlist{}, err
	}
	now := models.Now()
	playlist := models.Playlist{
		ID:          validation.NewID(),
		Name:        in.Name,
		Description: in.Description,
		Owner:       actorID,
		Videos:      []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.playlists.Insert(ctx, playlist); err != nil {
		return models.Playlist{}, storeErr(op, err, "")
	}
	return playlist, nil
}

// Get returns a playlist with its published videos.
func (s *Playlists) Get(ctx context.Context, playlistID string) (models.PlaylistDetail, error) {
	if err := validation.ID("playlists.get", "playlist id", playlistID); err != nil {
		return models.PlaylistDetail{}, err
	}
	return s.views.PlaylistDetail(ctx, playlistID)
}

// ListByUser returns the playlists of userID, most recently updated first.
func (s *Playlists) ListByUser(ctx context.Context, userID string) ([]models.PlaylistSummary, error) {
	const op = "playlists.list"
	if err := validation.ID(op, "user id", userID); err != nil {
		return nil, err
	}
	ok, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, storeErr(op, err, "")
	}
	if !ok {
		return nil, apperr.E(apperr.NotFound, op, "user does not exist")
	}
	return s.views.UserPlaylists(ctx, userID)
}

// Update renames a playlist. Owner only.
func (s *Playlists) Update(ctx context.Context, actorID, playlistID string, in PlaylistInput) (models.Playlist, error) {
	const op = "playlists.update"
	if err := requireActor(op, actorID); err != nil {
		return models.Playlist{}, err
	}
	in, err := in.validate(op)
	if err != nil {
		return models.Playlist{}, err
	}
	if _, err := s.guard.Load(ctx, models.CollectionPlaylists, playlistID, actorID); err != nil {
		return models.Playlist{}, err
	}
	playlist, err := s.playlists.Update(ctx, playlistID, docstore.Patch{Set: map[string]any{
		"name":        in.Name,
		"description": in.Description,
		"updatedAt":   models.Now(),
	}})
	return playlist, storeErr(op, err, "playlist not found")
}

// Delete removes a playlist. Owner only.
func (s *Playlists) Delete(ctx context.Context, actorID, playlistID string) (models.Playlist, error) {
	const op = "playlists.delete"
	if err := requireActor(op, actorID); err != nil {
		return models.Playlist{}, err
	}
	if _, err := s.guard.Load(ctx, models.CollectionPlaylists, playlistID, actorID); err != nil {
		return models.Playlist{}, err
	}
	root, err := s.cascade.Delete(ctx, cascade.KindPlaylist, playlistID)
	return decodeRoot[models.Playlist](op, root, err)
}

// AddVideo appends videoID to the playlist. Owner only.
func (s *Playlists) AddVideo(ctx context.Context, actorID, playlistID, videoID string) (models.Playlist, error) {
	const op = "playlists.add_video"
	if err := s.checkMembershipChange(ctx, op, actorID, playlistID, videoID); err != nil {
		return models.Playlist{}, err
	}
	ok, err := s.videos.Exists(ctx, videoID)
	if err != nil {
		return models.Playlist{}, storeErr(op, err, "")
	}
	if !ok {
		return models.Playlist{}, apperr.E(apperr.NotFound, op, "video not found")
	}

	playlist, err := s.playlists.AddVideo(ctx, playlistID, videoID)
	if errors.Is(err, repositories.ErrConflict) {
		return models.Playlist{}, apperr.E(apperr.Conflict, op, "video already present in playlist")
	}
	return playlist, storeErr(op, err, "playlist not found")
}

// RemoveVideo drops videoID from the playlist. Owner only.
func (s *Playlists) RemoveVideo(ctx context.Context, actorID, playlistID, videoID string) (models.Playlist, error) {
	const op = "playlists.remove_video"
	if err := s.checkMembershipChange(ctx, op, actorID, playlistID, videoID); err != nil {
		return models.Playlist{}, err
	}
	playlist, err := s.playlists.RemoveVideo(ctx, playlistID, videoID)
	if errors.Is(err, repositories.ErrNotMember) {
		return models.Playlist{}, apperr.E(apperr.NotFound, op, "video not present in playlist")
	}
	return playlist, storeErr(op, err, "playlist not found")
}

func (s *Playlists) checkMembershipChange(ctx context.Context, op, actorID, playlistID, videoID string) error {
	if err := requireActor(op, actorID); err != nil {
		return err
	}
	if err := validation.ID(op, "video id", videoID); err != nil {
		return err
	}
	_, err := s.guard.Load(ctx, models.CollectionPlaylists, playlistID, actorID)
	return err
}
