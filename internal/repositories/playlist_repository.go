package repositories

import (
	"context"

	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pipeline"
)

// PlaylistRepository stores playlists and their ordered video ids.
type PlaylistRepository struct {
	Collection[models.Playlist]
}

// NewPlaylistRepository constructs a playlist repository over store.
func NewPlaylistRepository(store docstore.Store) *PlaylistRepository {
	return &PlaylistRepository{newCollection[models.Playlist](store, models.CollectionPlaylists)}
}

// AddVideo appends videoID when the playlist does not hold it yet. The membership test and
// the append are one conditional update, so two concurrent adds cannot both succeed.
// It returns ErrConflict when the video is already present.
func (r *PlaylistRepository) AddVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error) {
	n, err := r.store.UpdateMany(ctx, r.name,
		pipeline.And{
			pipeline.Eq{Field: pipeline.IDField, Value: playlistID},
			pipeline.Not{Pred: pipeline.Has{Path: "videos", Value: videoID}},
		},
		docstore.Patch{
			AddToSet: map[string]any{"videos": videoID},
			Set:      map[string]any{"updatedAt": models.Now()},
		})
	if err != nil {
		return models.Playlist{}, translate("add playlist video", err)
	}
	playlist, err := r.Get(ctx, playlistID)
	if err != nil {
		return models.Playlist{}, err
	}
	if n == 0 {
		return playlist, ErrConflict
	}
	return playlist, nil
}

// RemoveVideo drops videoID from the playlist. It returns ErrNotMember when the video is
// not in the playlist.
func (r *PlaylistRepository) RemoveVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error) {
	n, err := r.store.UpdateMany(ctx, r.name,
		pipeline.And{
			pipeline.Eq{Field: pipeline.IDField, Value: playlistID},
			pipeline.Has{Path: "videos", Value: videoID},
		},
		docstore.Patch{
			Pull: map[string]any{"videos": videoID},
			Set:  map[string]any{"updatedAt": models.Now()},
		})
	if err != nil {
		return models.Playlist{}, translate("remove playlist video", err)
	}
	playlist, err := r.Get(ctx, playlistID)
	if err != nil {
		return models.Playlist{}, err
	}
	if n == 0 {
		return playlist, ErrNotMember
	}
	return playlist, nil
}
