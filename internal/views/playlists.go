package views

import (
	"context"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pipeline"
)

// playlistVideos joins the published members of a playlist in playlist order.
func playlistVideos(fields ...string) pipeline.Join {
	return pipeline.Join{
		From: models.CollectionVideos, LocalKey: "videos", ForeignKey: "_id", As: "videos",
		Pipeline: []pipeline.Stage{published(), pipeline.Project{Fields: fields}},
	}
}

// PlaylistDetail composes a playlist with its published videos and owner. A playlist whose
// videos are all unpublished is returned with an empty list and zero totals.
func (c *Composer) PlaylistDetail(ctx context.Context, playlistID string) (models.PlaylistDetail, error) {
	b := from(models.CollectionPlaylists).
		Filter(pipeline.Eq{Field: "_id", Value: playlistID}).
		Join(playlistVideos("_id", "title", "description", "duration", "views", "thumbnail.url", "videoFile.url", "owner", "createdAt")).
		Join(ownerSummary("owner", "owner")).
		Compute("totalVideos", pipeline.Count{Path: "videos"}).
		Compute("totalViews", pipeline.Sum{Path: "videos.views"}).
		Compute("owner", pipeline.First{Path: "owner"}).
		Project("_id", "name", "description", "createdAt", "updatedAt", "totalVideos", "totalViews", "owner", "videos")

	var out models.PlaylistDetail
	if err := c.one(ctx, "playlist_detail", b, &out, "playlist not found"); err != nil {
		return out, err
	}
	if out.Videos == nil {
		out.Videos = []models.PlaylistVideo{}
	}
	return out, nil
}

// UserPlaylists lists the playlists of userID, most recently updated first.
func (c *Composer) UserPlaylists(ctx context.Context, userID string) ([]models.PlaylistSummary, error) {
	b := from(models.CollectionPlaylists).
		Filter(pipeline.Eq{Field: "owner", Value: userID}).
		Join(playlistVideos("views")).
		Compute("totalVideos", pipeline.Count{Path: "videos"}).
		Compute("totalViews", pipeline.Sum{Path: "videos.views"}).
		Sort(pipeline.Desc("updatedAt")).
		Project("_id", "name", "description", "totalVideos", "totalViews", "updatedAt")

	return list[models.PlaylistSummary](ctx, c, "user_playlists", b)
}
