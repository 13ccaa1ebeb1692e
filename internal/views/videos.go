package views

import (
	"context"
	"fmt"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/paginate"
	"github.com/vidtube/backend/internal/pipeline"
)

// Feed sort fields accepted from clients.
var feedSortFields = map[string]bool{
	"createdAt": true,
	"views":     true,
	"duration":  true,
	"title":     true,
}

// FeedQuery narrows and orders the public video feed.
type FeedQuery struct {
	OwnerID  string
	Query    string
	SortBy   string
	SortType string
}

func (q FeedQuery) sortKey() (pipeline.SortKey, error) {
	field := q.SortBy
	if field == "" {
		field = "createdAt"
	}
	if !feedSortFields[field] {
		return pipeline.SortKey{}, apperr.E(apperr.InvalidInput, "views.feed", fmt.Sprintf("cannot sort by %q", q.SortBy))
	}
	switch q.SortType {
	case "", "desc":
		return pipeline.Desc(field), nil
	case "asc":
		return pipeline.Asc(field), nil
	default:
		return pipeline.SortKey{}, apperr.E(apperr.InvalidInput, "views.feed", "sortType must be asc or desc")
	}
}

var cardFields = []string{"_id", "title", "description", "duration", "videoFile.url", "thumbnail.url",
	"views", "isPublished", "createdAt", "ownerDetails"}

type feedRow struct {
	models.VideoCard
	OwnerMatches int `json:"ownerMatches"`
}

// VideoFeed lists published videos. Every row must resolve to exactly one owner; anything
// else is reported as a data-integrity fault instead of being dropped.
func (c *Composer) VideoFeed(ctx context.Context, q FeedQuery, req paginate.Request) (paginate.Page[models.VideoCard], error) {
	key, err := q.sortKey()
	if err != nil {
		return paginate.Page[models.VideoCard]{}, err
	}

	filter := pipeline.And{pipeline.Eq{Field: "isPublished", Value: true}}
	if q.OwnerID != "" {
		filter = append(filter, pipeline.Eq{Field: "owner", Value: q.OwnerID})
	}
	if q.Query != "" {
		filter = append(filter, pipeline.Search{Fields: []string{"title", "description"}, Text: q.Query})
	}

	b := from(models.CollectionVideos).
		Filter(filter).
		Sort(key).
		Join(ownerSummary("owner", "ownerDetails")).
		Compute("ownerMatches", pipeline.Count{Path: "ownerDetails"}).
		Compute("ownerDetails", pipeline.First{Path: "ownerDetails"}).
		Project(append(cardFields, "ownerMatches")...)

	rows, err := page[feedRow](ctx, c, "video_feed", b, req)
	if err != nil {
		return paginate.Page[models.VideoCard]{}, err
	}

	items := make([]models.VideoCard, 0, len(rows.Items))
	for _, r := range rows.Items {
		if r.OwnerMatches != 1 {
			return paginate.Page[models.VideoCard]{}, apperr.E(apperr.DependencyFailure, "views.video_feed",
				fmt.Sprintf("video %s resolved to %d owners", r.ID, r.OwnerMatches))
		}
		items = append(items, r.VideoCard)
	}
	return paginate.NewPage(items, req, rows.TotalItems), nil
}

// VideoDetail composes one video with like, comment and subscription state relative to actorID.
// Unpublished videos are visible to their owner only.
func (c *Composer) VideoDetail(ctx context.Context, videoID, actorID string) (models.VideoDetail, error) {
	b := from(models.CollectionVideos).
		Filter(pipeline.And{
			pipeline.Eq{Field: "_id", Value: videoID},
			pipeline.Or{pipeline.Eq{Field: "isPublished", Value: true}, pipeline.Eq{Field: "owner", Value: actorID}},
		}).
		Join(likesOf(models.TargetVideo, "likes")).
		Join(pipeline.Join{
			From: models.CollectionComments, LocalKey: "_id", ForeignKey: "video", As: "comments",
			Pipeline: []pipeline.Stage{pipeline.Project{Fields: []string{"_id"}}},
		}).
		Join(pipeline.Join{
			From: models.CollectionUsers, LocalKey: "owner", ForeignKey: "_id", As: "owner",
			Pipeline: []pipeline.Stage{
				pipeline.Join{
					From: models.CollectionSubscriptions, LocalKey: "_id", ForeignKey: "channel", As: "subscribers",
					Pipeline: []pipeline.Stage{pipeline.Project{Fields: []string{"subscriber"}}},
				},
				pipeline.Compute{Name: "subscribersCount", Expr: pipeline.Count{Path: "subscribers"}},
				pipeline.Compute{Name: "isSubscribed", Expr: pipeline.Flag("subscribers.subscriber", actorID)},
				pipeline.Project{Fields: append(ownerFields, "subscribersCount", "isSubscribed")},
			},
		}).
		Compute("likesCount", pipeline.Count{Path: "likes"}).
		Compute("commentsCount", pipeline.Count{Path: "comments"}).
		Compute("isLiked", pipeline.Flag("likes.likedBy", actorID)).
		Compute("owner", pipeline.First{Path: "owner"}).
		Project("_id", "title", "description", "duration", "videoFile.url", "thumbnail.url", "views",
			"isPublished", "createdAt", "owner", "likesCount", "commentsCount", "isLiked")

	var out models.VideoDetail
	err := c.one(ctx, "video_detail", b, &out, "video not found")
	return out, err
}

// videoCardJoin attaches a video card with its owner under as.
func videoCardJoin(localKey, as string, filter pipeline.Predicate) pipeline.Join {
	var stages []pipeline.Stage
	if filter != nil {
		stages = append(stages, pipeline.Filter{Pred: filter})
	}
	stages = append(stages,
		ownerSummary("owner", "ownerDetails"),
		pipeline.Compute{Name: "ownerDetails", Expr: pipeline.First{Path: "ownerDetails"}},
		pipeline.Project{Fields: cardFields},
	)
	return pipeline.Join{From: models.CollectionVideos, LocalKey: localKey, ForeignKey: "_id", As: as, Pipeline: stages}
}

// LikedVideos lists the videos actorID liked, newest like first. Unpublished videos only
// appear to their owner.
func (c *Composer) LikedVideos(ctx context.Context, actorID string, req paginate.Request) (paginate.Page[models.LikedVideo], error) {
	visible := pipeline.Or{pipeline.Eq{Field: "isPublished", Value: true}, pipeline.Eq{Field: "owner", Value: actorID}}
	b := from(models.CollectionLikes).
		Filter(pipeline.And{
			pipeline.Eq{Field: "likedBy", Value: actorID},
			pipeline.Eq{Field: "targetKind", Value: models.TargetVideo},
		}).
		Join(videoCardJoin("target", "likedVideo", visible)).
		Unwind("likedVideo").
		Sort(pipeline.Desc("createdAt")).
		Project("createdAt", "likedVideo")

	return page[models.LikedVideo](ctx, c, "liked_videos", b, req)
}

type historyRow struct {
	WatchHistory []models.VideoCard `json:"watchHistory"`
}

// WatchHistory lists the videos userID watched in the order they were first watched.
func (c *Composer) WatchHistory(ctx context.Context, userID string) ([]models.VideoCard, error) {
	b := from(models.CollectionUsers).
		Filter(pipeline.Eq{Field: "_id", Value: userID}).
		Join(videoCardJoin("watchHistory", "watchHistory", nil)).
		Project("watchHistory")

	var row historyRow
	if err := c.one(ctx, "watch_history", b, &row, "user not found"); err != nil {
		return nil, err
	}
	if row.WatchHistory == nil {
		row.WatchHistory = []models.VideoCard{}
	}
	return row.WatchHistory, nil
}

// ChannelStats totals subscribers, videos, views and likes for userID's channel.
func (c *Composer) ChannelStats(ctx context.Context, userID string) (models.ChannelStats, error) {
	b := from(models.CollectionUsers).
		Filter(pipeline.Eq{Field: "_id", Value: userID}).
		Join(pipeline.Join{
			From: models.CollectionSubscriptions, LocalKey: "_id", ForeignKey: "channel", As: "subscribers",
			Pipeline: []pipeline.Stage{pipeline.Project{Fields: []string{"_id"}}},
		}).
		Join(pipeline.Join{
			From: models.CollectionVideos, LocalKey: "_id", ForeignKey: "owner", As: "videos",
			Pipeline: []pipeline.Stage{
				likesOf(models.TargetVideo, "likes"),
				pipeline.Compute{Name: "likesCount", Expr: pipeline.Count{Path: "likes"}},
				pipeline.Project{Fields: []string{"_id", "views", "likesCount"}},
			},
		}).
		Compute("totalSubscribers", pipeline.Count{Path: "subscribers"}).
		Compute("totalVideos", pipeline.Count{Path: "videos"}).
		Compute("totalViews", pipeline.Sum{Path: "videos.views"}).
		Compute("totalLikes", pipeline.Sum{Path: "videos.likesCount"}).
		Project("totalSubscribers", "totalVideos", "totalViews", "totalLikes")

	var out models.ChannelStats
	err := c.one(ctx, "channel_stats", b, &out, "channel not found")
	return out, err
}

// ChannelVideos lists every video userID owns, newest first, with like counts.
func (c *Composer) ChannelVideos(ctx context.Context, userID string) ([]models.ChannelVideo, error) {
	b := from(models.CollectionVideos).
		Filter(pipeline.Eq{Field: "owner", Value: userID}).
		Join(likesOf(models.TargetVideo, "likes")).
		Compute("likesCount", pipeline.Count{Path: "likes"}).
		Sort(pipeline.Desc("createdAt")).
		Project("_id", "title", "description", "videoFile.url", "thumbnail.url", "isPublished", "views", "likesCount", "createdAt")

	return list[models.ChannelVideo](ctx, c, "channel_videos", b)
}
