package views

import (
	"context"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/paginate"
	"github.com/vidtube/backend/internal/pipeline"
)

// posts composes the shared comment/tweet shape for rows selected by filter.
func posts(collection, kind string, filter pipeline.Predicate, actorID string) *pipeline.Builder {
	return from(collection).
		Filter(filter).
		Join(likesOf(kind, "likes")).
		Join(ownerSummary("owner", "owner")).
		Compute("likesCount", pipeline.Count{Path: "likes"}).
		Compute("isLiked", pipeline.Flag("likes.likedBy", actorID)).
		Compute("owner", pipeline.First{Path: "owner"}).
		Sort(pipeline.Desc("createdAt")).
		Project("_id", "content", "createdAt", "updatedAt", "owner", "likesCount", "isLiked")
}

// VideoComments pages through the comments of videoID, newest first.
func (c *Composer) VideoComments(ctx context.Context, videoID, actorID string, req paginate.Request) (paginate.Page[models.PostView], error) {
	b := posts(models.CollectionComments, models.TargetComment, pipeline.Eq{Field: "video", Value: videoID}, actorID)
	return page[models.PostView](ctx, c, "video_comments", b, req)
}

// UserTweets pages through the tweets of userID, newest first.
func (c *Composer) UserTweets(ctx context.Context, userID, actorID string, req paginate.Request) (paginate.Page[models.PostView], error) {
	b := posts(models.CollectionTweets, models.TargetTweet, pipeline.Eq{Field: "owner", Value: userID}, actorID)
	return page[models.PostView](ctx, c, "user_tweets", b, req)
}
