package repositories

import (
	"context"

	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
)

// VideoRepository stores uploaded videos.
type VideoRepository struct {
	Collection[models.Video]
}

// NewVideoRepository constructs a video repository over store.
func NewVideoRepository(store docstore.Store) *VideoRepository {
	return &VideoRepository{newCollection[models.Video](store, models.CollectionVideos)}
}

// IncrementViews atomically adds one view.
func (r *VideoRepository) IncrementViews(ctx context.Context, id string) error {
	_, err := r.Update(ctx, id, docstore.Patch{Inc: map[string]int64{"views": 1}})
	return err
}

// CommentRepository stores comments.
type CommentRepository struct {
	Collection[models.Comment]
}

// NewCommentRepository constructs a repository over the comments collection.
func NewCommentRepository(store docstore.Store) *CommentRepository {
	return &CommentRepository{newCollection[models.Comment](store, models.CollectionComments)}
}

// TweetRepository stores tweets.
type TweetRepository struct {
	Collection[models.Tweet]
}

// NewTweetRepository constructs a repository over the tweets collection.
func NewTweetRepository(store docstore.Store) *TweetRepository {
	return &TweetRepository{newCollection[models.Tweet](store, models.CollectionTweets)}
}
