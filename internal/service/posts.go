package service

import (
	"context"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/cascade"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/ownership"
	"github.com/vidtube/backend/internal/paginate"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/validation"
	"github.com/vidtube/backend/internal/views"
)

// ContentInput is the body of a comment or tweet.
type ContentInput struct {
	Content string `json:"content" validate:"required,max=1000"`
}

func (in ContentInput) validate(op string) (string, error) {
	in.Content = clean(in.Content)
	if err := validation.Struct(op, in); err != nil {
		return "", err
	}
	return in.Content, nil
}

// Comments manages comments on videos.
type Comments struct {
	comments *repositories.CommentRepository
	videos   *repositories.VideoRepository
	views    *views.Composer
	guard    *ownership.Guard
	cascade  *cascade.Coordinator
}

// NewComments constructs the comment service.
func NewComments(d Deps) *Comments {
	return &Comments{
		comments: repositories.NewCommentRepository(d.Store),
		videos:   repositories.NewVideoRepository(d.Store),
		views:    views.NewComposer(d.Store),
		guard:    ownership.NewGuard(d.Store),
		cascade:  cascade.NewCoordinator(d.Store, d.Assets),
	}
}

func (s *Comments) requireVideo(ctx context.Context, op, videoID string) error {
	if err := validation.ID(op, "video id", videoID); err != nil {
		return err
	}
	ok, err := s.videos.Exists(ctx, videoID)
	if err != nil {
		return storeErr(op, err, "")
	}
	if !ok {
		return apperr.E(apperr.NotFound, op, "video not found")
	}
	return nil
}

// List pages through the comments of a video, newest first.
func (s *Comments) List(ctx context.Context, videoID, actorID string, req paginate.Request) (paginate.Page[models.PostView], error) {
	if err := s.requireVideo(ctx, "comments.list", videoID); err != nil {
		return paginate.Page[models.PostView]{}, err
	}
	return s.views.VideoComments(ctx, videoID, actorID, req)
}

// Add posts a comment on a video.
func (s *Comments) Add(ctx context.Context, actorID, videoID string, in ContentInput) (models.Comment, error) {
	const op = "comments.add"
	if err := requireActor(op, actorID); err != nil {
		return models.Comment{}, err
	}
	content, err := in.validate(op)
	if err != nil {
		return models.Comment{}, err
	}
	if err := s.requireVideo(ctx, op, videoID); err != nil {
		return models.Comment{}, err
	}
	now := models.Now()
	comment := models.Comment{ID: validation.NewID(), Content: content, Video: videoID, Owner: actorID, CreatedAt: now, UpdatedAt: now}
	if err := s.comments.Insert(ctx, comment); err != nil {
		return models.Comment{}, storeErr(op, err, "")
	}
	return comment, nil
}

// Update edits a comment. Owner only.
func (s *Comments) Update(ctx context.Context, actorID, commentID string, in ContentInput) (models.Comment, error) {
	const op = "comments.update"
	if err := requireActor(op, actorID); err != nil {
		return models.Comment{}, err
	}
	content, err := in.validate(op)
	if err != nil {
		return models.Comment{}, err
	}
	if _, err := s.guard.Load(ctx, models.CollectionComments, commentID, actorID); err != nil {
		return models.Comment{}, err
	}
	comment, err := s.comments.Update(ctx, commentID, docstore.Patch{Set: map[string]any{"content": content, "updatedAt": models.Now()}})
	return comment, storeErr(op, err, "comment not found")
}

// Delete removes a comment and its likes. Owner only.
func (s *Comments) Delete(ctx context.Context, actorID, commentID string) (models.Comment, error) {
	const op = "comments.delete"
	if err := requireActor(op, actorID); err != nil {
		return models.Comment{}, err
	}
	if _, err := s.guard.Load(ctx, models.CollectionComments, commentID, actorID); err != nil {
		return models.Comment{}, err
	}
	root, err := s.cascade.Delete(ctx, cascade.KindComment, commentID)
	return decodeRoot[models.Comment](op, root, err)
}

// Tweets manages short text posts.
type Tweets struct {
	tweets  *repositories.TweetRepository
	users   *repositories.UserRepository
	views   *views.Composer
	guard   *ownership.Guard
	cascade *cascade.Coordinator
}

// NewTweets constructs the tweet service.
func NewTweets(d Deps) *Tweets {
	return &Tweets{
		tweets:  repositories.NewTweetRepository(d.Store),
		users:   repositories.NewUserRepository(d.Store),
		views:   views.NewComposer(d.Store),
		guard:   ownership.NewGuard(d.Store),
		cascade: cascade.NewCoordinator(d.Store, d.Assets),
	}
}

// Create posts a tweet.
func (s *Tweets) Create(ctx context.Context, actorID string, in ContentInput) (models.Tweet, error) {
	const op = "tweets.create"
	if err := requireActor(op, actorID); err != nil {
		return models.Tweet{}, err
	}
	content, err := in.validate(op)
	if err != nil {
		return models.Tweet{}, err
	}
	now := models.Now()
	tweet := models.Tweet{ID: validation.NewID(), Content: content, Owner: actorID, CreatedAt: now, UpdatedAt: now}
	if err := s.tweets.Insert(ctx, tweet); err != nil {
		return models.Tweet{}, storeErr(op, err, "")
	}
	return tweet, nil
}

// ListByUser pages through the tweets of userID, newest first.
func (s *Tweets) ListByUser(ctx context.Context, userID, actorID string, req paginate.Request) (paginate.Page[models.PostView], error) {
	const op = "tweets.list"
	if err := validation.ID(op, "user id", userID); err != nil {
		return paginate.Page[models.PostView]{}, err
	}
	ok, err := s.users.Exists(ctx, userID)
	if err != nil {
		return paginate.Page[models.PostView]{}, storeErr(op, err, "")
	}
	if !ok {
		return paginate.Page[models.PostView]{}, apperr.E(apperr.NotFound, op, "user does not exist")
	}
	return s.views.UserTweets(ctx, userID, actorID, req)
}

// Update edits a tweet. Owner only.
func (s *Tweets) Update(ctx context.Context, actorID, tweetID string, in ContentInput) (models.Tweet, error) {
	const op = "tweets.update"
	if err := requireActor(op, actorID); err != nil {
		return models.Tweet{}, err
	}
	content, err := in.validate(op)
	if err != nil {
		return models.Tweet{}, err
	}
	if _, err := s.guard.Load(ctx, models.CollectionTweets, tweetID, actorID); err != nil {
		return models.Tweet{}, err
	}
	tweet, err := s.tweets.Update(ctx, tweetID, docstore.Patch{Set: map[string]any{"content": content, "updatedAt": models.Now()}})
	return tweet, storeErr(op, err, "tweet not found")
}

// Delete removes a tweet and its likes. Owner only.
func (s *Tweets) Delete(ctx context.Context, actorID, tweetID string) (models.Tweet, error) {
	const op = "tweets.delete"
	if err := requireActor(op, actorID); err != nil {
		return models.Tweet{}, err
	}
	if _, err := s.guard.Load(ctx, models.CollectionTweets, tweetID, actorID); err != nil {
		return models.Tweet{}, err
	}
	root, err := s.cascade.Delete(ctx, cascade.KindTweet, tweetID)
	return decodeRoot[models.Tweet](op, root, err)
}
