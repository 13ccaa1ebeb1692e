package service

import (
	"context"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/paginate"
	"github.com/vidtube/backend/internal/relations"
	"github.com/vidtube/backend/internal/validation"
	"github.com/vidtube/backend/internal/views"
)

// Likes toggles likes and lists liked videos.
type Likes struct {
	relations *relations.Manager
	views     *views.Composer
}

// NewLikes constructs the like service.
func NewLikes(d Deps) *Likes {
	return &Likes{relations: relations.NewManager(d.Store), views: views.NewComposer(d.Store)}
}

// ToggleVideo likes or unlikes a video.
func (s *Likes) ToggleVideo(ctx context.Context, actorID, videoID string) (relations.Result, error) {
	return s.toggle(ctx, actorID, videoID, relations.KindVideo)
}

// ToggleComment likes or unlikes a comment.
func (s *Likes) ToggleComment(ctx context.Context, actorID, commentID string) (relations.Result, error) {
	return s.toggle(ctx, actorID, commentID, relations.KindComment)
}

// ToggleTweet likes or unlikes a tweet.
func (s *Likes) ToggleTweet(ctx context.Context, actorID, tweetID string) (relations.Result, error) {
	return s.toggle(ctx, actorID, tweetID, relations.KindTweet)
}

func (s *Likes) toggle(ctx context.Context, actorID, targetID string, kind relations.Kind) (relations.Result, error) {
	if err := requireActor("likes.toggle", actorID); err != nil {
		return relations.Result{}, err
	}
	return s.relations.Toggle(ctx, actorID, targetID, kind)
}

// LikedVideos pages through the videos actorID liked, newest like first.
func (s *Likes) LikedVideos(ctx context.Context, actorID string, req paginate.Request) (paginate.Page[models.LikedVideo], error) {
	if err := requireActor("likes.videos", actorID); err != nil {
		return paginate.Page[models.LikedVideo]{}, err
	}
	return s.views.LikedVideos(ctx, actorID, req)
}

// Subscriptions toggles and lists channel subscriptions.
type Subscriptions struct {
	relations *relations.Manager
	views     *views.Composer
}

// NewSubscriptions constructs the subscription service.
func NewSubscriptions(d Deps) *Subscriptions {
	return &Subscriptions{relations: relations.NewManager(d.Store), views: views.NewComposer(d.Store)}
}

// Toggle subscribes actorID to channelID, or unsubscribes when already subscribed.
func (s *Subscriptions) Toggle(ctx context.Context, actorID, channelID string) (relations.Result, error) {
	if err := requireActor("subscriptions.toggle", actorID); err != nil {
		return relations.Result{}, err
	}
	return s.relations.Toggle(ctx, actorID, channelID, relations.KindChannel)
}

// Subscribers pages through the subscribers of channelID.
func (s *Subscriptions) Subscribers(ctx context.Context, channelID string, req paginate.Request) (paginate.Page[models.SubscriberEntry], error) {
	if err := validation.ID("subscriptions.subscribers", "channel id", channelID); err != nil {
		return paginate.Page[models.SubscriberEntry]{}, err
	}
	return s.views.ChannelSubscribers(ctx, channelID, req)
}

// SubscribedTo pages through the channels subscriberID follows.
func (s *Subscriptions) SubscribedTo(ctx context.Context, subscriberID string, req paginate.Request) (paginate.Page[models.SubscriptionEntry], error) {
	if err := validation.ID("subscriptions.subscribed_to", "subscriber id", subscriberID); err != nil {
		return paginate.Page[models.SubscriptionEntry]{}, err
	}
	return s.views.SubscribedChannels(ctx, subscriberID, req)
}
