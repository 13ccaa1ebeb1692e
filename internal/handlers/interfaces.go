package handlers

import (
	"context"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/paginate"
	"github.com/vidtube/backend/internal/relations"
	"github.com/vidtube/backend/internal/service"
	"github.com/vidtube/backend/internal/views"
)

// UserService captures the account operations required by the user handlers.
type UserService interface {
	Register(ctx context.Context, in service.RegisterInput) (models.PublicUser, error)
	Login(ctx context.Context, in service.LoginInput) (service.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Logout(ctx context.Context, actorID string) error
	ChangePassword(ctx context.Context, actorID string, in service.PasswordChange) error
	Current(ctx context.Context, actorID string) (models.PublicUser, error)
	UpdateAccount(ctx context.Context, actorID string, in service.AccountUpdate) (models.PublicUser, error)
	UpdateAvatar(ctx context.Context, actorID, path string) (models.PublicUser, error)
	UpdateCover(ctx context.Context, actorID, path string) (models.PublicUser, error)
	Channel(ctx context.Context, username, actorID string) (models.ChannelProfile, error)
	History(ctx context.Context, actorID string) ([]models.VideoCard, error)
}

// VideoService captures uploads and video pages.
type VideoService interface {
	Feed(ctx context.Context, q views.FeedQuery, req paginate.Request) (paginate.Page[models.VideoCard], error)
	Publish(ctx context.Context, actorID string, in service.PublishInput) (models.Video, error)
	Get(ctx context.Context, videoID, actorID string) (models.VideoDetail, error)
	Update(ctx context.Context, actorID, videoID string, in service.VideoUpdate) (models.Video, error)
	Delete(ctx context.Context, actorID, videoID string) (models.Video, error)
	TogglePublish(ctx context.Context, actorID, videoID string) (models.Video, error)
}

// CommentService captures comments on videos.
type CommentService interface {
	List(ctx context.Context, videoID, actorID string, req paginate.Request) (paginate.Page[models.PostView], error)
	Add(ctx context.Context, actorID, videoID string, in service.ContentInput) (models.Comment, error)
	Update(ctx context.Context, actorID, commentID string, in service.ContentInput) (models.Comment, error)
	Delete(ctx context.Context, actorID, commentID string) (models.Comment, error)
}

// TweetService captures short text posts.
type TweetService interface {
	Create(ctx context.Context, actorID string, in service.ContentInput) (models.Tweet, error)
	ListByUser(ctx context.Context, userID, actorID string, req paginate.Request) (paginate.Page[models.PostView], error)
	Update(ctx context.Context, actorID, tweetID string, in service.ContentInput) (models.Tweet, error)
	Delete(ctx context.Context, actorID, tweetID string) (models.Tweet, error)
}

// LikeService toggles likes.
type LikeService interface {
	ToggleVideo(ctx context.Context, actorID, videoID string) (relations.Result, error)
	ToggleComment(ctx context.Context, actorID, commentID string) (relations.Result, error)
	ToggleTweet(ctx context.Context, actorID, tweetID string) (relations.Result, error)
	LikedVideos(ctx context.Context, actorID string, req paginate.Request) (paginate.Page[models.LikedVideo], error)
}

// SubscriptionService toggles and lists subscriptions.
type SubscriptionService interface {
	Toggle(ctx context.Context, actorID, channelID string) (relations.Result, error)
	Subscribers(ctx context.Context, channelID string, req paginate.Request) (paginate.Page[models.SubscriberEntry], error)
	SubscribedTo(ctx context.Context, subscriberID string, req paginate.Request) (paginate.Page[models.SubscriptionEntry], error)
}

// PlaylistService manages playlists.
type PlaylistService interface {
	Create(ctx context.Context, actorID string, in service.PlaylistInput) (models.Playlist, error)
	Get(ctx context.Context, playlistID string) (models.PlaylistDetail, error)
	ListByUser(ctx context.Context, userID string) ([]models.PlaylistSummary, error)
	Update(ctx context.Context, actorID, playlistID string, in service.PlaylistInput) (models.Playlist, error)
	Delete(ctx context.Context, actorID, playlistID string) (models.Playlist, error)
	AddVideo(ctx context.Context, actorID, playlistID, videoID string) (models.Playlist, error)
	RemoveVideo(ctx context.Context, actorID, playlistID, videoID string) (models.Playlist, error)
}

// DashboardService reports on the caller's channel.
type DashboardService interface {
	Stats(ctx context.Context, actorID string) (models.ChannelStats, error)
	Videos(ctx context.Context, actorID string) ([]models.ChannelVideo, error)
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

var (
	_ UserService         = (*service.Users)(nil)
	_ VideoService        = (*service.Videos)(nil)
	_ CommentService      = (*service.Comments)(nil)
	_ TweetService        = (*service.Tweets)(nil)
	_ LikeService         = (*service.Likes)(nil)
	_ SubscriptionService = (*service.Subscriptions)(nil)
	_ PlaylistService     = (*service.Playlists)(nil)
	_ DashboardService    = (*service.Dashboard)(nil)
)
