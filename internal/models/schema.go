package models

import (
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/pipeline"
)

const (
	CollectionUsers         = "users"
	CollectionVideos        = "videos"
	CollectionComments      = "comments"
	CollectionTweets        = "tweets"
	CollectionPlaylists     = "playlists"
	CollectionLikes         = "likes"
	CollectionSubscriptions = "subscriptions"
)

// Like target kinds.
const (
	TargetVideo   = "video"
	TargetComment = "comment"
	TargetTweet   = "tweet"
)

// Schema lists the stored top-level fields of every collection.
var Schema = pipeline.Schema{
	CollectionUsers: {"_id", "username", "email", "fullName", "avatar", "coverImage", "password",
		"refreshToken", "refreshTokenExpiresAt", "watchHistory", "createdAt", "updatedAt"},
	CollectionVideos: {"_id", "title", "description", "duration", "videoFile", "thumbnail", "views",
		"isPublished", "owner", "createdAt", "updatedAt"},
	CollectionComments:      {"_id", "content", "video", "owner", "createdAt", "updatedAt"},
	CollectionTweets:        {"_id", "content", "owner", "createdAt", "updatedAt"},
	CollectionPlaylists:     {"_id", "name", "description", "owner", "videos", "createdAt", "updatedAt"},
	CollectionLikes:         {"_id", "likedBy", "targetKind", "target", "video", "comment", "tweet", "createdAt"},
	CollectionSubscriptions: {"_id", "subscriber", "channel", "createdAt"},
}

// Indexes are the unique constraints every store engine enforces.
var Indexes = []docstore.Index{
	{Collection: CollectionUsers, Fields: []string{"username"}},
	{Collection: CollectionUsers, Fields: []string{"email"}},
	{Collection: CollectionLikes, Fields: []string{"likedBy", "targetKind", "target"}},
	{Collection: CollectionSubscriptions, Fields: []string{"subscriber", "channel"}},
}

// Collections returns every collection name.
func Collections() []string {
	out := make([]string, 0, len(Schema))
	for name := range Schema {
		out = append(out, name)
	}
	return out
}
