package models

// The types below are the denormalized shapes returned by view compositions. Field tags match
// the projected document keys.

// AssetURL is the public part of an asset reference.
type AssetURL struct {
	URL string `json:"url"`
}

// PublicUser is a user without credentials.
type PublicUser struct {
	ID         string    `json:"_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     *AssetURL `json:"avatar"`
	CoverImage *AssetURL `json:"coverImage,omitempty"`
	CreatedAt  Time      `json:"createdAt"`
	UpdatedAt  Time      `json:"updatedAt"`
}

// OwnerSummary identifies the author of a piece of content.
type OwnerSummary struct {
	ID       string    `json:"_id"`
	Username string    `json:"username"`
	FullName string    `json:"fullName"`
	Avatar   *AssetURL `json:"avatar"`
}

// VideoCard is one entry of the video feed.
type VideoCard struct {
	ID           string        `json:"_id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Duration     float64       `json:"duration"`
	VideoFile    *AssetURL     `json:"videoFile"`
	Thumbnail    *AssetURL     `json:"thumbnail"`
	Views        int64         `json:"views"`
	IsPublished  bool          `json:"isPublished"`
	CreatedAt    Time          `json:"createdAt"`
	OwnerDetails *OwnerSummary `json:"ownerDetails"`
}

// ChannelSummary is a video owner with subscription state relative to the viewer.
type ChannelSummary struct {
	ID               string    `json:"_id"`
	Username         string    `json:"username"`
	FullName         string    `json:"fullName"`
	Avatar           *AssetURL `json:"avatar"`
	SubscribersCount int64     `json:"subscribersCount"`
	IsSubscribed     bool      `json:"isSubscribed"`
}

// VideoDetail is the single-video page.
type VideoDetail struct {
	ID            string          `json:"_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Duration      float64         `json:"duration"`
	VideoFile     *AssetURL       `json:"videoFile"`
	Thumbnail     *AssetURL       `json:"thumbnail"`
	Views         int64           `json:"views"`
	IsPublished   bool            `json:"isPublished"`
	CreatedAt     Time            `json:"createdAt"`
	Owner         *ChannelSummary `json:"owner"`
	LikesCount    int64           `json:"likesCount"`
	CommentsCount int64           `json:"commentsCount"`
	IsLiked       bool            `json:"isLiked"`
}

// PostView is a comment or tweet with its author and like state.
type PostView struct {
	ID         string        `json:"_id"`
	Content    string        `json:"content"`
	CreatedAt  Time          `json:"createdAt"`
	UpdatedAt  Time          `json:"updatedAt"`
	Owner      *OwnerSummary `json:"owner"`
	LikesCount int64         `json:"likesCount"`
	IsLiked    bool          `json:"isLiked"`
}

// ChannelProfile is the public channel page.
type ChannelProfile struct {
	ID                        string    `json:"_id"`
	Username                  string    `json:"username"`
	FullName                  string    `json:"fullName"`
	Email                     string    `json:"email"`
	Avatar                    *AssetURL `json:"avatar"`
	CoverImage                *AssetURL `json:"coverImage"`
	SubscribersCount          int64     `json:"subscribersCount"`
	ChannelsSubscribedToCount int64     `json:"channelsSubscribedToCount"`
	VideosCount               int64     `json:"videosCount"`
	IsSubscribed              bool      `json:"isSubscribed"`
}

// PlaylistVideo is a published member of a playlist.
type PlaylistVideo struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	Thumbnail   *AssetURL `json:"thumbnail"`
	VideoFile   *AssetURL `json:"videoFile"`
	Owner       string    `json:"owner"`
	CreatedAt   Time      `json:"createdAt"`
}

// PlaylistDetail is a playlist with its published videos and totals.
type PlaylistDetail struct {
	ID          string          `json:"_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	CreatedAt   Time            `json:"createdAt"`
	UpdatedAt   Time            `json:"updatedAt"`
	TotalVideos int64           `json:"totalVideos"`
	TotalViews  int64           `json:"totalViews"`
	Owner       *OwnerSummary   `json:"owner"`
	Videos      []PlaylistVideo `json:"videos"`
}

// PlaylistSummary is one entry of a user's playlist list.
type PlaylistSummary struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TotalVideos int64  `json:"totalVideos"`
	TotalViews  int64  `json:"totalViews"`
	UpdatedAt   Time   `json:"updatedAt"`
}

// LatestVideo is the newest published video of a channel.
type LatestVideo struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	Thumbnail *AssetURL `json:"thumbnail"`
	Duration  float64   `json:"duration"`
	Views     int64     `json:"views"`
	CreatedAt Time      `json:"createdAt"`
}

// RelatedUser is the counterpart of a subscription listing. SubscribedBack reports the
// reciprocal subscription.
type RelatedUser struct {
	ID               string       `json:"_id"`
	Username         string       `json:"username"`
	FullName         string       `json:"fullName"`
	Avatar           *AssetURL    `json:"avatar"`
	SubscribersCount int64        `json:"subscribersCount"`
	SubscribedBack   bool         `json:"subscribedBack"`
	LatestVideo      *LatestVideo `json:"latestVideo,omitempty"`
}

// SubscriberEntry is one subscriber of a channel.
type SubscriberEntry struct {
	ID           string      `json:"_id"`
	SubscribedAt Time        `json:"createdAt"`
	Subscriber   RelatedUser `json:"subscriber"`
}

// SubscriptionEntry is one channel a user subscribes to.
type SubscriptionEntry struct {
	ID           string      `json:"_id"`
	SubscribedAt Time        `json:"createdAt"`
	Channel      RelatedUser `json:"channel"`
}

// LikedVideo is a video the user liked, newest like first.
type LikedVideo struct {
	LikedAt Time      `json:"createdAt"`
	Video   VideoCard `json:"likedVideo"`
}

// ChannelStats aggregates a channel's totals.
type ChannelStats struct {
	TotalSubscribers int64 `json:"totalSubscribers"`
	TotalVideos      int64 `json:"totalVideos"`
	TotalViews       int64 `json:"totalViews"`
	TotalLikes       int64 `json:"totalLikes"`
}

// ChannelVideo is one of the owner's own videos, published or not.
type ChannelVideo struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	VideoFile   *AssetURL `json:"videoFile"`
	Thumbnail   *AssetURL `json:"thumbnail"`
	IsPublished bool      `json:"isPublished"`
	Views       int64     `json:"views"`
	LikesCount  int64     `json:"likesCount"`
	CreatedAt   Time      `json:"createdAt"`
}
