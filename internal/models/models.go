package models

import (
	"time"

	json "github.com/goccy/go-json"

	"github.com/vidtube/backend/internal/docstore"
)

// Time is a timestamp stored in the fixed-width layout both stores sort lexically.
type Time struct {
	time.Time
}

// Now returns the current time truncated to the stored precision.
func Now() Time {
	return Time{time.Now().UTC().Truncate(time.Microsecond)}
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(docstore.FormatTime(t.Time))
}

func (t *Time) UnmarshalJSON(raw []byte) error {
	if string(raw) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

// Asset references a stored binary.
type Asset struct {
	URL     string `json:"url"`
	AssetID string `json:"assetId"`
}

// User represents an account within the VidTube platform.
type User struct {
	ID                    string   `json:"_id"`
	Username              string   `json:"username"`
	Email                 string   `json:"email"`
	FullName              string   `json:"fullName"`
	Avatar                Asset    `json:"avatar"`
	CoverImage            *Asset   `json:"coverImage,omitempty"`
	Password              string   `json:"password"`
	RefreshToken          string   `json:"refreshToken,omitempty"`
	RefreshTokenExpiresAt Time     `json:"refreshTokenExpiresAt"`
	WatchHistory          []string `json:"watchHistory"`
	CreatedAt             Time     `json:"createdAt"`
	UpdatedAt             Time     `json:"updatedAt"`
}

// Public strips credentials from the user.
func (u User) Public() PublicUser {
	p := PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Avatar:    &AssetURL{URL: u.Avatar.URL},
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.CoverImage != nil {
		p.CoverImage = &AssetURL{URL: u.CoverImage.URL}
	}
	return p
}

// Video is an uploaded video owned by a channel.
type Video struct {
	ID          string  `json:"_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	VideoFile   Asset   `json:"videoFile"`
	Thumbnail   Asset   `json:"thumbnail"`
	Views       int64   `json:"views"`
	IsPublished bool    `json:"isPublished"`
	Owner       string  `json:"owner"`
	CreatedAt   Time    `json:"createdAt"`
	UpdatedAt   Time    `json:"updatedAt"`
}

func (v Video) OwnerID() string { return v.Owner }

// Comment is scoped to one video.
type Comment struct {
	ID        string `json:"_id"`
	Content   string `json:"content"`
	Video     string `json:"video"`
	Owner     string `json:"owner"`
	CreatedAt Time   `json:"createdAt"`
	UpdatedAt Time   `json:"updatedAt"`
}

func (c Comment) OwnerID() string { return c.Owner }

// Tweet is a short text post.
type Tweet struct {
	ID        string `json:"_id"`
	Content   string `json:"content"`
	Owner     string `json:"owner"`
	CreatedAt Time   `json:"createdAt"`
	UpdatedAt Time   `json:"updatedAt"`
}

func (t Tweet) OwnerID() string { return t.Owner }

// Playlist holds an ordered set of video ids.
type Playlist struct {
	ID          string   `json:"_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Owner       string   `json:"owner"`
	Videos      []string `json:"videos"`
	CreatedAt   Time     `json:"createdAt"`
	UpdatedAt   Time     `json:"updatedAt"`
}

func (p Playlist) OwnerID() string { return p.Owner }

// Like links a user to exactly one video, comment or tweet. The target id is also stored
// under the kind-specific field.
type Like struct {
	ID         string `json:"_id"`
	LikedBy    string `json:"likedBy"`
	TargetKind string `json:"targetKind"`
	Target     string `json:"target"`
	Video      string `json:"video,omitempty"`
	Comment    string `json:"comment,omitempty"`
	Tweet      string `json:"tweet,omitempty"`
	CreatedAt  Time   `json:"createdAt"`
}

// Subscription links a subscriber to a channel.
type Subscription struct {
	ID         string `json:"_id"`
	Subscriber string `json:"subscriber"`
	Channel    string `json:"channel"`
	CreatedAt  Time   `json:"createdAt"`
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
