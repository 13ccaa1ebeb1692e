package service

import (
	"context"
	"log/slog"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/assets"
	"github.com/vidtube/backend/internal/cascade"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/ownership"
	"github.com/vidtube/backend/internal/paginate"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/validation"
	"github.com/vidtube/backend/internal/views"
)

// PublishInput describes a new upload. VideoFile and Thumbnail are local file paths.
type PublishInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=5000"`
	VideoFile   string `json:"videoFile" validate:"required"`
	Thumbnail   string `json:"thumbnail" validate:"required"`
	Published   bool   `json:"isPublished"`
}

// VideoUpdate changes the details of a video. An empty Thumbnail keeps the current one.
type VideoUpdate struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=5000"`
	Thumbnail   string `json:"thumbnail"`
}

// Videos manages uploads and video pages.
type Videos struct {
	videos  *repositories.VideoRepository
	users   *repositories.UserRepository
	views   *views.Composer
	guard   *ownership.Guard
	cascade *cascade.Coordinator
	assets  assets.Store
	janitor AssetJanitor
	prober  DurationProber
}

// NewVideos constructs the video service.
func NewVideos(d Deps) *Videos {
	return &Videos{
		videos:  repositories.NewVideoRepository(d.Store),
		users:   repositories.NewUserRepository(d.Store),
		views:   views.NewComposer(d.Store),
		guard:   ownership.NewGuard(d.Store),
		cascade: cascade.NewCoordinator(d.Store, d.Assets),
		assets:  d.Assets,
		janitor: d.Janitor,
		prober:  d.Prober,
	}
}

// Feed lists published videos.
func (s *Videos) Feed(ctx context.Context, q views.FeedQuery, req paginate.Request) (paginate.Page[models.VideoCard], error) {
	if q.OwnerID != "" {
		if err := validation.ID("videos.feed", "user id", q.OwnerID); err != nil {
			return paginate.Page[models.VideoCard]{}, err
		}
	}
	return s.views.VideoFeed(ctx, q, req)
}

// Publish uploads a video and its thumbnail and stores the record. The duration is probed
// from the local file; a failed probe leaves it at zero.
func (s *Videos) Publish(ctx context.Context, actorID string, in PublishInput) (models.Video, error) {
	const op = "videos.publish"
	if err := requireActor(op, actorID); err != nil {
		return models.Video{}, err
	}
	in.Title, in.Description = clean(in.Title), clean(in.Description)
	if err := validation.Struct(op, in); err != nil {
		return models.Video{}, err
	}

	var duration float64
	if s.prober != nil {
		d, err := s.prober.Duration(ctx, in.VideoFile)
		if err != nil {
			logging.FromContext(ctx).Warn("video duration probe failed", slog.Any("error", err))
		} else {
			duration = d
		}
	}

	var videoFile, thumbnail models.Asset
	if err := uploadAll(ctx, op, s.assets, s.janitor,
		upload{field: "video file", path: in.VideoFile, dst: &videoFile},
		upload{field: "thumbnail", path: in.Thumbnail, dst: &thumbnail},
	); err != nil {
		return models.Video{}, err
	}

	now := models.Now()
	video := models.Video{
		ID:          validation.NewID(),
		Title:       in.Title,
		Description: in.Description,
		Duration:    duration,
		VideoFile:   videoFile,
		Thumbnail:   thumbnail,
		IsPublished: in.Published,
		Owner:       actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.videos.Insert(ctx, video); err != nil {
		discard(ctx, s.janitor, videoFile.AssetID)
		discard(ctx, s.janitor, thumbnail.AssetID)
		return models.Video{}, storeErr(op, err, "")
	}
	return video, nil
}

// Get composes the video page. When an actor is present the view is counted and the video
// joins their watch history once the page has been composed; failures there are only logged.
func (s *Videos) Get(ctx context.Context, videoID, actorID string) (models.VideoDetail, error) {
	const op = "videos.get"
	if err := validation.ID(op, "video id", videoID); err != nil {
		return models.VideoDetail{}, err
	}
	detail, err := s.views.VideoDetail(ctx, videoID, actorID)
	if err != nil || actorID == "" {
		return detail, err
	}

	logger := logging.FromContext(ctx)
	if err := s.videos.IncrementViews(ctx, videoID); err != nil {
		logger.Warn("view count not updated", slog.String("videoId", videoID), slog.Any("error", err))
	}
	if err := s.users.AddToHistory(ctx, actorID, videoID); err != nil {
		logger.Warn("watch history not updated", slog.String("videoId", videoID), slog.Any("error", err))
	}
	return detail, nil
}

// Update changes title and description and optionally the thumbnail. Owner only.
func (s *Videos) Update(ctx context.Context, actorID, videoID string, in VideoUpdate) (models.Video, error) {
	const op = "videos.update"
	if err := requireActor(op, actorID); err != nil {
		return models.Video{}, err
	}
	in.Title, in.Description = clean(in.Title), clean(in.Description)
	if err := validation.Struct(op, in); err != nil {
		return models.Video{}, err
	}
	doc, err := s.guard.Load(ctx, models.CollectionVideos, videoID, actorID)
	if err != nil {
		return models.Video{}, err
	}

	set := map[string]any{"title": in.Title, "description": in.Description, "updatedAt": models.Now()}
	var thumbnail models.Asset
	if in.Thumbnail != "" {
		if err := uploadAll(ctx, op, s.assets, s.janitor, upload{field: "thumbnail", path: in.Thumbnail, dst: &thumbnail}); err != nil {
			return models.Video{}, err
		}
		set["thumbnail"] = thumbnail
	}

	video, err := s.videos.Update(ctx, videoID, docstore.Patch{Set: set})
	if err != nil {
		discard(ctx, s.janitor, thumbnail.AssetID)
		return models.Video{}, storeErr(op, err, "video not found")
	}
	if thumbnail.AssetID != "" {
		var previous models.Video
		if err := docstore.Decode(doc, &previous); err == nil {
			discard(ctx, s.janitor, previous.Thumbnail.AssetID)
		}
	}
	return video, nil
}

// Delete removes a video and everything that hangs off it. Owner only.
func (s *Videos) Delete(ctx context.Context, actorID, videoID string) (models.Video, error) {
	const op = "videos.delete"
	if err := requireActor(op, actorID); err != nil {
		return models.Video{}, err
	}
	if _, err := s.guard.Load(ctx, models.CollectionVideos, videoID, actorID); err != nil {
		return models.Video{}, err
	}
	root, err := s.cascade.Delete(ctx, cascade.KindVideo, videoID)
	return decodeRoot[models.Video](op, root, err)
}

// TogglePublish flips the published flag. Owner only.
func (s *Videos) TogglePublish(ctx context.Context, actorID, videoID string) (models.Video, error) {
	const op = "videos.toggle_publish"
	if err := requireActor(op, actorID); err != nil {
		return models.Video{}, err
	}
	doc, err := s.guard.Load(ctx, models.CollectionVideos, videoID, actorID)
	if err != nil {
		return models.Video{}, err
	}
	published, _ := doc["isPublished"].(bool)
	video, err := s.videos.Update(ctx, videoID, docstore.Patch{Set: map[string]any{"isPublished": !published, "updatedAt": models.Now()}})
	if err != nil {
		return models.Video{}, storeErr(op, err, "video not found")
	}
	return video, nil
}

// decodeRoot decodes the root removed by a cascade. The cascade error, if any, is kept: the
// root is gone either way.
func decodeRoot[T any](op string, root docstore.Document, cascadeErr error) (T, error) {
	var out T
	if root == nil {
		return out, cascadeErr
	}
	if err := docstore.Decode(root, &out); err != nil {
		return out, apperr.Wrap(apperr.Internal, op, err)
	}
	return out, cascadeErr
}
