// Package cascade removes the records that hang off a deleted root entity.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/assets"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pipeline"
)

// Kind is the type of a deletable root.
type Kind string

const (
	KindVideo    Kind = "video"
	KindComment  Kind = "comment"
	KindTweet    Kind = "tweet"
	KindPlaylist Kind = "playlist"
)

func (k Kind) collection() (string, error) {
	switch k {
	case KindVideo:
		return models.CollectionVideos, nil
	case KindComment:
		return models.CollectionComments, nil
	case KindTweet:
		return models.CollectionTweets, nil
	case KindPlaylist:
		return models.CollectionPlaylists, nil
	default:
		return "", fmt.Errorf("cascade: unknown kind %q", k)
	}
}

// Coordinator deletes roots and their dependents.
type Coordinator struct {
	store  docstore.Store
	assets assets.Store
}

// NewCoordinator constructs a coordinator. assetStore may be nil, in which case asset cleanup
// is skipped.
func NewCoordinator(store docstore.Store, assetStore assets.Store) *Coordinator {
	return &Coordinator{store: store, assets: assetStore}
}

type step struct {
	name string
	run  func(ctx context.Context) error
}

// Delete removes the root kind/id and then its dependents. The deleted root is returned even
// when cleanup fails; it is never restored.
func (c *Coordinator) Delete(ctx context.Context, kind Kind, id string) (docstore.Document, error) {
	const op = "cascade.delete"
	coll, err := kind.collection()
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, op, err)
	}
	root, err := c.store.DeleteByID(ctx, coll, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperr.E(apperr.NotFound, op, fmt.Sprintf("%s not found", kind))
		}
		return nil, apperr.Wrap(apperr.DependencyFailure, op, err)
	}
	return root, c.OnDelete(ctx, kind, root)
}

// OnDelete runs the cleanup steps for an already deleted root. Every step runs even when an
// earlier one fails; failures are joined into one DependencyFailure.
func (c *Coordinator) OnDelete(ctx context.Context, kind Kind, root docstore.Document) error {
	ctx, span := logging.StartSpan(ctx, "cascade."+string(kind))
	defer span.End()
	logger := logging.FromContext(ctx)

	var errs []error
	for _, s := range c.steps(kind, root) {
		err := s.run(ctx)
		metrics.CascadeSteps.WithLabelValues(string(kind), s.name, metrics.Outcome(err)).Inc()
		if err != nil {
			logger.Error("cascade step failed", slog.String("step", s.name), slog.String("root", root.ID()), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	if len(errs) > 0 {
		return apperr.Wrapf(apperr.DependencyFailure, "cascade.on_delete", errors.Join(errs...),
			"%s deleted but cleanup was incomplete", kind)
	}
	return nil
}

func (c *Coordinator) steps(kind Kind, root docstore.Document) []step {
	id := root.ID()
	switch kind {
	case KindVideo:
		return []step{
			{"video_likes", func(ctx context.Context) error { return c.deleteLikes(ctx, models.TargetVideo, id) }},
			{"comment_likes", func(ctx context.Context) error { return c.deleteCommentLikes(ctx, id) }},
			{"comments", func(ctx context.Context) error {
				_, err := c.store.DeleteMany(ctx, models.CollectionComments, pipeline.Eq{Field: "video", Value: id})
				return err
			}},
			{"playlists", func(ctx context.Context) error { return c.pull(ctx, models.CollectionPlaylists, "videos", id) }},
			{"watch_history", func(ctx context.Context) error { return c.pull(ctx, models.CollectionUsers, "watchHistory", id) }},
			{"assets", func(ctx context.Context) error { c.deleteAssets(ctx, root, "videoFile", "thumbnail"); return nil }},
		}
	case KindComment:
		return []step{{"comment_likes", func(ctx context.Context) error { return c.deleteLikes(ctx, models.TargetComment, id) }}}
	case KindTweet:
		return []step{{"tweet_likes", func(ctx context.Context) error { return c.deleteLikes(ctx, models.TargetTweet, id) }}}
	default:
		return nil
	}
}

func (c *Coordinator) deleteLikes(ctx context.Context, targetKind string, ids ...any) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.store.DeleteMany(ctx, models.CollectionLikes, pipeline.And{
		pipeline.Eq{Field: "targetKind", Value: targetKind},
		pipeline.In{Field: "target", Values: ids},
	})
	return err
}

func (c *Coordinator) deleteCommentLikes(ctx context.Context, videoID string) error {
	comments, err := c.store.Find(ctx, models.CollectionComments, pipeline.Eq{Field: "video", Value: videoID})
	if err != nil {
		return err
	}
	ids := make([]any, 0, len(comments))
	for _, cm := range comments {
		ids = append(ids, cm.ID())
	}
	return c.deleteLikes(ctx, models.TargetComment, ids...)
}

func (c *Coordinator) pull(ctx context.Context, collection, field, id string) error {
	_, err := c.store.UpdateMany(ctx, collection, pipeline.Has{Path: field, Value: id},
		docstore.Patch{Pull: map[string]any{field: id}})
	return err
}

// deleteAssets removes the stored binaries referenced by fields. Failures are logged and
// counted by the asset store but never fail the cascade.
func (c *Coordinator) deleteAssets(ctx context.Context, root docstore.Document, fields ...string) {
	if c.assets == nil {
		return
	}
	logger := logging.FromContext(ctx)
	for _, f := range fields {
		var asset models.Asset
		if err := docstore.Decode(root[f], &asset); err != nil || asset.AssetID == "" {
			continue
		}
		if err := c.assets.Delete(ctx, asset.AssetID); err != nil {
			logger.Warn("asset cleanup failed", slog.String("field", f), slog.String("assetId", asset.AssetID), slog.Any("error", err))
		}
	}
}
