// Package service implements the request-level operations behind the HTTP API. Every
// operation validates its input first and returns apperr-tagged errors.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/assets"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/validation"
)

// AssetJanitor deletes replaced or orphaned assets in the background.
type AssetJanitor interface {
	Enqueue(ctx context.Context, assetID string) error
}

// DurationProber measures the playing time of a local media file.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Deps are the collaborators shared by every service.
type Deps struct {
	Store   docstore.Store
	Assets  assets.Store
	Janitor AssetJanitor
	Prober  DurationProber
}

// storeErr translates repository failures. notFound is the client message for a missing
// record; an empty notFound treats a missing record as a dependency failure.
func storeErr(op string, err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound) && notFound != "":
		return apperr.E(apperr.NotFound, op, notFound)
	case errors.Is(err, repositories.ErrConflict):
		return apperr.Wrapf(apperr.Conflict, op, err, "resource already exists")
	default:
		var tagged *apperr.Error
		if errors.As(err, &tagged) {
			return err
		}
		return apperr.Wrap(apperr.DependencyFailure, op, err)
	}
}

func requireActor(op, actorID string) error {
	if actorID == "" {
		return apperr.E(apperr.Unauthenticated, op, "")
	}
	return validation.ID(op, "user id", actorID)
}

func clean(s string) string { return strings.TrimSpace(s) }

// upload is one local file to store. Dst receives the stored reference.
type upload struct {
	field string
	path  string
	dst   *models.Asset
}

// uploadAll stores every non-empty upload concurrently. On failure the assets that did upload
// are queued for deletion.
func uploadAll(ctx context.Context, op string, store assets.Store, janitor AssetJanitor, files ...upload) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range files {
		if f.path == "" {
			continue
		}
		g.Go(func() error {
			asset, err := store.Upload(gctx, f.path)
			if err != nil {
				return apperr.Wrapf(apperr.DependencyFailure, op, err, "%s not uploaded, try again", f.field)
			}
			*f.dst = asset
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, f := range files {
			if f.dst.AssetID != "" {
				discard(ctx, janitor, f.dst.AssetID)
			}
		}
		return err
	}
	return nil
}

// discard queues an asset for background deletion, logging when the janitor refuses it.
func discard(ctx context.Context, janitor AssetJanitor, assetID string) {
	if janitor == nil || assetID == "" {
		return
	}
	if err := janitor.Enqueue(ctx, assetID); err != nil {
		logging.FromContext(ctx).Warn("asset not queued for deletion", slog.String("assetId", assetID), slog.Any("error", err))
	}
}
