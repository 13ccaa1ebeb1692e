package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/assets"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/service"
)

// janitorDrainTimeout bounds how long shutdown waits for queued asset deletions.
const janitorDrainTimeout = 15 * time.Second

// memoryAssetBase prefixes asset URLs when assets only live in memory. Nothing serves it.
const memoryAssetBase = "memory://vidtube-assets"

// openStore returns the document store selected by cfg. The returned pool is nil for the
// memory driver.
func openStore(ctx context.Context, cfg config.Config) (docstore.Store, *pgxpool.Pool, error) {
	switch cfg.StoreDriver {
	case "memory":
		return docstore.NewMemoryStore(models.Indexes...), nil, nil
	case "postgres":
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return docstore.NewPostgresStore(pool, models.Collections()), pool, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// openAssets returns the asset store selected by cfg, guarded by a circuit breaker. An empty
// bucket keeps assets in memory.
func openAssets(ctx context.Context, cfg config.Config, logger *slog.Logger) (assets.Store, error) {
	var next assets.Store
	if cfg.ObjectStore.Bucket == "" {
		base := cfg.ObjectStore.PublicBaseURL
		if base == "" {
			base = memoryAssetBase
		}
		logger.Warn("no object store bucket configured, keeping assets in memory; asset urls are not served",
			"asset_base_url", base)
		next = assets.NewMemoryStore(base)
	} else {
		s3Store, err := assets.NewS3Store(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		next = s3Store
	}
	return assets.NewBreakerStore(next, cfg.ObjectStore.BreakerTimeout, logger), nil
}

// buildDependencies wires together concrete implementations used by the HTTP handlers. The
// cleanup function drains background work and closes the store.
func buildDependencies(ctx context.Context, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(), error) {
	store, pool, err := openStore(ctx, cfg)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}
	closeStore := func() {
		if pool != nil {
			pool.Close()
		}
	}

	assetStore, err := openAssets(ctx, cfg, logger)
	if err != nil {
		closeStore()
		return handlers.Dependencies{}, nil, err
	}
	janitor := assets.NewJanitor(assetStore, assets.JanitorConfig{
		QueueSize: cfg.Media.JanitorQueue,
		Workers:   cfg.Media.JanitorWorkers,
		Timeout:   cfg.ObjectStore.BreakerTimeout,
	}, logger)

	deps := service.Deps{
		Store:   store,
		Assets:  assetStore,
		Janitor: janitor,
		Prober:  assets.NewProber(cfg.Media.FFProbePath, cfg.Media.FFProbeTimeout),
	}
	sessions := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL, repositories.NewUserSessionStore(store))

	out := handlers.Dependencies{
		Logger:        logger,
		Tokens:        sessions,
		AuthLimiter:   middleware.NewIPRateLimiter(cfg.Auth.RateLimitRPS, cfg.Auth.RateLimitBurst, 10*time.Minute),
		CORSOrigins:   cfg.CORSOrigins,
		UploadDir:     cfg.UploadDir,
		Users:         service.NewUsers(deps, sessions),
		Videos:        service.NewVideos(deps),
		Comments:      service.NewComments(deps),
		Tweets:        service.NewTweets(deps),
		Likes:         service.NewLikes(deps),
		Subscriptions: service.NewSubscriptions(deps),
		Playlists:     service.NewPlaylists(deps),
		Dashboard:     service.NewDashboard(deps),
	}
	if pool != nil {
		out.Health = pool
	}

	cleanup := func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), janitorDrainTimeout)
		defer cancel()
		if err := janitor.Shutdown(drainCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("asset janitor did not drain", slog.Any("error", err))
		}
		closeStore()
	}
	return out, cleanup, nil
}
