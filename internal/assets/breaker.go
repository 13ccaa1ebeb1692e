package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/vidtube/backend/internal/models"
)

// breakerFailures is the number of consecutive failures that opens the breaker.
const breakerFailures = 5

// BreakerStore guards another Store with a circuit breaker, so an unreachable object store
// fails requests fast instead of tying up upload handlers.
type BreakerStore struct {
	next    Store
	uploads *gobreaker.CircuitBreaker[models.Asset]
	deletes *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerStore wraps next. timeout is how long the breaker stays open.
func NewBreakerStore(next Store, timeout time.Duration, logger *slog.Logger) *BreakerStore {
	if logger == nil {
		logger = slog.Default()
	}
	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrNotFound)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("asset breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}
	}
	return &BreakerStore{
		next:    next,
		uploads: gobreaker.NewCircuitBreaker[models.Asset](settings("asset-upload")),
		deletes: gobreaker.NewCircuitBreaker[struct{}](settings("asset-delete")),
	}
}

func (b *BreakerStore) Upload(ctx context.Context, localPath string) (models.Asset, error) {
	asset, err := b.uploads.Execute(func() (models.Asset, error) {
		return b.next.Upload(ctx, localPath)
	})
	return asset, unavailable(err)
}

func (b *BreakerStore) Delete(ctx context.Context, assetID string) error {
	_, err := b.deletes.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Delete(ctx, assetID)
	})
	return unavailable(err)
}

func unavailable(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

var _ Store = (*BreakerStore)(nil)
