package service

import (
	"context"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/views"
)

// Dashboard reports on the signed-in user's own channel.
type Dashboard struct {
	views *views.Composer
}

// NewDashboard constructs the dashboard service.
func NewDashboard(d Deps) *Dashboard {
	return &Dashboard{views: views.NewComposer(d.Store)}
}

// Stats returns channel totals.
func (s *Dashboard) Stats(ctx context.Context, actorID string) (models.ChannelStats, error) {
	if err := requireActor("dashboard.stats", actorID); err != nil {
		return models.ChannelStats{}, err
	}
	return s.views.ChannelStats(ctx, actorID)
}

// Videos lists every video of the channel, published or not.
func (s *Dashboard) Videos(ctx context.Context, actorID string) ([]models.ChannelVideo, error) {
	if err := requireActor("dashboard.videos", actorID); err != nil {
		return nil, err
	}
	return s.views.ChannelVideos(ctx, actorID)
}
