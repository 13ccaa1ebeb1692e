package views

import (
	"context"
	"strings"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/paginate"
	"github.com/vidtube/backend/internal/pipeline"
)

// ChannelProfile composes the public channel page of username relative to actorID.
func (c *Composer) ChannelProfile(ctx context.Context, username, actorID string) (models.ChannelProfile, error) {
	b := from(models.CollectionUsers).
		Filter(pipeline.Eq{Field: "username", Value: strings.ToLower(strings.TrimSpace(username))}).
		Join(pipeline.Join{
			From: models.CollectionSubscriptions, LocalKey: "_id", ForeignKey: "channel", As: "subscribers",
			Pipeline: []pipeline.Stage{pipeline.Project{Fields: []string{"subscriber"}}},
		}).
		Join(pipeline.Join{
			From: models.CollectionSubscriptions, LocalKey: "_id", ForeignKey: "subscriber", As: "subscribedTo",
			Pipeline: []pipeline.Stage{pipeline.Project{Fields: []string{"channel"}}},
		}).
		Join(pipeline.Join{
			From: models.CollectionVideos, LocalKey: "_id", ForeignKey: "owner", As: "videos",
			Pipeline: []pipeline.Stage{published(), pipeline.Project{Fields: []string{"_id"}}},
		}).
		Compute("subscribersCount", pipeline.Count{Path: "subscribers"}).
		Compute("channelsSubscribedToCount", pipeline.Count{Path: "subscribedTo"}).
		Compute("videosCount", pipeline.Count{Path: "videos"}).
		Compute("isSubscribed", pipeline.Flag("subscribers.subscriber", actorID)).
		Project("_id", "username", "fullName", "email", "avatar.url", "coverImage.url",
			"subscribersCount", "channelsSubscribedToCount", "videosCount", "isSubscribed")

	var out models.ChannelProfile
	err := c.one(ctx, "channel_profile", b, &out, "channel does not exist")
	return out, err
}

// relatedUser joins the user referenced by localKey with its subscriber count. stages run
// after the count and must compute subscribedBack plus any extra fields.
func relatedUser(localKey string, extra []string, stages ...pipeline.Stage) pipeline.Join {
	all := []pipeline.Stage{
		pipeline.Join{
			From: models.CollectionSubscriptions, LocalKey: "_id", ForeignKey: "channel", As: "subscribers",
			Pipeline: []pipeline.Stage{pipeline.Project{Fields: []string{"subscriber"}}},
		},
		pipeline.Compute{Name: "subscribersCount", Expr: pipeline.Count{Path: "subscribers"}},
	}
	all = append(all, stages...)
	fields := append(append([]string{}, ownerFields...), "subscribersCount", "subscribedBack")
	all = append(all, pipeline.Project{Fields: append(fields, extra...)})

	return pipeline.Join{From: models.CollectionUsers, LocalKey: localKey, ForeignKey: "_id", As: localKey, Pipeline: all}
}

// ChannelSubscribers pages through the subscribers of channelID, newest first. A subscriber
// is flagged subscribedBack when the channel subscribes to them too.
func (c *Composer) ChannelSubscribers(ctx context.Context, channelID string, req paginate.Request) (paginate.Page[models.SubscriberEntry], error) {
	b := from(models.CollectionSubscriptions).
		Filter(pipeline.Eq{Field: "channel", Value: channelID}).
		Join(relatedUser("subscriber", nil,
			pipeline.Compute{Name: "subscribedBack", Expr: pipeline.Flag("subscribers.subscriber", channelID)},
		)).
		Unwind("subscriber").
		Sort(pipeline.Desc("createdAt")).
		Project("_id", "createdAt", "subscriber")

	return page[models.SubscriberEntry](ctx, c, "channel_subscribers", b, req)
}

// SubscribedChannels pages through the channels subscriberID follows, newest subscription
// first, each with its latest published video.
func (c *Composer) SubscribedChannels(ctx context.Context, subscriberID string, req paginate.Request) (paginate.Page[models.SubscriptionEntry], error) {
	stages := []pipeline.Stage{
		pipeline.Join{
			From: models.CollectionSubscriptions, LocalKey: "_id", ForeignKey: "subscriber", As: "subscriptions",
			Pipeline: []pipeline.Stage{pipeline.Project{Fields: []string{"channel"}}},
		},
		pipeline.Compute{Name: "subscribedBack", Expr: pipeline.Flag("subscriptions.channel", subscriberID)},
		pipeline.Join{
			From: models.CollectionVideos, LocalKey: "_id", ForeignKey: "owner", As: "latestVideo",
			Pipeline: []pipeline.Stage{
				published(),
				pipeline.Sort{Keys: []pipeline.SortKey{pipeline.Desc("createdAt")}},
				pipeline.Project{Fields: []string{"_id", "title", "thumbnail.url", "duration", "views", "createdAt"}},
			},
		},
		pipeline.Compute{Name: "latestVideo", Expr: pipeline.First{Path: "latestVideo"}},
	}

	b := from(models.CollectionSubscriptions).
		Filter(pipeline.Eq{Field: "subscriber", Value: subscriberID}).
		Join(relatedUser("channel", []string{"latestVideo"}, stages...)).
		Unwind("channel").
		Sort(pipeline.Desc("createdAt")).
		Project("_id", "createdAt", "channel")

	return page[models.SubscriptionEntry](ctx, c, "subscribed_channels", b, req)
}
