package views

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/paginate"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int) models.Time {
	return models.Time{Time: base.Add(time.Duration(minutes) * time.Minute)}
}

func asset(id string) models.Asset {
	return models.Asset{URL: "https://cdn.test/" + id, AssetID: id}
}

func newFixture(t *testing.T) *Composer {
	t.Helper()
	store := docstore.NewMemoryStore(models.Indexes...)
	ctx := context.Background()

	put := func(coll string, v any) {
		t.Helper()
		doc, err := docstore.ToDocument(v)
		if err != nil {
			t.Fatalf("encode %s: %v", coll, err)
		}
		if err := store.Create(ctx, coll, doc); err != nil {
			t.Fatalf("seed %s: %v", coll, err)
		}
	}

	put(models.CollectionUsers, models.User{ID: "u1", Username: "ana", Email: "ana@test", FullName: "Ana", Avatar: asset("av1"), Password: "x", CreatedAt: at(0)})
	put(models.CollectionUsers, models.User{ID: "u2", Username: "bo", Email: "bo@test", FullName: "Bo", Avatar: asset("av2"), Password: "x", WatchHistory: []string{"v3", "v1"}, CreatedAt: at(0)})
	put(models.CollectionUsers, models.User{ID: "u3", Username: "cy", Email: "cy@test", FullName: "Cy", Avatar: asset("av3"), Password: "x", CreatedAt: at(0)})

	video := func(id, owner, title string, published bool, views int64, created int) {
		put(models.CollectionVideos, models.Video{ID: id, Owner: owner, Title: title, IsPublished: published, Views: views,
			VideoFile: asset(id + "-file"), Thumbnail: asset(id + "-thumb"), Duration: 60, CreatedAt: at(created), UpdatedAt: at(created)})
	}
	video("v1", "u1", "Go tour", true, 10, 1)
	video("v2", "u1", "Draft", false, 3, 9)
	video("v3", "u2", "Rust basics", true, 7, 3)
	video("v4", "u1", "Go generics", true, 1, 4)

	put(models.CollectionComments, models.Comment{ID: "c1", Video: "v1", Owner: "u2", Content: "nice", CreatedAt: at(5)})
	put(models.CollectionComments, models.Comment{ID: "c2", Video: "v1", Owner: "u3", Content: "meh", CreatedAt: at(6)})

	put(models.CollectionTweets, models.Tweet{ID: "t1", Owner: "u1", Content: "first", CreatedAt: at(1)})
	put(models.CollectionTweets, models.Tweet{ID: "t2", Owner: "u1", Content: "second", CreatedAt: at(2)})

	like := func(id, by, kind, target string, created int) {
		put(models.CollectionLikes, models.Like{ID: id, LikedBy: by, TargetKind: kind, Target: target, CreatedAt: at(created)})
	}
	like("l1", "u2", models.TargetVideo, "v1", 1)
	like("l2", "u3", models.TargetVideo, "v1", 2)
	like("l3", "u1", models.TargetVideo, "v3", 7)
	like("l4", "u1", models.TargetVideo, "v2", 8)
	like("l5", "u1", models.TargetComment, "c1", 9)

	sub := func(id, subscriber, channel string, created int) {
		put(models.CollectionSubscriptions, models.Subscription{ID: id, Subscriber: subscriber, Channel: channel, CreatedAt: at(created)})
	}
	sub("s1", "u2", "u1", 1)
	sub("s2", "u3", "u1", 2)
	sub("s3", "u1", "u2", 3)

	put(models.CollectionPlaylists, models.Playlist{ID: "p1", Owner: "u2", Name: "mix", Videos: []string{"v4", "v2", "v1"}, UpdatedAt: at(1)})
	put(models.CollectionPlaylists, models.Playlist{ID: "p2", Owner: "u2", Name: "drafts", Videos: []string{"v2"}, UpdatedAt: at(2)})

	return NewComposer(store)
}

func cardIDs(cards []models.VideoCard) []string {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}

func TestVideoFeed(t *testing.T) {
	c := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query FeedQuery
		want  []string
	}{
		{name: "newest first by default", want: []string{"v4", "v3", "v1"}},
		{name: "most viewed", query: FeedQuery{SortBy: "views", SortType: "desc"}, want: []string{"v1", "v3", "v4"}},
		{name: "title ascending", query: FeedQuery{SortBy: "title", SortType: "asc"}, want: []string{"v4", "v1", "v3"}},
		{name: "search ignores case", query: FeedQuery{Query: "GO"}, want: []string{"v4", "v1"}},
		{name: "single owner", query: FeedQuery{OwnerID: "u2"}, want: []string{"v3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := c.VideoFeed(ctx, tt.query, paginate.NewRequest(1, 10))
			if err != nil {
				t.Fatalf("VideoFeed returned error: %v", err)
			}
			if diff := cmp.Diff(tt.want, cardIDs(page.Items)); diff != "" {
				t.Fatalf("unexpected feed order (-want +got):\n%s", diff)
			}
			if page.TotalItems != int64(len(tt.want)) {
				t.Fatalf("expected total %d, got %d", len(tt.want), page.TotalItems)
			}
		})
	}

	page, err := c.VideoFeed(ctx, FeedQuery{}, paginate.NewRequest(1, 10))
	if err != nil {
		t.Fatalf("VideoFeed returned error: %v", err)
	}
	owner := page.Items[0].OwnerDetails
	if owner == nil || owner.Username != "ana" || owner.Avatar == nil || owner.Avatar.URL != "https://cdn.test/av1" {
		t.Fatalf("expected ana as owner of v4, got %+v", owner)
	}
}

func TestVideoFeedRejectsUnknownSort(t *testing.T) {
	c := newFixture(t)
	for _, q := range []FeedQuery{{SortBy: "password"}, {SortBy: "views", SortType: "sideways"}} {
		_, err := c.VideoFeed(context.Background(), q, paginate.NewRequest(1, 10))
		if !apperr.Is(err, apperr.InvalidInput) {
			t.Fatalf("expected InvalidInput for %+v, got %v", q, err)
		}
	}
}

func TestVideoFeedReportsOrphanedVideo(t *testing.T) {
	store := docstore.NewMemoryStore(models.Indexes...)
	doc, err := docstore.ToDocument(models.Video{ID: "v9", Owner: "ghost", IsPublished: true, CreatedAt: at(1)})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Create(context.Background(), models.CollectionVideos, doc); err != nil {
		t.Fatal(err)
	}

	_, err = NewComposer(store).VideoFeed(context.Background(), FeedQuery{}, paginate.NewRequest(1, 10))
	if !apperr.Is(err, apperr.DependencyFailure) {
		t.Fatalf("expected DependencyFailure for a video without owner, got %v", err)
	}
}

func TestVideoDetail(t *testing.T) {
	c := newFixture(t)
	ctx := context.Background()

	got, err := c.VideoDetail(ctx, "v1", "u2")
	if err != nil {
		t.Fatalf("VideoDetail returned error: %v", err)
	}
	want := models.VideoDetail{
		ID: "v1", Title: "Go tour", Duration: 60, Views: 10, IsPublished: true, CreatedAt: at(1),
		VideoFile: &models.AssetURL{URL: "https://cdn.test/v1-file"},
		Thumbnail: &models.AssetURL{URL: "https://cdn.test/v1-thumb"},
		Owner: &models.ChannelSummary{
			ID: "u1", Username: "ana", FullName: "Ana", Avatar: &models.AssetURL{URL: "https://cdn.test/av1"},
			SubscribersCount: 2, IsSubscribed: true,
		},
		LikesCount: 2, CommentsCount: 2, IsLiked: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected detail (-want +got):\n%s", diff)
	}

	anon, err := c.VideoDetail(ctx, "v1", "")
	if err != nil {
		t.Fatalf("VideoDetail returned error: %v", err)
	}
	if anon.IsLiked || anon.Owner.IsSubscribed {
		t.Fatalf("anonymous viewer must not be flagged, got %+v", anon)
	}

	if _, err := c.VideoDetail(ctx, "v2", "u2"); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound for someone else's draft, got %v", err)
	}
	if _, err := c.VideoDetail(ctx, "v2", "u1"); err != nil {
		t.Fatalf("owner should see own draft, got %v", err)
	}
	if _, err := c.VideoDetail(ctx, "missing", "u1"); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestVideoDetailIsRepeatableAndReadOnly(t *testing.T) {
	c := newFixture(t)
	ctx := context.Background()

	snapshot := func() (docstore.Document, docstore.Document) {
		t.Helper()
		video, err := c.store.FindByID(ctx, models.CollectionVideos, "v1")
		if err != nil {
			t.Fatalf("load video: %v", err)
		}
		viewer, err := c.store.FindByID(ctx, models.CollectionUsers, "u2")
		if err != nil {
			t.Fatalf("load viewer: %v", err)
		}
		return video, viewer
	}
	videoBefore, viewerBefore := snapshot()

	first, err := c.VideoDetail(ctx, "v1", "u2")
	if err != nil {
		t.Fatalf("VideoDetail returned error: %v", err)
	}
	second, err := c.VideoDetail(ctx, "v1", "u2")
	if err != nil {
		t.Fatalf("VideoDetail returned error: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated detail differs (-first +second):\n%s", diff)
	}

	videoAfter, viewerAfter := snapshot()
	if diff := cmp.Diff(videoBefore, videoAfter); diff != "" {
		t.Fatalf("composition modified the video (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff(viewerBefore, viewerAfter); diff != "" {
		t.Fatalf("composition modified the viewer (-before +after):\n%s", diff)
	}
}

func TestVideoCommentsAndTweets(t *testing.T) {
	c := newFixture(t)
	ctx := context.Background()

	comments, err := c.VideoComments(ctx, "v1", "u1", paginate.NewRequest(1, 1))
	if err != nil {
		t.Fatalf("VideoComments returned error: %v", err)
	}
	if comments.TotalItems != 2 || comments.TotalPages != 2 || !comments.HasNext {
		t.Fatalf("unexpected page metadata: %+v", comments)
	}
	if len(comments.Items) != 1 || comments.Items[0].ID != "c2" || comments.Items[0].Owner.Username != "cy" {
		t.Fatalf("expected newest comment c2 by cy, got %+v", comments.Items)
	}

	second, err := c.VideoComments(ctx, "v1", "u1", paginate.NewRequest(2, 1))
	if err != nil {
		t.Fatalf("VideoComments returned error: %v", err)
	}
	got := second.Items[0]
	if got.ID != "c1" || got.LikesCount != 1 || !got.IsLiked {
		t.Fatalf("expected c1 liked by viewer, got %+v", got)
	}

	tweets, err := c.UserTweets(ctx, "u1", "u2", paginate.NewRequest(1, 10))
	if err != nil {
		t.Fatalf("UserTweets returned error: %v", err)
	}
	if len(tweets.Items) != 2 || tweets.Items[0].ID != "t2" || tweets.Items[0].Content != "second" {
		t.Fatalf("unexpected tweets: %+v", tweets.Items)
	}
}

func TestChannelProfile(t *testing.T) {
	c := newFixture(t)

	got, err := c.ChannelProfile(context.Background(), " ANA ", "u2")
	if err != nil {
		t.Fatalf("ChannelProfile returned error: %v", err)
	}
	if got.ID != "u1" || got.SubscribersCount != 2 || got.ChannelsSubscribedToCount != 1 || got.VideosCount != 2 || !got.IsSubscribed {
		t.Fatalf("unexpected profile: %+v", got)
	}

	if _, err := c.ChannelProfile(context.Background(), "nobody", ""); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestPlaylistViews(t *testing.T) {
	c := newFixture(t)
	ctx := context.Background()

	detail, err := c.PlaylistDetail(ctx, "p1")
	if err != nil {
		t.Fatalf("PlaylistDetail returned error: %v", err)
	}
	var ids []string
	for _, v := range detail.Videos {
		ids = append(ids, v.ID)
	}
	if diff := cmp.Diff([]string{"v4", "v1"}, ids); diff != "" {
		t.Fatalf("expected published videos in playlist order (-want +got):\n%s", diff)
	}
	if detail.TotalVideos != 2 || detail.TotalViews != 11 || detail.Owner == nil || detail.Owner.Username != "bo" {
		t.Fatalf("unexpected playlist totals: %+v", detail)
	}

	empty, err := c.PlaylistDetail(ctx, "p2")
	if err != nil {
		t.Fatalf("PlaylistDetail returned error: %v", err)
	}
	if empty.TotalVideos != 0 || empty.TotalViews != 0 || len(empty.Videos) != 0 || empty.Videos == nil {
		t.Fatalf("expected an empty shell, got %+v", empty)
	}

	if _, err := c.PlaylistDetail(ctx, "p9"); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}

	lists, err := c.UserPlaylists(ctx, "u2")
	if err != nil {
		t.Fatalf("UserPlaylists returned error: %v", err)
	}
	want := []models.PlaylistSummary{
		{ID: "p2", Name: "drafts", UpdatedAt: at(2)},
		{ID: "p1", Name: "mix", TotalVideos: 2, TotalViews: 11, UpdatedAt: at(1)},
	}
	if diff := cmp.Diff(want, lists); diff != "" {
		t.Fatalf("unexpected playlists (-want +got):\n%s", diff)
	}
}

func TestSubscriptionListings(t *testing.T) {
	c := newFixture(t)
	ctx := context.Background()

	subs, err := c.ChannelSubscribers(ctx, "u1", paginate.NewRequest(1, 10))
	if err != nil {
		t.Fatalf("ChannelSubscribers returned error: %v", err)
	}
	if len(subs.Items) != 2 {
		t.Fatalf("expected two subscribers, got %+v", subs.Items)
	}
	cy, bo := subs.Items[0], subs.Items[1]
	if cy.Subscriber.Username != "cy" || cy.Subscriber.SubscribedBack || cy.Subscriber.SubscribersCount != 0 {
		t.Fatalf("unexpected newest subscriber: %+v", cy)
	}
	if bo.Subscriber.Username != "bo" || !bo.Subscriber.SubscribedBack || bo.Subscriber.SubscribersCount != 1 {
		t.Fatalf("expected bo to be subscribed back, got %+v", bo)
	}
	if !bo.SubscribedAt.Equal(at(1).Time) {
		t.Fatalf("expected subscription time %v, got %v", at(1), bo.SubscribedAt)
	}

	channels, err := c.SubscribedChannels(ctx, "u2", paginate.NewRequest(1, 10))
	if err != nil {
		t.Fatalf("SubscribedChannels returned error: %v", err)
	}
	if len(channels.Items) != 1 {
		t.Fatalf("expected one channel, got %+v", channels.Items)
	}
	ch := channels.Items[0].Channel
	if ch.ID != "u1" || !ch.SubscribedBack || ch.SubscribersCount != 2 {
		t.Fatalf("unexpected channel: %+v", ch)
	}
	if ch.LatestVideo == nil || ch.LatestVideo.ID != "v4" {
		t.Fatalf("expected latest published video v4, got %+v", ch.LatestVideo)
	}

	none, err := c.SubscribedChannels(ctx, "u9", paginate.NewRequest(1, 10))
	if err != nil {
		t.Fatalf("SubscribedChannels returned error: %v", err)
	}
	if len(none.Items) != 0 || none.Items == nil {
		t.Fatalf("expected empty item list, got %+v", none.Items)
	}
}

func TestLikedVideosAndHistory(t *testing.T) {
	c := newFixture(t)
	ctx := context.Background()

	liked, err := c.LikedVideos(ctx, "u1", paginate.NewRequest(1, 10))
	if err != nil {
		t.Fatalf("LikedVideos returned error: %v", err)
	}
	var ids []string
	for _, l := range liked.Items {
		ids = append(ids, l.Video.ID)
	}
	if diff := cmp.Diff([]string{"v2", "v3"}, ids); diff != "" {
		t.Fatalf("unexpected liked videos (-want +got):\n%s", diff)
	}
	if liked.Items[1].Video.OwnerDetails == nil || liked.Items[1].Video.OwnerDetails.Username != "bo" {
		t.Fatalf("expected owner details on liked video, got %+v", liked.Items[1].Video)
	}

	history, err := c.WatchHistory(ctx, "u2")
	if err != nil {
		t.Fatalf("WatchHistory returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"v3", "v1"}, cardIDs(history)); diff != "" {
		t.Fatalf("unexpected history order (-want +got):\n%s", diff)
	}

	empty, err := c.WatchHistory(ctx, "u3")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty history, got %v, %v", empty, err)
	}
}

func TestDashboardViews(t *testing.T) {
	c := newFixture(t)
	ctx := context.Background()

	stats, err := c.ChannelStats(ctx, "u1")
	if err != nil {
		t.Fatalf("ChannelStats returned error: %v", err)
	}
	want := models.ChannelStats{TotalSubscribers: 2, TotalVideos: 3, TotalViews: 14, TotalLikes: 3}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Fatalf("unexpected stats (-want +got):\n%s", diff)
	}

	videos, err := c.ChannelVideos(ctx, "u1")
	if err != nil {
		t.Fatalf("ChannelVideos returned error: %v", err)
	}
	var ids []string
	for _, v := range videos {
		ids = append(ids, v.ID)
	}
	if diff := cmp.Diff([]string{"v2", "v4", "v1"}, ids); diff != "" {
		t.Fatalf("unexpected channel videos (-want +got):\n%s", diff)
	}
	if videos[2].LikesCount != 2 || videos[0].IsPublished {
		t.Fatalf("unexpected channel video fields: %+v", videos)
	}
}
