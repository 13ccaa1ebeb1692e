package cascade

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/assets"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pipeline"
)

type fixture struct {
	store  *docstore.MemoryStore
	assets *assets.MemoryStore
	video  models.Video
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	f := fixture{store: docstore.NewMemoryStore(models.Indexes...), assets: assets.NewMemoryStore("https://cdn.test")}

	upload := func(name string) models.Asset {
		path := filepath.Join(t.TempDir(), name)
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		a, err := f.assets.Upload(ctx, path)
		if err != nil {
			t.Fatal(err)
		}
		return a
	}
	f.video = models.Video{ID: "v1", Owner: "u1", VideoFile: upload("v.mp4"), Thumbnail: upload("t.png")}

	put := func(coll string, v any) {
		t.Helper()
		doc, err := docstore.ToDocument(v)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.store.Create(ctx, coll, doc); err != nil {
			t.Fatalf("seed %s: %v", coll, err)
		}
	}
	put(models.CollectionVideos, f.video)
	put(models.CollectionVideos, models.Video{ID: "v2", Owner: "u1"})
	put(models.CollectionUsers, models.User{ID: "u1", Username: "ana", Email: "a@t", WatchHistory: []string{"v1", "v2"}})
	put(models.CollectionUsers, models.User{ID: "u2", Username: "bo", Email: "b@t", WatchHistory: []string{"v2"}})
	put(models.CollectionComments, models.Comment{ID: "c1", Video: "v1", Owner: "u2"})
	put(models.CollectionComments, models.Comment{ID: "c2", Video: "v2", Owner: "u2"})
	put(models.CollectionTweets, models.Tweet{ID: "t1", Owner: "u1"})
	put(models.CollectionLikes, models.Like{ID: "l1", LikedBy: "u2", TargetKind: models.TargetVideo, Target: "v1"})
	put(models.CollectionLikes, models.Like{ID: "l2", LikedBy: "u1", TargetKind: models.TargetComment, Target: "c1"})
	put(models.CollectionLikes, models.Like{ID: "l3", LikedBy: "u1", TargetKind: models.TargetComment, Target: "c2"})
	put(models.CollectionLikes, models.Like{ID: "l4", LikedBy: "u2", TargetKind: models.TargetVideo, Target: "v2"})
	put(models.CollectionLikes, models.Like{ID: "l5", LikedBy: "u2", TargetKind: models.TargetTweet, Target: "t1"})
	put(models.CollectionPlaylists, models.Playlist{ID: "p1", Owner: "u2", Videos: []string{"v2", "v1"}})
	return f
}

func ids(t *testing.T, store docstore.Store, coll string) []string {
	t.Helper()
	docs, err := store.Find(context.Background(), coll, nil)
	if err != nil {
		t.Fatal(err)
	}
	out := []string{}
	for _, d := range docs {
		out = append(out, d.ID())
	}
	return out
}

func TestDeleteVideoRemovesDependents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root, err := NewCoordinator(f.store, f.assets).Delete(ctx, KindVideo, "v1")
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if root.ID() != "v1" {
		t.Fatalf("expected deleted root, got %v", root)
	}

	checks := []struct {
		coll string
		want []string
	}{
		{models.CollectionVideos, []string{"v2"}},
		{models.CollectionComments, []string{"c2"}},
		{models.CollectionLikes, []string{"l3", "l4", "l5"}},
	}
	for _, c := range checks {
		if diff := cmp.Diff(c.want, ids(t, f.store, c.coll)); diff != "" {
			t.Fatalf("%s after cascade (-want +got):\n%s", c.coll, diff)
		}
	}

	playlist, err := f.store.FindByID(ctx, models.CollectionPlaylists, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{"v2"}, playlist["videos"]); diff != "" {
		t.Fatalf("playlist videos (-want +got):\n%s", diff)
	}
	user, err := f.store.FindByID(ctx, models.CollectionUsers, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{"v2"}, user["watchHistory"]); diff != "" {
		t.Fatalf("watch history (-want +got):\n%s", diff)
	}
	if f.assets.Has(f.video.VideoFile.AssetID) || f.assets.Has(f.video.Thumbnail.AssetID) {
		t.Fatal("expected video assets to be deleted")
	}
}

func TestDeleteCommentAndTweetRemoveLikes(t *testing.T) {
	f := newFixture(t)
	c := NewCoordinator(f.store, nil)
	ctx := context.Background()

	if _, err := c.Delete(ctx, KindComment, "c2"); err != nil {
		t.Fatalf("Delete comment: %v", err)
	}
	if _, err := c.Delete(ctx, KindTweet, "t1"); err != nil {
		t.Fatalf("Delete tweet: %v", err)
	}
	if diff := cmp.Diff([]string{"l1", "l2", "l4"}, ids(t, f.store, models.CollectionLikes)); diff != "" {
		t.Fatalf("likes after cascade (-want +got):\n%s", diff)
	}

	if _, err := c.Delete(ctx, KindPlaylist, "p1"); err != nil {
		t.Fatalf("Delete playlist: %v", err)
	}
	if _, err := c.Delete(ctx, KindPlaylist, "p1"); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound on second delete, got %v", err)
	}
}

type brokenUpdates struct {
	*docstore.MemoryStore
}

func (b brokenUpdates) UpdateMany(context.Context, string, pipeline.Predicate, docstore.Patch) (int64, error) {
	return 0, errors.New("connection reset")
}

type brokenAssets struct{}

func (brokenAssets) Upload(context.Context, string) (models.Asset, error) {
	return models.Asset{}, assets.ErrUnavailable
}
func (brokenAssets) Delete(context.Context, string) error { return assets.ErrUnavailable }

func TestDeleteVideoContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	failed := testutil.ToFloat64(metrics.CascadeSteps.WithLabelValues("video", "playlists", "error"))

	root, err := NewCoordinator(brokenUpdates{f.store}, brokenAssets{}).Delete(ctx, KindVideo, "v1")
	if !apperr.Is(err, apperr.DependencyFailure) {
		t.Fatalf("expected DependencyFailure, got %v", err)
	}
	if root.ID() != "v1" {
		t.Fatalf("expected the deleted root alongside the error, got %v", root)
	}
	if got := testutil.ToFloat64(metrics.CascadeSteps.WithLabelValues("video", "playlists", "error")); got != failed+1 {
		t.Fatalf("expected playlists failure to be counted, got %v -> %v", failed, got)
	}

	// steps after the failing ones still ran and the root stays deleted
	if diff := cmp.Diff([]string{"c2"}, ids(t, f.store, models.CollectionComments)); diff != "" {
		t.Fatalf("comments (-want +got):\n%s", diff)
	}
	if _, err := f.store.FindByID(ctx, models.CollectionVideos, "v1"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("root must not be restored, got %v", err)
	}
	if msg := apperr.Message(err); msg != "video deleted but cleanup was incomplete" {
		t.Fatalf("unexpected message %q", msg)
	}
}
