package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vidtube/backend/internal/assets"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.StoreDriver = "memory"
	cfg.UploadDir = t.TempDir()
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildDependenciesMemoryDriver(t *testing.T) {
	deps, cleanup, err := buildDependencies(context.Background(), memoryConfig(t), discardLogger())
	if err != nil {
		t.Fatalf("buildDependencies: %v", err)
	}
	defer cleanup()

	if deps.Health != nil {
		t.Fatal("memory driver should not configure a store health check")
	}
	if deps.Tokens == nil || deps.AuthLimiter == nil {
		t.Fatal("expected token verifier and auth limiter")
	}
	if deps.Users == nil || deps.Videos == nil || deps.Comments == nil || deps.Tweets == nil {
		t.Fatal("expected content services to be configured")
	}
	if deps.Likes == nil || deps.Subscriptions == nil || deps.Playlists == nil || deps.Dashboard == nil {
		t.Fatal("expected relation services to be configured")
	}
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.StoreDriver = "mongo"
	if _, _, err := openStore(context.Background(), cfg); err == nil || !strings.Contains(err.Error(), "mongo") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}

func TestOpenAssetsWithoutBucketUsesMemory(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.ObjectStore.PublicBaseURL = "https://cdn.test"

	store, err := openAssets(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("openAssets: %v", err)
	}
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("frames"), 0o600); err != nil {
		t.Fatal(err)
	}
	asset, err := store.Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(asset.URL, "https://cdn.test/") {
		t.Fatalf("asset url = %q", asset.URL)
	}
	if err := store.Delete(context.Background(), asset.AssetID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(context.Background(), asset.AssetID); !errors.Is(err, assets.ErrNotFound) {
		t.Fatalf("second delete = %v, want ErrNotFound", err)
	}
}

func TestOpenAssetsMemoryPlaceholderBase(t *testing.T) {
	store, err := openAssets(context.Background(), memoryConfig(t), discardLogger())
	if err != nil {
		t.Fatalf("openAssets: %v", err)
	}
	path := filepath.Join(t.TempDir(), "avatar.png")
	if err := os.WriteFile(path, []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}
	asset, err := store.Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(asset.URL, memoryAssetBase+"/") || strings.HasPrefix(asset.URL, "http") {
		t.Fatalf("asset url = %q, want the unserved memory placeholder", asset.URL)
	}
}

func TestSeedLoadsFixture(t *testing.T) {
	dir := t.TempDir()
	fixture := `{
		"users": [{"_id": "u1", "username": "demo", "email": "demo@test", "fullName": "Demo",
			"avatar": {"url": "https://a", "assetId": "a"}, "password": "secret"}],
		"tweets": [{"content": "hello", "owner": "u1"}, {"content": "again", "owner": "u1"}]
	}`
	if err := os.WriteFile(seedPath(dir, "demo"), []byte(fixture), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	store := docstore.NewMemoryStore(models.Indexes...)
	counts, err := Seed(ctx, store, seedPath(dir, "demo"))
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if diff := cmp.Diff(map[string]int{"users": 1, "tweets": 2}, counts); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}

	user, err := store.FindByID(ctx, models.CollectionUsers, "u1")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if !strings.HasPrefix(user.String("password"), "$2") {
		t.Fatalf("password was not hashed: %q", user.String("password"))
	}
	if user.String("createdAt") == "" {
		t.Fatal("expected createdAt to be filled")
	}
	tweets, err := store.Find(ctx, models.CollectionTweets, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, tw := range tweets {
		if tw.ID() == "" {
			t.Fatalf("tweet without id: %v", tw)
		}
	}

	if _, err := Seed(ctx, store, seedPath(dir, "demo")); err == nil {
		t.Fatal("reseeding the same user should violate the unique index")
	}
}

func TestSeedRejectsUnknownCollection(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(seedPath(dir, "bad"), []byte(`{"friends": [{}]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Seed(context.Background(), docstore.NewMemoryStore(), seedPath(dir, "bad"))
	if err == nil || !strings.Contains(err.Error(), "friends") {
		t.Fatalf("expected unknown collection error, got %v", err)
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLISeedAgainstMemoryStore(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(seedPath(dir, "demo"), []byte(`{"tweets": [{"content": "hi", "owner": "u1"}]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.ConfigPathEnvVar, "")
	t.Setenv("VIDTUBE_STORE_DRIVER", "memory")
	t.Setenv("VIDTUBE_SEED_DIR", dir)
	t.Setenv("VIDTUBE_LOG_LEVEL", "error")

	out, err := runCLI(t, "seed", "demo")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out, "applied seed demo") {
		t.Fatalf("output = %q", out)
	}

	if _, err := runCLI(t, "seed"); err == nil {
		t.Fatal("seed without a name should fail")
	}
}

func TestCLIMigrateNeedsPostgres(t *testing.T) {
	t.Setenv(config.ConfigPathEnvVar, "")
	t.Setenv("VIDTUBE_STORE_DRIVER", "memory")
	t.Setenv("VIDTUBE_LOG_LEVEL", "error")

	for _, args := range [][]string{{"migrate"}, {"migrate", "up"}, {"migrate", "status"}, {"migrate", "down"}} {
		if _, err := runCLI(t, args...); err == nil || !strings.Contains(err.Error(), "postgres") {
			t.Fatalf("%v: expected postgres driver error, got %v", args, err)
		}
	}
}
