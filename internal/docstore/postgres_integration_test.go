//go:build integration

package docstore_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pipeline"
)

var (
	testPool *pgxpool.Pool
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "vidtube",
				"POSTGRES_PASSWORD": "vidtube",
				"POSTGRES_DB":       "vidtube",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithDeadline(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		fmt.Fprintf(os.Stderr, "failed to resolve container host: %v\n", err)
		os.Exit(1)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		fmt.Fprintf(os.Stderr, "failed to resolve container port: %v\n", err)
		os.Exit(1)
	}
	databaseURL := fmt.Sprintf("postgres://vidtube:vidtube@%s:%s/vidtube?sslmode=disable", host, port.Port())

	if err := db.Migrate(ctx, databaseURL); err != nil {
		container.Terminate(ctx) //nolint:errcheck
		fmt.Fprintf(os.Stderr, "failed to apply migrations: %v\n", err)
		os.Exit(1)
	}
	testPool, err = db.Connect(ctx, databaseURL)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	testPool.Close()
	container.Terminate(ctx) //nolint:errcheck
	os.Exit(code)
}

func resetDatabase(t *testing.T) {
	t.Helper()
	if _, err := testPool.Exec(context.Background(), `TRUNCATE users, videos, comments, tweets, playlists, likes, subscriptions`); err != nil {
		t.Fatalf("reset database: %v", err)
	}
}

// seedBoth writes the same documents into a fresh Postgres store and a memory store.
func seedBoth(t *testing.T) (*docstore.PostgresStore, *docstore.MemoryStore) {
	t.Helper()
	resetDatabase(t)

	pg := docstore.NewPostgresStore(testPool, models.Collections())
	mem := docstore.NewMemoryStore(models.Indexes...)
	ctx := context.Background()

	docs := map[string][]docstore.Document{
		models.CollectionUsers: {
			{"_id": "u1", "username": "ana", "email": "ana@example.com", "avatar": map[string]any{"url": "http://a/1"}, "watchHistory": []any{"v1", "v2"}},
			{"_id": "u2", "username": "bo", "email": "bo@example.com", "watchHistory": []any{"v1"}},
		},
		models.CollectionVideos: {
			{"_id": "v1", "title": "Go tour", "owner": "u1", "views": 10, "isPublished": true, "createdAt": "2024-01-01T00:00:00.000000Z"},
			{"_id": "v2", "title": "Rust", "owner": "u1", "views": 3, "isPublished": false, "createdAt": "2024-01-02T00:00:00.000000Z"},
			{"_id": "v3", "title": "go generics", "owner": "u2", "views": 7, "isPublished": true, "createdAt": "2024-01-03T00:00:00.000000Z"},
		},
		models.CollectionLikes: {
			{"_id": "l1", "likedBy": "u2", "targetKind": "video", "target": "v1"},
			{"_id": "l2", "likedBy": "u1", "targetKind": "video", "target": "v1"},
		},
		models.CollectionPlaylists: {
			{"_id": "p1", "owner": "u1", "name": "mix", "videos": []any{"v2", "v1", "v3"}},
			{"_id": "p2", "owner": "u2", "name": "empty", "videos": []any{}},
		},
	}
	for coll, list := range docs {
		for _, d := range list {
			if err := pg.Create(ctx, coll, d); err != nil {
				t.Fatalf("seed postgres %s: %v", coll, err)
			}
			if err := mem.Create(ctx, coll, d); err != nil {
				t.Fatalf("seed memory %s: %v", coll, err)
			}
		}
	}
	return pg, mem
}

func TestPostgresStoreMatchesMemoryStore(t *testing.T) {
	pg, mem := seedBoth(t)
	schema := models.Schema

	plans := map[string]*pipeline.Builder{
		"feed": pipeline.From(schema, models.CollectionVideos).
			Filter(pipeline.And{pipeline.Eq{Field: "isPublished", Value: true}, pipeline.Search{Fields: []string{"title"}, Text: "GO"}}).
			Join(pipeline.Join{From: models.CollectionLikes, LocalKey: "_id", ForeignKey: "target", As: "likes",
				Pipeline: []pipeline.Stage{pipeline.Filter{Pred: pipeline.Eq{Field: "targetKind", Value: "video"}}, pipeline.Project{Fields: []string{"likedBy"}}}}).
			Join(pipeline.Join{From: models.CollectionUsers, LocalKey: "owner", ForeignKey: "_id", As: "owner",
				Pipeline: []pipeline.Stage{pipeline.Project{Fields: []string{"_id", "username", "avatar.url"}}}}).
			Compute("likesCount", pipeline.Count{Path: "likes"}).
			Compute("isLiked", pipeline.Flag("likes.likedBy", "u2")).
			Compute("owner", pipeline.First{Path: "owner"}).
			Sort(pipeline.Desc("views")).
			Project("_id", "title", "likesCount", "isLiked", "owner").
			Window(0, 10),
		"playlist": pipeline.From(schema, models.CollectionPlaylists).
			Join(pipeline.Join{From: models.CollectionVideos, LocalKey: "videos", ForeignKey: "_id", As: "videos",
				Pipeline: []pipeline.Stage{pipeline.Filter{Pred: pipeline.Eq{Field: "isPublished", Value: true}}, pipeline.Project{Fields: []string{"_id", "views"}}}}).
			Compute("totalVideos", pipeline.Count{Path: "videos"}).
			Compute("totalViews", pipeline.Sum{Path: "videos.views"}).
			Project("_id", "totalVideos", "totalViews", "videos"),
		"history": pipeline.From(schema, models.CollectionUsers).
			Unwind("watchHistory").
			Sort(pipeline.Asc("watchHistory"), pipeline.Desc("username")).
			Project("_id", "watchHistory"),
		"title bytewise": pipeline.From(schema, models.CollectionVideos).
			Sort(pipeline.Asc("title")).
			Project("_id", "title").
			Window(0, 2),
		"missing last": pipeline.From(schema, models.CollectionVideos).
			Compute("rank", pipeline.Cond{If: pipeline.Eq{Field: "owner", Value: "u2"}, Then: 1, Else: nil}).
			Sort(pipeline.Desc("rank"), pipeline.Asc("createdAt")).
			Project("_id", "rank"),
	}

	for name, b := range plans {
		t.Run(name, func(t *testing.T) {
			plan, err := b.Build()
			if err != nil {
				t.Fatalf("Build returned error: %v", err)
			}
			want, err := mem.Aggregate(context.Background(), plan)
			if err != nil {
				t.Fatalf("memory Aggregate returned error: %v", err)
			}
			got, err := pg.Aggregate(context.Background(), plan)
			if err != nil {
				t.Fatalf("postgres Aggregate returned error: %v", err)
			}
			if diff := cmp.Diff(normalizeAll(t, want), normalizeAll(t, got)); diff != "" {
				t.Fatalf("engines disagree (-memory +postgres):\n%s", diff)
			}
		})
	}
}

func TestPostgresStoreWritesAndConflicts(t *testing.T) {
	pg, _ := seedBoth(t)
	ctx := context.Background()

	err := pg.Create(ctx, models.CollectionLikes, docstore.Document{"_id": "l9", "likedBy": "u2", "targetKind": "video", "target": "v1"})
	if !errors.Is(err, docstore.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	doc, err := pg.UpdateByID(ctx, models.CollectionPlaylists, "p1", docstore.Patch{
		Pull:     map[string]any{"videos": "v2"},
		AddToSet: map[string]any{"tags": "go"},
		Inc:      map[string]int64{"plays": 3},
		Set:      map[string]any{"name": "renamed"},
	})
	if err != nil {
		t.Fatalf("UpdateByID returned error: %v", err)
	}
	want := docstore.Document{"_id": "p1", "owner": "u1", "name": "renamed", "videos": []any{"v1", "v3"}, "tags": []any{"go"}, "plays": float64(3)}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("unexpected document (-want +got):\n%s", diff)
	}

	n, err := pg.UpdateMany(ctx, models.CollectionUsers, pipeline.Has{Path: "watchHistory", Value: "v1"}, docstore.Patch{Pull: map[string]any{"watchHistory": "v1"}})
	if err != nil || n != 2 {
		t.Fatalf("expected 2 users updated, got %d (%v)", n, err)
	}

	removed, err := pg.DeleteMany(ctx, models.CollectionLikes, pipeline.Eq{Field: "target", Value: "v1"})
	if err != nil || removed != 2 {
		t.Fatalf("expected 2 likes removed, got %d (%v)", removed, err)
	}

	deleted, err := pg.DeleteByID(ctx, models.CollectionVideos, "v1")
	if err != nil || deleted.ID() != "v1" {
		t.Fatalf("expected deleted v1, got %v (%v)", deleted, err)
	}
	if _, err := pg.FindByID(ctx, models.CollectionVideos, "v1"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func normalizeAll(t *testing.T, docs []docstore.Document) any {
	t.Helper()
	out, err := docstore.Normalize(docs)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return out
}
