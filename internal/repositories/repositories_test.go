package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
)

func newStore(t *testing.T) *docstore.MemoryStore {
	t.Helper()
	store := docstore.NewMemoryStore(models.Indexes...)
	users := NewUserRepository(store)
	for _, u := range []models.User{
		{ID: "u1", Username: "ana", Email: "ana@example.com"},
		{ID: "u2", Username: "bo", Email: "bo@example.com"},
	} {
		if err := users.Insert(context.Background(), u); err != nil {
			t.Fatalf("insert %s: %v", u.ID, err)
		}
	}
	return store
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(newStore(t))

	err := users.Insert(ctx, models.User{ID: "u3", Username: "ana", Email: "other@example.com"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate username, got %v", err)
	}

	tests := []struct {
		name     string
		username string
		email    string
		wantID   string
		wantErr  error
	}{
		{name: "by username ignoring case", username: " ANA ", wantID: "u1"},
		{name: "by email", email: "bo@example.com", wantID: "u2"},
		{name: "unknown", username: "cy", wantErr: ErrNotFound},
		{name: "empty", wantErr: ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := users.FindByLogin(ctx, tt.username, tt.email)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if u.ID != tt.wantID {
				t.Fatalf("expected %q, got %q", tt.wantID, u.ID)
			}
		})
	}

	for _, v := range []string{"v1", "v2", "v1"} {
		if err := users.AddToHistory(ctx, "u1", v); err != nil {
			t.Fatalf("add to history: %v", err)
		}
	}
	u, err := users.Get(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"v1", "v2"}, u.WatchHistory); diff != "" {
		t.Fatalf("watch history (-want +got):\n%s", diff)
	}
	if err := users.AddToHistory(ctx, "missing", "v1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVideoRepositoryIncrementViews(t *testing.T) {
	ctx := context.Background()
	videos := NewVideoRepository(newStore(t))
	if err := videos.Insert(ctx, models.Video{ID: "v1", Owner: "u1", Views: 2}); err != nil {
		t.Fatal(err)
	}
	if err := videos.IncrementViews(ctx, "v1"); err != nil {
		t.Fatal(err)
	}
	v, err := videos.Get(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if v.Views != 3 {
		t.Fatalf("expected 3 views, got %d", v.Views)
	}
	if ok, err := videos.Exists(ctx, "v9"); err != nil || ok {
		t.Fatalf("expected v9 to be absent, got %v %v", ok, err)
	}
}

func TestPlaylistMembership(t *testing.T) {
	ctx := context.Background()
	playlists := NewPlaylistRepository(newStore(t))
	if err := playlists.Insert(ctx, models.Playlist{ID: "p1", Owner: "u1", Videos: []string{"v1"}}); err != nil {
		t.Fatal(err)
	}

	p, err := playlists.AddVideo(ctx, "p1", "v2")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if diff := cmp.Diff([]string{"v1", "v2"}, p.Videos); diff != "" {
		t.Fatalf("videos (-want +got):\n%s", diff)
	}
	if p.UpdatedAt.IsZero() {
		t.Fatal("expected updatedAt to be set")
	}
	if _, err := playlists.AddVideo(ctx, "p1", "v2"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate add, got %v", err)
	}
	if _, err := playlists.AddVideo(ctx, "p9", "v2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing playlist, got %v", err)
	}

	p, err = playlists.RemoveVideo(ctx, "p1", "v1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if diff := cmp.Diff([]string{"v2"}, p.Videos); diff != "" {
		t.Fatalf("videos (-want +got):\n%s", diff)
	}
	if _, err := playlists.RemoveVideo(ctx, "p1", "v1"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}

func TestUserSessionStore(t *testing.T) {
	ctx := context.Background()
	docs := newStore(t)
	store := NewUserSessionStore(docs)
	manager := auth.NewManager("0123456789abcdef0123", time.Minute, time.Hour, store)

	first, err := manager.Issue(ctx, "u1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := manager.Issue(ctx, "u1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := store.Find(ctx, first.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("a new sign-in should replace the previous session, got %v", err)
	}

	stored, err := docs.FindByID(ctx, models.CollectionUsers, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.String("refreshToken") == second.RefreshToken {
		t.Fatal("refresh token must not be stored in plain text")
	}

	session, err := store.Find(ctx, second.RefreshToken)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if session.UserID != "u1" || !session.ExpiresAt.After(time.Now()) {
		t.Fatalf("unexpected session %+v", session)
	}

	if err := store.Clear(ctx, "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, _, err := manager.Refresh(ctx, second.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected session not found after clear, got %v", err)
	}
	if err := store.Save(ctx, auth.Session{RefreshToken: "x", UserID: "missing", ExpiresAt: time.Now()}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}
