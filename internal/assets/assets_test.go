package assets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
)

func writeTemp(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("payload"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMemoryStoreUploadAndDelete(t *testing.T) {
	store := NewMemoryStore("https://cdn.test/")
	ctx := context.Background()
	before := testutil.ToFloat64(metrics.AssetOperations.WithLabelValues("upload", "ok"))

	asset, err := store.Upload(ctx, writeTemp(t, "clip.MP4"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !strings.HasSuffix(asset.AssetID, ".mp4") || asset.URL != "https://cdn.test/"+asset.AssetID {
		t.Fatalf("unexpected asset: %+v", asset)
	}
	if got := testutil.ToFloat64(metrics.AssetOperations.WithLabelValues("upload", "ok")); got != before+1 {
		t.Fatalf("expected upload counter to grow by one, got %v -> %v", before, got)
	}

	if err := store.Delete(ctx, asset.AssetID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, asset.AssetID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := store.Upload(ctx, filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

type failingStore struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *failingStore) Upload(context.Context, string) (models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return models.Asset{}, f.err
}

func (f *failingStore) Delete(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func TestBreakerStoreOpensAfterConsecutiveFailures(t *testing.T) {
	next := &failingStore{err: errors.New("connection refused")}
	store := NewBreakerStore(next, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < breakerFailures; i++ {
		if _, err := store.Upload(ctx, "x.png"); err == nil || errors.Is(err, ErrUnavailable) {
			t.Fatalf("call %d: expected the underlying error, got %v", i, err)
		}
	}
	if _, err := store.Upload(ctx, "x.png"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable once open, got %v", err)
	}
	if next.calls != breakerFailures {
		t.Fatalf("open breaker must not reach the store, got %d calls", next.calls)
	}
}

func TestBreakerStoreIgnoresMissingAssets(t *testing.T) {
	next := &failingStore{err: ErrNotFound}
	store := NewBreakerStore(next, time.Minute, nil)

	for i := 0; i < breakerFailures+2; i++ {
		if err := store.Delete(context.Background(), "gone"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("call %d: expected ErrNotFound, got %v", i, err)
		}
	}
}

func TestProberDuration(t *testing.T) {
	prober := NewProber("", time.Second)
	prober.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		if binary != "ffprobe" {
			t.Fatalf("unexpected binary %q", binary)
		}
		if args[len(args)-1] != "/tmp/clip.mp4" {
			t.Fatalf("expected path as last arg, got %v", args)
		}
		return []byte(`{"format":{"duration":"12.480000"}}`), nil
	}

	d, err := prober.Duration(context.Background(), "/tmp/clip.mp4")
	if err != nil {
		t.Fatalf("Duration() error = %v", err)
	}
	if d != 12.48 {
		t.Fatalf("expected 12.48, got %v", d)
	}
}

func TestProberDurationFailures(t *testing.T) {
	tests := []struct {
		name string
		out  string
		err  error
	}{
		{"command fails", "", errors.New("exit status 1")},
		{"no duration", `{"format":{}}`, nil},
		{"bad json", `not json`, nil},
		{"bad number", `{"format":{"duration":"N/A"}}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := NewProber("ffprobe", time.Second)
			prober.Run = func(context.Context, string, ...string) ([]byte, error) {
				return []byte(tt.out), tt.err
			}
			if _, err := prober.Duration(context.Background(), "clip.mp4"); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	var nilProber *Prober
	if _, err := nilProber.Duration(context.Background(), "clip.mp4"); !errors.Is(err, ErrProbeUnavailable) {
		t.Fatalf("expected ErrProbeUnavailable, got %v", err)
	}
}

func TestJanitorDrainsQueueOnShutdown(t *testing.T) {
	store := NewMemoryStore("https://cdn.test")
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		asset, err := store.Upload(ctx, writeTemp(t, "a.png"))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, asset.AssetID)
	}

	janitor := NewJanitor(store, JanitorConfig{QueueSize: 8, Workers: 2}, nil)
	for _, id := range ids {
		if err := janitor.Enqueue(ctx, id); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	if err := janitor.Enqueue(ctx, ""); err != nil {
		t.Fatalf("empty id should be ignored, got %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := janitor.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected every queued asset deleted, %d left", store.Len())
	}
	if err := janitor.Enqueue(ctx, ids[0]); !errors.Is(err, errJanitorClosed) {
		t.Fatalf("expected errJanitorClosed after shutdown, got %v", err)
	}
}
