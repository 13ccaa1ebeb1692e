package assets

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vidtube/backend/internal/metrics"
)

// JanitorConfig controls the concurrency characteristics of the janitor.
type JanitorConfig struct {
	QueueSize int
	Workers   int
	// Timeout bounds a single delete call.
	Timeout time.Duration
}

// Janitor deletes replaced assets (old avatars, covers and thumbnails) in the background so
// the request that replaced them does not wait on the object store.
type Janitor struct {
	store  Store
	logger *slog.Logger
	cfg    JanitorConfig

	// mu keeps Enqueue from sending on jobs after Shutdown closes it.
	mu     sync.RWMutex
	jobs   chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

var errJanitorClosed = errors.New("asset janitor closed")

// NewJanitor starts the worker pool.
func NewJanitor(store Store, cfg JanitorConfig, logger *slog.Logger) *Janitor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &Janitor{
		store:  store,
		logger: logger,
		cfg:    cfg,
		jobs:   make(chan string, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	j.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go j.worker()
	}
	return j
}

// Enqueue schedules deletion of assetID. Empty ids are ignored.
func (j *Janitor) Enqueue(ctx context.Context, assetID string) error {
	if assetID == "" {
		return nil
	}
	j.mu.RLock()
	defer j.mu.RUnlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-j.ctx.Done():
		return errJanitorClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-j.ctx.Done():
		return errJanitorClosed
	case j.jobs <- assetID:
		metrics.JanitorQueueDepth.Inc()
		return nil
	}
}

// Shutdown stops accepting work and waits for queued deletions to finish.
func (j *Janitor) Shutdown(ctx context.Context) error {
	j.once.Do(func() {
		j.cancel()
		j.mu.Lock()
		close(j.jobs)
		j.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (j *Janitor) worker() {
	defer j.wg.Done()

	for assetID := range j.jobs {
		metrics.JanitorQueueDepth.Dec()
		j.delete(assetID)
	}
}

func (j *Janitor) delete(assetID string) {
	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.Timeout)
	defer cancel()

	if err := j.store.Delete(ctx, assetID); err != nil {
		j.logger.Error("delete replaced asset", "assetId", assetID, "error", err)
	}
}
