// Package views composes the denormalized read models returned by the API. Every composition
// is a fixed pipeline executed as a single aggregate against the store.
package views

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/paginate"
	"github.com/vidtube/backend/internal/pipeline"
)

// Composer builds and runs view compositions. It never writes.
type Composer struct {
	store docstore.Store
}

// NewComposer constructs a composer over store.
func NewComposer(store docstore.Store) *Composer {
	return &Composer{store: store}
}

func from(collection string) *pipeline.Builder {
	return pipeline.From(models.Schema, collection)
}

var ownerFields = []string{"_id", "username", "fullName", "avatar.url"}

// ownerSummary joins the user referenced by localKey as a single-element array named as.
func ownerSummary(localKey, as string) pipeline.Join {
	return pipeline.Join{
		From:       models.CollectionUsers,
		LocalKey:   localKey,
		ForeignKey: "_id",
		As:         as,
		Pipeline:   []pipeline.Stage{pipeline.Project{Fields: ownerFields}},
	}
}

// likesOf joins the likes of the given kind whose target is the row id.
func likesOf(kind, as string) pipeline.Join {
	return pipeline.Join{
		From:       models.CollectionLikes,
		LocalKey:   "_id",
		ForeignKey: "target",
		As:         as,
		Pipeline: []pipeline.Stage{
			pipeline.Filter{Pred: pipeline.Eq{Field: "targetKind", Value: kind}},
			pipeline.Project{Fields: []string{"likedBy"}},
		},
	}
}

func published() pipeline.Filter {
	return pipeline.Filter{Pred: pipeline.Eq{Field: "isPublished", Value: true}}
}

func (c *Composer) observe(ctx context.Context, view string) (context.Context, func()) {
	ctx, span := logging.StartSpan(ctx, "views."+view)
	start := time.Now()
	return ctx, func() {
		metrics.ViewComposeDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
		span.End()
	}
}

func (c *Composer) run(ctx context.Context, view string, b *pipeline.Builder) ([]docstore.Document, error) {
	ctx, done := c.observe(ctx, view)
	defer done()

	plan, err := b.Build()
	if err != nil {
		return nil, classify(ctx, view, err)
	}
	docs, err := c.store.Aggregate(ctx, plan)
	if err != nil {
		return nil, classify(ctx, view, err)
	}
	return docs, nil
}

func (c *Composer) one(ctx context.Context, view string, b *pipeline.Builder, out any, missing string) error {
	docs, err := c.run(ctx, view, b)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return apperr.E(apperr.NotFound, "views."+view, missing)
	}
	if err := docstore.Decode(docs[0], out); err != nil {
		return apperr.Wrap(apperr.Internal, "views."+view, err)
	}
	return nil
}

func list[T any](ctx context.Context, c *Composer, view string, b *pipeline.Builder) ([]T, error) {
	docs, err := c.run(ctx, view, b)
	if err != nil {
		return nil, err
	}
	out, err := docstore.DecodeAll[T](docs)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "views."+view, err)
	}
	return out, nil
}

func page[T any](ctx context.Context, c *Composer, view string, b *pipeline.Builder, req paginate.Request) (paginate.Page[T], error) {
	ctx, done := c.observe(ctx, view)
	defer done()

	p, err := paginate.Run[T](ctx, c.store, b, req)
	if err != nil {
		return paginate.Page[T]{}, classify(ctx, view, err)
	}
	return p, nil
}

// classify maps composition failures to error kinds: malformed compositions are internal
// faults, anything else comes from the store.
func classify(ctx context.Context, view string, err error) error {
	op := "views." + view
	if errors.Is(err, pipeline.ErrInvalidStage) || errors.Is(err, paginate.ErrUnordered) {
		logging.FromContext(ctx).Error("invalid view composition", slog.String("view", view), slog.Any("error", err))
		return apperr.Wrap(apperr.Internal, op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.DependencyFailure, op, err)
	}
	logging.FromContext(ctx).Error("view composition failed", slog.String("view", view), slog.Any("error", err))
	return apperr.Wrap(apperr.DependencyFailure, op, err)
}
