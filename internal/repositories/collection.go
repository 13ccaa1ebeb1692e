// Package repositories provides typed persistence for each entity on top of docstore.Store.
package repositories

import (
	"context"

	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/pipeline"
)

// Collection reads and writes one entity type stored in a named collection.
type Collection[T any] struct {
	store docstore.Store
	name  string
}

func newCollection[T any](store docstore.Store, name string) Collection[T] {
	return Collection[T]{store: store, name: name}
}

// Name returns the collection name.
func (c Collection[T]) Name() string { return c.name }

func (c Collection[T]) decode(op string, doc docstore.Document) (T, error) {
	var out T
	if err := docstore.Decode(doc, &out); err != nil {
		return out, translate(op, err)
	}
	return out, nil
}

// Get fetches the entity with id.
func (c Collection[T]) Get(ctx context.Context, id string) (T, error) {
	doc, err := c.store.FindByID(ctx, c.name, id)
	if err != nil {
		var zero T
		return zero, translate("select "+c.name, err)
	}
	return c.decode("decode "+c.name, doc)
}

// FindOne fetches the first entity matching filter.
func (c Collection[T]) FindOne(ctx context.Context, filter pipeline.Predicate) (T, error) {
	doc, err := c.store.FindOne(ctx, c.name, filter)
	if err != nil {
		var zero T
		return zero, translate("select "+c.name, err)
	}
	return c.decode("decode "+c.name, doc)
}

// Exists reports whether an entity with id is stored.
func (c Collection[T]) Exists(ctx context.Context, id string) (bool, error) {
	n, err := c.store.Count(ctx, c.name, pipeline.Eq{Field: pipeline.IDField, Value: id})
	if err != nil {
		return false, translate("count "+c.name, err)
	}
	return n > 0, nil
}

// Insert persists a new entity. Unique index violations yield ErrConflict.
func (c Collection[T]) Insert(ctx context.Context, v T) error {
	doc, err := docstore.ToDocument(v)
	if err != nil {
		return translate("encode "+c.name, err)
	}
	return translate("insert "+c.name, c.store.Create(ctx, c.name, doc))
}

// Update applies patch to the entity with id and returns the updated entity.
func (c Collection[T]) Update(ctx context.Context, id string, patch docstore.Patch) (T, error) {
	doc, err := c.store.UpdateByID(ctx, c.name, id, patch)
	if err != nil {
		var zero T
		return zero, translate("update "+c.name, err)
	}
	return c.decode("decode "+c.name, doc)
}
