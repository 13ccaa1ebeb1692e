// Package docstore persists JSON documents in named collections and executes pipeline plans
// against them. Two engines share the same semantics: an in-memory store and PostgreSQL JSONB.
package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/vidtube/backend/internal/pipeline"
)

var (
	// ErrNotFound is returned when no document matches.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when a write violates a unique index.
	ErrConflict = errors.New("document conflict")
)

// Document is a decoded JSON object. Every stored document carries its id under "_id".
type Document map[string]any

// ID returns the document id.
func (d Document) ID() string {
	id, _ := d[pipeline.IDField].(string)
	return id
}

// String returns the string stored at a top-level key.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Patch describes an atomic in-place update. Keys are dotted paths.
type Patch struct {
	Set      map[string]any
	Unset    []string
	Inc      map[string]int64
	AddToSet map[string]any
	Pull     map[string]any
}

func (p Patch) empty() bool {
	return len(p.Set) == 0 && len(p.Unset) == 0 && len(p.Inc) == 0 && len(p.AddToSet) == 0 && len(p.Pull) == 0
}

// Index declares a unique constraint over one or more top-level fields of a collection.
// Documents missing any indexed field are not constrained.
type Index struct {
	Collection string
	Fields     []string
}

// Store is the entity store adapter. A nil filter matches every document.
type Store interface {
	Find(ctx context.Context, collection string, filter pipeline.Predicate) ([]Document, error)
	FindOne(ctx context.Context, collection string, filter pipeline.Predicate) (Document, error)
	FindByID(ctx context.Context, collection, id string) (Document, error)
	Create(ctx context.Context, collection string, doc Document) error
	UpdateByID(ctx context.Context, collection, id string, patch Patch) (Document, error)
	UpdateMany(ctx context.Context, collection string, filter pipeline.Predicate, patch Patch) (int64, error)
	DeleteByID(ctx context.Context, collection, id string) (Document, error)
	DeleteMany(ctx context.Context, collection string, filter pipeline.Predicate) (int64, error)
	Aggregate(ctx context.Context, plan pipeline.Plan) ([]Document, error)
	Count(ctx context.Context, collection string, filter pipeline.Predicate) (int64, error)
}

// TimeLayout is a fixed-width UTC layout: lexical order of formatted values is chronological
// order, which lets both engines sort timestamps as strings.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTime renders t for storage.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
