// Package ownership decides whether an actor may mutate a piece of content.
package ownership

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/validation"
)

// Owned is anything with a single owning user.
type Owned interface {
	OwnerID() string
}

// Authorize returns a Forbidden error unless actorID owns entity. An empty actor never owns
// anything.
func Authorize(actorID string, entity Owned) error {
	if actorID == "" || entity == nil || entity.OwnerID() != actorID {
		return apperr.E(apperr.Forbidden, "ownership.authorize", "you do not own this resource")
	}
	return nil
}

type ownedDoc docstore.Document

func (d ownedDoc) OwnerID() string { return docstore.Document(d).String("owner") }

// Guard loads documents on behalf of an actor.
type Guard struct {
	store docstore.Store
}

// NewGuard constructs a guard over store.
func NewGuard(store docstore.Store) *Guard {
	return &Guard{store: store}
}

// Load fetches collection/id and checks actorID owns it. A missing document is reported as
// NotFound before ownership is considered.
func (g *Guard) Load(ctx context.Context, collection, id, actorID string) (docstore.Document, error) {
	const op = "ownership.load"
	noun := strings.TrimSuffix(collection, "s")
	if err := validation.ID(op, noun+" id", id); err != nil {
		return nil, err
	}
	doc, err := g.store.FindByID(ctx, collection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperr.E(apperr.NotFound, op, fmt.Sprintf("%s not found", noun))
		}
		return nil, apperr.Wrap(apperr.DependencyFailure, op, err)
	}
	if err := Authorize(actorID, ownedDoc(doc)); err != nil {
		return nil, err
	}
	return doc, nil
}
