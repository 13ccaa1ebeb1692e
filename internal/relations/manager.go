// Package relations toggles the like and subscription edges between users and content.
package relations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pipeline"
	"github.com/vidtube/backend/internal/validation"
)

// Kind names what a toggle points at.
type Kind string

const (
	KindVideo   Kind = models.TargetVideo
	KindComment Kind = models.TargetComment
	KindTweet   Kind = models.TargetTweet
	KindChannel Kind = "channel"
)

// maxToggleAttempts bounds the delete/insert loop under concurrent toggles of the same pair.
const maxToggleAttempts = 4

// ErrInvalidRelation is returned when an actor tries to subscribe to their own channel.
var ErrInvalidRelation = errors.New("relations: a channel cannot subscribe to itself")

// Result reports whether the toggle created the edge (true) or removed it (false).
type Result struct {
	Created bool `json:"created"`
}

// Manager flips like and subscription edges.
type Manager struct {
	store docstore.Store
}

// NewManager constructs a manager over store. The store must enforce the like and
// subscription unique indexes.
func NewManager(store docstore.Store) *Manager {
	return &Manager{store: store}
}

type edge struct {
	collection string
	target     string
	pair       pipeline.And
	doc        func() any
}

func (k Kind) edge(actorID, targetID string) (edge, error) {
	switch k {
	case KindVideo, KindComment, KindTweet:
		kind := string(k)
		return edge{
			collection: models.CollectionLikes,
			target:     targetCollection(k),
			pair: pipeline.And{
				pipeline.Eq{Field: "likedBy", Value: actorID},
				pipeline.Eq{Field: "targetKind", Value: kind},
				pipeline.Eq{Field: "target", Value: targetID},
			},
			doc: func() any {
				like := models.Like{ID: validation.NewID(), LikedBy: actorID, TargetKind: kind, Target: targetID, CreatedAt: models.Now()}
				switch k {
				case KindVideo:
					like.Video = targetID
				case KindComment:
					like.Comment = targetID
				case KindTweet:
					like.Tweet = targetID
				}
				return like
			},
		}, nil
	case KindChannel:
		return edge{
			collection: models.CollectionSubscriptions,
			target:     models.CollectionUsers,
			pair: pipeline.And{
				pipeline.Eq{Field: "subscriber", Value: actorID},
				pipeline.Eq{Field: "channel", Value: targetID},
			},
			doc: func() any {
				return models.Subscription{ID: validation.NewID(), Subscriber: actorID, Channel: targetID, CreatedAt: models.Now()}
			},
		}, nil
	default:
		return edge{}, apperr.E(apperr.InvalidInput, "relations.toggle", fmt.Sprintf("unknown relation kind %q", k))
	}
}

func targetCollection(k Kind) string {
	switch k {
	case KindVideo:
		return models.CollectionVideos
	case KindComment:
		return models.CollectionComments
	case KindTweet:
		return models.CollectionTweets
	default:
		return models.CollectionUsers
	}
}

// Toggle removes the edge between actorID and targetID when it exists and creates it
// otherwise. Concurrent toggles of the same pair never leave two edges behind.
func (m *Manager) Toggle(ctx context.Context, actorID, targetID string, kind Kind) (res Result, err error) {
	const op = "relations.toggle"
	defer func() {
		result := "removed"
		switch {
		case err != nil:
			result = "error"
		case res.Created:
			result = "created"
		}
		metrics.RelationToggles.WithLabelValues(string(kind), result).Inc()
	}()
	ctx, span := logging.StartSpan(ctx, "relations.toggle."+string(kind))
	defer span.EndErr(&err)

	e, err := kind.edge(actorID, targetID)
	if err != nil {
		return Result{}, err
	}
	if err := validation.ID(op, "actor id", actorID); err != nil {
		return Result{}, err
	}
	if err := validation.ID(op, string(kind)+" id", targetID); err != nil {
		return Result{}, err
	}
	if kind == KindChannel && actorID == targetID {
		return Result{}, apperr.Wrap(apperr.Forbidden, op, ErrInvalidRelation)
	}

	if _, err := m.store.FindByID(ctx, e.target, targetID); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Result{}, apperr.E(apperr.NotFound, op, fmt.Sprintf("%s not found", kind))
		}
		return Result{}, apperr.Wrap(apperr.DependencyFailure, op, err)
	}

	for attempt := 1; attempt <= maxToggleAttempts; attempt++ {
		removed, err := m.store.DeleteMany(ctx, e.collection, e.pair)
		if err != nil {
			return Result{}, apperr.Wrap(apperr.DependencyFailure, op, err)
		}
		if removed > 0 {
			return Result{Created: false}, nil
		}

		doc, err := docstore.ToDocument(e.doc())
		if err != nil {
			return Result{}, apperr.Wrap(apperr.Internal, op, err)
		}
		err = m.store.Create(ctx, e.collection, doc)
		if err == nil {
			return Result{Created: true}, nil
		}
		if !errors.Is(err, docstore.ErrConflict) {
			return Result{}, apperr.Wrap(apperr.DependencyFailure, op, err)
		}
		logging.FromContext(ctx).Debug("toggle raced with a concurrent insert",
			slog.String("kind", string(kind)), slog.String("target", targetID), slog.Int("attempt", attempt))
	}
	return Result{}, apperr.E(apperr.Conflict, op, "relation changed concurrently, try again")
}
