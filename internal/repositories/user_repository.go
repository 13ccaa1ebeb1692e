package repositories

import (
	"context"
	"strings"

	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pipeline"
)

// UserRepository stores accounts.
type UserRepository struct {
	Collection[models.User]
}

// NewUserRepository constructs a user repository over store.
func NewUserRepository(store docstore.Store) *UserRepository {
	return &UserRepository{newCollection[models.User](store, models.CollectionUsers)}
}

// FindByLogin fetches the account matching username or email. Empty values are ignored.
func (r *UserRepository) FindByLogin(ctx context.Context, username, email string) (models.User, error) {
	var match pipeline.Or
	if u := strings.ToLower(strings.TrimSpace(username)); u != "" {
		match = append(match, pipeline.Eq{Field: "username", Value: u})
	}
	if e := strings.TrimSpace(email); e != "" {
		match = append(match, pipeline.Eq{Field: "email", Value: e})
	}
	if len(match) == 0 {
		return models.User{}, ErrNotFound
	}
	return r.FindOne(ctx, match)
}

// AddToHistory records that userID watched videoID. A video appears at most once.
func (r *UserRepository) AddToHistory(ctx context.Context, userID, videoID string) error {
	_, err := r.Update(ctx, userID, docstore.Patch{AddToSet: map[string]any{"watchHistory": videoID}})
	return err
}
