package repositories

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pipeline"
)

// UserSessionStore keeps one refresh token per user on the user document, so a new sign-in
// ends the previous session. Only a SHA-256 digest of the token is stored.
type UserSessionStore struct {
	store docstore.Store
}

// NewUserSessionStore constructs a session store over the users collection.
func NewUserSessionStore(store docstore.Store) *UserSessionStore {
	return &UserSessionStore{store: store}
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Save stores the session on its user.
func (s *UserSessionStore) Save(ctx context.Context, session auth.Session) error {
	_, err := s.store.UpdateByID(ctx, models.CollectionUsers, session.UserID, docstore.Patch{
		Set: map[string]any{
			"refreshToken":          digest(session.RefreshToken),
			"refreshTokenExpiresAt": models.Time{Time: session.ExpiresAt},
		},
	})
	if err != nil {
		return fmt.Errorf("save session for %s: %w", session.UserID, translate("update users", err))
	}
	return nil
}

// Find loads a session by its refresh token.
func (s *UserSessionStore) Find(ctx context.Context, refreshToken string) (auth.Session, error) {
	doc, err := s.store.FindOne(ctx, models.CollectionUsers, pipeline.Eq{Field: "refreshToken", Value: digest(refreshToken)})
	if errors.Is(err, docstore.ErrNotFound) {
		return auth.Session{}, auth.ErrSessionNotFound
	}
	if err != nil {
		return auth.Session{}, fmt.Errorf("select session: %w", err)
	}
	var user models.User
	if err := docstore.Decode(doc, &user); err != nil {
		return auth.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return auth.Session{RefreshToken: refreshToken, UserID: user.ID, ExpiresAt: user.RefreshTokenExpiresAt.Time}, nil
}

// Delete removes a session by its refresh token.
func (s *UserSessionStore) Delete(ctx context.Context, refreshToken string) error {
	n, err := s.store.UpdateMany(ctx, models.CollectionUsers, pipeline.Eq{Field: "refreshToken", Value: digest(refreshToken)}, clearSession)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

// Clear ends the session of userID, whatever its token.
func (s *UserSessionStore) Clear(ctx context.Context, userID string) error {
	_, err := s.store.UpdateByID(ctx, models.CollectionUsers, userID, clearSession)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("clear session for %s: %w", userID, err)
	}
	return nil
}

var clearSession = docstore.Patch{Unset: []string{"refreshToken", "refreshTokenExpiresAt"}}

var _ auth.SessionStore = (*UserSessionStore)(nil)
