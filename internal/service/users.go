package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/assets"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/validation"
	"github.com/vidtube/backend/internal/views"
)

// Sessions issues and rotates tokens.
type Sessions interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, string, error)
}

// RegisterInput carries a sign-up form. Avatar and CoverImage are local file paths.
type RegisterInput struct {
	FullName   string `json:"fullName" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email"`
	Username   string `json:"username" validate:"required,alphanum,min=3,max=30"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	Avatar     string `json:"avatar" validate:"required"`
	CoverImage string `json:"coverImage"`
}

// LoginInput identifies the account by username or email.
type LoginInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is returned on a successful sign-in.
type LoginResult struct {
	User models.PublicUser `json:"user"`
	models.SessionTokens
}

// PasswordChange replaces the password of the signed-in user.
type PasswordChange struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

// AccountUpdate changes profile details.
type AccountUpdate struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
}

// Users manages accounts and sessions.
type Users struct {
	users    *repositories.UserRepository
	sessions Sessions
	clearer  *repositories.UserSessionStore
	views    *views.Composer
	assets   assets.Store
	janitor  AssetJanitor
	hashCost int
}

// NewUsers constructs the account service.
func NewUsers(d Deps, sessions Sessions) *Users {
	return &Users{
		users:    repositories.NewUserRepository(d.Store),
		sessions: sessions,
		clearer:  repositories.NewUserSessionStore(d.Store),
		views:    views.NewComposer(d.Store),
		assets:   d.Assets,
		janitor:  d.Janitor,
		hashCost: bcrypt.DefaultCost,
	}
}

// Register creates an account after uploading the avatar and optional cover concurrently.
func (s *Users) Register(ctx context.Context, in RegisterInput) (models.PublicUser, error) {
	const op = "users.register"
	in.FullName = clean(in.FullName)
	in.Email = strings.ToLower(clean(in.Email))
	in.Username = strings.ToLower(clean(in.Username))
	if err := validation.Struct(op, in); err != nil {
		return models.PublicUser{}, err
	}

	if _, err := s.users.FindByLogin(ctx, in.Username, in.Email); err == nil {
		return models.PublicUser{}, apperr.E(apperr.Conflict, op, "user with email or username already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return models.PublicUser{}, storeErr(op, err, "")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return models.PublicUser{}, apperr.Wrap(apperr.Internal, op, err)
	}

	var avatar, cover models.Asset
	if err := uploadAll(ctx, op, s.assets, s.janitor,
		upload{field: "avatar", path: in.Avatar, dst: &avatar},
		upload{field: "cover image", path: in.CoverImage, dst: &cover},
	); err != nil {
		return models.PublicUser{}, err
	}

	now := models.Now()
	user := models.User{
		ID:           validation.NewID(),
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		Avatar:       avatar,
		Password:     string(hashed),
		WatchHistory: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if cover.AssetID != "" {
		user.CoverImage = &cover
	}
	if err := s.users.Insert(ctx, user); err != nil {
		discard(ctx, s.janitor, avatar.AssetID)
		discard(ctx, s.janitor, cover.AssetID)
		if errors.Is(err, repositories.ErrConflict) {
			return models.PublicUser{}, apperr.E(apperr.Conflict, op, "user with email or username already exists")
		}
		return models.PublicUser{}, storeErr(op, err, "")
	}
	logging.FromContext(ctx).Info("user registered", slog.String("userId", user.ID))
	return user.Public(), nil
}

// Login checks credentials and opens a session.
func (s *Users) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	const op = "users.login"
	if clean(in.Username) == "" && clean(in.Email) == "" {
		return LoginResult{}, apperr.E(apperr.InvalidInput, op, "username or email is required")
	}
	if in.Password == "" {
		return LoginResult{}, apperr.E(apperr.InvalidInput, op, "password is required")
	}

	user, err := s.users.FindByLogin(ctx, in.Username, strings.ToLower(in.Email))
	if err != nil {
		return LoginResult{}, storeErr(op, err, "user does not exist")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		logging.FromContext(ctx).Warn("login password mismatch", slog.String("userId", user.ID))
		return LoginResult{}, apperr.E(apperr.Unauthenticated, op, "invalid user credentials")
	}

	tokens, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return LoginResult{}, apperr.Wrapf(apperr.DependencyFailure, op, err, "failed to create session")
	}
	return LoginResult{User: user.Public(), SessionTokens: tokens}, nil
}

// Refresh rotates a refresh token.
func (s *Users) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error) {
	const op = "users.refresh"
	if clean(refreshToken) == "" {
		return models.SessionTokens{}, apperr.E(apperr.Unauthenticated, op, "refresh token is required")
	}
	tokens, _, err := s.sessions.Refresh(ctx, clean(refreshToken))
	switch {
	case errors.Is(err, auth.ErrSessionNotFound), errors.Is(err, auth.ErrRefreshTokenExpired):
		return models.SessionTokens{}, apperr.Wrapf(apperr.Unauthenticated, op, err, "refresh token is expired or used")
	case err != nil:
		return models.SessionTokens{}, apperr.Wrap(apperr.DependencyFailure, op, err)
	}
	return tokens, nil
}

// Logout ends the session of actorID.
func (s *Users) Logout(ctx context.Context, actorID string) error {
	const op = "users.logout"
	if err := requireActor(op, actorID); err != nil {
		return err
	}
	if err := s.clearer.Clear(ctx, actorID); err != nil {
		return apperr.Wrap(apperr.DependencyFailure, op, err)
	}
	return nil
}

// ChangePassword replaces the password after checking the old one.
func (s *Users) ChangePassword(ctx context.Context, actorID string, in PasswordChange) error {
	const op = "users.change_password"
	if err := requireActor(op, actorID); err != nil {
		return err
	}
	if err := validation.Struct(op, in); err != nil {
		return err
	}
	user, err := s.users.Get(ctx, actorID)
	if err != nil {
		return storeErr(op, err, "user does not exist")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.OldPassword)) != nil {
		return apperr.E(apperr.InvalidInput, op, "invalid old password")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.hashCost)
	if err != nil {
		return apperr.Wrap(apperr.Internal, op, err)
	}
	_, err = s.users.Update(ctx, actorID, docstore.Patch{Set: map[string]any{"password": string(hashed), "updatedAt": models.Now()}})
	return storeErr(op, err, "user does not exist")
}

// Current returns the signed-in user.
func (s *Users) Current(ctx context.Context, actorID string) (models.PublicUser, error) {
	const op = "users.current"
	if err := requireActor(op, actorID); err != nil {
		return models.PublicUser{}, err
	}
	user, err := s.users.Get(ctx, actorID)
	if err != nil {
		return models.PublicUser{}, storeErr(op, err, "user does not exist")
	}
	return user.Public(), nil
}

// UpdateAccount changes the full name and email.
func (s *Users) UpdateAccount(ctx context.Context, actorID string, in AccountUpdate) (models.PublicUser, error) {
	const op = "users.update_account"
	if err := requireActor(op, actorID); err != nil {
		return models.PublicUser{}, err
	}
	in.FullName = clean(in.FullName)
	in.Email = strings.ToLower(clean(in.Email))
	if err := validation.Struct(op, in); err != nil {
		return models.PublicUser{}, err
	}
	user, err := s.users.Update(ctx, actorID, docstore.Patch{Set: map[string]any{
		"fullName":  in.FullName,
		"email":     in.Email,
		"updatedAt": models.Now(),
	}})
	if errors.Is(err, repositories.ErrConflict) {
		return models.PublicUser{}, apperr.E(apperr.Conflict, op, "email is already in use")
	}
	if err != nil {
		return models.PublicUser{}, storeErr(op, err, "user does not exist")
	}
	return user.Public(), nil
}

// UpdateAvatar replaces the avatar. The previous asset is deleted in the background.
func (s *Users) UpdateAvatar(ctx context.Context, actorID, path string) (models.PublicUser, error) {
	return s.replaceImage(ctx, "users.update_avatar", actorID, path, "avatar")
}

// UpdateCover replaces the cover image. The previous asset is deleted in the background.
func (s *Users) UpdateCover(ctx context.Context, actorID, path string) (models.PublicUser, error) {
	return s.replaceImage(ctx, "users.update_cover", actorID, path, "coverImage")
}

func (s *Users) replaceImage(ctx context.Context, op, actorID, path, field string) (models.PublicUser, error) {
	if err := requireActor(op, actorID); err != nil {
		return models.PublicUser{}, err
	}
	if clean(path) == "" {
		return models.PublicUser{}, apperr.E(apperr.InvalidInput, op, field+" file is missing")
	}
	previous, err := s.users.Get(ctx, actorID)
	if err != nil {
		return models.PublicUser{}, storeErr(op, err, "user does not exist")
	}

	var asset models.Asset
	if err := uploadAll(ctx, op, s.assets, s.janitor, upload{field: field, path: path, dst: &asset}); err != nil {
		return models.PublicUser{}, err
	}
	user, err := s.users.Update(ctx, actorID, docstore.Patch{Set: map[string]any{field: asset, "updatedAt": models.Now()}})
	if err != nil {
		discard(ctx, s.janitor, asset.AssetID)
		return models.PublicUser{}, storeErr(op, err, "user does not exist")
	}

	old := previous.Avatar.AssetID
	if field == "coverImage" {
		old = ""
		if previous.CoverImage != nil {
			old = previous.CoverImage.AssetID
		}
	}
	discard(ctx, s.janitor, old)
	return user.Public(), nil
}

// Channel returns the public channel page of username as seen by actorID.
func (s *Users) Channel(ctx context.Context, username, actorID string) (models.ChannelProfile, error) {
	if clean(username) == "" {
		return models.ChannelProfile{}, apperr.E(apperr.InvalidInput, "users.channel", "username is required")
	}
	return s.views.ChannelProfile(ctx, username, actorID)
}

// History returns the watch history of actorID.
func (s *Users) History(ctx context.Context, actorID string) ([]models.VideoCard, error) {
	if err := requireActor("users.history", actorID); err != nil {
		return nil, err
	}
	return s.views.WatchHistory(ctx, actorID)
}
