package repositories

import (
	"errors"
	"fmt"

	"github.com/vidtube/backend/internal/docstore"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrNotMember indicates a playlist does not contain the video.
	ErrNotMember = errors.New("video is not in the playlist")
)

func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, docstore.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, docstore.ErrConflict):
		return ErrConflict
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
