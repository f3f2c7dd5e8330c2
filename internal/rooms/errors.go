package rooms

import (
	"context"
	"errors"
	"fmt"

	"github.com/DoyleJ11/monkey-rooms-backend/internal/store"
)

var (
	ErrNotFound         = errors.New("room not found")
	ErrConflict         = errors.New("room is full")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// translate maps store errors onto the room error taxonomy. Context errors
// pass through untouched so callers can tell a timeout from a store fault.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}
