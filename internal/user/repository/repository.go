package repository

import (
	"context"
	"time"

	"server-actions/backend/internal/user/domain"
)

// Repository defines persistence for users. Each method is a single persistence call.
type Repository interface {
	// GetByID returns the user for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// Create inserts u. Returns an error wrapping db.ErrDuplicate when the id or email is taken.
	Create(ctx context.Context, u *domain.User) error
	// Update applies p to the user with id and returns the updated user, or nil if not found.
	// Returns an error wrapping db.ErrDuplicate when the new email is taken.
	Update(ctx context.Context, id string, p domain.Patch, now time.Time) (*domain.User, error)
}
