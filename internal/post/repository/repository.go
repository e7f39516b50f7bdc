package repository

import (
	"context"
	"time"

	"server-actions/backend/internal/post/domain"
)

// Repository defines persistence for posts. Each method is a single persistence call; the
// owner-scoped methods filter on author in the same statement that reads or writes the row.
type Repository interface {
	// Create inserts p. Returns an error wrapping db.ErrMissingReference when the author has no user record.
	Create(ctx context.Context, p *domain.Post) error
	// GetByID returns the post for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Post, error)
	// List returns the posts matching q, newest first.
	List(ctx context.Context, q domain.ListQuery) ([]*domain.Post, error)
	// UpdateOwned applies patch to the post with id owned by authorID and returns it, or nil if no such post.
	UpdateOwned(ctx context.Context, id, authorID string, patch domain.Patch, now time.Time) (*domain.Post, error)
	// DeleteOwned deletes the post with id owned by authorID. Returns false if no such post.
	DeleteOwned(ctx context.Context, id, authorID string) (bool, error)
}
